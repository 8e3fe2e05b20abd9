// Package printing renders receipts to HTML and PDF and archives the PDFs.
//
// This package contains:
// - TemplateEngine, which executes the embedded receipt templates
// - PDFRenderer and its Chrome DevTools implementation, ChromedpRenderer
// - ReceiptStorage with local file system and S3 implementations
//
// Example usage:
//
//	engine, err := NewTemplateEngine()
//	if err != nil {
//	    return err
//	}
//	html, err := engine.Render(ctx, TemplateReceipt, data)
//	if err != nil {
//	    return err
//	}
//
//	renderer, err := NewChromedpRenderer(&ChromedpConfig{NoSandbox: true})
//	if err != nil {
//	    return err
//	}
//	defer renderer.Close()
//
//	result, err := renderer.Render(ctx, &RenderRequest{
//	    HTML:      html,
//	    PaperSize: printing.PaperSizeReceipt80MM,
//	})
package printing
