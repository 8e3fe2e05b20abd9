package printing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	defaultChromeTimeout = 30 * time.Second
	defaultScale         = 1.0
	defaultMaxRenders    = 2

	// CSS reference pixels per millimeter
	pxPerMM = 96 / 25.4

	// bounds for the printed length of a roll receipt
	minRollHeightMM = 50
	maxRollHeightMM = 3000
)

// ChromedpConfig configures the Chrome PDF renderer
type ChromedpConfig struct {
	DefaultTimeout time.Duration
	// RemoteURL is the DevTools URL of a running Chrome. When empty a local
	// headless Chrome is launched.
	RemoteURL string
	// NoSandbox is needed when Chrome runs as root, e.g. in a container
	NoSandbox bool
	// MaxConcurrent bounds the number of receipts rendered at once
	MaxConcurrent int
	Scale         float64
	Logger        *zap.Logger
}

// ChromedpRenderer prints receipt HTML to PDF through the Chrome DevTools
// Protocol. Roll paper receipts are printed onto a single page cut to the
// receipt's length.
type ChromedpRenderer struct {
	config      *ChromedpConfig
	logger      *zap.Logger
	slots       chan struct{}
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRenderer creates the renderer. Chrome is not started until the
// first receipt is rendered.
func NewChromedpRenderer(config *ChromedpConfig) (*ChromedpRenderer, error) {
	if config == nil {
		config = &ChromedpConfig{}
	}
	if config.DefaultTimeout <= 0 {
		config.DefaultTimeout = defaultChromeTimeout
	}
	if config.Scale <= 0 {
		config.Scale = defaultScale
	}
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = defaultMaxRenders
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRenderer{
		config: config,
		logger: logger,
		slots:  make(chan struct{}, config.MaxConcurrent),
	}
	if config.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), config.RemoteURL)
	} else {
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), r.execOptions()...)
	}
	return r, nil
}

func (r *ChromedpRenderer) execOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if r.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}
	return opts
}

// Render prints req.HTML to PDF
func (r *ChromedpRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil || strings.TrimSpace(req.HTML) == "" {
		return nil, NewRenderError(ErrCodeInvalidHTML, "receipt HTML is empty", nil)
	}
	if !req.PaperSize.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidPaperSize, "invalid paper size: "+string(req.PaperSize), nil)
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = r.config.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return nil, r.contextError(ctx, timeout, ctx.Err())
	}

	start := time.Now()
	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()
	// browser contexts hang off the allocator, not ctx
	stop := context.AfterFunc(ctx, browserCancel)
	defer stop()

	setup := r.pageSetup(req)
	doc := wrapDocument(req)

	var contentPx float64
	var pdf []byte
	err := chromedp.Run(browserCtx,
		chromedp.EmulateViewport(int64(math.Ceil(setup.contentWidthMM*pxPerMM)), 600),
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, doc).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`document.documentElement.scrollHeight`, &contentPx),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if req.PaperSize.IsReceipt() {
				setup.fitRoll(contentPx/pxPerMM, r.config.Scale)
			}
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(mmToInches(setup.widthMM)).
				WithPaperHeight(mmToInches(setup.heightMM)).
				WithMarginTop(mmToInches(setup.margins[0])).
				WithMarginRight(mmToInches(setup.margins[1])).
				WithMarginBottom(mmToInches(setup.margins[2])).
				WithMarginLeft(mmToInches(setup.margins[3])).
				WithScale(r.config.Scale).
				Do(ctx)
			pdf = data
			return err
		}),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.contextError(ctx, timeout, err)
		}
		r.logger.Error("Chrome failed to print receipt", zap.String("title", req.Title), zap.Error(err))
		return nil, NewRenderError(ErrCodeRenderFailed, "chrome could not print the receipt", err)
	}
	if len(pdf) == 0 {
		return nil, NewRenderError(ErrCodeRenderFailed, "chrome returned an empty PDF", nil)
	}

	elapsed := time.Since(start)
	r.logger.Debug("Receipt PDF rendered",
		zap.String("title", req.Title),
		zap.String("paper", req.PaperSize.String()),
		zap.Float64("height_mm", setup.heightMM),
		zap.Int("bytes", len(pdf)),
		zap.Duration("duration", elapsed))

	return &RenderResult{PDFData: pdf, RenderDuration: elapsed, HeightMM: setup.heightMM}, nil
}

func (r *ChromedpRenderer) contextError(ctx context.Context, timeout time.Duration, cause error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewRenderError(ErrCodeRenderTimeout, fmt.Sprintf("receipt rendering timed out after %v", timeout), cause)
	}
	return NewRenderError(ErrCodeRenderTimeout, "receipt rendering was cancelled", cause)
}

// pageSetup is the printed page in millimeters; margins are top, right,
// bottom, left
type pageSetup struct {
	widthMM        float64
	heightMM       float64
	contentWidthMM float64
	margins        [4]float64
}

func (r *ChromedpRenderer) pageSetup(req *RenderRequest) *pageSetup {
	width, height := req.PaperSize.Dimensions()
	m := req.Margins
	s := &pageSetup{
		widthMM:  float64(width),
		heightMM: float64(height),
		margins:  [4]float64{float64(m.Top), float64(m.Right), float64(m.Bottom), float64(m.Left)},
	}
	s.contentWidthMM = s.widthMM - s.margins[1] - s.margins[3]
	if req.PaperSize.IsReceipt() {
		s.heightMM = maxRollHeightMM
	}
	return s
}

// fitRoll cuts a roll page to the measured content plus margins
func (s *pageSetup) fitRoll(contentMM, scale float64) {
	h := math.Ceil(contentMM*scale + s.margins[0] + s.margins[2])
	s.heightMM = math.Min(math.Max(h, minRollHeightMM), maxRollHeightMM)
}

// wrapDocument makes a full HTML document out of a fragment
func wrapDocument(req *RenderRequest) string {
	lower := strings.ToLower(req.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return req.HTML
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if req.Title != "" {
		b.WriteString("<title>" + html.EscapeString(req.Title) + "</title>")
	}
	b.WriteString("</head><body>")
	b.WriteString(req.HTML)
	b.WriteString("</body></html>")
	return b.String()
}

// Close stops the local Chrome, or detaches from the remote one
func (r *ChromedpRenderer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var _ PDFRenderer = (*ChromedpRenderer)(nil)
