package printing

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"io/fs"
	"maps"
	"strings"
	"time"

	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.html
var receiptTemplates embed.FS

// Names of the built-in templates
const (
	TemplateReceipt     = "receipt"
	TemplateReceiptPage = "receipt_page"
)

// TemplateEngine executes named html/template sets with the formatting
// functions receipts and terminal fragments share.
type TemplateEngine struct {
	funcMap template.FuncMap
	sources []templateSource
	tmpl    *template.Template
}

type templateSource struct {
	fsys     fs.FS
	patterns []string
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithTemplates adds templates parsed from fsys on top of the built-in
// receipt templates. Later sources may redefine earlier names.
func WithTemplates(fsys fs.FS, patterns ...string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.sources = append(e.sources, templateSource{fsys: fsys, patterns: patterns})
	}
}

// WithFuncs adds or overrides template functions
func WithFuncs(funcs template.FuncMap) TemplateEngineOption {
	return func(e *TemplateEngine) {
		maps.Copy(e.funcMap, funcs)
	}
}

// NewTemplateEngine parses the built-in receipt templates plus any
// configured sources. It fails if a template does not parse.
func NewTemplateEngine(opts ...TemplateEngineOption) (*TemplateEngine, error) {
	e := &TemplateEngine{
		funcMap: template.FuncMap{
			"money":          formatMoney,
			"formatDecimal":  formatDecimal,
			"formatDateTime": formatDateTime,
			"upper":          upperCase,
			"title":          titleCase,
			"truncate":       truncate,
		},
		sources: []templateSource{{fsys: receiptTemplates, patterns: []string{"templates/*.html"}}},
	}

	for _, opt := range opts {
		opt(e)
	}

	tmpl := template.New("").Funcs(e.funcMap)
	for _, src := range e.sources {
		var err error
		tmpl, err = tmpl.ParseFS(src.fsys, src.patterns...)
		if err != nil {
			return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse templates", err)
		}
	}
	e.tmpl = tmpl

	return e, nil
}

// Render executes the named template with data
func (e *TemplateEngine) Render(ctx context.Context, name string, data any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "render cancelled", err)
	}

	t := e.tmpl.Lookup(name)
	if t == nil {
		return "", NewRenderError(ErrCodeUnknownTemplate, "unknown template: "+name, nil)
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute template "+name, err)
	}
	return buf.String(), nil
}

// Has reports whether a template with the given name is defined
func (e *TemplateEngine) Has(name string) bool {
	return e.tmpl.Lookup(name) != nil
}

// formatMoney renders v with symbol prefixed and two decimal places.
// Example: ("$", 22) -> "$22.00"
func formatMoney(symbol string, v any) string {
	return valueobject.NewMoney(toDecimal(v)).Format(symbol)
}

// formatDecimal formats a decimal with specified precision
func formatDecimal(v any, precision int) string {
	return toDecimal(v).StringFixed(int32(precision))
}

// formatDateTime formats a time as "2006-01-02 15:04:05". Strings that do
// not parse as a time are returned unchanged.
func formatDateTime(v any) string {
	if s, ok := v.(string); ok {
		t := toTime(s)
		if t.IsZero() {
			return s
		}
		return t.Format(time.DateTime)
	}
	t := toTime(v)
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateTime)
}

func upperCase(v any) string {
	return cases.Upper(language.Und).String(toString(v))
}

func titleCase(v any) string {
	return cases.Title(language.English).String(toString(v))
}

// truncate shortens s to max runes, ending with "..." when cut
func truncate(s string, max int) string {
	const suffix = "..."
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= len(suffix) {
		return string(runes[:max])
	}
	return string(runes[:max-len(suffix)]) + suffix
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case interface{ String() string }:
		return val.String()
	default:
		return ""
	}
}

// toDecimal converts the numeric shapes templates see into a decimal
func toDecimal(v any) decimal.Decimal {
	switch val := v.(type) {
	case valueobject.Money:
		return val.Amount()
	case decimal.Decimal:
		return val
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case float64:
		return decimal.NewFromFloat(val)
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(val))
		if err != nil {
			return decimal.Zero
		}
		return d
	default:
		return decimal.Zero
	}
}

func toTime(v any) time.Time {
	switch val := v.(type) {
	case time.Time:
		return val
	case string:
		formats := []string{
			time.RFC3339Nano,
			"2006-01-02T15:04:05.999999",
			time.DateTime,
			time.DateOnly,
		}
		for _, f := range formats {
			if t, err := time.Parse(f, val); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
