package printing

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

//go:embed templates/*.html.tmpl
var templateFS embed.FS

const invoiceTemplateName = "invoice.html.tmpl"

// Company identifies the issuer printed on every invoice
type Company struct {
	Name    string
	Address string
}

// TemplateEngine renders invoices with the embedded html/template set.
// Amounts are formatted for the configured locale and currency.
type TemplateEngine struct {
	tmpl     *template.Template
	printer  *message.Printer
	titler   cases.Caser
	currency string
	company  Company
}

// TemplateEngineOption configures the template engine
type TemplateEngineOption func(*TemplateEngine)

// WithLocale sets the BCP 47 locale used for number formatting.
// Unparseable tags fall back to English.
func WithLocale(locale string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		tag, err := language.Parse(locale)
		if err != nil {
			tag = language.English
		}
		e.printer = message.NewPrinter(tag)
		e.titler = cases.Title(tag)
	}
}

// WithCurrency sets the ISO 4217 code printed next to amounts
func WithCurrency(code string) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.currency = strings.ToUpper(strings.TrimSpace(code))
	}
}

// WithCompany sets the issuer block
func WithCompany(company Company) TemplateEngineOption {
	return func(e *TemplateEngine) {
		e.company = company
	}
}

// NewTemplateEngine parses the embedded templates
func NewTemplateEngine(opts ...TemplateEngineOption) (*TemplateEngine, error) {
	e := &TemplateEngine{
		printer:  message.NewPrinter(language.English),
		titler:   cases.Title(language.English),
		currency: "USD",
	}
	for _, opt := range opts {
		opt(e)
	}

	tmpl, err := template.New("invoices").Funcs(e.funcMap()).ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, NewRenderError(ErrCodeInvalidHTML, "failed to parse invoice templates", err)
	}
	e.tmpl = tmpl
	return e, nil
}

func (e *TemplateEngine) funcMap() template.FuncMap {
	return template.FuncMap{
		"money":      e.formatMoney,
		"date":       formatDate,
		"statusText": e.statusText,
		"statusKey":  func(s invoicing.PaymentStatus) string { return strings.ToLower(s.String()) },
		"inc":        func(i int) int { return i + 1 },
	}
}

// invoiceView is the data bound to the invoice template
type invoiceView struct {
	Company    Company
	Invoice    *invoicing.Invoice
	Subtotal   decimal.Decimal
	Total      decimal.Decimal
	BalanceDue decimal.Decimal
	Overpaid   bool
	PrintedAt  time.Time
}

// RenderInvoice renders the invoice as a complete HTML document
func (e *TemplateEngine) RenderInvoice(inv *invoicing.Invoice, printedAt time.Time) (string, error) {
	if inv == nil {
		return "", NewRenderError(ErrCodeInvalidHTML, "invoice is nil", nil)
	}

	balance := inv.BalanceDue()
	view := invoiceView{
		Company:    e.company,
		Invoice:    inv,
		Subtotal:   inv.Subtotal(),
		Total:      inv.Total(),
		BalanceDue: balance,
		Overpaid:   balance.IsNegative(),
		PrintedAt:  printedAt,
	}

	var buf bytes.Buffer
	if err := e.tmpl.ExecuteTemplate(&buf, invoiceTemplateName, view); err != nil {
		return "", NewRenderError(ErrCodeRenderFailed, "failed to execute invoice template", err)
	}
	return buf.String(), nil
}

// formatMoney prints the amount with two decimals and locale grouping
func (e *TemplateEngine) formatMoney(v decimal.Decimal) string {
	amount := v.Round(2).InexactFloat64()
	return e.printer.Sprintf("%v %s", number.Decimal(amount, number.Scale(2)), e.currency)
}

// statusText turns PARTIALLY_PAID into "Partially Paid"
func (e *TemplateEngine) statusText(s invoicing.PaymentStatus) string {
	return e.titler.String(strings.ReplaceAll(strings.ToLower(s.String()), "_", " "))
}

func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(invoicing.DateLayout)
	case *time.Time:
		if t == nil {
			return "-"
		}
		return t.Format(invoicing.DateLayout)
	default:
		return ""
	}
}
