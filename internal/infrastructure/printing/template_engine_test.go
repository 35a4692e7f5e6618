package printing

import (
	"testing"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var printedAt = time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)

func newPrintableInvoice(t *testing.T, paid string) *invoicing.Invoice {
	t.Helper()
	hosting, err := invoicing.NewInvoiceItem("Hosting <annual>", 1, decimal.RequireFromString("1200.00"))
	require.NoError(t, err)
	support, err := invoicing.NewInvoiceItem("Support hours", 3, decimal.RequireFromString("45.50"))
	require.NoError(t, err)

	due := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	inv, err := invoicing.NewInvoice("INV-2024/001", "Acme Corp", time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), &due, *hosting, *support)
	require.NoError(t, err)
	inv.AmountPaid = decimal.RequireFromString(paid)
	inv.Derive(printedAt)
	return inv
}

func TestTemplateEngine_RenderInvoice(t *testing.T) {
	engine, err := NewTemplateEngine(
		WithCompany(Company{Name: "Billing Co", Address: "1 Ledger Way"}),
		WithCurrency("eur"),
	)
	require.NoError(t, err)

	html, err := engine.RenderInvoice(newPrintableInvoice(t, "200"), printedAt)
	require.NoError(t, err)

	assert.Contains(t, html, "<title>Invoice INV-2024/001</title>")
	assert.Contains(t, html, "Billing Co")
	assert.Contains(t, html, "1 Ledger Way")
	assert.Contains(t, html, "Acme Corp")
	assert.Contains(t, html, "2024-06-01")
	assert.Contains(t, html, "2024-07-01")
	assert.Contains(t, html, "1,336.50 EUR")
	assert.Contains(t, html, "136.50 EUR")
	assert.Contains(t, html, "1,136.50 EUR")
	assert.Contains(t, html, "Partially Paid")
	assert.Contains(t, html, "status-partially_paid")
	assert.Contains(t, html, "Balance due")
	assert.Contains(t, html, "Hosting &lt;annual&gt;")
	assert.NotContains(t, html, "Hosting <annual>")
}

func TestTemplateEngine_RenderInvoice_Overpaid(t *testing.T) {
	engine, err := NewTemplateEngine()
	require.NoError(t, err)

	html, err := engine.RenderInvoice(newPrintableInvoice(t, "1400"), printedAt)
	require.NoError(t, err)
	assert.Contains(t, html, "Credit")
	assert.Contains(t, html, "-63.50 USD")
	assert.Contains(t, html, ">Paid<")
}

func TestTemplateEngine_RenderInvoice_NoItemsNoDueDate(t *testing.T) {
	engine, err := NewTemplateEngine()
	require.NoError(t, err)

	inv, err := invoicing.NewInvoice("INV-EMPTY", "Acme Corp", printedAt, nil)
	require.NoError(t, err)

	html, err := engine.RenderInvoice(inv, printedAt)
	require.NoError(t, err)
	assert.Contains(t, html, "No items")
	assert.Contains(t, html, "<td>-</td>")
}

func TestTemplateEngine_RenderInvoice_Nil(t *testing.T) {
	engine, err := NewTemplateEngine()
	require.NoError(t, err)

	_, err = engine.RenderInvoice(nil, printedAt)
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
}

func TestTemplateEngine_Locale(t *testing.T) {
	engine, err := NewTemplateEngine(WithLocale("de-DE"), WithCurrency("EUR"))
	require.NoError(t, err)
	assert.Equal(t, "1.234,50 EUR", engine.formatMoney(decimal.RequireFromString("1234.5")))

	fallback, err := NewTemplateEngine(WithLocale("not a locale!"))
	require.NoError(t, err)
	assert.Equal(t, "1,234.50 USD", fallback.formatMoney(decimal.RequireFromString("1234.499")))
}

func TestTemplateEngine_StatusText(t *testing.T) {
	engine, err := NewTemplateEngine()
	require.NoError(t, err)

	tests := map[invoicing.PaymentStatus]string{
		invoicing.PaymentStatusUnpaid:        "Unpaid",
		invoicing.PaymentStatusPartiallyPaid: "Partially Paid",
		invoicing.PaymentStatusPaid:          "Paid",
		invoicing.PaymentStatusOverdue:       "Overdue",
	}
	for status, want := range tests {
		assert.Equal(t, want, engine.statusText(status))
	}
}
