package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	invoicingapp "github.com/billing/backend/internal/application/invoicing"
	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cliToday = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func TestDemoInvoices_CoverStatuses(t *testing.T) {
	drafts, err := demoInvoices(cliToday)
	require.NoError(t, err)
	require.Len(t, drafts, 3)

	statuses := make([]invoicing.PaymentStatus, 0, len(drafts))
	for _, inv := range drafts {
		assert.Equal(t, demoCustomer, inv.CustomerName)
		assert.True(t, inv.IsNew())
		statuses = append(statuses, inv.Derive(cliToday))
	}
	assert.Equal(t, []invoicing.PaymentStatus{
		invoicing.PaymentStatusPaid,
		invoicing.PaymentStatusPartiallyPaid,
		invoicing.PaymentStatusOverdue,
	}, statuses)
}

func TestWriteOverdue(t *testing.T) {
	item, err := invoicing.NewInvoiceItem("Support", 1, decimal.RequireFromString("480"))
	require.NoError(t, err)
	due := time.Date(2024, 2, 20, 0, 0, 0, 0, time.UTC)
	inv, err := invoicing.NewInvoice("INV-9", "Acme Corp", due.AddDate(0, 0, -30), &due, *item)
	require.NoError(t, err)
	inv.AmountPaid = decimal.RequireFromString("80")

	var buf bytes.Buffer
	require.NoError(t, writeOverdue(&buf, []invoicing.Invoice{*inv}, cliToday))

	out := buf.String()
	assert.Contains(t, out, "DAYS LATE")
	assert.Contains(t, out, "INV-9")
	assert.Contains(t, out, "2024-02-20")
	assert.Contains(t, out, "10")
	assert.Contains(t, out, "400.00")
}

func TestWriteOverdue_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeOverdue(&buf, nil, cliToday))
	assert.Equal(t, "no overdue invoices as of 2024-03-01\n", buf.String())
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	err := writeSummary(&buf, invoicing.Summary{
		TotalInvoices:    3,
		PaidCount:        1,
		UnpaidCount:      2,
		OverdueCount:     1,
		TotalOutstanding: decimal.RequireFromString("510"),
		TotalPaid:        decimal.RequireFromString("1750.5"),
	}, cliToday)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "2024-03-01")
	assert.Contains(t, out, "510.00")
	assert.Contains(t, out, "1750.50")
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "steps"},
		{"migrate", "force"},
		{"migrate", "list"},
		{"seed"},
		{"import"},
		{"overdue"},
		{"summary"},
	} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestMigrateList_Embedded(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"migrate", "list"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "000001_create_invoices")
}

func TestResolveAsOf_Invalid(t *testing.T) {
	_, err := resolveAsOf("03/01/2024", nil)
	assert.Error(t, err)
}

const importCSV = `invoice_number,customer_name,issue_date,due_date,amount_paid,description,quantity,unit_price
IMP-1,Acme,2024-01-01,2024-01-31,0,Design,1,100.00
IMP-1,Acme,2024-01-01,2024-01-31,0,Support,2,25
IMP-2,Globex,2024-02-01,2024-04-01,10,Hosting,1,40
`

func writeCSV(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "invoices.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestImportInvoices_CreatesAndSkipsExisting(t *testing.T) {
	svc := invoicingapp.NewBillingService(
		persistence.NewInMemoryInvoiceRepository(),
		invoicingapp.WithClock(func() time.Time { return cliToday }),
	)
	draft := func(number string) *invoicing.Invoice {
		item, err := invoicing.NewInvoiceItem("Design", 1, decimal.NewFromInt(100))
		require.NoError(t, err)
		due := cliToday.AddDate(0, 0, -1)
		inv, err := invoicing.NewInvoice(number, "Acme", cliToday.AddDate(0, -1, 0), &due, *item)
		require.NoError(t, err)
		return inv
	}

	var out bytes.Buffer
	require.NoError(t, importInvoices(context.Background(), svc, []*invoicing.Invoice{draft("IMP-1")}, &out))
	assert.Contains(t, out.String(), "IMP-1  OVERDUE")
	assert.Contains(t, out.String(), "1 invoice(s) imported, 0 skipped")

	out.Reset()
	require.NoError(t, importInvoices(context.Background(), svc, []*invoicing.Invoice{draft("IMP-1"), draft("IMP-2")}, &out))
	assert.Contains(t, out.String(), "IMP-1  skipped, already exists")
	assert.Contains(t, out.String(), "1 invoice(s) imported, 1 skipped")
}

func TestImportCommand_DryRun(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"import", "--dry-run", writeCSV(t, importCSV)})

	require.NoError(t, root.Execute())
	assert.Equal(t, "3 row(s) read, 2 invoice(s) valid\n", out.String())
}

func TestImportCommand_RowErrorsAbort(t *testing.T) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"import", "--dry-run", writeCSV(t, importCSV+"IMP-3,Initech,2024-13-01,,,Audit,1,10\n")})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 row error(s)")
	assert.Contains(t, errOut.String(), "row 5, column 'issue_date'")
	assert.Empty(t, out.String())
}

func TestImportCommand_SkipInvalid(t *testing.T) {
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs([]string{"import", "--dry-run", "--skip-invalid", writeCSV(t, importCSV+"IMP-3,Initech,2024-13-01,,,Audit,1,10\n")})

	require.NoError(t, root.Execute())
	assert.Equal(t, "4 row(s) read, 2 invoice(s) valid\n", out.String())
}

func TestImportOptions_Delimiter(t *testing.T) {
	_, err := (&importOptions{delimiter: ";;"}).delimiterRune()
	assert.Error(t, err)

	r, err := (&importOptions{delimiter: ";"}).delimiterRune()
	require.NoError(t, err)
	assert.Equal(t, ';', r)
}
