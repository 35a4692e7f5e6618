package csvimport

import (
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Invoice columns. Rows sharing an invoice_number form one invoice and
// must agree on the invoice-level columns.
const (
	ColInvoiceNumber = "invoice_number"
	ColCustomerName  = "customer_name"
	ColIssueDate     = "issue_date"
	ColDueDate       = "due_date"
	ColAmountPaid    = "amount_paid"
	ColDescription   = "description"
	ColQuantity      = "quantity"
	ColUnitPrice     = "unit_price"
)

// RequiredColumns must be present in the header
var RequiredColumns = []string{
	ColInvoiceNumber, ColCustomerName, ColIssueDate,
	ColDescription, ColQuantity, ColUnitPrice,
}

var headerColumns = []string{ColCustomerName, ColIssueDate, ColDueDate, ColAmountPaid}

// InvoiceRules are the per-row checks run before an invoice is assembled
func InvoiceRules() []FieldRule {
	return []FieldRule{
		Field(ColInvoiceNumber).Required().MaxLength(50).Build(),
		Field(ColCustomerName).Required().MaxLength(200).Build(),
		Field(ColIssueDate).Required().Date().Build(),
		Field(ColDueDate).Date().Build(),
		Field(ColAmountPaid).Decimal().Build(),
		Field(ColDescription).Required().MaxLength(255).Build(),
		Field(ColQuantity).Required().Int().MinValue(decimal.NewFromInt(1)).Build(),
		Field(ColUnitPrice).Required().Decimal().MinValue(decimal.Zero).Build(),
	}
}

// Result holds the invoices read from a file. Invoices with any row error
// are left out entirely.
type Result struct {
	Invoices []*invoicing.Invoice
	Rows     int
	Errors   *ErrorCollection
}

type invoiceGroup struct {
	first  *Row
	items  []invoicing.InvoiceItem
	failed bool
}

// ReadInvoices parses the file and assembles one draft invoice per
// invoice_number, in order of first appearance
func ReadInvoices(r io.Reader, maxErrors int, opts ...ParserOption) (*Result, error) {
	parser, err := NewParser(r, opts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	if missing := parser.MissingHeaders(RequiredColumns); len(missing) > 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "CSV file is missing columns: "+strings.Join(missing, ", "))
	}

	result := &Result{Errors: NewErrorCollection(maxErrors)}
	validator := NewFieldValidator(InvoiceRules(), result.Errors)

	groups := make(map[string]*invoiceGroup)
	var order []string

	for {
		row, err := parser.ReadRow()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Errors.Add(RowError{Row: parser.currentRow, Code: ErrCodeMalformedRow, Message: err.Error()})
			continue
		}
		if row.IsEmpty() {
			continue
		}
		result.Rows++

		number := row.Get(ColInvoiceNumber)
		group, seen := groups[number]
		if !seen {
			group = &invoiceGroup{first: row}
			groups[number] = group
			order = append(order, number)
		}

		if !validator.ValidateRow(row) {
			group.failed = true
			continue
		}
		if seen && !sameHeader(group.first, row, result.Errors) {
			group.failed = true
			continue
		}

		qty, _ := strconv.Atoi(row.Get(ColQuantity))
		item, err := invoicing.NewInvoiceItem(row.Get(ColDescription), qty, decimal.RequireFromString(row.Get(ColUnitPrice)))
		if err != nil {
			addDomainError(result.Errors, row.LineNumber, err)
			group.failed = true
			continue
		}
		group.items = append(group.items, *item)
	}

	if result.Rows == 0 && !result.Errors.HasErrors() {
		return nil, ErrNoDataRows
	}

	for _, number := range order {
		group := groups[number]
		if group.failed || number == "" {
			continue
		}
		inv, err := buildInvoice(number, group)
		if err != nil {
			addDomainError(result.Errors, group.first.LineNumber, err)
			continue
		}
		result.Invoices = append(result.Invoices, inv)
	}
	return result, nil
}

func buildInvoice(number string, group *invoiceGroup) (*invoicing.Invoice, error) {
	row := group.first
	issueDate, _ := invoicing.ParseDate(row.Get(ColIssueDate))

	var dueDate *time.Time
	if v := row.Get(ColDueDate); v != "" {
		d, _ := invoicing.ParseDate(v)
		dueDate = &d
	}

	inv, err := invoicing.NewInvoice(number, row.Get(ColCustomerName), issueDate, dueDate, group.items...)
	if err != nil {
		return nil, err
	}
	if v := row.Get(ColAmountPaid); v != "" {
		paid := decimal.RequireFromString(v)
		inv.AmountPaid = invoicing.NormalizeAmount(&paid)
	}
	return inv, nil
}

func sameHeader(first, row *Row, errs *ErrorCollection) bool {
	ok := true
	for _, col := range headerColumns {
		if row.Get(col) != first.Get(col) {
			errs.Add(RowError{
				Row:     row.LineNumber,
				Column:  col,
				Code:    ErrCodeInconsistent,
				Message: "differs from row " + strconv.Itoa(first.LineNumber) + " of the same invoice",
				Value:   row.Get(col),
			})
			ok = false
		}
	}
	return ok
}

func addDomainError(errs *ErrorCollection, line int, err error) {
	msg := err.Error()
	if domainErr, ok := shared.AsDomainError(err); ok {
		msg = domainErr.Message
	}
	errs.Add(RowError{Row: line, Code: ErrCodeInvalidInvoice, Message: msg})
}
