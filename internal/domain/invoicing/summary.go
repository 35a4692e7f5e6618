package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Summary aggregates counts and money totals over a set of invoices.
// UnpaidCount is TotalInvoices - PaidCount and therefore includes
// partially paid and overdue invoices; OverdueCount overlaps it.
type Summary struct {
	TotalInvoices    int
	PaidCount        int
	UnpaidCount      int
	OverdueCount     int
	TotalOutstanding decimal.Decimal
	TotalPaid        decimal.Decimal
}

// Summarize folds over invoices in a single pass
func Summarize(invoices []Invoice, today time.Time) Summary {
	s := Summary{
		TotalOutstanding: decimal.Zero,
		TotalPaid:        decimal.Zero,
	}
	for idx := range invoices {
		inv := &invoices[idx]
		s.TotalInvoices++
		if inv.Status.IsPaid() {
			s.PaidCount++
		}
		if inv.IsOverdue(today) {
			s.OverdueCount++
		}
		s.TotalOutstanding = s.TotalOutstanding.Add(inv.BalanceDue())
		s.TotalPaid = s.TotalPaid.Add(inv.AmountPaid)
	}
	s.UnpaidCount = s.TotalInvoices - s.PaidCount
	return s
}
