package invoicing

import (
	"time"

	"github.com/shopspring/decimal"
)

// DeriveStatus classifies an invoice from its financial facts.
// Rules are evaluated in order and the first match wins:
//
//  1. total - amountPaid <= 0          -> PAID
//  2. dueDate is before today          -> OVERDUE
//  3. amountPaid > 0                   -> PARTIALLY_PAID
//  4. otherwise                        -> UNPAID
//
// Dates are compared by calendar day. A nil dueDate is never overdue.
func DeriveStatus(total, amountPaid decimal.Decimal, dueDate *time.Time, today time.Time) PaymentStatus {
	if total.Sub(amountPaid).LessThanOrEqual(decimal.Zero) {
		return PaymentStatusPaid
	}
	if isPastDue(dueDate, today) {
		return PaymentStatusOverdue
	}
	if amountPaid.GreaterThan(decimal.Zero) {
		return PaymentStatusPartiallyPaid
	}
	return PaymentStatusUnpaid
}

func isPastDue(dueDate *time.Time, today time.Time) bool {
	if dueDate == nil {
		return false
	}
	return CalendarDate(*dueDate).Before(CalendarDate(today))
}

// NormalizeAmount turns an absent or negative payment amount into zero
func NormalizeAmount(amount *decimal.Decimal) decimal.Decimal {
	if amount == nil || amount.IsNegative() {
		return decimal.Zero
	}
	return *amount
}
