package invoicing

import (
	"strings"

	"github.com/billing/backend/internal/domain/shared"
)

// PaymentStatus represents the derived payment state of an invoice
type PaymentStatus string

const (
	PaymentStatusUnpaid        PaymentStatus = "UNPAID"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusOverdue       PaymentStatus = "OVERDUE"
)

// AllPaymentStatuses returns every PaymentStatus variant in display order
func AllPaymentStatuses() []PaymentStatus {
	return []PaymentStatus{
		PaymentStatusUnpaid,
		PaymentStatusPartiallyPaid,
		PaymentStatusPaid,
		PaymentStatusOverdue,
	}
}

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPartiallyPaid, PaymentStatusPaid, PaymentStatusOverdue:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// IsPaid returns true when the invoice is settled in full
func (s PaymentStatus) IsPaid() bool {
	return s == PaymentStatusPaid
}

// ParsePaymentStatus parses a status name, case-insensitively
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	status := PaymentStatus(strings.ToUpper(strings.TrimSpace(value)))
	if !status.IsValid() {
		return "", shared.NewDomainError("INVALID_STATUS", "Unknown payment status: "+value)
	}
	return status, nil
}
