package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the settlement status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusPending       InvoiceStatus = "PENDING"        // No payment yet, balance outstanding
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID" // Some payment applied, balance outstanding
	InvoiceStatusCompleted     InvoiceStatus = "COMPLETED"      // Fully settled, balance zero
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"        // Past due date with balance outstanding
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"      // Administratively voided before settlement
	InvoiceStatusRefunded      InvoiceStatus = "REFUNDED"       // Administratively refunded after payments
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPartiallyPaid, InvoiceStatusCompleted,
		InvoiceStatusOverdue, InvoiceStatusCancelled, InvoiceStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for administratively closed statuses.
// Terminal statuses are never re-derived and refuse further payments.
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusCancelled || s == InvoiceStatusRefunded
}

// DeriveStatus computes the settlement status from the invoice amounts,
// the due date and the current time. It is a pure function and must be
// re-evaluated on every read that displays status: elapsed time alone can
// move a record into OVERDUE without any write happening.
//
// Evaluation order matters: a terminal prior status always wins, and the
// settled check runs before the overdue check so a fully paid invoice past
// its due date is never reported overdue.
func DeriveStatus(amountDue, amountPaid decimal.Decimal, dueDate *time.Time, now time.Time, prior InvoiceStatus) InvoiceStatus {
	if prior.IsTerminal() {
		return prior
	}

	balance := amountDue.Sub(amountPaid)
	if balance.IsNegative() {
		balance = decimal.Zero
	}

	switch {
	case amountPaid.GreaterThanOrEqual(amountDue):
		return InvoiceStatusCompleted
	case dueDate != nil && now.After(*dueDate) && balance.IsPositive():
		return InvoiceStatusOverdue
	case amountPaid.IsPositive():
		return InvoiceStatusPartiallyPaid
	default:
		return InvoiceStatusPending
	}
}
