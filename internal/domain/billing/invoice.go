package billing

import (
	"fmt"
	"time"

	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/dukapos/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// Invoice is the aggregate root of the settlement ledger. It tracks one
// sale's amount owed versus amount paid over its lifetime.
//
// Invariants held on every read and after every write:
//   - 0 <= AmountPaid <= AmountDue
//   - RemainingBalance == max(0, AmountDue - AmountPaid)
//   - AmountPaid == sum of PaymentHistory amounts
//   - Status == COMPLETED exactly when AmountPaid >= AmountDue (terminal statuses aside)
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber    string          `json:"invoice_number"`
	LineItems        LineItems       `json:"line_items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	DiscountAmount   decimal.Decimal `json:"discount_amount"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	AmountDue        decimal.Decimal `json:"amount_due"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	RemainingBalance decimal.Decimal `json:"remaining_balance"`
	Status           InvoiceStatus   `json:"status"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentHistory   PaymentHistory  `json:"payment_history"`
	DueDate          *time.Time      `json:"due_date"`
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone"`
	Notes            string          `json:"notes"`
	PaidAt           *time.Time      `json:"paid_at"`
	CancelledAt      *time.Time      `json:"cancelled_at"`
	CancelReason     string          `json:"cancel_reason"`
	RefundedAt       *time.Time      `json:"refunded_at"`
	RefundReason     string          `json:"refund_reason"`
}

// NewInvoice creates a new invoice record. Totals are computed from the line
// items; amountDue may differ from the grand total when the sale was adjusted.
// The invoice starts unpaid - initial payments go through ApplyPayment so the
// payment history stays the single source of truth for AmountPaid.
func NewInvoice(
	invoiceNumber string,
	lineItems LineItems,
	amountDue decimal.Decimal,
	paymentMethod PaymentMethod,
	customerName string,
	customerPhone string,
	dueDate *time.Time,
	now time.Time,
) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError(ErrCodeValidation, "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError(ErrCodeValidation, "Invoice number cannot exceed 50 characters")
	}
	if len(lineItems) == 0 {
		return nil, shared.NewDomainError(ErrCodeValidation, "Invoice requires at least one line item")
	}
	if !paymentMethod.IsValid() {
		return nil, NewInvalidPaymentMethodError(paymentMethod)
	}
	if amountDue.IsNegative() {
		return nil, shared.NewDomainError(ErrCodeInvalidAmount, "Amount due cannot be negative")
	}

	inv := &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		InvoiceNumber:     invoiceNumber,
		LineItems:         lineItems,
		Subtotal:          lineItems.Subtotal(),
		DiscountAmount:    lineItems.TotalDiscount(),
		GrandTotal:        lineItems.GrandTotal(),
		AmountDue:         amountDue,
		AmountPaid:        decimal.Zero,
		RemainingBalance:  amountDue,
		PaymentMethod:     paymentMethod,
		PaymentHistory:    PaymentHistory{},
		DueDate:           dueDate,
		CustomerName:      customerName,
		CustomerPhone:     customerPhone,
	}
	inv.Status = DeriveStatus(inv.AmountDue, inv.AmountPaid, inv.DueDate, now, "")
	inv.CreatedAt = now
	inv.UpdatedAt = now

	return inv, nil
}

// ApplyPayment validates and applies a payment against the invoice.
// Validation order: amount, method, terminal status, settled balance,
// then the overpayment guard on the effective amount.
//
// When fullSettlement is set the effective amount is the remaining balance
// and the requested amount may be zero; it must never be negative.
func (inv *Invoice) ApplyPayment(amount valueobject.Money, method PaymentMethod, collectedBy, notes string, fullSettlement bool, now time.Time) (*PaymentReceipt, error) {
	if amount.IsNegative() || (amount.IsZero() && !fullSettlement) {
		return nil, NewInvalidAmountError(amount.Amount())
	}
	if !method.IsValid() {
		return nil, NewInvalidPaymentMethodError(method)
	}
	if inv.Status.IsTerminal() {
		return nil, NewTerminalStatusError(inv.InvoiceNumber, inv.Status)
	}
	if !inv.RemainingBalance.IsPositive() {
		return nil, NewAlreadySettledError(inv.InvoiceNumber)
	}

	// The receipt's previous balance must be captured before any mutation.
	previousBalance := inv.RemainingBalance

	effective := amount.Amount()
	if fullSettlement {
		effective = inv.RemainingBalance
	}
	if effective.GreaterThan(inv.RemainingBalance) {
		return nil, NewOverpaymentError(effective, inv.RemainingBalance)
	}

	entry := NewPaymentEntry(effective, method, collectedBy, notes, now)
	inv.PaymentHistory = append(inv.PaymentHistory, entry)
	inv.AmountPaid = inv.AmountPaid.Add(effective)
	inv.RemainingBalance = remainingBalance(inv.AmountDue, inv.AmountPaid)
	inv.Status = DeriveStatus(inv.AmountDue, inv.AmountPaid, inv.DueDate, now, inv.Status)

	if inv.Status == InvoiceStatusCompleted && inv.PaidAt == nil {
		paidAt := now
		inv.PaidAt = &paidAt
	}

	inv.UpdatedAt = now
	inv.IncrementVersion()

	return &PaymentReceipt{
		Amount:          effective,
		Method:          method,
		CollectedAt:     now,
		CollectedBy:     collectedBy,
		FullSettlement:  fullSettlement,
		PreviousBalance: previousBalance,
		NewBalance:      inv.RemainingBalance,
	}, nil
}

// Cancel administratively voids the invoice. Invoices with payments cannot
// be cancelled - they go through Refund instead.
func (inv *Invoice) Cancel(reason string, now time.Time) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if inv.AmountPaid.IsPositive() {
		return shared.NewDomainError("HAS_PAYMENTS", "Cannot cancel an invoice with recorded payments; refund it instead")
	}
	if reason == "" {
		return shared.NewDomainError(ErrCodeValidation, "Cancel reason is required")
	}

	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	return nil
}

// Refund administratively closes the invoice after payments were collected.
// The payment history is retained untouched for audit.
func (inv *Invoice) Refund(reason string, now time.Time) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot refund invoice in %s status", inv.Status))
	}
	if reason == "" {
		return shared.NewDomainError(ErrCodeValidation, "Refund reason is required")
	}

	inv.Status = InvoiceStatusRefunded
	inv.RefundedAt = &now
	inv.RefundReason = reason
	inv.UpdatedAt = now
	inv.IncrementVersion()

	return nil
}

// SetDueDate updates the due date
func (inv *Invoice) SetDueDate(dueDate *time.Time, now time.Time) error {
	if inv.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", "Cannot modify due date of a closed invoice")
	}

	inv.DueDate = dueDate
	inv.Status = DeriveStatus(inv.AmountDue, inv.AmountPaid, inv.DueDate, now, inv.Status)
	inv.UpdatedAt = now
	inv.IncrementVersion()

	return nil
}

// SetNotes sets the free-form notes
func (inv *Invoice) SetNotes(notes string, now time.Time) {
	inv.Notes = notes
	inv.UpdatedAt = now
	inv.IncrementVersion()
}

// CheckInvariants verifies the settlement invariants. Writes that would
// violate them must be rejected rather than silently corrected.
func (inv *Invoice) CheckInvariants() error {
	if inv.AmountPaid.IsNegative() {
		return shared.NewDomainError("INVARIANT_VIOLATION", "Amount paid cannot be negative")
	}
	if inv.AmountPaid.GreaterThan(inv.AmountDue) {
		return shared.NewDomainError("INVARIANT_VIOLATION", "Amount paid cannot exceed amount due")
	}
	if !inv.RemainingBalance.Equal(remainingBalance(inv.AmountDue, inv.AmountPaid)) {
		return shared.NewDomainError("INVARIANT_VIOLATION", "Remaining balance does not match amount due minus amount paid")
	}
	if !inv.PaymentHistory.TotalAmount().Equal(inv.AmountPaid) {
		return shared.NewDomainError("INVARIANT_VIOLATION", "Payment history sum does not match amount paid")
	}
	if !inv.Status.IsTerminal() {
		settled := inv.AmountPaid.GreaterThanOrEqual(inv.AmountDue)
		if (inv.Status == InvoiceStatusCompleted) != settled {
			return shared.NewDomainError("INVARIANT_VIOLATION", "Completed status does not match settled balance")
		}
	}
	return nil
}

// PresentationStatus re-derives the status against the given time. Reads
// must use this rather than the stored status so overdue detection reflects
// "now" instead of the last write.
func (inv *Invoice) PresentationStatus(now time.Time) InvoiceStatus {
	return DeriveStatus(inv.AmountDue, inv.AmountPaid, inv.DueDate, now, inv.Status)
}

// IsOverdue returns true if the live-derived status is overdue
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.PresentationStatus(now) == InvoiceStatusOverdue
}

// IsOpen returns true if the invoice still carries a balance and is not closed
func (inv *Invoice) IsOpen() bool {
	return inv.RemainingBalance.IsPositive() && !inv.Status.IsTerminal()
}

// DaysOutstanding returns days elapsed since the due date when set, otherwise
// since creation. Never negative.
func (inv *Invoice) DaysOutstanding(now time.Time) int {
	ref := inv.CreatedAt
	if inv.DueDate != nil {
		ref = *inv.DueDate
	}
	days := int(now.Sub(ref).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// DaysOverdue returns days past the due date (0 if not overdue)
func (inv *Invoice) DaysOverdue(now time.Time) int {
	if !inv.IsOverdue(now) {
		return 0
	}
	return int(now.Sub(*inv.DueDate).Hours() / 24)
}

// PaymentCount returns the number of payments applied
func (inv *Invoice) PaymentCount() int {
	return len(inv.PaymentHistory)
}

// remainingBalance computes max(0, due - paid)
func remainingBalance(due, paid decimal.Decimal) decimal.Decimal {
	balance := due.Sub(paid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}
