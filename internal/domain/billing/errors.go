package billing

import (
	"fmt"

	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes produced by the settlement ledger
const (
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeInvalidPaymentMethod = "INVALID_PAYMENT_METHOD"
	ErrCodeAlreadySettled       = "ALREADY_SETTLED"
	ErrCodeInvoiceCancelled     = "INVOICE_CANCELLED"
	ErrCodeInvoiceRefunded      = "INVOICE_REFUNDED"
	ErrCodeOverpaymentRejected  = "OVERPAYMENT_REJECTED"
	ErrCodeValidation           = "VALIDATION_ERROR"
)

// NewInvalidAmountError builds the rejection for non-positive payment amounts
func NewInvalidAmountError(amount decimal.Decimal) *shared.DomainError {
	return shared.NewDomainError(ErrCodeInvalidAmount,
		fmt.Sprintf("Payment amount must be positive, got %s", amount.String()))
}

// NewInvalidPaymentMethodError builds the rejection for methods outside the closed set
func NewInvalidPaymentMethodError(method PaymentMethod) *shared.DomainError {
	return shared.NewDomainError(ErrCodeInvalidPaymentMethod,
		fmt.Sprintf("Payment method %q is not recognized", method))
}

// NewAlreadySettledError builds the rejection for payments against a zero balance
func NewAlreadySettledError(invoiceNumber string) *shared.DomainError {
	return shared.NewDomainError(ErrCodeAlreadySettled,
		fmt.Sprintf("Invoice %s is already fully settled", invoiceNumber))
}

// NewTerminalStatusError builds the rejection for payments against cancelled or refunded invoices
func NewTerminalStatusError(invoiceNumber string, status InvoiceStatus) *shared.DomainError {
	code := ErrCodeInvoiceCancelled
	if status == InvoiceStatusRefunded {
		code = ErrCodeInvoiceRefunded
	}
	return shared.NewDomainError(code,
		fmt.Sprintf("Invoice %s is %s and no longer accepts payments", invoiceNumber, status))
}

// OverpaymentError rejects a payment whose effective amount exceeds the
// remaining balance. Both the attempted amount and the remaining balance are
// carried so callers can report them to the client.
type OverpaymentError struct {
	Attempted decimal.Decimal
	Remaining decimal.Decimal
}

// Error implements the error interface
func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("Payment of %s exceeds remaining balance of %s",
		e.Attempted.StringFixed(2), e.Remaining.StringFixed(2))
}

// NewOverpaymentError creates a new overpayment rejection
func NewOverpaymentError(attempted, remaining decimal.Decimal) *OverpaymentError {
	return &OverpaymentError{Attempted: attempted, Remaining: remaining}
}
