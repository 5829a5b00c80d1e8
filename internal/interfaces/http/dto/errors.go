package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeStoreUnavailable is used when the backing store cannot be reached
	ErrCodeStoreUnavailable = "ERR_STORE_UNAVAILABLE"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Settlement error codes
const (
	// ErrCodeInvalidAmount is used when a payment amount fails validation
	ErrCodeInvalidAmount = "ERR_INVALID_AMOUNT"
	// ErrCodeInvalidPaymentMethod is used when the payment method is not recognized
	ErrCodeInvalidPaymentMethod = "ERR_INVALID_PAYMENT_METHOD"
	// ErrCodeAlreadySettled is used when paying an invoice that is already settled
	ErrCodeAlreadySettled = "ERR_ALREADY_SETTLED"
	// ErrCodeInvoiceCancelled is used when operating on a cancelled invoice
	ErrCodeInvoiceCancelled = "ERR_INVOICE_CANCELLED"
	// ErrCodeInvoiceRefunded is used when operating on a refunded invoice
	ErrCodeInvoiceRefunded = "ERR_INVOICE_REFUNDED"
	// ErrCodeOverpaymentRejected is used when a payment exceeds the remaining balance
	ErrCodeOverpaymentRejected = "ERR_OVERPAYMENT_REJECTED"
	// ErrCodeHasPayments is used when cancelling an invoice that has recorded payments
	ErrCodeHasPayments = "ERR_HAS_PAYMENTS"
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeInvariantViolation is used when a write would corrupt ledger consistency
	ErrCodeInvariantViolation = "ERR_INVARIANT_VIOLATION"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:          http.StatusInternalServerError,
	ErrCodeInternal:         http.StatusInternalServerError,
	ErrCodeStoreUnavailable: http.StatusServiceUnavailable,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Settlement errors. Bad payment inputs are 400; operations that are
	// well-formed but rejected by ledger rules are 422.
	ErrCodeInvalidAmount:        http.StatusBadRequest,
	ErrCodeInvalidPaymentMethod: http.StatusBadRequest,
	ErrCodeAlreadySettled:       http.StatusUnprocessableEntity,
	ErrCodeInvoiceCancelled:     http.StatusUnprocessableEntity,
	ErrCodeInvoiceRefunded:      http.StatusUnprocessableEntity,
	ErrCodeOverpaymentRejected:  http.StatusUnprocessableEntity,
	ErrCodeHasPayments:          http.StatusUnprocessableEntity,
	ErrCodeInvalidState:         http.StatusUnprocessableEntity,
	ErrCodeInvariantViolation:   http.StatusInternalServerError,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps bare domain error codes to the wire format.
// Domain errors carry codes like NOT_FOUND; the API exposes ERR_NOT_FOUND.
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":              ErrCodeNotFound,
	"ALREADY_EXISTS":         ErrCodeAlreadyExists,
	"INVALID_INPUT":          ErrCodeInvalidInput,
	"INVALID_STATE":          ErrCodeInvalidState,
	"CONCURRENCY_CONFLICT":   ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":       ErrCodeValidation,
	"BAD_REQUEST":            ErrCodeBadRequest,
	"INTERNAL_ERROR":         ErrCodeInternal,
	"STORE_UNAVAILABLE":      ErrCodeStoreUnavailable,
	"INVARIANT_VIOLATION":    ErrCodeInvariantViolation,
	"INVALID_AMOUNT":         ErrCodeInvalidAmount,
	"INVALID_PAYMENT_METHOD": ErrCodeInvalidPaymentMethod,
	"ALREADY_SETTLED":        ErrCodeAlreadySettled,
	"INVOICE_CANCELLED":      ErrCodeInvoiceCancelled,
	"INVOICE_REFUNDED":       ErrCodeInvoiceRefunded,
	"OVERPAYMENT_REJECTED":   ErrCodeOverpaymentRejected,
	"HAS_PAYMENTS":           ErrCodeHasPayments,
}

// NormalizeErrorCode converts a domain error code to the wire format.
// If the code is already in the wire format or unknown, returns it as-is.
func NormalizeErrorCode(code string) string {
	if newCode, ok := DomainErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
