package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentMethod represents how a payment was collected.
// The set is closed and validated on every payment.
type PaymentMethod string

const (
	PaymentMethodCash    PaymentMethod = "CASH"
	PaymentMethodMobileA PaymentMethod = "MOBILE_A" // primary mobile money rail
	PaymentMethodMobileB PaymentMethod = "MOBILE_B" // secondary mobile money rail
	PaymentMethodCredit  PaymentMethod = "CREDIT"
)

// IsValid checks if the payment method is part of the closed set
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodMobileA, PaymentMethodMobileB, PaymentMethodCredit:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentEntry records one payment applied to an invoice.
// It is a value object within the Invoice aggregate, stored as JSONB.
// Entries are append-only: never reordered, never removed.
type PaymentEntry struct {
	ID          uuid.UUID       `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method"`
	CollectedBy string          `json:"collected_by"`
	CollectedAt time.Time       `json:"collected_at"`
	Notes       string          `json:"notes,omitempty"`
}

// NewPaymentEntry creates a new payment entry
func NewPaymentEntry(amount decimal.Decimal, method PaymentMethod, collectedBy, notes string, collectedAt time.Time) PaymentEntry {
	return PaymentEntry{
		ID:          uuid.New(),
		Amount:      amount,
		Method:      method,
		CollectedBy: collectedBy,
		CollectedAt: collectedAt,
		Notes:       notes,
	}
}

// PaymentHistory is a slice of PaymentEntry that implements GORM Scanner/Valuer for JSONB storage
type PaymentHistory []PaymentEntry

// Value implements driver.Valuer interface for GORM to store as JSONB
func (h PaymentHistory) Value() (driver.Value, error) {
	if h == nil {
		return "[]", nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (h *PaymentHistory) Scan(value interface{}) error {
	if value == nil {
		*h = PaymentHistory{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan PaymentHistory: unsupported type")
	}

	if len(bytes) == 0 {
		*h = PaymentHistory{}
		return nil
	}

	return json.Unmarshal(bytes, h)
}

// TotalAmount returns the sum of all entry amounts
func (h PaymentHistory) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, e := range h {
		total = total.Add(e.Amount)
	}
	return total
}

// ByMethod groups the history entries by payment method, preserving order
func (h PaymentHistory) ByMethod() map[PaymentMethod]PaymentHistory {
	grouped := make(map[PaymentMethod]PaymentHistory)
	for _, e := range h {
		grouped[e.Method] = append(grouped[e.Method], e)
	}
	return grouped
}

// PaymentReceipt describes the outcome of a successful payment application.
// PreviousBalance is the balance captured before the mutation; NewBalance after.
type PaymentReceipt struct {
	Amount          decimal.Decimal `json:"amount"`
	Method          PaymentMethod   `json:"method"`
	CollectedAt     time.Time       `json:"collected_at"`
	CollectedBy     string          `json:"collected_by"`
	FullSettlement  bool            `json:"full_settlement"`
	PreviousBalance decimal.Decimal `json:"previous_balance"`
	NewBalance      decimal.Decimal `json:"new_balance"`
}
