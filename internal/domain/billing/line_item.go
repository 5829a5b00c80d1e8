package billing

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// LineItem represents one sold item on an invoice.
// Line items are owned exclusively by the invoice and never mutated by payments.
type LineItem struct {
	ProductRef      string          `json:"product_ref"`
	Name            string          `json:"name"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	LineGross       decimal.Decimal `json:"line_gross"`
	LineNet         decimal.Decimal `json:"line_net"`
}

var oneHundred = decimal.NewFromInt(100)

// NewLineItem creates a line item, computing the gross and net line totals
func NewLineItem(productRef, name string, quantity int64, unitPrice, discountPercent decimal.Decimal) (LineItem, error) {
	if name == "" {
		return LineItem{}, shared.NewDomainError("VALIDATION_ERROR", "Line item name cannot be empty")
	}
	if quantity < 1 {
		return LineItem{}, shared.NewDomainError("VALIDATION_ERROR", "Line item quantity must be at least 1")
	}
	if unitPrice.IsNegative() {
		return LineItem{}, shared.NewDomainError("VALIDATION_ERROR", "Line item unit price cannot be negative")
	}
	if discountPercent.IsNegative() || discountPercent.GreaterThan(oneHundred) {
		return LineItem{}, shared.NewDomainError("VALIDATION_ERROR", "Line item discount must be between 0 and 100")
	}

	gross := unitPrice.Mul(decimal.NewFromInt(quantity))
	discount := gross.Mul(discountPercent).Div(oneHundred)

	return LineItem{
		ProductRef:      productRef,
		Name:            name,
		Quantity:        quantity,
		UnitPrice:       unitPrice,
		DiscountPercent: discountPercent,
		LineGross:       gross,
		LineNet:         gross.Sub(discount),
	}, nil
}

// DiscountAmount returns the monetary discount on this line
func (l LineItem) DiscountAmount() decimal.Decimal {
	return l.LineGross.Sub(l.LineNet)
}

// LineItems is a slice of LineItem that implements GORM Scanner/Valuer for JSONB storage
type LineItems []LineItem

// Value implements driver.Valuer interface for GORM to store as JSONB
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner interface for GORM to read from JSONB
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = LineItems{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("failed to scan LineItems: unsupported type")
	}

	if len(bytes) == 0 {
		*l = LineItems{}
		return nil
	}

	return json.Unmarshal(bytes, l)
}

// Subtotal returns the sum of gross line totals
func (l LineItems) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l {
		total = total.Add(item.LineGross)
	}
	return total
}

// TotalDiscount returns the sum of line discounts
func (l LineItems) TotalDiscount() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l {
		total = total.Add(item.DiscountAmount())
	}
	return total
}

// GrandTotal returns the sum of net line totals
func (l LineItems) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range l {
		total = total.Add(item.LineNet)
	}
	return total
}
