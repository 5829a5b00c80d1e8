package billing

import (
	"time"

	"github.com/dukapos/backend/internal/domain/billing"
)

// InvoiceResponse is the application-level projection of an invoice.
// Status carries the live-derived presentation status, not the stored one.
type InvoiceResponse struct {
	ID               string                 `json:"id"`
	InvoiceNumber    string                 `json:"invoice_number"`
	LineItems        []LineItemResponse     `json:"line_items"`
	Subtotal         float64                `json:"subtotal"`
	DiscountAmount   float64                `json:"discount_amount"`
	GrandTotal       float64                `json:"grand_total"`
	AmountDue        float64                `json:"amount_due"`
	AmountPaid       float64                `json:"amount_paid"`
	RemainingBalance float64                `json:"remaining_balance"`
	Status           string                 `json:"status"`
	PaymentMethod    string                 `json:"payment_method"`
	PaymentHistory   []PaymentEntryResponse `json:"payment_history"`
	DueDate          *time.Time             `json:"due_date,omitempty"`
	CustomerName     string                 `json:"customer_name,omitempty"`
	CustomerPhone    string                 `json:"customer_phone,omitempty"`
	Notes            string                 `json:"notes,omitempty"`
	DaysOutstanding  int                    `json:"days_outstanding"`
	PaidAt           *time.Time             `json:"paid_at,omitempty"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	Version          int                    `json:"version"`
}

// LineItemResponse represents one line item in API responses
type LineItemResponse struct {
	ProductRef      string  `json:"product_ref,omitempty"`
	Name            string  `json:"name"`
	Quantity        int64   `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	LineGross       float64 `json:"line_gross"`
	LineNet         float64 `json:"line_net"`
}

// PaymentEntryResponse represents one payment history entry in API responses
type PaymentEntryResponse struct {
	ID          string    `json:"id"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"method"`
	CollectedBy string    `json:"collected_by"`
	CollectedAt time.Time `json:"collected_at"`
	Notes       string    `json:"notes,omitempty"`
}

// ReceiptResponse represents a payment receipt in API responses
type ReceiptResponse struct {
	Amount          float64   `json:"amount"`
	Method          string    `json:"method"`
	CollectedAt     time.Time `json:"collected_at"`
	CollectedBy     string    `json:"collected_by"`
	FullSettlement  bool      `json:"full_settlement"`
	PreviousBalance float64   `json:"previous_balance"`
	NewBalance      float64   `json:"new_balance"`
}

// PaymentResult pairs the updated invoice with the receipt for the payment
type PaymentResult struct {
	Invoice InvoiceResponse `json:"invoice"`
	Receipt ReceiptResponse `json:"receipt"`
}

// newInvoiceResponse builds a response with the status re-derived at "now"
func newInvoiceResponse(inv *billing.Invoice, now time.Time) InvoiceResponse {
	items := make([]LineItemResponse, len(inv.LineItems))
	for i, item := range inv.LineItems {
		items[i] = LineItemResponse{
			ProductRef:      item.ProductRef,
			Name:            item.Name,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice.InexactFloat64(),
			DiscountPercent: item.DiscountPercent.InexactFloat64(),
			LineGross:       item.LineGross.InexactFloat64(),
			LineNet:         item.LineNet.InexactFloat64(),
		}
	}

	history := make([]PaymentEntryResponse, len(inv.PaymentHistory))
	for i, entry := range inv.PaymentHistory {
		history[i] = newPaymentEntryResponse(entry)
	}

	return InvoiceResponse{
		ID:               inv.ID.String(),
		InvoiceNumber:    inv.InvoiceNumber,
		LineItems:        items,
		Subtotal:         inv.Subtotal.InexactFloat64(),
		DiscountAmount:   inv.DiscountAmount.InexactFloat64(),
		GrandTotal:       inv.GrandTotal.InexactFloat64(),
		AmountDue:        inv.AmountDue.InexactFloat64(),
		AmountPaid:       inv.AmountPaid.InexactFloat64(),
		RemainingBalance: inv.RemainingBalance.InexactFloat64(),
		Status:           inv.PresentationStatus(now).String(),
		PaymentMethod:    inv.PaymentMethod.String(),
		PaymentHistory:   history,
		DueDate:          inv.DueDate,
		CustomerName:     inv.CustomerName,
		CustomerPhone:    inv.CustomerPhone,
		Notes:            inv.Notes,
		DaysOutstanding:  inv.DaysOutstanding(now),
		PaidAt:           inv.PaidAt,
		CreatedAt:        inv.CreatedAt,
		UpdatedAt:        inv.UpdatedAt,
		Version:          inv.Version,
	}
}

func newPaymentEntryResponse(entry billing.PaymentEntry) PaymentEntryResponse {
	return PaymentEntryResponse{
		ID:          entry.ID.String(),
		Amount:      entry.Amount.InexactFloat64(),
		Method:      entry.Method.String(),
		CollectedBy: entry.CollectedBy,
		CollectedAt: entry.CollectedAt,
		Notes:       entry.Notes,
	}
}

func newReceiptResponse(receipt *billing.PaymentReceipt) ReceiptResponse {
	return ReceiptResponse{
		Amount:          receipt.Amount.InexactFloat64(),
		Method:          receipt.Method.String(),
		CollectedAt:     receipt.CollectedAt,
		CollectedBy:     receipt.CollectedBy,
		FullSettlement:  receipt.FullSettlement,
		PreviousBalance: receipt.PreviousBalance.InexactFloat64(),
		NewBalance:      receipt.NewBalance.InexactFloat64(),
	}
}
