package models

import (
	"time"

	"github.com/dukapos/backend/internal/domain/billing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate.
// Line items and payment history are stored as JSONB documents; they are
// read and written as whole values, never queried row-by-row.
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber    string                 `gorm:"type:varchar(50);not null;uniqueIndex"`
	LineItems        billing.LineItems      `gorm:"type:jsonb;not null;default:'[]'"`
	Subtotal         decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	DiscountAmount   decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	GrandTotal       decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	AmountDue        decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	AmountPaid       decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	RemainingBalance decimal.Decimal        `gorm:"type:decimal(18,4);not null;default:0"`
	Status           billing.InvoiceStatus  `gorm:"type:varchar(20);not null;index"`
	PaymentMethod    billing.PaymentMethod  `gorm:"type:varchar(20);not null;index"`
	PaymentHistory   billing.PaymentHistory `gorm:"type:jsonb;not null;default:'[]'"`
	DueDate          *time.Time             `gorm:"index"`
	CustomerName     string                 `gorm:"type:varchar(200);index"`
	CustomerPhone    string                 `gorm:"type:varchar(50)"`
	Notes            string                 `gorm:"type:text"`
	PaidAt           *time.Time
	CancelledAt      *time.Time
	CancelReason     string `gorm:"type:text"`
	RefundedAt       *time.Time
	RefundReason     string `gorm:"type:text"`
}

// TableName specifies the table name
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to the domain aggregate
func (m *InvoiceModel) ToDomain() *billing.Invoice {
	inv := &billing.Invoice{
		InvoiceNumber:    m.InvoiceNumber,
		LineItems:        m.LineItems,
		Subtotal:         m.Subtotal,
		DiscountAmount:   m.DiscountAmount,
		GrandTotal:       m.GrandTotal,
		AmountDue:        m.AmountDue,
		AmountPaid:       m.AmountPaid,
		RemainingBalance: m.RemainingBalance,
		Status:           m.Status,
		PaymentMethod:    m.PaymentMethod,
		PaymentHistory:   m.PaymentHistory,
		DueDate:          m.DueDate,
		CustomerName:     m.CustomerName,
		CustomerPhone:    m.CustomerPhone,
		Notes:            m.Notes,
		PaidAt:           m.PaidAt,
		CancelledAt:      m.CancelledAt,
		CancelReason:     m.CancelReason,
		RefundedAt:       m.RefundedAt,
		RefundReason:     m.RefundReason,
	}
	m.PopulateAggregateRoot(&inv.BaseAggregateRoot)
	return inv
}

// InvoiceModelFromDomain converts the domain aggregate to the persistence model
func InvoiceModelFromDomain(inv *billing.Invoice) *InvoiceModel {
	model := &InvoiceModel{
		InvoiceNumber:    inv.InvoiceNumber,
		LineItems:        inv.LineItems,
		Subtotal:         inv.Subtotal,
		DiscountAmount:   inv.DiscountAmount,
		GrandTotal:       inv.GrandTotal,
		AmountDue:        inv.AmountDue,
		AmountPaid:       inv.AmountPaid,
		RemainingBalance: inv.RemainingBalance,
		Status:           inv.Status,
		PaymentMethod:    inv.PaymentMethod,
		PaymentHistory:   inv.PaymentHistory,
		DueDate:          inv.DueDate,
		CustomerName:     inv.CustomerName,
		CustomerPhone:    inv.CustomerPhone,
		Notes:            inv.Notes,
		PaidAt:           inv.PaidAt,
		CancelledAt:      inv.CancelledAt,
		CancelReason:     inv.CancelReason,
		RefundedAt:       inv.RefundedAt,
		RefundReason:     inv.RefundReason,
	}
	model.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	return model
}
