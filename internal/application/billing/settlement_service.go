package billing

import (
	"context"
	"errors"
	"time"

	"github.com/dukapos/backend/internal/domain/billing"
	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/dukapos/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const defaultMaxRetries = 3

// SettlementService is the payment application engine. It owns invoice
// creation and the read-modify-write cycle of applying payments, serialized
// per record through the repository's optimistic version check.
type SettlementService struct {
	invoiceRepo billing.InvoiceRepository
	logger      *zap.Logger
	now         func() time.Time
	maxRetries  int
}

// SettlementServiceOption is a functional option for SettlementService
type SettlementServiceOption func(*SettlementService)

// WithSettlementClock overrides the time source (used in tests)
func WithSettlementClock(now func() time.Time) SettlementServiceOption {
	return func(s *SettlementService) {
		s.now = now
	}
}

// WithMaxRetries overrides how often a conflicting write is retried
func WithMaxRetries(n int) SettlementServiceOption {
	return func(s *SettlementService) {
		s.maxRetries = n
	}
}

// NewSettlementService creates a new SettlementService
func NewSettlementService(invoiceRepo billing.InvoiceRepository, logger *zap.Logger, opts ...SettlementServiceOption) *SettlementService {
	s := &SettlementService{
		invoiceRepo: invoiceRepo,
		logger:      logger.Named("settlement"),
		now:         time.Now,
		maxRetries:  defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LineItemInput describes one line of a new invoice
type LineItemInput struct {
	ProductRef      string
	Name            string
	Quantity        int64
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
}

// CreateInvoiceInput describes a new invoice record. AmountDue defaults to
// the grand total of the line items when nil. A positive AmountPaid is
// recorded through the payment engine so the history invariant holds from
// the first write.
type CreateInvoiceInput struct {
	LineItems     []LineItemInput
	AmountDue     *decimal.Decimal
	AmountPaid    decimal.Decimal
	PaymentMethod billing.PaymentMethod
	CustomerName  string
	CustomerPhone string
	DueDate       *time.Time
	Notes         string
	CollectedBy   string
}

// CreateInvoice creates and persists a new invoice record
func (s *SettlementService) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (*InvoiceResponse, error) {
	now := s.now()

	items := make(billing.LineItems, 0, len(input.LineItems))
	for _, li := range input.LineItems {
		item, err := billing.NewLineItem(li.ProductRef, li.Name, li.Quantity, li.UnitPrice, li.DiscountPercent)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	amountDue := items.GrandTotal()
	if input.AmountDue != nil {
		amountDue = *input.AmountDue
	}

	number, err := s.invoiceRepo.GenerateInvoiceNumber(ctx)
	if err != nil {
		return nil, storeError(err)
	}

	inv, err := billing.NewInvoice(number, items, amountDue, input.PaymentMethod,
		input.CustomerName, input.CustomerPhone, input.DueDate, now)
	if err != nil {
		return nil, err
	}
	if input.Notes != "" {
		inv.SetNotes(input.Notes, now)
	}

	if input.AmountPaid.IsPositive() {
		amount, merr := valueobject.NewMoney(input.AmountPaid, valueobject.DefaultCurrency)
		if merr != nil {
			return nil, shared.NewDomainError(billing.ErrCodeInvalidAmount, merr.Error())
		}
		if _, perr := inv.ApplyPayment(amount, input.PaymentMethod, input.CollectedBy, "Collected at sale", false, now); perr != nil {
			return nil, perr
		}
	}

	if err := inv.CheckInvariants(); err != nil {
		return nil, err
	}

	// Two concurrent creates can draw the same daily sequence number; the
	// unique index rejects the loser, which regenerates and tries again.
	for attempt := 0; ; attempt++ {
		err := s.invoiceRepo.Save(ctx, inv)
		if err == nil {
			break
		}
		if !isDuplicateNumber(err) || attempt+1 >= s.maxRetries {
			return nil, storeError(err)
		}
		s.logger.Warn("Invoice number already taken, regenerating",
			zap.String("invoice_number", inv.InvoiceNumber),
			zap.Int("attempt", attempt+1),
		)
		number, nerr := s.invoiceRepo.GenerateInvoiceNumber(ctx)
		if nerr != nil {
			return nil, storeError(nerr)
		}
		inv.InvoiceNumber = number
	}

	s.logger.Info("Invoice created",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("status", inv.Status.String()),
		zap.String("amount_due", inv.AmountDue.String()),
	)

	resp := newInvoiceResponse(inv, now)
	return &resp, nil
}

// ApplyPaymentInput describes a payment to apply against an invoice
type ApplyPaymentInput struct {
	Amount         decimal.Decimal
	Method         billing.PaymentMethod
	CollectedBy    string
	Notes          string
	FullSettlement bool
}

// ApplyPayment applies a payment against the invoice identified by id.
// Input validation runs before the record is loaded so a malformed request
// never reports NOT_FOUND. A conflicting concurrent write is retried with a
// fresh read up to maxRetries times, then surfaced as CONCURRENCY_CONFLICT.
func (s *SettlementService) ApplyPayment(ctx context.Context, id uuid.UUID, input ApplyPaymentInput) (*PaymentResult, error) {
	if input.Amount.IsNegative() || (input.Amount.IsZero() && !input.FullSettlement) {
		return nil, billing.NewInvalidAmountError(input.Amount)
	}
	if !input.Method.IsValid() {
		return nil, billing.NewInvalidPaymentMethodError(input.Method)
	}

	amount := valueobject.NewMoneyKES(input.Amount)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		inv, err := s.invoiceRepo.FindByID(ctx, id)
		if err != nil {
			return nil, storeError(err)
		}

		now := s.now()
		receipt, err := inv.ApplyPayment(amount, input.Method, input.CollectedBy, input.Notes, input.FullSettlement, now)
		if err != nil {
			return nil, err
		}
		if err := inv.CheckInvariants(); err != nil {
			return nil, err
		}

		err = s.invoiceRepo.SaveWithLock(ctx, inv)
		if err == nil {
			s.logger.Info("Payment applied",
				zap.String("invoice_number", inv.InvoiceNumber),
				zap.String("amount", receipt.Amount.String()),
				zap.String("method", receipt.Method.String()),
				zap.String("status", inv.Status.String()),
				zap.Int("attempt", attempt+1),
			)
			return &PaymentResult{
				Invoice: newInvoiceResponse(inv, now),
				Receipt: newReceiptResponse(receipt),
			}, nil
		}
		if !isConcurrencyConflict(err) {
			return nil, storeError(err)
		}

		s.logger.Warn("Concurrent write detected, retrying payment",
			zap.String("invoice_id", id.String()),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, shared.ErrConcurrencyConflict
}

// isConcurrencyConflict reports whether err is the repository's optimistic lock failure
func isConcurrencyConflict(err error) bool {
	var domainErr *shared.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == shared.ErrConcurrencyConflict.Code
}

// isDuplicateNumber reports whether err is the unique-index rejection of an
// invoice number that another writer claimed first
func isDuplicateNumber(err error) bool {
	var domainErr *shared.DomainError
	return errors.As(err, &domainErr) && domainErr.Code == shared.ErrAlreadyExists.Code
}

// storeError passes domain errors through and wraps raw driver failures as
// STORE_UNAVAILABLE so callers always see a typed failure. The driver error
// stays attached as the cause so logs keep the outage diagnosis.
func storeError(err error) error {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return shared.ErrStoreUnavailable.WithCause(err)
}
