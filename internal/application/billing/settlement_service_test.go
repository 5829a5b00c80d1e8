package billing

import (
	"context"
	"testing"
	"time"

	"github.com/dukapos/backend/internal/domain/billing"
	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var svcNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func requireDomainCode(t *testing.T, err error, code string) {
	t.Helper()
	var domainErr *shared.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, code, domainErr.Code)
}

func newSettlementFixture(t *testing.T) (*SettlementService, *fakeInvoiceRepo) {
	t.Helper()
	repo := newFakeInvoiceRepo(svcNow)
	svc := NewSettlementService(repo, zap.NewNop(),
		WithSettlementClock(func() time.Time { return svcNow }))
	return svc, repo
}

func creditInvoiceInput(amountDue float64, dueDate *time.Time) CreateInvoiceInput {
	due := decimal.NewFromFloat(amountDue)
	return CreateInvoiceInput{
		LineItems: []LineItemInput{
			{Name: "Maize flour 2kg", Quantity: 1, UnitPrice: due},
		},
		AmountDue:     &due,
		PaymentMethod: billing.PaymentMethodCredit,
		CustomerName:  "Wanjiku Njeri",
		CustomerPhone: "+254700000001",
		DueDate:       dueDate,
	}
}

func TestSettlementService_CreateInvoice(t *testing.T) {
	svc, repo := newSettlementFixture(t)
	ctx := context.Background()

	resp, err := svc.CreateInvoice(ctx, CreateInvoiceInput{
		LineItems: []LineItemInput{
			{Name: "Sugar 1kg", Quantity: 3, UnitPrice: decimal.NewFromInt(150)},
			{Name: "Cooking oil 1L", Quantity: 2, UnitPrice: decimal.NewFromInt(300), DiscountPercent: decimal.NewFromInt(10)},
		},
		PaymentMethod: billing.PaymentMethodCredit,
		CustomerName:  "Wanjiku Njeri",
		CustomerPhone: "+254700000001",
		Notes:         "Weekly stock-up",
	})
	require.NoError(t, err)

	assert.Equal(t, "INV-20260315-00001", resp.InvoiceNumber)
	assert.InDelta(t, 1050.0, resp.Subtotal, 0.001)
	assert.InDelta(t, 60.0, resp.DiscountAmount, 0.001)
	assert.InDelta(t, 990.0, resp.GrandTotal, 0.001)
	assert.InDelta(t, 990.0, resp.AmountDue, 0.001, "amount due defaults to the grand total")
	assert.InDelta(t, 990.0, resp.RemainingBalance, 0.001)
	assert.Equal(t, billing.InvoiceStatusPending.String(), resp.Status)
	assert.Equal(t, "Weekly stock-up", resp.Notes)
	assert.Empty(t, resp.PaymentHistory)

	stored, err := repo.FindByInvoiceNumber(ctx, resp.InvoiceNumber)
	require.NoError(t, err)
	assert.Equal(t, resp.ID, stored.ID.String())
}

func TestSettlementService_CreateInvoice_WithUpfrontPayment(t *testing.T) {
	svc, _ := newSettlementFixture(t)

	input := creditInvoiceInput(500, nil)
	input.AmountPaid = decimal.NewFromInt(200)
	input.CollectedBy = "till-1"

	resp, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, billing.InvoiceStatusPartiallyPaid.String(), resp.Status)
	assert.InDelta(t, 200.0, resp.AmountPaid, 0.001)
	assert.InDelta(t, 300.0, resp.RemainingBalance, 0.001)
	require.Len(t, resp.PaymentHistory, 1)
	assert.Equal(t, "till-1", resp.PaymentHistory[0].CollectedBy)
}

func TestSettlementService_CreateInvoice_InvalidLineItem(t *testing.T) {
	svc, _ := newSettlementFixture(t)

	_, err := svc.CreateInvoice(context.Background(), CreateInvoiceInput{
		LineItems:     []LineItemInput{{Name: "", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}},
		PaymentMethod: billing.PaymentMethodCash,
	})
	requireDomainCode(t, err, billing.ErrCodeValidation)
}

func TestSettlementService_CreateInvoice_RetriesOnDuplicateNumber(t *testing.T) {
	svc, repo := newSettlementFixture(t)
	repo.duplicatesLeft = 1

	resp, err := svc.CreateInvoice(context.Background(), creditInvoiceInput(100, nil))
	require.NoError(t, err, "a number collision within the retry budget must succeed")

	assert.Equal(t, "INV-20260315-00002", resp.InvoiceNumber,
		"the colliding number must be regenerated, not reused")
}

func TestSettlementService_CreateInvoice_DuplicateBudgetExhausted(t *testing.T) {
	repo := newFakeInvoiceRepo(svcNow)
	svc := NewSettlementService(repo, zap.NewNop(),
		WithSettlementClock(func() time.Time { return svcNow }),
		WithMaxRetries(2))
	repo.duplicatesLeft = 2

	_, err := svc.CreateInvoice(context.Background(), creditInvoiceInput(100, nil))
	requireDomainCode(t, err, shared.ErrAlreadyExists.Code)
}

func TestSettlementService_CreateInvoice_UpfrontOverpaymentRejected(t *testing.T) {
	svc, _ := newSettlementFixture(t)

	input := creditInvoiceInput(100, nil)
	input.AmountPaid = decimal.NewFromInt(150)

	_, err := svc.CreateInvoice(context.Background(), input)
	var overpayment *billing.OverpaymentError
	require.ErrorAs(t, err, &overpayment)
}

func mustCreateInvoice(t *testing.T, svc *SettlementService, input CreateInvoiceInput) uuid.UUID {
	t.Helper()
	resp, err := svc.CreateInvoice(context.Background(), input)
	require.NoError(t, err)
	id, err := uuid.Parse(resp.ID)
	require.NoError(t, err)
	return id
}

func TestSettlementService_ApplyPayment(t *testing.T) {
	svc, _ := newSettlementFixture(t)
	ctx := context.Background()
	id := mustCreateInvoice(t, svc, creditInvoiceInput(100, nil))

	result, err := svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount:      decimal.NewFromInt(40),
		Method:      billing.PaymentMethodCash,
		CollectedBy: "till-1",
	})
	require.NoError(t, err)

	assert.InDelta(t, 40.0, result.Receipt.Amount, 0.001)
	assert.InDelta(t, 100.0, result.Receipt.PreviousBalance, 0.001)
	assert.InDelta(t, 60.0, result.Receipt.NewBalance, 0.001)
	assert.False(t, result.Receipt.FullSettlement)
	assert.Equal(t, billing.InvoiceStatusPartiallyPaid.String(), result.Invoice.Status)
	assert.Equal(t, 2, result.Invoice.Version)

	result, err = svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount:         decimal.Zero,
		Method:         billing.PaymentMethodMobileA,
		FullSettlement: true,
	})
	require.NoError(t, err)

	assert.InDelta(t, 60.0, result.Receipt.Amount, 0.001)
	assert.True(t, result.Receipt.FullSettlement)
	assert.Equal(t, billing.InvoiceStatusCompleted.String(), result.Invoice.Status)
	assert.NotNil(t, result.Invoice.PaidAt)
}

func TestSettlementService_ApplyPayment_ValidatesBeforeLoad(t *testing.T) {
	svc, repo := newSettlementFixture(t)
	ctx := context.Background()
	unknownID := uuid.New()

	// A malformed request must never report NOT_FOUND.
	_, err := svc.ApplyPayment(ctx, unknownID, ApplyPaymentInput{
		Amount: decimal.NewFromInt(-5),
		Method: billing.PaymentMethodCash,
	})
	requireDomainCode(t, err, billing.ErrCodeInvalidAmount)

	_, err = svc.ApplyPayment(ctx, unknownID, ApplyPaymentInput{
		Amount: decimal.NewFromInt(10),
		Method: billing.PaymentMethod("CHEQUE"),
	})
	requireDomainCode(t, err, billing.ErrCodeInvalidPaymentMethod)

	assert.Zero(t, repo.findCalls, "validation failures must not hit the store")

	_, err = svc.ApplyPayment(ctx, unknownID, ApplyPaymentInput{
		Amount: decimal.NewFromInt(10),
		Method: billing.PaymentMethodCash,
	})
	requireDomainCode(t, err, shared.ErrNotFound.Code)
}

func TestSettlementService_ApplyPayment_Overpayment(t *testing.T) {
	svc, repo := newSettlementFixture(t)
	ctx := context.Background()
	id := mustCreateInvoice(t, svc, creditInvoiceInput(50, nil))

	_, err := svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount: decimal.NewFromInt(100),
		Method: billing.PaymentMethodCash,
	})

	var overpayment *billing.OverpaymentError
	require.ErrorAs(t, err, &overpayment)
	assert.True(t, overpayment.Attempted.Equal(decimal.NewFromInt(100)))
	assert.True(t, overpayment.Remaining.Equal(decimal.NewFromInt(50)))

	stored := repo.get(id)
	assert.True(t, stored.AmountPaid.IsZero(), "rejected payment must not change the record")
	assert.Equal(t, 1, stored.Version)
}

func TestSettlementService_ApplyPayment_RetriesOnConflict(t *testing.T) {
	svc, repo := newSettlementFixture(t)
	ctx := context.Background()
	id := mustCreateInvoice(t, svc, creditInvoiceInput(100, nil))

	repo.conflictsLeft = 2

	result, err := svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount: decimal.NewFromInt(100),
		Method: billing.PaymentMethodCash,
	})
	require.NoError(t, err, "conflicts within the retry budget must succeed")
	assert.Equal(t, billing.InvoiceStatusCompleted.String(), result.Invoice.Status)
}

func TestSettlementService_ApplyPayment_ConflictBudgetExhausted(t *testing.T) {
	repo := newFakeInvoiceRepo(svcNow)
	svc := NewSettlementService(repo, zap.NewNop(),
		WithSettlementClock(func() time.Time { return svcNow }),
		WithMaxRetries(2))
	ctx := context.Background()
	id := mustCreateInvoice(t, svc, creditInvoiceInput(100, nil))

	repo.conflictsLeft = 2

	_, err := svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount: decimal.NewFromInt(100),
		Method: billing.PaymentMethodCash,
	})
	requireDomainCode(t, err, shared.ErrConcurrencyConflict.Code)
}

func TestSettlementService_ApplyPayment_StoreUnavailable(t *testing.T) {
	svc, repo := newSettlementFixture(t)
	ctx := context.Background()
	id := mustCreateInvoice(t, svc, creditInvoiceInput(100, nil))

	repo.failAll = true

	_, err := svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount: decimal.NewFromInt(10),
		Method: billing.PaymentMethodCash,
	})
	requireDomainCode(t, err, shared.ErrStoreUnavailable.Code)
	assert.ErrorContains(t, err, "connection refused",
		"the driver failure must stay attached for diagnosis")
}

func TestSettlementService_ApplyPayment_AlreadySettled(t *testing.T) {
	svc, repo := newSettlementFixture(t)
	ctx := context.Background()
	id := mustCreateInvoice(t, svc, creditInvoiceInput(100, nil))

	_, err := svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount: decimal.NewFromInt(100),
		Method: billing.PaymentMethodCash,
	})
	require.NoError(t, err)
	settled := repo.get(id)

	_, err = svc.ApplyPayment(ctx, id, ApplyPaymentInput{
		Amount: decimal.NewFromInt(1),
		Method: billing.PaymentMethodCash,
	})
	requireDomainCode(t, err, billing.ErrCodeAlreadySettled)

	after := repo.get(id)
	assert.Equal(t, settled.Version, after.Version, "rejected payment must leave the record unchanged")
	assert.True(t, settled.AmountPaid.Equal(after.AmountPaid))
}
