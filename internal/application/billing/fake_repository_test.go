package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dukapos/backend/internal/domain/billing"
	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// fakeInvoiceRepo is an in-memory InvoiceRepository with injectable failures
type fakeInvoiceRepo struct {
	mu             sync.Mutex
	invoices       map[uuid.UUID]billing.Invoice
	now            time.Time
	nextNumber     int
	conflictsLeft  int  // SaveWithLock fails this many times with a version conflict
	duplicatesLeft int  // Save fails this many times as a number collision
	failAll        bool // every call fails with a raw driver error
	findCalls      int
}

func newFakeInvoiceRepo(now time.Time) *fakeInvoiceRepo {
	return &fakeInvoiceRepo{
		invoices: make(map[uuid.UUID]billing.Invoice),
		now:      now,
	}
}

func cloneInvoice(inv billing.Invoice) billing.Invoice {
	history := make(billing.PaymentHistory, len(inv.PaymentHistory))
	copy(history, inv.PaymentHistory)
	inv.PaymentHistory = history
	items := make(billing.LineItems, len(inv.LineItems))
	copy(items, inv.LineItems)
	inv.LineItems = items
	return inv
}

func (r *fakeInvoiceRepo) put(inv *billing.Invoice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.invoices[inv.ID] = cloneInvoice(*inv)
}

func (r *fakeInvoiceRepo) get(id uuid.UUID) billing.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return cloneInvoice(r.invoices[id])
}

func (r *fakeInvoiceRepo) FindByID(_ context.Context, id uuid.UUID) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findCalls++
	if r.failAll {
		return nil, errors.New("connection refused")
	}
	inv, ok := r.invoices[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	clone := cloneInvoice(inv)
	return &clone, nil
}

func (r *fakeInvoiceRepo) FindByInvoiceNumber(_ context.Context, invoiceNumber string) (*billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errors.New("connection refused")
	}
	for _, inv := range r.invoices {
		if inv.InvoiceNumber == invoiceNumber {
			clone := cloneInvoice(inv)
			return &clone, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeInvoiceRepo) matches(inv billing.Invoice, filter billing.InvoiceFilter) bool {
	if filter.Status != nil {
		status := *filter.Status
		if status.IsTerminal() {
			if inv.Status != status {
				return false
			}
		} else if inv.PresentationStatus(r.now) != status {
			return false
		}
	} else if !filter.IncludeClosed && !inv.IsOpen() {
		return false
	}
	if filter.PaymentMethod != nil && inv.PaymentMethod != *filter.PaymentMethod {
		return false
	}
	if filter.DueWithinDays != nil {
		horizon := r.now.Add(time.Duration(*filter.DueWithinDays) * 24 * time.Hour)
		if inv.DueDate == nil || inv.DueDate.After(horizon) {
			return false
		}
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(inv.InvoiceNumber), needle) &&
			!strings.Contains(strings.ToLower(inv.CustomerName), needle) &&
			!strings.Contains(inv.CustomerPhone, needle) {
			return false
		}
	}
	return true
}

func (r *fakeInvoiceRepo) FindAll(_ context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return nil, errors.New("connection refused")
	}
	var result []billing.Invoice
	for _, inv := range r.invoices {
		if r.matches(inv, filter) {
			result = append(result, cloneInvoice(inv))
		}
	}
	return result, nil
}

func (r *fakeInvoiceRepo) Count(_ context.Context, filter billing.InvoiceFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return 0, errors.New("connection refused")
	}
	var count int64
	for _, inv := range r.invoices {
		if r.matches(inv, filter) {
			count++
		}
	}
	return count, nil
}

func (r *fakeInvoiceRepo) Save(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("connection refused")
	}
	if r.duplicatesLeft > 0 {
		r.duplicatesLeft--
		return shared.ErrAlreadyExists
	}
	r.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (r *fakeInvoiceRepo) SaveWithLock(_ context.Context, inv *billing.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return errors.New("connection refused")
	}
	if r.conflictsLeft > 0 {
		r.conflictsLeft--
		return shared.ErrConcurrencyConflict
	}
	stored, ok := r.invoices[inv.ID]
	if !ok {
		return shared.ErrNotFound
	}
	if stored.Version != inv.Version-1 {
		return shared.ErrConcurrencyConflict
	}
	r.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (r *fakeInvoiceRepo) GenerateInvoiceNumber(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failAll {
		return "", errors.New("connection refused")
	}
	r.nextNumber++
	return fmt.Sprintf("INV-%s-%05d", r.now.Format("20060102"), r.nextNumber), nil
}

// fakeSummaryCache is an in-memory SummaryCache
type fakeSummaryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gets    int
	sets    int
	failing bool
}

func newFakeSummaryCache() *fakeSummaryCache {
	return &fakeSummaryCache{entries: make(map[string][]byte)}
}

func (c *fakeSummaryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	if c.failing {
		return nil, errors.New("redis: connection pool timeout")
	}
	return c.entries[key], nil
}

func (c *fakeSummaryCache) Set(_ context.Context, key string, payload []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets++
	if c.failing {
		return errors.New("redis: connection pool timeout")
	}
	c.entries[key] = payload
	return nil
}
