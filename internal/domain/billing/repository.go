package billing

import (
	"context"

	"github.com/google/uuid"
)

// Sort keys accepted by the receivable query layer
const (
	SortByDueDate  = "dueDate"
	SortByBalance  = "balance"
	SortByDate     = "date"
	SortByCustomer = "customer"
)

// InvoiceFilter represents query filter options for invoices.
//
// Status filtering follows live derivation semantics: OVERDUE matches
// records past their due date with a positive balance regardless of the
// stored status, and COMPLETED matches settled balances. When Status is nil
// and IncludeClosed is false, the filter matches open receivables only:
// positive remaining balance and a non-terminal status.
type InvoiceFilter struct {
	Page          int
	PageSize      int
	OrderBy       string // dueDate | balance | date | customer
	OrderDir      string // asc | desc
	Search        string // matches invoice number, customer name, customer phone
	Status        *InvoiceStatus
	PaymentMethod *PaymentMethod
	DueWithinDays *int
	IncludeClosed bool
}

// DefaultInvoiceFilter returns the canonical open-receivables filter
func DefaultInvoiceFilter() InvoiceFilter {
	return InvoiceFilter{
		Page:     1,
		PageSize: 20,
		OrderBy:  SortByDate,
		OrderDir: "desc",
	}
}

// WithoutPagination returns a copy of the filter that matches all records
func (f InvoiceFilter) WithoutPagination() InvoiceFilter {
	f.Page = 0
	f.PageSize = 0
	return f
}

// InvoiceRepository is the persistence port for the Invoice aggregate
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*Invoice, error)
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	Count(ctx context.Context, filter InvoiceFilter) (int64, error)
	Save(ctx context.Context, invoice *Invoice) error
	SaveWithLock(ctx context.Context, invoice *Invoice) error
	GenerateInvoiceNumber(ctx context.Context) (string, error)
}
