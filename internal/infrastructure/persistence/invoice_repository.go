package persistence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dukapos/backend/internal/domain/billing"
	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/dukapos/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var terminalStatuses = []billing.InvoiceStatus{
	billing.InvoiceStatusCancelled,
	billing.InvoiceStatusRefunded,
}

// invoiceWriteColumns is every mutable invoice column. SaveWithLock selects
// them explicitly because Updates with a struct skips zero-value fields,
// which would silently drop cleared values (a removed due date, emptied
// notes) from the write.
var invoiceWriteColumns = []string{
	"updated_at", "version",
	"line_items", "subtotal", "discount_amount", "grand_total",
	"amount_due", "amount_paid", "remaining_balance",
	"status", "payment_method", "payment_history",
	"due_date", "customer_name", "customer_phone", "notes",
	"paid_at", "cancelled_at", "cancel_reason",
	"refunded_at", "refund_reason",
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by its ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInvoiceNumber finds an invoice by its invoice number
func (r *GormInvoiceRepository) FindByInvoiceNumber(ctx context.Context, invoiceNumber string) (*billing.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("invoice_number = ?", invoiceNumber).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll finds invoices matching the filter
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter billing.InvoiceFilter) ([]billing.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	query = r.applyInvoiceFilter(query, filter, true)

	if err := query.Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]billing.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// Count counts invoices matching the filter
func (r *GormInvoiceRepository) Count(ctx context.Context, filter billing.InvoiceFilter) (int64, error) {
	var count int64
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	query = r.applyInvoiceFilter(query, filter, false)

	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Save creates or updates an invoice. Two writers can draw the same daily
// sequence number, in which case the unique index on invoice_number fires;
// that comes back as ALREADY_EXISTS so the caller can regenerate and retry.
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SaveWithLock saves with optimistic locking. The write succeeds only if the
// stored version is the one the aggregate was loaded at; a concurrent write
// surfaces as CONCURRENCY_CONFLICT.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *billing.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.WithContext(ctx).
		Model(model).
		Select(invoiceWriteColumns).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version-1).
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// GenerateInvoiceNumber generates a unique invoice number.
// Format: INV-YYYYMMDD-XXXXX, resetting the sequence daily.
func (r *GormInvoiceRepository) GenerateInvoiceNumber(ctx context.Context) (string, error) {
	date := time.Now().Format("20060102")
	prefix := fmt.Sprintf("INV-%s-", date)

	var maxNumber string
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Select("invoice_number").
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number DESC").
		Limit(1).
		Pluck("invoice_number", &maxNumber).Error; err != nil {
		return "", err
	}

	var nextNum int
	if maxNumber != "" {
		parts := strings.Split(maxNumber, "-")
		if len(parts) == 3 {
			if seq, perr := strconv.Atoi(parts[2]); perr == nil {
				nextNum = seq
			}
		}
	}
	nextNum++

	return fmt.Sprintf("%s%05d", prefix, nextNum), nil
}

// applyInvoiceFilter applies filter options to the query. Pagination and
// ordering are applied only when paginate is set so Count sees the same
// predicate as Find.
func (r *GormInvoiceRepository) applyInvoiceFilter(query *gorm.DB, filter billing.InvoiceFilter, paginate bool) *gorm.DB {
	query = r.applyStatusPredicate(query, filter)

	if filter.PaymentMethod != nil {
		query = query.Where("payment_method = ?", *filter.PaymentMethod)
	}
	if filter.DueWithinDays != nil {
		horizon := time.Now().Add(time.Duration(*filter.DueWithinDays) * 24 * time.Hour)
		query = query.Where("due_date IS NOT NULL AND due_date <= ?", horizon)
	}
	if filter.Search != "" {
		searchPattern := "%" + filter.Search + "%"
		query = query.Where("invoice_number ILIKE ? OR customer_name ILIKE ? OR customer_phone ILIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	if !paginate {
		return query
	}

	if filter.Page > 0 && filter.PageSize > 0 {
		offset := (filter.Page - 1) * filter.PageSize
		query = query.Offset(offset).Limit(filter.PageSize)
	}

	orderDir := ValidateSortOrder(filter.OrderDir)
	column := ValidateSortField(sortColumn(filter.OrderBy), InvoiceSortColumns, "created_at")
	// id breaks ties so pagination stays stable across requests
	query = query.Order(column + " " + orderDir + ", id ASC")

	return query
}

// applyStatusPredicate maps a status filter to SQL following live derivation
// semantics: the stored status column is authoritative only for the terminal
// statuses, everything else is derived from the amounts and the due date.
func (r *GormInvoiceRepository) applyStatusPredicate(query *gorm.DB, filter billing.InvoiceFilter) *gorm.DB {
	if filter.Status == nil {
		if filter.IncludeClosed {
			return query
		}
		return query.Where("remaining_balance > 0 AND status NOT IN ?", terminalStatuses)
	}

	now := time.Now()
	switch *filter.Status {
	case billing.InvoiceStatusCancelled, billing.InvoiceStatusRefunded:
		return query.Where("status = ?", *filter.Status)
	case billing.InvoiceStatusCompleted:
		return query.Where("amount_paid >= amount_due AND status NOT IN ?", terminalStatuses)
	case billing.InvoiceStatusOverdue:
		return query.Where("due_date < ? AND remaining_balance > 0 AND status NOT IN ?", now, terminalStatuses)
	case billing.InvoiceStatusPartiallyPaid:
		return query.Where("amount_paid > 0 AND amount_paid < amount_due AND (due_date IS NULL OR due_date >= ?) AND status NOT IN ?",
			now, terminalStatuses)
	case billing.InvoiceStatusPending:
		return query.Where("amount_paid = 0 AND remaining_balance > 0 AND (due_date IS NULL OR due_date >= ?) AND status NOT IN ?",
			now, terminalStatuses)
	default:
		return query.Where("status = ?", *filter.Status)
	}
}

// sortColumn maps the exposed sort keys to columns. Unknown keys fall back
// to creation time; key validation happens at the application layer.
func sortColumn(orderBy string) string {
	switch orderBy {
	case billing.SortByDueDate:
		return "due_date"
	case billing.SortByBalance:
		return "remaining_balance"
	case billing.SortByCustomer:
		return "customer_name"
	case billing.SortByDate:
		return "created_at"
	default:
		return "created_at"
	}
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ billing.InvoiceRepository = (*GormInvoiceRepository)(nil)
