package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dukapos/backend/internal/domain/billing"
	"github.com/dukapos/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultUpcomingHorizonDays = 7
	defaultTopDebtors          = 5
	defaultSummaryCacheTTL     = 30 * time.Second
	maxPageSize                = 100
)

// SummaryCache is the port for caching aggregate reports. Implementations
// must treat a miss as (nil, nil); cache failures never fail the request.
type SummaryCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
}

// ReceivableService is the receivable query layer and reporting facade.
// Every record it returns carries a live-derived status so overdue
// classification reflects the time of the read, not the last write.
type ReceivableService struct {
	invoiceRepo         billing.InvoiceRepository
	cache               SummaryCache
	logger              *zap.Logger
	now                 func() time.Time
	upcomingHorizonDays int
	topDebtors          int
	summaryCacheTTL     time.Duration
}

// ReceivableServiceOption is a functional option for ReceivableService
type ReceivableServiceOption func(*ReceivableService)

// WithSummaryCache attaches a cache for aggregate reports
func WithSummaryCache(cache SummaryCache, ttl time.Duration) ReceivableServiceOption {
	return func(s *ReceivableService) {
		s.cache = cache
		if ttl > 0 {
			s.summaryCacheTTL = ttl
		}
	}
}

// WithUpcomingHorizon sets the due-soon window in days
func WithUpcomingHorizon(days int) ReceivableServiceOption {
	return func(s *ReceivableService) {
		if days > 0 {
			s.upcomingHorizonDays = days
		}
	}
}

// WithTopDebtors sets how many customers the summary ranks by exposure
func WithTopDebtors(n int) ReceivableServiceOption {
	return func(s *ReceivableService) {
		if n > 0 {
			s.topDebtors = n
		}
	}
}

// WithReceivableClock overrides the time source (used in tests)
func WithReceivableClock(now func() time.Time) ReceivableServiceOption {
	return func(s *ReceivableService) {
		s.now = now
	}
}

// NewReceivableService creates a new ReceivableService
func NewReceivableService(invoiceRepo billing.InvoiceRepository, logger *zap.Logger, opts ...ReceivableServiceOption) *ReceivableService {
	s := &ReceivableService{
		invoiceRepo:         invoiceRepo,
		logger:              logger.Named("receivables"),
		now:                 time.Now,
		upcomingHorizonDays: defaultUpcomingHorizonDays,
		topDebtors:          defaultTopDebtors,
		summaryCacheTTL:     defaultSummaryCacheTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReceivableListFilter is the collaborator-facing filter shape.
// Status and PaymentMethod accept "", "all", or an enum value; the empty
// default matches open receivables only.
type ReceivableListFilter struct {
	Status        string
	PaymentMethod string
	Search        string
	DueWithinDays int
	Page          int
	PageSize      int
	OrderBy       string
	OrderDir      string
}

// toDomainFilter validates the collaborator filter and maps it to the
// repository filter
func (f ReceivableListFilter) toDomainFilter() (billing.InvoiceFilter, error) {
	domainFilter := billing.DefaultInvoiceFilter()

	switch f.Status {
	case "", "open":
		// canonical default: open receivables only
	case "all":
		domainFilter.IncludeClosed = true
	default:
		status := billing.InvoiceStatus(f.Status)
		if !status.IsValid() {
			return domainFilter, shared.NewDomainError(billing.ErrCodeValidation,
				fmt.Sprintf("Unknown status filter %q", f.Status))
		}
		domainFilter.Status = &status
	}

	switch f.PaymentMethod {
	case "", "all":
	default:
		method := billing.PaymentMethod(f.PaymentMethod)
		if !method.IsValid() {
			return domainFilter, shared.NewDomainError(billing.ErrCodeValidation,
				fmt.Sprintf("Unknown payment method filter %q", f.PaymentMethod))
		}
		domainFilter.PaymentMethod = &method
	}

	if f.DueWithinDays > 0 {
		days := f.DueWithinDays
		domainFilter.DueWithinDays = &days
	}

	domainFilter.Search = f.Search

	if f.Page > 0 {
		domainFilter.Page = f.Page
	}
	if f.PageSize > 0 {
		domainFilter.PageSize = f.PageSize
	}
	if domainFilter.PageSize > maxPageSize {
		domainFilter.PageSize = maxPageSize
	}

	switch f.OrderBy {
	case "":
	case billing.SortByDueDate, billing.SortByBalance, billing.SortByDate, billing.SortByCustomer:
		domainFilter.OrderBy = f.OrderBy
	default:
		return domainFilter, shared.NewDomainError(billing.ErrCodeValidation,
			fmt.Sprintf("Unknown sort key %q", f.OrderBy))
	}
	if f.OrderDir == "asc" || f.OrderDir == "desc" {
		domainFilter.OrderDir = f.OrderDir
	}

	return domainFilter, nil
}

// ListReceivables lists invoices with live status derivation per row
func (s *ReceivableService) ListReceivables(ctx context.Context, filter ReceivableListFilter) ([]InvoiceResponse, int64, error) {
	domainFilter, err := filter.toDomainFilter()
	if err != nil {
		return nil, 0, err
	}

	invoices, err := s.invoiceRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, 0, storeError(err)
	}
	total, err := s.invoiceRepo.Count(ctx, domainFilter)
	if err != nil {
		return nil, 0, storeError(err)
	}

	now := s.now()
	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = newInvoiceResponse(&invoices[i], now)
	}
	return responses, total, nil
}

// ReceivableDetails is the detail projection: the full record plus the
// payment history grouped by method
type ReceivableDetails struct {
	Invoice          InvoiceResponse                   `json:"invoice"`
	PaymentsByMethod map[string][]PaymentEntryResponse `json:"payments_by_method"`
	TotalsByMethod   map[string]float64                `json:"totals_by_method"`
}

// GetReceivableDetails returns one invoice with its grouped payment history
func (s *ReceivableService) GetReceivableDetails(ctx context.Context, id uuid.UUID) (*ReceivableDetails, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	now := s.now()
	grouped := make(map[string][]PaymentEntryResponse)
	totals := make(map[string]float64)
	for method, entries := range inv.PaymentHistory.ByMethod() {
		key := method.String()
		for _, entry := range entries {
			grouped[key] = append(grouped[key], newPaymentEntryResponse(entry))
		}
		totals[key] = entries.TotalAmount().InexactFloat64()
	}

	return &ReceivableDetails{
		Invoice:          newInvoiceResponse(inv, now),
		PaymentsByMethod: grouped,
		TotalsByMethod:   totals,
	}, nil
}

// UpdateMetadataInput carries the administrative edits allowed on a record.
// Status may only be set to CANCELLED or REFUNDED; derived statuses are
// never writable.
type UpdateMetadataInput struct {
	DueDate      *time.Time
	ClearDueDate bool
	Notes        *string
	Status       *string
	Reason       string
}

// UpdateReceivableMetadata applies administrative edits without bypassing
// the settlement invariants
func (s *ReceivableService) UpdateReceivableMetadata(ctx context.Context, id uuid.UUID, input UpdateMetadataInput) (*InvoiceResponse, error) {
	if input.Status != nil {
		switch billing.InvoiceStatus(*input.Status) {
		case billing.InvoiceStatusCancelled, billing.InvoiceStatusRefunded:
		default:
			return nil, shared.NewDomainError(billing.ErrCodeValidation,
				fmt.Sprintf("Status may only be overridden to %s or %s",
					billing.InvoiceStatusCancelled, billing.InvoiceStatusRefunded))
		}
	}

	inv, err := s.invoiceRepo.FindByID(ctx, id)
	if err != nil {
		return nil, storeError(err)
	}

	now := s.now()

	if input.ClearDueDate {
		if err := inv.SetDueDate(nil, now); err != nil {
			return nil, err
		}
	} else if input.DueDate != nil {
		if err := inv.SetDueDate(input.DueDate, now); err != nil {
			return nil, err
		}
	}
	if input.Notes != nil {
		inv.SetNotes(*input.Notes, now)
	}
	if input.Status != nil {
		switch billing.InvoiceStatus(*input.Status) {
		case billing.InvoiceStatusCancelled:
			err = inv.Cancel(input.Reason, now)
		case billing.InvoiceStatusRefunded:
			err = inv.Refund(input.Reason, now)
		}
		if err != nil {
			return nil, err
		}
	}

	if err := inv.CheckInvariants(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.SaveWithLock(ctx, inv); err != nil {
		if isConcurrencyConflict(err) {
			return nil, shared.ErrConcurrencyConflict
		}
		return nil, storeError(err)
	}

	s.logger.Info("Receivable metadata updated",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("status", inv.Status.String()),
	)

	resp := newInvoiceResponse(inv, now)
	return &resp, nil
}

// StatusBucket is one slice of the status distribution
type StatusBucket struct {
	Count   int     `json:"count"`
	Balance float64 `json:"balance"`
}

// OverdueBucket aggregates records whose live-derived status is overdue
type OverdueBucket struct {
	Count              int     `json:"count"`
	Balance            float64 `json:"balance"`
	AverageDaysOverdue float64 `json:"average_days_overdue"`
}

// UpcomingBucket aggregates open records due within the horizon
type UpcomingBucket struct {
	Count       int     `json:"count"`
	Balance     float64 `json:"balance"`
	HorizonDays int     `json:"horizon_days"`
}

// MethodBucket aggregates collected payments per method
type MethodBucket struct {
	Payments        int     `json:"payments"`
	AmountCollected float64 `json:"amount_collected"`
}

// DebtorSummary is one row of the top-debtors ranking
type DebtorSummary struct {
	CustomerName string  `json:"customer_name"`
	Balance      float64 `json:"balance"`
	Invoices     int     `json:"invoices"`
}

// OldestOpenReceivable points at the longest-outstanding open record
type OldestOpenReceivable struct {
	ID              string    `json:"id"`
	InvoiceNumber   string    `json:"invoice_number"`
	CustomerName    string    `json:"customer_name,omitempty"`
	Balance         float64   `json:"balance"`
	CreatedAt       time.Time `json:"created_at"`
	DaysOutstanding int       `json:"days_outstanding"`
}

// ReceivableSummary is the aggregate report over the filtered receivable set.
// Headline totals and count cover open records only; the status distribution
// covers every matched record by live-derived status.
type ReceivableSummary struct {
	TotalBalance       float64                 `json:"total_balance"`
	TotalDue           float64                 `json:"total_due"`
	TotalPaid          float64                 `json:"total_paid"`
	AverageBalance     float64                 `json:"average_balance"`
	Count              int                     `json:"count"`
	StatusDistribution map[string]StatusBucket `json:"status_distribution"`
	Overdue            OverdueBucket           `json:"overdue"`
	Upcoming           UpcomingBucket          `json:"upcoming"`
	ByPaymentMethod    map[string]MethodBucket `json:"by_payment_method"`
	TopDebtors         []DebtorSummary         `json:"top_debtors"`
	OldestOpen         *OldestOpenReceivable   `json:"oldest_open,omitempty"`
	GeneratedAt        time.Time               `json:"generated_at"`
}

// Summarize folds the filtered receivable set into an aggregate report.
// Every record is re-derived before summing: the stored status and the
// persisted balance are never trusted for overdue-dependent buckets.
func (s *ReceivableService) Summarize(ctx context.Context, filter ReceivableListFilter) (*ReceivableSummary, error) {
	domainFilter, err := filter.toDomainFilter()
	if err != nil {
		return nil, err
	}
	domainFilter = domainFilter.WithoutPagination()

	cacheKey := summaryCacheKey(domainFilter)
	if s.cache != nil {
		if payload, cerr := s.cache.Get(ctx, cacheKey); cerr != nil {
			s.logger.Warn("Summary cache read failed", zap.Error(cerr))
		} else if payload != nil {
			var cached ReceivableSummary
			if jerr := json.Unmarshal(payload, &cached); jerr == nil {
				return &cached, nil
			}
		}
	}

	invoices, err := s.invoiceRepo.FindAll(ctx, domainFilter)
	if err != nil {
		return nil, storeError(err)
	}

	summary := s.fold(invoices)

	if s.cache != nil {
		if payload, jerr := json.Marshal(summary); jerr == nil {
			if cerr := s.cache.Set(ctx, cacheKey, payload, s.summaryCacheTTL); cerr != nil {
				s.logger.Warn("Summary cache write failed", zap.Error(cerr))
			}
		}
	}

	return summary, nil
}

// fold reduces the record set in a single pass per concern
func (s *ReceivableService) fold(invoices []billing.Invoice) *ReceivableSummary {
	now := s.now()
	horizon := now.Add(time.Duration(s.upcomingHorizonDays) * 24 * time.Hour)

	summary := &ReceivableSummary{
		StatusDistribution: make(map[string]StatusBucket),
		ByPaymentMethod:    make(map[string]MethodBucket),
		Upcoming:           UpcomingBucket{HorizonDays: s.upcomingHorizonDays},
		GeneratedAt:        now,
	}

	totalBalance := decimal.Zero
	totalDue := decimal.Zero
	totalPaid := decimal.Zero
	overdueBalance := decimal.Zero
	upcomingBalance := decimal.Zero
	overdueDays := 0

	type debtor struct {
		balance  decimal.Decimal
		invoices int
	}
	debtors := make(map[string]*debtor)
	var oldest *billing.Invoice

	for i := range invoices {
		inv := &invoices[i]
		liveStatus := inv.PresentationStatus(now)
		balance := inv.RemainingBalance

		bucket := summary.StatusDistribution[liveStatus.String()]
		bucket.Count++
		bucket.Balance += balance.InexactFloat64()
		summary.StatusDistribution[liveStatus.String()] = bucket

		for _, entry := range inv.PaymentHistory {
			mb := summary.ByPaymentMethod[entry.Method.String()]
			mb.Payments++
			mb.AmountCollected += entry.Amount.InexactFloat64()
			summary.ByPaymentMethod[entry.Method.String()] = mb
		}

		if !inv.IsOpen() {
			continue
		}

		summary.Count++
		totalBalance = totalBalance.Add(balance)
		totalDue = totalDue.Add(inv.AmountDue)
		totalPaid = totalPaid.Add(inv.AmountPaid)

		if liveStatus == billing.InvoiceStatusOverdue {
			summary.Overdue.Count++
			overdueBalance = overdueBalance.Add(balance)
			overdueDays += inv.DaysOverdue(now)
		} else if inv.DueDate != nil && !inv.DueDate.After(horizon) {
			summary.Upcoming.Count++
			upcomingBalance = upcomingBalance.Add(balance)
		}

		name := inv.CustomerName
		if name == "" {
			name = "(unknown)"
		}
		d, ok := debtors[name]
		if !ok {
			d = &debtor{}
			debtors[name] = d
		}
		d.balance = d.balance.Add(balance)
		d.invoices++

		if oldest == nil || inv.CreatedAt.Before(oldest.CreatedAt) {
			oldest = inv
		}
	}

	summary.TotalBalance = totalBalance.InexactFloat64()
	summary.TotalDue = totalDue.InexactFloat64()
	summary.TotalPaid = totalPaid.InexactFloat64()
	if summary.Count > 0 {
		summary.AverageBalance = totalBalance.Div(decimal.NewFromInt(int64(summary.Count))).InexactFloat64()
	}
	summary.Overdue.Balance = overdueBalance.InexactFloat64()
	if summary.Overdue.Count > 0 {
		summary.Overdue.AverageDaysOverdue = float64(overdueDays) / float64(summary.Overdue.Count)
	}
	summary.Upcoming.Balance = upcomingBalance.InexactFloat64()

	names := make([]string, 0, len(debtors))
	for name := range debtors {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		di, dj := debtors[names[i]], debtors[names[j]]
		if !di.balance.Equal(dj.balance) {
			return di.balance.GreaterThan(dj.balance)
		}
		return names[i] < names[j]
	})
	if len(names) > s.topDebtors {
		names = names[:s.topDebtors]
	}
	summary.TopDebtors = make([]DebtorSummary, len(names))
	for i, name := range names {
		summary.TopDebtors[i] = DebtorSummary{
			CustomerName: name,
			Balance:      debtors[name].balance.InexactFloat64(),
			Invoices:     debtors[name].invoices,
		}
	}

	if oldest != nil {
		summary.OldestOpen = &OldestOpenReceivable{
			ID:              oldest.ID.String(),
			InvoiceNumber:   oldest.InvoiceNumber,
			CustomerName:    oldest.CustomerName,
			Balance:         oldest.RemainingBalance.InexactFloat64(),
			CreatedAt:       oldest.CreatedAt,
			DaysOutstanding: oldest.DaysOutstanding(now),
		}
	}

	return summary
}

// summaryCacheKey derives a stable cache key from the filter shape
func summaryCacheKey(filter billing.InvoiceFilter) string {
	status, method, due := "", "", ""
	if filter.Status != nil {
		status = filter.Status.String()
	}
	if filter.PaymentMethod != nil {
		method = filter.PaymentMethod.String()
	}
	if filter.DueWithinDays != nil {
		due = fmt.Sprintf("%d", *filter.DueWithinDays)
	}
	raw := fmt.Sprintf("status=%s|method=%s|search=%s|due=%s|closed=%t",
		status, method, filter.Search, due, filter.IncludeClosed)
	sum := sha256.Sum256([]byte(raw))
	return "receivables:summary:" + hex.EncodeToString(sum[:8])
}
