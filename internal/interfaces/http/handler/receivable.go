package handler

import (
	"time"

	billingapp "github.com/dukapos/backend/internal/application/billing"
	"github.com/dukapos/backend/internal/domain/billing"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReceivableHandler exposes the invoice settlement ledger over HTTP
type ReceivableHandler struct {
	BaseHandler
	settlementService *billingapp.SettlementService
	receivableService *billingapp.ReceivableService
}

// NewReceivableHandler creates a new ReceivableHandler
func NewReceivableHandler(settlementService *billingapp.SettlementService, receivableService *billingapp.ReceivableService) *ReceivableHandler {
	return &ReceivableHandler{
		settlementService: settlementService,
		receivableService: receivableService,
	}
}

// RegisterRoutes registers receivable routes on the API group
func (h *ReceivableHandler) RegisterRoutes(rg *gin.RouterGroup) {
	receivables := rg.Group("/receivables")
	{
		receivables.POST("", h.Create)
		receivables.GET("", h.List)
		receivables.GET("/summary", h.Summary)
		receivables.GET("/:id", h.GetByID)
		receivables.PATCH("/:id", h.UpdateMetadata)
		receivables.POST("/:id/payments", h.ApplyPayment)
	}
}

// LineItemRequest represents one invoice line
type LineItemRequest struct {
	ProductRef      string  `json:"product_ref" binding:"max=100"`
	Name            string  `json:"name" binding:"required,min=1,max=200"`
	Quantity        int64   `json:"quantity" binding:"required,gt=0"`
	UnitPrice       float64 `json:"unit_price" binding:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" binding:"gte=0,lte=100"`
}

// CreateReceivableRequest represents a request to record a new invoice
type CreateReceivableRequest struct {
	LineItems     []LineItemRequest `json:"line_items" binding:"required,min=1,dive"`
	AmountDue     *float64          `json:"amount_due" binding:"omitempty,gte=0"`
	AmountPaid    float64           `json:"amount_paid" binding:"gte=0"`
	PaymentMethod string            `json:"payment_method" binding:"required"`
	CustomerName  string            `json:"customer_name" binding:"max=200"`
	CustomerPhone string            `json:"customer_phone" binding:"max=50"`
	DueDate       *time.Time        `json:"due_date"`
	Notes         string            `json:"notes" binding:"max=2000"`
	CollectedBy   string            `json:"collected_by" binding:"max=100"`
}

// ApplyPaymentRequest represents a payment against an invoice
type ApplyPaymentRequest struct {
	Amount         float64 `json:"amount"`
	Method         string  `json:"method" binding:"required"`
	CollectedBy    string  `json:"collected_by" binding:"max=100"`
	Notes          string  `json:"notes" binding:"max=2000"`
	FullSettlement bool    `json:"full_settlement"`
}

// UpdateReceivableRequest represents administrative edits to an invoice.
// Status may only move to CANCELLED or REFUNDED.
type UpdateReceivableRequest struct {
	DueDate      *time.Time `json:"due_date"`
	ClearDueDate bool       `json:"clear_due_date"`
	Notes        *string    `json:"notes" binding:"omitempty,max=2000"`
	Status       *string    `json:"status"`
	Reason       string     `json:"reason" binding:"max=500"`
}

// ListReceivablesRequest represents list query parameters
type ListReceivablesRequest struct {
	Status        string `form:"status"`
	PaymentMethod string `form:"payment_method"`
	Search        string `form:"search"`
	DueWithinDays int    `form:"due_within_days" binding:"omitempty,min=1"`
	Page          int    `form:"page" binding:"omitempty,min=1"`
	PageSize      int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy       string `form:"order_by"`
	OrderDir      string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// Create records a new invoice, optionally with an upfront payment
func (h *ReceivableHandler) Create(c *gin.Context) {
	var req CreateReceivableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	items := make([]billingapp.LineItemInput, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		items = append(items, billingapp.LineItemInput{
			ProductRef:      li.ProductRef,
			Name:            li.Name,
			Quantity:        li.Quantity,
			UnitPrice:       decimal.NewFromFloat(li.UnitPrice),
			DiscountPercent: decimal.NewFromFloat(li.DiscountPercent),
		})
	}

	input := billingapp.CreateInvoiceInput{
		LineItems:     items,
		AmountPaid:    decimal.NewFromFloat(req.AmountPaid),
		PaymentMethod: billing.PaymentMethod(req.PaymentMethod),
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		DueDate:       req.DueDate,
		Notes:         req.Notes,
		CollectedBy:   req.CollectedBy,
	}
	if req.AmountDue != nil {
		due := decimal.NewFromFloat(*req.AmountDue)
		input.AmountDue = &due
	}

	invoice, err := h.settlementService.CreateInvoice(c.Request.Context(), input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, invoice)
}

// List returns receivables matching the filter. By default only open
// records are returned; pass status=all to include settled and cancelled ones.
func (h *ReceivableHandler) List(c *gin.Context) {
	var req ListReceivablesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billingapp.ReceivableListFilter{
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		Search:        req.Search,
		DueWithinDays: req.DueWithinDays,
		Page:          req.Page,
		PageSize:      req.PageSize,
		OrderBy:       req.OrderBy,
		OrderDir:      req.OrderDir,
	}

	invoices, total, err := h.receivableService.ListReceivables(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	page := req.Page
	if page == 0 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = 20
	}
	h.SuccessWithMeta(c, invoices, total, page, pageSize)
}

// Summary returns the aggregate receivable report for the matched records
func (h *ReceivableHandler) Summary(c *gin.Context) {
	var req ListReceivablesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	filter := billingapp.ReceivableListFilter{
		Status:        req.Status,
		PaymentMethod: req.PaymentMethod,
		Search:        req.Search,
		DueWithinDays: req.DueWithinDays,
	}

	summary, err := h.receivableService.Summarize(c.Request.Context(), filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, summary)
}

// GetByID returns one invoice with its payment history grouped by method
func (h *ReceivableHandler) GetByID(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	details, err := h.receivableService.GetReceivableDetails(c.Request.Context(), id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, details)
}

// UpdateMetadata applies administrative edits (due date, notes, cancel/refund)
func (h *ReceivableHandler) UpdateMetadata(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req UpdateReceivableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	input := billingapp.UpdateMetadataInput{
		DueDate:      req.DueDate,
		ClearDueDate: req.ClearDueDate,
		Notes:        req.Notes,
		Status:       req.Status,
		Reason:       req.Reason,
	}

	invoice, err := h.receivableService.UpdateReceivableMetadata(c.Request.Context(), id, input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, invoice)
}

// ApplyPayment records a payment against the invoice and returns the
// updated record together with the receipt
func (h *ReceivableHandler) ApplyPayment(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	input := billingapp.ApplyPaymentInput{
		Amount:         decimal.NewFromFloat(req.Amount),
		Method:         billing.PaymentMethod(req.Method),
		CollectedBy:    req.CollectedBy,
		Notes:          req.Notes,
		FullSettlement: req.FullSettlement,
	}

	result, err := h.settlementService.ApplyPayment(c.Request.Context(), id, input)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// parseID binds and validates the :id path parameter
func (h *ReceivableHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	idStr := c.Param("id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		h.BadRequest(c, "Invalid invoice ID")
		return uuid.Nil, false
	}
	return id, true
}
