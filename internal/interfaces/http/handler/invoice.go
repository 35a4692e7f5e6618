package handler

import (
	"context"
	"net/http"

	invoicingapp "github.com/billing/backend/internal/application/invoicing"
	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/infrastructure/printing"
	"github.com/billing/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// IdempotencyKeyHeader carries the client supplied key for payment retries
const IdempotencyKeyHeader = "Idempotency-Key"

// InvoiceDocuments renders printable invoice documents
type InvoiceDocuments interface {
	PDFEnabled() bool
	RenderHTML(ctx context.Context, inv *invoicing.Invoice) (string, error)
	RenderPDF(ctx context.Context, inv *invoicing.Invoice) (*printing.Document, error)
}

// InvoiceHandler handles invoice-related API endpoints
type InvoiceHandler struct {
	BaseHandler
	billing   *invoicingapp.BillingService
	documents InvoiceDocuments
}

// NewInvoiceHandler creates a new InvoiceHandler. documents may be nil,
// which disables the print endpoints.
func NewInvoiceHandler(billing *invoicingapp.BillingService, documents InvoiceDocuments) *InvoiceHandler {
	return &InvoiceHandler{
		billing:   billing,
		documents: documents,
	}
}

// RegisterRoutes mounts the invoice endpoints
func (h *InvoiceHandler) RegisterRoutes(rg *gin.RouterGroup) {
	invoices := router.NewDomainGroup("invoices", "/invoices").
		GET("", h.List).
		POST("", h.Create).
		GET("/overdue", h.ListOverdue).
		GET("/:id", h.Get).
		PUT("/:id", h.Update).
		DELETE("/:id", h.Delete).
		POST("/:id/pay", h.RecordPayment).
		GET("/:id/pdf", h.GetPDF).
		GET("/:id/html", h.GetHTML)
	invoices.RegisterRoutes(rg)

	router.NewDomainGroup("summary", "/summary").
		GET("", h.Summary).
		RegisterRoutes(rg)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Description  Returns every invoice with its derived amounts
// @Tags         invoices
// @Produce      json
// @Success      200 {object} APIResponse[[]invoicingapp.InvoiceResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	invoices, err := h.billing.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoicingapp.ToInvoiceResponses(invoices, h.billing.Today()))
}

// Get godoc
// @ID           getInvoiceById
// @Summary      Get invoice by ID
// @Tags         invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	inv, err := h.billing.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoicingapp.ToInvoiceResponse(inv, h.billing.Today()))
}

// Create godoc
// @ID           createInvoice
// @Summary      Create an invoice
// @Description  Saves a new invoice. The status is derived from the amounts and due date.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body InvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	var req InvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	draft, err := req.toInvoice()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	inv, err := h.billing.Create(c.Request.Context(), draft)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Location", "/api/v1/invoices/"+inv.ID.String())
	h.Created(c, invoicingapp.ToInvoiceResponse(inv, h.billing.Today()))
}

// Update godoc
// @ID           updateInvoice
// @Summary      Replace an invoice
// @Description  Replaces every field and the item list of an existing invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id      path string         true "Invoice ID" format(uuid)
// @Param        request body InvoiceRequest true "Invoice"
// @Success      200 {object} APIResponse[invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id} [put]
func (h *InvoiceHandler) Update(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req InvoiceRequest
	if !h.BindJSON(c, &req) {
		return
	}

	replacement, err := req.toInvoice()
	if err != nil {
		h.HandleError(c, err)
		return
	}

	inv, err := h.billing.Update(c.Request.Context(), id, replacement)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoicingapp.ToInvoiceResponse(inv, h.billing.Today()))
}

// Delete godoc
// @ID           deleteInvoice
// @Summary      Delete an invoice
// @Tags         invoices
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      204
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id} [delete]
func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.billing.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RecordPayment godoc
// @ID           recordInvoicePayment
// @Summary      Record a payment
// @Description  Adds the amount to the amount paid and re-derives the status.
// @Description  Requests repeating an Idempotency-Key are rejected.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id              path   string         true  "Invoice ID" format(uuid)
// @Param        Idempotency-Key header string         false "Client retry key"
// @Param        request         body   PaymentRequest true  "Payment"
// @Success      200 {object} APIResponse[invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      404 {object} ErrorResponse
// @Failure      409 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/{id}/pay [post]
func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	var (
		inv *invoicing.Invoice
		err error
	)
	if key := c.GetHeader(IdempotencyKeyHeader); key != "" {
		inv, err = h.billing.RecordPaymentOnce(c.Request.Context(), id, req.Amount, key)
	} else {
		inv, err = h.billing.RecordPayment(c.Request.Context(), id, req.Amount)
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoicingapp.ToInvoiceResponse(inv, h.billing.Today()))
}

// ListOverdue godoc
// @ID           listOverdueInvoices
// @Summary      List overdue invoices
// @Description  Returns unsettled invoices whose due date is before as_of (default today)
// @Tags         invoices
// @Produce      json
// @Param        as_of query string false "Reference date" format(date)
// @Success      200 {object} APIResponse[[]invoicingapp.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /invoices/overdue [get]
func (h *InvoiceHandler) ListOverdue(c *gin.Context) {
	asOf, ok := h.parseAsOf(c, h.billing.Today())
	if !ok {
		return
	}

	invoices, err := h.billing.ListOverdue(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoicingapp.ToInvoiceResponses(invoices, asOf))
}

// Summary godoc
// @ID           getInvoiceSummary
// @Summary      Invoice summary
// @Description  Aggregate counts and amounts over every invoice as of a date
// @Tags         invoices
// @Produce      json
// @Param        as_of query string false "Reference date" format(date)
// @Success      200 {object} APIResponse[invoicingapp.SummaryResponse]
// @Failure      400 {object} ErrorResponse
// @Failure      500 {object} ErrorResponse
// @Router       /summary [get]
func (h *InvoiceHandler) Summary(c *gin.Context) {
	asOf, ok := h.parseAsOf(c, h.billing.Today())
	if !ok {
		return
	}

	summary, err := h.billing.Summary(c.Request.Context(), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoicingapp.ToSummaryResponse(summary, asOf))
}

// GetPDF godoc
// @ID           getInvoicePdf
// @Summary      Download invoice PDF
// @Tags         invoices
// @Produce      application/pdf
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {file} binary
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Failure      504 {object} ErrorResponse
// @Router       /invoices/{id}/pdf [get]
func (h *InvoiceHandler) GetPDF(c *gin.Context) {
	if h.documents == nil || !h.documents.PDFEnabled() {
		h.ErrorWithCode(c, printing.ErrCodeRendererDisabled, "PDF rendering is not enabled")
		return
	}

	inv, ok := h.loadInvoice(c)
	if !ok {
		return
	}

	doc, err := h.documents.RenderPDF(c.Request.Context(), inv)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", "inline; filename=\""+doc.FileName+"\"")
	c.Data(http.StatusOK, printing.ContentTypePDF, doc.Data)
}

// GetHTML godoc
// @ID           getInvoiceHtml
// @Summary      Printable invoice HTML
// @Tags         invoices
// @Produce      html
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {string} string
// @Failure      404 {object} ErrorResponse
// @Failure      503 {object} ErrorResponse
// @Router       /invoices/{id}/html [get]
func (h *InvoiceHandler) GetHTML(c *gin.Context) {
	if h.documents == nil {
		h.ErrorWithCode(c, printing.ErrCodeRendererDisabled, "Invoice printing is not enabled")
		return
	}

	inv, ok := h.loadInvoice(c)
	if !ok {
		return
	}

	page, err := h.documents.RenderHTML(c.Request.Context(), inv)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

func (h *InvoiceHandler) loadInvoice(c *gin.Context) (*invoicing.Invoice, bool) {
	id, ok := h.parseID(c)
	if !ok {
		return nil, false
	}
	inv, err := h.billing.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return inv, true
}

var _ router.RouteRegistrar = (*InvoiceHandler)(nil)
