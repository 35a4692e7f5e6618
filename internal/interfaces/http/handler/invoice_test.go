package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	invoicingapp "github.com/billing/backend/internal/application/invoicing"
	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/infrastructure/cache"
	"github.com/billing/backend/internal/infrastructure/persistence"
	"github.com/billing/backend/internal/infrastructure/printing"
	"github.com/billing/backend/internal/interfaces/http/dto"
	"github.com/billing/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var handlerToday = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

// stubDocuments renders fixed output so the print endpoints can be tested
// without a browser
type stubDocuments struct {
	pdfEnabled bool
	err        error
}

func (s *stubDocuments) PDFEnabled() bool { return s.pdfEnabled }

func (s *stubDocuments) RenderHTML(_ context.Context, inv *invoicing.Invoice) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "<h1>" + inv.InvoiceNumber + "</h1>", nil
}

func (s *stubDocuments) RenderPDF(_ context.Context, inv *invoicing.Invoice) (*printing.Document, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &printing.Document{
		FileName:  printing.FileName(inv),
		Data:      []byte("%PDF-1.7 stub"),
		PageCount: 1,
	}, nil
}

type invoiceTestServer struct {
	engine  *gin.Engine
	billing *invoicingapp.BillingService
}

func newInvoiceTestServer(t *testing.T, documents InvoiceDocuments) *invoiceTestServer {
	t.Helper()
	middleware.SetupValidator()

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	billing := invoicingapp.NewBillingService(
		persistence.NewInMemoryInvoiceRepository(),
		invoicingapp.WithClock(func() time.Time { return handlerToday }),
		invoicingapp.WithIdempotencyStore(store, time.Hour),
	)

	engine := gin.New()
	engine.Use(middleware.RequestID())
	NewInvoiceHandler(billing, documents).RegisterRoutes(engine.Group("/api/v1"))

	return &invoiceTestServer{engine: engine, billing: billing}
}

func (s *invoiceTestServer) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func invoicePayload(number, due string, paid string) map[string]any {
	payload := map[string]any{
		"invoice_number": number,
		"customer_name":  "Acme Corp",
		"issue_date":     "2024-01-15",
		"due_date":       due,
		"items": []map[string]any{
			{"description": "Consulting", "quantity": 2, "unit_price": "50.00"},
			{"description": "Travel", "quantity": 1, "unit_price": "20.00"},
		},
	}
	if paid != "" {
		payload["amount_paid"] = paid
	}
	return payload
}

func decodeInvoice(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	resp := decodeResponse(t, w)
	require.True(t, resp.Success, w.Body.String())
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok)
	return data
}

func (s *invoiceTestServer) create(t *testing.T, number, due, paid string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoicePayload(number, due, paid))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeInvoice(t, w)["id"].(string)
}

func TestInvoiceHandler_Create(t *testing.T) {
	s := newInvoiceTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoicePayload("INV-001", "2024-04-01", "20.00"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := decodeInvoice(t, w)
	assert.Equal(t, "/api/v1/invoices/"+data["id"].(string), w.Header().Get("Location"))
	assert.Equal(t, "INV-001", data["invoice_number"])
	assert.Equal(t, "PARTIALLY_PAID", data["status"])
	assert.Equal(t, "120", data["total"])
	assert.Equal(t, "100", data["balance_due"])
	assert.Equal(t, false, data["overdue"])
	assert.Len(t, data["items"], 2)
}

func TestInvoiceHandler_CreateDerivesOverdue(t *testing.T) {
	s := newInvoiceTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoicePayload("INV-002", "2024-02-01", ""))

	require.Equal(t, http.StatusCreated, w.Code)
	data := decodeInvoice(t, w)
	assert.Equal(t, "OVERDUE", data["status"])
	assert.Equal(t, true, data["overdue"])
}

func TestInvoiceHandler_CreateValidation(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(map[string]any)
		wantCode string
	}{
		{
			name:     "missing invoice number",
			mutate:   func(p map[string]any) { delete(p, "invoice_number") },
			wantCode: dto.ErrCodeValidation,
		},
		{
			name:     "blank customer",
			mutate:   func(p map[string]any) { p["customer_name"] = "   " },
			wantCode: dto.ErrCodeValidation,
		},
		{
			name:     "bad due date",
			mutate:   func(p map[string]any) { p["due_date"] = "01/02/2024" },
			wantCode: dto.ErrCodeValidation,
		},
		{
			name: "zero quantity",
			mutate: func(p map[string]any) {
				p["items"] = []map[string]any{{"description": "x", "quantity": 0, "unit_price": "1"}}
			},
			wantCode: dto.ErrCodeValidation,
		},
		{
			name: "negative price",
			mutate: func(p map[string]any) {
				p["items"] = []map[string]any{{"description": "x", "quantity": 1, "unit_price": "-1"}}
			},
			wantCode: dto.ErrCodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newInvoiceTestServer(t, nil)
			payload := invoicePayload("INV-100", "2024-04-01", "")
			tt.mutate(payload)

			w := s.do(t, http.MethodPost, "/api/v1/invoices", payload)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Details)
		})
	}
}

func TestInvoiceHandler_CreateMalformedJSON(t *testing.T) {
	s := newInvoiceTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidJSON, decodeResponse(t, w).Error.Code)
}

func TestInvoiceHandler_CreateDuplicateNumber(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	s.create(t, "INV-003", "2024-04-01", "")

	w := s.do(t, http.MethodPost, "/api/v1/invoices", invoicePayload("INV-003", "2024-04-01", ""))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeAlreadyExists, decodeResponse(t, w).Error.Code)
}

func TestInvoiceHandler_GetAndList(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	id := s.create(t, "INV-004", "2024-04-01", "")
	s.create(t, "INV-005", "2024-04-01", "")

	w := s.do(t, http.MethodGet, "/api/v1/invoices/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "INV-004", decodeInvoice(t, w)["invoice_number"])

	w = s.do(t, http.MethodGet, "/api/v1/invoices", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w).Data, 2)
}

func TestInvoiceHandler_GetErrors(t *testing.T) {
	s := newInvoiceTestServer(t, nil)

	w := s.do(t, http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, dto.ErrCodeNotFound, decodeResponse(t, w).Error.Code)

	w = s.do(t, http.MethodGet, "/api/v1/invoices/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeBadRequest, decodeResponse(t, w).Error.Code)
}

func TestInvoiceHandler_Update(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	id := s.create(t, "INV-006", "2024-04-01", "")

	payload := invoicePayload("INV-006", "2024-04-01", "120.00")
	payload["customer_name"] = "Globex"
	payload["items"] = []map[string]any{{"description": "Audit", "quantity": 1, "unit_price": "120.00"}}

	w := s.do(t, http.MethodPut, "/api/v1/invoices/"+id, payload)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeInvoice(t, w)
	assert.Equal(t, "Globex", data["customer_name"])
	assert.Equal(t, "PAID", data["status"])
	assert.Len(t, data["items"], 1)
}

func TestInvoiceHandler_UpdateMissing(t *testing.T) {
	s := newInvoiceTestServer(t, nil)

	w := s.do(t, http.MethodPut, "/api/v1/invoices/"+uuid.NewString(), invoicePayload("INV-404", "2024-04-01", ""))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_Delete(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	id := s.create(t, "INV-007", "2024-04-01", "")

	w := s.do(t, http.MethodDelete, "/api/v1/invoices/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodDelete, "/api/v1/invoices/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_RecordPayment(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	id := s.create(t, "INV-008", "2024-04-01", "")

	w := s.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/pay", map[string]any{"amount": "20.00"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	data := decodeInvoice(t, w)
	assert.Equal(t, "20", data["amount_paid"])
	assert.Equal(t, "PARTIALLY_PAID", data["status"])

	w = s.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/pay", map[string]any{"amount": "100.00"})
	require.Equal(t, http.StatusOK, w.Code)
	data = decodeInvoice(t, w)
	assert.Equal(t, "120", data["amount_paid"])
	assert.Equal(t, "PAID", data["status"])
}

func TestInvoiceHandler_RecordPaymentMissingInvoice(t *testing.T) {
	s := newInvoiceTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/v1/invoices/"+uuid.NewString()+"/pay", map[string]any{"amount": "10"})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvoiceHandler_RecordPaymentRequiresAmount(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	id := s.create(t, "INV-009", "2024-04-01", "")

	w := s.do(t, http.MethodPost, "/api/v1/invoices/"+id+"/pay", map[string]any{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
}

func TestInvoiceHandler_RecordPaymentIdempotencyKey(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	id := s.create(t, "INV-010", "2024-04-01", "")
	path := "/api/v1/invoices/" + id + "/pay"

	w := s.do(t, http.MethodPost, path, map[string]any{"amount": "30"}, IdempotencyKeyHeader, "pay-1")
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, path, map[string]any{"amount": "30"}, IdempotencyKeyHeader, "pay-1")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, dto.ErrCodeDuplicateRequest, decodeResponse(t, w).Error.Code)

	inv, err := s.billing.Get(context.Background(), uuid.MustParse(id))
	require.NoError(t, err)
	assert.Equal(t, "30", inv.AmountPaid.String())
}

func TestInvoiceHandler_ListOverdue(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	s.create(t, "INV-011", "2024-02-01", "")
	s.create(t, "INV-012", "2024-04-01", "")
	s.create(t, "INV-013", "2024-02-01", "120.00")

	w := s.do(t, http.MethodGet, "/api/v1/invoices/overdue", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decodeResponse(t, w).Data.([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "INV-011", items[0].(map[string]any)["invoice_number"])

	w = s.do(t, http.MethodGet, "/api/v1/invoices/overdue?as_of=2024-05-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeResponse(t, w).Data, 2)

	w = s.do(t, http.MethodGet, "/api/v1/invoices/overdue?as_of=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestInvoiceHandler_Summary(t *testing.T) {
	s := newInvoiceTestServer(t, nil)
	s.create(t, "INV-014", "2024-02-01", "")
	s.create(t, "INV-015", "2024-04-01", "20.00")
	s.create(t, "INV-016", "2024-04-01", "120.00")

	w := s.do(t, http.MethodGet, "/api/v1/summary", nil)

	require.Equal(t, http.StatusOK, w.Code)
	data := decodeInvoice(t, w)
	assert.Equal(t, "2024-03-01", data["as_of"])
	assert.EqualValues(t, 3, data["total_invoices"])
	assert.EqualValues(t, 1, data["paid_count"])
	assert.EqualValues(t, 2, data["unpaid_count"])
	assert.EqualValues(t, 1, data["overdue_count"])
	assert.Equal(t, "220", data["total_outstanding"])
	assert.Equal(t, "140", data["total_paid"])
}

func TestInvoiceHandler_GetHTML(t *testing.T) {
	s := newInvoiceTestServer(t, &stubDocuments{})
	id := s.create(t, "INV-017", "2024-04-01", "")

	w := s.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/html", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Equal(t, "<h1>INV-017</h1>", w.Body.String())
}

func TestInvoiceHandler_GetPDF(t *testing.T) {
	s := newInvoiceTestServer(t, &stubDocuments{pdfEnabled: true})
	id := s.create(t, "INV-018", "2024-04-01", "")

	w := s.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/pdf", nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, printing.ContentTypePDF, w.Header().Get("Content-Type"))
	assert.Equal(t, `inline; filename="invoice-INV-018.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.7 stub", w.Body.String())
}

func TestInvoiceHandler_PrintingDisabled(t *testing.T) {
	tests := []struct {
		name      string
		documents InvoiceDocuments
		path      string
	}{
		{name: "pdf without renderer", documents: &stubDocuments{}, path: "/pdf"},
		{name: "pdf without documents", documents: nil, path: "/pdf"},
		{name: "html without documents", documents: nil, path: "/html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newInvoiceTestServer(t, tt.documents)
			id := s.create(t, "INV-019", "2024-04-01", "")

			w := s.do(t, http.MethodGet, "/api/v1/invoices/"+id+tt.path, nil)

			assert.Equal(t, http.StatusServiceUnavailable, w.Code)
			assert.Equal(t, dto.ErrCodeUnavailable, decodeResponse(t, w).Error.Code)
		})
	}
}

func TestInvoiceHandler_GetPDFRenderTimeout(t *testing.T) {
	s := newInvoiceTestServer(t, &stubDocuments{
		pdfEnabled: true,
		err:        printing.NewRenderError(printing.ErrCodeRenderTimeout, "timed out", nil),
	})
	id := s.create(t, "INV-020", "2024-04-01", "")

	w := s.do(t, http.MethodGet, "/api/v1/invoices/"+id+"/pdf", nil)

	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
}
