package printing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RenderResult), args.Error(1)
}

func (m *mockRenderer) Close() error {
	return m.Called().Error(0)
}

type mockArchive struct {
	mock.Mock
}

func (m *mockArchive) Put(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Called(ctx, key, data, contentType).Error(0)
}

func (m *mockArchive) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	args := m.Called(ctx, prefix)
	return args.Int(0), args.Error(1)
}

func newDocumentService(t *testing.T, renderer PDFRenderer, opts ...DocumentServiceOption) *InvoiceDocumentService {
	t.Helper()
	engine, err := NewTemplateEngine()
	require.NoError(t, err)
	opts = append([]DocumentServiceOption{WithDocumentClock(func() time.Time { return printedAt })}, opts...)
	return NewInvoiceDocumentService(engine, renderer, zap.NewNop(), opts...)
}

func savedInvoice(t *testing.T) *invoicing.Invoice {
	inv := newPrintableInvoice(t, "0")
	inv.ID = uuid.MustParse("6f1c2a4e-93b1-4d8e-9a57-0c6d1d2b7f10")
	return inv
}

func TestFileNameAndArchiveKey(t *testing.T) {
	inv := savedInvoice(t)
	assert.Equal(t, "invoice-INV-2024_001.pdf", FileName(inv))
	assert.Equal(t, "invoices/6f1c2a4e-93b1-4d8e-9a57-0c6d1d2b7f10/", ArchivePrefix(inv.ID))
	assert.Equal(t, "invoices/6f1c2a4e-93b1-4d8e-9a57-0c6d1d2b7f10/invoice-INV-2024_001.pdf", ArchiveKey(inv))
}

func TestInvoiceDocumentService_RenderHTML(t *testing.T) {
	svc := newDocumentService(t, nil)
	assert.False(t, svc.PDFEnabled())

	html, err := svc.RenderHTML(context.Background(), savedInvoice(t))
	require.NoError(t, err)
	assert.Contains(t, html, "Printed 2024-06-15")
	assert.NoError(t, svc.Close())
}

func TestInvoiceDocumentService_RenderPDF_Disabled(t *testing.T) {
	svc := newDocumentService(t, nil)

	_, err := svc.RenderPDF(context.Background(), savedInvoice(t))
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeRendererDisabled, renderErr.Code)
}

func TestInvoiceDocumentService_RenderPDF_Archives(t *testing.T) {
	ctx := context.Background()
	inv := savedInvoice(t)
	pdf := []byte("%PDF-1.7 fake")

	renderer := new(mockRenderer)
	renderer.On("Render", ctx, mock.MatchedBy(func(req *RenderRequest) bool {
		return req.Title == "Invoice INV-2024/001" &&
			req.PaperSize == PaperSizeA4 &&
			req.FooterHTML != ""
	})).Return(&RenderResult{PDFData: pdf, PageCount: 1}, nil)

	archive := new(mockArchive)
	archive.On("Put", ctx, ArchiveKey(inv), pdf, ContentTypePDF).Return(nil)

	svc := newDocumentService(t, renderer, WithArchive(archive))
	require.True(t, svc.PDFEnabled())

	doc, err := svc.RenderPDF(ctx, inv)
	require.NoError(t, err)
	assert.Equal(t, "invoice-INV-2024_001.pdf", doc.FileName)
	assert.Equal(t, pdf, doc.Data)
	assert.Equal(t, 1, doc.PageCount)
	assert.Equal(t, ArchiveKey(inv), doc.ArchiveKey)

	renderer.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestInvoiceDocumentService_RenderPDF_ArchiveFailureIsLogged(t *testing.T) {
	ctx := context.Background()
	inv := savedInvoice(t)

	renderer := new(mockRenderer)
	renderer.On("Render", ctx, mock.Anything).Return(&RenderResult{PDFData: []byte("%PDF"), PageCount: 1}, nil)
	archive := new(mockArchive)
	archive.On("Put", ctx, mock.Anything, mock.Anything, ContentTypePDF).Return(errors.New("bucket unavailable"))

	core, logs := observer.New(zap.WarnLevel)
	engine, err := NewTemplateEngine()
	require.NoError(t, err)
	svc := NewInvoiceDocumentService(engine, renderer, zap.New(core), WithArchive(archive))

	doc, err := svc.RenderPDF(ctx, inv)
	require.NoError(t, err)
	assert.Empty(t, doc.ArchiveKey)
	assert.Equal(t, 1, logs.FilterMessage("failed to archive invoice PDF").Len())
}

func TestInvoiceDocumentService_RenderPDF_RendererError(t *testing.T) {
	ctx := context.Background()
	renderer := new(mockRenderer)
	renderer.On("Render", ctx, mock.Anything).Return(nil, NewRenderError(ErrCodeRenderTimeout, "timed out", nil))
	archive := new(mockArchive)

	svc := newDocumentService(t, renderer, WithArchive(archive))
	_, err := svc.RenderPDF(ctx, savedInvoice(t))

	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeRenderTimeout, renderErr.Code)
	archive.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestInvoiceDocumentService_Close(t *testing.T) {
	renderer := new(mockRenderer)
	renderer.On("Close").Return(nil)

	svc := newDocumentService(t, renderer)
	assert.NoError(t, svc.Close())
	renderer.AssertExpectations(t)
}

func TestArchiveCleanupHandler(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	event := invoicing.NewInvoiceDeletedEvent(id, printedAt)

	t.Run("removes the invoice prefix", func(t *testing.T) {
		archive := new(mockArchive)
		archive.On("DeletePrefix", ctx, ArchivePrefix(id)).Return(2, nil)

		h := NewArchiveCleanupHandler(archive, zap.NewNop())
		assert.Equal(t, []string{invoicing.EventTypeInvoiceDeleted}, h.EventTypes())
		require.NoError(t, h.Handle(ctx, event))
		archive.AssertExpectations(t)
	})

	t.Run("wraps archive errors", func(t *testing.T) {
		archive := new(mockArchive)
		archive.On("DeletePrefix", ctx, ArchivePrefix(id)).Return(0, errors.New("denied"))

		err := NewArchiveCleanupHandler(archive, zap.NewNop()).Handle(ctx, event)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "denied")
	})
}
