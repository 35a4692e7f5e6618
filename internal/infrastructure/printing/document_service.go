package printing

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/billing/backend/internal/domain/invoicing"
	"github.com/billing/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ContentTypePDF is the MIME type of rendered invoices
const ContentTypePDF = "application/pdf"

// DocumentArchive stores rendered documents under a key
type DocumentArchive interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

// Document is a rendered invoice
type Document struct {
	FileName   string
	Data       []byte
	PageCount  int
	ArchiveKey string
}

// InvoiceDocumentService renders invoices through the template engine and
// PDF renderer, and archives every PDF when an archive is configured
type InvoiceDocumentService struct {
	engine   *TemplateEngine
	renderer PDFRenderer
	archive  DocumentArchive
	clock    func() time.Time
	logger   *zap.Logger
}

// DocumentServiceOption configures an InvoiceDocumentService
type DocumentServiceOption func(*InvoiceDocumentService)

// WithArchive enables archiving of rendered PDFs
func WithArchive(archive DocumentArchive) DocumentServiceOption {
	return func(s *InvoiceDocumentService) {
		s.archive = archive
	}
}

// WithDocumentClock overrides the clock used for the printed-at stamp
func WithDocumentClock(clock func() time.Time) DocumentServiceOption {
	return func(s *InvoiceDocumentService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInvoiceDocumentService creates the service. A nil renderer limits it to HTML.
func NewInvoiceDocumentService(engine *TemplateEngine, renderer PDFRenderer, logger *zap.Logger, opts ...DocumentServiceOption) *InvoiceDocumentService {
	s := &InvoiceDocumentService{
		engine:   engine,
		renderer: renderer,
		clock:    time.Now,
		logger:   logger.Named("invoice_documents"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PDFEnabled reports whether RenderPDF can succeed
func (s *InvoiceDocumentService) PDFEnabled() bool {
	return s.renderer != nil
}

// RenderHTML renders the printable HTML view of the invoice
func (s *InvoiceDocumentService) RenderHTML(_ context.Context, inv *invoicing.Invoice) (string, error) {
	return s.engine.RenderInvoice(inv, s.clock())
}

// RenderPDF renders the invoice to PDF and archives it.
// Archive failures are logged and do not fail the render.
func (s *InvoiceDocumentService) RenderPDF(ctx context.Context, inv *invoicing.Invoice) (*Document, error) {
	if s.renderer == nil {
		return nil, NewRenderError(ErrCodeRendererDisabled, "PDF rendering is not enabled", nil)
	}

	html, err := s.engine.RenderInvoice(inv, s.clock())
	if err != nil {
		return nil, err
	}

	result, err := s.renderer.Render(ctx, &RenderRequest{
		HTML:       html,
		Title:      "Invoice " + inv.InvoiceNumber,
		PaperSize:  PaperSizeA4,
		FooterHTML: pageNumberFooter,
	})
	if err != nil {
		return nil, err
	}

	doc := &Document{
		FileName:  FileName(inv),
		Data:      result.PDFData,
		PageCount: result.PageCount,
	}

	if s.archive != nil {
		key := ArchiveKey(inv)
		if err := s.archive.Put(ctx, key, result.PDFData, ContentTypePDF); err != nil {
			s.logger.Warn("failed to archive invoice PDF",
				zap.String("invoice_id", inv.ID.String()),
				zap.String("key", key),
				zap.Error(err),
			)
		} else {
			doc.ArchiveKey = key
		}
	}

	s.logger.Info("invoice PDF rendered",
		zap.String("invoice_id", inv.ID.String()),
		zap.Int("bytes", len(doc.Data)),
		zap.Int("pages", doc.PageCount),
		zap.Duration("duration", result.RenderDuration),
	)
	return doc, nil
}

// Close releases the renderer
func (s *InvoiceDocumentService) Close() error {
	if s.renderer == nil {
		return nil
	}
	return s.renderer.Close()
}

const pageNumberFooter = `<div style="font-size:8px;width:100%;text-align:center;">` +
	`<span class="pageNumber"></span> / <span class="totalPages"></span></div>`

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName is the download name of the invoice PDF
func FileName(inv *invoicing.Invoice) string {
	return "invoice-" + unsafeFileChars.ReplaceAllString(inv.InvoiceNumber, "_") + ".pdf"
}

// ArchivePrefix is the key prefix holding every document of one invoice
func ArchivePrefix(id uuid.UUID) string {
	return fmt.Sprintf("invoices/%s/", id)
}

// ArchiveKey is the archive location of the invoice PDF
func ArchiveKey(inv *invoicing.Invoice) string {
	return ArchivePrefix(inv.ID) + FileName(inv)
}

// ArchiveCleanupHandler removes archived documents of deleted invoices
type ArchiveCleanupHandler struct {
	archive DocumentArchive
	logger  *zap.Logger
}

// NewArchiveCleanupHandler creates a new ArchiveCleanupHandler
func NewArchiveCleanupHandler(archive DocumentArchive, logger *zap.Logger) *ArchiveCleanupHandler {
	return &ArchiveCleanupHandler{archive: archive, logger: logger.Named("archive_cleanup")}
}

// EventTypes returns the event types this handler is interested in
func (h *ArchiveCleanupHandler) EventTypes() []string {
	return []string{invoicing.EventTypeInvoiceDeleted}
}

// Handle deletes everything under the invoice's archive prefix
func (h *ArchiveCleanupHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	prefix := ArchivePrefix(event.AggregateID())
	removed, err := h.archive.DeletePrefix(ctx, prefix)
	if err != nil {
		return fmt.Errorf("failed to remove archived documents under %s: %w", prefix, err)
	}
	if removed > 0 {
		h.logger.Info("archived documents removed",
			zap.String("invoice_id", event.AggregateID().String()),
			zap.Int("count", removed),
		)
	}
	return nil
}
