package printing

import (
	"context"
	"testing"
	"time"

	"github.com/billing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateRequest(t *testing.T) {
	t.Run("nil request", func(t *testing.T) {
		var renderErr *RenderError
		require.ErrorAs(t, validateRequest(nil), &renderErr)
		assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
	})

	t.Run("blank HTML", func(t *testing.T) {
		var renderErr *RenderError
		require.ErrorAs(t, validateRequest(&RenderRequest{HTML: "  "}), &renderErr)
		assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
	})

	t.Run("unknown paper size", func(t *testing.T) {
		var renderErr *RenderError
		require.ErrorAs(t, validateRequest(&RenderRequest{HTML: "<p>x</p>", PaperSize: "A0"}), &renderErr)
		assert.Equal(t, ErrCodeInvalidPaperSize, renderErr.Code)
	})

	t.Run("fills defaults", func(t *testing.T) {
		req := &RenderRequest{HTML: "<p>x</p>"}
		require.NoError(t, validateRequest(req))
		assert.Equal(t, PaperSizeA4, req.PaperSize)
		assert.Equal(t, DefaultMargins, req.Margins)
	})
}

func TestBuildPrintParams(t *testing.T) {
	t.Run("A4 portrait", func(t *testing.T) {
		params := buildPrintParams(&RenderRequest{PaperSize: PaperSizeA4, Margins: Margins{Top: 25.4, Left: 12.7}})
		assert.InDelta(t, 8.27, params.PaperWidth, 0.01)
		assert.InDelta(t, 11.69, params.PaperHeight, 0.01)
		assert.InDelta(t, 1.0, params.MarginTop, 0.001)
		assert.InDelta(t, 0.5, params.MarginLeft, 0.001)
		assert.True(t, params.PrintBackground)
		assert.False(t, params.Landscape)
		assert.False(t, params.DisplayHeaderFooter)
	})

	t.Run("letter landscape", func(t *testing.T) {
		params := buildPrintParams(&RenderRequest{PaperSize: PaperSizeLetter, Landscape: true})
		assert.InDelta(t, 8.5, params.PaperWidth, 0.01)
		assert.InDelta(t, 11.0, params.PaperHeight, 0.01)
		assert.True(t, params.Landscape)
	})

	t.Run("footer reserves a bottom margin", func(t *testing.T) {
		params := buildPrintParams(&RenderRequest{
			PaperSize:  PaperSizeA4,
			Margins:    Margins{Bottom: 2},
			FooterHTML: pageNumberFooter,
		})
		assert.True(t, params.DisplayHeaderFooter)
		assert.Equal(t, pageNumberFooter, params.FooterTemplate)
		assert.InDelta(t, mmToInches(10), params.MarginBottom, 0.001)
	})
}

func TestCompleteHTML(t *testing.T) {
	full := "<!DOCTYPE html><html><body>done</body></html>"
	assert.Equal(t, full, completeHTML(&RenderRequest{HTML: full}))

	wrapped := completeHTML(&RenderRequest{HTML: "<p>hi</p>", Title: "A & B"})
	assert.Contains(t, wrapped, "<!DOCTYPE html>")
	assert.Contains(t, wrapped, "<title>A &amp; B</title>")
	assert.Contains(t, wrapped, "<body><p>hi</p></body>")
}

func TestCountPages(t *testing.T) {
	pdf := []byte("<< /Type /Pages /Count 2 >> << /Type /Page >> << /Type /Page\n>>")
	assert.Equal(t, 2, countPages(pdf))
	assert.Equal(t, 1, countPages([]byte("%PDF-1.7")))
}

func TestChromedpRenderer_RenderRejectsBadInputWithoutBrowser(t *testing.T) {
	r := NewChromedpRenderer(config.PrintingConfig{Timeout: time.Second}, zap.NewNop())
	t.Cleanup(func() { _ = r.Close() })

	_, err := r.Render(context.Background(), &RenderRequest{})
	var renderErr *RenderError
	require.ErrorAs(t, err, &renderErr)
	assert.Equal(t, ErrCodeInvalidHTML, renderErr.Code)
}

func TestChromedpRenderer_Close(t *testing.T) {
	local := NewChromedpRenderer(config.PrintingConfig{NoSandbox: true}, zap.NewNop())
	assert.False(t, local.remote)
	assert.Equal(t, defaultChromeTimeout, local.timeout)
	assert.NoError(t, local.Close())

	remote := NewChromedpRenderer(config.PrintingConfig{ChromeRemoteURL: "ws://127.0.0.1:9222"}, zap.NewNop())
	assert.True(t, remote.remote)
	assert.NoError(t, remote.Close())
}
