package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// DefaultTracingConfig returns default tracing configuration.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		ServiceName: "billing-backend",
		Enabled:     true,
	}
}

// TracingWithConfig returns the otelgin middleware. Spans are named
// "METHOD route_pattern" (e.g. "GET /api/v1/invoices/:id").
// Pair it with TracingAttributeInjector to add request attributes.
func TracingWithConfig(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// TracingAttributeInjector tags the request span with the request ID and,
// once the handler has run, marks 4xx and 5xx responses as errors.
// It must run after TracingWithConfig and RequestID.
func TracingAttributeInjector() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			c.Next()
			return
		}

		if requestID := GetRequestID(c); requestID != "" {
			span.SetAttributes(attribute.String("request_id", requestID))
		}

		c.Next()

		markSpanError(span, c.Writer.Status())
	}
}

func markSpanError(span trace.Span, statusCode int) {
	if statusCode < http.StatusBadRequest {
		return
	}

	var description string
	switch {
	case statusCode >= http.StatusInternalServerError:
		description = "Internal Server Error"
	case statusCode == http.StatusNotFound:
		description = "Not Found"
	case statusCode == http.StatusConflict:
		description = "Conflict"
	case statusCode == http.StatusForbidden:
		description = "Forbidden"
	default:
		description = "Client Error"
	}
	span.SetStatus(codes.Error, description)
	span.SetAttributes(attribute.Int("http.status_code", statusCode))
}
