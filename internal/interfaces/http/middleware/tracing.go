package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// MaxRequestIDLength is the longest request ID accepted from a client
const MaxRequestIDLength = 128

// TracingConfig configures request spans
type TracingConfig struct {
	ServiceName string
	Enabled     bool
}

// Tracing starts a span per request through otelgin, named after the
// matched route, e.g. "POST /pos/cart/items/:sku". A disabled config
// yields a pass-through handler.
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "pos-terminal"
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanMarker tags the request span with the request ID and marks 4xx and
// 5xx responses as errors. Place it after Tracing and RequestID.
func SpanMarker() gin.HandlerFunc {
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

		if status := c.Writer.Status(); status >= http.StatusBadRequest {
			span.SetStatus(codes.Error, http.StatusText(status))
			span.SetAttributes(attribute.Int("http.status_code", status))
		}
	}
}
