package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func contextFields(entry observer.LoggedEntry) map[string]string {
	out := map[string]string{}
	for _, f := range entry.Context {
		out[f.Key] = f.String
	}
	return out
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	ctx := WithContext(context.Background(), l)
	assert.Same(t, l, FromContext(ctx))
}

func TestWithRequestID(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	ctx, l := WithRequestID(context.Background(), zap.New(core), "req-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	l.Info("direct")
	L(ctx).Info("via context")

	for _, e := range recorded.All() {
		assert.Equal(t, "req-1", contextFields(e)["request_id"], e.Message)
	}
	// no duplicated request_id fields
	for _, e := range recorded.All() {
		n := 0
		for _, f := range e.Context {
			if f.Key == "request_id" {
				n++
			}
		}
		assert.Equal(t, 1, n, e.Message)
	}
}

func TestContextLogger_SaleKeyAndExplicitLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-9")
	ctx = WithSaleKey(ctx, "key-1")

	WithLogger(ctx, zap.New(core)).With(zap.String("sku", "A1")).Warn("rejected")

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := contextFields(entries[0])
	assert.Equal(t, "key-1", fields["sale_key"])
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "A1", fields["sku"])
	assert.Equal(t, "key-1", GetSaleKey(ctx))
}

func TestContextLogger_TraceIDs(t *testing.T) {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	core, recorded := observer.New(zapcore.InfoLevel)
	ctx = WithContext(ctx, zap.New(core))
	L(ctx).Info("traced")

	fields := contextFields(recorded.All()[0])
	assert.Equal(t, traceID.String(), fields["trace_id"])
	assert.Equal(t, spanID.String(), fields["span_id"])
}
