package logger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"
)

func TestWithRequestID(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		want      []any
	}{
		{name: "valid request ID", requestID: "01J9Z", want: []any{"request_id", "01J9Z"}},
		{name: "empty request ID is ignored", requestID: "", want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := WithRequestID(context.Background(), tt.requestID)
			assert.Equal(t, tt.want, GetContextFields(ctx))
		})
	}
}

func TestWithFields(t *testing.T) {
	parent := WithFields(context.Background(), "a", 1)
	child := WithFields(parent, "b", 2, "a", 3, 42, "ignored", "dangling")

	assert.Equal(t, []any{"a", 1}, GetContextFields(parent), "parent must not change")
	assert.Equal(t, []any{"a", 3, "b", 2}, GetContextFields(child))
}

func TestExtractOpenTelemetryFields(t *testing.T) {
	t.Run("no span", func(t *testing.T) {
		ctx := ExtractOpenTelemetryFields(context.Background())
		assert.Nil(t, GetContextFields(ctx))
	})

	t.Run("valid span context", func(t *testing.T) {
		traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
		spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
		sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID})
		ctx := trace.ContextWithSpanContext(context.Background(), sc)

		fields := GetContextFields(ExtractOpenTelemetryFields(ctx))
		assert.Equal(t, []any{
			"trace_id", "4bf92f3577b34da6a3ce929d0e0e4736",
			"span_id", "00f067aa0ba902b7",
		}, fields)
	})
}

func TestGetLogger(t *testing.T) {
	assert.NotNil(t, GetLogger(context.Background()))
	assert.NotNil(t, GetLogger(WithRequestID(context.Background(), "abc")))
}

func TestUnwrapError(t *testing.T) {
	base := errors.New("connection refused")
	wrapped := fmt.Errorf("failed to search index: %w", base)

	assert.Nil(t, UnwrapError(nil))
	assert.Equal(t, []string{
		"failed to search index: connection refused",
		"connection refused",
	}, UnwrapError(wrapped))
}

func BenchmarkGetLogger(b *testing.B) {
	ctx := WithRequestID(context.Background(), "bench")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GetLogger(ctx)
	}
}
