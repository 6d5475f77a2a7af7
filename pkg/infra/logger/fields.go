// Package logger carries request-scoped logging fields (request_id, trace_id)
// through a context.Context on top of github.com/kart-io/logger.
package logger

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"go.opentelemetry.io/otel/trace"
)

type contextKey int

const loggerFieldsKey contextKey = iota

// loggerFields 为不可变快照，每次写入都会 clone。
type loggerFields struct {
	keys   []string
	values map[string]any
}

func (lf *loggerFields) clone() *loggerFields {
	c := &loggerFields{
		keys:   make([]string, len(lf.keys)),
		values: make(map[string]any, len(lf.values)),
	}
	copy(c.keys, lf.keys)
	for k, v := range lf.values {
		c.values[k] = v
	}
	return c
}

func (lf *loggerFields) set(key string, value any) {
	if _, ok := lf.values[key]; !ok {
		lf.keys = append(lf.keys, key)
	}
	lf.values[key] = value
}

func (lf *loggerFields) toSlice() []any {
	if len(lf.keys) == 0 {
		return nil
	}
	out := make([]any, 0, len(lf.keys)*2)
	for _, k := range lf.keys {
		out = append(out, k, lf.values[k])
	}
	return out
}

func getLoggerFields(ctx context.Context) *loggerFields {
	if lf, ok := ctx.Value(loggerFieldsKey).(*loggerFields); ok {
		return lf
	}
	return &loggerFields{values: map[string]any{}}
}

// WithRequestID adds request_id to the context logger fields.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return WithFields(ctx, "request_id", requestID)
}

// WithFields adds key-value pairs to the context logger fields.
// A trailing key without value and non-string keys are ignored.
func WithFields(ctx context.Context, keysAndValues ...any) context.Context {
	if len(keysAndValues) < 2 {
		return ctx
	}
	lf := getLoggerFields(ctx).clone()
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			lf.set(key, keysAndValues[i+1])
		}
	}
	return context.WithValue(ctx, loggerFieldsKey, lf)
}

// ExtractOpenTelemetryFields copies trace_id and span_id of the active span
// into the context logger fields.
func ExtractOpenTelemetryFields(ctx context.Context) context.Context {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ctx
	}
	return WithFields(ctx, "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}

// GetContextFields returns the context logger fields in insertion order.
func GetContextFields(ctx context.Context) []any {
	return getLoggerFields(ctx).toSlice()
}

// GetLogger returns the global logger enriched with the context fields.
func GetLogger(ctx context.Context) core.Logger {
	base := logger.Global()
	if fields := GetContextFields(ctx); len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}

// UnwrapError returns the messages of every error in the wrap chain.
func UnwrapError(err error) []string {
	var messages []string
	for err != nil {
		messages = append(messages, err.Error())
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return messages
}

// LogError logs err with its wrap chain and the context fields.
func LogError(ctx context.Context, msg string, err error, keysAndValues ...any) {
	fields := append([]any{
		"error", err.Error(),
		"error_type", fmt.Sprintf("%T", err),
		"error_chain", UnwrapError(err),
	}, keysAndValues...)
	GetLogger(ctx).Errorw(msg, fields...)
}
