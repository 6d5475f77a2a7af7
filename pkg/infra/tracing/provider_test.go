package tracing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/exambot/pkg/options/tracing"
)

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    *options.Options
		wantErr bool
	}{
		{
			name:    "disabled tracing is valid",
			opts:    &options.Options{Enabled: false},
			wantErr: false,
		},
		{
			name: "missing endpoint for OTLP exporter",
			opts: &options.Options{
				Enabled:      true,
				ServiceName:  "test",
				ExporterType: options.ExporterOTLPGRPC,
				SamplerType:  options.SamplerAlwaysOn,
				BatchTimeout: time.Second,
			},
			wantErr: true,
		},
		{
			name: "invalid sampler ratio",
			opts: &options.Options{
				Enabled:      true,
				ServiceName:  "test",
				ExporterType: options.ExporterStdout,
				SamplerType:  options.SamplerRatio,
				SamplerRatio: 1.5,
				BatchTimeout: time.Second,
			},
			wantErr: true,
		},
		{
			name: "stdout exporter needs no endpoint",
			opts: &options.Options{
				Enabled:      true,
				ServiceName:  "test",
				ExporterType: options.ExporterStdout,
				SamplerType:  options.SamplerAlwaysOn,
				BatchTimeout: time.Second,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.opts.Validate()
			assert.Equal(t, tt.wantErr, len(errs) > 0, "errors: %v", errs)
		})
	}
}

func TestNewProvider_Disabled(t *testing.T) {
	p, err := NewProvider(context.Background(), options.NewOptions())
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewProvider_Noop(t *testing.T) {
	opts := options.NewOptions()
	opts.Enabled = true
	opts.ExporterType = options.ExporterNoop

	p, err := NewProvider(context.Background(), opts)
	require.NoError(t, err)
	assert.True(t, p.Enabled())

	ctx, span := StartSpan(context.Background(), "test.span")
	assert.True(t, span.SpanContext().IsValid())
	End(span, errors.New("boom"))
	_ = ctx

	assert.NoError(t, p.Shutdown(context.Background()))
}
