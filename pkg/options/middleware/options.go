// Package middleware configures the HTTP middleware chain: request IDs,
// access logging and Prometheus metrics.
package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/spf13/pflag"

	"github.com/kart-io/exambot/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options groups the options of every HTTP middleware.
type Options struct {
	RequestID *RequestIDOptions `json:"request-id" mapstructure:"request-id"`
	Logger    *LoggerOptions    `json:"logger" mapstructure:"logger"`
	Metrics   *MetricsOptions   `json:"metrics" mapstructure:"metrics"`
}

// RequestIDOptions 请求 ID 中间件选项。
type RequestIDOptions struct {
	// Header 读取和回写请求 ID 的头，缺失时生成 ULID。
	Header string `json:"header" mapstructure:"header"`
}

// LoggerOptions 访问日志中间件选项。
type LoggerOptions struct {
	SkipPaths []string `json:"skip-paths" mapstructure:"skip-paths"`
}

// MetricsOptions HTTP 指标及 /metrics 端点选项。
type MetricsOptions struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	Path      string `json:"path" mapstructure:"path"`
	Namespace string `json:"namespace" mapstructure:"namespace"`
}

// NewOptions 创建默认中间件选项。
func NewOptions() *Options {
	return &Options{
		RequestID: NewRequestIDOptions(),
		Logger:    NewLoggerOptions(),
		Metrics:   NewMetricsOptions(),
	}
}

// NewRequestIDOptions creates default request ID options.
func NewRequestIDOptions() *RequestIDOptions {
	return &RequestIDOptions{Header: "X-Request-ID"}
}

// NewLoggerOptions creates default access log options; probes are not logged.
func NewLoggerOptions() *LoggerOptions {
	return &LoggerOptions{SkipPaths: []string{"/healthz", "/readyz"}}
}

// NewMetricsOptions creates default metrics options.
func NewMetricsOptions() *MetricsOptions {
	return &MetricsOptions{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "exambot",
	}
}

// AddFlags adds the middleware flags under <prefix>.middleware.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(append(prefixes, "middleware")...)
	fs.StringVar(&o.RequestID.Header, p+"request-id.header", o.RequestID.Header, "Request ID header name. Missing IDs are generated as ULIDs.")
	fs.StringSliceVar(&o.Logger.SkipPaths, p+"logger.skip-paths", o.Logger.SkipPaths, "Paths excluded from the access log.")
	fs.BoolVar(&o.Metrics.Enabled, p+"metrics.enabled", o.Metrics.Enabled, "Expose Prometheus metrics.")
	fs.StringVar(&o.Metrics.Path, p+"metrics.path", o.Metrics.Path, "Metrics endpoint path.")
	fs.StringVar(&o.Metrics.Namespace, p+"metrics.namespace", o.Metrics.Namespace, "Metrics namespace.")
}

// Validate validates all middleware options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.RequestID == nil || o.RequestID.Header == "" {
		errs = append(errs, errors.New("middleware.request-id.header is required"))
	}
	if m := o.Metrics; m != nil && m.Enabled {
		if !strings.HasPrefix(m.Path, "/") {
			errs = append(errs, errors.New("middleware.metrics.path must start with /"))
		}
		if m.Namespace == "" {
			errs = append(errs, errors.New("middleware.metrics.namespace is required"))
		}
	}
	return errs
}

// Complete fills nil groups and keeps the metrics endpoint out of the access log.
func (o *Options) Complete() error {
	if o.RequestID == nil {
		o.RequestID = NewRequestIDOptions()
	}
	if o.Logger == nil {
		o.Logger = NewLoggerOptions()
	}
	if o.Metrics == nil {
		o.Metrics = NewMetricsOptions()
	}
	if o.Metrics.Enabled && !o.Logger.ShouldSkip(o.Metrics.Path) {
		o.Logger.SkipPaths = append(o.Logger.SkipPaths, o.Metrics.Path)
	}
	return nil
}

// ShouldSkip reports whether path is excluded from access logging.
func (o *LoggerOptions) ShouldSkip(path string) bool {
	return o != nil && slices.Contains(o.SkipPaths, path)
}
