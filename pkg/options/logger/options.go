// Package logger configures the global kart-io/logger used by every exambot
// component.
package logger

import (
	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/kart-io/logger/option"
	"github.com/spf13/pflag"
)

// Options wraps option.LogOption and adds a service name stamped on every entry.
type Options struct {
	*option.LogOption `mapstructure:",squash"`

	// Service 写入每条日志的 service 字段，空表示不写。
	Service string `json:"service" mapstructure:"service"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		LogOption: option.DefaultLogOption(),
		Service:   "exambot",
	}
}

// AddFlags adds flags for logger options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Engine, "log.engine", o.Engine, "Logging engine (zap|slog)")
	fs.StringVar(&o.Level, "log.level", o.Level, "Log level (DEBUG|INFO|WARN|ERROR|FATAL)")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log format (json|console)")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Log outputs, e.g. stdout or a file path")
	fs.BoolVar(&o.Development, "log.development", o.Development, "Development mode (console format, debug caller info)")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Omit the caller field")
	fs.BoolVar(&o.DisableStacktrace, "log.disable-stacktrace", o.DisableStacktrace, "Omit stack traces on errors")
	fs.StringVar(&o.OTLPEndpoint, "log.otlp-endpoint", o.OTLPEndpoint, "Ship logs to this OTLP endpoint")
	fs.StringVar(&o.Service, "log.service", o.Service, "Value of the service field on every entry")
}

// Validate validates the logger options.
func (o *Options) Validate() []error {
	if o.LogOption == nil {
		return nil
	}
	if err := o.LogOption.Validate(); err != nil {
		return []error{err}
	}
	return nil
}

// Complete completes the logger options with defaults.
func (o *Options) Complete() error {
	if o.LogOption == nil {
		o.LogOption = option.DefaultLogOption()
	}
	return nil
}

// CreateLogger builds a logger from the options.
func (o *Options) CreateLogger() (core.Logger, error) {
	log, err := logger.New(o.LogOption)
	if err != nil {
		return nil, err
	}
	if o.Service != "" {
		log = log.With("service", o.Service)
	}
	return log, nil
}

// Init replaces the global logger.
func (o *Options) Init() error {
	log, err := o.CreateLogger()
	if err != nil {
		return err
	}
	logger.SetGlobal(log)
	return nil
}
