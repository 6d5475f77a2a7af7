// Package rag provides query-time RAG (Retrieval-Augmented Generation) options.
package rag

import (
	"fmt"
	"strings"
	"time"

	"github.com/kart-io/exambot/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains RAG query configuration.
type Options struct {
	// TopK is the number of passages retrieved per question.
	TopK int `json:"top-k" mapstructure:"top-k"`

	// MinScore drops retrieved passages scoring below it.
	MinScore float64 `json:"min-score" mapstructure:"min-score"`

	// PromptTemplate is the answer synthesis prompt. It must contain
	// {{context}} and {{question}}.
	PromptTemplate string `json:"prompt-template" mapstructure:"prompt-template"`

	// QueryTimeout bounds one question end to end.
	QueryTimeout time.Duration `json:"query-timeout" mapstructure:"query-timeout"`

	// MaxQuestionLength is measured in runes.
	MaxQuestionLength int `json:"max-question-length" mapstructure:"max-question-length"`
}

// DefaultPromptTemplate is the text QA prompt used to synthesize answers.
const DefaultPromptTemplate = `Context information is below.
---------------------
{{context}}
---------------------
Given the context information and not prior knowledge, answer the query.
Query: {{question}}
Answer: `

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		TopK:              2,
		PromptTemplate:    DefaultPromptTemplate,
		QueryTimeout:      60 * time.Second,
		MaxQuestionLength: 4000,
	}
}

// AddFlags adds flags for RAG options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "rag."
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Number of passages retrieved per question.")
	fs.Float64Var(&o.MinScore, p+"min-score", o.MinScore, "Minimum similarity score for a retrieved passage.")
	fs.StringVar(&o.PromptTemplate, p+"prompt-template", o.PromptTemplate, "Answer prompt with {{context}} and {{question}} placeholders.")
	fs.DurationVar(&o.QueryTimeout, p+"query-timeout", o.QueryTimeout, "Timeout for answering one question.")
	fs.IntVar(&o.MaxQuestionLength, p+"max-question-length", o.MaxQuestionLength, "Maximum question length in characters.")
}

// Validate validates the RAG options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("rag.top-k must be positive"))
	}
	if !strings.Contains(o.PromptTemplate, "{{context}}") || !strings.Contains(o.PromptTemplate, "{{question}}") {
		errs = append(errs, fmt.Errorf("rag.prompt-template must contain {{context}} and {{question}}"))
	}
	if o.QueryTimeout <= 0 {
		errs = append(errs, fmt.Errorf("rag.query-timeout must be positive"))
	}
	if o.MaxQuestionLength <= 0 {
		errs = append(errs, fmt.Errorf("rag.max-question-length must be positive"))
	}
	return errs
}

// Complete completes the RAG options with defaults.
func (o *Options) Complete() error {
	if o.PromptTemplate == "" {
		o.PromptTemplate = DefaultPromptTemplate
	}
	return nil
}
