// Package validator wraps go-playground/validator with JSON field names and
// plain English messages.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entranslations "github.com/go-playground/validator/v10/translations/en"
)

// FieldError describes one failed rule.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message"`
}

// ValidationErrors collects the FieldErrors of one validation.
type ValidationErrors struct {
	Errors []FieldError `json:"errors"`
}

// Error implements error.
func (e *ValidationErrors) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// First returns the message of the first failed rule.
func (e *ValidationErrors) First() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

// Validator validates structs and single values.
type Validator struct {
	validate *validator.Validate
	// trans 为没有自定义消息的规则提供英文默认消息。
	trans ut.Translator
}

// New creates a Validator that reports fields by their json name.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(jsonTagName)

	locale := en.New()
	trans, _ := ut.New(locale, locale).GetTranslator("en")
	if err := entranslations.RegisterDefaultTranslations(v, trans); err != nil {
		trans = nil
	}
	return &Validator{validate: v, trans: trans}
}

func jsonTagName(fld reflect.StructField) string {
	name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return fld.Name
	}
	return name
}

var (
	global     *Validator
	globalOnce sync.Once
)

// Global returns the process-wide Validator.
func Global() *Validator {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// Validate validates a struct by its `validate` tags.
func (v *Validator) Validate(s any) error {
	return v.translate(v.validate.Struct(s), "")
}

// ValidateVar validates a single value against tag. name is used in messages.
func (v *Validator) ValidateVar(name string, field any, tag string) error {
	return v.translate(v.validate.Var(field, tag), name)
}

// Engine returns the underlying validator.
func (v *Validator) Engine() *validator.Validate {
	return v.validate
}

func (v *Validator) translate(err error, name string) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &ValidationErrors{Errors: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		field := fe.Field()
		if field == "" {
			field = name
		}
		out.Errors = append(out.Errors, FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: v.message(field, fe),
		})
	}
	return out
}

func (v *Validator) message(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain at most %s items", field, fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	}
	if v.trans != nil {
		if msg := fe.Translate(v.trans); msg != "" && msg != fe.Error() {
			return msg
		}
	}
	return fmt.Sprintf("%s failed on the '%s' rule", field, fe.Tag())
}

// Validate validates s with the global Validator.
func Validate(s any) error {
	return Global().Validate(s)
}

// ValidateVar validates field with the global Validator.
func ValidateVar(name string, field any, tag string) error {
	return Global().ValidateVar(name, field, tag)
}
