package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatRequest struct {
	Message string     `json:"message" validate:"max=10"`
	History [][]string `json:"history" validate:"max=2"`
	Mode    string     `json:"mode,omitempty" validate:"omitempty,oneof=fast slow"`
	Email   string     `json:"email,omitempty" validate:"omitempty,email"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		req       chatRequest
		wantField string
		wantMsg   string
	}{
		{name: "valid", req: chatRequest{Message: "hi"}},
		{
			name:      "message too long counts runes",
			req:       chatRequest{Message: strings.Repeat("骨", 11)},
			wantField: "message",
			wantMsg:   "message must be at most 10 characters",
		},
		{
			name:      "too many turns",
			req:       chatRequest{History: [][]string{{"a", "b"}, {"c", "d"}, {"e", "f"}}},
			wantField: "history",
			wantMsg:   "history must contain at most 2 items",
		},
		{
			name:      "oneof",
			req:       chatRequest{Mode: "medium"},
			wantField: "mode",
			wantMsg:   "mode must be one of [fast slow]",
		},
		{
			name:      "translated default message",
			req:       chatRequest{Email: "not-an-address"},
			wantField: "email",
			wantMsg:   "email must be a valid email address",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.req)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verrs *ValidationErrors
			require.True(t, errors.As(err, &verrs), "got %T", err)
			assert.Equal(t, tt.wantField, verrs.Errors[0].Field)
			assert.Equal(t, tt.wantMsg, verrs.First())
		})
	}
}

func TestValidateVar(t *testing.T) {
	assert.NoError(t, ValidateVar("question", "心脏", "max=2"))

	err := ValidateVar("question", "心脏病", "max=2")
	require.Error(t, err)
	assert.Equal(t, "validation failed: question must be at most 2 characters", err.Error())
}

func TestValidationErrors_Error(t *testing.T) {
	var nilErrs *ValidationErrors
	assert.Equal(t, "", nilErrs.Error())
	assert.Equal(t, "", (&ValidationErrors{}).Error())

	errs := &ValidationErrors{Errors: []FieldError{
		{Field: "message", Message: "message is required"},
		{Field: "history", Message: "history must contain at most 2 items"},
	}}
	assert.Equal(t, "validation failed: message is required; history must contain at most 2 items", errs.Error())
}
