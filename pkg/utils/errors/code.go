// Package errors provides the structured error codes returned by the exambot API.
//
// Error Code Format: AABBCCC (7 digits)
//
//   - AA:  Service/Module code (00-99)
//   - BB:  Category code (00-99)
//   - CCC: Sequence number (000-999)
//
// Service Codes (AA):
//
//   - 00: Common/Base errors
//   - 20: exambot
//
// Category Codes (BB):
//
//   - 01: Request/Validation errors (400)
//   - 04: Resource errors (404)
//   - 06: Rate limiting errors (429)
//   - 07: Internal errors (500)
//   - 10: Network errors (502/503)
//   - 11: Timeout errors (408/504)
package errors

// Service codes (AA)
const (
	// ServiceCommon is for common/base errors.
	ServiceCommon = 0

	// ServiceExambot is for the exam bot service.
	ServiceExambot = 20
)

// Category codes (BB)
const (
	CategorySuccess   = 0
	CategoryRequest   = 1
	CategoryResource  = 4
	CategoryRateLimit = 6
	CategoryInternal  = 7
	CategoryNetwork   = 10
	CategoryTimeout   = 11
)

// MakeCode creates an error code from service, category, and sequence.
// Format: AABBCCC where AA=service, BB=category, CCC=sequence
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode parses an error code into service, category, and sequence.
func ParseCode(code int) (service, category, sequence int) {
	service = code / 100000
	category = (code % 100000) / 1000
	sequence = code % 1000
	return
}

// IsClientError checks if the error code indicates a client error (4xx).
func IsClientError(code int) bool {
	_, category, _ := ParseCode(code)
	return category >= CategoryRequest && category <= CategoryRateLimit
}

// IsServerError checks if the error code indicates a server error (5xx).
func IsServerError(code int) bool {
	_, category, _ := ParseCode(code)
	return category >= CategoryInternal
}
