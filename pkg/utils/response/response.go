// Package response writes the JSON bodies of the exambot HTTP API.
//
// Successful handlers write their payload as-is. Failures are written as
//
//	{"code": 2001001, "message": "Invalid chat request", "request_id": "01J..."}
//
// with the HTTP status taken from the matching errors.Errno.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/exambot/pkg/infra/middleware/common"
	"github.com/kart-io/exambot/pkg/utils/errors"
)

// ErrorBody is the error response structure.
type ErrorBody struct {
	// Code is the business error code
	Code int `json:"code"`

	// Message is a human-readable message
	Message string `json:"message"`

	// RequestID is the unique request identifier for tracing
	RequestID string `json:"request_id,omitempty"`
}

// OK writes data with status 200.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Fail writes err as an ErrorBody. Errors that do not wrap an errors.Errno
// become ErrInternal; the cause is never exposed to the client.
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	if e == nil {
		e = errors.ErrInternal
	}
	c.JSON(e.HTTPStatus(), Err(e, common.GetRequestID(c.Request.Context())))
}

// Abort is Fail followed by c.Abort.
func Abort(c *gin.Context, err error) {
	Fail(c, err)
	c.Abort()
}

// Err builds the ErrorBody of e.
func Err(e *errors.Errno, requestID string) *ErrorBody {
	return &ErrorBody{
		Code:      e.Code,
		Message:   e.Message,
		RequestID: requestID,
	}
}
