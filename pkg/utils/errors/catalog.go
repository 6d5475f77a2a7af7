package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// catalog 保存全部已声明的错误码，错误码重复时在包初始化阶段 panic。
var catalog = struct {
	sync.RWMutex
	byCode map[int]*Errno
}{byCode: make(map[int]*Errno)}

// Register adds e to the catalog and returns it.
func Register(e *Errno) *Errno {
	catalog.Lock()
	defer catalog.Unlock()

	if prev, dup := catalog.byCode[e.Code]; dup {
		panic(fmt.Sprintf("errno %d declared twice: %q and %q", e.Code, prev.Message, e.Message))
	}
	catalog.byCode[e.Code] = e
	return e
}

// Lookup returns the Errno declared with code.
func Lookup(code int) (*Errno, bool) {
	catalog.RLock()
	defer catalog.RUnlock()
	e, ok := catalog.byCode[code]
	return e, ok
}

// All returns every declared Errno ordered by code.
func All() []*Errno {
	catalog.RLock()
	out := make([]*Errno, 0, len(catalog.byCode))
	for _, e := range catalog.byCode {
		out = append(out, e)
	}
	catalog.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// 通用错误
var (
	OK                  = Register(New(0, http.StatusOK, "success"))
	ErrInvalidParam     = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), http.StatusBadRequest, "Invalid parameter"))
	ErrMethodNotAllowed = Register(New(MakeCode(ServiceCommon, CategoryRequest, 2), http.StatusMethodNotAllowed, "Method not allowed"))
	ErrNotFound         = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), http.StatusNotFound, "Resource not found"))
	ErrTooManyRequests  = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 1), http.StatusTooManyRequests, "Too many requests"))
	ErrInternal         = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), http.StatusInternalServerError, "Internal server error"))
	ErrPanic            = Register(New(MakeCode(ServiceCommon, CategoryInternal, 2), http.StatusInternalServerError, "Internal server error"))
	ErrServiceUnavail   = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 1), http.StatusServiceUnavailable, "Service unavailable"))
	ErrRequestTimeout   = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 1), http.StatusRequestTimeout, "Request timeout"))
)

// exambot 错误
var (
	ErrInvalidChatRequest = Register(New(MakeCode(ServiceExambot, CategoryRequest, 1), http.StatusBadRequest, "Invalid chat request"))
	ErrQuestionTooLong    = Register(New(MakeCode(ServiceExambot, CategoryRequest, 2), http.StatusBadRequest, "Question is too long"))
	ErrIndexNotReady      = Register(New(MakeCode(ServiceExambot, CategoryNetwork, 1), http.StatusServiceUnavailable, "Index is not loaded yet"))
	ErrQueryTimeout       = Register(New(MakeCode(ServiceExambot, CategoryTimeout, 1), http.StatusRequestTimeout, "Query timeout"))
	ErrQueryFailed        = Register(New(MakeCode(ServiceExambot, CategoryInternal, 1), http.StatusInternalServerError, "Query failed"))
	ErrStatsUnavailable   = Register(New(MakeCode(ServiceExambot, CategoryInternal, 2), http.StatusInternalServerError, "Statistics unavailable"))
)

// FromError converts err to an Errno for the response body.
// A wrapped Errno is returned as is, a context deadline becomes
// ErrRequestTimeout and anything else becomes ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return ErrRequestTimeout.WithCause(err)
	}
	return ErrInternal.WithCause(err)
}

// CodeOf returns the code of the Errno wrapped by err, or -1.
func CodeOf(err error) int {
	var e *Errno
	if stderrors.As(err, &e) {
		return e.Code
	}
	return -1
}
