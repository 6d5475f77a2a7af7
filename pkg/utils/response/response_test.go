package response

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/pkg/infra/middleware/common"
	"github.com/kart-io/exambot/pkg/utils/errors"
	"github.com/kart-io/exambot/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newContext(t *testing.T) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	c.Request = req.WithContext(common.WithRequestID(req.Context(), "req-1"))
	return c, w
}

func TestFail(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
		wantMsg    string
	}{
		{
			name:       "errno",
			err:        errors.ErrQuestionTooLong,
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrQuestionTooLong.Code,
			wantMsg:    "Question is too long",
		},
		{
			name:       "wrapped errno keeps its status",
			err:        fmt.Errorf("chat: %w", errors.ErrQueryTimeout.WithCause(fmt.Errorf("deadline"))),
			wantStatus: http.StatusRequestTimeout,
			wantCode:   errors.ErrQueryTimeout.Code,
			wantMsg:    "Query timeout",
		},
		{
			name:       "plain error hides the cause",
			err:        fmt.Errorf("dial tcp: connection refused"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   errors.ErrInternal.Code,
			wantMsg:    "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, w := newContext(t)
			Fail(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body ErrorBody
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
			assert.Equal(t, "req-1", body.RequestID)
		})
	}
}

func TestAbort(t *testing.T) {
	c, w := newContext(t)
	Abort(c, errors.ErrIndexNotReady)

	assert.True(t, c.IsAborted())
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestOK(t *testing.T) {
	c, w := newContext(t)
	OK(c, gin.H{"status": "ok"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
