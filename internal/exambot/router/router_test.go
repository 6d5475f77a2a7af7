package router

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/exambot/internal/exambot/biz"
	"github.com/kart-io/exambot/internal/exambot/handler"
	"github.com/kart-io/exambot/internal/model"
	mwopts "github.com/kart-io/exambot/pkg/options/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type echoQuerier struct{}

func (echoQuerier) Query(_ context.Context, q string) (*model.QueryResult, error) {
	return &model.QueryResult{Answer: "echo " + q}, nil
}

type readyIndex struct{}

func (readyIndex) Loaded() bool { return true }

func (readyIndex) Stats(context.Context) (*biz.IndexStats, error) {
	return &biz.IndexStats{Backend: "chromem", Loaded: true}, nil
}

func newTestEngine(t *testing.T, metrics bool) *gin.Engine {
	t.Helper()
	opts := mwopts.NewOptions()
	opts.Metrics.Enabled = metrics
	opts.Metrics.Namespace = "test"

	reg := prometheus.NewRegistry()
	h := &Handlers{
		Chat:  handler.NewChatHandler(biz.NewChatSession(echoQuerier{}), 100, time.Second),
		Stats: handler.NewStatsHandler(readyIndex{}, nil, handler.Providers{Chat: "groq", Embedding: "ollama"}),
	}
	return New(opts, h, reg, reg)
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	r.ServeHTTP(w, req)
	return w
}

func TestRoutes(t *testing.T) {
	r := newTestEngine(t, true)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/", "", http.StatusOK},
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodGet, "/api/stats", "", http.StatusOK},
		{http.MethodPost, "/api/chat", `{"message":"hi","history":[]}`, http.StatusOK},
		{http.MethodGet, "/api/chat", "", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestEngine(t, true)
	do(r, http.MethodPost, "/api/chat", `{"message":"hi"}`)

	w := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `test_http_requests_total{method="POST",path="/api/chat",status="200"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	r := newTestEngine(t, false)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/metrics", "").Code)
}
