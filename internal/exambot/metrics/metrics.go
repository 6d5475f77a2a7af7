// Package metrics 提供 exambot 的业务指标收集。
//
// 所有方法对 nil 接收者安全，未启用指标时直接传 nil 即可。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 查询结果标签。
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultEmpty = "empty"
	ResultError = "error"
)

// Metrics exambot 业务指标。
type Metrics struct {
	queriesTotal      *prometheus.CounterVec
	queryDuration     prometheus.Histogram
	retrievalDuration prometheus.Histogram
	llmCallsTotal     *prometheus.CounterVec
	llmCallDuration   *prometheus.HistogramVec
	llmTokensTotal    *prometheus.CounterVec
	indexedChunks     prometheus.Gauge
	indexedDocuments  prometheus.Gauge
	indexBuildSeconds prometheus.Gauge
	circuitState      *prometheus.GaugeVec
}

// New 在 reg 上注册并返回指标集合。
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Total number of questions answered, by result (hit, miss, empty, error).",
		}, []string{"result"}),
		queryDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end query latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		retrievalDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_duration_seconds",
			Help:      "Latency of question embedding plus similarity search.",
			Buckets:   prometheus.DefBuckets,
		}),
		llmCallsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of chat completion calls, by provider and result.",
		}, []string{"provider", "result"}),
		llmCallDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Latency of chat completion calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		llmTokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by chat completions, by kind (prompt, completion).",
		}, []string{"kind"}),
		indexedChunks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_chunks",
			Help:      "Number of chunks in the loaded index.",
		}),
		indexedDocuments: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "indexed_documents",
			Help:      "Number of documents read by the last index build.",
		}),
		indexBuildSeconds: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Duration of the last index build.",
		}),
		circuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_open",
			Help:      "1 when the provider circuit breaker is not closed.",
		}, []string{"provider"}),
	}
}

// RecordQuery 记录一次查询。
func (m *Metrics) RecordQuery(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(result).Inc()
	if result != ResultError {
		m.queryDuration.Observe(d.Seconds())
	}
}

// RecordRetrieval 记录检索耗时。
func (m *Metrics) RecordRetrieval(d time.Duration) {
	if m == nil {
		return
	}
	m.retrievalDuration.Observe(d.Seconds())
}

// RecordLLMCall 记录 LLM 调用。
func (m *Metrics) RecordLLMCall(provider string, d time.Duration, promptTokens, completionTokens int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.llmCallsTotal.WithLabelValues(provider, "error").Inc()
		return
	}
	m.llmCallsTotal.WithLabelValues(provider, "success").Inc()
	m.llmCallDuration.WithLabelValues(provider).Observe(d.Seconds())
	m.llmTokensTotal.WithLabelValues("prompt").Add(float64(promptTokens))
	m.llmTokensTotal.WithLabelValues("completion").Add(float64(completionTokens))
}

// SetIndexed 记录当前索引规模。
func (m *Metrics) SetIndexed(documents int, chunks int64) {
	if m == nil {
		return
	}
	if documents >= 0 {
		m.indexedDocuments.Set(float64(documents))
	}
	m.indexedChunks.Set(float64(chunks))
}

// RecordIndexBuild 记录索引构建耗时。
func (m *Metrics) RecordIndexBuild(d time.Duration) {
	if m == nil {
		return
	}
	m.indexBuildSeconds.Set(d.Seconds())
}

// SetCircuitOpen 记录熔断器状态。
func (m *Metrics) SetCircuitOpen(provider string, open bool) {
	if m == nil {
		return
	}
	v := 0.0
	if open {
		v = 1
	}
	m.circuitState.WithLabelValues(provider).Set(v)
}
