// Package metrics 提供推荐引擎的 Prometheus 指标。
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ncfrec"

// 请求结果
const (
	OutcomeOK        = "ok"
	OutcomeColdStart = "cold_start"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Recorder 聚合引擎的全部指标。nil Recorder 的所有方法都是空操作。
type Recorder struct {
	requests *prometheus.CounterVec
	latency  prometheus.Histogram
	dropped  *prometheus.CounterVec
	scored   prometheus.Histogram
	trained  *prometheus.GaugeVec
}

// NewRecorder 创建指标并注册到 reg；reg 为 nil 时使用默认注册表。
func NewRecorder(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &Recorder{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recommend_requests_total",
			Help:      "Total number of recommend requests by outcome",
		}, []string{"outcome"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recommend_latency_seconds",
			Help:      "Latency of recommend calls",
			Buckets:   prometheus.DefBuckets,
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_dropped_total",
			Help:      "Candidates dropped before ranking by reason",
		}, []string{"reason"}),
		scored: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_scored",
			Help:      "Number of candidates scored per request",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		trained: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "model_vocabulary_size",
			Help:      "Vocabulary size of the loaded model",
		}, []string{"kind"}),
	}
	reg.MustRegister(r.requests, r.latency, r.dropped, r.scored, r.trained)
	return r
}

// ObserveRequest 记录一次请求的结果与耗时
func (r *Recorder) ObserveRequest(outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(outcome).Inc()
	r.latency.Observe(d.Seconds())
}

// AddDropped 记录被丢弃的候选数
func (r *Recorder) AddDropped(reason string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.dropped.WithLabelValues(reason).Add(float64(n))
}

// ObserveScored 记录单次请求的打分数量
func (r *Recorder) ObserveScored(n int) {
	if r == nil {
		return
	}
	r.scored.Observe(float64(n))
}

// SetVocabulary 记录当前模型的用户/物品词表大小
func (r *Recorder) SetVocabulary(users, items int) {
	if r == nil {
		return
	}
	r.trained.WithLabelValues("user").Set(float64(users))
	r.trained.WithLabelValues("item").Set(float64(items))
}
