package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// once 用来保证指标只注册一次。
	// Prometheus 的 registry 不允许重复注册同名指标，否则会直接 panic。
	once sync.Once

	// HTTPRequestsTotal：累计请求数。
	// route 用路由模板（/api/posts/:id），不要用真实 path，否则 label 基数无限增长。
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "HTTP请求的总数",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDurationSeconds：请求耗时分布，用于 P95/P99。
	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency distributions.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPInflightRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// KVOperations：KV 存储每次调用的结果，result = ok / miss / error / unavailable
	KVOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kvstore_operations_total",
			Help: "Key-value store operations by op and result.",
		},
		[]string{"op", "result"},
	)

	// CacheOperations：读穿缓存命中情况，namespace 例如 news:public
	CacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Read-through cache lookups by namespace and result.",
		},
		[]string{"namespace", "result"},
	)

	CacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Cache invalidation targets by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// ViewDedup：result = new / duplicate / anonymous / degraded
	ViewDedup = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "view_dedup_total",
			Help: "Unique visitor checks by result.",
		},
		[]string{"result"},
	)

	FanoutEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanout_events_total",
			Help: "Change events offered to subscribers, delivered or dropped.",
		},
		[]string{"result"},
	)

	FanoutSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fanout_subscribers",
			Help: "Active live-update subscriptions.",
		},
	)

	Effects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "effects_total",
			Help: "Post-commit side effects by name and result.",
		},
		[]string{"effect", "result"},
	)

	ViewEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "view_events_dropped_total",
			Help: "View log events dropped because the buffer was full.",
		},
	)
)

// Init 注册指标：只允许注册一次（否则 panic: duplicate metrics collector registration）
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDurationSeconds,
			HTTPInflightRequests,
			KVOperations,
			CacheOperations,
			CacheInvalidations,
			ViewDedup,
			FanoutEvents,
			FanoutSubscribers,
			Effects,
			ViewEventsDropped,
		)
	})
}
