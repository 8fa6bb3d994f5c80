package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 分类延迟（毫秒），按命中的 tier 拆分
	ClassificationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "classification_latency_ms",
			Help:    "Classifier pipeline latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms to ~4s
		},
		[]string{"tier"},
	)

	// Haiku 调用延迟（毫秒）
	HaikuCallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "haiku_call_latency_ms",
			Help:    "Semantic classifier call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(100, 2, 10), // 100ms to ~100s
		},
		[]string{"status"},
	)

	// 邮件分析计数
	EmailsAnalyzedCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "emails_analyzed_count",
			Help: "Total number of emails run through the classifier pipeline",
		},
		[]string{"account", "outcome"}, // outcome: attention, no_verdict, error
	)

	// 限流拒绝计数
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "haiku_rate_limit_rejections",
			Help: "Semantic tier reservations rejected by the rate limiter",
		},
		[]string{"account", "window"}, // window: daily, weekly, disabled
	)

	// 建议裁决计数
	SuggestionDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "suggestion_decisions_count",
			Help: "Approve/reject decisions recorded on suggestions and rules",
		},
		[]string{"kind", "decision"}, // kind: suggestion, rule; decision: approved, rejected
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "db_slow_query_count",
			Help: "Total number of slow database queries",
		},
	)

	// TTL 清理计数
	PurgedItemsCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purged_items_count",
			Help: "Rows removed by TTL purge",
		},
		[]string{"store"}, // store: attention, suggestion, rule
	)
)

// RecordClassificationLatency 记录分类延迟
func RecordClassificationLatency(tier string, duration time.Duration) {
	ClassificationLatency.WithLabelValues(tier).Observe(float64(duration.Milliseconds()))
}

// RecordHaikuCallLatency 记录 Haiku 调用延迟
func RecordHaikuCallLatency(status string, duration time.Duration) {
	HaikuCallLatency.WithLabelValues(status).Observe(float64(duration.Milliseconds()))
}

// IncrementEmailsAnalyzed 增加邮件分析计数
func IncrementEmailsAnalyzed(account, outcome string) {
	EmailsAnalyzedCount.WithLabelValues(account, outcome).Inc()
}

// IncrementRateLimitRejection 增加限流拒绝计数
func IncrementRateLimitRejection(account, window string) {
	RateLimitRejections.WithLabelValues(account, window).Inc()
}

// IncrementSuggestionDecision 增加建议裁决计数
func IncrementSuggestionDecision(kind, decision string) {
	SuggestionDecisions.WithLabelValues(kind, decision).Inc()
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(_ time.Duration) {
	SlowQueryCount.Inc()
}

// IncrementPurgedItems 增加 TTL 清理计数
func IncrementPurgedItems(store string, n int) {
	PurgedItemsCount.WithLabelValues(store).Add(float64(n))
}
