package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 邮件发送计数
	MailSentCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mail_sent_total",
			Help: "Total number of mails sent",
		},
	)

	MailReadCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mail_read_total",
			Help: "Total number of unread mails opened by their recipient",
		},
	)

	MailDeletedCount = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mail_deleted_total",
			Help: "Total number of mails deleted",
		},
	)

	// 登录结果计数
	AuthLoginCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome",
		},
		[]string{"status"}, // status: success, invalid, throttled, error
	)

	AuthSignupCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_signup_total",
			Help: "Signup attempts by outcome",
		},
		[]string{"status"}, // status: success, conflict, error
	)

	// 事件发布失败计数
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Domain events that could not be published",
		},
		[]string{"type"},
	)

	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "Delay between event publication and consumption in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"type"},
	)
)

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(eventType string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(eventType).Observe(float64(duration.Milliseconds()))
}

// IncrementLogin 增加登录计数
func IncrementLogin(status string) {
	AuthLoginCount.WithLabelValues(status).Inc()
}

// IncrementSignup 增加注册计数
func IncrementSignup(status string) {
	AuthSignupCount.WithLabelValues(status).Inc()
}

// IncrementPublishFailure 增加事件发布失败计数
func IncrementPublishFailure(eventType string) {
	EventPublishFailures.WithLabelValues(eventType).Inc()
}

// RegisterStoreGauges exposes store sizes. Call once per process.
func RegisterStoreGauges(reg prometheus.Registerer, users, mails, mailboxes func() int) {
	gauge := func(name, help string, f func() int) prometheus.Collector {
		return prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help},
			func() float64 { return float64(f()) },
		)
	}
	reg.MustRegister(
		gauge("store_users", "Registered users held in memory", users),
		gauge("store_mails", "Mails held in memory", mails),
		gauge("store_mailboxes", "Mailbox index records held in memory", mailboxes),
	)
}
