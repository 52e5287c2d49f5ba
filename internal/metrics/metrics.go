// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// HTTPリクエストのメトリクスとユーザーライフサイクルのカウンタを持つ。
type Collector struct {
	httpStatus     *prometheus.CounterVec
	requestLatency prometheus.Histogram
	usersCreated   prometheus.Counter
	usersUpdated   prometheus.Counter
	usersDeleted   prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "userman_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "userman_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		usersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userman_users_created_total",
			Help: "作成されたユーザーの合計数",
		}),
		usersUpdated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userman_users_updated_total",
			Help: "更新されたユーザーの合計数",
		}),
		usersDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "userman_users_deleted_total",
			Help: "削除されたユーザーの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.requestLatency,
		c.usersCreated,
		c.usersUpdated,
		c.usersDeleted,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// RecordUserCreated はユーザー作成を記録する。
func (c *Collector) RecordUserCreated() {
	c.usersCreated.Inc()
}

// RecordUserUpdated はユーザー更新を記録する。
func (c *Collector) RecordUserUpdated() {
	c.usersUpdated.Inc()
}

// RecordUserDeleted はユーザー削除を記録する。
func (c *Collector) RecordUserDeleted() {
	c.usersDeleted.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
