// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 操作結果のラベル値。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordFavoriteOperation(op, result string)
	RecordCatalogRequest(endpoint string, statusCode int)
	RecordCatalogLatency(duration time.Duration)
	RecordAuthAttempt(kind, result string)
	RecordSessionsPurged(count int64)
	RecordHTTPRequest(method string, statusCode int, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	favoriteOps    *prometheus.CounterVec
	catalogStatus  *prometheus.CounterVec
	catalogLatency prometheus.Histogram
	authAttempts   *prometheus.CounterVec
	sessionsPurged prometheus.Counter
	httpRequests   *prometheus.CounterVec
	httpLatency    prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		favoriteOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviediscovery_favorite_operations_total",
			Help: "お気に入り操作の合計数",
		}, []string{"op", "result"}),
		catalogStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviediscovery_catalog_requests_total",
			Help: "映画カタログAPIへのリクエスト数（エンドポイント・ステータスコード別）",
		}, []string{"endpoint", "status_code"}),
		catalogLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moviediscovery_catalog_latency_seconds",
			Help:    "映画カタログAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviediscovery_auth_attempts_total",
			Help: "サインアップ・サインインの試行数",
		}, []string{"kind", "result"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "moviediscovery_sessions_purged_total",
			Help: "期限切れで削除されたセッションの合計数",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "moviediscovery_http_requests_total",
			Help: "HTTPリクエスト数（メソッド・ステータスコード別）",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "moviediscovery_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.favoriteOps,
		c.catalogStatus,
		c.catalogLatency,
		c.authAttempts,
		c.sessionsPurged,
		c.httpRequests,
		c.httpLatency,
	)

	return c
}

// RecordFavoriteOperation はお気に入り操作の結果を記録する。
func (c *Collector) RecordFavoriteOperation(op, result string) {
	c.favoriteOps.WithLabelValues(op, result).Inc()
}

// RecordCatalogRequest はカタログAPIのレスポンスステータスを記録する。
// 通信エラーでレスポンスがない場合はstatusCodeに0を渡す。
func (c *Collector) RecordCatalogRequest(endpoint string, statusCode int) {
	c.catalogStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordCatalogLatency はカタログAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordCatalogLatency(duration time.Duration) {
	c.catalogLatency.Observe(duration.Seconds())
}

// RecordAuthAttempt は認証試行の結果を記録する。
func (c *Collector) RecordAuthAttempt(kind, result string) {
	c.authAttempts.WithLabelValues(kind, result).Inc()
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// RecordHTTPRequest はHTTPリクエストのステータスと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute はワーカー用の運用エンドポイントを持つHTTPハンドラーを返す。
// /metrics はPrometheusスクレイプ用。healthがnilでなければ /health にマウントし、
// コンテナのヘルスチェックをAPIサーバーと同じパスで受けられるようにする。
func SetupMetricsRoute(gatherer prometheus.Gatherer, health http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	if health != nil {
		mux.Handle("/health", health)
	}
	return mux
}
