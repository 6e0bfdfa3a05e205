// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やクリーンアップワーカーから利用する。
type MetricsCollector interface {
	RecordAuthSuccess(action string)
	RecordAuthFailure(action string)
	RecordPhotoUpload()
	RecordPhotoDelete()
	RecordPhotoImport()
	RecordOrphanedBlob()
	RecordBlobOpLatency(op string, d time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authSuccess    *prometheus.CounterVec
	authFail       *prometheus.CounterVec
	photoUploads   prometheus.Counter
	photoDeletes   prometheus.Counter
	photoImports   prometheus.Counter
	orphanedBlobs  prometheus.Counter
	blobOpLatency  *prometheus.HistogramVec
	httpStatus     *prometheus.CounterVec
	sessionsPurged prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "albumbox_auth_success_total",
			Help: "認証成功の合計数（アクション別）",
		}, []string{"action"}),
		authFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "albumbox_auth_fail_total",
			Help: "認証失敗の合計数（アクション別）",
		}, []string{"action"}),
		photoUploads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "albumbox_photo_uploads_total",
			Help: "写真アップロード成功の合計数",
		}),
		photoDeletes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "albumbox_photo_deletes_total",
			Help: "写真削除成功の合計数",
		}),
		photoImports: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "albumbox_photo_imports_total",
			Help: "URLインポート成功の合計数",
		}),
		orphanedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "albumbox_orphaned_blobs_total",
			Help: "孤児ブロブ発生の合計数",
		}),
		blobOpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "albumbox_blob_op_latency_seconds",
			Help:    "ブロブストア操作のレイテンシ（秒、操作別）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "albumbox_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "albumbox_sessions_purged_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authSuccess,
		c.authFail,
		c.photoUploads,
		c.photoDeletes,
		c.photoImports,
		c.orphanedBlobs,
		c.blobOpLatency,
		c.httpStatus,
		c.sessionsPurged,
	)

	return c
}

// RecordAuthSuccess は認証成功を記録する。
func (c *Collector) RecordAuthSuccess(action string) {
	c.authSuccess.WithLabelValues(action).Inc()
}

// RecordAuthFailure は認証失敗を記録する。
func (c *Collector) RecordAuthFailure(action string) {
	c.authFail.WithLabelValues(action).Inc()
}

// RecordPhotoUpload は写真アップロード成功を記録する。
func (c *Collector) RecordPhotoUpload() {
	c.photoUploads.Inc()
}

// RecordPhotoDelete は写真削除成功を記録する。
func (c *Collector) RecordPhotoDelete() {
	c.photoDeletes.Inc()
}

// RecordPhotoImport はURLインポート成功を記録する。
func (c *Collector) RecordPhotoImport() {
	c.photoImports.Inc()
}

// RecordOrphanedBlob は孤児ブロブの発生を記録する。
func (c *Collector) RecordOrphanedBlob() {
	c.orphanedBlobs.Inc()
}

// RecordBlobOpLatency はブロブストア操作のレイテンシを記録する。
func (c *Collector) RecordBlobOpLatency(op string, d time.Duration) {
	c.blobOpLatency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSessionsPurged はクリーンアップで削除されたセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
