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
// 入場判定サービスやハンドラー層から利用する。
type MetricsCollector interface {
	RecordOutcome(reason string, admitted bool)
	RecordProviderFailure(stage string)
	RecordVisionLatency(stage string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordCacheSize(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	checkinOutcomes *prometheus.CounterVec
	admissions      prometheus.Counter
	providerFail    *prometheus.CounterVec
	visionLatency   *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
	cacheSize       prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkinOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facecheck_checkin_outcomes_total",
			Help: "理由コード別の入場判定結果の合計数",
		}, []string{"reason"}),
		admissions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "facecheck_admissions_total",
			Help: "入場許可の合計数",
		}),
		providerFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facecheck_provider_failures_total",
			Help: "顔認証プロバイダ呼び出し失敗のステージ別合計数",
		}, []string{"stage"}),
		visionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "facecheck_vision_latency_seconds",
			Help:    "顔認証プロバイダ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "facecheck_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "facecheck_enrollment_cache_entries",
			Help: "登録キャッシュのエントリ数",
		}),
	}

	reg.MustRegister(
		c.checkinOutcomes,
		c.admissions,
		c.providerFail,
		c.visionLatency,
		c.httpStatus,
		c.cacheSize,
	)

	return c
}

// RecordOutcome は入場判定結果を理由コード別に記録する。
func (c *Collector) RecordOutcome(reason string, admitted bool) {
	c.checkinOutcomes.WithLabelValues(reason).Inc()
	if admitted {
		c.admissions.Inc()
	}
}

// RecordProviderFailure はプロバイダ呼び出し失敗をステージ別に記録する。
func (c *Collector) RecordProviderFailure(stage string) {
	c.providerFail.WithLabelValues(stage).Inc()
}

// RecordVisionLatency はプロバイダ呼び出しのレイテンシを記録する。
func (c *Collector) RecordVisionLatency(stage string, duration time.Duration) {
	c.visionLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCacheSize は登録キャッシュのエントリ数を記録する。
func (c *Collector) RecordCacheSize(count int) {
	c.cacheSize.Set(float64(count))
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
