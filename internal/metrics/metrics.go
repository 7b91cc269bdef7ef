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
// 認証・Graph・トピックストア・HTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordHTTPStatus(statusCode int)
	RecordTokenValidation(result string)
	RecordJWKSRefresh(result string)
	RecordOBOExchange(result string)
	RecordGraphRequest(operation string, statusCode int, duration time.Duration)
	RecordTopicStoreOperation(op, result string)
	RecordBingoMessage()
}

// 結果ラベルの値
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpStatus       *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	jwksRefresh      *prometheus.CounterVec
	oboExchanges     *prometheus.CounterVec
	graphRequests    *prometheus.CounterVec
	graphLatency     prometheus.Histogram
	topicStoreOps    *prometheus.CounterVec
	bingoMessages    prometheus.Counter
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetingbingo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		tokenValidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetingbingo_token_validations_total",
			Help: "SSOトークン検証の結果別件数",
		}, []string{"result"}),
		jwksRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetingbingo_jwks_refresh_total",
			Help: "署名鍵セット取得の結果別件数",
		}, []string{"result"}),
		oboExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetingbingo_obo_exchanges_total",
			Help: "On-Behalf-Ofトークン交換の結果別件数",
		}, []string{"result"}),
		graphRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetingbingo_graph_requests_total",
			Help: "Microsoft Graph呼び出しの操作・ステータス別件数",
		}, []string{"operation", "status_code"}),
		graphLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "meetingbingo_graph_latency_seconds",
			Help:    "Microsoft Graph呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		topicStoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meetingbingo_topic_store_operations_total",
			Help: "トピックストア操作の種別・結果別件数",
		}, []string{"op", "result"}),
		bingoMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "meetingbingo_bingo_messages_total",
			Help: "会議チャットへ送信したメッセージの合計数",
		}),
	}

	reg.MustRegister(
		c.httpStatus,
		c.tokenValidations,
		c.jwksRefresh,
		c.oboExchanges,
		c.graphRequests,
		c.graphLatency,
		c.topicStoreOps,
		c.bingoMessages,
	)

	return c
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordTokenValidation はトークン検証結果を記録する。
func (c *Collector) RecordTokenValidation(result string) {
	c.tokenValidations.WithLabelValues(result).Inc()
}

// RecordJWKSRefresh は署名鍵セットの取得結果を記録する。
func (c *Collector) RecordJWKSRefresh(result string) {
	c.jwksRefresh.WithLabelValues(result).Inc()
}

// RecordOBOExchange はOBO交換の結果を記録する。
func (c *Collector) RecordOBOExchange(result string) {
	c.oboExchanges.WithLabelValues(result).Inc()
}

// RecordGraphRequest はGraph呼び出しの件数とレイテンシを記録する。
// statusCodeが0の場合は通信自体が失敗したことを表す。
func (c *Collector) RecordGraphRequest(operation string, statusCode int, duration time.Duration) {
	c.graphRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	c.graphLatency.Observe(duration.Seconds())
}

// RecordTopicStoreOperation はトピックストア操作の結果を記録する。
func (c *Collector) RecordTopicStoreOperation(op, result string) {
	c.topicStoreOps.WithLabelValues(op, result).Inc()
}

// RecordBingoMessage はチャットメッセージ送信を記録する。
func (c *Collector) RecordBingoMessage() {
	c.bingoMessages.Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordHTTPStatus(int)                          {}
func (Nop) RecordTokenValidation(string)                  {}
func (Nop) RecordJWKSRefresh(string)                      {}
func (Nop) RecordOBOExchange(string)                      {}
func (Nop) RecordGraphRequest(string, int, time.Duration) {}
func (Nop) RecordTopicStoreOperation(string, string)      {}
func (Nop) RecordBingoMessage()                           {}

// OrNop はmがnilの場合にNopを返す。
func OrNop(m MetricsCollector) MetricsCollector {
	if m == nil {
		return Nop{}
	}
	return m
}

// Result はerrの有無から結果ラベルを返す。
func Result(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
