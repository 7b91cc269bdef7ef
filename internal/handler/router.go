package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/meetingbingo/internal/metrics"
	"github.com/hitoshi/meetingbingo/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Validator         middleware.TokenValidator
	RateLimiter       *middleware.RateLimiter // nilの場合はレート制限なし
	Metrics           metrics.MetricsCollector
	CORSAllowedOrigin string

	// APIエラーモード（compat / strict）
	ErrorMode string

	// サービス
	MeetingService MeetingServiceInterface
	TopicService   TopicServiceInterface

	// 運用
	HealthChecker   HealthChecker
	MetricsGatherer prometheus.Gatherer

	// タブページ。FramedPathsのページだけFrameAncestorsからの埋め込みを許可する。
	TabPages       http.Handler
	FramedPaths    []string
	FrameAncestors []string
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → RequestID → Logging → Metrics → SecurityHeaders → FrameGuard
//	/api: CORS → BearerAuth → RateLimit(General) [→ RateLimit(ChatMessage)]
//
// /healthz, /metrics, /meetingBingoTab/* は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewFrameGuardMiddleware(deps.FramedPaths, deps.FrameAncestors))

	policy := NewErrorPolicy(deps.ErrorMode)
	meetingHandler := NewMeetingHandler(deps.MeetingService, policy)
	topicHandler := NewTopicHandler(deps.TopicService, policy)

	// --- 認証不要のルート ---

	r.Get("/healthz", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}
	if deps.TabPages != nil {
		r.Handle("/meetingBingoTab/*", deps.TabPages)
	}

	// --- 認証が必要なルート ---
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

		// Graph連携: 認証失敗もGraph系のエラーポリシーで応答する
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewBearerAuthMiddleware(deps.Validator, policy.WriteGraphError))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/meetingDetails/{meetingId}", meetingHandler.GetMeetingDetails)
			r.With(deps.RateLimiter.ChatMessageMiddleware()).Post("/chatMessage/{meetingId}", meetingHandler.PostChatMessage)
		})

		// トピック
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewBearerAuthMiddleware(deps.Validator, policy.WriteTopicsError))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/bingoTopics/{meetingId}", topicHandler.GetTopics)
			r.Post("/bingoTopics/{meetingId}", topicHandler.PutTopics)
		})
	})

	return r
}
