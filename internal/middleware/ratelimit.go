package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/meetingbingo/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	ChatRate        rate.Limit    // チャット投稿のレート（req/sec）。10/60
	ChatBurst       int           // チャット投稿のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、チャット投稿 10 req/min/user
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfigPerMinute(120, 10)
}

// RateLimiterConfigPerMinute は1分あたりのリクエスト数からレート制限設定を組み立てる。
// バーストサイズは1分あたりの上限と同じにする。0以下の値は1として扱う。
func RateLimiterConfigPerMinute(general, chat int) RateLimiterConfig {
	general = max(general, 1)
	chat = max(chat, 1)
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		ChatRate:        rate.Limit(float64(chat) / 60.0),
		ChatBurst:       chat,
		CleanupInterval: 5 * time.Minute,
	}
}

// limiterPool は1種類のレート制限についてユーザーごとのリミッターを保持する。
type limiterPool struct {
	kind  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newLimiterPool(kind string, limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{
		kind:    kind,
		limit:   limit,
		burst:   burst,
		entries: make(map[string]*poolEntry),
	}
}

// allow はユーザーのリミッターを取得または作成し、1リクエスト分を消費する。
func (p *limiterPool) allow(userID string, now time.Time) bool {
	p.mu.Lock()
	e, ok := p.entries[userID]
	if !ok {
		e = &poolEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[userID] = e
	}
	e.lastAccess = now
	p.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (p *limiterPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// sweep は最終アクセスからttlを超えたエントリを削除する。
func (p *limiterPool) sweep(now time.Time, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, e := range p.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(p.entries, userID)
		}
	}
}

// middleware はプールでレート制限するミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（Bearer認証ミドルウェアの後に配置）。
func (p *limiterPool) middleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError("no authenticated user"))
				return
			}

			if !p.allow(userID, time.Now()) {
				writeRateLimitResponse(w, p.limit)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", p.kind),
				)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimiter はユーザー（トークンのoid）ごとのレート制限を管理する。
// API全般のレート制限とチャット投稿のレート制限の2種類を提供する。
// nilのRateLimiterは制限を行わない。
type RateLimiter struct {
	config  RateLimiterConfig
	general *limiterPool
	chat    *limiterPool

	stopCh chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		general: newLimiterPool("general", config.GeneralRate, config.GeneralBurst),
		chat:    newLimiterPool("chat_message", config.ChatRate, config.ChatBurst),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。
func (rl *RateLimiter) Stop() {
	if rl == nil {
		return
	}
	close(rl.stopCh)
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	if rl == nil {
		return passThrough
	}
	return rl.general.middleware()
}

// ChatMessageMiddleware はチャット投稿専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) ChatMessageMiddleware() func(next http.Handler) http.Handler {
	if rl == nil {
		return passThrough
	}
	return rl.chat.middleware()
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// ChatLimiterCount は現在管理されているチャット投稿リミッターのエントリ数を返す。
func (rl *RateLimiter) ChatLimiterCount() int {
	return rl.chat.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			// TTLはCleanupIntervalの2倍
			ttl := rl.config.CleanupInterval * 2
			rl.general.sweep(now, ttl)
			rl.chat.sweep(now, ttl)
		case <-rl.stopCh:
			return
		}
	}
}

func passThrough(next http.Handler) http.Handler { return next }

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := int(math.Ceil(1.0 / float64(r)))
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitError())
}
