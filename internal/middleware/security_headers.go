package middleware

import (
	"net/http"
	"strings"
)

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
// 既定ではどのオリジンからのフレーム埋め込みも許可しない。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			next.ServeHTTP(w, r)
		})
	}
}

// NewFrameGuardMiddleware はguardedPathsに一致するパスに限り、
// ancestorsに列挙したオリジン（Teamsクライアント）からのフレーム埋め込みを許可する。
// 一致しないパスはNewSecurityHeadersMiddlewareの既定（DENY）のまま。
func NewFrameGuardMiddleware(guardedPaths, ancestors []string) func(next http.Handler) http.Handler {
	guarded := make(map[string]bool, len(guardedPaths))
	for _, p := range guardedPaths {
		guarded[p] = true
	}
	policy := "frame-ancestors 'self'"
	if len(ancestors) > 0 {
		policy += " " + strings.Join(ancestors, " ")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if guarded[r.URL.Path] {
				w.Header().Del("X-Frame-Options")
				w.Header().Set("Content-Security-Policy", policy)
			}
			next.ServeHTTP(w, r)
		})
	}
}
