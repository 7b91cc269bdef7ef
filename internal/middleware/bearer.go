package middleware

import (
	"context"
	"net/http"

	"github.com/hitoshi/meetingbingo/internal/auth"
)

// TokenValidator はAuthorizationヘッダーを検証するインターフェース。
type TokenValidator interface {
	ValidateHeader(ctx context.Context, header string) (*auth.ValidatedToken, error)
}

var _ TokenValidator = (*auth.Validator)(nil)

// ErrorWriter は認証失敗時のレスポンスを書き込む。
// エンドポイントごとのエラーポリシーに応じてルーター側で差し替える。
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// NewBearerAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 検証済みトークンをリクエストコンテキストに注入するミドルウェアを返す。
// 検証に失敗したリクエストは後続ハンドラーに渡さずonErrorで応答する。
func NewBearerAuthMiddleware(validator TokenValidator, onError ErrorWriter) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok, err := validator.ValidateHeader(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				onError(w, r, err)
				return
			}

			ctx := ContextWithToken(r.Context(), tok)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
