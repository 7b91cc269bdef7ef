// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"

	"github.com/hitoshi/meetingbingo/internal/auth"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// tokenContextKey は検証済みトークンを格納するためのキー。
	tokenContextKey = contextKey("token")
	// requestInfoContextKey はリクエスト単位の可変情報を格納するためのキー。
	requestInfoContextKey = contextKey("request_info")
)

// requestInfo はリクエストIDと認証済みユーザーIDを保持する。
// 外側のミドルウェア（ログ出力）が内側で確定した値を参照できるようポインタで共有する。
type requestInfo struct {
	requestID string
	userID    string
}

func requestInfoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(requestInfoContextKey).(*requestInfo)
	return info
}

func contextWithRequestInfo(ctx context.Context, info *requestInfo) context.Context {
	return context.WithValue(ctx, requestInfoContextKey, info)
}

// RequestIDFromContext はリクエストIDを返す。RequestIDミドルウェアを通過していない場合は空文字列。
func RequestIDFromContext(ctx context.Context) string {
	if info := requestInfoFromContext(ctx); info != nil {
		return info.requestID
	}
	return ""
}

// TokenFromContext はBearer認証ミドルウェアが注入した検証済みトークンを返す。
func TokenFromContext(ctx context.Context) (*auth.ValidatedToken, bool) {
	tok, ok := ctx.Value(tokenContextKey).(*auth.ValidatedToken)
	return tok, ok && tok != nil
}

// ContextWithToken はコンテキストに検証済みトークンを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithToken(ctx context.Context, tok *auth.ValidatedToken) context.Context {
	if info := requestInfoFromContext(ctx); info != nil {
		info.userID = tok.UserID()
	}
	return context.WithValue(ctx, tokenContextKey, tok)
}

// UserIDFromContext はリクエストコンテキストからユーザーID（トークンのoid）を取得する。
// Bearer認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	if tok, ok := TokenFromContext(ctx); ok && tok.UserID() != "" {
		return tok.UserID(), nil
	}
	if info := requestInfoFromContext(ctx); info != nil && info.userID != "" {
		return info.userID, nil
	}
	return "", fmt.Errorf("user ID not found in context")
}
