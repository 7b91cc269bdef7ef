// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, graph, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeForbidden     = "FORBIDDEN"
	ErrCodeServerError   = "SERVER_ERROR"
	ErrCodeInvalidTopics = "INVALID_TOPICS"
	ErrCodeInvalidBody   = "INVALID_REQUEST"
	ErrCodeStoreFailed   = "STORE_FAILED"
	ErrCodeInternal      = "INTERNAL_ERROR"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
)

// NewUnauthorizedError はAuthorizationヘッダーが無い・不正な場合のエラーを生成する。
func NewUnauthorizedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  fmt.Sprintf("Authentication is required: %s", reason),
		Category: "auth",
		Action:   "Sign in to Microsoft Teams and reopen the tab.",
	}
}

// NewForbiddenError はトークンの署名・audience検証に失敗した場合のエラーを生成する。
func NewForbiddenError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  fmt.Sprintf("The access token was rejected: %s", reason),
		Category: "auth",
		Action:   "Reopen the tab to obtain a fresh token.",
	}
}

// NewServerError はOBO交換やGraph呼び出しの失敗を表すエラーを生成する。
// 失敗原因の区別は呼び出し側に公開しない。
func NewServerError() *APIError {
	return &APIError{
		Code:     ErrCodeServerError,
		Message:  "The request to Microsoft Graph could not be completed.",
		Category: "graph",
		Action:   "Wait a moment and try again.",
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBody,
		Message:  fmt.Sprintf("The request body could not be parsed: %s", reason),
		Category: "validation",
		Action:   "Send a valid JSON body.",
	}
}

// NewInvalidTopicsError はトピックリストが文字列配列でない場合のエラーを生成する。
func NewInvalidTopicsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTopics,
		Message:  "Topics must be a JSON array of strings.",
		Category: "validation",
		Action:   `Send the full topic list, for example ["Can you hear me?"].`,
	}
}

// NewStoreFailedError はトピックストアの読み書き失敗を表すエラーを生成する。
func NewStoreFailedError(op string) *APIError {
	return &APIError{
		Code:     ErrCodeStoreFailed,
		Message:  fmt.Sprintf("The topic store failed to %s.", op),
		Category: "storage",
		Action:   "Wait a moment and try again.",
	}
}

// NewInternalError は分類できない内部エラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "Wait a moment and try again.",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}
