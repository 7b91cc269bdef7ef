package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/meetingbingo/internal/config"
	"github.com/hitoshi/meetingbingo/internal/middleware"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// ErrorPolicy はエンドポイント群ごとのエラー応答方針。
//
// compatモードではmeetingDetails/chatMessageの失敗を200 {}で、
// bingoTopicsの失敗を500の統一エラーフォーマットで返す。
// strictモードではエラー種別に応じたステータスコードを返す。
// リクエストボディが解析できない場合はどちらのモードでも400を返す。
type ErrorPolicy struct {
	strict bool
}

// NewErrorPolicy はAPI_ERROR_MODEの値からErrorPolicyを生成する。
func NewErrorPolicy(mode string) ErrorPolicy {
	return ErrorPolicy{strict: mode == config.ErrorModeStrict}
}

// Strict はstrictモードかどうかを返す。
func (p ErrorPolicy) Strict() bool {
	return p.strict
}

// WriteGraphError はGraph連携エンドポイント（meetingDetails, chatMessage）のエラーを書き込む。
func (p ErrorPolicy) WriteGraphError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	logHandlerError(r, apiErr, err)

	if p.strict || isInvalidRequest(apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}
	middleware.WriteEmptyObject(w)
}

// WriteTopicsError はbingoTopicsエンドポイントのエラーを書き込む。
func (p ErrorPolicy) WriteTopicsError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := toAPIError(err)
	logHandlerError(r, apiErr, err)

	if p.strict || isInvalidRequest(apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}
	middleware.WriteErrorResponse(w, http.StatusInternalServerError, apiErr)
}

// toAPIError はエラーチェーンからAPIErrorを取り出す。見つからない場合は内部エラーとする。
func toAPIError(err error) *model.APIError {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return model.NewInternalError()
}

func isInvalidRequest(apiErr *model.APIError) bool {
	return apiErr.Code == model.ErrCodeInvalidBody || apiErr.Code == model.ErrCodeInvalidTopics
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodeServerError:
		return http.StatusBadGateway
	case model.ErrCodeInvalidBody, model.ErrCodeInvalidTopics:
		return http.StatusBadRequest
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// logHandlerError は失敗原因をログに記録する。原因の詳細はレスポンスに含めない。
func logHandlerError(r *http.Request, apiErr *model.APIError, err error) {
	level := slog.LevelWarn
	if mapAPIErrorToHTTPStatus(apiErr) >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	slog.Default().LogAttrs(r.Context(), level, "request failed",
		slog.String("code", apiErr.Code),
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.RequestIDFromContext(r.Context())),
		slog.String("error", err.Error()),
	)
}
