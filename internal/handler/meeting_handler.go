package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/meetingbingo/internal/meeting"
	"github.com/hitoshi/meetingbingo/internal/middleware"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// maxChatMessageBytes はchatMessageリクエストボディの上限。
const maxChatMessageBytes = 64 << 10

// MeetingServiceInterface は会議ハンドラーが必要とするサービスインターフェース。
type MeetingServiceInterface interface {
	// MeetingDetails はユーザートークンで会議の詳細を取得する。
	MeetingDetails(ctx context.Context, userToken, meetingID string) (*model.OnlineMeeting, error)
	// SendChatMessage は会議チャットにメッセージを投稿する。
	SendChatMessage(ctx context.Context, userToken, meetingID string, message json.RawMessage) error
}

var _ MeetingServiceInterface = (*meeting.Service)(nil)

// MeetingHandler はmeetingDetails/chatMessageのHTTPハンドラー。
type MeetingHandler struct {
	service MeetingServiceInterface
	policy  ErrorPolicy
}

// NewMeetingHandler はMeetingHandlerを生成する。
func NewMeetingHandler(service MeetingServiceInterface, policy ErrorPolicy) *MeetingHandler {
	return &MeetingHandler{
		service: service,
		policy:  policy,
	}
}

// GetMeetingDetails はGraphから取得したオンライン会議をそのまま返す。
// GET /api/meetingDetails/{meetingId}
func (h *MeetingHandler) GetMeetingDetails(w http.ResponseWriter, r *http.Request) {
	tok, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		h.policy.WriteGraphError(w, r, model.NewUnauthorizedError("no validated token"))
		return
	}

	om, err := h.service.MeetingDetails(r.Context(), tok.Raw, chi.URLParam(r, "meetingId"))
	if err != nil {
		h.policy.WriteGraphError(w, r, err)
		return
	}

	body := []byte(om.Raw)
	if len(body) == 0 {
		body, err = json.Marshal(om)
		if err != nil {
			h.policy.WriteGraphError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// PostChatMessage はリクエストボディを会議チャットに投稿する。成功時のボディは空。
// POST /api/chatMessage/{meetingId}
func (h *MeetingHandler) PostChatMessage(w http.ResponseWriter, r *http.Request) {
	tok, ok := middleware.TokenFromContext(r.Context())
	if !ok {
		h.policy.WriteGraphError(w, r, model.NewUnauthorizedError("no validated token"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxChatMessageBytes))
	if err != nil {
		h.policy.WriteGraphError(w, r, model.NewInvalidRequestError("body is too large or unreadable"))
		return
	}
	if !json.Valid(body) {
		h.policy.WriteGraphError(w, r, model.NewInvalidRequestError("body is not valid JSON"))
		return
	}

	if err := h.service.SendChatMessage(r.Context(), tok.Raw, chi.URLParam(r, "meetingId"), body); err != nil {
		h.policy.WriteGraphError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
}
