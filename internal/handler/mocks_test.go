package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/meetingbingo/internal/auth"
	"github.com/hitoshi/meetingbingo/internal/middleware"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// --- モック定義 ---

// mockMeetingService はMeetingServiceInterfaceのモック実装。
type mockMeetingService struct {
	meetingDetailsFn  func(ctx context.Context, userToken, meetingID string) (*model.OnlineMeeting, error)
	sendChatMessageFn func(ctx context.Context, userToken, meetingID string, message json.RawMessage) error
}

func (m *mockMeetingService) MeetingDetails(ctx context.Context, userToken, meetingID string) (*model.OnlineMeeting, error) {
	if m.meetingDetailsFn != nil {
		return m.meetingDetailsFn(ctx, userToken, meetingID)
	}
	return &model.OnlineMeeting{}, nil
}

func (m *mockMeetingService) SendChatMessage(ctx context.Context, userToken, meetingID string, message json.RawMessage) error {
	if m.sendChatMessageFn != nil {
		return m.sendChatMessageFn(ctx, userToken, meetingID, message)
	}
	return nil
}

// mockTopicService はTopicServiceInterfaceのモック実装。
type mockTopicService struct {
	getFn func(ctx context.Context, meetingID string) ([]string, error)
	setFn func(ctx context.Context, meetingID string, topics []string) ([]string, error)
}

func (m *mockTopicService) Get(ctx context.Context, meetingID string) ([]string, error) {
	if m.getFn != nil {
		return m.getFn(ctx, meetingID)
	}
	return []string{}, nil
}

func (m *mockTopicService) Set(ctx context.Context, meetingID string, topics []string) ([]string, error) {
	if m.setFn != nil {
		return m.setFn(ctx, meetingID, topics)
	}
	return topics, nil
}

// mockValidator はmiddleware.TokenValidatorのモック実装。
// "Bearer good" のみ受け付ける。
type mockValidator struct {
	calls int
}

func (m *mockValidator) ValidateHeader(_ context.Context, header string) (*auth.ValidatedToken, error) {
	m.calls++
	switch header {
	case "":
		return nil, model.NewUnauthorizedError("missing Authorization header")
	case "Bearer good":
		return &auth.ValidatedToken{Raw: "good", Claims: &auth.Claims{ObjectID: "user-1"}}, nil
	default:
		return nil, model.NewForbiddenError("invalid signature")
	}
}

// --- テストヘルパー ---

// withToken はテスト用にリクエストコンテキストに検証済みトークンを注入するヘルパー。
func withToken(r *http.Request, raw, userID string) *http.Request {
	tok := &auth.ValidatedToken{Raw: raw, Claims: &auth.Claims{ObjectID: userID}}
	return r.WithContext(middleware.ContextWithToken(r.Context(), tok))
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponseBody {
	t.Helper()
	var result middleware.ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}
