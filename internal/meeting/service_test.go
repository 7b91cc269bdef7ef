package meeting

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/hitoshi/meetingbingo/internal/auth"
	"github.com/hitoshi/meetingbingo/internal/model"
	"github.com/hitoshi/meetingbingo/internal/security"
)

// --- モック定義 ---

type mockGraph struct {
	getChatFn    func(ctx context.Context, accessToken, chatID string) (*model.Chat, error)
	findFn       func(ctx context.Context, accessToken, joinWebURL string) ([]model.OnlineMeeting, error)
	sendFn       func(ctx context.Context, accessToken, chatID string, message json.RawMessage) (json.RawMessage, error)
	getChatCalls int
}

func (m *mockGraph) GetChat(ctx context.Context, accessToken, chatID string) (*model.Chat, error) {
	m.getChatCalls++
	if m.getChatFn != nil {
		return m.getChatFn(ctx, accessToken, chatID)
	}
	return nil, errors.New("not implemented")
}

func (m *mockGraph) FindOnlineMeetingsByJoinURL(ctx context.Context, accessToken, joinWebURL string) ([]model.OnlineMeeting, error) {
	if m.findFn != nil {
		return m.findFn(ctx, accessToken, joinWebURL)
	}
	return nil, errors.New("not implemented")
}

func (m *mockGraph) SendChatMessage(ctx context.Context, accessToken, chatID string, message json.RawMessage) (json.RawMessage, error) {
	if m.sendFn != nil {
		return m.sendFn(ctx, accessToken, chatID, message)
	}
	return nil, errors.New("not implemented")
}

type mockExchanger struct {
	exchangeFn func(ctx context.Context, userToken string, scopes []string) (string, error)
	calls      int
}

func (m *mockExchanger) Exchange(ctx context.Context, userToken string, scopes []string) (string, error) {
	m.calls++
	if m.exchangeFn != nil {
		return m.exchangeFn(ctx, userToken, scopes)
	}
	return "graph-token", nil
}

const (
	testChatID  = "19:meeting_abc@thread.v2"
	testJoinURL = "https://teams.microsoft.com/l/meetup-join/abc"
)

func chatWithJoinURL(_ context.Context, _ string, chatID string) (*model.Chat, error) {
	return &model.Chat{ID: chatID, OnlineMeetingInfo: &model.OnlineMeetingInfo{JoinWebURL: testJoinURL}}, nil
}

func assertServerError(t *testing.T, err error) {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeServerError {
		t.Fatalf("expected SERVER_ERROR, got %v", err)
	}
}

func TestResolver_Resolve_FirstMatchWins(t *testing.T) {
	g := &mockGraph{
		getChatFn: func(_ context.Context, token, chatID string) (*model.Chat, error) {
			if token != "graph-token" {
				t.Errorf("token = %q", token)
			}
			if chatID != testChatID {
				t.Errorf("chatID = %q, want %q", chatID, testChatID)
			}
			return chatWithJoinURL(context.Background(), token, chatID)
		},
		findFn: func(_ context.Context, _ string, joinURL string) ([]model.OnlineMeeting, error) {
			if joinURL != testJoinURL {
				t.Errorf("joinURL = %q", joinURL)
			}
			return []model.OnlineMeeting{{ID: "first"}, {ID: "second"}}, nil
		},
	}

	m, err := NewResolver(g).Resolve(context.Background(), EncodeMeetingID(testChatID), "graph-token")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if m.ID != "first" {
		t.Errorf("ID = %q, want %q", m.ID, "first")
	}
}

func TestResolver_Resolve_Failures(t *testing.T) {
	tests := []struct {
		name string
		g    *mockGraph
	}{
		{
			name: "chat lookup fails",
			g: &mockGraph{getChatFn: func(context.Context, string, string) (*model.Chat, error) {
				return nil, errors.New("404")
			}},
		},
		{
			name: "chat without online meeting info",
			g: &mockGraph{getChatFn: func(_ context.Context, _ string, chatID string) (*model.Chat, error) {
				return &model.Chat{ID: chatID}, nil
			}},
		},
		{
			name: "meeting query fails",
			g: &mockGraph{
				getChatFn: chatWithJoinURL,
				findFn: func(context.Context, string, string) ([]model.OnlineMeeting, error) {
					return nil, errors.New("403")
				},
			},
		},
		{
			name: "no matches",
			g: &mockGraph{
				getChatFn: chatWithJoinURL,
				findFn: func(context.Context, string, string) ([]model.OnlineMeeting, error) {
					return nil, nil
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewResolver(tt.g).Resolve(context.Background(), EncodeMeetingID(testChatID), "graph-token")
			assertServerError(t, err)
		})
	}
}

func TestService_MeetingDetails_UsesMeetingScopes(t *testing.T) {
	ex := &mockExchanger{exchangeFn: func(_ context.Context, userToken string, scopes []string) (string, error) {
		if userToken != "sso-token" {
			t.Errorf("userToken = %q", userToken)
		}
		if !reflect.DeepEqual(scopes, auth.MeetingDetailsScopes) {
			t.Errorf("scopes = %v, want %v", scopes, auth.MeetingDetailsScopes)
		}
		return "graph-token", nil
	}}
	g := &mockGraph{
		getChatFn: chatWithJoinURL,
		findFn: func(context.Context, string, string) ([]model.OnlineMeeting, error) {
			return []model.OnlineMeeting{{ID: "m-1", Raw: json.RawMessage(`{"id":"m-1"}`)}}, nil
		},
	}

	m, err := NewService(ex, g, nil, nil).MeetingDetails(context.Background(), "sso-token", EncodeMeetingID(testChatID))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if string(m.Raw) != `{"id":"m-1"}` {
		t.Errorf("Raw = %s", m.Raw)
	}
}

func TestService_MeetingDetails_ExchangeFailureSkipsGraph(t *testing.T) {
	ex := &mockExchanger{exchangeFn: func(context.Context, string, []string) (string, error) {
		return "", model.NewServerError()
	}}
	g := &mockGraph{}

	_, err := NewService(ex, g, nil, nil).MeetingDetails(context.Background(), "sso-token", EncodeMeetingID(testChatID))
	assertServerError(t, err)
	if g.getChatCalls != 0 {
		t.Error("graph should not be called when the exchange fails")
	}
}

func TestService_SendChatMessage(t *testing.T) {
	var gotChatID string
	var gotBody json.RawMessage
	ex := &mockExchanger{exchangeFn: func(_ context.Context, _ string, scopes []string) (string, error) {
		if !reflect.DeepEqual(scopes, auth.ChatMessageScopes) {
			t.Errorf("scopes = %v, want %v", scopes, auth.ChatMessageScopes)
		}
		return "graph-token", nil
	}}
	g := &mockGraph{sendFn: func(_ context.Context, _ string, chatID string, message json.RawMessage) (json.RawMessage, error) {
		gotChatID = chatID
		gotBody = message
		return json.RawMessage(`{"id":"msg"}`), nil
	}}

	svc := NewService(ex, g, security.NewChatContentSanitizer(), nil)
	err := svc.SendChatMessage(context.Background(), "sso-token", EncodeMeetingID(testChatID), json.RawMessage(`{"body":{"content":"BINGO!"}}`))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if gotChatID != testChatID {
		t.Errorf("chatID = %q, want %q", gotChatID, testChatID)
	}
	if string(gotBody) != `{"body":{"content":"BINGO!"}}` {
		t.Errorf("body = %s", gotBody)
	}
}

func TestService_SendChatMessage_Failures(t *testing.T) {
	t.Run("invalid meeting id skips exchange", func(t *testing.T) {
		ex := &mockExchanger{}
		err := NewService(ex, &mockGraph{}, nil, nil).SendChatMessage(context.Background(), "sso-token", "***", json.RawMessage(`{}`))
		assertServerError(t, err)
		if ex.calls != 0 {
			t.Error("exchange should not run for an undecodable meeting id")
		}
	})

	t.Run("graph rejects", func(t *testing.T) {
		g := &mockGraph{sendFn: func(context.Context, string, string, json.RawMessage) (json.RawMessage, error) {
			return nil, errors.New("403")
		}}
		err := NewService(&mockExchanger{}, g, nil, nil).SendChatMessage(context.Background(), "sso-token", EncodeMeetingID(testChatID), json.RawMessage(`{}`))
		assertServerError(t, err)
	})

	t.Run("non-object body", func(t *testing.T) {
		err := NewService(&mockExchanger{}, &mockGraph{}, security.NewChatContentSanitizer(), nil).
			SendChatMessage(context.Background(), "sso-token", EncodeMeetingID(testChatID), json.RawMessage(`[1]`))
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidBody {
			t.Fatalf("expected INVALID_REQUEST, got %v", err)
		}
	})
}
