package tabclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/hitoshi/meetingbingo/internal/model"
)

type recordedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   string
}

func newTestServer(t *testing.T, status int, response string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.Method = r.Method
		rec.Path = r.URL.EscapedPath()
		rec.Auth = r.Header.Get("Authorization")
		rec.Body = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestClient_MeetingDetails_ReturnsRawAndOrganizer(t *testing.T) {
	body := `{"id":"om-1","participants":{"organizer":{"identity":{"user":{"id":"user-1"}}}},"extra":true}`
	srv, rec := newTestServer(t, http.StatusOK, body)

	c := New(srv.URL+"/", "sso-token", nil)
	om, err := c.MeetingDetails(context.Background(), "meeting/1")
	if err != nil {
		t.Fatalf("MeetingDetails() error = %v", err)
	}

	if rec.Method != http.MethodGet || rec.Path != "/api/meetingDetails/meeting%2F1" {
		t.Errorf("request = %s %s", rec.Method, rec.Path)
	}
	if rec.Auth != "Bearer sso-token" {
		t.Errorf("Authorization = %q", rec.Auth)
	}
	if om.OrganizerUserID() != "user-1" {
		t.Errorf("OrganizerUserID() = %q, want user-1", om.OrganizerUserID())
	}
	if string(om.Raw) != body {
		t.Errorf("Raw = %s, want %s", om.Raw, body)
	}
}

func TestClient_MeetingDetails_EmptyObject(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `{}`)

	om, err := New(srv.URL, "t", nil).MeetingDetails(context.Background(), "m")
	if err != nil {
		t.Fatalf("MeetingDetails() error = %v", err)
	}
	if om == nil || om.ID != "" {
		t.Errorf("MeetingDetails() = %+v, want meeting with empty ID", om)
	}
}

func TestClient_MeetingDetails_NullBody_ReturnsNil(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusOK, `null`)

	om, err := New(srv.URL, "t", nil).MeetingDetails(context.Background(), "m")
	if err != nil {
		t.Fatalf("MeetingDetails() error = %v", err)
	}
	if om != nil {
		t.Errorf("MeetingDetails() = %+v, want nil", om)
	}
}

func TestClient_Topics(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{"populated", `["a","b"]`, []string{"a", "b"}},
		{"empty", `[]`, []string{}},
		{"null", `null`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, http.StatusOK, tt.response)

			got, err := New(srv.URL, "t", nil).Topics(context.Background(), "m")
			if err != nil {
				t.Fatalf("Topics() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Topics() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClient_SetTopics_SendsArray(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `["x","y"]`)

	got, err := New(srv.URL, "t", nil).SetTopics(context.Background(), "m", []string{"x", "y"})
	if err != nil {
		t.Fatalf("SetTopics() error = %v", err)
	}

	if rec.Method != http.MethodPost || rec.Path != "/api/bingoTopics/m" {
		t.Errorf("request = %s %s", rec.Method, rec.Path)
	}
	if rec.Body != `["x","y"]` {
		t.Errorf("body = %s", rec.Body)
	}
	if !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("SetTopics() = %v", got)
	}
}

func TestClient_SetTopics_NilSendsEmptyArray(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, `[]`)

	if _, err := New(srv.URL, "t", nil).SetTopics(context.Background(), "m", nil); err != nil {
		t.Fatalf("SetTopics() error = %v", err)
	}
	if rec.Body != `[]` {
		t.Errorf("body = %s, want []", rec.Body)
	}
}

func TestClient_PostChatMessage_SendsBingoBody(t *testing.T) {
	srv, rec := newTestServer(t, http.StatusOK, ``)

	if err := New(srv.URL, "t", nil).PostChatMessage(context.Background(), "m", "BINGO!"); err != nil {
		t.Fatalf("PostChatMessage() error = %v", err)
	}

	if rec.Path != "/api/chatMessage/m" {
		t.Errorf("path = %s", rec.Path)
	}
	var got map[string]map[string]string
	if err := json.Unmarshal([]byte(rec.Body), &got); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if got["body"]["content"] != "BINGO!" {
		t.Errorf("content = %q, want BINGO!", got["body"]["content"])
	}
}

func TestClient_ErrorBody_IsExposedAsAPIError(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusInternalServerError,
		`{"code":"STORE_FAILED","message":"The topic store failed to read.","category":"storage","action":"retry"}`)

	_, err := New(srv.URL, "t", nil).Topics(context.Background(), "m")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d", se.StatusCode)
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatal("error should unwrap to *model.APIError")
	}
	if apiErr.Code != model.ErrCodeStoreFailed {
		t.Errorf("Code = %q, want %q", apiErr.Code, model.ErrCodeStoreFailed)
	}
}

func TestClient_NonJSONError_KeepsBody(t *testing.T) {
	srv, _ := newTestServer(t, http.StatusBadGateway, `upstream down`)

	err := New(srv.URL, "t", nil).PostChatMessage(context.Background(), "m", "hi")

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if se.APIErr != nil || se.Body != "upstream down" {
		t.Errorf("StatusError = %+v", se)
	}
}
