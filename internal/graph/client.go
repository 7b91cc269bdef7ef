// Package graph はMicrosoft Graph REST APIのうちTeams会議・チャットに関わる呼び出しを提供する。
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/meetingbingo/internal/metrics"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// DefaultBaseURL はGraphの既定エンドポイント。
const DefaultBaseURL = "https://graph.microsoft.com"

// maxResponseBytes はGraphレスポンスの読み取り上限。
const maxResponseBytes = 4 << 20

// 操作名（メトリクスのラベル）
const (
	OpGetChat           = "get_chat"
	OpFindOnlineMeeting = "find_online_meeting"
	OpSendChatMessage   = "send_chat_message"
)

// StatusError はGraphが2xx以外を返したことを表す。
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("graph %s failed: status=%d body=%s", e.Operation, e.StatusCode, e.Body)
}

// Client はGraph REST APIクライアント。
// アクセストークンは呼び出しごとに渡す（OBOで得たユーザー委任トークン）。
type Client struct {
	http    *http.Client
	baseURL string
	metrics metrics.MetricsCollector
}

// NewClient は新しいClientを生成する。baseURLが空の場合はDefaultBaseURLを使う。
func NewClient(httpClient *http.Client, baseURL string, m metrics.MetricsCollector) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		metrics: metrics.OrNop(m),
	}
}

// GetChat はチャットを取得する（beta）。
func (c *Client) GetChat(ctx context.Context, accessToken, chatID string) (*model.Chat, error) {
	path := "/beta/chats/" + url.PathEscape(chatID)
	var chat model.Chat
	if err := c.getJSON(ctx, OpGetChat, accessToken, path, "", &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

// FindOnlineMeetingsByJoinURL は参加URLが一致するオンライン会議を検索する。
// Graphの返した順序を保つ。
func (c *Client) FindOnlineMeetingsByJoinURL(ctx context.Context, accessToken, joinWebURL string) ([]model.OnlineMeeting, error) {
	var page struct {
		Value []json.RawMessage `json:"value"`
	}
	if err := c.getJSON(ctx, OpFindOnlineMeeting, accessToken, "/v1.0/me/onlineMeetings", joinURLFilter(joinWebURL), &page); err != nil {
		return nil, err
	}

	meetings := make([]model.OnlineMeeting, 0, len(page.Value))
	for _, raw := range page.Value {
		var m model.OnlineMeeting
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("decode online meeting: %w", err)
		}
		m.Raw = raw
		meetings = append(meetings, m)
	}
	return meetings, nil
}

// SendChatMessage はチャットにメッセージを投稿し、作成されたメッセージのJSONを返す。
func (c *Client) SendChatMessage(ctx context.Context, accessToken, chatID string, message json.RawMessage) (json.RawMessage, error) {
	path := "/v1.0/chats/" + url.PathEscape(chatID) + "/messages"
	var created json.RawMessage
	if err := c.do(ctx, OpSendChatMessage, http.MethodPost, accessToken, path, "", message, &created); err != nil {
		return nil, err
	}
	return created, nil
}

// joinURLFilter はJoinWebUrlの完全一致フィルタのクエリ文字列を組み立てる。
// OData文字列リテラル内の単一引用符は二重化する。
func joinURLFilter(joinWebURL string) string {
	expr := fmt.Sprintf("JoinWebUrl eq '%s'", strings.ReplaceAll(joinWebURL, "'", "''"))
	return "$filter=" + strings.ReplaceAll(url.QueryEscape(expr), "+", "%20")
}

func (c *Client) getJSON(ctx context.Context, op, accessToken, path, rawQuery string, out any) error {
	return c.do(ctx, op, http.MethodGet, accessToken, path, rawQuery, nil, out)
}

func (c *Client) do(ctx context.Context, op, method, accessToken, path, rawQuery string, body []byte, out any) error {
	endpoint := c.baseURL + path
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build graph %s request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RecordGraphRequest(op, 0, time.Since(start))
		return fmt.Errorf("graph %s: %w", op, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordGraphRequest(op, resp.StatusCode, time.Since(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read graph %s response: %w", op, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &StatusError{Operation: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode graph %s response: %w", op, err)
	}
	return nil
}
