// Package tabclient はMeeting Bingo APIのHTTPクライアントを提供する。
// タブ画面と同じ4つのエンドポイントを呼び出す。
package tabclient

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

	"github.com/hitoshi/meetingbingo/internal/model"
)

// maxResponseBytes はAPIレスポンスの読み取り上限。
const maxResponseBytes = 1 << 20

// StatusError はAPIが2xx以外を返したことを表す。
// 統一エラーフォーマットで返された場合はAPIErrに格納する。
type StatusError struct {
	StatusCode int
	APIErr     *model.APIError
	Body       string
}

func (e *StatusError) Error() string {
	if e.APIErr != nil {
		return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.APIErr.Error())
	}
	return fmt.Sprintf("api returned status %d: %s", e.StatusCode, e.Body)
}

// Unwrap はerrors.Asで*model.APIErrorを取り出せるようにする。
func (e *StatusError) Unwrap() error {
	if e.APIErr == nil {
		return nil
	}
	return e.APIErr
}

type errorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// Client はMeeting Bingo APIクライアント。
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

// New は新しいClientを生成する。tokenはTeams SSOトークン。
func New(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// MeetingDetails はオンライン会議情報を取得する。
// 互換エラーモードのサーバーは失敗時に{}を返すため、その場合はIDが空の会議を返す。
// 本文が空またはnullの場合はnilを返す。
func (c *Client) MeetingDetails(ctx context.Context, meetingID string) (*model.OnlineMeeting, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "meetingDetails", meetingID, nil, &raw); err != nil {
		return nil, err
	}

	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	om := &model.OnlineMeeting{}
	if err := json.Unmarshal(raw, om); err != nil {
		return nil, fmt.Errorf("decode meeting details: %w", err)
	}
	om.Raw = raw
	return om, nil
}

// Topics はトピックリストを取得する。
func (c *Client) Topics(ctx context.Context, meetingID string) ([]string, error) {
	var topics []string
	if err := c.do(ctx, http.MethodGet, "bingoTopics", meetingID, nil, &topics); err != nil {
		return nil, err
	}
	if topics == nil {
		topics = []string{}
	}
	return topics, nil
}

// SetTopics はトピックリストを上書きし、保存された値を返す。
func (c *Client) SetTopics(ctx context.Context, meetingID string, topics []string) ([]string, error) {
	if topics == nil {
		topics = []string{}
	}
	body, err := json.Marshal(topics)
	if err != nil {
		return nil, fmt.Errorf("encode topics: %w", err)
	}

	var stored []string
	if err := c.do(ctx, http.MethodPost, "bingoTopics", meetingID, body, &stored); err != nil {
		return nil, err
	}
	if stored == nil {
		stored = []string{}
	}
	return stored, nil
}

// PostChatMessage は会議チャットにcontentを投稿する。
func (c *Client) PostChatMessage(ctx context.Context, meetingID, content string) error {
	msg := map[string]map[string]string{"body": {"content": content}}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode chat message: %w", err)
	}
	return c.do(ctx, http.MethodPost, "chatMessage", meetingID, body, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint, meetingID string, body []byte, out any) error {
	target := c.baseURL + "/api/" + endpoint + "/" + url.PathEscape(meetingID)

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return newStatusError(resp.StatusCode, data)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func newStatusError(status int, data []byte) *StatusError {
	se := &StatusError{StatusCode: status, Body: strings.TrimSpace(string(data))}
	var eb errorBody
	if err := json.Unmarshal(data, &eb); err == nil && eb.Code != "" {
		se.APIErr = &model.APIError{
			Code:     eb.Code,
			Message:  eb.Message,
			Category: eb.Category,
			Action:   eb.Action,
		}
	}
	return se
}
