// Package meeting はTeamsのミーティングIDからオンライン会議を解決し、
// 会議チャットへのメッセージ送信を仲介する。
package meeting

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hitoshi/meetingbingo/internal/graph"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// GraphAPI はResolverとServiceが利用するGraph操作。
type GraphAPI interface {
	GetChat(ctx context.Context, accessToken, chatID string) (*model.Chat, error)
	FindOnlineMeetingsByJoinURL(ctx context.Context, accessToken, joinWebURL string) ([]model.OnlineMeeting, error)
	SendChatMessage(ctx context.Context, accessToken, chatID string, message json.RawMessage) (json.RawMessage, error)
}

var _ GraphAPI = (*graph.Client)(nil)

// Resolver はミーティングIDからオンライン会議を解決する。
type Resolver struct {
	graph GraphAPI
}

// NewResolver は新しいResolverを生成する。
func NewResolver(g GraphAPI) *Resolver {
	return &Resolver{graph: g}
}

// Resolve はミーティングIDに対応するオンライン会議を返す。
// チャットの取得失敗、参加URLの欠落、一致する会議が無い場合はServerErrorになる。
// 複数一致した場合はGraphが返した先頭を採用する。
func (r *Resolver) Resolve(ctx context.Context, meetingID, accessToken string) (*model.OnlineMeeting, error) {
	chatID, err := DecodeChatID(meetingID)
	if err != nil {
		return nil, serverError("decode meeting id", err)
	}

	chat, err := r.graph.GetChat(ctx, accessToken, chatID)
	if err != nil {
		return nil, serverError("get chat", err)
	}
	if chat.OnlineMeetingInfo == nil || chat.OnlineMeetingInfo.JoinWebURL == "" {
		return nil, serverError("get chat", fmt.Errorf("chat %s has no join url", chatID))
	}

	meetings, err := r.graph.FindOnlineMeetingsByJoinURL(ctx, accessToken, chat.OnlineMeetingInfo.JoinWebURL)
	if err != nil {
		return nil, serverError("find online meeting", err)
	}
	if len(meetings) == 0 {
		return nil, serverError("find online meeting", fmt.Errorf("no online meeting matches chat %s", chatID))
	}

	m := meetings[0]
	return &m, nil
}

func serverError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %v", model.NewServerError(), op, cause)
}
