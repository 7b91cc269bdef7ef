package meeting

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hitoshi/meetingbingo/internal/auth"
	"github.com/hitoshi/meetingbingo/internal/metrics"
	"github.com/hitoshi/meetingbingo/internal/model"
	"github.com/hitoshi/meetingbingo/internal/security"
)

// TokenExchanger はSSOトークンをGraph用アクセストークンに交換する。
type TokenExchanger interface {
	Exchange(ctx context.Context, userToken string, scopes []string) (string, error)
}

var _ TokenExchanger = (*auth.OBOExchanger)(nil)

// Service は会議詳細の取得とチャットメッセージ送信のユースケースを提供する。
type Service struct {
	exchanger TokenExchanger
	resolver  *Resolver
	graph     GraphAPI
	sanitizer security.ChatContentSanitizer
	metrics   metrics.MetricsCollector
}

// NewService は新しいServiceを生成する。sanitizerがnilの場合はメッセージ本文を加工しない。
func NewService(exchanger TokenExchanger, g GraphAPI, sanitizer security.ChatContentSanitizer, m metrics.MetricsCollector) *Service {
	return &Service{
		exchanger: exchanger,
		resolver:  NewResolver(g),
		graph:     g,
		sanitizer: sanitizer,
		metrics:   metrics.OrNop(m),
	}
}

// MeetingDetails はユーザーの委任権限でオンライン会議を取得する。
func (s *Service) MeetingDetails(ctx context.Context, userToken, meetingID string) (*model.OnlineMeeting, error) {
	accessToken, err := s.exchanger.Exchange(ctx, userToken, auth.MeetingDetailsScopes)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, meetingID, accessToken)
}

// SendChatMessage はmessageを会議チャットにユーザーとして投稿する。
// ミーティングIDの解釈はトークン交換より先に行う。
func (s *Service) SendChatMessage(ctx context.Context, userToken, meetingID string, message json.RawMessage) error {
	chatID, err := DecodeChatID(meetingID)
	if err != nil {
		return serverError("decode meeting id", err)
	}

	if s.sanitizer != nil {
		message, err = s.sanitizer.SanitizeMessage(message)
		if err != nil {
			return model.NewInvalidRequestError(err.Error())
		}
	}

	accessToken, err := s.exchanger.Exchange(ctx, userToken, auth.ChatMessageScopes)
	if err != nil {
		return err
	}

	if _, err := s.graph.SendChatMessage(ctx, accessToken, chatID, message); err != nil {
		return serverError("send chat message", err)
	}

	s.metrics.RecordBingoMessage()
	slog.Info("chat message sent", "chat_id", chatID)
	return nil
}
