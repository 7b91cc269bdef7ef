// Package topic はミーティングごとのビンゴトピック一覧の読み書きを提供する。
package topic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/meetingbingo/internal/metrics"
	"github.com/hitoshi/meetingbingo/internal/model"
	"github.com/hitoshi/meetingbingo/internal/repository"
)

// Service はTopic Storeのユースケースを提供する。
type Service struct {
	repo    repository.TopicRepository
	metrics metrics.MetricsCollector
}

// NewService は新しいServiceを生成する。
func NewService(repo repository.TopicRepository, m metrics.MetricsCollector) *Service {
	return &Service{repo: repo, metrics: metrics.OrNop(m)}
}

// Get はミーティングのトピック一覧を返す。
// 未登録の場合は空の一覧を返し、ストアには何も書き込まない。
func (s *Service) Get(ctx context.Context, meetingID string) ([]string, error) {
	topics, err := s.repo.FindByMeetingID(ctx, meetingID)
	s.metrics.RecordTopicStoreOperation("get", metrics.Result(err))
	if err != nil {
		slog.Error("failed to read topics", "meeting_id", meetingID, "error", err)
		return nil, fmt.Errorf("%w: %v", model.NewStoreFailedError("read the topic list"), err)
	}
	if topics == nil {
		return []string{}, nil
	}
	return topics, nil
}

// Set はトピック一覧を丸ごと置き換え、保存した一覧を返す。
// 結合・重複排除・並べ替えは行わない。
func (s *Service) Set(ctx context.Context, meetingID string, topics []string) ([]string, error) {
	if topics == nil {
		topics = []string{}
	}

	err := s.repo.Upsert(ctx, meetingID, topics)
	s.metrics.RecordTopicStoreOperation("set", metrics.Result(err))
	if err != nil {
		slog.Error("failed to write topics", "meeting_id", meetingID, "error", err)
		return nil, fmt.Errorf("%w: %v", model.NewStoreFailedError("save the topic list"), err)
	}

	slog.Info("topics saved", "meeting_id", meetingID, "count", len(topics))
	return topics, nil
}
