package repository

import (
	"context"
	"sync"
)

// MemoryTopicRepo はプロセス内メモリを使用したトピックリポジトリ。
// ローカル開発とテスト用で、再起動すると内容は失われる。
type MemoryTopicRepo struct {
	mu     sync.RWMutex
	topics map[string][]string
}

var _ TopicRepository = (*MemoryTopicRepo)(nil)

// NewMemoryTopicRepo はMemoryTopicRepoを生成する。
func NewMemoryTopicRepo() *MemoryTopicRepo {
	return &MemoryTopicRepo{topics: make(map[string][]string)}
}

// FindByMeetingID は指定ミーティングのトピック一覧のコピーを返す。見つからない場合はnilを返す。
func (r *MemoryTopicRepo) FindByMeetingID(_ context.Context, meetingID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	topics, ok := r.topics[meetingID]
	if !ok {
		return nil, nil
	}
	return append([]string{}, topics...), nil
}

// Upsert はトピック一覧のコピーを保存する。
func (r *MemoryTopicRepo) Upsert(_ context.Context, meetingID string, topics []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.topics[meetingID] = append([]string{}, topics...)
	return nil
}
