package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// SQLiteTopicRepo はSQLiteを使用したトピックリポジトリ。
// トピック一覧はJSON配列のテキストとして格納する。
type SQLiteTopicRepo struct {
	db *sql.DB
}

var _ TopicRepository = (*SQLiteTopicRepo)(nil)

// NewSQLiteTopicRepo はSQLiteTopicRepoを生成する。
func NewSQLiteTopicRepo(db *sql.DB) *SQLiteTopicRepo {
	return &SQLiteTopicRepo{db: db}
}

// FindByMeetingID は指定ミーティングのトピック一覧を取得する。見つからない場合はnilを返す。
func (r *SQLiteTopicRepo) FindByMeetingID(ctx context.Context, meetingID string) ([]string, error) {
	var raw string
	err := r.db.QueryRowContext(ctx,
		`SELECT topics FROM bingo_topics WHERE meeting_id = ?`,
		meetingID,
	).Scan(&raw)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find topics by meeting ID: %w", err)
	}

	topics := []string{}
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		return nil, fmt.Errorf("failed to decode stored topics: %w", err)
	}
	if topics == nil {
		topics = []string{}
	}

	return topics, nil
}

// Upsert はトピック一覧を置き換える。
func (r *SQLiteTopicRepo) Upsert(ctx context.Context, meetingID string, topics []string) error {
	if topics == nil {
		topics = []string{}
	}
	raw, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("failed to encode topics: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO bingo_topics (meeting_id, topics, created_at, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		 ON CONFLICT (meeting_id) DO UPDATE SET
		   topics = excluded.topics,
		   updated_at = CURRENT_TIMESTAMP`,
		meetingID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert topics: %w", err)
	}

	return nil
}
