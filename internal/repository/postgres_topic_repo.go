package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresTopicRepo はPostgreSQLを使用したトピックリポジトリ。
// トピック一覧はTEXT[]カラムに順序を保って格納する。
type PostgresTopicRepo struct {
	db *sql.DB
}

var _ TopicRepository = (*PostgresTopicRepo)(nil)

// NewPostgresTopicRepo はPostgresTopicRepoを生成する。
func NewPostgresTopicRepo(db *sql.DB) *PostgresTopicRepo {
	return &PostgresTopicRepo{db: db}
}

// FindByMeetingID は指定ミーティングのトピック一覧を取得する。見つからない場合はnilを返す。
func (r *PostgresTopicRepo) FindByMeetingID(ctx context.Context, meetingID string) ([]string, error) {
	var topics []string
	err := r.db.QueryRowContext(ctx,
		`SELECT topics FROM bingo_topics WHERE meeting_id = $1`,
		meetingID,
	).Scan(pq.Array(&topics))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find topics by meeting ID: %w", err)
	}
	if topics == nil {
		topics = []string{}
	}

	return topics, nil
}

// Upsert はトピック一覧を置き換える。
func (r *PostgresTopicRepo) Upsert(ctx context.Context, meetingID string, topics []string) error {
	if topics == nil {
		topics = []string{}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO bingo_topics (meeting_id, topics, created_at, updated_at)
		 VALUES ($1, $2, NOW(), NOW())
		 ON CONFLICT (meeting_id) DO UPDATE SET
		   topics = EXCLUDED.topics,
		   updated_at = NOW()`,
		meetingID, pq.Array(topics),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert topics: %w", err)
	}

	return nil
}
