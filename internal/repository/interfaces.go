// Package repository はデータ永続化のインターフェースを定義する。
package repository

import "context"

// TopicRepository はミーティングごとのビンゴトピック一覧の永続化インターフェース。
type TopicRepository interface {
	// FindByMeetingID は指定ミーティングのトピック一覧を取得する。
	// 未登録の場合はnilを返す。
	FindByMeetingID(ctx context.Context, meetingID string) ([]string, error)

	// Upsert はトピック一覧を丸ごと置き換える。後から書いた方が勝つ。
	Upsert(ctx context.Context, meetingID string, topics []string) error
}
