// Package gridstore は会議ごとのビンゴカードをローカルファイルに保存する。
package gridstore

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/hitoshi/meetingbingo/internal/bingo"
)

// ErrCorrupted は保存されたカードが3×3として読めない場合に返される。
var ErrCorrupted = errors.New("stored grid is corrupted")

// FileStore は1会議につき1ファイルのJSONとしてカードを保持する。
// ファイル名は会議IDのbase64url表現。
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore はdirを保存先とするFileStoreを生成する。dirが無い場合は作成する。
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create grid directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(meetingID string) string {
	return filepath.Join(s.dir, base64.RawURLEncoding.EncodeToString([]byte(meetingID))+".json")
}

// Load は会議のカードを読み込む。保存されていない場合はfalseを返す。
func (s *FileStore) Load(meetingID string) (bingo.Grid, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(meetingID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read grid: %w", err)
	}

	var g bingo.Grid
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	if !g.Valid() {
		return nil, false, ErrCorrupted
	}
	return g, true, nil
}

// Save はカード全体を書き込む。一時ファイルに書いてからリネームする。
func (s *FileStore) Save(meetingID string, g bingo.Grid) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode grid: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".grid-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write grid: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write grid: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(meetingID)); err != nil {
		return fmt.Errorf("failed to store grid: %w", err)
	}
	return nil
}

// Delete は会議のカードを削除する。存在しない場合もエラーにしない。
func (s *FileStore) Delete(meetingID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(meetingID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete grid: %w", err)
	}
	return nil
}
