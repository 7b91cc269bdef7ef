package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config はbingoctlの設定。
// 優先順位はフラグ、環境変数、設定ファイルの順。
type Config struct {
	Server       string `toml:"server"`
	Token        string `toml:"token"`
	MeetingID    string `toml:"meeting_id"`
	FrameContext string `toml:"frame_context"`
	GridDir      string `toml:"grid_dir"`
}

// 環境変数名
const (
	envServer  = "BINGOCTL_SERVER"
	envToken   = "BINGOCTL_TOKEN"
	envMeeting = "BINGOCTL_MEETING_ID"
	envGridDir = "BINGOCTL_GRID_DIR"
	envConfig  = "BINGOCTL_CONFIG"
)

// DefaultConfigPath は設定ファイルの既定パスを返す。
func DefaultConfigPath() string {
	if p := os.Getenv(envConfig); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "bingoctl.toml"
	}
	return filepath.Join(dir, "meetingbingo", "bingoctl.toml")
}

func defaultGridDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "meetingbingo", "grids")
	}
	return filepath.Join(dir, "meetingbingo", "grids")
}

// LoadConfig は設定ファイルを読み込み、環境変数で上書きする。
// ファイルが存在しない場合は既定値から始める。
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	overrideFromEnv(&cfg.Server, envServer)
	overrideFromEnv(&cfg.Token, envToken)
	overrideFromEnv(&cfg.MeetingID, envMeeting)
	overrideFromEnv(&cfg.GridDir, envGridDir)

	if cfg.GridDir == "" {
		cfg.GridDir = defaultGridDir()
	}
	return cfg, nil
}

// SaveConfig は設定をTOMLとして書き込む。トークンを含むため0600で作成する。
func SaveConfig(path string, cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func overrideFromEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// validate はAPI呼び出しに必要な項目を確認する。
func (c *Config) validate() error {
	var missing []string
	if c.Server == "" {
		missing = append(missing, "server")
	}
	if c.MeetingID == "" {
		missing = append(missing, "meeting_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("required settings are not set: %v", missing)
	}
	return nil
}

// frameOr はframe_contextが未設定の場合にdefを返す。
func (c *Config) frameOr(def string) string {
	if c.FrameContext != "" {
		return c.FrameContext
	}
	return def
}
