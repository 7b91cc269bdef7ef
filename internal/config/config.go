package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// トピックストアのドライバー名
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// APIエラーモード
const (
	// ErrorModeCompat はmeetingDetails/chatMessageの失敗を200 {}で返し、
	// bingoTopicsの失敗を500で返す従来の挙動を維持する。
	ErrorModeCompat = "compat"
	// ErrorModeStrict はエラー種別に応じたステータスコードを返す。
	ErrorModeStrict = "strict"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Teams タブアプリ
	PublicHostname string
	TabAppID       string
	TabAppSecret   string
	TabTenantID    string

	// トークン検証
	JWKSURL        string
	JWKSCacheTTL   time.Duration
	JWKSMinRefresh time.Duration
	TokenIssuer    string

	// Microsoft Graph
	GraphBaseURL string
	GraphTimeout time.Duration

	// トピックストア
	StoreDriver string
	DatabaseURL string

	// API
	ErrorMode string

	// Rate Limit（req/min）
	RateLimitGeneral int
	RateLimitChat    int

	// Server
	ServerPort string

	// CORS / フレーム
	CORSAllowedOrigin string
	FrameAncestors    []string
}

// TokenAudience はSSOトークンに期待するaudienceを返す。
func (c *Config) TokenAudience() string {
	return fmt.Sprintf("api://%s/%s", c.PublicHostname, c.TabAppID)
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.PublicHostname = os.Getenv("PUBLIC_HOSTNAME")
	if cfg.PublicHostname == "" {
		missing = append(missing, "PUBLIC_HOSTNAME")
	}

	cfg.TabAppID = os.Getenv("TAB_APP_ID")
	if cfg.TabAppID == "" {
		missing = append(missing, "TAB_APP_ID")
	}

	cfg.TabAppSecret = os.Getenv("TAB_APP_SECRET")
	if cfg.TabAppSecret == "" {
		missing = append(missing, "TAB_APP_SECRET")
	}

	cfg.StoreDriver = strings.ToLower(getEnvString("TOPIC_STORE_DRIVER", StoreDriverPostgres))
	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverSQLite:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unsupported TOPIC_STORE_DRIVER: %s", cfg.StoreDriver)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.ErrorMode = strings.ToLower(getEnvString("API_ERROR_MODE", ErrorModeCompat))
	if cfg.ErrorMode != ErrorModeCompat && cfg.ErrorMode != ErrorModeStrict {
		return nil, fmt.Errorf("unsupported API_ERROR_MODE: %s", cfg.ErrorMode)
	}

	// Optional fields with defaults
	cfg.TabTenantID = getEnvString("TAB_TENANT_ID", "common")
	cfg.JWKSURL = getEnvString("JWKS_URL", "https://login.microsoftonline.com/common/discovery/keys")
	cfg.JWKSCacheTTL = getEnvDuration("JWKS_CACHE_TTL", time.Hour)
	cfg.JWKSMinRefresh = getEnvDuration("JWKS_MIN_REFRESH_INTERVAL", 30*time.Second)
	cfg.TokenIssuer = getEnvString("TOKEN_ISSUER", "")
	cfg.GraphBaseURL = strings.TrimRight(getEnvString("GRAPH_BASE_URL", "https://graph.microsoft.com"), "/")
	cfg.GraphTimeout = getEnvDuration("GRAPH_TIMEOUT", 10*time.Second)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitChat = getEnvInt("RATE_LIMIT_CHAT", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "https://"+cfg.PublicHostname)
	cfg.FrameAncestors = getEnvList("FRAME_ANCESTORS", []string{
		"teams.microsoft.com",
		"*.teams.microsoft.com",
		"*.teams.microsoft.us",
		"local.teams.office.com",
		"*.skype.com",
	})

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

// getEnvList はカンマ区切りの環境変数をスライスとして返す。空要素は無視する。
func getEnvList(key string, defaultVal []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultVal
	}
	return out
}
