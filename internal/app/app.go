package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/meetingbingo/internal/auth"
	"github.com/hitoshi/meetingbingo/internal/config"
	"github.com/hitoshi/meetingbingo/internal/database"
	"github.com/hitoshi/meetingbingo/internal/graph"
	"github.com/hitoshi/meetingbingo/internal/handler"
	"github.com/hitoshi/meetingbingo/internal/logger"
	"github.com/hitoshi/meetingbingo/internal/meeting"
	"github.com/hitoshi/meetingbingo/internal/metrics"
	"github.com/hitoshi/meetingbingo/internal/middleware"
	"github.com/hitoshi/meetingbingo/internal/repository"
	"github.com/hitoshi/meetingbingo/internal/security"
	"github.com/hitoshi/meetingbingo/internal/tabpage"
	"github.com/hitoshi/meetingbingo/internal/topic"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("public_hostname", cfg.PublicHostname),
		slog.String("store_driver", cfg.StoreDriver),
		slog.String("error_mode", cfg.ErrorMode),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// Server はワイヤリング済みのHTTPハンドラーと後始末処理を保持する。
type Server struct {
	Handler http.Handler
	closers []func() error
}

// Close は保持しているリソースを解放する。
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewServer は設定から全依存関係をワイヤリングする。
// トピックストアへの接続確認までを行い、HTTPの待ち受けは開始しない。
func NewServer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Server, error) {
	srv := &Server{}

	// 1. 外部エンドポイントの検証
	for _, endpoint := range []string{cfg.JWKSURL, cfg.GraphBaseURL} {
		if err := security.ValidateEndpoint(endpoint); err != nil {
			return nil, fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	// 3. トピックストア
	repo, checker, closeStore, err := openTopicStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv.closers = append(srv.closers, closeStore)

	// 4. 外部通信用クライアント（Microsoftのエンドポイントのみ許可）
	outbound := security.NewOutboundClient(cfg.GraphTimeout, security.HostsOf(
		cfg.JWKSURL,
		cfg.GraphBaseURL,
		"https://login.microsoftonline.com",
	)...)

	// 5. 認証
	keySet := auth.NewKeySet(auth.KeySetConfig{
		URL:                cfg.JWKSURL,
		TTL:                cfg.JWKSCacheTTL,
		MinRefreshInterval: cfg.JWKSMinRefresh,
		HTTPClient:         outbound,
		Metrics:            collector,
	})
	validator := auth.NewValidator(keySet, auth.ValidatorConfig{
		Audience: cfg.TokenAudience(),
		Issuer:   cfg.TokenIssuer,
	}, collector)
	exchanger := auth.NewOBOExchanger(auth.OBOConfig{
		TenantID:     cfg.TabTenantID,
		ClientID:     cfg.TabAppID,
		ClientSecret: cfg.TabAppSecret,
		Transport:    outbound,
	}, collector)

	// 6. ドメインサービス
	graphClient := graph.NewClient(outbound, cfg.GraphBaseURL, collector)
	meetingService := meeting.NewService(exchanger, graphClient, security.NewChatContentSanitizer(), collector)
	topicService := topic.NewService(repo, collector)

	// 7. タブページ
	pages, err := tabpage.NewHandler(tabpage.Config{
		PublicHostname: cfg.PublicHostname,
		TabAppID:       cfg.TabAppID,
	})
	if err != nil {
		srv.Close()
		return nil, err
	}

	// 8. ルーター
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitChat))
	srv.closers = append(srv.closers, func() error {
		rl.Stop()
		return nil
	})

	srv.Handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Validator:         validator,
		RateLimiter:       rl,
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		ErrorMode:         cfg.ErrorMode,
		MeetingService:    meetingService,
		TopicService:      topicService,
		HealthChecker:     checker,
		MetricsGatherer:   reg,
		TabPages:          pages,
		FramedPaths:       tabpage.GuardedPaths(),
		FrameAncestors:    cfg.FrameAncestors,
	})

	return srv, nil
}

// openTopicStore はTOPIC_STORE_DRIVERに応じたトピックリポジトリを返す。
// メモリストアの場合HealthCheckerはnil。
func openTopicStore(ctx context.Context, cfg *config.Config) (repository.TopicRepository, handler.HealthChecker, func() error, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Warn("using in-memory topic store; topics are lost on restart")
		return repository.NewMemoryTopicRepo(), nil, func() error { return nil }, nil
	}

	// SQLiteはローカル用途のため起動時にマイグレーションを適用する
	if cfg.StoreDriver == config.StoreDriverSQLite {
		if err := database.RunMigrations(database.DriverSQLite, cfg.DatabaseURL); err != nil {
			return nil, nil, nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	db, err := database.Open(cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established", slog.String("driver", cfg.StoreDriver))

	return newTopicRepo(cfg.StoreDriver, db), db, db.Close, nil
}

func newTopicRepo(driver string, db *sql.DB) repository.TopicRepository {
	if driver == config.StoreDriverSQLite {
		return repository.NewSQLiteTopicRepo(db)
	}
	return repository.NewPostgresTopicRepo(db)
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	srv, err := NewServer(context.Background(), cfg, slog.Default())
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はトピックストアのマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreDriver == config.StoreDriverMemory {
		slog.Info("in-memory topic store has no schema; nothing to migrate")
		return nil
	}

	slog.Info("running database migrations",
		slog.String("driver", cfg.StoreDriver),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.StoreDriver, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
