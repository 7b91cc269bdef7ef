// Package cli はbingoctlのコマンドを定義する。
// タブ画面と同じ状態管理を端末から操作する。
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hitoshi/meetingbingo/internal/gridstore"
	"github.com/hitoshi/meetingbingo/internal/tabclient"
	"github.com/hitoshi/meetingbingo/internal/tabview"
)

var version = "dev"

// SetVersion はバージョン文字列を設定する。
func SetVersion(v string) {
	version = v
}

// options はフラグの値。空の場合は設定ファイルと環境変数の値を使う。
type options struct {
	configPath string
	server     string
	token      string
	meetingID  string
	frame      string
	gridDir    string
	verbose    bool

	httpClient *http.Client
	cfg        *Config
	logger     *slog.Logger
}

// NewRootCommand はbingoctlのルートコマンドを生成する。
func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{})
}

func newRootCommand(opts *options) *cobra.Command {
	root := &cobra.Command{
		Use:           "bingoctl",
		Short:         "Play Meeting Bingo from the terminal",
		Long:          "bingoctl talks to a Meeting Bingo server with a Teams SSO token.\nOrganizers can edit the topic list, attendees can play their bingo card.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default "+DefaultConfigPath()+")")
	flags.StringVar(&opts.server, "server", "", "server base URL, e.g. https://bingo.example.com")
	flags.StringVar(&opts.token, "token", "", "Teams SSO token")
	flags.StringVarP(&opts.meetingID, "meeting", "m", "", "Teams meeting id")
	flags.StringVar(&opts.frame, "frame", "", "frame context to emulate (content, sidePanel, meetingStage)")
	flags.StringVar(&opts.gridDir, "grid-dir", "", "directory for saved bingo cards")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		level := slog.LevelWarn
		if opts.verbose {
			level = slog.LevelDebug
		}
		opts.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

		path := opts.configPath
		if path == "" {
			path = DefaultConfigPath()
		}
		cfg, err := LoadConfig(path)
		if err != nil {
			return err
		}
		applyFlag(&cfg.Server, opts.server)
		applyFlag(&cfg.Token, opts.token)
		applyFlag(&cfg.MeetingID, opts.meetingID)
		applyFlag(&cfg.FrameContext, opts.frame)
		applyFlag(&cfg.GridDir, opts.gridDir)
		opts.cfg = cfg
		return nil
	}

	root.AddCommand(
		newStatusCommand(opts),
		newTopicsCommand(opts),
		newCardCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// Execute はbingoctlを実行する。
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func applyFlag(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// startView は設定からViewを生成し、タブ起動時と同じ順でイベントを与える。
func startView(cmd *cobra.Command, opts *options, defaultFrame string) (*tabview.View, error) {
	cfg := opts.cfg
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	store, err := gridstore.NewFileStore(cfg.GridDir)
	if err != nil {
		return nil, err
	}

	httpClient := opts.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}

	view := tabview.New(func(token string) tabview.API {
		return tabclient.New(cfg.Server, token, httpClient)
	}, store, tabview.WithLogger(opts.logger))

	view.HostInitialized(tabview.HostContext{
		MeetingID:    cfg.MeetingID,
		FrameContext: cfg.frameOr(defaultFrame),
	})

	if cfg.Token == "" {
		view.AuthFailed(errors.New("no token configured"))
	} else if err := view.AuthSucceeded(cmd.Context(), cfg.Token); err != nil {
		opts.logger.Debug("failed to load meeting", slog.String("error", err.Error()))
	}
	return view, nil
}

// openView はstartViewに加えて、エラー条件がある場合はそれを表示して失敗する。
func openView(cmd *cobra.Command, opts *options, defaultFrame string) (*tabview.View, error) {
	view, err := startView(cmd, opts, defaultFrame)
	if err != nil {
		return nil, err
	}
	if view.Phase() == tabview.PhaseError {
		printErrors(cmd.OutOrStdout(), view)
		return nil, fmt.Errorf("tab is not ready: %s", joinKinds(view.Errors()))
	}
	return view, nil
}

func printErrors(w io.Writer, view *tabview.View) {
	for _, msg := range view.ErrorMessages() {
		fmt.Fprintf(w, "! %s\n", msg)
	}
}

func joinKinds(kinds []tabview.ErrorKind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}
