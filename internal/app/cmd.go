package app

import (
	"fmt"
	"strings"
)

// Command はサーバーのサブコマンド。
type Command string

const (
	// CommandServe はAPIサーバーとタブページを起動する。引数省略時の既定。
	CommandServe Command = "serve"
	// CommandMigrate はトピックストアのマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は起動中のサーバーの /healthz を確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var commandSummaries = []struct {
	cmd     Command
	summary string
}{
	{CommandServe, "start the API server and tab pages (default)"},
	{CommandMigrate, "apply topic store migrations and exit"},
	{CommandHealthcheck, "probe a running server's /healthz"},
}

// ParseCommand は先頭の引数からサブコマンドを解析する。
// 引数が無い場合はCommandServe、未知のサブコマンドはエラー。
func ParseCommand(args []string) (Command, error) {
	if len(args) == 0 {
		return CommandServe, nil
	}
	for _, c := range commandSummaries {
		if string(c.cmd) == args[0] {
			return c.cmd, nil
		}
	}
	return "", fmt.Errorf("unknown command %q\n\n%s", args[0], Usage())
}

// Usage はサブコマンドの一覧を返す。
func Usage() string {
	var b strings.Builder
	b.WriteString("usage: meetingbingo [command]\n\ncommands:\n")
	for _, c := range commandSummaries {
		fmt.Fprintf(&b, "  %-12s %s\n", c.cmd, c.summary)
	}
	return b.String()
}
