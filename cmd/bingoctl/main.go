// Command bingoctl は端末からMeeting Bingoを操作するクライアント。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/hitoshi/meetingbingo/internal/cli"
)

var version = "dev"

func main() {
	cli.SetVersion(version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "bingoctl:", err)
		stop()
		os.Exit(1)
	}
}
