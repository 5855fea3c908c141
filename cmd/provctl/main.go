package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"xdao.co/provchain/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "provctl: %v\n", err)
	}
	stop()
	os.Exit(cli.GetExitCode(err))
}
