package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	"github.com/teranos/idxtools/cmd/idxtools/commands"
	"github.com/teranos/idxtools/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := commands.NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		printer := pterm.Error.WithWriter(os.Stderr)
		printer.Println(err.Error())
		for _, hint := range errors.GetAllHints(err) {
			pterm.Info.WithWriter(os.Stderr).Println(hint)
		}
		stop()
		os.Exit(errors.ExitCode(err))
	}
}
