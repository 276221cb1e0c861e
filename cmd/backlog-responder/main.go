package main

import (
	"context"
	"fmt"
	"os"

	"github.com/thomas-vilte/backlog-responder/internal/commands/doctor"
	"github.com/thomas-vilte/backlog-responder/internal/commands/serve"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/version"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:    "backlog-responder",
		Usage:   "Reply to new Backlog issues with a Gemini drafted comment",
		Version: version.FullVersion(),
		Commands: []*cli.Command{
			serve.NewCommand(),
			doctor.NewDoctorCommand().CreateCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Error(context.Background(), "backlog-responder failed", err)
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
