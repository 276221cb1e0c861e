package serve

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/thomas-vilte/backlog-responder/internal/config"
	"github.com/thomas-vilte/backlog-responder/internal/di"
	"github.com/thomas-vilte/backlog-responder/internal/i18n"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/server"
	"github.com/urfave/cli/v3"
)

// Options are the serve flags. Empty values fall back to configuration.
type Options struct {
	EnvFile   string
	Addr      string
	LogLevel  string
	LogFormat string
}

func NewCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the webhook as a standalone HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load variables from a .env file before reading the environment",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (default \":$PORT\")",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (default $LOG_LEVEL)",
			},
			&cli.StringFlag{
				Name:  "log-format",
				Usage: "json or text (default $LOG_FORMAT)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			return Run(ctx, Options{
				EnvFile:   command.String("env-file"),
				Addr:      command.String("addr"),
				LogLevel:  command.String("log-level"),
				LogFormat: command.String("log-format"),
			})
		},
	}
}

// Run loads configuration, builds the pipeline and serves until SIGINT or
// SIGTERM. Configuration errors are returned before anything listens.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.LoadConfig(opts.EnvFile)
	if err != nil {
		return err
	}

	logOpts := logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if opts.LogLevel != "" {
		logOpts.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		logOpts.Format = opts.LogFormat
	}
	log := logger.Initialize(logOpts)
	ctx = logger.WithLogger(ctx, log)

	translations, err := i18n.NewTranslations(cfg.Prompt.Language, cfg.Prompt.LocalesDir)
	if err != nil {
		return err
	}

	container := di.NewContainer(cfg, translations)
	defer func() {
		if err := container.Close(); err != nil {
			log.Warn("error closing clients", "error", err)
		}
	}()

	svc, err := container.WebhookService(ctx)
	if err != nil {
		return err
	}

	addr := cfg.Addr()
	if opts.Addr != "" {
		addr = opts.Addr
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.NewServer(addr, svc, slog.Default()).Start(ctx)
}
