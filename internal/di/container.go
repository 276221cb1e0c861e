package di

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/thomas-vilte/backlog-responder/internal/ai/gemini"
	"github.com/thomas-vilte/backlog-responder/internal/auth"
	"github.com/thomas-vilte/backlog-responder/internal/config"
	"github.com/thomas-vilte/backlog-responder/internal/httpclient"
	"github.com/thomas-vilte/backlog-responder/internal/i18n"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/models"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
	"github.com/thomas-vilte/backlog-responder/internal/services"
	"github.com/thomas-vilte/backlog-responder/internal/storage/gcs"
	"github.com/thomas-vilte/backlog-responder/internal/tracker/backlog"
)

type (
	PromptLoaderFactory func(ctx context.Context, cfg config.PromptConfig) (ports.PromptLoader, func() error, error)
	GeneratorFactory    func(ctx context.Context, cfg config.GCPConfig) (ports.TextGenerator, error)
)

// Container builds the webhook pipeline from a loaded Config.
type Container struct {
	config       *config.Config
	translations *i18n.Translations
	httpClient   httpclient.HTTPClient

	newPromptLoader PromptLoaderFactory
	newGenerator    GeneratorFactory

	// lazy initialized
	webhookService *services.WebhookService
	closers        []func() error
}

// NewContainer wires the production adapters. Use the Set* methods to swap
// them before the first call to WebhookService.
func NewContainer(cfg *config.Config, trans *i18n.Translations) *Container {
	return &Container{
		config:          cfg,
		translations:    trans,
		httpClient:      httpclient.NewDefaultHTTPClient(),
		newPromptLoader: defaultPromptLoader,
		newGenerator:    defaultGenerator,
	}
}

func (c *Container) SetHTTPClient(client httpclient.HTTPClient) {
	c.httpClient = client
}

func (c *Container) SetPromptLoaderFactory(f PromptLoaderFactory) {
	c.newPromptLoader = f
}

func (c *Container) SetGeneratorFactory(f GeneratorFactory) {
	c.newGenerator = f
}

// WebhookService builds the pipeline once and returns the same instance afterwards.
func (c *Container) WebhookService(ctx context.Context) (*services.WebhookService, error) {
	if c.webhookService != nil {
		return c.webhookService, nil
	}

	loader, closeLoader, err := c.newPromptLoader(ctx, c.config.Prompt)
	if err != nil {
		return nil, fmt.Errorf("error creating prompt loader: %w", err)
	}
	if closeLoader != nil {
		c.closers = append(c.closers, closeLoader)
	}

	generator, err := c.newGenerator(ctx, c.config.GCP)
	if err != nil {
		return nil, fmt.Errorf("error creating gemini client: %w", err)
	}

	gate := auth.NewBasicGate(models.Credentials{
		Username: c.config.Auth.Username,
		Password: c.config.Auth.Password,
	})
	poster := backlog.NewClient(c.config.BacklogBaseURL(), c.config.Backlog.APIKey, c.httpClient)

	c.webhookService = services.NewWebhookService(gate, loader, generator, poster, c.translations.PromptHeading())

	logger.Info(ctx, "webhook pipeline ready",
		"model", c.config.GCP.GeminiModel,
		"region", c.config.GCP.GeminiRegion,
		"prompt_bucket", c.config.Prompt.BucketName,
		"prompt_path", c.config.Prompt.FilePath,
		"prompt_cache_ttl", c.config.Prompt.CacheTTL.String(),
		"language", c.translations.Language())

	return c.webhookService, nil
}

// Close releases clients opened by WebhookService.
func (c *Container) Close() error {
	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return stderrors.Join(errs...)
}

func defaultPromptLoader(ctx context.Context, cfg config.PromptConfig) (ports.PromptLoader, func() error, error) {
	loader, err := gcs.NewLoader(ctx, cfg.BucketName, cfg.FilePath)
	if err != nil {
		return nil, nil, err
	}
	if cfg.CacheTTL > 0 {
		return gcs.NewCachedLoader(loader, cfg.BucketName, cfg.FilePath, cfg.CacheTTL), loader.Close, nil
	}
	return loader, loader.Close, nil
}

func defaultGenerator(ctx context.Context, cfg config.GCPConfig) (ports.TextGenerator, error) {
	return gemini.NewGenerator(ctx, cfg)
}
