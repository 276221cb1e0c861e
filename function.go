// Package responder is the Cloud Functions entry point. Deploy with
// --entry-point=Webhook.
package responder

import (
	"context"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/thomas-vilte/backlog-responder/internal/config"
	"github.com/thomas-vilte/backlog-responder/internal/di"
	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/i18n"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/server"
)

var webhook = newLazyHandler(buildHandler)

func init() {
	functions.HTTP("Webhook", Webhook)
}

// Webhook handles one Backlog webhook call.
func Webhook(w http.ResponseWriter, r *http.Request) {
	webhook.ServeHTTP(w, r)
}

// lazyHandler builds its handler on the first request. A build failure is
// kept and every request is answered with 500 until the instance restarts.
type lazyHandler struct {
	once    sync.Once
	build   func(ctx context.Context) (http.Handler, error)
	handler http.Handler
	err     error
}

func newLazyHandler(build func(ctx context.Context) (http.Handler, error)) *lazyHandler {
	return &lazyHandler{build: build}
}

func (l *lazyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.once.Do(func() {
		l.handler, l.err = l.build(context.Background())
		if l.err != nil {
			logger.Error(r.Context(), "error initializing webhook", l.err)
		}
	})

	if l.err != nil {
		server.WriteJSON(r.Context(), w, http.StatusInternalServerError,
			map[string]string{"message": errors.ErrMisconfigured.Message})
		return
	}
	l.handler.ServeHTTP(w, r)
}

func buildHandler(ctx context.Context) (http.Handler, error) {
	cfg, err := config.LoadConfig("")
	if err != nil {
		return nil, err
	}

	log := logger.Initialize(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	ctx = logger.WithLogger(ctx, log)

	translations, err := i18n.NewTranslations(cfg.Prompt.Language, cfg.Prompt.LocalesDir)
	if err != nil {
		return nil, err
	}

	svc, err := di.NewContainer(cfg, translations).WebhookService(ctx)
	if err != nil {
		return nil, err
	}
	return server.NewHandler(svc, log), nil
}
