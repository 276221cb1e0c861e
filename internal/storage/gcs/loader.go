package gcs

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
	"google.golang.org/api/option"
)

// maxPromptBytes caps how much of the object is read.
const maxPromptBytes = 1 << 20

type openFunc func(ctx context.Context, bucket, object string) (io.ReadCloser, error)

var _ ports.PromptLoader = (*Loader)(nil)

// Loader reads the system prompt from a single GCS object on every call.
type Loader struct {
	bucket string
	path   string
	client *storage.Client
	openFn openFunc
}

// NewLoader creates a storage client using Application Default Credentials
// unless opts say otherwise.
func NewLoader(ctx context.Context, bucket, path string, opts ...option.ClientOption) (*Loader, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, errors.NewAppError(errors.TypeStorage, "error creating storage client", err)
	}

	l := &Loader{
		bucket: bucket,
		path:   path,
		client: client,
	}
	l.openFn = l.defaultOpen
	return l, nil
}

func (l *Loader) defaultOpen(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	return l.client.Bucket(bucket).Object(object).NewReader(ctx)
}

// LoadPrompt downloads the prompt text. A missing, unreadable, or empty
// object is an error.
func (l *Loader) LoadPrompt(ctx context.Context) (string, error) {
	log := logger.FromContext(ctx)

	log.Debug("downloading system prompt",
		"bucket", l.bucket,
		"path", l.path)

	r, err := l.openFn(ctx, l.bucket, l.path)
	if err != nil {
		return "", l.fetchError(err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Warn("error closing prompt reader", "error", err)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(r, maxPromptBytes))
	if err != nil {
		return "", l.fetchError(err)
	}

	text := string(data)
	if strings.TrimSpace(text) == "" {
		return "", errors.ErrPromptEmpty.
			WithContext("bucket", l.bucket).
			WithContext("path", l.path)
	}

	log.Debug("system prompt downloaded", "size", len(data))
	return text, nil
}

func (l *Loader) fetchError(err error) error {
	appErr := errors.ErrPromptFetch.
		WithError(fmt.Errorf("gs://%s/%s: %w", l.bucket, l.path, err)).
		WithContext("bucket", l.bucket).
		WithContext("path", l.path)

	if stderrors.Is(err, storage.ErrObjectNotExist) || stderrors.Is(err, storage.ErrBucketNotExist) {
		appErr = appErr.WithContext("not_found", true).
			WithSuggestion("Check PROMPT_GCS_BUCKET_NAME and SYSTEM_PROMPT_GCS_FILE_PATH")
	}
	return appErr
}

// Close releases the underlying storage client.
func (l *Loader) Close() error {
	if l.client == nil {
		return nil
	}
	return l.client.Close()
}
