package di

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thomas-vilte/backlog-responder/internal/config"
	"github.com/thomas-vilte/backlog-responder/internal/i18n"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
	"github.com/thomas-vilte/backlog-responder/internal/services"
)

func testConfig(t *testing.T, backlogURL string) *config.Config {
	t.Helper()
	cfg, err := config.FromMap(map[string]string{
		"GCP_PROJECT_ID":              "my-project",
		"GEMINI_REGION":               "asia-northeast1",
		"GEMINI_MODEL_NAME":           "gemini-2.5-flash",
		"PROMPT_GCS_BUCKET_NAME":      "prompts",
		"SYSTEM_PROMPT_GCS_FILE_PATH": "system.txt",
		"BACKLOG_SPACE_URL":           backlogURL,
		"BACKLOG_API_KEY":             "space-key",
		"BASIC_AUTH_USERNAME":         "hook",
		"BASIC_AUTH_PASSWORD":         "secret",
	})
	require.NoError(t, err)
	return cfg
}

func TestContainer_WebhookService_EndToEnd(t *testing.T) {
	// arrange
	var posted []string
	backlogServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		posted = append(posted, r.URL.Path+"|"+r.PostForm.Get("content"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer backlogServer.Close()

	cfg := testConfig(t, backlogServer.URL+"/")
	trans, err := i18n.NewTranslations(cfg.Prompt.Language, "")
	require.NoError(t, err)

	prompts := new(services.MockPromptLoader)
	prompts.On("LoadPrompt", mock.Anything).Return("SYS_PROMPT", nil).Once()
	generator := new(services.MockTextGenerator)
	generator.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "## 課題情報 (JSON)")
	})).Return("Hello issue!", nil).Once()

	closed := false
	c := NewContainer(cfg, trans)
	c.SetHTTPClient(backlogServer.Client())
	c.SetPromptLoaderFactory(func(context.Context, config.PromptConfig) (ports.PromptLoader, func() error, error) {
		return prompts, func() error { closed = true; return nil }, nil
	})
	c.SetGeneratorFactory(func(context.Context, config.GCPConfig) (ports.TextGenerator, error) {
		return generator, nil
	})

	// act
	svc, err := c.WebhookService(context.Background())
	require.NoError(t, err)
	out := svc.Handle(context.Background(), services.WebhookRequest{
		Method:     http.MethodPost,
		AuthHeader: "Basic " + base64.StdEncoding.EncodeToString([]byte("hook:secret")),
		Body:       strings.NewReader(`{"type":1,"content":{"id":"PROJ-123"}}`),
	})

	// assert
	assert.Equal(t, http.StatusOK, out.Status)
	assert.Equal(t, []string{"/api/v2/issues/PROJ-123/comments|Hello issue!"}, posted)

	again, err := c.WebhookService(context.Background())
	require.NoError(t, err)
	assert.Same(t, svc, again)

	require.NoError(t, c.Close())
	assert.True(t, closed)
}

func TestContainer_FactoryErrors(t *testing.T) {
	cfg := testConfig(t, "https://example.backlog.jp")
	trans, err := i18n.NewTranslations("en", "")
	require.NoError(t, err)

	t.Run("prompt loader", func(t *testing.T) {
		c := NewContainer(cfg, trans)
		c.SetPromptLoaderFactory(func(context.Context, config.PromptConfig) (ports.PromptLoader, func() error, error) {
			return nil, nil, fmt.Errorf("no credentials")
		})

		_, err := c.WebhookService(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "prompt loader")
	})

	t.Run("generator", func(t *testing.T) {
		c := NewContainer(cfg, trans)
		c.SetPromptLoaderFactory(func(context.Context, config.PromptConfig) (ports.PromptLoader, func() error, error) {
			return new(services.MockPromptLoader), func() error { return fmt.Errorf("close failed") }, nil
		})
		c.SetGeneratorFactory(func(context.Context, config.GCPConfig) (ports.TextGenerator, error) {
			return nil, fmt.Errorf("bad region")
		})

		_, err := c.WebhookService(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "gemini")
		assert.EqualError(t, c.Close(), "close failed")
	})
}
