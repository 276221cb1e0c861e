package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thomas-vilte/backlog-responder/internal/auth"
	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/models"
	"github.com/thomas-vilte/backlog-responder/internal/services"
)

func basic(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

type fixture struct {
	prompts   *services.MockPromptLoader
	generator *services.MockTextGenerator
	poster    *services.MockCommentPoster
	server    *Server
	logs      *bytes.Buffer
}

func newFixture() *fixture {
	f := &fixture{
		prompts:   new(services.MockPromptLoader),
		generator: new(services.MockTextGenerator),
		poster:    new(services.MockCommentPoster),
		logs:      &bytes.Buffer{},
	}
	gate := auth.NewBasicGate(models.Credentials{Username: "hook", Password: "secret"})
	svc := services.NewWebhookService(gate, f.prompts, f.generator, f.poster, "## 課題情報 (JSON)")
	log := slog.New(slog.NewJSONHandler(f.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f.server = NewServer(":0", svc, log)
	return f
}

func (f *fixture) do(t *testing.T, method, path, header, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if header != "" {
		req.Header.Set(auth.HeaderName, header)
	}
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.server.Routes().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandler_HappyPath(t *testing.T) {
	// arrange
	f := newFixture()
	f.prompts.On("LoadPrompt", mock.Anything).Return("SYS_PROMPT", nil).Once()
	f.generator.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.HasPrefix(p, "SYS_PROMPT\n\n## 課題情報 (JSON)\n```json\n")
	})).Return("Hello issue!", nil).Once()
	f.poster.On("PostComment", mock.Anything, "PROJ-123", "Hello issue!").Return(nil).Once()

	// act
	w := f.do(t, http.MethodPost, "/", basic("hook", "secret"), `{"type":1,"content":{"id":"PROJ-123"}}`)

	// assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, map[string]string{"status": "success"}, decode(t, w))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	f.poster.AssertExpectations(t)
	f.poster.AssertNumberOfCalls(t, "PostComment", 1)
}

func TestHandler_WebhookPath(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPost, "/webhook", basic("hook", "secret"), `{"type":2}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"message": "Not an issue creation event"}, decode(t, w))
	f.prompts.AssertNotCalled(t, "LoadPrompt", mock.Anything)
}

func TestHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		header     string
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"missing header", http.MethodPost, "", `{"type":1}`, http.StatusUnauthorized, "Authentication Required"},
		{"lower case scheme wrong pass", http.MethodPost, "basic " + base64.StdEncoding.EncodeToString([]byte("hook:nope")), `{}`, http.StatusUnauthorized, "Authentication Required"},
		{"bearer", http.MethodPost, "Bearer abc", `{}`, http.StatusUnauthorized, "Unsupported authentication type"},
		{"bad base64", http.MethodPost, "Basic %%%", `{}`, http.StatusUnauthorized, "Invalid Authorization header"},
		{"bad json", http.MethodPost, basic("hook", "secret"), `not json`, http.StatusBadRequest, "Request must be JSON"},
		{"get", http.MethodGet, basic("hook", "secret"), ``, http.StatusMethodNotAllowed, "Method not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()

			w := f.do(t, tt.method, "/", tt.header, tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, map[string]string{"message": tt.wantMsg}, decode(t, w))
			f.prompts.AssertNotCalled(t, "LoadPrompt", mock.Anything)
		})
	}
}

func TestHandler_UpstreamFailureHidesCause(t *testing.T) {
	f := newFixture()
	f.prompts.On("LoadPrompt", mock.Anything).Return("SYS", nil)
	f.generator.On("Generate", mock.Anything, mock.Anything).Return("Hello", nil)
	f.poster.On("PostComment", mock.Anything, "PROJ-1", "Hello").
		Return(errors.ErrTrackerStatus.WithContext("status", 403)).Once()

	w := f.do(t, http.MethodPost, "/", basic("hook", "secret"), `{"type":1,"content":{"id":"PROJ-1"}}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]string{"message": "Failed to post comment to Backlog"}, decode(t, w))
	assert.Contains(t, f.logs.String(), `"stage":"posted"`)
}

func TestHandler_AllowHeaderOn405(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodPut, "/", "", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodPost, w.Header().Get("Allow"))
}

func TestHealth(t *testing.T) {
	f := newFixture()

	w := f.do(t, http.MethodGet, "/healthz", "", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestRequestID(t *testing.T) {
	t.Run("cloud trace header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Cloud-Trace-Context", "105445aa7843bc8bf206b12000100000/1;o=1")
		assert.Equal(t, "105445aa7843bc8bf206b12000100000", RequestID(req))
	})

	t.Run("request id header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Request-Id", "abc-123")
		assert.Equal(t, "abc-123", RequestID(req))
	})

	t.Run("generated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		id := RequestID(req)
		assert.Len(t, id, 36)
		assert.NotEqual(t, id, RequestID(req))
	})
}

func TestServer_StartAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	srv := NewServer(addr, services.NewWebhookService(nil, nil, nil, nil, ""), slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := NewServer(":0", nil, nil)
	assert.NoError(t, srv.Shutdown(context.Background()))
}
