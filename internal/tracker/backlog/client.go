package backlog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/httpclient"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
)

// maxErrorBody caps how much of a failed response is kept for logs.
const maxErrorBody = 4 << 10

var _ ports.CommentPoster = (*Client)(nil)

// Client talks to the Backlog REST API v2 of a single space.
type Client struct {
	baseURL string
	apiKey  string
	client  httpclient.HTTPClient
}

// NewClient builds a client for baseURL, which must not end with "/".
func NewClient(baseURL, apiKey string, client httpclient.HTTPClient) *Client {
	if client == nil {
		client = httpclient.NewDefaultHTTPClient()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

// PostComment adds content as a new comment on issueKey. Any non-2xx
// response is an error. The request is sent once.
func (c *Client) PostComment(ctx context.Context, issueKey string, content string) error {
	endpoint := c.commentsURL(issueKey)
	log := logger.FromContext(ctx).With("issue_key", issueKey, "url", c.redact(endpoint))

	form := url.Values{}
	form.Set("content", content)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.ErrTrackerRequest.
			WithError(fmt.Errorf("error creating request: %w", c.scrub(err))).
			WithContext("issue_key", issueKey)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	log.Debug("posting comment to backlog", "content_length", len(content))

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.ErrTrackerRequest.
			WithError(fmt.Errorf("error making request to backlog API: %w", c.scrub(err))).
			WithContext("issue_key", issueKey)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn("error closing response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		log.Error("backlog rejected comment",
			"status", resp.StatusCode,
			"body", string(body))

		appErr := errors.ErrTrackerStatus.
			WithError(fmt.Errorf("unexpected status: %s", resp.Status)).
			WithContext("issue_key", issueKey).
			WithContext("status", resp.StatusCode)
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			appErr = appErr.WithSuggestion("Check BACKLOG_API_KEY and that its user can comment on the project")
		case http.StatusNotFound:
			appErr = appErr.WithSuggestion("Check BACKLOG_SPACE_URL and that the issue exists")
		}
		return appErr
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	log.Info("comment posted to backlog", "status", resp.StatusCode)
	return nil
}

func (c *Client) commentsURL(issueKey string) string {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	return fmt.Sprintf("%s/api/v2/issues/%s/comments?%s", c.baseURL, url.PathEscape(issueKey), q.Encode())
}

// redact hides the API key in a URL meant for logs.
func (c *Client) redact(raw string) string {
	if c.apiKey == "" {
		return raw
	}
	return strings.ReplaceAll(raw, url.QueryEscape(c.apiKey), "REDACTED")
}

// scrub removes the API key from transport errors, which embed the URL.
func (c *Client) scrub(err error) error {
	if c.apiKey == "" || !strings.Contains(err.Error(), url.QueryEscape(c.apiKey)) {
		return err
	}
	return fmt.Errorf("%s", c.redact(err.Error()))
}
