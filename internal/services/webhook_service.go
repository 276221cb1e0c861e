package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/logger"
	"github.com/thomas-vilte/backlog-responder/internal/models"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
	"github.com/thomas-vilte/backlog-responder/internal/prompt"
)

// MaxBodyBytes caps the webhook body.
const MaxBodyBytes = 1 << 20

const (
	MessageNotIssueCreation = "Not an issue creation event"
	MessageMissingIssueKey  = "Missing issue key"
	MessageMethodNotAllowed = "Method not allowed"
)

// Stage names a step of the webhook pipeline.
type Stage string

const (
	StageReceived      Stage = "received"
	StageAuthenticated Stage = "authenticated"
	StageFiltered      Stage = "filtered"
	StagePromptLoaded  Stage = "prompt_loaded"
	StageGenerated     Stage = "generated"
	StagePosted        Stage = "posted"
	StageResponded     Stage = "responded"
	StageFailed        Stage = "failed"
)

// WebhookRequest is the transport-independent view of an inbound call.
type WebhookRequest struct {
	Method     string
	AuthHeader string
	Body       io.Reader
}

// Outcome is the terminal state of one request. Stage is StageResponded or
// StageFailed; FailedAt is the stage that was being entered when it failed.
// Skipped marks a request that was filtered out as a no-op.
type Outcome struct {
	Stage    Stage
	FailedAt Stage
	Skipped  bool
	Status   int
	Body     map[string]string
	Err      error
}

// WebhookService runs authenticate, filter, load prompt, generate and post
// for one request. It holds no per-request state and is safe for concurrent use.
type WebhookService struct {
	auth      ports.Authenticator
	prompts   ports.PromptLoader
	generator ports.TextGenerator
	poster    ports.CommentPoster
	heading   string
}

func NewWebhookService(
	auth ports.Authenticator,
	prompts ports.PromptLoader,
	generator ports.TextGenerator,
	poster ports.CommentPoster,
	heading string,
) *WebhookService {
	return &WebhookService{
		auth:      auth,
		prompts:   prompts,
		generator: generator,
		poster:    poster,
		heading:   heading,
	}
}

// Handle processes a single webhook call. Collaborators are called at most
// once each, in order, and only when every previous step succeeded.
func (s *WebhookService) Handle(ctx context.Context, req WebhookRequest) Outcome {
	log := logger.FromContext(ctx)
	log.Debug("webhook received", "stage", StageReceived, "method", req.Method)

	if req.Method != http.MethodPost {
		return Outcome{
			Stage:    StageFailed,
			FailedAt: StageReceived,
			Status:   http.StatusMethodNotAllowed,
			Body:     message(MessageMethodNotAllowed),
		}
	}

	if err := s.auth.Authenticate(req.AuthHeader); err != nil {
		log.Warn("webhook authentication failed", "stage", StageAuthenticated, "error", err)
		return failed(StageAuthenticated, err)
	}

	event, err := decodeEvent(req.Body)
	if err != nil {
		log.Warn("invalid webhook body", "stage", StageFiltered, "error", err)
		return failed(StageFiltered, errors.ErrRequestNotJSON.WithError(err))
	}

	if !event.IsIssueCreated() {
		log.Info("ignoring webhook", "stage", StageFiltered, "reason", "not an issue creation event", "type", string(event.Type))
		return skipped(MessageNotIssueCreation)
	}

	issueKey, ok := event.IssueKey()
	if !ok {
		log.Info("ignoring webhook", "stage", StageFiltered, "reason", "missing issue key")
		return skipped(MessageMissingIssueKey)
	}

	ctx = logger.With(ctx, "issue_key", issueKey)
	log = logger.FromContext(ctx)

	systemPrompt, err := s.prompts.LoadPrompt(ctx)
	if err != nil {
		logger.Error(ctx, "error loading system prompt", err, "stage", StagePromptLoaded)
		return failed(StagePromptLoaded, errors.ErrPromptUnavailable.WithError(err))
	}

	text, err := prompt.Build(systemPrompt, event.Content, s.heading)
	if err != nil {
		logger.Error(ctx, "error building prompt", err, "stage", StageGenerated)
		return failed(StageGenerated, errors.ErrGenerationFailed.WithError(err))
	}

	reply, err := s.generator.Generate(ctx, text)
	if err != nil {
		logger.Error(ctx, "error generating reply", err, "stage", StageGenerated)
		return failed(StageGenerated, errors.ErrGenerationFailed.WithError(err))
	}
	if reply == "" {
		err := errors.ErrAIEmptyResponse
		logger.Error(ctx, "error generating reply", err, "stage", StageGenerated)
		return failed(StageGenerated, errors.ErrGenerationFailed.WithError(err))
	}

	if err := s.poster.PostComment(ctx, issueKey, reply); err != nil {
		logger.Error(ctx, "error posting comment", err, "stage", StagePosted)
		return failed(StagePosted, errors.ErrCommentFailed.WithError(err))
	}

	log.Info("replied to new issue", "stage", StageResponded, "reply_length", len(reply))
	return Outcome{
		Stage:  StageResponded,
		Status: http.StatusOK,
		Body:   map[string]string{"status": "success"},
	}
}

// decodeEvent reads at most MaxBodyBytes. Valid JSON that is not an object
// decodes to an empty event, which the filter then ignores.
func decodeEvent(body io.Reader) (*models.WebhookEvent, error) {
	if body == nil {
		return nil, fmt.Errorf("empty body")
	}

	raw, err := io.ReadAll(io.LimitReader(body, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("error reading body: %w", err)
	}
	if len(raw) > MaxBodyBytes {
		return nil, fmt.Errorf("body exceeds %d bytes", MaxBodyBytes)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("body is not valid JSON")
	}

	event := &models.WebhookEvent{}
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, event); err != nil {
			return nil, fmt.Errorf("error decoding body: %w", err)
		}
	}
	return event, nil
}

func message(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func skipped(msg string) Outcome {
	return Outcome{
		Stage:   StageResponded,
		Skipped: true,
		Status:  http.StatusOK,
		Body:    message(msg),
	}
}

func failed(stage Stage, err error) Outcome {
	return Outcome{
		Stage:    StageFailed,
		FailedAt: stage,
		Status:   errors.HTTPStatus(err),
		Body:     message(errors.PublicMessage(err)),
		Err:      err,
	}
}
