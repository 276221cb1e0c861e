package ports

import "context"

// PromptLoader fetches the system prompt text.
type PromptLoader interface {
	LoadPrompt(ctx context.Context) (string, error)
}

// TextGenerator sends a prompt to a model and returns its text.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CommentPoster posts a comment on an issue in the tracker.
type CommentPoster interface {
	PostComment(ctx context.Context, issueKey string, content string) error
}

// Authenticator validates the forwarded Authorization header value.
type Authenticator interface {
	Authenticate(header string) error
}
