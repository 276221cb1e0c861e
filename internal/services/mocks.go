package services

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type (
	MockAuthenticator struct {
		mock.Mock
	}

	MockPromptLoader struct {
		mock.Mock
	}

	MockTextGenerator struct {
		mock.Mock
	}

	MockCommentPoster struct {
		mock.Mock
	}
)

func (m *MockAuthenticator) Authenticate(header string) error {
	args := m.Called(header)
	return args.Error(0)
}

func (m *MockPromptLoader) LoadPrompt(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockTextGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

func (m *MockCommentPoster) PostComment(ctx context.Context, issueKey string, content string) error {
	args := m.Called(ctx, issueKey, content)
	return args.Error(0)
}
