package auth

import (
	"crypto/subtle"
	"encoding/base64"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/models"
	"github.com/thomas-vilte/backlog-responder/internal/ports"
)

// HeaderName is the header API Gateway forwards the caller's Authorization in.
const HeaderName = "X-Forwarded-Authorization"

var _ ports.Authenticator = (*BasicGate)(nil)

// BasicGate checks a Basic auth header against a fixed credential pair.
type BasicGate struct {
	expected models.Credentials
}

func NewBasicGate(expected models.Credentials) *BasicGate {
	return &BasicGate{expected: expected}
}

// Authenticate returns nil when header carries the expected credentials, or an
// AUTH AppError otherwise. A wrong username or password yields the same error
// as a missing header.
func (g *BasicGate) Authenticate(header string) error {
	if strings.TrimSpace(header) == "" {
		return errors.ErrAuthRequired
	}

	scheme, token, ok := splitScheme(header)
	if !ok {
		return errors.ErrInvalidAuthHeader
	}

	if !strings.EqualFold(scheme, "basic") {
		return errors.ErrUnsupportedAuthType
	}

	creds, ok := decodeBasic(token)
	if !ok {
		return errors.ErrInvalidAuthHeader
	}

	if !g.matches(creds) {
		return errors.ErrAuthRequired
	}

	return nil
}

func (g *BasicGate) matches(c models.Credentials) bool {
	userOK := subtle.ConstantTimeCompare([]byte(c.Username), []byte(g.expected.Username))
	passOK := subtle.ConstantTimeCompare([]byte(c.Password), []byte(g.expected.Password))
	return userOK&passOK == 1
}

// splitScheme splits "<scheme> <token>" on the first run of whitespace.
func splitScheme(header string) (string, string, bool) {
	header = strings.TrimLeftFunc(header, unicode.IsSpace)
	idx := strings.IndexFunc(header, unicode.IsSpace)
	if idx < 0 {
		return "", "", false
	}

	scheme := header[:idx]
	token := strings.TrimSpace(header[idx:])
	if token == "" {
		return "", "", false
	}
	return scheme, token, true
}

func decodeBasic(token string) (models.Credentials, bool) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return models.Credentials{}, false
	}

	if !utf8.Valid(raw) {
		return models.Credentials{}, false
	}

	username, password, found := strings.Cut(string(raw), ":")
	if !found {
		return models.Credentials{}, false
	}

	return models.Credentials{Username: username, Password: password}, true
}
