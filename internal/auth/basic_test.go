package auth

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thomas-vilte/backlog-responder/internal/errors"
	"github.com/thomas-vilte/backlog-responder/internal/models"
)

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func TestBasicGate_Authenticate(t *testing.T) {
	gate := NewBasicGate(models.Credentials{Username: "hook", Password: "p:ss wörd"})

	tests := []struct {
		name    string
		header  string
		wantErr *errors.AppError
	}{
		{"valid credentials", "Basic " + encode("hook:p:ss wörd"), nil},
		{"upper case scheme", "BASIC " + encode("hook:p:ss wörd"), nil},
		{"lower case scheme", "basic " + encode("hook:p:ss wörd"), nil},
		{"extra whitespace", "  Basic \t " + encode("hook:p:ss wörd") + " ", nil},

		{"missing header", "", errors.ErrAuthRequired},
		{"blank header", "   ", errors.ErrAuthRequired},
		{"scheme only", "Basic", errors.ErrInvalidAuthHeader},
		{"scheme with trailing space", "Basic ", errors.ErrInvalidAuthHeader},
		{"bearer scheme", "Bearer abc.def", errors.ErrUnsupportedAuthType},
		{"digest scheme", "Digest " + encode("hook:x"), errors.ErrUnsupportedAuthType},
		{"invalid base64", "Basic !!!not-base64!!!", errors.ErrInvalidAuthHeader},
		{"unpadded token", "Basic " + base64.RawStdEncoding.EncodeToString([]byte("hook:p:ss wörd")), errors.ErrInvalidAuthHeader},
		{"unpadded user pw", "Basic dXNlcjpwdw", errors.ErrInvalidAuthHeader},
		{"no colon", "Basic " + encode("hookpassword"), errors.ErrInvalidAuthHeader},
		{"invalid utf8", "Basic " + base64.StdEncoding.EncodeToString([]byte{0xff, ':', 0xfe}), errors.ErrInvalidAuthHeader},
		{"wrong password", "Basic " + encode("hook:nope"), errors.ErrAuthRequired},
		{"wrong username", "Basic " + encode("other:p:ss wörd"), errors.ErrAuthRequired},
		{"empty pair", "Basic " + encode(":"), errors.ErrAuthRequired},
		{"case differs in password", "Basic " + encode("hook:P:SS WÖRD"), errors.ErrAuthRequired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Authenticate(tt.header)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, 401, errors.HTTPStatus(err))
		})
	}
}

func TestBasicGate_MismatchIsIndistinguishableFromMissing(t *testing.T) {
	gate := NewBasicGate(models.Credentials{Username: "u", Password: "p"})

	missing := gate.Authenticate("")
	wrong := gate.Authenticate("Basic " + encode("u:wrong"))

	assert.Equal(t, errors.PublicMessage(missing), errors.PublicMessage(wrong))
	assert.Equal(t, "Authentication Required", errors.PublicMessage(wrong))
}

func TestSplitScheme(t *testing.T) {
	scheme, token, ok := splitScheme("Basic   dXNlcjpwYXNz")
	assert.True(t, ok)
	assert.Equal(t, "Basic", scheme)
	assert.Equal(t, "dXNlcjpwYXNz", token)

	_, _, ok = splitScheme("dXNlcjpwYXNz")
	assert.False(t, ok)
}
