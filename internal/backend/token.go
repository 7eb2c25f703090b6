package backend

import (
	"context"
	"errors"
	"os"
	"strings"
)

// DefaultTokenEnv is the environment variable holding the bearer token.
const DefaultTokenEnv = "TTS_EDITOR_TOKEN"

var errTokenEnvUnset = errors.New("bearer token environment variable is not set")

// EnvTokenSource reads the bearer token from the environment on every call, so
// a rotated token is picked up without restarting the session.
type EnvTokenSource struct {
	Variable string
}

// Token returns the current value of the configured variable.
func (s EnvTokenSource) Token(_ context.Context) (string, error) {
	name := s.Variable
	if name == "" {
		name = DefaultTokenEnv
	}

	token := strings.TrimSpace(os.Getenv(name))
	if token == "" {
		return "", errTokenEnvUnset
	}

	return token, nil
}

// StaticToken always returns the same token.
type StaticToken string

// Token returns the token.
func (s StaticToken) Token(_ context.Context) (string, error) {
	return string(s), nil
}
