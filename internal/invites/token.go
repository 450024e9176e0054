package invites

import (
	"strings"

	"github.com/google/uuid"
)

// TokenProvider issues unguessable invitation tokens.
type TokenProvider interface {
	NewToken() (string, error)
}

type uuidTokenProvider struct{}

// NewUUIDTokenProvider returns a TokenProvider backed by random UUIDv4 values rendered as 32 hex characters.
func NewUUIDTokenProvider() TokenProvider {
	return uuidTokenProvider{}
}

func (uuidTokenProvider) NewToken() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(value.String(), "-", ""), nil
}
