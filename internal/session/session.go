// Package session resolves bearer credentials into authenticated users.
package session

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrMissingCredential is returned when no Authorization header was supplied.
	ErrMissingCredential = errors.New("missing authorization header")
	// ErrInvalidSession is returned when the credential does not resolve to a user.
	ErrInvalidSession = errors.New("invalid session")
)

// User is the authenticated caller.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// Verifier resolves an access token into a user.
type Verifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// ExtractBearer returns the token from an Authorization header value.
// Both "Bearer <token>" and a bare token are accepted.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}

	parts := strings.Fields(header)
	switch {
	case len(parts) == 2 && strings.EqualFold(parts[0], "bearer"):
		return parts[1], nil
	case len(parts) == 1 && !strings.EqualFold(parts[0], "bearer"):
		return parts[0], nil
	default:
		return "", ErrInvalidSession
	}
}
