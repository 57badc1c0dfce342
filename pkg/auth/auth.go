// Package auth resolves bearer credentials to user identities. The relay
// rejects requests whose credential cannot be verified before any upstream
// work happens, so no usage log row exists for unauthenticated requests.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned for missing, malformed, or rejected
// credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier resolves a bearer access token to a user id.
type Verifier interface {
	// Verify returns the user id for the given token, or ErrUnauthorized.
	Verify(ctx context.Context, token string) (string, error)
}
