package auth

import (
	"context"
	"strings"
)

// StaticVerifier resolves tokens from a fixed map. Used in tests and for
// local development without an identity service.
type StaticVerifier struct {
	tokens map[string]string
}

// NewStaticVerifier creates a verifier from a token → user id map.
func NewStaticVerifier(tokens map[string]string) *StaticVerifier {
	return &StaticVerifier{tokens: tokens}
}

func (v *StaticVerifier) Verify(_ context.Context, token string) (string, error) {
	userID, ok := v.tokens[token]
	if !ok {
		return "", ErrUnauthorized
	}
	return userID, nil
}

// ParseStaticTokens parses a "token:user,token2:user2" list, the format
// of the ROTACHAT_STATIC_TOKENS environment variable. Entries without a
// user id map the token to itself.
func ParseStaticTokens(s string) map[string]string {
	tokens := make(map[string]string)
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		token, user, found := strings.Cut(entry, ":")
		if !found || user == "" {
			user = token
		}
		tokens[token] = user
	}
	return tokens
}
