package auth

import (
	"context"
	"strings"

	"github.com/anjalik1505/town-functions-sub002/internal/config"
)

// Verifier resolves a bearer token to the user id it was issued for.
// Token issuance and revocation live with the identity provider; this
// package only answers "who is calling".
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// NewVerifier creates the appropriate Verifier for the environment.
func NewVerifier(cfg *config.Config) Verifier {
	if !cfg.IsProduction() {
		return NewDevVerifier()
	}

	// TODO: implement a production Verifier that validates tokens against the
	// identity provider. Until then the dev verifier stands in.
	return NewDevVerifier()
}

// DevTokenPrefix is the scheme recognized by the development verifier.
// A token "dev-alice" authenticates as user "alice".
const DevTokenPrefix = "dev-"

// DevVerifier accepts dev-prefixed tokens and resolves them to the embedded
// user id. Local development only.
type DevVerifier struct{}

// NewDevVerifier creates a new DevVerifier for local development
func NewDevVerifier() *DevVerifier {
	return &DevVerifier{}
}

// Verify resolves a dev token to its user id.
func (v *DevVerifier) Verify(ctx context.Context, token string) (string, error) {
	if !strings.HasPrefix(token, DevTokenPrefix) {
		return "", ErrInvalidToken
	}
	userID := strings.TrimPrefix(token, DevTokenPrefix)
	if userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}
