package tools

import (
	"crypto/sha256"
	"crypto/subtle"
	"fmt"

	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// UpdateAuthorizer gates update_database behind a shared token.
// A zero-value or empty-token authorizer allows every update.
type UpdateAuthorizer struct {
	digest [sha256.Size]byte
	set    bool
}

// NewUpdateAuthorizer returns an authorizer for token. An empty token
// disables the check.
func NewUpdateAuthorizer(token string) *UpdateAuthorizer {
	if token == "" {
		return &UpdateAuthorizer{}
	}
	return &UpdateAuthorizer{digest: sha256.Sum256([]byte(token)), set: true}
}

// Required reports whether updates must present a token.
func (a *UpdateAuthorizer) Required() bool {
	return a != nil && a.set
}

// Authorize checks presented against the configured token in constant time.
// Digests are compared so the token length does not leak either.
func (a *UpdateAuthorizer) Authorize(presented string) error {
	if !a.Required() {
		return nil
	}
	got := sha256.Sum256([]byte(presented))
	if presented == "" || subtle.ConstantTimeCompare(got[:], a.digest[:]) != 1 {
		return fmt.Errorf("update token rejected: %w", sqlmcp.ErrUnauthorized)
	}
	return nil
}
