// Package credential defines the credential store contract: identity
// creation and password verification, plus the session-cookie primitive the
// session authority is built on. The store is an external collaborator in
// the architecture; Local is the built-in implementation.
package credential

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Errors returned by credential stores.
var (
	ErrEmailInUse        = errors.New("email already registered")
	ErrWeakPassword      = errors.New("password does not meet the minimum policy")
	ErrInvalidCredential = errors.New("invalid email or password")
	ErrInvalidAssertion  = errors.New("invalid identity assertion")
	ErrInvalidSession    = errors.New("invalid session")
	ErrIdentityNotFound  = errors.New("identity not found")
)

// Identity is the credential store's view of an actor: the immutable id plus
// the profile attributes captured at registration.
type Identity struct {
	IdentityID  uuid.UUID
	Email       string
	DisplayName string
	PhotoURL    *string
}

// Store authenticates identities and mints/verifies the opaque tokens the
// rest of the subsystem treats as session credentials.
//
// An assertion is a short-lived proof that a password was verified (or an
// identity freshly created) moments ago; it is only good for exchanging into
// a session cookie and must never be stored.
type Store interface {
	// CreateIdentity registers a new identity and returns it along with a
	// fresh assertion. Returns ErrEmailInUse if the email is registered.
	CreateIdentity(ctx context.Context, email, password, displayName string) (*Identity, string, error)

	// VerifyIdentity checks an email/password pair and returns an assertion.
	// Unknown email and wrong password are indistinguishable to the caller.
	VerifyIdentity(ctx context.Context, email, password string) (string, error)

	// DeleteIdentity removes an identity. Used by provisioning rollback and
	// account deletion.
	DeleteIdentity(ctx context.Context, identityID uuid.UUID) error

	// RevokeSessions bumps the identity's revocation epoch, invalidating all
	// session credentials minted before the call.
	RevokeSessions(ctx context.Context, identityID uuid.UUID) error

	// MintSessionCookie exchanges an unexpired assertion for a session
	// credential valid for ttl.
	MintSessionCookie(ctx context.Context, assertion string, ttl time.Duration) (string, error)

	// VerifySessionCookie validates a session credential and returns the
	// identity id it was minted for. With checkRevocation the identity's
	// current revocation epoch is consulted, so revoked and deleted
	// identities fail verification immediately; without it only the
	// signature and expiry are checked.
	VerifySessionCookie(ctx context.Context, token string, checkRevocation bool) (uuid.UUID, error)
}
