// Package session implements the session authority: exchanging a verified
// identity assertion for a server-issued session cookie, and verifying that
// cookie on inbound requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/credential"
)

// CookieName is the name of the session cookie.
const CookieName = "session"

// ErrInvalidSession is returned for any malformed, expired or revoked
// session credential. Callers must treat every verification failure
// identically: clear the cookie and treat the requester as anonymous.
var ErrInvalidSession = errors.New("invalid session")

type contextKey string

const identityContextKey contextKey = "identity_id"

// Authority mints and verifies session credentials via the credential store
// and manages the cookie they travel in.
type Authority struct {
	creds credential.Store
	ttl   time.Duration
}

// New creates a session authority with the given validity window.
func New(creds credential.Store, ttl time.Duration) (*Authority, error) {
	if creds == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session TTL must be greater than 0")
	}

	return &Authority{
		creds: creds,
		ttl:   ttl,
	}, nil
}

// TTL returns the session validity window.
func (a *Authority) TTL() time.Duration {
	return a.ttl
}

// Issue exchanges an assertion for a session credential and sets it as a
// cookie on the response.
func (a *Authority) Issue(ctx context.Context, w http.ResponseWriter, assertion string) error {
	token, err := a.creds.MintSessionCookie(ctx, assertion, a.ttl)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidAssertion) {
			return ErrInvalidSession
		}
		return fmt.Errorf("failed to mint session cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(a.ttl.Seconds()),
	})

	return nil
}

// Verify validates the session cookie on a request and returns the identity
// id it was minted for. checkRevocation must be true wherever an
// authorization decision follows; it may be relaxed only for low-stakes,
// latency-sensitive reads.
func (a *Authority) Verify(ctx context.Context, r *http.Request, checkRevocation bool) (uuid.UUID, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}

	return a.VerifyToken(ctx, cookie.Value, checkRevocation)
}

// VerifyToken validates a raw session credential.
func (a *Authority) VerifyToken(ctx context.Context, token string, checkRevocation bool) (uuid.UUID, error) {
	identityID, err := a.creds.VerifySessionCookie(ctx, token, checkRevocation)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidSession) {
			return uuid.Nil, ErrInvalidSession
		}
		// Store failures during revocation checks fail closed.
		log.Warn().Err(err).Msg("Session verification error")
		return uuid.Nil, ErrInvalidSession
	}

	return identityID, nil
}

// Clear deletes the session cookie. Sign-out needs nothing beyond this; the
// credential itself simply ages out.
func (a *Authority) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// WithIdentity stores the verified identity id in the request context.
func WithIdentity(ctx context.Context, identityID uuid.UUID) context.Context {
	return context.WithValue(ctx, identityContextKey, identityID)
}

// IdentityFromContext extracts the verified identity id from the request
// context. This should only be called from handlers behind verification.
func IdentityFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(identityContextKey).(uuid.UUID)
	return id, ok
}
