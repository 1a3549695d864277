package credential

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

const (
	// assertionTTL bounds the window between password verification and the
	// exchange of the assertion for a session cookie.
	assertionTTL = 2 * time.Minute

	// minPasswordLength is the registration password policy.
	minPasswordLength = 8

	audienceAssertion = "assertion"
	audienceSession   = "session"
)

// Local implements Store on top of an identity store, with bcrypt password
// hashing and HMAC-signed JWTs for assertions and session cookies.
type Local struct {
	identities store.IdentityStore
	secret     []byte
}

var _ Store = (*Local)(nil)

// NewLocal creates a local credential store. The signing secret must be at
// least 32 bytes.
func NewLocal(identities store.IdentityStore, secret []byte) (*Local, error) {
	if identities == nil {
		return nil, fmt.Errorf("identity store is required")
	}
	if len(secret) < 32 {
		return nil, fmt.Errorf("signing secret must be at least 32 bytes")
	}

	return &Local{
		identities: identities,
		secret:     secret,
	}, nil
}

// sessionClaims are the claims carried inside a session credential. Epoch is
// the identity's revocation epoch at mint time.
type sessionClaims struct {
	jwt.RegisteredClaims
	Epoch int64 `json:"epoch"`
}

// CreateIdentity registers a new identity and returns it with an assertion.
func (l *Local) CreateIdentity(ctx context.Context, email, password, displayName string) (*Identity, string, error) {
	if len(password) < minPasswordLength {
		return nil, "", ErrWeakPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	identityID, err := uuid.NewV7()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate identity id: %w", err)
	}

	now := time.Now()
	identity := &models.Identity{
		IdentityID:   identityID,
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := l.identities.Create(ctx, identity); err != nil {
		if errors.Is(err, store.ErrIdentityAlreadyExists) {
			return nil, "", ErrEmailInUse
		}
		return nil, "", fmt.Errorf("failed to create identity: %w", err)
	}

	assertion, err := l.mintAssertion(identityID)
	if err != nil {
		return nil, "", err
	}

	log.Info().
		Str("identity_id", identityID.String()).
		Msg("Created identity")

	return &Identity{
		IdentityID:  identity.IdentityID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		PhotoURL:    identity.PhotoURL,
	}, assertion, nil
}

// VerifyIdentity checks an email/password pair and returns an assertion.
func (l *Local) VerifyIdentity(ctx context.Context, email, password string) (string, error) {
	identity, err := l.identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			// Burn a comparison so unknown emails cost the same as wrong
			// passwords.
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return "", ErrInvalidCredential
		}
		return "", fmt.Errorf("failed to look up identity: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword(identity.PasswordHash, []byte(password)); err != nil {
		log.Debug().Str("identity_id", identity.IdentityID.String()).Msg("Password verification failed")
		return "", ErrInvalidCredential
	}

	return l.mintAssertion(identity.IdentityID)
}

// dummyHash is compared against when the email is unknown.
var dummyHash = func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcrypt.DefaultCost)
	return h
}()

// DeleteIdentity removes an identity.
func (l *Local) DeleteIdentity(ctx context.Context, identityID uuid.UUID) error {
	if err := l.identities.Delete(ctx, identityID); err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("failed to delete identity: %w", err)
	}
	return nil
}

// RevokeSessions bumps the identity's revocation epoch.
func (l *Local) RevokeSessions(ctx context.Context, identityID uuid.UUID) error {
	if _, err := l.identities.BumpRevocationEpoch(ctx, identityID); err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			return ErrIdentityNotFound
		}
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}
	return nil
}

// MintSessionCookie exchanges an unexpired assertion for a session credential.
func (l *Local) MintSessionCookie(ctx context.Context, assertion string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		return "", fmt.Errorf("session TTL must be greater than 0")
	}

	identityID, err := l.parseToken(assertion, audienceAssertion, nil)
	if err != nil {
		return "", ErrInvalidAssertion
	}

	// The epoch baked into the cookie is the identity's current one, so a
	// later RevokeSessions invalidates this credential.
	identity, err := l.identities.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrIdentityNotFound) {
			return "", ErrInvalidAssertion
		}
		return "", fmt.Errorf("failed to look up identity: %w", err)
	}

	now := time.Now()
	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identityID.String(),
			Audience:  jwt.ClaimStrings{audienceSession},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Epoch: identity.RevocationEpoch,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}

	return token, nil
}

// VerifySessionCookie validates a session credential and returns the
// identity id it was minted for.
func (l *Local) VerifySessionCookie(ctx context.Context, token string, checkRevocation bool) (uuid.UUID, error) {
	var epoch int64
	identityID, err := l.parseToken(token, audienceSession, &epoch)
	if err != nil {
		return uuid.Nil, ErrInvalidSession
	}

	if checkRevocation {
		identity, err := l.identities.Get(ctx, identityID)
		if err != nil {
			if errors.Is(err, store.ErrIdentityNotFound) {
				// Deleted identities have no valid sessions.
				return uuid.Nil, ErrInvalidSession
			}
			return uuid.Nil, fmt.Errorf("failed to look up identity: %w", err)
		}

		if epoch < identity.RevocationEpoch {
			log.Debug().
				Str("identity_id", identityID.String()).
				Int64("token_epoch", epoch).
				Int64("current_epoch", identity.RevocationEpoch).
				Msg("Session token revoked")
			return uuid.Nil, ErrInvalidSession
		}
	}

	return identityID, nil
}

// mintAssertion signs a short-lived proof of fresh password verification.
func (l *Local) mintAssertion(identityID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   identityID.String(),
		Audience:  jwt.ClaimStrings{audienceAssertion},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(assertionTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}

	return token, nil
}

// parseToken validates signature, expiry and audience, returning the subject
// identity id. When epochOut is non-nil the epoch claim is extracted too.
func (l *Local) parseToken(tokenStr, audience string, epochOut *int64) (uuid.UUID, error) {
	var claims sessionClaims
	parsed, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("invalid signing method")
		}
		return l.secret, nil
	}, jwt.WithAudience(audience), jwt.WithExpirationRequired())
	if err != nil {
		log.Debug().Err(err).Msg("Token parse error")
		return uuid.Nil, err
	}

	if !parsed.Valid {
		return uuid.Nil, errors.New("token invalid")
	}

	identityID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	if epochOut != nil {
		*epochOut = claims.Epoch
	}

	return identityID, nil
}
