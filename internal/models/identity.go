package models

import (
	"time"

	"github.com/google/uuid"
)

// Identity represents an authenticatable actor held by the credential store.
// The identity id is immutable for the actor's lifetime; identities are only
// deleted as a provisioning rollback compensation or by explicit account
// deletion.
type Identity struct {
	IdentityID  uuid.UUID // UUIDv7
	Email       string    // Unique among identities
	DisplayName string
	PhotoURL    *string

	// PasswordHash is a bcrypt hash. Never serialized outward.
	PasswordHash []byte

	// RevocationEpoch is bumped to invalidate all outstanding session
	// credentials minted before the bump. Session tokens carry the epoch
	// they were minted at.
	RevocationEpoch int64

	CreatedAt time.Time
	UpdatedAt time.Time
}
