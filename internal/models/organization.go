package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant: an isolated workspace and the unit of
// data partitioning. Names are globally unique among active organizations.
type Organization struct {
	OrgID           uuid.UUID // UUIDv7
	Name            string
	OwnerIdentityID uuid.UUID // FK to identities
	CreatedAt       time.Time
}
