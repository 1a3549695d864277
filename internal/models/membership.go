package models

import (
	"time"

	"github.com/google/uuid"
)

// Membership status values.
const (
	// MembershipStatusActive is a membership linked to a real identity.
	// For active memberships the member id equals the identity id.
	MembershipStatusActive = "active"

	// MembershipStatusInvited is a membership pre-provisioned by an
	// administrator before the invitee has registered. The member id is a
	// placeholder with no identity behind it; the row is claimed (replaced
	// by an active membership) when the invited email completes signup.
	MembershipStatusInvited = "invited"
)

// Membership relates one identity to one organization and carries the
// member's role. Exactly one membership exists per (identity, organization)
// pair, and the email is unique within an organization.
type Membership struct {
	OrgID    uuid.UUID
	MemberID uuid.UUID // Identity id for active members, placeholder for invited

	DisplayName string
	Email       string // Denormalized copy; may drift from the identity record
	PhotoURL    *string

	IsAdmin bool
	Status  string // "active" or "invited"

	CreatedAt time.Time
}

// IsInvited reports whether this membership is still waiting to be claimed
// by a registered identity.
func (m *Membership) IsInvited() bool {
	return m.Status == MembershipStatusInvited
}
