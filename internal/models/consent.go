package models

import (
	"time"

	"github.com/google/uuid"
)

// Consent records that an identity accepted the terms of service and privacy
// policy at signup. Written once, never mutated; kept as an audit artifact
// even after account deletion.
type Consent struct {
	IdentityID     uuid.UUID
	TermsOfService bool
	PrivacyPolicy  bool
	AcceptedAt     time.Time
}

// OrgMapping is the single-valued lookup from an identity to the one
// organization it belongs to. Read on every login and profile load to
// resolve which organization's membership to fetch.
type OrgMapping struct {
	IdentityID uuid.UUID
	OrgID      uuid.UUID
}
