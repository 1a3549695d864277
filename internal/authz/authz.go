// Package authz implements the authorization guard for tenant-scoped
// administrative actions.
package authz

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// Guard answers whether an identity holds administrative rights in an
// organization. It is consulted before every mutating org-scoped action; it
// is never an authentication check, callers must have verified the session
// and resolved the identity id first.
type Guard struct {
	memberships store.MembershipStore
}

// NewGuard creates an authorization guard over a membership store.
func NewGuard(memberships store.MembershipStore) *Guard {
	return &Guard{
		memberships: memberships,
	}
}

// IsTenantAdmin reports whether the identity holds an active admin
// membership in the organization. It fails closed: a missing membership, an
// invited-but-unclaimed one, or any store error all answer false, never an
// error.
func (g *Guard) IsTenantAdmin(ctx context.Context, identityID, orgID uuid.UUID) bool {
	membership, err := g.memberships.Get(ctx, orgID, identityID)
	if err != nil {
		if !errors.Is(err, store.ErrMembershipNotFound) {
			log.Warn().Err(err).
				Str("identity_id", identityID.String()).
				Str("org_id", orgID.String()).
				Msg("Admin check failed, denying")
		}
		return false
	}

	if membership.Status != models.MembershipStatusActive {
		return false
	}

	return membership.IsAdmin
}
