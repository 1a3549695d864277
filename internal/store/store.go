// Package store defines the record store interfaces the identity subsystem
// is built against, together with the sentinel errors implementations map
// backend failures onto. Two implementations exist: memory (tests and
// development) and postgres.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
)

// Sentinel errors shared by all store implementations.
var (
	ErrIdentityNotFound      = errors.New("identity not found")
	ErrIdentityAlreadyExists = errors.New("identity already exists")

	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")

	ErrMembershipNotFound      = errors.New("membership not found")
	ErrMembershipAlreadyExists = errors.New("membership already exists")

	ErrMappingNotFound = errors.New("organization mapping not found")
	ErrConsentNotFound = errors.New("consent record not found")
)

// IdentityStore persists identity records for the credential store.
type IdentityStore interface {
	// Create creates a new identity.
	// Returns ErrIdentityAlreadyExists if the email is already registered.
	Create(ctx context.Context, identity *models.Identity) error

	// Get retrieves an identity by ID.
	Get(ctx context.Context, identityID uuid.UUID) (*models.Identity, error)

	// GetByEmail retrieves an identity by email.
	GetByEmail(ctx context.Context, email string) (*models.Identity, error)

	// Delete removes an identity. Used as the compensating rollback when
	// tenant provisioning fails after identity creation, and by account
	// deletion.
	Delete(ctx context.Context, identityID uuid.UUID) error

	// BumpRevocationEpoch increments the identity's revocation epoch,
	// invalidating every session credential minted before the bump.
	// Returns the new epoch.
	BumpRevocationEpoch(ctx context.Context, identityID uuid.UUID) (int64, error)
}

// OrganizationStore persists organization (tenant) records. Organizations are
// only ever created through TenantProvisioner; this interface covers reads.
type OrganizationStore interface {
	// Get retrieves an organization by ID.
	Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error)

	// GetByName retrieves an organization by its globally unique name.
	// Returns ErrOrganizationNotFound if no active organization has the name.
	GetByName(ctx context.Context, name string) (*models.Organization, error)
}

// MembershipStore persists membership records within organizations.
type MembershipStore interface {
	// Create creates a membership. Returns ErrMembershipAlreadyExists if the
	// (org, member) pair or the (org, email) pair already exists.
	Create(ctx context.Context, membership *models.Membership) error

	// Get retrieves the membership for a member in an organization.
	Get(ctx context.Context, orgID, memberID uuid.UUID) (*models.Membership, error)

	// GetByEmail retrieves the membership with the given email in an
	// organization, regardless of status.
	GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*models.Membership, error)

	// FindInvitedByEmail searches all organizations for a pending invited
	// membership with the given email. Returns ErrMembershipNotFound when
	// the email has no outstanding invitation.
	FindInvitedByEmail(ctx context.Context, email string) (*models.Membership, error)

	// List returns all memberships in an organization, invited ones included.
	List(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error)

	// SetAdmin updates the admin flag on a membership.
	SetAdmin(ctx context.Context, orgID, memberID uuid.UUID, isAdmin bool) error

	// Delete removes a membership.
	Delete(ctx context.Context, orgID, memberID uuid.UUID) error

	// CountAdmins returns the number of active admin memberships in an
	// organization.
	CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error)
}

// MappingStore persists the identity-to-organization lookup. Mappings are
// created only inside TenantProvisioner batches.
type MappingStore interface {
	// Get resolves the organization an identity belongs to.
	Get(ctx context.Context, identityID uuid.UUID) (*models.OrgMapping, error)

	// Delete removes the mapping, as part of account deletion.
	Delete(ctx context.Context, identityID uuid.UUID) error
}

// ConsentStore reads consent audit records. Consents are written only inside
// TenantProvisioner batches and are never mutated.
type ConsentStore interface {
	Get(ctx context.Context, identityID uuid.UUID) (*models.Consent, error)
}

// TenantProvisioner executes the multi-document writes of tenant provisioning
// as a single atomic batch. Partial application (an organization without its
// membership, a membership without its mapping) is a correctness violation
// the rest of the subsystem depends on not occurring.
type TenantProvisioner interface {
	// ProvisionTenant atomically creates the organization, its first
	// membership (the admin), the identity-to-organization mapping, and the
	// consent record. Returns ErrOrganizationAlreadyExists if another
	// organization with the same name committed first.
	ProvisionTenant(ctx context.Context, org *models.Organization, member *models.Membership, consent *models.Consent) error

	// ClaimInvitation atomically replaces a pending invited membership with
	// an active one linked to a freshly created identity, and writes the
	// mapping and consent records. Returns ErrMembershipNotFound if the
	// invited membership no longer exists.
	ClaimInvitation(ctx context.Context, orgID, invitedMemberID uuid.UUID, member *models.Membership, consent *models.Consent) error
}
