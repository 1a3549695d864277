package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// TenantProvisioner implements store.TenantProvisioner using a PostgreSQL
// transaction, so the organization, membership, mapping and consent writes
// commit or fail as one unit. The unique index on organization names is
// checked inside the transaction, which closes the race left open by the
// caller's duplicate-name pre-check.
type TenantProvisioner struct {
	pool *pgxpool.Pool
}

// NewTenantProvisioner creates a new PostgreSQL-backed tenant provisioner.
// It shares the connection pool with other stores.
func NewTenantProvisioner(pool *pgxpool.Pool) *TenantProvisioner {
	return &TenantProvisioner{
		pool: pool,
	}
}

// ProvisionTenant atomically creates the organization, its admin membership,
// the identity-to-organization mapping, and the consent record.
func (p *TenantProvisioner) ProvisionTenant(ctx context.Context, org *models.Organization, member *models.Membership, consent *models.Consent) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin provisioning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (org_id, name, owner_identity_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, org.OrgID, org.Name, org.OwnerIdentityID, org.CreatedAt)
	if err != nil {
		if uniqueConstraint(err) == "organizations_name_key" {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", err)
	}

	if err := insertMembership(ctx, tx, member); err != nil {
		return err
	}

	if err := insertMappingAndConsent(ctx, tx, member.MemberID, org.OrgID, consent); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit provisioning transaction: %w", err)
	}

	log.Info().
		Str("org_id", org.OrgID.String()).
		Str("owner_identity_id", org.OwnerIdentityID.String()).
		Str("name", org.Name).
		Msg("Provisioned tenant")

	return nil
}

// ClaimInvitation atomically replaces a pending invited membership with an
// active one linked to a freshly created identity, and writes the mapping
// and consent records.
func (p *TenantProvisioner) ClaimInvitation(ctx context.Context, orgID, invitedMemberID uuid.UUID, member *models.Membership, consent *models.Consent) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	result, err := tx.Exec(ctx, `
		DELETE FROM memberships
		WHERE org_id = $1 AND member_id = $2 AND status = 'invited'
	`, orgID, invitedMemberID)
	if err != nil {
		return fmt.Errorf("failed to remove invited membership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	if err := insertMembership(ctx, tx, member); err != nil {
		return err
	}

	if err := insertMappingAndConsent(ctx, tx, member.MemberID, orgID, consent); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit claim transaction: %w", err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("member_id", member.MemberID.String()).
		Msg("Claimed invited membership")

	return nil
}

func insertMembership(ctx context.Context, tx pgx.Tx, member *models.Membership) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO memberships (org_id, member_id, display_name, email, photo_url, is_admin, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		member.OrgID,
		member.MemberID,
		member.DisplayName,
		member.Email,
		member.PhotoURL,
		member.IsAdmin,
		member.Status,
		member.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrMembershipAlreadyExists
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}
	return nil
}

func insertMappingAndConsent(ctx context.Context, tx pgx.Tx, identityID, orgID uuid.UUID, consent *models.Consent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO org_mappings (identity_id, org_id) VALUES ($1, $2)
	`, identityID, orgID)
	if err != nil {
		return fmt.Errorf("failed to create org mapping: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO consents (identity_id, terms_of_service, privacy_policy, accepted_at)
		VALUES ($1, $2, $3, $4)
	`, consent.IdentityID, consent.TermsOfService, consent.PrivacyPolicy, consent.AcceptedAt)
	if err != nil {
		return fmt.Errorf("failed to create consent record: %w", err)
	}

	return nil
}
