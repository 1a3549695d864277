package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// MembershipStore implements store.MembershipStore using PostgreSQL.
type MembershipStore struct {
	pool *pgxpool.Pool
}

// NewMembershipStore creates a new PostgreSQL-backed membership store.
// It shares the connection pool with other stores.
func NewMembershipStore(pool *pgxpool.Pool) *MembershipStore {
	return &MembershipStore{
		pool: pool,
	}
}

const membershipColumns = `org_id, member_id, display_name, email, photo_url, is_admin, status, created_at`

// Create creates a new membership in the database.
func (s *MembershipStore) Create(ctx context.Context, membership *models.Membership) error {
	query := `
		INSERT INTO memberships (` + membershipColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		membership.OrgID,
		membership.MemberID,
		membership.DisplayName,
		membership.Email,
		membership.PhotoURL,
		membership.IsAdmin,
		membership.Status,
		membership.CreatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrMembershipAlreadyExists
		}
		return fmt.Errorf("failed to create membership: %w", err)
	}

	log.Debug().
		Str("org_id", membership.OrgID.String()).
		Str("member_id", membership.MemberID.String()).
		Str("status", membership.Status).
		Msg("Created membership")

	return nil
}

// Get retrieves the membership for a member in an organization.
func (s *MembershipStore) Get(ctx context.Context, orgID, memberID uuid.UUID) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE org_id = $1 AND member_id = $2
	`

	return s.scanMembership(s.pool.QueryRow(ctx, query, orgID, memberID))
}

// GetByEmail retrieves the membership with the given email in an organization.
func (s *MembershipStore) GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE org_id = $1 AND lower(email) = lower($2)
	`

	return s.scanMembership(s.pool.QueryRow(ctx, query, orgID, email))
}

// FindInvitedByEmail searches all organizations for a pending invited
// membership with the given email.
func (s *MembershipStore) FindInvitedByEmail(ctx context.Context, email string) (*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE lower(email) = lower($1) AND status = 'invited'
		LIMIT 1
	`

	return s.scanMembership(s.pool.QueryRow(ctx, query, email))
}

// List returns all memberships in an organization, invited ones included.
func (s *MembershipStore) List(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	query := `
		SELECT ` + membershipColumns + `
		FROM memberships
		WHERE org_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.pool.Query(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var members []*models.Membership
	for rows.Next() {
		var m models.Membership
		err := rows.Scan(
			&m.OrgID,
			&m.MemberID,
			&m.DisplayName,
			&m.Email,
			&m.PhotoURL,
			&m.IsAdmin,
			&m.Status,
			&m.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		members = append(members, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}

	return members, nil
}

// SetAdmin updates the admin flag on a membership.
func (s *MembershipStore) SetAdmin(ctx context.Context, orgID, memberID uuid.UUID, isAdmin bool) error {
	query := `
		UPDATE memberships
		SET is_admin = $3
		WHERE org_id = $1 AND member_id = $2
	`

	result, err := s.pool.Exec(ctx, query, orgID, memberID, isAdmin)
	if err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("member_id", memberID.String()).
		Bool("is_admin", isAdmin).
		Msg("Updated membership role")

	return nil
}

// Delete removes a membership.
func (s *MembershipStore) Delete(ctx context.Context, orgID, memberID uuid.UUID) error {
	query := `DELETE FROM memberships WHERE org_id = $1 AND member_id = $2`

	result, err := s.pool.Exec(ctx, query, orgID, memberID)
	if err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrMembershipNotFound
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("member_id", memberID.String()).
		Msg("Deleted membership")

	return nil
}

// CountAdmins returns the number of active admin memberships in an organization.
func (s *MembershipStore) CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error) {
	query := `
		SELECT count(*)
		FROM memberships
		WHERE org_id = $1 AND is_admin AND status = 'active'
	`

	var count int
	if err := s.pool.QueryRow(ctx, query, orgID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count admins: %w", err)
	}

	return count, nil
}

func (s *MembershipStore) scanMembership(row pgx.Row) (*models.Membership, error) {
	var m models.Membership
	err := row.Scan(
		&m.OrgID,
		&m.MemberID,
		&m.DisplayName,
		&m.Email,
		&m.PhotoURL,
		&m.IsAdmin,
		&m.Status,
		&m.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMembershipNotFound
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}

	return &m, nil
}
