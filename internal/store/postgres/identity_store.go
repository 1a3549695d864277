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

// IdentityStore implements store.IdentityStore using PostgreSQL.
type IdentityStore struct {
	pool *pgxpool.Pool
}

// NewIdentityStore creates a new PostgreSQL-backed identity store.
// It shares the connection pool with other stores.
func NewIdentityStore(pool *pgxpool.Pool) *IdentityStore {
	return &IdentityStore{
		pool: pool,
	}
}

// Create creates a new identity in the database.
func (s *IdentityStore) Create(ctx context.Context, identity *models.Identity) error {
	query := `
		INSERT INTO identities (
			identity_id, email, display_name, photo_url,
			password_hash, revocation_epoch, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := s.pool.Exec(ctx, query,
		identity.IdentityID,
		identity.Email,
		identity.DisplayName,
		identity.PhotoURL,
		identity.PasswordHash,
		identity.RevocationEpoch,
		identity.CreatedAt,
		identity.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrIdentityAlreadyExists
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}

	log.Debug().
		Str("identity_id", identity.IdentityID.String()).
		Msg("Created identity")

	return nil
}

// Get retrieves an identity by ID.
func (s *IdentityStore) Get(ctx context.Context, identityID uuid.UUID) (*models.Identity, error) {
	query := `
		SELECT identity_id, email, display_name, photo_url,
			password_hash, revocation_epoch, created_at, updated_at
		FROM identities
		WHERE identity_id = $1
	`

	return s.scanIdentity(s.pool.QueryRow(ctx, query, identityID))
}

// GetByEmail retrieves an identity by email.
func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `
		SELECT identity_id, email, display_name, photo_url,
			password_hash, revocation_epoch, created_at, updated_at
		FROM identities
		WHERE lower(email) = lower($1)
	`

	return s.scanIdentity(s.pool.QueryRow(ctx, query, email))
}

// Delete removes an identity by ID.
func (s *IdentityStore) Delete(ctx context.Context, identityID uuid.UUID) error {
	query := `DELETE FROM identities WHERE identity_id = $1`

	result, err := s.pool.Exec(ctx, query, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrIdentityNotFound
	}

	log.Info().
		Str("identity_id", identityID.String()).
		Msg("Deleted identity")

	return nil
}

// BumpRevocationEpoch increments the identity's revocation epoch and returns
// the new value.
func (s *IdentityStore) BumpRevocationEpoch(ctx context.Context, identityID uuid.UUID) (int64, error) {
	query := `
		UPDATE identities
		SET revocation_epoch = revocation_epoch + 1, updated_at = now()
		WHERE identity_id = $1
		RETURNING revocation_epoch
	`

	var epoch int64
	err := s.pool.QueryRow(ctx, query, identityID).Scan(&epoch)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrIdentityNotFound
		}
		return 0, fmt.Errorf("failed to bump revocation epoch: %w", err)
	}

	log.Info().
		Str("identity_id", identityID.String()).
		Int64("epoch", epoch).
		Msg("Bumped revocation epoch")

	return epoch, nil
}

func (s *IdentityStore) scanIdentity(row pgx.Row) (*models.Identity, error) {
	var identity models.Identity
	err := row.Scan(
		&identity.IdentityID,
		&identity.Email,
		&identity.DisplayName,
		&identity.PhotoURL,
		&identity.PasswordHash,
		&identity.RevocationEpoch,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get identity: %w", err)
	}

	return &identity, nil
}
