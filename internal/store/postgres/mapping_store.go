package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// MappingStore implements store.MappingStore using PostgreSQL. Mappings are
// written only inside TenantProvisioner transactions.
type MappingStore struct {
	pool *pgxpool.Pool
}

// NewMappingStore creates a new PostgreSQL-backed mapping store.
func NewMappingStore(pool *pgxpool.Pool) *MappingStore {
	return &MappingStore{
		pool: pool,
	}
}

// Get resolves the organization an identity belongs to.
func (s *MappingStore) Get(ctx context.Context, identityID uuid.UUID) (*models.OrgMapping, error) {
	query := `SELECT identity_id, org_id FROM org_mappings WHERE identity_id = $1`

	var mapping models.OrgMapping
	err := s.pool.QueryRow(ctx, query, identityID).Scan(&mapping.IdentityID, &mapping.OrgID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrMappingNotFound
		}
		return nil, fmt.Errorf("failed to get org mapping: %w", err)
	}

	return &mapping, nil
}

// Delete removes the mapping, as part of account deletion.
func (s *MappingStore) Delete(ctx context.Context, identityID uuid.UUID) error {
	query := `DELETE FROM org_mappings WHERE identity_id = $1`

	result, err := s.pool.Exec(ctx, query, identityID)
	if err != nil {
		return fmt.Errorf("failed to delete org mapping: %w", err)
	}

	if result.RowsAffected() == 0 {
		return store.ErrMappingNotFound
	}

	return nil
}

// ConsentStore implements store.ConsentStore using PostgreSQL. Consents are
// written only inside TenantProvisioner transactions and never mutated.
type ConsentStore struct {
	pool *pgxpool.Pool
}

// NewConsentStore creates a new PostgreSQL-backed consent store.
func NewConsentStore(pool *pgxpool.Pool) *ConsentStore {
	return &ConsentStore{
		pool: pool,
	}
}

// Get retrieves a consent record.
func (s *ConsentStore) Get(ctx context.Context, identityID uuid.UUID) (*models.Consent, error) {
	query := `
		SELECT identity_id, terms_of_service, privacy_policy, accepted_at
		FROM consents
		WHERE identity_id = $1
	`

	var consent models.Consent
	err := s.pool.QueryRow(ctx, query, identityID).Scan(
		&consent.IdentityID,
		&consent.TermsOfService,
		&consent.PrivacyPolicy,
		&consent.AcceptedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrConsentNotFound
		}
		return nil, fmt.Errorf("failed to get consent: %w", err)
	}

	return &consent, nil
}
