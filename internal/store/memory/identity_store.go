package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// IdentityStore implements store.IdentityStore using in-memory storage.
// Data is lost on restart; intended for tests and development.
type IdentityStore struct {
	mu sync.RWMutex

	identities map[uuid.UUID]*models.Identity // identity_id -> Identity
	byEmail    map[string]uuid.UUID           // lowercased email -> identity_id
}

// NewIdentityStore creates a new in-memory identity store.
func NewIdentityStore() *IdentityStore {
	return &IdentityStore{
		identities: make(map[uuid.UUID]*models.Identity),
		byEmail:    make(map[string]uuid.UUID),
	}
}

// Create creates a new identity in memory.
func (s *IdentityStore) Create(ctx context.Context, identity *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(identity.Email)
	if _, exists := s.byEmail[key]; exists {
		return store.ErrIdentityAlreadyExists
	}
	if _, exists := s.identities[identity.IdentityID]; exists {
		return store.ErrIdentityAlreadyExists
	}

	// Clone to avoid external modifications
	clone := *identity
	s.identities[identity.IdentityID] = &clone
	s.byEmail[key] = identity.IdentityID

	return nil
}

// Get retrieves an identity by ID.
func (s *IdentityStore) Get(ctx context.Context, identityID uuid.UUID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, exists := s.identities[identityID]
	if !exists {
		return nil, store.ErrIdentityNotFound
	}

	clone := *identity
	return &clone, nil
}

// GetByEmail retrieves an identity by email.
func (s *IdentityStore) GetByEmail(ctx context.Context, email string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[strings.ToLower(email)]
	if !exists {
		return nil, store.ErrIdentityNotFound
	}

	clone := *s.identities[id]
	return &clone, nil
}

// Delete removes an identity.
func (s *IdentityStore) Delete(ctx context.Context, identityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, exists := s.identities[identityID]
	if !exists {
		return store.ErrIdentityNotFound
	}

	delete(s.byEmail, strings.ToLower(identity.Email))
	delete(s.identities, identityID)

	return nil
}

// BumpRevocationEpoch increments the identity's revocation epoch.
func (s *IdentityStore) BumpRevocationEpoch(ctx context.Context, identityID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity, exists := s.identities[identityID]
	if !exists {
		return 0, store.ErrIdentityNotFound
	}

	identity.RevocationEpoch++
	identity.UpdatedAt = time.Now()

	return identity.RevocationEpoch, nil
}
