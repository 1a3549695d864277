package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

type membershipKey struct {
	orgID    uuid.UUID
	memberID uuid.UUID
}

// TenantStore holds all tenant records in memory behind a single mutex, so
// the multi-document provisioning batches are atomic, which is the property
// the postgres implementation gets from transactions. The per-record-type
// store interfaces are exposed as views over the shared state.
//
// Data is lost on restart; intended for tests and development.
type TenantStore struct {
	mu sync.RWMutex

	orgs       map[uuid.UUID]*models.Organization // org_id -> Organization
	orgsByName map[string]uuid.UUID               // lowercased name -> org_id

	memberships map[membershipKey]*models.Membership
	mappings    map[uuid.UUID]*models.OrgMapping // identity_id -> OrgMapping
	consents    map[uuid.UUID]*models.Consent    // identity_id -> Consent
}

var _ store.TenantProvisioner = (*TenantStore)(nil)

// NewTenantStore creates a new in-memory tenant store.
func NewTenantStore() *TenantStore {
	return &TenantStore{
		orgs:        make(map[uuid.UUID]*models.Organization),
		orgsByName:  make(map[string]uuid.UUID),
		memberships: make(map[membershipKey]*models.Membership),
		mappings:    make(map[uuid.UUID]*models.OrgMapping),
		consents:    make(map[uuid.UUID]*models.Consent),
	}
}

// Organizations returns the organization view of the store.
func (s *TenantStore) Organizations() store.OrganizationStore { return organizationView{s} }

// Memberships returns the membership view of the store.
func (s *TenantStore) Memberships() store.MembershipStore { return membershipView{s} }

// Mappings returns the identity-to-organization mapping view of the store.
func (s *TenantStore) Mappings() store.MappingStore { return mappingView{s} }

// Consents returns the consent record view of the store.
func (s *TenantStore) Consents() store.ConsentStore { return consentView{s} }

// ProvisionTenant atomically creates the organization, admin membership,
// mapping, and consent record.
func (s *TenantStore) ProvisionTenant(ctx context.Context, org *models.Organization, member *models.Membership, consent *models.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nameKey := strings.ToLower(org.Name)
	if _, exists := s.orgsByName[nameKey]; exists {
		return store.ErrOrganizationAlreadyExists
	}
	if _, exists := s.orgs[org.OrgID]; exists {
		return store.ErrOrganizationAlreadyExists
	}

	if err := s.createMembershipLocked(member); err != nil {
		return err
	}

	orgClone := *org
	s.orgs[org.OrgID] = &orgClone
	s.orgsByName[nameKey] = org.OrgID

	s.mappings[member.MemberID] = &models.OrgMapping{IdentityID: member.MemberID, OrgID: org.OrgID}

	consentClone := *consent
	s.consents[consent.IdentityID] = &consentClone

	return nil
}

// ClaimInvitation atomically replaces a pending invited membership with an
// active one and writes the mapping and consent records.
func (s *TenantStore) ClaimInvitation(ctx context.Context, orgID, invitedMemberID uuid.UUID, member *models.Membership, consent *models.Consent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	invitedKey := membershipKey{orgID: orgID, memberID: invitedMemberID}
	invited, exists := s.memberships[invitedKey]
	if !exists || invited.Status != models.MembershipStatusInvited {
		return store.ErrMembershipNotFound
	}

	delete(s.memberships, invitedKey)

	if err := s.createMembershipLocked(member); err != nil {
		// Restore the invited row so a failed claim leaves no gap.
		s.memberships[invitedKey] = invited
		return err
	}

	s.mappings[member.MemberID] = &models.OrgMapping{IdentityID: member.MemberID, OrgID: orgID}

	consentClone := *consent
	s.consents[consent.IdentityID] = &consentClone

	return nil
}

// createMembershipLocked inserts a membership. Caller must hold the lock.
func (s *TenantStore) createMembershipLocked(membership *models.Membership) error {
	key := membershipKey{orgID: membership.OrgID, memberID: membership.MemberID}
	if _, exists := s.memberships[key]; exists {
		return store.ErrMembershipAlreadyExists
	}
	for _, m := range s.memberships {
		if m.OrgID == membership.OrgID && strings.EqualFold(m.Email, membership.Email) {
			return store.ErrMembershipAlreadyExists
		}
	}

	clone := *membership
	s.memberships[key] = &clone
	return nil
}

type organizationView struct{ t *TenantStore }

func (v organizationView) Get(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	org, exists := v.t.orgs[orgID]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *org
	return &clone, nil
}

func (v organizationView) GetByName(ctx context.Context, name string) (*models.Organization, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	orgID, exists := v.t.orgsByName[strings.ToLower(name)]
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	clone := *v.t.orgs[orgID]
	return &clone, nil
}

type membershipView struct{ t *TenantStore }

func (v membershipView) Create(ctx context.Context, membership *models.Membership) error {
	v.t.mu.Lock()
	defer v.t.mu.Unlock()

	return v.t.createMembershipLocked(membership)
}

func (v membershipView) Get(ctx context.Context, orgID, memberID uuid.UUID) (*models.Membership, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	m, exists := v.t.memberships[membershipKey{orgID: orgID, memberID: memberID}]
	if !exists {
		return nil, store.ErrMembershipNotFound
	}

	clone := *m
	return &clone, nil
}

func (v membershipView) GetByEmail(ctx context.Context, orgID uuid.UUID, email string) (*models.Membership, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	for _, m := range v.t.memberships {
		if m.OrgID == orgID && strings.EqualFold(m.Email, email) {
			clone := *m
			return &clone, nil
		}
	}
	return nil, store.ErrMembershipNotFound
}

func (v membershipView) FindInvitedByEmail(ctx context.Context, email string) (*models.Membership, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	for _, m := range v.t.memberships {
		if m.Status == models.MembershipStatusInvited && strings.EqualFold(m.Email, email) {
			clone := *m
			return &clone, nil
		}
	}
	return nil, store.ErrMembershipNotFound
}

func (v membershipView) List(ctx context.Context, orgID uuid.UUID) ([]*models.Membership, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	var members []*models.Membership
	for _, m := range v.t.memberships {
		if m.OrgID == orgID {
			clone := *m
			members = append(members, &clone)
		}
	}
	return members, nil
}

func (v membershipView) SetAdmin(ctx context.Context, orgID, memberID uuid.UUID, isAdmin bool) error {
	v.t.mu.Lock()
	defer v.t.mu.Unlock()

	m, exists := v.t.memberships[membershipKey{orgID: orgID, memberID: memberID}]
	if !exists {
		return store.ErrMembershipNotFound
	}

	m.IsAdmin = isAdmin
	return nil
}

func (v membershipView) Delete(ctx context.Context, orgID, memberID uuid.UUID) error {
	v.t.mu.Lock()
	defer v.t.mu.Unlock()

	key := membershipKey{orgID: orgID, memberID: memberID}
	if _, exists := v.t.memberships[key]; !exists {
		return store.ErrMembershipNotFound
	}

	delete(v.t.memberships, key)
	return nil
}

func (v membershipView) CountAdmins(ctx context.Context, orgID uuid.UUID) (int, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	count := 0
	for _, m := range v.t.memberships {
		if m.OrgID == orgID && m.IsAdmin && m.Status == models.MembershipStatusActive {
			count++
		}
	}
	return count, nil
}

type mappingView struct{ t *TenantStore }

func (v mappingView) Get(ctx context.Context, identityID uuid.UUID) (*models.OrgMapping, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	mapping, exists := v.t.mappings[identityID]
	if !exists {
		return nil, store.ErrMappingNotFound
	}

	clone := *mapping
	return &clone, nil
}

func (v mappingView) Delete(ctx context.Context, identityID uuid.UUID) error {
	v.t.mu.Lock()
	defer v.t.mu.Unlock()

	if _, exists := v.t.mappings[identityID]; !exists {
		return store.ErrMappingNotFound
	}

	delete(v.t.mappings, identityID)
	return nil
}

type consentView struct{ t *TenantStore }

func (v consentView) Get(ctx context.Context, identityID uuid.UUID) (*models.Consent, error) {
	v.t.mu.RLock()
	defer v.t.mu.RUnlock()

	consent, exists := v.t.consents[identityID]
	if !exists {
		return nil, store.ErrConsentNotFound
	}

	clone := *consent
	return &clone, nil
}
