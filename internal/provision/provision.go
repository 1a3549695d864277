// Package provision implements the tenant provisioning service: atomic
// creation of an organization and its first administrative member, with
// compensating rollback when the multi-document write fails after the
// identity has been created.
package provision

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/credential"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// Domain errors returned by the Service.
var (
	// ErrDuplicateOrganization means an active organization already has the
	// requested name. No side effects have occurred.
	ErrDuplicateOrganization = errors.New("organization name already taken")

	// ErrCredentialConflict means the email is already registered. No side
	// effects have occurred.
	ErrCredentialConflict = errors.New("email already registered")

	// ErrNoInvitation means no pending invitation exists for the email.
	ErrNoInvitation = errors.New("no pending invitation for this email")

	// ErrRollbackFailed means the compensating identity deletion itself
	// failed, leaving an orphaned identity behind. This is a fatal-class
	// error requiring operator attention.
	ErrRollbackFailed = errors.New("provisioning rollback failed: orphaned identity")

	// ErrLastAdmin means account deletion was refused because the identity
	// is the organization's only administrator.
	ErrLastAdmin = errors.New("cannot delete the organization's only administrator")
)

// ValidationError carries field-level validation messages.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// SignUpInput is the input to Provision and CompleteInvitedSignup.
type SignUpInput struct {
	OrganizationName string // Empty for invited signups
	DisplayName      string
	Email            string
	Password         string
	Consent          bool
}

// Result is the outcome of a successful signup. The assertion is good for an
// immediate exchange into a session cookie.
type Result struct {
	IdentityID uuid.UUID
	OrgID      uuid.UUID
	Assertion  string
}

// Service orchestrates tenant provisioning against the credential store and
// the record store.
type Service struct {
	creds       credential.Store
	orgs        store.OrganizationStore
	memberships store.MembershipStore
	mappings    store.MappingStore
	provisioner store.TenantProvisioner
}

// NewService creates a tenant provisioning service.
func NewService(
	creds credential.Store,
	orgs store.OrganizationStore,
	memberships store.MembershipStore,
	mappings store.MappingStore,
	provisioner store.TenantProvisioner,
) *Service {
	return &Service{
		creds:       creds,
		orgs:        orgs,
		memberships: memberships,
		mappings:    mappings,
		provisioner: provisioner,
	}
}

// Provision creates a new organization with its first administrative member.
// On success exactly one identity, organization, membership (admin), mapping
// and consent record exist; on any failure path zero residual records remain.
func (s *Service) Provision(ctx context.Context, in SignUpInput) (*Result, error) {
	if err := validateSignUp(in, true); err != nil {
		return nil, err
	}

	// Duplicate-name pre-check: fail early with no side effects. The
	// provisioning transaction re-checks via the unique index, so a
	// concurrent signup slipping past this check still cannot commit twice.
	_, err := s.orgs.GetByName(ctx, in.OrganizationName)
	if err == nil {
		return nil, ErrDuplicateOrganization
	}
	if !errors.Is(err, store.ErrOrganizationNotFound) {
		return nil, fmt.Errorf("failed to check organization name: %w", err)
	}

	// Nothing has been created yet, so a conflict here needs no compensation.
	identity, assertion, err := s.creds.CreateIdentity(ctx, in.Email, in.Password, in.DisplayName)
	if err != nil {
		if errors.Is(err, credential.ErrEmailInUse) {
			return nil, ErrCredentialConflict
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	orgID, err := uuid.NewV7()
	if err != nil {
		return nil, s.rollback(ctx, identity.IdentityID, fmt.Errorf("failed to generate org id: %w", err))
	}

	now := time.Now()
	org := &models.Organization{
		OrgID:           orgID,
		Name:            in.OrganizationName,
		OwnerIdentityID: identity.IdentityID,
		CreatedAt:       now,
	}
	member := &models.Membership{
		OrgID:       orgID,
		MemberID:    identity.IdentityID,
		DisplayName: in.DisplayName,
		Email:       identity.Email,
		PhotoURL:    identity.PhotoURL,
		IsAdmin:     true, // First member is always administrator
		Status:      models.MembershipStatusActive,
		CreatedAt:   now,
	}
	consent := &models.Consent{
		IdentityID:     identity.IdentityID,
		TermsOfService: true,
		PrivacyPolicy:  true,
		AcceptedAt:     now,
	}

	if err := s.provisioner.ProvisionTenant(ctx, org, member, consent); err != nil {
		if errors.Is(err, store.ErrOrganizationAlreadyExists) {
			// Lost the duplicate-name race after the pre-check.
			err = ErrDuplicateOrganization
		}
		return nil, s.rollback(ctx, identity.IdentityID, err)
	}

	log.Info().
		Str("identity_id", identity.IdentityID.String()).
		Str("org_id", orgID.String()).
		Str("org_name", in.OrganizationName).
		Msg("Provisioned new tenant")

	return &Result{
		IdentityID: identity.IdentityID,
		OrgID:      orgID,
		Assertion:  assertion,
	}, nil
}

// CompleteInvitedSignup registers an identity for an email holding a pending
// invitation, claiming the invited membership instead of creating a new
// organization.
func (s *Service) CompleteInvitedSignup(ctx context.Context, in SignUpInput) (*Result, error) {
	if err := validateSignUp(in, false); err != nil {
		return nil, err
	}

	invited, err := s.memberships.FindInvitedByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return nil, ErrNoInvitation
		}
		return nil, fmt.Errorf("failed to look up invitation: %w", err)
	}

	identity, assertion, err := s.creds.CreateIdentity(ctx, in.Email, in.Password, in.DisplayName)
	if err != nil {
		if errors.Is(err, credential.ErrEmailInUse) {
			return nil, ErrCredentialConflict
		}
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	now := time.Now()
	member := &models.Membership{
		OrgID:       invited.OrgID,
		MemberID:    identity.IdentityID,
		DisplayName: in.DisplayName,
		Email:       identity.Email,
		PhotoURL:    invited.PhotoURL,
		IsAdmin:     invited.IsAdmin,
		Status:      models.MembershipStatusActive,
		CreatedAt:   now,
	}
	consent := &models.Consent{
		IdentityID:     identity.IdentityID,
		TermsOfService: true,
		PrivacyPolicy:  true,
		AcceptedAt:     now,
	}

	if err := s.provisioner.ClaimInvitation(ctx, invited.OrgID, invited.MemberID, member, consent); err != nil {
		return nil, s.rollback(ctx, identity.IdentityID, err)
	}

	log.Info().
		Str("identity_id", identity.IdentityID.String()).
		Str("org_id", invited.OrgID.String()).
		Msg("Invited member completed signup")

	return &Result{
		IdentityID: identity.IdentityID,
		OrgID:      invited.OrgID,
		Assertion:  assertion,
	}, nil
}

// DeleteAccount removes the identity's membership, mapping and credential
// record. The consent record is kept as an audit artifact. Refused when the
// identity is the sole administrator of its organization.
func (s *Service) DeleteAccount(ctx context.Context, identityID uuid.UUID) error {
	mapping, err := s.mappings.Get(ctx, identityID)
	if err != nil {
		if errors.Is(err, store.ErrMappingNotFound) {
			// No tenant; just remove the credential record.
			return s.creds.DeleteIdentity(ctx, identityID)
		}
		return fmt.Errorf("failed to resolve organization: %w", err)
	}

	membership, err := s.memberships.Get(ctx, mapping.OrgID, identityID)
	if err != nil && !errors.Is(err, store.ErrMembershipNotFound) {
		return fmt.Errorf("failed to load membership: %w", err)
	}

	if membership != nil && membership.IsAdmin {
		admins, err := s.memberships.CountAdmins(ctx, mapping.OrgID)
		if err != nil {
			return fmt.Errorf("failed to count administrators: %w", err)
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	if membership != nil {
		if err := s.memberships.Delete(ctx, mapping.OrgID, identityID); err != nil {
			return fmt.Errorf("failed to delete membership: %w", err)
		}
	}
	if err := s.mappings.Delete(ctx, identityID); err != nil && !errors.Is(err, store.ErrMappingNotFound) {
		return fmt.Errorf("failed to delete org mapping: %w", err)
	}
	if err := s.creds.DeleteIdentity(ctx, identityID); err != nil {
		return fmt.Errorf("failed to delete identity: %w", err)
	}

	log.Info().
		Str("identity_id", identityID.String()).
		Str("org_id", mapping.OrgID.String()).
		Msg("Deleted account")

	return nil
}

// rollback deletes the identity created earlier in a failed signup. An
// identity must never outlive a failed provisioning attempt, because the
// session authority and authorization guard assume every identity resolves
// to exactly one tenant. The delete is retried; if it still fails the error
// is escalated to fatal class for operator attention.
func (s *Service) rollback(ctx context.Context, identityID uuid.UUID, cause error) error {
	op := func() (struct{}, error) {
		return struct{}{}, s.creds.DeleteIdentity(ctx, identityID)
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(4),
		backoff.WithMaxElapsedTime(10*time.Second),
	)
	if err != nil && !errors.Is(err, credential.ErrIdentityNotFound) {
		log.Error().Err(err).
			Str("identity_id", identityID.String()).
			Str("class", "fatal").
			Msg("Compensating identity deletion failed; orphaned identity requires operator attention")
		return fmt.Errorf("%w: %s (caused by: %s)", ErrRollbackFailed, identityID, cause)
	}

	log.Warn().Err(cause).
		Str("identity_id", identityID.String()).
		Msg("Provisioning failed, identity rolled back")

	return cause
}

// validateSignUp applies the field-level validation policy. Password policy
// is enforced here as well as in the credential store so callers get a field
// error rather than a whole-operation error.
func validateSignUp(in SignUpInput, requireOrg bool) error {
	fields := make(map[string][]string)

	if requireOrg && len(strings.TrimSpace(in.OrganizationName)) < 2 {
		fields["organizationName"] = append(fields["organizationName"], "Organization name must be at least 2 characters.")
	}
	if len(strings.TrimSpace(in.DisplayName)) < 2 {
		fields["displayName"] = append(fields["displayName"], "Name must be at least 2 characters.")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = append(fields["email"], "Invalid email address.")
	}
	if len(in.Password) < 8 {
		fields["password"] = append(fields["password"], "Password must be at least 8 characters long.")
	}
	if !in.Consent {
		fields["consent"] = append(fields["consent"], "You must agree to the terms and privacy policy.")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
