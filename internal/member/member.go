// Package member implements administration of an organization's members:
// inviting a not-yet-registered email, changing roles, removing members and
// listing the roster. Every mutation is gated on the caller holding tenant
// admin rights, and no caller may ever modify their own membership.
package member

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/authz"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
)

// Domain errors returned by the Service.
var (
	// ErrAccessDenied means the caller lacks admin rights in the target
	// organization, or attempted to modify their own membership.
	ErrAccessDenied = errors.New("access denied")

	// ErrSelfChange is the self-modification case of ErrAccessDenied: an
	// actor may never change or remove their own membership, regardless of
	// role.
	ErrSelfChange = fmt.Errorf("%w: cannot modify own membership", ErrAccessDenied)

	// ErrAlreadyMember means a membership with the email already exists in
	// the organization.
	ErrAlreadyMember = errors.New("a member with this email already exists")

	// ErrNotFound means the target membership does not exist.
	ErrNotFound = errors.New("member not found")

	// ErrInvalidInput means the invitation fields failed validation.
	ErrInvalidInput = errors.New("invalid invitation input")
)

// Service handles member administration for organizations.
type Service struct {
	guard       *authz.Guard
	memberships store.MembershipStore
}

// NewService creates a member administration service.
func NewService(guard *authz.Guard, memberships store.MembershipStore) *Service {
	return &Service{
		guard:       guard,
		memberships: memberships,
	}
}

// Invite pre-provisions a non-admin membership for an email that has not
// registered yet. The caller must be a tenant admin. The invitee gains no
// way to authenticate until they complete signup, which claims this record.
func (s *Service) Invite(ctx context.Context, orgID uuid.UUID, displayName, email string, caller uuid.UUID) (*models.Membership, error) {
	if len(strings.TrimSpace(displayName)) < 2 {
		return nil, fmt.Errorf("%w: name must be at least 2 characters", ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}

	if !s.guard.IsTenantAdmin(ctx, caller, orgID) {
		return nil, ErrAccessDenied
	}

	_, err := s.memberships.GetByEmail(ctx, orgID, email)
	if err == nil {
		return nil, ErrAlreadyMember
	}
	if !errors.Is(err, store.ErrMembershipNotFound) {
		return nil, fmt.Errorf("failed to check existing members: %w", err)
	}

	// Placeholder id; replaced by the real identity id when the invitee
	// completes signup.
	memberID, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate member id: %w", err)
	}

	invited := &models.Membership{
		OrgID:       orgID,
		MemberID:    memberID,
		DisplayName: displayName,
		Email:       email,
		IsAdmin:     false,
		Status:      models.MembershipStatusInvited,
		CreatedAt:   time.Now(),
	}

	if err := s.memberships.Create(ctx, invited); err != nil {
		if errors.Is(err, store.ErrMembershipAlreadyExists) {
			return nil, ErrAlreadyMember
		}
		return nil, fmt.Errorf("failed to create invitation: %w", err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("invited_by", caller.String()).
		Msg("Invited new member")

	return invited, nil
}

// UpdateRole changes the admin flag on another member's membership.
func (s *Service) UpdateRole(ctx context.Context, orgID, target uuid.UUID, isAdmin bool, caller uuid.UUID) error {
	// Self-change is refused before the admin check so it fails regardless
	// of the caller's role.
	if caller == target {
		return ErrSelfChange
	}

	if !s.guard.IsTenantAdmin(ctx, caller, orgID) {
		return ErrAccessDenied
	}

	if err := s.memberships.SetAdmin(ctx, orgID, target, isAdmin); err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to update role: %w", err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("target", target.String()).
		Str("caller", caller.String()).
		Bool("is_admin", isAdmin).
		Msg("Updated member role")

	return nil
}

// Remove deletes another member's membership.
func (s *Service) Remove(ctx context.Context, orgID, target, caller uuid.UUID) error {
	if caller == target {
		return ErrSelfChange
	}

	if !s.guard.IsTenantAdmin(ctx, caller, orgID) {
		return ErrAccessDenied
	}

	if err := s.memberships.Delete(ctx, orgID, target); err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove member: %w", err)
	}

	log.Info().
		Str("org_id", orgID.String()).
		Str("target", target.String()).
		Str("caller", caller.String()).
		Msg("Removed member")

	return nil
}

// List returns the organization's roster, invited members included. Any
// member of the organization may list; non-members are denied.
func (s *Service) List(ctx context.Context, orgID, caller uuid.UUID) ([]*models.Membership, error) {
	if _, err := s.memberships.Get(ctx, orgID, caller); err != nil {
		if errors.Is(err, store.ErrMembershipNotFound) {
			return nil, ErrAccessDenied
		}
		return nil, fmt.Errorf("failed to check caller membership: %w", err)
	}

	members, err := s.memberships.List(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}
