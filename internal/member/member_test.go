package member

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/authz"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
	memorystore "github.com/Mike-SamaSama/comelec-compliance-suite/internal/store/memory"
)

type fixture struct {
	service     *Service
	memberships store.MembershipStore
	orgID       uuid.UUID
	admin       uuid.UUID
	regular     uuid.UUID
}

// newFixture seeds an organization with one active admin and one active
// regular member.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	tenants := memorystore.NewTenantStore()
	memberships := tenants.Memberships()

	orgID, err := uuid.NewV7()
	require.NoError(t, err)
	admin, err := uuid.NewV7()
	require.NoError(t, err)
	regular, err := uuid.NewV7()
	require.NoError(t, err)

	require.NoError(t, memberships.Create(ctx, &models.Membership{
		OrgID:       orgID,
		MemberID:    admin,
		DisplayName: "Ada Admin",
		Email:       "ada@example.com",
		IsAdmin:     true,
		Status:      models.MembershipStatusActive,
		CreatedAt:   time.Now(),
	}))
	require.NoError(t, memberships.Create(ctx, &models.Membership{
		OrgID:       orgID,
		MemberID:    regular,
		DisplayName: "Mona Member",
		Email:       "mona@example.com",
		IsAdmin:     false,
		Status:      models.MembershipStatusActive,
		CreatedAt:   time.Now(),
	}))

	return &fixture{
		service:     NewService(authz.NewGuard(memberships), memberships),
		memberships: memberships,
		orgID:       orgID,
		admin:       admin,
		regular:     regular,
	}
}

func TestService_Invite(t *testing.T) {
	ctx := context.Background()

	t.Run("admin invites a new member", func(t *testing.T) {
		f := newFixture(t)

		invited, err := f.service.Invite(ctx, f.orgID, "Carlos", "c@z.com", f.admin)
		require.NoError(t, err)
		require.Equal(t, models.MembershipStatusInvited, invited.Status)
		require.False(t, invited.IsAdmin)
		require.NotEqual(t, uuid.Nil, invited.MemberID)

		found, err := f.memberships.FindInvitedByEmail(ctx, "c@z.com")
		require.NoError(t, err)
		require.Equal(t, invited.MemberID, found.MemberID)
	})

	t.Run("existing email is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Invite(ctx, f.orgID, "Mona Again", "mona@example.com", f.admin)
		require.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("pending invite is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Invite(ctx, f.orgID, "Carlos", "c@z.com", f.admin)
		require.NoError(t, err)

		_, err = f.service.Invite(ctx, f.orgID, "Carlos Again", "c@z.com", f.admin)
		require.ErrorIs(t, err, ErrAlreadyMember)
	})

	t.Run("non-admin is denied", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Invite(ctx, f.orgID, "Carlos", "c@z.com", f.regular)
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		f := newFixture(t)
		stranger, err := uuid.NewV7()
		require.NoError(t, err)

		_, err = f.service.Invite(ctx, f.orgID, "Carlos", "c@z.com", stranger)
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("invalid input", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Invite(ctx, f.orgID, "C", "c@z.com", f.admin)
		require.ErrorIs(t, err, ErrInvalidInput)

		_, err = f.service.Invite(ctx, f.orgID, "Carlos", "not-an-email", f.admin)
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestService_UpdateRole(t *testing.T) {
	ctx := context.Background()

	t.Run("admin promotes a member", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.service.UpdateRole(ctx, f.orgID, f.regular, true, f.admin))

		membership, err := f.memberships.Get(ctx, f.orgID, f.regular)
		require.NoError(t, err)
		require.True(t, membership.IsAdmin)
	})

	t.Run("self change is refused even for admins", func(t *testing.T) {
		f := newFixture(t)

		err := f.service.UpdateRole(ctx, f.orgID, f.admin, false, f.admin)
		require.ErrorIs(t, err, ErrSelfChange)
	})

	t.Run("non-admin is denied", func(t *testing.T) {
		f := newFixture(t)

		err := f.service.UpdateRole(ctx, f.orgID, f.admin, false, f.regular)
		require.ErrorIs(t, err, ErrAccessDenied)
	})

	t.Run("unknown target", func(t *testing.T) {
		f := newFixture(t)
		stranger, err := uuid.NewV7()
		require.NoError(t, err)

		err = f.service.UpdateRole(ctx, f.orgID, stranger, true, f.admin)
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_Remove(t *testing.T) {
	ctx := context.Background()

	t.Run("admin removes a member", func(t *testing.T) {
		f := newFixture(t)

		require.NoError(t, f.service.Remove(ctx, f.orgID, f.regular, f.admin))

		_, err := f.memberships.Get(ctx, f.orgID, f.regular)
		require.ErrorIs(t, err, store.ErrMembershipNotFound)
	})

	t.Run("self removal is refused even for admins", func(t *testing.T) {
		f := newFixture(t)

		err := f.service.Remove(ctx, f.orgID, f.admin, f.admin)
		require.ErrorIs(t, err, ErrSelfChange)
	})

	t.Run("non-admin is denied", func(t *testing.T) {
		f := newFixture(t)

		err := f.service.Remove(ctx, f.orgID, f.admin, f.regular)
		require.ErrorIs(t, err, ErrAccessDenied)
	})
}

func TestService_List(t *testing.T) {
	ctx := context.Background()

	t.Run("any member may list", func(t *testing.T) {
		f := newFixture(t)

		members, err := f.service.List(ctx, f.orgID, f.regular)
		require.NoError(t, err)
		require.Len(t, members, 2)
	})

	t.Run("invited members appear in the roster", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Invite(ctx, f.orgID, "Carlos", "c@z.com", f.admin)
		require.NoError(t, err)

		members, err := f.service.List(ctx, f.orgID, f.admin)
		require.NoError(t, err)
		require.Len(t, members, 3)
	})

	t.Run("non-member is denied", func(t *testing.T) {
		f := newFixture(t)
		stranger, err := uuid.NewV7()
		require.NoError(t, err)

		_, err = f.service.List(ctx, f.orgID, stranger)
		require.ErrorIs(t, err, ErrAccessDenied)
	})
}
