package provision

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/credential"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/models"
	"github.com/Mike-SamaSama/comelec-compliance-suite/internal/store"
	memorystore "github.com/Mike-SamaSama/comelec-compliance-suite/internal/store/memory"
)

type fixture struct {
	service    *Service
	creds      credential.Store
	identities *memorystore.IdentityStore
	tenants    *memorystore.TenantStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	identities := memorystore.NewIdentityStore()
	tenants := memorystore.NewTenantStore()

	creds, err := credential.NewLocal(identities, []byte(strings.Repeat("s", 32)))
	require.NoError(t, err)

	service := NewService(creds, tenants.Organizations(), tenants.Memberships(), tenants.Mappings(), tenants)

	return &fixture{
		service:    service,
		creds:      creds,
		identities: identities,
		tenants:    tenants,
	}
}

func validInput() SignUpInput {
	return SignUpInput{
		OrganizationName: "Green Earth Party",
		DisplayName:      "Juan dela Cruz",
		Email:            "juan@example.com",
		Password:         "hunter2hunter2",
		Consent:          true,
	}
}

func TestService_Provision(t *testing.T) {
	ctx := context.Background()

	t.Run("creates all five records", func(t *testing.T) {
		f := newFixture(t)

		result, err := f.service.Provision(ctx, validInput())
		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, result.IdentityID)
		require.NotEqual(t, uuid.Nil, result.OrgID)
		require.NotEmpty(t, result.Assertion)

		identity, err := f.identities.Get(ctx, result.IdentityID)
		require.NoError(t, err)
		require.Equal(t, "juan@example.com", identity.Email)

		org, err := f.tenants.Organizations().Get(ctx, result.OrgID)
		require.NoError(t, err)
		require.Equal(t, "Green Earth Party", org.Name)
		require.Equal(t, result.IdentityID, org.OwnerIdentityID)

		membership, err := f.tenants.Memberships().Get(ctx, result.OrgID, result.IdentityID)
		require.NoError(t, err)
		require.True(t, membership.IsAdmin)
		require.Equal(t, models.MembershipStatusActive, membership.Status)

		mapping, err := f.tenants.Mappings().Get(ctx, result.IdentityID)
		require.NoError(t, err)
		require.Equal(t, result.OrgID, mapping.OrgID)

		consent, err := f.tenants.Consents().Get(ctx, result.IdentityID)
		require.NoError(t, err)
		require.True(t, consent.TermsOfService)
		require.True(t, consent.PrivacyPolicy)
	})

	t.Run("duplicate organization name", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Provision(ctx, validInput())
		require.NoError(t, err)

		in := validInput()
		in.Email = "maria@example.com"
		_, err = f.service.Provision(ctx, in)
		require.ErrorIs(t, err, ErrDuplicateOrganization)

		// The losing signup must leave no identity behind.
		_, err = f.identities.GetByEmail(ctx, "maria@example.com")
		require.ErrorIs(t, err, store.ErrIdentityNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.Provision(ctx, validInput())
		require.NoError(t, err)

		in := validInput()
		in.OrganizationName = "Another Party"
		_, err = f.service.Provision(ctx, in)
		require.ErrorIs(t, err, ErrCredentialConflict)

		// No second organization may exist.
		_, err = f.tenants.Organizations().GetByName(ctx, "Another Party")
		require.ErrorIs(t, err, store.ErrOrganizationNotFound)
	})

	t.Run("validation failures carry field messages", func(t *testing.T) {
		f := newFixture(t)

		in := SignUpInput{
			OrganizationName: "x",
			DisplayName:      "y",
			Email:            "not-an-email",
			Password:         "short",
			Consent:          false,
		}
		_, err := f.service.Provision(ctx, in)

		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		require.Contains(t, verr.Fields, "organizationName")
		require.Contains(t, verr.Fields, "displayName")
		require.Contains(t, verr.Fields, "email")
		require.Contains(t, verr.Fields, "password")
		require.Contains(t, verr.Fields, "consent")
	})
}

// failingProvisioner fails every batch write.
type failingProvisioner struct {
	err error
}

func (p *failingProvisioner) ProvisionTenant(ctx context.Context, org *models.Organization, member *models.Membership, consent *models.Consent) error {
	return p.err
}

func (p *failingProvisioner) ClaimInvitation(ctx context.Context, orgID, invitedMemberID uuid.UUID, member *models.Membership, consent *models.Consent) error {
	return p.err
}

// flakyCreds fails DeleteIdentity a fixed number of times before delegating.
type flakyCreds struct {
	credential.Store
	failures int
	calls    int
}

func (c *flakyCreds) DeleteIdentity(ctx context.Context, identityID uuid.UUID) error {
	c.calls++
	if c.calls <= c.failures {
		return errors.New("store unavailable")
	}
	return c.Store.DeleteIdentity(ctx, identityID)
}

func TestService_ProvisionRollback(t *testing.T) {
	ctx := context.Background()

	t.Run("batch failure rolls the identity back", func(t *testing.T) {
		f := newFixture(t)
		cause := errors.New("backend down")
		service := NewService(f.creds, f.tenants.Organizations(), f.tenants.Memberships(), f.tenants.Mappings(), &failingProvisioner{err: cause})

		_, err := service.Provision(ctx, validInput())
		require.ErrorIs(t, err, cause)

		_, err = f.identities.GetByEmail(ctx, "juan@example.com")
		require.ErrorIs(t, err, store.ErrIdentityNotFound)
	})

	t.Run("rollback retries transient delete failures", func(t *testing.T) {
		f := newFixture(t)
		flaky := &flakyCreds{Store: f.creds, failures: 2}
		service := NewService(flaky, f.tenants.Organizations(), f.tenants.Memberships(), f.tenants.Mappings(), &failingProvisioner{err: errors.New("backend down")})

		_, err := service.Provision(ctx, validInput())
		require.Error(t, err)
		require.NotErrorIs(t, err, ErrRollbackFailed)
		require.Equal(t, 3, flaky.calls)

		_, err = f.identities.GetByEmail(ctx, "juan@example.com")
		require.ErrorIs(t, err, store.ErrIdentityNotFound)
	})

	t.Run("exhausted rollback escalates to fatal class", func(t *testing.T) {
		f := newFixture(t)
		flaky := &flakyCreds{Store: f.creds, failures: 100}
		service := NewService(flaky, f.tenants.Organizations(), f.tenants.Memberships(), f.tenants.Mappings(), &failingProvisioner{err: errors.New("backend down")})

		_, err := service.Provision(ctx, validInput())
		require.ErrorIs(t, err, ErrRollbackFailed)
	})
}

func TestService_CompleteInvitedSignup(t *testing.T) {
	ctx := context.Background()

	// seedTenant provisions an organization and invites an email into it.
	seedTenant := func(t *testing.T, f *fixture, inviteEmail string, inviteAdmin bool) *Result {
		t.Helper()

		result, err := f.service.Provision(ctx, validInput())
		require.NoError(t, err)

		invitedID, err := uuid.NewV7()
		require.NoError(t, err)
		err = f.tenants.Memberships().Create(ctx, &models.Membership{
			OrgID:       result.OrgID,
			MemberID:    invitedID,
			DisplayName: "Pending Member",
			Email:       inviteEmail,
			IsAdmin:     inviteAdmin,
			Status:      models.MembershipStatusInvited,
			CreatedAt:   time.Now(),
		})
		require.NoError(t, err)
		return result
	}

	t.Run("claims the pending invitation", func(t *testing.T) {
		f := newFixture(t)
		seeded := seedTenant(t, f, "maria@example.com", false)

		result, err := f.service.CompleteInvitedSignup(ctx, SignUpInput{
			DisplayName: "Maria Clara",
			Email:       "maria@example.com",
			Password:    "hunter2hunter2",
			Consent:     true,
		})
		require.NoError(t, err)
		require.Equal(t, seeded.OrgID, result.OrgID)

		membership, err := f.tenants.Memberships().Get(ctx, result.OrgID, result.IdentityID)
		require.NoError(t, err)
		require.Equal(t, models.MembershipStatusActive, membership.Status)
		require.Equal(t, "Maria Clara", membership.DisplayName)
		require.False(t, membership.IsAdmin)

		// The placeholder row is gone; only the claimed one matches the email.
		_, err = f.tenants.Memberships().FindInvitedByEmail(ctx, "maria@example.com")
		require.ErrorIs(t, err, store.ErrMembershipNotFound)

		mapping, err := f.tenants.Mappings().Get(ctx, result.IdentityID)
		require.NoError(t, err)
		require.Equal(t, result.OrgID, mapping.OrgID)
	})

	t.Run("invited admin keeps the admin flag", func(t *testing.T) {
		f := newFixture(t)
		seedTenant(t, f, "maria@example.com", true)

		result, err := f.service.CompleteInvitedSignup(ctx, SignUpInput{
			DisplayName: "Maria Clara",
			Email:       "maria@example.com",
			Password:    "hunter2hunter2",
			Consent:     true,
		})
		require.NoError(t, err)

		membership, err := f.tenants.Memberships().Get(ctx, result.OrgID, result.IdentityID)
		require.NoError(t, err)
		require.True(t, membership.IsAdmin)
	})

	t.Run("no invitation", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.service.CompleteInvitedSignup(ctx, SignUpInput{
			DisplayName: "Maria Clara",
			Email:       "maria@example.com",
			Password:    "hunter2hunter2",
			Consent:     true,
		})
		require.ErrorIs(t, err, ErrNoInvitation)

		// Rejection must not leave a credential behind.
		_, err = f.identities.GetByEmail(ctx, "maria@example.com")
		require.ErrorIs(t, err, store.ErrIdentityNotFound)
	})
}

func TestService_DeleteAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("sole administrator is refused", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.service.Provision(ctx, validInput())
		require.NoError(t, err)

		err = f.service.DeleteAccount(ctx, result.IdentityID)
		require.ErrorIs(t, err, ErrLastAdmin)

		// Nothing was deleted.
		_, err = f.identities.Get(ctx, result.IdentityID)
		require.NoError(t, err)
	})

	t.Run("removes membership, mapping and identity", func(t *testing.T) {
		f := newFixture(t)
		result, err := f.service.Provision(ctx, validInput())
		require.NoError(t, err)

		// Promote a second admin so the founder may leave.
		invitedID, err := uuid.NewV7()
		require.NoError(t, err)
		require.NoError(t, f.tenants.Memberships().Create(ctx, &models.Membership{
			OrgID:       result.OrgID,
			MemberID:    invitedID,
			DisplayName: "Second Admin",
			Email:       "maria@example.com",
			IsAdmin:     true,
			Status:      models.MembershipStatusInvited,
			CreatedAt:   time.Now(),
		}))
		second, err := f.service.CompleteInvitedSignup(ctx, SignUpInput{
			DisplayName: "Maria Clara",
			Email:       "maria@example.com",
			Password:    "hunter2hunter2",
			Consent:     true,
		})
		require.NoError(t, err)

		err = f.service.DeleteAccount(ctx, result.IdentityID)
		require.NoError(t, err)

		_, err = f.tenants.Memberships().Get(ctx, result.OrgID, result.IdentityID)
		require.ErrorIs(t, err, store.ErrMembershipNotFound)
		_, err = f.tenants.Mappings().Get(ctx, result.IdentityID)
		require.ErrorIs(t, err, store.ErrMappingNotFound)
		_, err = f.identities.Get(ctx, result.IdentityID)
		require.ErrorIs(t, err, store.ErrIdentityNotFound)

		// Consent is retained as an audit record, and the other admin is
		// untouched.
		_, err = f.tenants.Consents().Get(ctx, result.IdentityID)
		require.NoError(t, err)
		_, err = f.tenants.Memberships().Get(ctx, result.OrgID, second.IdentityID)
		require.NoError(t, err)
	})

	t.Run("identity without a tenant", func(t *testing.T) {
		f := newFixture(t)
		identity, _, err := f.creds.CreateIdentity(ctx, "loner@example.com", "hunter2hunter2", "Loner")
		require.NoError(t, err)

		require.NoError(t, f.service.DeleteAccount(ctx, identity.IdentityID))

		_, err = f.identities.Get(ctx, identity.IdentityID)
		require.ErrorIs(t, err, store.ErrIdentityNotFound)
	})
}
