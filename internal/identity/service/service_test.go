package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditmodels "bedrock/internal/audit/models"
	identityservice "bedrock/internal/identity/service"
	dErrors "bedrock/pkg/domain-errors"
	"bedrock/pkg/requestcontext"
	"bedrock/pkg/testutil"
)

func newService(t *testing.T) (*testutil.Env, *identityservice.Service) {
	t.Helper()
	env := testutil.NewEnv(t)
	env.MustCreateTenant(t, "acme", "Acme")
	return env, identityservice.New(env.Manager, identityservice.WithAuditLogger(env.Audit))
}

func strp(s string) *string { return &s }

func TestCreateUser(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		user, err := users.Create(ctx, "Jane Doe", "Jane@Acme.Test", "change-me-now")
		require.NoError(t, err)
		assert.Equal(t, "jane@acme.test", user.Email, "email must be normalized")
		assert.NotEqual(t, "change-me-now", user.PasswordHash, "password must never be stored in the clear")

		entries, err := env.Audit.TrailByEvent(ctx, auditmodels.EventUserCreated)
		require.NoError(t, err)
		assert.Len(t, entries, 1, "user creation must be audited")
	})
}

func TestCreateUserValidation(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		cases := []struct {
			name     string
			email    string
			password string
		}{
			{"", "jane@acme.test", "change-me-now"},
			{"Jane", "not-an-email", "change-me-now"},
			{"Jane", "jane@acme.test", "short"},
		}
		for _, tc := range cases {
			_, err := users.Create(ctx, tc.name, tc.email, tc.password)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "Create(%q, %q): expected validation error, got %v", tc.name, tc.email, err)
		}
	})
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		_, err := users.Create(ctx, "Jane", "jane@acme.test", "change-me-now")
		require.NoError(t, err)

		_, err = users.Create(ctx, "Other Jane", "JANE@acme.test", "change-me-now")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "expected conflict for duplicate email, got %v", err)
	})
}

func TestEmailReusableAfterSoftDelete(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		first, err := users.Create(ctx, "Jane", "jane@acme.test", "change-me-now")
		require.NoError(t, err)
		require.NoError(t, users.Delete(ctx, first.ID))

		_, err = users.Get(ctx, first.ID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "deleted user must not be readable, got %v", err)

		_, err = users.Create(ctx, "New Jane", "jane@acme.test", "change-me-now")
		assert.NoError(t, err, "a soft-deleted user's email must be reusable")
	})
}

func TestUpdateUser(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		user, err := users.Create(ctx, "Jane", "jane@acme.test", "change-me-now")
		require.NoError(t, err)

		updated, err := users.Update(ctx, user.ID, identityservice.UpdateInput{Name: strp("Jane Smith")})
		require.NoError(t, err)
		assert.Equal(t, "Jane Smith", updated.Name)
		assert.Equal(t, "jane@acme.test", updated.Email)

		_, err = users.Update(ctx, user.ID, identityservice.UpdateInput{Name: strp("  ")})
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), "expected validation error for blank name, got %v", err)
	})
}

func TestUpdateEmailIsSecurityEvent(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		user, err := users.Create(ctx, "Jane", "jane@acme.test", "change-me-now")
		require.NoError(t, err)

		_, err = users.Update(ctx, user.ID, identityservice.UpdateInput{Email: strp("jane.smith@acme.test")})
		require.NoError(t, err)

		entries, err := env.Audit.TrailByEvent(ctx, auditmodels.EventUserUpdated)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].IsSecurityEvent, "email change must be a security event")
		assert.Equal(t, "jane@acme.test", entries[0].Properties["previous_email"], "the old address must be preserved")
	})

	// And mirrored centrally.
	central, err := env.Central.Audit.ListByDescription(context.Background(), auditmodels.EventUserUpdated)
	require.NoError(t, err)
	assert.Len(t, central, 1, "expected the email change mirrored centrally")
}

func TestSelfDeletionBlocked(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		user, err := users.Create(ctx, "Jane", "jane@acme.test", "change-me-now")
		require.NoError(t, err)
		ctx = requestcontext.WithPrincipal(ctx, requestcontext.Principal{Kind: "user", ID: user.ID.String()})

		err = users.Delete(ctx, user.ID)
		require.True(t, dErrors.HasCode(err, dErrors.CodeSelfDeletionForbidden), "expected self_deletion_forbidden, got %v", err)

		// The account survives and the attempt is on the security record.
		_, err = users.Get(ctx, user.ID)
		assert.NoError(t, err, "blocked deletion must leave the account intact")

		entries, err := env.Audit.TrailByEvent(ctx, auditmodels.EventUserDeleted)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.True(t, entries[0].IsSecurityEvent, "blocked self-deletion must be a security event")
		assert.Equal(t, true, entries[0].Properties["blocked"], "entry must mark the attempt as blocked")
	})
}

func TestAuthenticate(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		_, err := users.Create(ctx, "Jane", "jane@acme.test", "change-me-now")
		require.NoError(t, err)

		user, err := users.Authenticate(ctx, "jane@acme.test", "change-me-now")
		require.NoError(t, err)
		assert.Equal(t, "jane@acme.test", user.Email)

		// Wrong password and unknown account are indistinguishable.
		_, badPass := users.Authenticate(ctx, "jane@acme.test", "wrong-password")
		_, badUser := users.Authenticate(ctx, "ghost@acme.test", "change-me-now")
		for _, err := range []error{badPass, badUser} {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized), "expected unauthorized, got %v", err)
		}
	})
}

func TestListExcludesDeleted(t *testing.T) {
	env, users := newService(t)

	env.Run(t, "acme", func(ctx context.Context) {
		kept, err := users.Create(ctx, "Jane", "jane@acme.test", "change-me-now")
		require.NoError(t, err)
		gone, err := users.Create(ctx, "John", "john@acme.test", "change-me-now")
		require.NoError(t, err)
		require.NoError(t, users.Delete(ctx, gone.ID))

		list, err := users.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1, "list must contain only live users")
		assert.Equal(t, kept.ID, list[0].ID)
	})
}
