package services

import (
	"context"
	"testing"

	"admin-auth/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuthService(t *testing.T) (AuthService, *MemoryCredentialStore, TokenService) {
	t.Helper()
	store := NewMemoryCredentialStore()
	tokens := newTestTokens(nil)
	return NewAuthService(store, tokens, ""), store, tokens
}

func TestAuthService_RegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	auth, _, tokens := newTestAuthService(t)

	registered, err := auth.Register(ctx, &models.RegisterRequest{
		Email:    "  A@X.com ",
		Name:     "Alice",
		Password: "secret1",
	})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", registered.Identity.Email)
	assert.Equal(t, RoleStaff, registered.Identity.Role)
	assert.Equal(t, ProviderLocal, registered.Identity.AuthProvider)
	assert.NotEqual(t, "secret1", registered.Identity.PasswordHash)

	result, err := auth.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, registered.Identity.ID, result.Identity.ID)
	assert.NotEmpty(t, result.RefreshToken)
	assert.True(t, result.RefreshExpiresAt.After(result.AccessExpiresAt))

	claims, err := tokens.Verify(result.AccessToken, TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, result.Identity.ID, claims.SubjectID())
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	auth, _, _ := newTestAuthService(t)

	req := &models.RegisterRequest{Email: "a@x.com", Name: "Alice", Password: "secret1"}
	_, err := auth.Register(ctx, req)
	require.NoError(t, err)

	_, err = auth.Register(ctx, &models.RegisterRequest{Email: "A@X.COM", Name: "Alice", Password: "secret2"})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAuthService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	auth, _, _ := newTestAuthService(t)

	_, err := auth.Register(ctx, &models.RegisterRequest{Email: "a@x.com", Name: "Alice", Password: "secret1"})
	require.NoError(t, err)

	_, err = auth.Login(ctx, &models.LoginRequest{Email: "a@x.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = auth.Login(ctx, &models.LoginRequest{Email: "nobody@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_LoginRejectsProviderOnlyIdentity(t *testing.T) {
	ctx := context.Background()
	auth, store, _ := newTestAuthService(t)

	require.NoError(t, store.Create(ctx, &Identity{
		Email:        "g@x.com",
		DisplayName:  "G",
		Role:         RoleStaff,
		AuthProvider: ProviderGoogle,
	}))

	_, err := auth.Login(ctx, &models.LoginRequest{Email: "g@x.com", Password: ""})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthService_Refresh(t *testing.T) {
	ctx := context.Background()
	auth, _, _ := newTestAuthService(t)

	session, err := auth.Register(ctx, &models.RegisterRequest{Email: "a@x.com", Name: "Alice", Password: "secret1"})
	require.NoError(t, err)

	refreshed, err := auth.Refresh(ctx, session.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, session.Identity.ID, refreshed.Identity.ID)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEqual(t, session.RefreshToken, refreshed.RefreshToken)

	_, err = auth.Refresh(ctx, session.AccessToken)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = auth.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthService_Me(t *testing.T) {
	ctx := context.Background()
	auth, _, _ := newTestAuthService(t)

	session, err := auth.Register(ctx, &models.RegisterRequest{Email: "a@x.com", Name: "Alice", Password: "secret1"})
	require.NoError(t, err)

	identity, err := auth.Me(ctx, session.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", identity.DisplayName)

	public := identity.Public()
	assert.Equal(t, identity.Email, public.Email)

	_, err = auth.Me(ctx, "missing")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
