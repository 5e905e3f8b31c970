package services_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos_ledger_backend/internal/repositories/memory"
	"pos_ledger_backend/internal/services"
	"pos_ledger_backend/pkg/utils"
)

func newAuthService(t *testing.T) services.AuthService {
	t.Helper()
	utils.InitJWT("test-only-secret")
	return services.NewAuthService(memory.NewStore().AuthRepo())
}

func TestRegisterAndLogin(t *testing.T) {
	auth := newAuthService(t)

	user, err := auth.Register(services.RegisterRequest{
		Username: "manager",
		Password: "correct-horse-battery",
		Role:     "Admin",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Empty(t, user.PasswordHash, "hash never leaves the service")

	resp, err := auth.Login("manager", "correct-horse-battery")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "manager", resp.User.Username)

	claims, err := utils.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, "Admin", claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	auth := newAuthService(t)

	_, err := auth.Register(services.RegisterRequest{Username: "manager", Password: "correct-horse-battery"})
	require.NoError(t, err)

	_, err = auth.Login("manager", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)

	_, err = auth.Login("nobody", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	auth := newAuthService(t)

	_, err := auth.Register(services.RegisterRequest{Username: "manager", Password: "correct-horse-battery"})
	require.NoError(t, err)

	_, err = auth.Register(services.RegisterRequest{Username: "manager", Password: "another-password"})
	assert.ErrorIs(t, err, services.ErrUsernameTaken)
}

func TestRefresh_IssuesNewPair(t *testing.T) {
	auth := newAuthService(t)

	_, err := auth.Register(services.RegisterRequest{Username: "manager", Password: "correct-horse-battery"})
	require.NoError(t, err)
	resp, err := auth.Login("manager", "correct-horse-battery")
	require.NoError(t, err)

	refreshed, err := auth.Refresh(resp.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, resp.User.ID, refreshed.User.ID)

	_, err = auth.Refresh("not-a-token")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}
