package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/models"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/service"
	"github.com/geniussoftwarecore/AllajnahEnhancedverion2-sub000/internal/utils"
)

func TestRegisterCreatesTrader(t *testing.T) {
	store := newMemStore()
	auth := service.NewAuthService(store.Users(), "secret")

	u, err := auth.Register(context.Background(), "  Trader@Example.COM ", "Trader One", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "trader@example.com", u.Email)
	assert.Equal(t, models.RoleTrader, u.Role)
	assert.True(t, u.Active)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	store := newMemStore()
	auth := service.NewAuthService(store.Users(), "secret")

	_, err := auth.Register(context.Background(), "t@example.com", "T", "short")
	assert.Error(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newMemStore()
	auth := service.NewAuthService(store.Users(), "secret")

	_, err := auth.Register(context.Background(), "t@example.com", "First", "hunter2hunter2")
	require.NoError(t, err)

	_, err = auth.Register(context.Background(), "T@example.com", "Second", "hunter2hunter2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestCreateMemberRequiresValidRole(t *testing.T) {
	store := newMemStore()
	auth := service.NewAuthService(store.Users(), "secret")

	_, err := auth.CreateMember(context.Background(), "hc@example.com", "HC", "hunter2hunter2", models.Role("admin"))
	assert.Error(t, err)

	u, err := auth.CreateMember(context.Background(), "hc@example.com", "HC", "hunter2hunter2", models.RoleHigherCommittee)
	require.NoError(t, err)
	assert.Equal(t, models.RoleHigherCommittee, u.Role)
}

func TestLoginRoundTrip(t *testing.T) {
	store := newMemStore()
	auth := service.NewAuthService(store.Users(), "secret")

	_, err := auth.Register(context.Background(), "t@example.com", "T", "hunter2hunter2")
	require.NoError(t, err)

	tok, u, err := auth.Login(context.Background(), "t@example.com", "hunter2hunter2")
	require.NoError(t, err)
	require.NotNil(t, u)

	claims, err := utils.ParseJWT("secret", tok)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)
	assert.Equal(t, string(models.RoleTrader), claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	store := newMemStore()
	auth := service.NewAuthService(store.Users(), "secret")

	_, err := auth.Register(context.Background(), "t@example.com", "T", "hunter2hunter2")
	require.NoError(t, err)

	_, _, err = auth.Login(context.Background(), "t@example.com", "wrong-password")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}

func TestLoginUnknownOrInactive(t *testing.T) {
	store := newMemStore()
	auth := service.NewAuthService(store.Users(), "secret")

	_, _, err := auth.Login(context.Background(), "nobody@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)

	u, err := auth.Register(context.Background(), "t@example.com", "T", "hunter2hunter2")
	require.NoError(t, err)
	_, err = store.Users().SetActive(context.Background(), u.ID, false)
	require.NoError(t, err)

	_, _, err = auth.Login(context.Background(), "t@example.com", "hunter2hunter2")
	assert.ErrorIs(t, err, service.ErrInvalidCredentials)
}
