package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sorteos-backend/internal/common/auth"
	apperrors "sorteos-backend/internal/common/errors"
	"sorteos-backend/internal/features/user/models"
	"sorteos-backend/internal/features/user/repository/sqlstore"
	"sorteos-backend/internal/testutil"
)

func newService(t *testing.T) (UserService, *auth.TokenManager) {
	t.Helper()
	tokens := auth.NewTokenManager("0123456789abcdef", time.Hour)
	return NewUserService(sqlstore.NewUserRepository(testutil.NewDB(t)), tokens), tokens
}

func requireCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code, appErr.Message)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	svc, tokens := newService(t)

	res, err := svc.Register(ctx, models.RegisterRequest{Name: " Ana ", Email: "Ana@Example.com", Password: "secreto1"})
	require.NoError(t, err)
	assert.Equal(t, "Ana", res.User.Name)
	assert.Equal(t, "ana@example.com", res.User.Email)
	assert.Equal(t, models.RoleUser, res.User.Role)

	principal, err := tokens.Parse(res.Token)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, principal.UserID)
	assert.Equal(t, auth.RoleUser, principal.Role)

	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Otra", Email: "ana@example.com", Password: "secreto1"})
	requireCode(t, err, apperrors.ErrCodeEmailTaken)

	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Corta", Email: "c@example.com", Password: "123"})
	requireCode(t, err, apperrors.ErrCodeValidation)

	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Mala", Email: "not-an-email", Password: "secreto1"})
	requireCode(t, err, apperrors.ErrCodeValidation)

	login, err := svc.Login(ctx, models.LoginRequest{Email: "ANA@example.com", Password: "secreto1"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "ana@example.com", Password: "wrong-one"})
	requireCode(t, err, apperrors.ErrCodeInvalidCredentials)

	_, err = svc.Login(ctx, models.LoginRequest{Email: "nobody@example.com", Password: "secreto1"})
	requireCode(t, err, apperrors.ErrCodeInvalidCredentials)
}

func TestProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	ana, err := svc.Register(ctx, models.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secreto1"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, models.RegisterRequest{Name: "Beto", Email: "beto@example.com", Password: "secreto1"})
	require.NoError(t, err)

	taken := "beto@example.com"
	_, err = svc.UpdateProfile(ctx, ana.User.ID, models.UpdateProfileRequest{Name: "Ana", Email: &taken})
	requireCode(t, err, apperrors.ErrCodeEmailTaken)

	updated, err := svc.UpdateProfile(ctx, ana.User.ID, models.UpdateProfileRequest{Name: "Ana María", Phone: "+56 9 1111 2222"})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", updated.Name)
	assert.Equal(t, "ana@example.com", updated.Email)
	assert.Equal(t, "+56 9 1111 2222", updated.Phone)

	err = svc.ChangePassword(ctx, ana.User.ID, models.ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "nuevo123"})
	requireCode(t, err, apperrors.ErrCodeInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, ana.User.ID, models.ChangePasswordRequest{CurrentPassword: "secreto1", NewPassword: "nuevo123"}))
	_, err = svc.Login(ctx, models.LoginRequest{Email: "ana@example.com", Password: "nuevo123"})
	require.NoError(t, err)
}

func TestUpdateRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	admin, err := svc.CreateUser(ctx, models.RegisterRequest{Name: "Admin", Email: "admin@example.com", Password: "secreto1"}, models.RoleAdmin)
	require.NoError(t, err)
	user, err := svc.Register(ctx, models.RegisterRequest{Name: "Ana", Email: "ana@example.com", Password: "secreto1"})
	require.NoError(t, err)

	adminP := auth.Principal{UserID: admin.ID, Role: auth.RoleAdmin}
	userP := auth.Principal{UserID: user.User.ID, Role: auth.RoleUser}

	_, err = svc.UpdateRole(ctx, userP, user.User.ID, models.RoleAdmin)
	requireCode(t, err, apperrors.ErrCodeForbidden)

	_, err = svc.UpdateRole(ctx, adminP, user.User.ID, "superuser")
	requireCode(t, err, apperrors.ErrCodeValidation)

	_, err = svc.UpdateRole(ctx, adminP, admin.ID, models.RoleUser)
	requireCode(t, err, apperrors.ErrCodeValidation)

	_, err = svc.UpdateRole(ctx, adminP, 424242, models.RoleAdmin)
	requireCode(t, err, apperrors.ErrCodeNotFound)

	promoted, err := svc.UpdateRole(ctx, adminP, user.User.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	users, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}
