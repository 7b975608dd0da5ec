package service

import (
	"context"
	"strings"
	"testing"

	"recipebox/internal/auth"
	"recipebox/internal/models"
	"recipebox/internal/repository"
	"recipebox/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "test-secret-that-is-long-enough-123"

func newAuthFixture(t *testing.T) (*AuthService, *gorm.DB, *miniredis.Miniredis) {
	t.Helper()
	db := testutil.NewTestDB(t)
	mr, rdb := testutil.NewTestRedis(t)
	return NewAuthService(repository.NewUserRepository(db), rdb, testSecret, "http://localhost:8080/"), db, mr
}

func TestAuthService_SignUp(t *testing.T) {
	svc, db, _ := newAuthFixture(t)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, SignUpInput{Email: " Ada@Example.com ", Password: "secret1", FullName: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", session.User.Email)
	assert.Equal(t, "bearer", session.TokenType)

	claims, err := auth.ParseToken(testSecret, session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.Subject)

	var profile models.Profile
	require.NoError(t, db.Where("id = ?", session.User.ID).First(&profile).Error)
	assert.Equal(t, "Ada", profile.DisplayName())

	tests := []struct {
		name string
		in   SignUpInput
		code string
	}{
		{"duplicate email", SignUpInput{Email: "ada@example.com", Password: "secret1"}, models.CodeConflict},
		{"short password", SignUpInput{Email: "new@example.com", Password: "12345"}, models.CodeValidation},
		{"bad email", SignUpInput{Email: "nope", Password: "secret1"}, models.CodeValidation},
		{"missing fields", SignUpInput{}, models.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SignUp(ctx, tt.in)
			assertAppError(t, err, tt.code)
		})
	}
}

func TestAuthService_SignInAndOut(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "ada@example.com", "wrong-password")
	assertAppError(t, err, models.CodeUnauthorized)

	_, err = svc.SignIn(ctx, "ghost@example.com", "secret1")
	assertAppError(t, err, models.CodeUnauthorized)

	session, err := svc.SignIn(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)

	claims, err := auth.ParseToken(testSecret, session.AccessToken)
	require.NoError(t, err)

	current, err := svc.Session(ctx, session.AccessToken, claims)
	require.NoError(t, err)
	assert.Equal(t, session.User, current.User)

	require.NoError(t, svc.SignOut(ctx, claims))
	revoked, err := auth.IsRevoked(ctx, svc.rdb, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestAuthService_PasswordReset(t *testing.T) {
	svc, _, mr := newAuthFixture(t)
	ctx := context.Background()

	_, err := svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.RequestPasswordReset(ctx, "ghost@example.com"))
	assert.Empty(t, mr.Keys(), "unknown email stores nothing")

	require.NoError(t, svc.RequestPasswordReset(ctx, "ada@example.com"))
	keys := mr.Keys()
	require.Len(t, keys, 1)
	token := strings.TrimPrefix(keys[0], "pwreset:")
	assert.Equal(t, ResetTokenTTL, mr.TTL(keys[0]))

	err = svc.ResetPassword(ctx, token, "123")
	assertAppError(t, err, models.CodeValidation)
	assert.True(t, mr.Exists(keys[0]), "a rejected password keeps the token")

	require.NoError(t, svc.ResetPassword(ctx, token, "new-secret"))

	err = svc.ResetPassword(ctx, token, "another-secret")
	assertAppError(t, err, models.CodeValidation)

	_, err = svc.SignIn(ctx, "ada@example.com", "new-secret")
	assert.NoError(t, err)
}

func TestAuthService_UpdatePassword(t *testing.T) {
	svc, _, _ := newAuthFixture(t)
	ctx := context.Background()

	session, err := svc.SignUp(ctx, SignUpInput{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)

	assertAppError(t, svc.UpdatePassword(ctx, session.User.ID, "abc"), models.CodeValidation)
	assertAppError(t, svc.UpdatePassword(ctx, "missing-user", "secret2"), models.CodeNotFound)
	require.NoError(t, svc.UpdatePassword(ctx, session.User.ID, "secret2"))

	_, err = svc.SignIn(ctx, "ada@example.com", "secret2")
	assert.NoError(t, err)
}
