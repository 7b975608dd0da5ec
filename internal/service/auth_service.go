package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"recipebox/internal/auth"
	"recipebox/internal/middleware"
	"recipebox/internal/models"
	"recipebox/internal/repository"
	"recipebox/internal/validation"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

const (
	// ResetTokenTTL is how long a password-reset link stays usable.
	ResetTokenTTL = time.Hour

	resetKeyPrefix = "pwreset:"
	tokenType      = "bearer"
)

// ResetKey is the Redis key holding the user id for a reset token.
func ResetKey(token string) string {
	return resetKeyPrefix + token
}

type AuthService struct {
	userRepo repository.UserRepository
	rdb      *redis.Client
	secret   string
	baseURL  string
	now      func() time.Time
}

type SignUpInput struct {
	Email    string
	Password string
	FullName string
}

// NewAuthService wires account management. rdb backs token revocation and
// password resets; baseURL prefixes the logged reset links.
func NewAuthService(userRepo repository.UserRepository, rdb *redis.Client, secret, baseURL string) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		rdb:      rdb,
		secret:   secret,
		baseURL:  strings.TrimRight(baseURL, "/"),
		now:      time.Now,
	}
}

// SignUp creates the user and its profile and returns a fresh session.
func (s *AuthService) SignUp(ctx context.Context, in SignUpInput) (*models.Session, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}
	if err := validation.ValidateEmail(email); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{Email: email, Password: string(hashed)}
	profile := &models.Profile{Email: email}
	if name := strings.TrimSpace(in.FullName); name != "" {
		profile.FullName = &name
	}
	if err := s.userRepo.CreateWithProfile(ctx, user, profile); err != nil {
		return nil, translateError(err, "User", email)
	}

	middleware.Logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return s.issue(user)
}

// SignIn checks the password and returns a fresh session.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	email = validation.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, models.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}
	return s.issue(user)
}

// SignOut revokes the token the claims came from.
func (s *AuthService) SignOut(ctx context.Context, claims *auth.Claims) error {
	if err := auth.Revoke(ctx, s.rdb, claims); err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// Session describes the session behind a verified token. A token whose user
// no longer exists is rejected.
func (s *AuthService) Session(ctx context.Context, token string, claims *auth.Claims) (*models.Session, error) {
	if claims == nil {
		return nil, models.NewUnauthorizedError("Not signed in")
	}
	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		return nil, models.NewUnauthorizedError("Session user no longer exists")
	}
	session := &models.Session{
		AccessToken: token,
		TokenType:   tokenType,
		User:        models.SessionUser{ID: user.ID, Email: user.Email},
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session, nil
}

// RequestPasswordReset stores a single-use reset token for the account and
// logs the reset link. Unknown addresses succeed silently.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = validation.NormalizeEmail(email)
	if err := validation.ValidateEmail(email); err != nil {
		return models.NewValidationError(err.Error())
	}
	if s.rdb == nil {
		return models.NewInternalError(errors.New("password reset requires redis"))
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return models.NewInternalError(err)
	}
	if user == nil {
		middleware.Logger.InfoContext(ctx, "password reset requested for unknown email")
		return nil
	}

	token, err := randomToken()
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.rdb.Set(ctx, ResetKey(token), user.ID, ResetTokenTTL).Err(); err != nil {
		return models.NewInternalError(err)
	}

	middleware.Logger.InfoContext(ctx, "password reset link issued",
		"user_id", user.ID,
		"link", s.baseURL+"/reset-password?token="+token,
	)
	return nil
}

// ResetPassword consumes a reset token and sets the new password.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" {
		return models.NewValidationError("Reset token is required")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewValidationError(err.Error())
	}
	if s.rdb == nil {
		return models.NewInternalError(errors.New("password reset requires redis"))
	}

	userID, err := s.rdb.GetDel(ctx, ResetKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return models.NewValidationError("Invalid or expired reset token")
	}
	if err != nil {
		return models.NewInternalError(err)
	}
	return s.UpdatePassword(ctx, userID, password)
}

// UpdatePassword sets a new password for the user.
func (s *AuthService) UpdatePassword(ctx context.Context, userID, password string) error {
	if userID == "" {
		return models.NewUnauthorizedError("Not signed in")
	}
	if err := validation.ValidatePassword(password); err != nil {
		return models.NewValidationError(err.Error())
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return models.NewInternalError(err)
	}
	if err := s.userRepo.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		return translateError(err, "User", userID)
	}
	middleware.Logger.InfoContext(ctx, "password updated", "user_id", userID)
	return nil
}

func (s *AuthService) issue(user *models.User) (*models.Session, error) {
	token, claims, err := auth.IssueToken(s.secret, user.ID, user.Email, s.now())
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &models.Session{
		AccessToken: token,
		TokenType:   tokenType,
		ExpiresAt:   claims.ExpiresAt.Time,
		User:        models.SessionUser{ID: user.ID, Email: user.Email},
	}, nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
