package client

import (
	"context"
	"net/http"

	"recipebox/internal/models"
	"recipebox/internal/session"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// SignUp creates an account and signs in with it.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) (*models.Session, error) {
	var s models.Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/signup", credentials{Email: email, Password: password, FullName: fullName}, &s); err != nil {
		return nil, err
	}
	c.session.Set(session.SignedIn, &s)
	return &s, nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*models.Session, error) {
	var s models.Session
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", credentials{Email: email, Password: password}, &s); err != nil {
		return nil, err
	}
	c.session.Set(session.SignedIn, &s)
	return &s, nil
}

// RestoreSession adopts a previously issued token after checking it with the
// server.
func (c *Client) RestoreSession(ctx context.Context, token string) (*models.Session, error) {
	var s models.Session
	if err := c.send(ctx, request{method: http.MethodGet, path: "/auth/session", token: token}, &s); err != nil {
		return nil, err
	}
	c.session.Set(session.InitialSession, &s)
	return &s, nil
}

// SignOut revokes the token on the server. The local session is cleared even
// when the server call fails; an already revoked token is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	if c.session.Token() == "" {
		return nil
	}
	err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil)
	c.session.Set(session.SignedOut, nil)
	if IsCode(err, models.CodeUnauthorized) {
		return nil
	}
	return err
}

// RequestPasswordReset asks for a reset link. The server answers the same
// way whether or not the account exists.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/recover", map[string]string{"email": email}, nil)
}

// ResetPassword consumes a reset token and announces PasswordRecovery to
// session subscribers. The current session, if any, is kept.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	if err := c.doJSON(ctx, http.MethodPost, "/auth/reset", map[string]string{"token": token, "password": password}, nil); err != nil {
		return err
	}
	c.session.Set(session.PasswordRecovery, c.session.Current())
	return nil
}

// UpdatePassword changes the signed-in user's password.
func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	if err := c.doJSON(ctx, http.MethodPut, "/auth/user", map[string]string{"password": password}, nil); err != nil {
		return err
	}
	c.session.Set(session.UserUpdated, c.session.Current())
	return nil
}
