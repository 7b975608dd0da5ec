// Package middleware provides authentication, logging, tracing and rate
// limiting middleware for the HTTP server.
package middleware

import (
	"context"
	"net/url"
	"strings"

	"recipebox/internal/auth"
	"recipebox/internal/config"
	"recipebox/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

var (
	cfg *config.Config
	rdb *redis.Client
)

// InitMiddleware initializes authentication middleware with the given config
// and the Redis client holding the token blacklist (may be nil).
func InitMiddleware(c *config.Config, client *redis.Client) {
	cfg = c
	rdb = client
}

// TokenFromRequest looks for a token in the Authorization header, the session
// cookie, then the token query parameter.
func TokenFromRequest(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	if cookie := c.Cookies(auth.SessionCookie); cookie != "" {
		return cookie
	}
	return c.Query("token")
}

// authenticate validates the request's token and stores the user in locals.
func authenticate(c *fiber.Ctx) (*auth.Claims, error) {
	token := TokenFromRequest(c)
	if token == "" {
		return nil, models.NewUnauthorizedError("Authorization required")
	}
	if cfg == nil {
		return nil, models.NewUnauthorizedError("Authentication is not configured")
	}

	claims, err := auth.ParseToken(cfg.JWTSecret, token)
	if err != nil {
		return nil, models.NewUnauthorizedError("Invalid or expired token")
	}

	revoked, err := auth.IsRevoked(c.UserContext(), rdb, claims.ID)
	if err != nil {
		Logger.WarnContext(c.UserContext(), "token blacklist lookup failed", "error", err)
	}
	if revoked {
		return nil, models.NewUnauthorizedError("Token has been revoked")
	}

	c.Locals("userID", claims.Subject)
	c.Locals("userEmail", claims.Email)
	c.Locals("claims", claims)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, claims.Subject))
	return claims, nil
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	if _, err := authenticate(c); err != nil {
		return models.RespondWithError(c, fiber.StatusUnauthorized, err)
	}
	return c.Next()
}

// AuthOptional authenticates the request when a token is present and lets
// anonymous requests through.
func AuthOptional(c *fiber.Ctx) error {
	if TokenFromRequest(c) != "" {
		_, _ = authenticate(c)
	}
	return c.Next()
}

// PageAuthRequired redirects anonymous visitors of a page to the login page.
func PageAuthRequired(c *fiber.Ctx) error {
	if _, err := authenticate(c); err != nil {
		return c.Redirect("/login?next=" + url.QueryEscape(c.OriginalURL()))
	}
	return c.Next()
}

// UserID returns the authenticated user id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals("userID").(string)
	return uid
}

// Claims returns the verified token claims of the request, if any.
func Claims(c *fiber.Ctx) *auth.Claims {
	claims, _ := c.Locals("claims").(*auth.Claims)
	return claims
}
