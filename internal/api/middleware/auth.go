package middleware

import (
	"context"
	"strings"

	"claimboard/internal/apperr"
	"claimboard/internal/logger"
	"claimboard/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// AccessTokenCookie is the cookie the gate reads first
const AccessTokenCookie = "accessToken"

type accountKey struct{}

// Authenticator resolves an access token to an account.
// *service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*models.Account, error)
}

// RequireAuth rejects the request with 401 unless it carries a valid
// access token for an existing account. On success the account is
// available to handlers through CurrentAccount.
func RequireAuth(authenticator Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ExtractToken(c)
		if token == "" {
			return apperr.Unauthorized("Unauthorized request. No token provided.", nil)
		}

		account, err := authenticator.Authenticate(c.UserContext(), token)
		if err != nil {
			logger.Warning("Authentication failed for %s %s: %v", c.Method(), c.Path(), err)
			return apperr.Unauthorized("Invalid access token", err)
		}

		c.Locals(accountKey{}, account)
		return c.Next()
	}
}

// ExtractToken reads the access token from the cookie, falling back to
// an "Authorization: Bearer <token>" header
func ExtractToken(c *fiber.Ctx) string {
	if token := c.Cookies(AccessTokenCookie); token != "" {
		return utils.CopyString(token)
	}

	header := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return utils.CopyString(strings.TrimSpace(header[7:]))
	}
	return ""
}

// CurrentAccount returns the account bound by RequireAuth
func CurrentAccount(c *fiber.Ctx) (*models.Account, error) {
	account, ok := c.Locals(accountKey{}).(*models.Account)
	if !ok || account == nil {
		return nil, apperr.Unauthorized("Unauthorized request", nil)
	}
	return account, nil
}
