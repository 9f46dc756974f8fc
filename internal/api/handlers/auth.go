package handlers

import (
	"time"

	"claimboard/internal/api/middleware"
	"claimboard/internal/apperr"
	"claimboard/internal/auth"
	"claimboard/internal/models"
	"claimboard/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
)

// RefreshTokenCookie carries the refresh token between client and server
const RefreshTokenCookie = "refreshToken"

// CookieOptions controls the attributes shared by both token cookies
type CookieOptions struct {
	Secure bool
}

// AuthHandler handles registration, login, token refresh and logout
type AuthHandler struct {
	service   *service.AuthService
	validator *validator.Validate
	cookies   CookieOptions
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(service *service.AuthService, cookies CookieOptions) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: validator.New(),
		cookies:   cookies,
	}
}

// Register handles POST /register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req models.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationError(err)
	}

	account, err := h.service.Register(c.UserContext(), req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(models.NewAPIResponse(fiber.StatusCreated, account, "User registered successfully"))
}

// Login handles POST /login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req models.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return apperr.Validation("All fields are required")
	}

	result, err := h.service.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, result.Tokens)

	return c.Status(fiber.StatusOK).JSON(models.NewAPIResponse(fiber.StatusOK, models.LoginResponse{
		LoggedInUser: result.Account,
		AccessToken:  result.Tokens.AccessToken,
	}, "User logged in successfully"))
}

// RefreshToken handles POST /refresh_token
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	token := utils.CopyString(c.Cookies(RefreshTokenCookie))
	if token == "" && len(c.Body()) > 0 {
		var req models.RefreshRequest
		if err := c.BodyParser(&req); err == nil {
			token = req.RefreshToken
		}
	}

	tokens, err := h.service.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}

	h.setTokenCookies(c, *tokens)

	return c.Status(fiber.StatusOK).JSON(models.NewAPIResponse(fiber.StatusOK, models.TokenResponse{
		AccessToken: tokens.AccessToken,
	}, "Access token refreshed"))
}

// Logout handles POST /logout; runs behind the auth gate
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	account, err := middleware.CurrentAccount(c)
	if err != nil {
		return err
	}

	if err := h.service.Logout(c.UserContext(), account.ID); err != nil {
		return err
	}

	h.clearTokenCookies(c)

	return c.Status(fiber.StatusOK).JSON(models.NewAPIResponse(fiber.StatusOK, fiber.Map{}, "User logged out"))
}

func (h *AuthHandler) setTokenCookies(c *fiber.Ctx, tokens auth.TokenPair) {
	c.Cookie(h.cookie(middleware.AccessTokenCookie, tokens.AccessToken, h.service.AccessTTL()))
	c.Cookie(h.cookie(RefreshTokenCookie, tokens.RefreshToken, h.service.RefreshTTL()))
}

func (h *AuthHandler) clearTokenCookies(c *fiber.Ctx) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		cookie := h.cookie(name, "", 0)
		cookie.Expires = time.Unix(0, 0)
		c.Cookie(cookie)
	}
}

func (h *AuthHandler) cookie(name, value string, maxAge time.Duration) *fiber.Cookie {
	return &fiber.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(maxAge / time.Second),
		HTTPOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: fiber.CookieSameSiteNoneMode,
	}
}
