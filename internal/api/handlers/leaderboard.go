package handlers

import (
	"errors"

	"claimboard/internal/api/middleware"
	"claimboard/internal/apperr"
	"claimboard/internal/logger"
	"claimboard/internal/models"
	"claimboard/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// LeaderboardHandler handles HTTP requests for the leaderboard
type LeaderboardHandler struct {
	service   *service.LeaderboardService
	health    *service.HealthService
	validator *validator.Validate
}

// NewLeaderboardHandler creates a new leaderboard handler
func NewLeaderboardHandler(service *service.LeaderboardService, health *service.HealthService) *LeaderboardHandler {
	return &LeaderboardHandler{
		service:   service,
		health:    health,
		validator: validator.New(),
	}
}

// AddUser handles POST /addUser
// @Summary Add leaderboard entry
// @Accept json
// @Produce json
// @Param request body models.AddEntryRequest true "Entry to create"
// @Success 200 {object} models.APIResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /addUser [post]
func (h *LeaderboardHandler) AddUser(c *fiber.Ctx) error {
	var req models.AddEntryRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.Validation("Invalid request body")
	}
	if err := h.validator.Struct(&req); err != nil {
		return validationError(err)
	}

	entry, err := h.service.AddEntry(c.UserContext(), req.Name)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(models.NewAPIResponse(fiber.StatusOK, entry, "Leaderboard user created"))
}

// GetAllUsers handles GET /getAllUsers
// @Summary Ranked leaderboard
// @Produce json
// @Success 200 {object} models.APIResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /getAllUsers [get]
func (h *LeaderboardHandler) GetAllUsers(c *fiber.Ctx) error {
	entries, err := h.service.ListEntries(c.UserContext())
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(models.NewAPIResponse(fiber.StatusOK, entries, "Ranked users"))
}

// ClaimPoints handles POST /claimPoints/:id
// @Summary Award random points to an entry
// @Produce json
// @Param id path string true "Leaderboard entry id"
// @Success 200 {object} models.APIResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /claimPoints/{id} [post]
func (h *LeaderboardHandler) ClaimPoints(c *fiber.Ctx) error {
	account, err := middleware.CurrentAccount(c)
	if err != nil {
		return err
	}

	target, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.NotFound("No user found")
	}

	result, err := h.service.ClaimPoints(c.UserContext(), account.ID, target)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(models.NewAPIResponse(fiber.StatusOK, result, "Points claimed successfully"))
}

// GetHistory handles GET /getHistory/:id
// @Summary Claim history for an entry or an account
// @Produce json
// @Param id path string true "Entry or account id"
// @Success 200 {object} models.APIResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /getHistory/{id} [get]
func (h *LeaderboardHandler) GetHistory(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return apperr.NotFound("No history found")
	}

	claims, err := h.service.History(c.UserContext(), id)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusOK).JSON(models.NewAPIResponse(fiber.StatusOK, claims, "Claim history"))
}

// HealthCheck handles GET /health
// @Summary Health check
// @Description Checks the health of the service and its dependencies
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 503 {object} models.ErrorResponse
// @Router /health [get]
func (h *LeaderboardHandler) HealthCheck(c *fiber.Ctx) error {
	if err := h.health.Check(c.UserContext()); err != nil {
		logger.Error("Health check failed: %v", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse{
			StatusCode: fiber.StatusServiceUnavailable,
			Message:    "Service unavailable",
			Success:    false,
		})
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"status":  "healthy",
		"message": "All systems operational",
	})
}

// validationError turns validator output into a client message
func validationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return apperr.Validation("Invalid request body")
	}
	for _, fe := range validationErrors {
		switch fe.Tag() {
		case "required":
			return apperr.Validation("All fields are required")
		case "email":
			return apperr.Validation("Invalid email address")
		case "max":
			return apperr.Validation(fe.Field() + " is too long")
		}
	}
	return apperr.Validation(validationErrors.Error())
}
