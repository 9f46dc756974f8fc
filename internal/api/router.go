package api

import (
	"errors"

	"claimboard/internal/api/handlers"
	"claimboard/internal/api/middleware"
	"claimboard/internal/apperr"
	"claimboard/internal/logger"
	"claimboard/internal/models"
	"claimboard/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"
)

// Dependencies are the pieces NewApp wires into routes
type Dependencies struct {
	Auth          *handlers.AuthHandler
	Leaderboard   *handlers.LeaderboardHandler
	Authenticator middleware.Authenticator
	Hub           *websocket.Hub // optional
	CORSOrigin    string
	AccessLog     bool
}

// NewApp builds the Fiber application with middleware and routes
func NewApp(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Claimboard",
		ErrorHandler: ErrorHandler,
		BodyLimit:    16 * 1024 * 1024,
	})

	app.Use(recover.New())
	if deps.AccessLog {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Format:     "${time} | ${status} | ${latency} | ${method} ${path}\n",
			TimeFormat: "2006-01-02 15:04:05",
		}))
	}
	if deps.CORSOrigin != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     deps.CORSOrigin,
			AllowMethods:     "GET,POST,OPTIONS",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
			AllowCredentials: true,
		}))
	}

	gate := middleware.RequireAuth(deps.Authenticator)

	app.Post("/register", deps.Auth.Register)
	app.Post("/login", deps.Auth.Login)
	app.Post("/refresh_token", deps.Auth.RefreshToken)
	app.Post("/logout", gate, deps.Auth.Logout)

	app.Post("/addUser", gate, deps.Leaderboard.AddUser)
	app.Get("/getAllUsers", gate, deps.Leaderboard.GetAllUsers)
	app.Post("/claimPoints/:id", gate, deps.Leaderboard.ClaimPoints)
	app.Get("/getHistory/:id", gate, deps.Leaderboard.GetHistory)

	app.Get("/health", deps.Leaderboard.HealthCheck)

	if deps.Hub != nil {
		hub := deps.Hub
		app.Use("/ws", gate, func(c *fiber.Ctx) error {
			if fiberws.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", fiberws.New(func(c *fiberws.Conn) {
			websocket.ServeWS(hub, c)
		}))
	}

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Claimboard API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /register",
				"POST /login",
				"POST /refresh_token",
				"POST /logout",
				"POST /addUser",
				"GET /getAllUsers",
				"POST /claimPoints/:id",
				"GET /getHistory/:id",
				"GET /health",
				"WS /ws",
			},
		})
	})

	return app
}

// ErrorHandler renders every error as the uniform envelope. Causes of
// internal errors are logged, never sent.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal server error"

	var fiberErr *fiber.Error
	if appErr, ok := apperr.As(err); ok {
		code = appErr.StatusCode()
		message = appErr.Message
		if appErr.Kind == apperr.KindInternal {
			logger.Error("%s %s: %v", c.Method(), c.Path(), err)
		}
	} else if errors.As(err, &fiberErr) {
		code = fiberErr.Code
		message = fiberErr.Message
	} else {
		logger.Error("%s %s: unhandled error: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(models.ErrorResponse{
		StatusCode: code,
		Message:    message,
		Success:    false,
	})
}
