package routes

import (
	"time"

	"github.com/anjiri1684/skillcoin/handlers"
	"github.com/anjiri1684/skillcoin/middleware"
	fiberws "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type Config struct {
	JWTSecret string
	// Limiter guards the coin-moving routes. Nil disables limiting.
	Limiter *middleware.RateLimiter
}

func (cfg Config) protected() fiber.Handler {
	return middleware.Protected(cfg.JWTSecret)
}

func (cfg Config) limit(name string) fiber.Handler {
	return cfg.Limiter.Limit(name, 30, time.Minute)
}

func Setup(app *fiber.App, h *handlers.Handler, cfg Config) {
	api := app.Group("/api/v1")

	AuthRoutes(api, h, cfg)
	ProfileRoutes(api, h, cfg)
	CourseRoutes(api, h, cfg)
	BookingRoutes(api, h, cfg)
	SocialRoutes(api, h, cfg)

	app.Get("/ws", middleware.ProtectedQuery(cfg.JWTSecret), h.UpgradeCheck, fiberws.New(h.ServeWs))
}
