package routes

import (
	"github.com/anjiri1684/skillcoin/handlers"
	"github.com/gofiber/fiber/v2"
)

func AuthRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	auth := api.Group("/auth")
	auth.Post("/register", h.RegisterUser)
	auth.Post("/login", h.LoginUser)
	auth.Post("/logout", cfg.protected(), h.LogoutUser)
}
