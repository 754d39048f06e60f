package routes

import (
	"github.com/anjiri1684/skillcoin/handlers"
	"github.com/gofiber/fiber/v2"
)

func ProfileRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	profile := api.Group("/profile", cfg.protected())
	profile.Get("/me", h.GetMyProfile)
	profile.Patch("/me", h.UpdateProfile)
	profile.Post("/skills", h.AddUserSkill)
	profile.Delete("/skills", h.RemoveUserSkill)

	users := api.Group("/users", cfg.protected())
	users.Get("/:userId", h.GetUserProfile)
	users.Get("/:userId/follows", h.GetFollowList)

	api.Get("/coins/history", cfg.protected(), h.GetCoinHistory)
}
