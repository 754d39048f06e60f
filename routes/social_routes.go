package routes

import (
	"github.com/anjiri1684/skillcoin/handlers"
	"github.com/gofiber/fiber/v2"
)

func SocialRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	api.Post("/reviews", cfg.protected(), cfg.limit("review"), h.CreateReview)
	api.Get("/teachers", cfg.protected(), h.ListTeachers)
	api.Get("/teachers/:teacherId/reviews", cfg.protected(), h.GetTeacherReviews)

	follows := api.Group("/follows", cfg.protected())
	follows.Post("", cfg.limit("follow"), h.ToggleFollowTeacher)
	follows.Get("/:teacherId", h.GetFollowStatus)
}
