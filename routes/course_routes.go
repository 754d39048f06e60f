package routes

import (
	"github.com/anjiri1684/skillcoin/handlers"
	"github.com/anjiri1684/skillcoin/middleware"
	"github.com/gofiber/fiber/v2"
)

func CourseRoutes(api fiber.Router, h *handlers.Handler, cfg Config) {
	courses := api.Group("/courses")
	courses.Get("", h.GetAllCourses)
	courses.Get("/search", h.SearchCourses)
	courses.Get("/mine", cfg.protected(), h.ListMyCourses)
	courses.Get("/me", cfg.protected(), h.GetUserCourses)
	courses.Get("/video-upload-signature", cfg.protected(), middleware.TeacherRequired(), h.VideoUploadSignature)
	courses.Post("", cfg.protected(), middleware.TeacherRequired(), h.CreateCourse)

	courses.Get("/:courseId", h.GetCourse)
	courses.Patch("/:courseId/video", cfg.protected(), h.UpdateCourseVideo)
	courses.Get("/:courseId/video-url", cfg.protected(), h.GetVideoAccessURL)
	courses.Post("/:courseId/purchase", cfg.protected(), cfg.limit("purchase"), h.BuyCourse)
}
