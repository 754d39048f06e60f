package handlers

import (
	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/middleware"
	"github.com/anjiri1684/skillcoin/models"
	"github.com/anjiri1684/skillcoin/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	teacherReviewsLimit = 20
	followListLimit     = 50
)

type CreateReviewRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	CourseID  string `json:"course_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment" validate:"max=5000"`
}

type FollowRequest struct {
	TeacherID string `json:"teacher_id" validate:"required"`
	Follow    *bool  `json:"follow" validate:"required"`
}

type ReviewView struct {
	models.Review
	StudentName   string `json:"student_name"`
	StudentAvatar string `json:"student_avatar"`
}

type FollowUser struct {
	ID          string      `json:"id"`
	DisplayName string      `json:"display_name"`
	Bio         string      `json:"bio"`
	Role        models.Role `json:"role"`
	Avatar      string      `json:"avatar"`
}

func (h *Handler) CreateReview(c *fiber.Ctx) error {
	const op = "ledger.createReview"
	var req CreateReviewRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}
	res, err := h.ledger.CreateReview(c.UserContext(), middleware.CallerID(c), ledger.ReviewInput{
		TeacherID: req.TeacherID,
		CourseID:  req.CourseID,
		Rating:    req.Rating,
		Comment:   req.Comment,
	})
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "reviewId": res.ReviewID, "review": res})
}

// GetTeacherReviews returns the newest reviews of a teacher with reviewer
// names.
func (h *Handler) GetTeacherReviews(c *fiber.Ctx) error {
	const op = "reviews.listForTeacher"
	var reviews []models.Review
	if err := h.db.WithContext(c.UserContext()).
		Where("teacher_id = ?", c.Params("teacherId")).
		Order("created_at DESC").
		Limit(teacherReviewsLimit).
		Find(&reviews).Error; err != nil {
		return h.fail(c, op, err)
	}

	ids := make([]string, len(reviews))
	for i, r := range reviews {
		ids[i] = r.StudentID
	}
	names, err := h.displayNames(c, ids)
	if err != nil {
		return h.fail(c, op, err)
	}
	views := make([]ReviewView, len(reviews))
	for i, r := range reviews {
		name := names[r.StudentID]
		if name == "" {
			name = "Anonymous"
		}
		views[i] = ReviewView{Review: r, StudentName: name, StudentAvatar: utils.Initials(names[r.StudentID], "S")}
	}
	return c.JSON(fiber.Map{"reviews": views})
}

func (h *Handler) ToggleFollowTeacher(c *fiber.Ctx) error {
	const op = "ledger.toggleFollowTeacher"
	var req FollowRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}
	res, err := h.ledger.ToggleFollowTeacher(c.UserContext(), middleware.CallerID(c), req.TeacherID, *req.Follow)
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true, "isFollowing": res.IsFollowing})
}

func (h *Handler) GetFollowStatus(c *fiber.Ctx) error {
	const op = "follows.status"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	var n int64
	if err := h.db.WithContext(c.UserContext()).Model(&models.Follow{}).
		Where("id = ?", models.FollowID(userID, c.Params("teacherId"))).
		Count(&n).Error; err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"isFollowing": n > 0})
}

// GetFollowList returns up to 50 followers (type=followers) or followed
// teachers (type=following, the default) of a user.
func (h *Handler) GetFollowList(c *fiber.Ctx) error {
	const op = "follows.list"
	if _, err := caller(c, op); err != nil {
		return h.fail(c, op, err)
	}
	userID := c.Params("userId")
	queryField, resultField := "student_id", "teacher_id"
	switch c.Query("type", "following") {
	case "following":
	case "followers":
		queryField, resultField = "teacher_id", "student_id"
	default:
		return h.fail(c, op, invalid(op, "type must be followers or following."))
	}

	var ids []string
	if err := h.db.WithContext(c.UserContext()).Model(&models.Follow{}).
		Where(queryField+" = ?", userID).
		Order("created_at DESC").
		Limit(followListLimit).
		Pluck(resultField, &ids).Error; err != nil {
		return h.fail(c, op, err)
	}

	users := []FollowUser{}
	if len(ids) > 0 {
		var rows []models.User
		if err := h.db.WithContext(c.UserContext()).Where("id IN ?", ids).Find(&rows).Error; err != nil {
			return h.fail(c, op, err)
		}
		byID := make(map[string]models.User, len(rows))
		for _, u := range rows {
			byID[u.ID] = u
		}
		for _, id := range ids {
			u, ok := byID[id]
			if !ok {
				continue
			}
			users = append(users, FollowUser{
				ID:          u.ID,
				DisplayName: u.DisplayName,
				Bio:         u.Bio,
				Role:        u.Role,
				Avatar:      utils.Initials(u.DisplayName, "U"),
			})
		}
	}
	return c.JSON(fiber.Map{"users": users})
}
