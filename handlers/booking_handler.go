package handlers

import (
	"time"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/middleware"
	"github.com/anjiri1684/skillcoin/models"
	"github.com/anjiri1684/skillcoin/utils"
	"github.com/gofiber/fiber/v2"
)

type CreateBookingRequest struct {
	TeacherID       string    `json:"teacher_id" validate:"required"`
	StartTime       time.Time `json:"start_time" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gte=0,lte=480"`
	PricePerHour    int64     `json:"price_per_hour" validate:"required,gt=0,lte=1000000"`
}

type UpdateBookingStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=completed cancelled"`
}

type BookingView struct {
	models.Booking
	StudentName   string `json:"student_name"`
	StudentAvatar string `json:"student_avatar"`
	TeacherName   string `json:"teacher_name"`
	TeacherAvatar string `json:"teacher_avatar"`
}

func (h *Handler) CreateBooking(c *fiber.Ctx) error {
	const op = "ledger.createBooking"
	var req CreateBookingRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}
	res, err := h.ledger.CreateBooking(c.UserContext(), middleware.CallerID(c), ledger.BookingInput{
		TeacherID:       req.TeacherID,
		StartTime:       req.StartTime,
		DurationMinutes: req.DurationMinutes,
		PricePerHour:    req.PricePerHour,
	})
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "booking": res})
}

func (h *Handler) UpdateBookingStatus(c *fiber.Ctx) error {
	const op = "ledger.updateBookingStatus"
	var req UpdateBookingStatusRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}
	res, err := h.ledger.UpdateBookingStatus(c.UserContext(), middleware.CallerID(c), c.Params("bookingId"), models.BookingStatus(req.Status))
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"success": true, "status": res.Status, "refunded": res.Refunded})
}

// GetUserBookings lists the caller's bookings as student (the default) or as
// teacher, with both participants' names and initials.
func (h *Handler) GetUserBookings(c *fiber.Ctx) error {
	const op = "bookings.list"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	field := "student_id"
	switch c.Query("role", string(models.RoleStudent)) {
	case string(models.RoleStudent):
	case string(models.RoleTeacher):
		field = "teacher_id"
	default:
		return h.fail(c, op, invalid(op, "role must be student or teacher."))
	}

	var bookings []models.Booking
	if err := h.db.WithContext(c.UserContext()).
		Where(field+" = ?", userID).
		Order("start_time DESC").
		Find(&bookings).Error; err != nil {
		return h.fail(c, op, err)
	}

	ids := make([]string, 0, len(bookings)*2)
	for _, b := range bookings {
		ids = append(ids, b.StudentID, b.TeacherID)
	}
	names, err := h.displayNames(c, ids)
	if err != nil {
		return h.fail(c, op, err)
	}

	views := make([]BookingView, len(bookings))
	for i, b := range bookings {
		views[i] = BookingView{
			Booking:       b,
			StudentName:   names[b.StudentID],
			StudentAvatar: utils.Initials(names[b.StudentID], "U"),
			TeacherName:   names[b.TeacherID],
			TeacherAvatar: utils.Initials(names[b.TeacherID], "T"),
		}
	}
	return c.JSON(fiber.Map{"bookings": views})
}

// displayNames resolves user ids to display names in one query.
func (h *Handler) displayNames(c *fiber.Ctx, ids []string) (map[string]string, error) {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := h.db.WithContext(c.UserContext()).
		Select("id", "display_name").
		Where("id IN ?", ids).
		Find(&users).Error; err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u.DisplayName
	}
	return out, nil
}
