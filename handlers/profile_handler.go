package handlers

import (
	"strings"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UpdateProfileRequest struct {
	DisplayName  *string `json:"display_name" validate:"omitempty,min=2"`
	Bio          *string `json:"bio" validate:"omitempty,max=2000"`
	PricePerHour *int64  `json:"price_per_hour" validate:"omitempty,lte=1000000"`
}

type SkillRequest struct {
	Skill string `json:"skill"`
}

func (h *Handler) loadUser(c *fiber.Ctx, op, id string) (*models.User, error) {
	var user models.User
	res := h.db.WithContext(c.UserContext()).Where("id = ?", id).Limit(1).Find(&user)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ledger.NewError(ledger.KindNotFound, op, "User not found.")
	}
	return &user, nil
}

func (h *Handler) GetMyProfile(c *fiber.Ctx) error {
	const op = "profile.get"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	user, err := h.loadUser(c, op, userID)
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(user)
}

func (h *Handler) GetUserProfile(c *fiber.Ctx) error {
	const op = "profile.getUser"
	user, err := h.loadUser(c, op, c.Params("userId"))
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(user)
}

// UpdateProfile changes the display name, bio and, for teachers, the hourly
// price quoted to new bookings.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	const op = "profile.update"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	var req UpdateProfileRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}
	if req.PricePerHour != nil && (*req.PricePerHour <= 0 || *req.PricePerHour > models.MaxPricePerHour) {
		return h.fail(c, op, invalid(op, "pricePerHour must be between 1 and 1000000."))
	}

	var user models.User
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).Limit(1).Find(&user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.NewError(ledger.KindNotFound, op, "User not found.")
		}

		updates := map[string]interface{}{}
		if req.DisplayName != nil {
			updates["display_name"] = strings.TrimSpace(*req.DisplayName)
		}
		if req.Bio != nil {
			updates["bio"] = strings.TrimSpace(*req.Bio)
		}
		if req.PricePerHour != nil {
			if !user.IsTeacher() {
				return ledger.NewError(ledger.KindPermissionDenied, op, "Only teachers can set an hourly price.")
			}
			updates["price_per_hour"] = *req.PricePerHour
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", userID).First(&user).Error
	})
	if err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(user)
}

func (h *Handler) AddUserSkill(c *fiber.Ctx) error {
	return h.changeSkill(c, "profile.addSkill", true)
}

func (h *Handler) RemoveUserSkill(c *fiber.Ctx) error {
	return h.changeSkill(c, "profile.removeSkill", false)
}

func (h *Handler) changeSkill(c *fiber.Ctx, op string, add bool) error {
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	var req SkillRequest
	if err := bind(c, op, &req); err != nil {
		return h.fail(c, op, err)
	}
	skill := strings.TrimSpace(req.Skill)
	if skill == "" {
		return h.fail(c, op, invalid(op, "A valid skill name is required."))
	}

	var user models.User
	err = h.db.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", userID).Limit(1).Find(&user)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ledger.NewError(ledger.KindNotFound, op, "User not found.")
		}

		next := make([]string, 0, len(user.Skills)+1)
		for _, s := range user.Skills {
			if add || !strings.EqualFold(s, skill) {
				next = append(next, s)
			}
		}
		if add && !user.HasSkill(skill) {
			next = append(next, skill)
		}
		user.Skills = next
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("skills", user.Skills).Error
	})
	if err != nil {
		return h.fail(c, op, err)
	}

	msg := "Skill removed successfully."
	if add {
		msg = "Skill added successfully."
	}
	return c.JSON(fiber.Map{"success": true, "message": msg, "skills": user.Skills})
}
