package handlers

import (
	"strings"

	"github.com/anjiri1684/skillcoin/models"
	"github.com/anjiri1684/skillcoin/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ListTeachers filters teachers by skill and hourly price, best rated first.
// skill takes a comma separated list and matches teachers holding any of them.
func (h *Handler) ListTeachers(c *fiber.Ctx) error {
	const op = "teachers.list"
	limit := utils.ClampLimit(c.QueryInt("limit", defaultPageSize), defaultPageSize, maxPageSize)
	minPrice := c.QueryInt("minPrice", 0)
	maxPrice := c.QueryInt("maxPrice", 0)
	if minPrice < 0 || maxPrice < 0 {
		return h.fail(c, op, invalid(op, "Prices cannot be negative."))
	}
	if maxPrice > 0 && minPrice > maxPrice {
		return h.fail(c, op, invalid(op, "minPrice cannot exceed maxPrice."))
	}

	q := h.db.WithContext(c.UserContext()).
		Model(&models.User{}).
		Where("role = ?", models.RoleTeacher)
	if minPrice > 0 {
		q = q.Where("price_per_hour >= ?", minPrice)
	}
	if maxPrice > 0 {
		q = q.Where("price_per_hour <= ?", maxPrice)
	}
	if skills := skillList(c.Query("skill")); len(skills) > 0 {
		q = skillFilter(q, skills)
	}

	var teachers []models.User
	if err := q.Order("rating DESC").Order("reviews DESC").Order("id").Limit(limit).Find(&teachers).Error; err != nil {
		return h.fail(c, op, err)
	}
	return c.JSON(fiber.Map{"teachers": teachers})
}

func skillList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = utils.NormalizeSkill(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// skillFilter keeps users whose skills array holds any of skills, ignoring case.
func skillFilter(db *gorm.DB, skills []string) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Where("EXISTS (SELECT 1 FROM jsonb_array_elements_text(users.skills) AS s(skill) WHERE LOWER(s.skill) IN ?)", skills)
	}
	return db.Where("EXISTS (SELECT 1 FROM json_each(CAST(users.skills AS TEXT)) WHERE LOWER(json_each.value) IN ?)", skills)
}
