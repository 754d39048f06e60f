package handlers

import (
	"github.com/anjiri1684/skillcoin/models"
	"github.com/anjiri1684/skillcoin/utils"
	"github.com/gofiber/fiber/v2"
)

type TransferView struct {
	models.CoinTransfer
	Direction string `json:"direction"`
}

// GetCoinHistory lists the caller's coin movements, newest first.
func (h *Handler) GetCoinHistory(c *fiber.Ctx) error {
	const op = "coins.history"
	userID, err := caller(c, op)
	if err != nil {
		return h.fail(c, op, err)
	}
	limit := utils.ClampLimit(c.QueryInt("limit", 50), 50, 100)

	var transfers []models.CoinTransfer
	if err := h.db.WithContext(c.UserContext()).
		Where("from_user_id = ? OR to_user_id = ?", userID, userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&transfers).Error; err != nil {
		return h.fail(c, op, err)
	}

	views := make([]TransferView, len(transfers))
	for i, t := range transfers {
		dir := "credit"
		if t.FromUserID == userID {
			dir = "debit"
		}
		views[i] = TransferView{CoinTransfer: t, Direction: dir}
	}
	return c.JSON(fiber.Map{"transfers": views})
}
