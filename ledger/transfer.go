package ledger

import (
	"github.com/anjiri1684/skillcoin/models"
	"gorm.io/gorm"
)

type transfer struct {
	From      *models.User
	To        *models.User
	Amount    int64
	Reason    models.TransferReason
	Reference string
	// Insufficient is the message returned when From cannot cover Amount.
	Insufficient string
}

// applyTransfer moves coins between two users already read inside tx and
// journals the movement. Both balances are checked and written in the same
// transaction, so a failure on either side rolls back the whole transfer.
func applyTransfer(tx *gorm.DB, op string, t transfer) error {
	if t.Amount < 0 {
		return newErrorf(KindInternal, op, "negative transfer amount %d", t.Amount)
	}
	if t.From.ID == t.To.ID {
		return newError(KindInvalidArgument, op, "Cannot transfer coins to the same account.")
	}
	if t.Amount == 0 {
		return nil
	}
	if t.From.Coins < t.Amount {
		msg := t.Insufficient
		if msg == "" {
			msg = "Insufficient coins."
		}
		return newError(KindFailedPrecondition, op, msg)
	}

	fromCoins := t.From.Coins - t.Amount
	toCoins := t.To.Coins + t.Amount
	if err := updateUser(tx, t.From, map[string]any{"coins": fromCoins}); err != nil {
		return err
	}
	if err := updateUser(tx, t.To, map[string]any{"coins": toCoins}); err != nil {
		return err
	}
	t.From.Coins = fromCoins
	t.To.Coins = toCoins

	return tx.Create(&models.CoinTransfer{
		FromUserID: t.From.ID,
		ToUserID:   t.To.ID,
		Amount:     t.Amount,
		Reason:     t.Reason,
		Reference:  t.Reference,
	}).Error
}
