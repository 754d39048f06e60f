package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type TransferReason string

const (
	ReasonCoursePurchase TransferReason = "course_purchase"
	ReasonSessionBooking TransferReason = "session_booking"
	ReasonBookingRefund  TransferReason = "booking_refund"
)

// CoinTransfer is the append-only journal of coin movements between users.
type CoinTransfer struct {
	ID         string         `gorm:"primaryKey;size:64" json:"id"`
	FromUserID string         `gorm:"size:128;not null;index" json:"from_user_id"`
	ToUserID   string         `gorm:"size:128;not null;index" json:"to_user_id"`
	Amount     int64          `gorm:"not null" json:"amount"`
	Reason     TransferReason `gorm:"size:32;not null" json:"reason"`
	Reference  string         `gorm:"size:255;not null;index" json:"reference"`
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (t *CoinTransfer) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
