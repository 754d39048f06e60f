package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/anjiri1684/skillcoin/models"
)

const (
	ReminderWindow    = 15 * time.Minute
	reminderBatchSize = 500
)

// SweepReminders flags scheduled bookings starting within window from now as
// reminded and returns the ones it flagged. Batches are written
// independently: a failed batch is reported in the joined error while the
// others still commit.
func (c *Core) SweepReminders(ctx context.Context, window time.Duration) ([]models.Booking, error) {
	const op = "ledger.sweepReminders"
	start := time.Now()
	if window <= 0 {
		window = ReminderWindow
	}
	now := c.now()

	var due []models.Booking
	err := c.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ? AND start_time >= ? AND start_time <= ?",
			models.BookingScheduled, false, now, now.Add(window)).
		Order("start_time").
		Find(&due).Error
	if err != nil {
		err = MapError(op, err)
		c.observe(op, start, err)
		return nil, err
	}

	marked := make([]models.Booking, 0, len(due))
	var errs []error
	for lo := 0; lo < len(due); lo += reminderBatchSize {
		chunk := due[lo:min(lo+reminderBatchSize, len(due))]
		ids := make([]string, len(chunk))
		for i := range chunk {
			ids[i] = chunk[i].ID
		}
		res := c.db.WithContext(ctx).Model(&models.Booking{}).
			Where("id IN ? AND reminder_sent = ?", ids, false).
			Updates(map[string]any{"reminder_sent": true, "reminder_sent_at": now})
		if res.Error != nil {
			c.log.Error("reminder batch failed", "op", op, "batch_start", lo, "batch_size", len(chunk), "error", res.Error)
			errs = append(errs, MapError(op, res.Error))
			continue
		}
		for i := range chunk {
			chunk[i].ReminderSent = true
			chunk[i].ReminderSentAt = &now
			marked = append(marked, chunk[i])
		}
	}

	err = errors.Join(errs...)
	c.observe(op, start, err)
	if len(marked) > 0 {
		c.log.Info("booking reminders flagged", "count", len(marked))
	}
	return marked, err
}
