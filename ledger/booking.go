package ledger

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/anjiri1684/skillcoin/models"
	"gorm.io/gorm"
)

const (
	DefaultDurationMinutes = 60
	MaxDurationMinutes     = 24 * 60
)

type BookingInput struct {
	TeacherID string
	StartTime time.Time
	// DurationMinutes of zero means DefaultDurationMinutes.
	DurationMinutes int
	PricePerHour    int64
}

type BookingResult struct {
	BookingID   string    `json:"bookingId"`
	TotalPrice  int64     `json:"totalPrice"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	MeetingLink string    `json:"meetingLink"`
	Coins       int64     `json:"coins"`
}

type StatusResult struct {
	BookingID string               `json:"bookingId"`
	Status    models.BookingStatus `json:"status"`
	Refunded  bool                 `json:"refunded"`
}

// TotalPrice is the session cost rounded up to a whole coin. Callers keep
// pricePerHour*durationMinutes within int64.
func TotalPrice(pricePerHour int64, durationMinutes int) int64 {
	return (pricePerHour*int64(durationMinutes) + 59) / 60
}

// NormalizeStart puts a start time into the form bookings are keyed and
// compared by: UTC with millisecond precision.
func NormalizeStart(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

func (c *Core) CreateBooking(ctx context.Context, studentID string, in BookingInput) (*BookingResult, error) {
	const op = "ledger.createBooking"
	studentID, err := requireCaller(op, studentID)
	if err != nil {
		return nil, err
	}
	teacherID := strings.TrimSpace(in.TeacherID)
	if teacherID == "" || in.StartTime.IsZero() || in.PricePerHour == 0 {
		return nil, newError(KindInvalidArgument, op, "Missing required booking information.")
	}
	if in.PricePerHour < 0 {
		return nil, newError(KindInvalidArgument, op, "pricePerHour must be positive.")
	}
	duration := in.DurationMinutes
	if duration == 0 {
		duration = DefaultDurationMinutes
	}
	if duration < 0 {
		return nil, newError(KindInvalidArgument, op, "durationMinutes must be positive.")
	}
	if duration > MaxDurationMinutes {
		return nil, newError(KindInvalidArgument, op, "durationMinutes must be at most a day.")
	}
	if in.PricePerHour > (math.MaxInt64-59)/int64(duration) {
		return nil, newError(KindInvalidArgument, op, "pricePerHour is too large.")
	}
	if teacherID == studentID {
		return nil, newError(KindInvalidArgument, op, "You cannot book a session with yourself.")
	}

	start := NormalizeStart(in.StartTime)
	end := start.Add(time.Duration(duration) * time.Minute)
	total := TotalPrice(in.PricePerHour, duration)
	bookingID := models.BookingID(studentID, teacherID, start)
	link := c.opts.MeetingBaseURL + "/" + bookingID

	var (
		result  *BookingResult
		teacher balance
	)
	err = c.inTx(ctx, op, func(tx *gorm.DB) error {
		users, err := lockUsers(tx, studentID, teacherID)
		if err != nil {
			return err
		}
		student, err := requireUser(users, studentID, op, "Student")
		if err != nil {
			return err
		}
		teach, err := requireUser(users, teacherID, op, "Teacher")
		if err != nil {
			return err
		}
		if student.Coins < total {
			return newError(KindFailedPrecondition, op, "Insufficient coins for this booking.")
		}
		if teach.PricePerHour != nil && *teach.PricePerHour != in.PricePerHour {
			return newError(KindFailedPrecondition, op, "The teacher's price has changed, please refresh and try again.")
		}

		taken, err := exists(tx, &models.Booking{}, "teacher_id = ? AND start_time = ?", teacherID, start)
		if err != nil {
			return err
		}
		if taken {
			return newError(KindAlreadyExists, op, "This time slot is already booked.")
		}

		if err := applyTransfer(tx, op, transfer{
			From:         student,
			To:           teach,
			Amount:       total,
			Reason:       models.ReasonSessionBooking,
			Reference:    bookingID,
			Insufficient: "Insufficient coins for this booking.",
		}); err != nil {
			return err
		}

		if err := tx.Create(&models.Booking{
			ID:              bookingID,
			StudentID:       studentID,
			TeacherID:       teacherID,
			StartTime:       start,
			EndTime:         end,
			DurationMinutes: duration,
			TotalPrice:      total,
			Status:          models.BookingScheduled,
			MeetingLink:     link,
		}).Error; err != nil {
			return err
		}

		result = &BookingResult{
			BookingID:   bookingID,
			TotalPrice:  total,
			StartTime:   start,
			EndTime:     end,
			MeetingLink: link,
			Coins:       student.Coins,
		}
		teacher = balance{UserID: teach.ID, Coins: teach.Coins}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("session booked", "booking_id", bookingID, "total_price", total)
	c.notifyCoins(balance{UserID: studentID, Coins: result.Coins}, teacher)
	c.opts.Notifier.Notify(teacherID, Event{Type: EventBookingCreated, Data: result})
	return result, nil
}

// UpdateBookingStatus completes or cancels a scheduled booking. A cancellation
// by the student refunds the full price from the teacher. Completed and
// cancelled are terminal.
func (c *Core) UpdateBookingStatus(ctx context.Context, callerID, bookingID string, status models.BookingStatus) (*StatusResult, error) {
	const op = "ledger.updateBookingStatus"
	callerID, err := requireCaller(op, callerID)
	if err != nil {
		return nil, err
	}
	bookingID = strings.TrimSpace(bookingID)
	if bookingID == "" {
		return nil, newError(KindInvalidArgument, op, "bookingId is required.")
	}
	if status != models.BookingCompleted && status != models.BookingCancelled {
		return nil, newError(KindInvalidArgument, op, "status must be completed or cancelled.")
	}

	var (
		result   *StatusResult
		booking  models.Booking
		balances []balance
	)
	err = c.inTx(ctx, op, func(tx *gorm.DB) error {
		balances = nil
		booking = models.Booking{}
		found, err := findLocked(tx, &booking, bookingID)
		if err != nil {
			return err
		}
		if !found {
			return newError(KindNotFound, op, "Booking not found.")
		}
		if !booking.Participant(callerID) {
			return newError(KindPermissionDenied, op, "You can only update your own bookings.")
		}
		if booking.Status.Terminal() {
			return newErrorf(KindFailedPrecondition, op, "Booking is already %s.", booking.Status)
		}

		refund := status == models.BookingCancelled && callerID == booking.StudentID
		if refund {
			users, err := lockUsers(tx, booking.StudentID, booking.TeacherID)
			if err != nil {
				return err
			}
			student, err := requireUser(users, booking.StudentID, op, "Student")
			if err != nil {
				return err
			}
			teach, err := requireUser(users, booking.TeacherID, op, "Teacher")
			if err != nil {
				return err
			}
			if err := applyTransfer(tx, op, transfer{
				From:         teach,
				To:           student,
				Amount:       booking.TotalPrice,
				Reason:       models.ReasonBookingRefund,
				Reference:    booking.ID,
				Insufficient: "The teacher no longer holds enough coins to refund this booking.",
			}); err != nil {
				return err
			}
			balances = []balance{{UserID: student.ID, Coins: student.Coins}, {UserID: teach.ID, Coins: teach.Coins}}
		}

		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, models.BookingScheduled).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrConflict
		}

		result = &StatusResult{BookingID: booking.ID, Status: status, Refunded: refund}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.log.Info("booking status updated", "booking_id", bookingID, "status", status, "refunded", result.Refunded)
	c.notifyCoins(balances...)
	for _, uid := range []string{booking.StudentID, booking.TeacherID} {
		if uid != callerID {
			c.opts.Notifier.Notify(uid, Event{Type: EventBookingStatus, Data: result})
		}
	}
	return result, nil
}
