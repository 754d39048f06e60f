package jobs

import (
	"context"
	"fmt"
	"html"
	"time"

	"github.com/anjiri1684/skillcoin/ledger"
	"github.com/anjiri1684/skillcoin/logger"
	"github.com/anjiri1684/skillcoin/models"
	"github.com/anjiri1684/skillcoin/notifications"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	// ReminderSchedule runs the sweep on the same cadence as its window so
	// every booking falls into exactly one tick.
	ReminderSchedule = "*/15 * * * *"

	reminderLockKey = "lock:booking-reminders"
	reminderLockTTL = 5 * time.Minute
	reminderSenders = 8
)

type ReminderObserver interface {
	AddReminders(n int)
}

type ReminderJob struct {
	core     *ledger.Core
	db       *gorm.DB
	mailer   notifications.Mailer
	redis    *redis.Client
	log      *logger.Logger
	observer ReminderObserver
}

// NewReminderJob builds the booking reminder job. rdb may be nil on a single
// instance deployment, in which case no cross-instance lock is taken.
func NewReminderJob(core *ledger.Core, db *gorm.DB, mailer notifications.Mailer, rdb *redis.Client, log *logger.Logger, observer ReminderObserver) *ReminderJob {
	if log == nil {
		log = logger.Nop()
	}
	if mailer == nil {
		mailer = (*notifications.BrevoService)(nil)
	}
	return &ReminderJob{core: core, db: db, mailer: mailer, redis: rdb, log: log, observer: observer}
}

// Run performs one sweep and returns how many bookings were reminded.
func (j *ReminderJob) Run(ctx context.Context) (int, error) {
	if j.redis != nil {
		ok, err := j.redis.SetNX(ctx, reminderLockKey, "1", reminderLockTTL).Result()
		if err != nil {
			j.log.Warn("reminder lock unavailable, running anyway", "error", err)
		} else if !ok {
			j.log.Debug("reminder sweep already running elsewhere")
			return 0, nil
		} else {
			defer j.redis.Del(context.WithoutCancel(ctx), reminderLockKey)
		}
	}

	due, sweepErr := j.core.SweepReminders(ctx, ledger.ReminderWindow)
	if len(due) > 0 {
		j.notify(ctx, due)
	}
	if j.observer != nil {
		j.observer.AddReminders(len(due))
	}
	if sweepErr != nil {
		j.log.Error("reminder sweep incomplete", "reminded", len(due), "error", sweepErr)
		return len(due), sweepErr
	}
	if len(due) > 0 {
		j.log.Info("booking reminders sent", "count", len(due))
	}
	return len(due), nil
}

// Func adapts Run to cron.
func (j *ReminderJob) Func(ctx context.Context) func() {
	return func() {
		_, _ = j.Run(ctx)
	}
}

func (j *ReminderJob) notify(ctx context.Context, due []models.Booking) {
	ids := make([]string, 0, 2*len(due))
	for _, b := range due {
		ids = append(ids, b.StudentID, b.TeacherID)
	}
	var users []models.User
	if err := j.db.WithContext(ctx).Select("id", "display_name", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		j.log.Error("loading reminder recipients failed", "error", err)
		return
	}
	byID := make(map[string]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(reminderSenders)
	for _, b := range due {
		subject, body := reminderEmail(b)
		for _, id := range []string{b.StudentID, b.TeacherID} {
			u, ok := byID[id]
			if !ok || u.Email == "" {
				continue
			}
			bookingID := b.ID
			g.Go(func() error {
				if err := j.mailer.Send(gctx, u.DisplayName, u.Email, subject, body); err != nil {
					j.log.Warn("reminder email failed", "booking_id", bookingID, "user_id", u.ID, "error", err)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
}

func reminderEmail(b models.Booking) (string, string) {
	subject := "Reminder: Your session starts soon!"
	body := fmt.Sprintf(
		"<h1>Session Reminder</h1><p>Hi there,</p><p>Your session is scheduled to start at %s UTC.</p>",
		b.StartTime.UTC().Format("15:04"),
	)
	if b.MeetingLink != "" {
		link := html.EscapeString(b.MeetingLink)
		body += fmt.Sprintf("<p><b>Meeting Link:</b> <a href='%s'>Join Session</a></p>", link)
	}
	return subject, body
}
