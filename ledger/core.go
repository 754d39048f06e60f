// Package ledger holds the coin-ledger transaction core: every operation that
// moves coins or maintains a denormalized counter runs here, inside a single
// database transaction.
package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/anjiri1684/skillcoin/logger"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts    = 3
	defaultRetryBackoff   = 25 * time.Millisecond
	defaultMeetingBaseURL = "https://meet.skillcoin.app"
)

// Hooks receives operation-level observations.
type Hooks interface {
	ObserveOperation(op, status string, dur time.Duration)
	IncConflict(op string)
	IncRetry(op string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

// Event is pushed to connected users after a ledger write commits.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

const (
	EventCoinsChanged   = "coins.changed"
	EventBookingCreated = "booking.created"
	EventBookingStatus  = "booking.status"
	EventNewFollower    = "follow.created"
	EventReviewCreated  = "review.created"
)

// Notifier delivers events to a user. Delivery is best effort.
type Notifier interface {
	Notify(userID string, ev Event)
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, Event) {}

type Options struct {
	// MaxAttempts bounds how often an aborted transaction is run. Values
	// below 1 mean the default of 3.
	MaxAttempts    int
	RetryBackoff   time.Duration
	MeetingBaseURL string
	Hooks          Hooks
	Notifier       Notifier
	Now            func() time.Time
}

type Core struct {
	db   *gorm.DB
	log  *logger.Logger
	opts Options
}

func New(db *gorm.DB, log *logger.Logger, opts Options) *Core {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = defaultRetryBackoff
	}
	opts.MeetingBaseURL = strings.TrimRight(strings.TrimSpace(opts.MeetingBaseURL), "/")
	if opts.MeetingBaseURL == "" {
		opts.MeetingBaseURL = defaultMeetingBaseURL
	}
	if opts.Hooks == nil {
		opts.Hooks = noopHooks{}
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Core{db: db, log: log, opts: opts}
}

func (c *Core) now() time.Time {
	return c.opts.Now().UTC()
}

// inTx runs fn in a transaction, re-running it while the store reports a
// conflict and attempts remain. fn must not keep state across attempts other
// than through variables it fully reassigns.
func (c *Core) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	var err error
	for attempt := 1; ; attempt++ {
		err = MapError(op, c.db.WithContext(ctx).Transaction(fn))
		if err == nil || !IsKind(err, KindAborted) {
			break
		}
		c.opts.Hooks.IncConflict(op)
		if attempt >= c.opts.MaxAttempts || ctx.Err() != nil {
			break
		}
		c.opts.Hooks.IncRetry(op)
		c.log.Warn("ledger transaction aborted, retrying", "op", op, "attempt", attempt, "error", err)
		if !sleepCtx(ctx, time.Duration(attempt)*c.opts.RetryBackoff) {
			break
		}
	}
	c.observe(op, start, err)
	return err
}

func (c *Core) observe(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = string(KindOf(err))
	}
	c.opts.Hooks.ObserveOperation(op, status, time.Since(start))
	if IsKind(err, KindInternal) {
		c.log.Error("ledger operation failed", "op", op, "error", err)
	}
}

func (c *Core) notifyCoins(users ...balance) {
	for _, u := range users {
		c.opts.Notifier.Notify(u.UserID, Event{Type: EventCoinsChanged, Data: u})
	}
}

type balance struct {
	UserID string `json:"user_id"`
	Coins  int64  `json:"coins"`
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func requireCaller(op, callerID string) (string, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return "", newError(KindUnauthenticated, op, "You must be logged in.")
	}
	return callerID, nil
}
