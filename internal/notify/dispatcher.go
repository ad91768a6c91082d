package notify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seiyelan/raidhelper/internal/cache"
	"github.com/seiyelan/raidhelper/internal/chat"
	"github.com/seiyelan/raidhelper/internal/models"
	"github.com/seiyelan/raidhelper/pkg/logger"
	"github.com/seiyelan/raidhelper/pkg/metrics"
)

const (
	// KindPush labels ad-hoc leader broadcasts.
	KindPush = "push"
	// KindReminder labels automated pre-start reminders.
	KindReminder = "reminder"

	defaultSendDelay = 500 * time.Millisecond
	defaultDedupTTL  = 25 * time.Hour
)

// defaultWindows are the pre-start marks at which members get reminded.
var defaultWindows = []time.Duration{24 * time.Hour, 2 * time.Hour}

// Option customises the Dispatcher.
type Option func(*Dispatcher)

// WithSendDelay sets the pause between consecutive recipient deliveries.
func WithSendDelay(d time.Duration) Option {
	return func(disp *Dispatcher) {
		if d >= 0 {
			disp.delay = d
		}
	}
}

// WithReminderWindows overrides the pre-start reminder marks.
func WithReminderWindows(windows ...time.Duration) Option {
	return func(disp *Dispatcher) {
		if len(windows) > 0 {
			sorted := append([]time.Duration(nil), windows...)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })
			disp.windows = sorted
		}
	}
}

// WithDispatcherClock injects a custom clock primarily for testing.
func WithDispatcherClock(clock func() time.Time) Option {
	return func(disp *Dispatcher) {
		if clock != nil {
			disp.now = clock
		}
	}
}

// WithNoticeChannels maps group names to the channels that receive automated
// reminders alongside the individual roster members.
func WithNoticeChannels(channels map[string][]string) Option {
	return func(disp *Dispatcher) {
		disp.channels = channels
	}
}

// Dispatcher fans notifications out to chat recipients. Delivery is at most
// once per (activity, recipient, kind, bucket): the shared cache counter
// decides, so restarts and multiple instances do not double-send.
type Dispatcher struct {
	db     *gorm.DB
	sender chat.Sender
	store  cache.Store

	delay    time.Duration
	dedupTTL time.Duration
	windows  []time.Duration
	channels map[string][]string // group name -> begin-notice channel ids
	now      func() time.Time
	log      *zap.Logger

	mu      sync.Mutex
	pending map[string][]string // user id -> queued batch lines
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(db *gorm.DB, sender chat.Sender, store cache.Store, opts ...Option) (*Dispatcher, error) {
	if db == nil {
		return nil, errors.New("notify: db is required")
	}
	if sender == nil {
		return nil, errors.New("notify: sender is required")
	}
	if store == nil {
		return nil, errors.New("notify: cache store is required")
	}

	disp := &Dispatcher{
		db:       db,
		sender:   sender,
		store:    store,
		delay:    defaultSendDelay,
		dedupTTL: defaultDedupTTL,
		windows:  defaultWindows,
		now:      time.Now,
		log:      logger.WithModule("notify"),
	}
	for _, opt := range opts {
		opt(disp)
	}
	return disp, nil
}

// Fanout delivers text to every recipient, pausing between sends so the chat
// platform does not throttle the bot. One unreachable recipient never stops
// the rest; failures come back aggregated.
func (d *Dispatcher) Fanout(ctx context.Context, activityID, kind, bucket string, recipients []string, text string) error {
	var errs error
	for i, recipient := range recipients {
		if i > 0 && d.delay > 0 {
			select {
			case <-ctx.Done():
				return multierr.Append(errs, ctx.Err())
			case <-time.After(d.delay):
			}
		}

		fresh, err := d.firstDelivery(ctx, activityID, recipient, kind, bucket)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !fresh {
			metrics.NotificationsSent.WithLabelValues(kind, "deduped").Inc()
			continue
		}

		if err := d.sender.SendUser(ctx, recipient, text); err != nil {
			metrics.NotificationsSent.WithLabelValues(kind, "failed").Inc()
			d.log.Warn("notification delivery failed",
				zap.String("recipient", recipient),
				zap.String("kind", kind),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("notify: send to %s: %w", recipient, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(kind, "ok").Inc()
	}
	return errs
}

// firstDelivery reports whether this is the first attempt for the dedup key.
func (d *Dispatcher) firstDelivery(ctx context.Context, activityID, recipient, kind, bucket string) (bool, error) {
	key := fmt.Sprintf("notify:%s:%s:%s:%s", activityID, recipient, kind, bucket)
	count, _, err := d.store.IncrementWithTTL(ctx, key, d.dedupTTL)
	if err != nil {
		return false, fmt.Errorf("notify: dedup check: %w", err)
	}
	return count == 1, nil
}

// Alert sends text to a single user immediately, bypassing batching and
// dedup. Used for leader alerts that must not wait for the next flush.
func (d *Dispatcher) Alert(ctx context.Context, userID, text string) error {
	if err := d.sender.SendUser(ctx, userID, text); err != nil {
		metrics.NotificationsSent.WithLabelValues("alert", "failed").Inc()
		return fmt.Errorf("notify: alert to %s: %w", userID, err)
	}
	metrics.NotificationsSent.WithLabelValues("alert", "ok").Inc()
	return nil
}

// Announce posts text to a channel immediately. Announcements are leader
// initiated and carry no dedup bucket.
func (d *Dispatcher) Announce(ctx context.Context, channelID, text string) error {
	if err := d.sender.SendChannel(ctx, channelID, text); err != nil {
		metrics.NotificationsSent.WithLabelValues("announce", "failed").Inc()
		return fmt.Errorf("notify: announce to %s: %w", channelID, err)
	}
	metrics.NotificationsSent.WithLabelValues("announce", "ok").Inc()
	return nil
}

// Enqueue adds a line to the recipient's pending batch. Nothing goes out
// until the next Flush.
func (d *Dispatcher) Enqueue(userID, line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		d.pending = make(map[string][]string)
	}
	d.pending[userID] = append(d.pending[userID], line)
}

// Flush sends each recipient their accumulated batch as a single message.
// Repeated lines collapse into one entry with a count.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	pending := d.pending
	d.pending = nil
	d.mu.Unlock()

	var errs error
	for userID, lines := range pending {
		text := summarize(lines)
		if err := d.sender.SendUser(ctx, userID, text); err != nil {
			metrics.NotificationsSent.WithLabelValues("batch", "failed").Inc()
			d.log.Warn("batch delivery failed",
				zap.String("recipient", userID),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("notify: flush to %s: %w", userID, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues("batch", "ok").Inc()
	}
	return errs
}

// summarize collapses duplicate lines, keeping first-occurrence order.
func summarize(lines []string) string {
	counts := make(map[string]int, len(lines))
	order := make([]string, 0, len(lines))
	for _, line := range lines {
		if counts[line] == 0 {
			order = append(order, line)
		}
		counts[line]++
	}

	var b strings.Builder
	for i, line := range order {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		if counts[line] > 1 {
			fmt.Fprintf(&b, " (x%d)", counts[line])
		}
	}
	return b.String()
}

// RemindDue sweeps upcoming activities and reminds every active member at
// each configured pre-start mark. The sweep runs every minute; the dedup key
// carries the window and the start time, so each mark fires once even across
// overlapping windows or a rescheduled activity.
func (d *Dispatcher) RemindDue(ctx context.Context) error {
	if len(d.windows) == 0 {
		return nil
	}
	now := d.now().UTC()
	horizon := d.windows[0]

	var activities []models.Activity
	if err := d.db.WithContext(ctx).
		Where("start_time > ? AND start_time <= ?", now, now.Add(horizon)).
		Find(&activities).Error; err != nil {
		return fmt.Errorf("notify: list upcoming: %w", err)
	}

	var errs error
	for i := range activities {
		activity := &activities[i]
		remaining := activity.StartTime.Sub(now)

		for _, window := range d.windows {
			if remaining > window {
				continue
			}
			bucket := fmt.Sprintf("%s@%d", window, activity.StartTime.Unix())
			if err := d.remindActivity(ctx, activity, window, bucket); err != nil {
				errs = multierr.Append(errs, err)
			}
		}
	}
	return errs
}

func (d *Dispatcher) remindActivity(ctx context.Context, activity *models.Activity, window time.Duration, bucket string) error {
	var signups []models.Signup
	if err := d.db.WithContext(ctx).
		Where("activity_id = ? AND status = ?", activity.ID, models.SignupActive).
		Order("created_at ASC").
		Find(&signups).Error; err != nil {
		return fmt.Errorf("notify: list roster: %w", err)
	}

	text := fmt.Sprintf("Reminder: %s starts at %s (in about %s). See you there!",
		activity.Name, activity.StartTime.Format("2006-01-02 15:04 MST"), formatWindow(window))

	var errs error
	if len(signups) > 0 {
		recipients := make([]string, 0, len(signups))
		for _, signup := range signups {
			recipients = append(recipients, signup.UserID)
		}
		errs = d.Fanout(ctx, activity.ID, KindReminder, bucket, recipients, text)
	}

	// The group's begin-notice channels get the same reminder, under the same
	// dedup bucket.
	for _, channelID := range d.channels[activity.GroupName] {
		fresh, err := d.firstDelivery(ctx, activity.ID, "channel:"+channelID, KindReminder, bucket)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if !fresh {
			metrics.NotificationsSent.WithLabelValues(KindReminder, "deduped").Inc()
			continue
		}
		if err := d.sender.SendChannel(ctx, channelID, text); err != nil {
			metrics.NotificationsSent.WithLabelValues(KindReminder, "failed").Inc()
			d.log.Warn("reminder channel delivery failed",
				zap.String("channel", channelID),
				zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("notify: send to channel %s: %w", channelID, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(KindReminder, "ok").Inc()
	}
	return errs
}

func formatWindow(window time.Duration) string {
	if window%(24*time.Hour) == 0 {
		days := int(window / (24 * time.Hour))
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	hours := int(window / time.Hour)
	if hours == 1 {
		return "1 hour"
	}
	return fmt.Sprintf("%d hours", hours)
}
