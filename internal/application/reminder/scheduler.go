package reminder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/complaint-hub/internal/domain"
	"github.com/robfig/cron/v3"
)

// Dispatcher delivers a reminder_due event to the assignee.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) error
}

// DueScanner is the slice of the reminder store the scheduler needs.
type DueScanner interface {
	ListDuePending(ctx context.Context, now time.Time) ([]domain.Reminder, error)
	Get(ctx context.Context, reminderID string) (*domain.Reminder, error)
}

// Scheduler periodically scans for due, still-pending reminders and fires
// one reminder_due dispatch per reminder per de-dup window. The window map
// is process-local, so a restart may replay one notification for a reminder
// that fired just before the restart: delivery is at-least-once, not
// exactly-once, and that trade-off is deliberate.
type Scheduler struct {
	store      DueScanner
	dispatcher Dispatcher

	interval time.Duration
	dedupTTL time.Duration
	purgeAge time.Duration
	now      func() time.Time

	cronEngine *cron.Cron
	baseCtx    context.Context
	cancel     context.CancelFunc

	mu           sync.Mutex
	lastNotified map[string]time.Time
}

// SchedulerDeps configures a Scheduler. Zero durations fall back to the
// recommended defaults (60s scan, 5m window, 1h purge).
type SchedulerDeps struct {
	Store      DueScanner
	Dispatcher Dispatcher
	Interval   time.Duration
	DedupTTL   time.Duration
	PurgeAge   time.Duration
}

func NewScheduler(deps SchedulerDeps) *Scheduler {
	if deps.Interval <= 0 {
		deps.Interval = time.Minute
	}
	if deps.DedupTTL <= 0 {
		deps.DedupTTL = 5 * time.Minute
	}
	if deps.PurgeAge <= 0 {
		deps.PurgeAge = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:        deps.Store,
		dispatcher:   deps.Dispatcher,
		interval:     deps.Interval,
		dedupTTL:     deps.DedupTTL,
		purgeAge:     deps.PurgeAge,
		now:          time.Now,
		cronEngine:   cron.New(),
		baseCtx:      ctx,
		cancel:       cancel,
		lastNotified: make(map[string]time.Time),
	}
}

// Start registers the recurring scan and launches the cron engine.
func (s *Scheduler) Start() error {
	_, err := s.cronEngine.AddFunc("@every "+s.interval.String(), func() {
		ctx, cancel := context.WithTimeout(s.baseCtx, s.interval)
		defer cancel()
		s.Tick(ctx)
	})
	if err != nil {
		return err
	}
	s.cronEngine.Start()
	slog.Info("reminder scheduler started", "interval", s.interval, "dedup_ttl", s.dedupTTL)
	return nil
}

// Stop cancels in-flight work and waits for the running tick to finish.
// Nothing is retried after shutdown.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cronEngine.Stop().Done()
	slog.Info("reminder scheduler stopped")
}

// Tick runs one scan. Exported so tests and manual triggers can drive the
// scheduler without the cron engine.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now().UTC()
	s.purge(now)

	due, err := s.store.ListDuePending(ctx, now)
	if err != nil {
		slog.Error("due reminder scan failed", "err", err)
		return
	}

	for _, rem := range due {
		if ctx.Err() != nil {
			return
		}
		if err := s.process(ctx, rem.ReminderID, now); err != nil {
			// One reminder failing must not block the rest of the tick.
			slog.Warn("reminder processing failed", "reminder_id", rem.ReminderID, "err", err)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, reminderID string, now time.Time) error {
	if s.firedRecently(reminderID, now) {
		return nil
	}

	// Re-read before firing: the reminder may have been rescheduled or
	// completed between the scan and this point.
	rem, err := s.store.Get(ctx, reminderID)
	if err != nil {
		return err
	}
	if rem.Status != domain.ReminderPending || rem.DueAt.After(now) {
		return nil
	}

	s.record(reminderID, now)
	return s.dispatcher.Dispatch(ctx, domain.Event{
		Type:       domain.EventReminderDue,
		SubjectID:  rem.ReminderID,
		TargetUser: rem.AssignedTo,
		Title:      "Reminder due",
		Message:    rem.Message,
		Status:     string(rem.Status),
		OccurredAt: now,
	})
}

func (s *Scheduler) firedRecently(reminderID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.lastNotified[reminderID]
	return ok && now.Sub(at) < s.dedupTTL
}

func (s *Scheduler) record(reminderID string, now time.Time) {
	s.mu.Lock()
	s.lastNotified[reminderID] = now
	s.mu.Unlock()
}

// purge bounds the de-dup map: entries older than purgeAge can no longer
// suppress anything and are dropped.
func (s *Scheduler) purge(now time.Time) {
	s.mu.Lock()
	for rid, at := range s.lastNotified {
		if now.Sub(at) > s.purgeAge {
			delete(s.lastNotified, rid)
		}
	}
	s.mu.Unlock()
}
