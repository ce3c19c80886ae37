package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/complaint-hub/internal/domain"
	"github.com/complaint-hub/internal/pkg/id"
)

// Publisher pushes events to currently connected sessions. Publishes with
// no listener are silent no-ops.
type Publisher interface {
	PublishToUser(userID string, event domain.EventType, payload interface{})
	PublishToRole(role string, event domain.EventType, payload interface{}, exceptUserID string)
}

// NotificationStore persists one row per (recipient, event).
type NotificationStore interface {
	Put(ctx context.Context, n *domain.Notification) error
}

// UserDirectory resolves role membership and per-user delivery preferences.
type UserDirectory interface {
	Get(ctx context.Context, userID string) (*domain.User, error)
	ListActiveByRole(ctx context.Context, role string) ([]domain.User, error)
}

// Mailer is the external email collaborator.
type Mailer interface {
	SendEmail(to, subject, body string) error
}

// SMSSender is the external SMS collaborator.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// Service is the single entry point for delivering domain events. Every
// event goes to both channels: a best-effort live publish and a durable
// store write, so a recipient who connects later still finds it.
type Service struct {
	publisher Publisher
	store     NotificationStore
	directory UserDirectory
	mailer    Mailer
	sms       SMSSender

	dedupTTL time.Duration
	now      func() time.Time

	mu     sync.Mutex
	recent map[dedupKey]time.Time
}

type dedupKey struct {
	typ       domain.EventType
	subjectID string
	recipient string
}

// Deps bundles the collaborators of a dispatch Service. Mailer and SMS may
// be nil when the deployment has no out-of-band channel configured.
type Deps struct {
	Publisher Publisher
	Store     NotificationStore
	Directory UserDirectory
	Mailer    Mailer
	SMS       SMSSender
	DedupTTL  time.Duration
}

func NewService(deps Deps) *Service {
	ttl := deps.DedupTTL
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Service{
		publisher: deps.Publisher,
		store:     deps.Store,
		directory: deps.Directory,
		mailer:    deps.Mailer,
		sms:       deps.SMS,
		dedupTTL:  ttl,
		now:       time.Now,
		recent:    make(map[dedupKey]time.Time),
	}
}

// Dispatch delivers ev to its target user or role. The returned error is
// informational: callers that sit on a business-transaction path log it and
// carry on, because a failed notification must never fail the action that
// produced it.
func (s *Service) Dispatch(ctx context.Context, ev domain.Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now().UTC()
	}
	switch {
	case ev.TargetUser != "":
		return s.dispatchToUser(ctx, ev)
	case ev.TargetRole != "":
		return s.dispatchToRole(ctx, ev)
	default:
		return fmt.Errorf("event %s/%s has no target: %w", ev.Type, ev.SubjectID, domain.ErrBadRequest)
	}
}

func (s *Service) dispatchToUser(ctx context.Context, ev domain.Event) error {
	if s.suppressed(ev, ev.TargetUser) {
		slog.Debug("duplicate dispatch suppressed",
			"type", ev.Type, "subject_id", ev.SubjectID, "user_id", ev.TargetUser)
		return nil
	}

	n := s.newNotification(ev, ev.TargetUser)
	s.publisher.PublishToUser(ev.TargetUser, ev.Type, n)

	var errs []error
	if err := s.store.Put(ctx, n); err != nil {
		errs = append(errs, fmt.Errorf("persist notification for %s: %w", ev.TargetUser, err))
	}

	if ev.Type == domain.EventReminderDue {
		s.notifyOutOfBand(ctx, ev)
	}
	return errors.Join(errs...)
}

func (s *Service) dispatchToRole(ctx context.Context, ev domain.Event) error {
	if s.suppressed(ev, "role:"+ev.TargetRole) {
		slog.Debug("duplicate dispatch suppressed",
			"type", ev.Type, "subject_id", ev.SubjectID, "role", ev.TargetRole)
		return nil
	}

	// Live publish to the role channel carries no durable id: the rows are
	// per member and have not been written yet. Clients key such pushes by
	// a local temporary id until the next fetch. The actor's sessions are
	// excluded, mirroring the durable fan-out below.
	s.publisher.PublishToRole(ev.TargetRole, ev.Type, s.newNotification(ev, ""), ev.ActorUserID)

	members, err := s.directory.ListActiveByRole(ctx, ev.TargetRole)
	if err != nil {
		return fmt.Errorf("resolve role %s: %w", ev.TargetRole, err)
	}

	var errs []error
	for _, m := range members {
		if m.UserID == ev.ActorUserID {
			continue
		}
		if err := s.store.Put(ctx, s.newNotification(ev, m.UserID)); err != nil {
			// One member's write failing must not starve the rest.
			slog.Warn("persist notification failed",
				"type", ev.Type, "subject_id", ev.SubjectID, "user_id", m.UserID, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// suppressed records the dispatch and reports whether an identical
// (type, subject, recipient) event went out within the de-dup window.
// Reminder events are exempt: the scheduler runs its own, longer window.
func (s *Service) suppressed(ev domain.Event, recipient string) bool {
	if ev.Type == domain.EventReminderDue {
		return false
	}
	key := dedupKey{typ: ev.Type, subjectID: ev.SubjectID, recipient: recipient}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for k, at := range s.recent {
		if now.Sub(at) > s.dedupTTL {
			delete(s.recent, k)
		}
	}
	if at, ok := s.recent[key]; ok && now.Sub(at) <= s.dedupTTL {
		return true
	}
	s.recent[key] = now
	return false
}

// notifyOutOfBand sends the reminder through email/SMS when the recipient's
// preferences allow it. Failures are logged only; these channels are
// best-effort extras on top of the durable row.
func (s *Service) notifyOutOfBand(ctx context.Context, ev domain.Event) {
	u, err := s.directory.Get(ctx, ev.TargetUser)
	if err != nil {
		slog.Warn("reminder preference lookup failed", "user_id", ev.TargetUser, "err", err)
		return
	}
	if s.mailer != nil && u.EmailReminders && u.Email != "" {
		if err := s.mailer.SendEmail(u.Email, ev.Title, ev.Message); err != nil {
			slog.Warn("reminder email failed", "user_id", u.UserID, "err", err)
		}
	}
	if s.sms != nil && u.SMSReminders && u.Phone != nil {
		if err := s.sms.SendSMS(ctx, *u.Phone, ev.Title+": "+ev.Message); err != nil {
			slog.Warn("reminder sms failed", "user_id", u.UserID, "err", err)
		}
	}
}

// newNotification builds the payload shared by the live and durable
// channels. recipient may be empty for role-channel live publishes.
func (s *Service) newNotification(ev domain.Event, recipient string) *domain.Notification {
	n := &domain.Notification{
		UserID:    recipient,
		Type:      ev.Type,
		SubjectID: ev.SubjectID,
		Title:     ev.Title,
		Message:   ev.Message,
		Status:    ev.Status,
		ActorName: ev.ActorName,
		Read:      false,
		CreatedAt: ev.OccurredAt,
	}
	if recipient != "" {
		n.NotificationID = id.New()
	}
	return n
}
