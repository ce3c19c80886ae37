package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/complaint-hub/internal/domain"
	"github.com/complaint-hub/internal/pkg/id"
	"github.com/complaint-hub/internal/pkg/validate"
)

// Repository is the reminder store. The scheduler shares it read-only; the
// write paths below belong to the reminder-management surface.
type Repository interface {
	Put(ctx context.Context, r *domain.Reminder) error
	Get(ctx context.Context, reminderID string) (*domain.Reminder, error)
	ListByAssignee(ctx context.Context, userID string) ([]domain.Reminder, error)
	Update(ctx context.Context, reminderID string, updates map[string]interface{}) error
	HardDelete(ctx context.Context, reminderID string) error
}

// Service manages reminder lifecycle: pending -> in_progress -> completed,
// with an explicit reset back to pending allowed from any state.
type Service interface {
	Create(ctx context.Context, createdBy string, req domain.CreateReminderRequest) (*domain.Reminder, error)
	Get(ctx context.Context, reminderID string) (*domain.Reminder, error)
	ListByAssignee(ctx context.Context, userID string) ([]domain.Reminder, error)
	Update(ctx context.Context, reminderID, actorID, actorRole string, req domain.UpdateReminderRequest) (*domain.Reminder, error)
	Delete(ctx context.Context, reminderID string) error
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Create(ctx context.Context, createdBy string, req domain.CreateReminderRequest) (*domain.Reminder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	dueAt, err := parseDueAt(req.DueAt)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	rem := &domain.Reminder{
		ReminderID:  id.New(),
		ComplaintID: req.ComplaintID,
		CreatedBy:   createdBy,
		AssignedTo:  req.AssignedTo,
		Message:     req.Message,
		DueAt:       dueAt,
		Status:      domain.ReminderPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Put(ctx, rem); err != nil {
		return nil, err
	}
	return rem, nil
}

func (s *service) Get(ctx context.Context, reminderID string) (*domain.Reminder, error) {
	return s.repo.Get(ctx, reminderID)
}

func (s *service) ListByAssignee(ctx context.Context, userID string) ([]domain.Reminder, error) {
	return s.repo.ListByAssignee(ctx, userID)
}

func (s *service) Update(ctx context.Context, reminderID, actorID, actorRole string, req domain.UpdateReminderRequest) (*domain.Reminder, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%v: %w", err, domain.ErrBadRequest)
	}
	rem, err := s.repo.Get(ctx, reminderID)
	if err != nil {
		return nil, err
	}
	// Only the assignee or an admin may drive the lifecycle.
	if actorID != rem.AssignedTo && actorRole != domain.RoleAdmin {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, domain.ErrForbidden)
	}

	updates := map[string]interface{}{}
	if req.Message != nil {
		updates["message"] = *req.Message
	}
	if req.DueAt != nil {
		dueAt, err := parseDueAt(*req.DueAt)
		if err != nil {
			return nil, err
		}
		updates["due_at"] = dueAt
	}
	if req.Status != nil {
		next := domain.ReminderStatus(*req.Status)
		if err := checkTransition(rem.Status, next); err != nil {
			return nil, err
		}
		updates["status"] = next
		switch next {
		case domain.ReminderCompleted:
			updates["completed_at"] = time.Now().UTC()
		case domain.ReminderPending:
			// A reset clears the completion stamp and makes the reminder
			// eligible for re-notification on the next due scan.
			updates["completed_at"] = nil
		}
	}
	if len(updates) == 0 {
		return rem, nil
	}
	if err := s.repo.Update(ctx, reminderID, updates); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, reminderID)
}

func (s *service) Delete(ctx context.Context, reminderID string) error {
	return s.repo.HardDelete(ctx, reminderID)
}

// checkTransition enforces pending -> in_progress -> completed. Completed is
// terminal except for the explicit reset to pending.
func checkTransition(cur, next domain.ReminderStatus) error {
	if cur == next || next == domain.ReminderPending {
		return nil
	}
	switch next {
	case domain.ReminderInProgress:
		if cur == domain.ReminderPending {
			return nil
		}
	case domain.ReminderCompleted:
		if cur == domain.ReminderPending || cur == domain.ReminderInProgress {
			return nil
		}
	}
	return fmt.Errorf("invalid status transition %s -> %s: %w", cur, next, domain.ErrConflict)
}

// parseDueAt accepts RFC3339 with any offset and normalizes to UTC, so the
// due comparison in the scheduler always happens in one instant domain.
func parseDueAt(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("due_at must be RFC3339: %w", domain.ErrBadRequest)
	}
	return t.UTC(), nil
}
