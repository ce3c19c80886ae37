package http

import (
	"context"

	"github.com/complaint-hub/internal/domain"
	jwtinfra "github.com/complaint-hub/internal/infrastructure/jwt"
	"github.com/complaint-hub/internal/infrastructure/realtime"
)

// NotificationRepository is the minimal interface the router requires from
// the durable notification store.
type NotificationRepository interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int32) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, ids []string) error
	DeleteAll(ctx context.Context, userID string) error
}

// ReminderRepository is the minimal interface the router requires from the
// reminder store.
type ReminderRepository interface {
	Put(ctx context.Context, r *domain.Reminder) error
	Get(ctx context.Context, reminderID string) (*domain.Reminder, error)
	ListByAssignee(ctx context.Context, userID string) ([]domain.Reminder, error)
	Update(ctx context.Context, reminderID string, updates map[string]interface{}) error
	HardDelete(ctx context.Context, reminderID string) error
}

// Dispatcher is the delivery core's single entry point.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev domain.Event) error
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	NotificationRepo NotificationRepository
	ReminderRepo     ReminderRepository
	Dispatcher       Dispatcher
	Registry         *realtime.Registry
	JWTProvider      *jwtinfra.Provider
}
