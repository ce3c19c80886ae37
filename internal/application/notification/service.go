package notification

import (
	"context"

	"github.com/complaint-hub/internal/domain"
)

// Repository is the durable notification store, always scoped by recipient.
type Repository interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int32) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
	MarkAllRead(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string, ids []string) error
	DeleteAll(ctx context.Context, userID string) error
}

// Service exposes the recipient-initiated operations. Ids not owned by the
// caller are excluded silently by the repository, so there is no ownership
// error path here: the worst outcome of a tampered request is a no-op.
type Service interface {
	List(ctx context.Context, userID string, unreadOnly bool, limit int32) ([]domain.Notification, error)
	MarkRead(ctx context.Context, userID string, ids []string) error
	MarkAllRead(ctx context.Context, userID string) error
	Clear(ctx context.Context, userID string, ids []string) error
	ClearAll(ctx context.Context, userID string) error
}

type service struct {
	repo         Repository
	defaultLimit int32
}

func NewService(repo Repository, defaultLimit int32) Service {
	if defaultLimit <= 0 {
		defaultLimit = 100
	}
	return &service{repo: repo, defaultLimit: defaultLimit}
}

func (s *service) List(ctx context.Context, userID string, unreadOnly bool, limit int32) ([]domain.Notification, error) {
	if limit <= 0 || limit > s.defaultLimit {
		limit = s.defaultLimit
	}
	return s.repo.ListByUser(ctx, userID, unreadOnly, limit)
}

func (s *service) MarkRead(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.repo.MarkRead(ctx, userID, ids)
}

func (s *service) MarkAllRead(ctx context.Context, userID string) error {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return s.repo.Delete(ctx, userID, ids)
}

func (s *service) ClearAll(ctx context.Context, userID string) error {
	return s.repo.DeleteAll(ctx, userID)
}
