package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/complaint-hub/internal/domain"
)

// StoreClient is the client-facing sync surface of the durable store. The
// authenticated recipient is implicit in the transport, so no user id
// appears here.
type StoreClient interface {
	List(ctx context.Context, unreadOnly bool, limit int32) ([]domain.Notification, error)
	MarkRead(ctx context.Context, ids []string) error
	MarkAllRead(ctx context.Context) error
	Clear(ctx context.Context, ids []string) error
	ClearAll(ctx context.Context) error
}

// Syncer drives one client session's cache: bulk refreshes, live pushes and
// optimistic user actions with revert-on-failure. User-initiated store
// failures are surfaced to the caller after local state is rolled back;
// everything else resolves through the cache's merge rules.
type Syncer struct {
	cache *Cache
	store StoreClient
	limit int32
}

func NewSyncer(store StoreClient, cacheLimit int) *Syncer {
	return &Syncer{
		cache: NewCache(cacheLimit),
		store: store,
		limit: int32(cacheLimit),
	}
}

// Cache exposes the underlying cache, mainly for rendering.
func (s *Syncer) Cache() *Cache {
	return s.cache
}

// Refresh fetches the server snapshot and merges it in. Safe to call
// concurrently with pushes and user actions.
func (s *Syncer) Refresh(ctx context.Context) error {
	fetched, err := s.store.List(ctx, false, s.limit)
	if err != nil {
		return fmt.Errorf("refresh notifications: %w", err)
	}
	s.cache.Merge(fetched)
	return nil
}

// HandlePush applies one live-pushed event.
func (s *Syncer) HandlePush(n domain.Notification) {
	s.cache.ApplyPush(n)
}

// MarkRead updates the cache synchronously, then syncs the store. On store
// failure the touched entries revert to unread and the error is surfaced.
func (s *Syncer) MarkRead(ctx context.Context, ids []string) error {
	changed := s.cache.MarkRead(ids)
	durable := durableOnly(changed)
	if len(durable) == 0 {
		return nil
	}
	if err := s.store.MarkRead(ctx, durable); err != nil {
		s.cache.RevertUnread(changed)
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}

// MarkAllRead arms the marked-all marker, flags the cache, then syncs. The
// marker stays armed on failure only long enough for its validity window;
// the reverted entries surface unread again immediately.
func (s *Syncer) MarkAllRead(ctx context.Context) error {
	changed := s.cache.MarkAllRead()
	if err := s.store.MarkAllRead(ctx); err != nil {
		s.cache.RevertUnread(changed)
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

// Clear removes ids locally, then deletes them from the store, restoring
// the removed entries if the delete fails.
func (s *Syncer) Clear(ctx context.Context, ids []string) error {
	removed := s.cache.Remove(ids)
	durable := durableOnlyNotifications(removed)
	if len(durable) == 0 {
		return nil
	}
	if err := s.store.Clear(ctx, durable); err != nil {
		s.cache.Restore(removed)
		return fmt.Errorf("clear notifications: %w", err)
	}
	return nil
}

// ClearAll empties the cache, arms the cleared-at marker consulted by later
// merges, then deletes everything server-side.
func (s *Syncer) ClearAll(ctx context.Context) error {
	removed := s.cache.RemoveAll()
	if err := s.store.ClearAll(ctx); err != nil {
		s.cache.Restore(removed)
		return fmt.Errorf("clear all notifications: %w", err)
	}
	return nil
}

// durableOnly drops temp ids: the store has never heard of them, and the
// next refresh resolves them anyway.
func durableOnly(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, nid := range ids {
		if !strings.HasPrefix(nid, tempIDPrefix) {
			out = append(out, nid)
		}
	}
	return out
}

func durableOnlyNotifications(ns []domain.Notification) []string {
	ids := make([]string, 0, len(ns))
	for _, n := range ns {
		ids = append(ids, n.NotificationID)
	}
	return durableOnly(ids)
}
