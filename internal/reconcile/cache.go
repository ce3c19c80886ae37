// Package reconcile keeps a client-side notification cache consistent with
// the durable store across three independent input channels: bulk fetches,
// live-pushed events, and the user's own optimistic read/clear actions.
package reconcile

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/complaint-hub/internal/domain"
	"github.com/complaint-hub/internal/pkg/id"
)

// tempIDPrefix marks entries created from a live push whose durable id was
// not yet known. They are replaced by the matching store row on the next
// fetch.
const tempIDPrefix = "local-"

// MarkerKind names an in-flight user action that later fetches must not
// undo.
type MarkerKind int

const (
	// MarkedAllRead suppresses stale snapshots flipping items back to unread.
	MarkedAllRead MarkerKind = iota
	// ClearedAll suppresses stale snapshots re-inserting cleared items.
	ClearedAll
)

// Marker records one such action as a (kind, timestamp, validity) tuple.
type Marker struct {
	Kind     MarkerKind
	At       time.Time
	Validity time.Duration
}

func (m Marker) active(now time.Time) bool {
	return !m.At.IsZero() && now.Sub(m.At) < m.Validity
}

// Cache mirrors the caller's non-deleted notification rows, newest-first,
// capped to bound memory. All methods are safe for concurrent use; fetches,
// pushes and user actions arrive on independent goroutines.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*domain.Notification
	limit   int
	markers map[MarkerKind]Marker
	now     func() time.Time

	markAllValidity time.Duration
	clearValidity   time.Duration
}

func NewCache(limit int) *Cache {
	if limit <= 0 {
		limit = 100
	}
	return &Cache{
		entries:         make(map[string]*domain.Notification),
		limit:           limit,
		markers:         make(map[MarkerKind]Marker),
		now:             time.Now,
		markAllValidity: 10 * time.Second,
		clearValidity:   30 * time.Second,
	}
}

// Merge reconciles a fetched-from-store snapshot into the cache. This is
// the single place where the race-avoidance rules live:
//
//   - sticky read: a locally read item is never flipped back to unread by
//     an older snapshot;
//   - an active ClearedAll marker suppresses re-insertion of rows the user
//     just cleared;
//   - an active MarkedAllRead marker treats incoming rows created at or
//     before the mark as read; rows created after it keep their own state;
//   - a fetched row adopts any matching temp entry created from a live
//     push, carrying the temp entry's read state forward.
func (c *Cache) Merge(fetched []domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	cleared := c.markers[ClearedAll].active(now)
	markedAll := c.markers[MarkedAllRead]

	for i := range fetched {
		n := fetched[i]
		// Only rows that existed when the user marked everything read are
		// coerced; a notification created after the mark is genuinely new
		// and must surface unread.
		if markedAll.active(now) && !n.CreatedAt.After(markedAll.At) {
			n.Read = true
		}
		if existing, ok := c.entries[n.NotificationID]; ok {
			if existing.Read {
				n.Read = true // sticky true
			}
			c.entries[n.NotificationID] = &n
			continue
		}
		if cleared {
			// The user cleared everything moments ago; this fetch raced
			// the clear and is re-surfacing rows it should not.
			continue
		}
		if tmp := c.findTemp(n.Type, n.SubjectID); tmp != nil {
			if tmp.Read {
				n.Read = true
			}
			delete(c.entries, tmp.NotificationID)
		}
		c.entries[n.NotificationID] = &n
	}
	c.evict()
}

// ApplyPush inserts a live-pushed event. Events that arrive before the
// dispatcher's persistence write lands carry no durable id and are keyed by
// a temporary local id until the next fetch.
func (c *Cache) ApplyPush(n domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n.NotificationID == "" {
		n.NotificationID = tempIDPrefix + id.New()
	}
	if existing, ok := c.entries[n.NotificationID]; ok && existing.Read {
		n.Read = true
	}
	if c.markers[MarkedAllRead].active(c.now()) && !n.CreatedAt.After(c.markers[MarkedAllRead].At) {
		n.Read = true
	}
	c.entries[n.NotificationID] = &n
	c.evict()
}

// MarkRead flags ids as read and returns the ids that actually changed, so
// a failed store call can revert exactly those.
func (c *Cache) MarkRead(ids []string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var changed []string
	for _, nid := range ids {
		if n, ok := c.entries[nid]; ok && !n.Read {
			n.Read = true
			changed = append(changed, nid)
		}
	}
	return changed
}

// RevertUnread undoes an optimistic MarkRead after a store failure.
func (c *Cache) RevertUnread(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, nid := range ids {
		if n, ok := c.entries[nid]; ok {
			n.Read = false
		}
	}
}

// MarkAllRead flags everything read and arms the MarkedAllRead marker
// before the store call goes out, closing the window where a slightly
// stale fetch could flip a just-read item back.
func (c *Cache) MarkAllRead() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[MarkedAllRead] = Marker{Kind: MarkedAllRead, At: c.now(), Validity: c.markAllValidity}
	var changed []string
	for nid, n := range c.entries {
		if !n.Read {
			n.Read = true
			changed = append(changed, nid)
		}
	}
	return changed
}

// Remove drops ids from the cache and returns the removed entries for
// restore-on-failure.
func (c *Cache) Remove(ids []string) []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []domain.Notification
	for _, nid := range ids {
		if n, ok := c.entries[nid]; ok {
			removed = append(removed, *n)
			delete(c.entries, nid)
		}
	}
	return removed
}

// RemoveAll empties the cache, arms the ClearedAll marker, and returns the
// removed entries for restore-on-failure.
func (c *Cache) RemoveAll() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markers[ClearedAll] = Marker{Kind: ClearedAll, At: c.now(), Validity: c.clearValidity}
	removed := make([]domain.Notification, 0, len(c.entries))
	for nid, n := range c.entries {
		removed = append(removed, *n)
		delete(c.entries, nid)
	}
	return removed
}

// Restore puts entries back after a failed clear. The ClearedAll marker is
// disarmed so the next fetch repopulates normally.
func (c *Cache) Restore(ns []domain.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.markers, ClearedAll)
	for i := range ns {
		n := ns[i]
		c.entries[n.NotificationID] = &n
	}
	c.evict()
}

// List returns the cached notifications newest-first.
func (c *Cache) List() []domain.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sorted()
}

// UnreadCount reports how many cached entries are unread.
func (c *Cache) UnreadCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, n := range c.entries {
		if !n.Read {
			count++
		}
	}
	return count
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) findTemp(typ domain.EventType, subjectID string) *domain.Notification {
	for nid, n := range c.entries {
		if strings.HasPrefix(nid, tempIDPrefix) && n.Type == typ && n.SubjectID == subjectID {
			return n
		}
	}
	return nil
}

// evict drops the oldest entries beyond the cap, regardless of read state.
// Callers must hold c.mu.
func (c *Cache) evict() {
	if len(c.entries) <= c.limit {
		return
	}
	ordered := c.sorted()
	for _, n := range ordered[c.limit:] {
		delete(c.entries, n.NotificationID)
	}
}

// sorted returns entries newest-first. Callers must hold c.mu.
func (c *Cache) sorted() []domain.Notification {
	out := make([]domain.Notification, 0, len(c.entries))
	for _, n := range c.entries {
		out = append(out, *n)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].NotificationID > out[j].NotificationID
	})
	return out
}
