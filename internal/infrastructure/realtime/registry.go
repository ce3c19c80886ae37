package realtime

import (
	"sync"
	"time"

	"github.com/complaint-hub/internal/domain"
	"github.com/google/uuid"
)

// Envelope is the wire shape written to a session's outbound stream.
// Event carries the notification type name; Data carries the same payload
// that is persisted durably, so live and fetched copies are interchangeable.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Session is one live, authenticated client connection. A user may hold
// several concurrent sessions (tabs, devices); each gets its own outbound
// queue, which preserves publish order within the session.
type Session struct {
	ID          string
	UserID      string
	Role        string
	ConnectedAt time.Time

	send      chan Envelope
	closeOnce sync.Once
}

// NewSession builds an unregistered session with a buffered outbound queue.
func NewSession(userID, role string, buffer int) *Session {
	return &Session{
		ID:          uuid.NewString(),
		UserID:      userID,
		Role:        role,
		ConnectedAt: time.Now().UTC(),
		send:        make(chan Envelope, buffer),
	}
}

// Outbound is the channel the transport drains into the wire. It is closed
// when the session is unregistered.
func (s *Session) Outbound() <-chan Envelope {
	return s.send
}

func (s *Session) close() {
	s.closeOnce.Do(func() { close(s.send) })
}

// Registry maps userID -> open sessions and role -> member sessions.
// All operations are safe under concurrent connect/disconnect/publish
// and none of them blocks on I/O.
type Registry struct {
	mu     sync.RWMutex
	byUser map[string]map[*Session]struct{}
	byRole map[string]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		byUser: make(map[string]map[*Session]struct{}),
		byRole: make(map[string]map[*Session]struct{}),
	}
}

// Register adds the session to its per-user and per-role groups. From this
// point the session receives publishes addressed to either group.
func (r *Registry) Register(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.byUser[s.UserID] == nil {
		r.byUser[s.UserID] = make(map[*Session]struct{})
	}
	r.byUser[s.UserID][s] = struct{}{}
	if r.byRole[s.Role] == nil {
		r.byRole[s.Role] = make(map[*Session]struct{})
	}
	r.byRole[s.Role][s] = struct{}{}
}

// Unregister removes the session from both groups and closes its outbound
// queue. Safe to call more than once; the transport's disconnect path and
// an explicit logout may both reach here.
func (r *Registry) Unregister(s *Session) {
	r.mu.Lock()
	if set, ok := r.byUser[s.UserID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.byUser, s.UserID)
		}
	}
	if set, ok := r.byRole[s.Role]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(r.byRole, s.Role)
		}
	}
	r.mu.Unlock()
	s.close()
}

// PublishToUser pushes an event to every open session of userID. No
// registered session is a silent no-op: the durable store is the fallback
// channel for offline recipients, not this one.
func (r *Registry) PublishToUser(userID string, event domain.EventType, payload interface{}) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.fanOut(r.byUser[userID], event, payload, "")
}

// PublishToRole pushes an event to every session whose user holds role,
// except sessions of exceptUserID. The durable fan-out skips the actor of
// an event; the live channel must match, or actors see pop-ups for their
// own actions.
func (r *Registry) PublishToRole(role string, event domain.EventType, payload interface{}, exceptUserID string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	r.fanOut(r.byRole[role], event, payload, exceptUserID)
}

// ActiveSessions reports how many sessions userID currently holds.
func (r *Registry) ActiveSessions(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID])
}

func (r *Registry) fanOut(set map[*Session]struct{}, event domain.EventType, payload interface{}, exceptUserID string) {
	env := Envelope{Event: string(event), Data: payload}
	for s := range set {
		if exceptUserID != "" && s.UserID == exceptUserID {
			continue
		}
		// Non-blocking send: a session that stopped draining its queue
		// loses live events rather than stalling every publisher. The
		// durable row still reaches it on the next fetch.
		select {
		case s.send <- env:
		default:
		}
	}
}
