package domain

import "time"

// EventType identifies a domain event produced by a business action.
// Each value doubles as the live-transport event name so pushed and
// persisted notifications stay interchangeable.
type EventType string

const (
	EventNewComplaint      EventType = "new_complaint"
	EventComplaintAssigned EventType = "complaint_assigned"
	EventComplaintUpdated  EventType = "complaint_updated"
	EventNewComment        EventType = "new_comment"
	EventStatusChanged     EventType = "status_changed"
	EventReminderDue       EventType = "reminder_due"
)

// Event is the single input shape of the delivery dispatcher. Exactly one
// of TargetUser or TargetRole must be set.
type Event struct {
	Type        EventType `json:"type"`
	SubjectID   string    `json:"subject_id"` // complaint or reminder id
	TargetUser  string    `json:"target_user,omitempty"`
	TargetRole  string    `json:"target_role,omitempty"`
	ActorUserID string    `json:"actor_user_id,omitempty"` // excluded from role fan-out
	Title       string    `json:"title"`
	Message     string    `json:"message,omitempty"`
	Status      string    `json:"status,omitempty"`
	ActorName   string    `json:"actor_name,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}
