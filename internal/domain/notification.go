package domain

import "time"

// Notification is one durable row per (recipient, event). Immutable after
// creation except for the Read flag; removed only by an explicit clear.
type Notification struct {
	NotificationID string    `json:"id" dynamodbav:"notification_id"`
	UserID         string    `json:"user_id" dynamodbav:"user_id"`
	Type           EventType `json:"type" dynamodbav:"type"`
	SubjectID      string    `json:"subject_id" dynamodbav:"subject_id"`
	Title          string    `json:"title" dynamodbav:"title"`
	Message        string    `json:"message,omitempty" dynamodbav:"message"`
	Status         string    `json:"status,omitempty" dynamodbav:"status"`
	ActorName      string    `json:"actor_name,omitempty" dynamodbav:"actor_name"`
	Read           bool      `json:"read" dynamodbav:"read"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
}
