package domain

import "time"

// ReminderStatus is the reminder lifecycle state. Completed is terminal;
// an admin may move a reminder back to pending, which makes it eligible
// for re-notification on the next due scan.
type ReminderStatus string

const (
	ReminderPending    ReminderStatus = "pending"
	ReminderInProgress ReminderStatus = "in_progress"
	ReminderCompleted  ReminderStatus = "completed"
)

// Reminder is a scheduled follow-up on a complaint, addressed to a single
// assignee. DueAt is stored as a UTC instant; client-entered local times
// are normalized before they reach the store.
type Reminder struct {
	ReminderID  string         `json:"id" dynamodbav:"reminder_id"`
	ComplaintID string         `json:"complaint_id" dynamodbav:"complaint_id"`
	CreatedBy   string         `json:"created_by" dynamodbav:"created_by"`
	AssignedTo  string         `json:"assigned_to" dynamodbav:"assigned_to"`
	Message     string         `json:"message" dynamodbav:"message"`
	DueAt       time.Time      `json:"due_at" dynamodbav:"due_at"`
	Status      ReminderStatus `json:"status" dynamodbav:"status"`
	CompletedAt *time.Time     `json:"completed_at,omitempty" dynamodbav:"completed_at"`
	CreatedAt   time.Time      `json:"created" dynamodbav:"created_at"`
	UpdatedAt   time.Time      `json:"updated" dynamodbav:"updated_at"`
}

// CreateReminderRequest is the payload for creating a reminder.
// DueAt is RFC3339; any offset is accepted and normalized to UTC.
type CreateReminderRequest struct {
	ComplaintID string `json:"complaint_id" validate:"required"`
	AssignedTo  string `json:"assigned_to" validate:"required"`
	Message     string `json:"message" validate:"required,max=500"`
	DueAt       string `json:"due_at" validate:"required"`
}

// UpdateReminderRequest mutates message, due time or lifecycle status.
type UpdateReminderRequest struct {
	Message *string `json:"message" validate:"omitempty,max=500"`
	DueAt   *string `json:"due_at"`
	Status  *string `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
}
