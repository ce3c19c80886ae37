package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldRead        = "read"
	fieldStatus      = "status"
	fieldMessage     = "message"
	fieldDueAt       = "due_at"
	fieldCompletedAt = "completed_at"
	fieldUpdatedAt   = "updated_at"
)
