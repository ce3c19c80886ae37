package domain

import "time"

// Role names recognised by the role-targeted dispatch path.
const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
	RoleUser  = "user"
)

// User is the read-only directory view the core needs: who is in a role,
// how to reach them, and which out-of-band channels they allow. Account
// management lives outside this subsystem.
type User struct {
	UserID         string    `json:"id" dynamodbav:"user_id"`
	Username       string    `json:"username" dynamodbav:"username"`
	Email          string    `json:"email" dynamodbav:"email"`
	Phone          *string   `json:"phone" dynamodbav:"phone"`
	Role           string    `json:"role" dynamodbav:"role"`
	Enable         int       `json:"enable" dynamodbav:"enable"`
	EmailReminders bool      `json:"email_reminders" dynamodbav:"email_reminders"`
	SMSReminders   bool      `json:"sms_reminders" dynamodbav:"sms_reminders"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at"`
}
