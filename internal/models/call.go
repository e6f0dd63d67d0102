package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduledCall represents an outbound questionnaire call requested by a user.
//
// Completed means the call was dispatched to the telephony provider, not that it
// was answered. completed_at is set iff completed.
type ScheduledCall struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone"` // E.164
	ScheduledAt time.Time  `json:"scheduled_at"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
