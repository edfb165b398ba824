package notifications

import (
	"time"

	"github.com/google/uuid"
)

// Notification types. Sweep-generated types participate in idempotency
// dedup; the rest do not.
const (
	TypeMeetingReminder = "meeting_reminder"
	TypeDealStale       = "deal_stale"
	TypeTaskOverdue     = "task_overdue"
	TypeTaskDueToday    = "task_due_today"
	TypeDealUnassigned  = "deal_unassigned"
	TypeDealWon         = "deal_won"
	TypeAnnouncement    = "announcement"
)

// Metadata keys used to correlate reminders back to meetings.
const (
	MetaMeetingID   = "meeting_id"
	MetaLeadMinutes = "lead_minutes"
)

// Notification is a durable per-user (or org-wide, when UserID is nil)
// message. ScheduledFor defers visibility; Read and Dismissed are the only
// fields mutated after creation.
type Notification struct {
	ID           uuid.UUID      `json:"id"`
	OrgID        string         `json:"org_id"`
	UserID       *string        `json:"user_id,omitempty"`
	Type         string         `json:"type"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	ContactID    *uuid.UUID     `json:"contact_id,omitempty"`
	ScheduledFor *time.Time     `json:"scheduled_for,omitempty"`
	Read         bool           `json:"read"`
	Dismissed    bool           `json:"dismissed"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedBy    *string        `json:"created_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// DedupKey is the composite idempotency key for sweep-generated
// notifications: contact, target user and type together identify "the same
// nudge".
func DedupKey(contactID uuid.UUID, userID, notifType string) string {
	return contactID.String() + "|" + userID + "|" + notifType
}
