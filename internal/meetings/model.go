package meetings

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status of a meeting.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Meeting is a scheduled appointment with a contact.
type Meeting struct {
	ID              uuid.UUID `json:"id"`
	OrgID           string    `json:"org_id"`
	ContactID       uuid.UUID `json:"contact_id"`
	CreatedBy       string    `json:"created_by"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          Status    `json:"status"`
	Location        string    `json:"location,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

var (
	// ErrMeetingNotFound indicates the meeting does not exist in the org.
	ErrMeetingNotFound = errors.New("meetings: meeting not found")

	// ErrNotCancellable indicates the meeting is not in a state that can be
	// cancelled.
	ErrNotCancellable = errors.New("meetings: meeting not cancellable")
)

// CreateMeetingRequest carries the fields needed to schedule a meeting.
type CreateMeetingRequest struct {
	OrgID           string    `json:"-"`
	ContactID       uuid.UUID `json:"contact_id"`
	CreatedBy       string    `json:"-"`
	Title           string    `json:"title"`
	ScheduledAt     time.Time `json:"scheduled_at"`
	DurationMinutes int       `json:"duration_minutes"`
	Location        string    `json:"location"`
	Notes           string    `json:"notes"`
}

// Validate checks the request fields.
func (r *CreateMeetingRequest) Validate(now time.Time) error {
	if strings.TrimSpace(r.OrgID) == "" {
		return errors.New("meetings: org id required")
	}
	if r.ContactID == uuid.Nil {
		return errors.New("meetings: contact id required")
	}
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("meetings: title required")
	}
	if !r.ScheduledAt.After(now) {
		return errors.New("meetings: scheduled time must be in the future")
	}
	if r.DurationMinutes <= 0 {
		r.DurationMinutes = 60
	}
	return nil
}
