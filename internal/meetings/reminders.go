package meetings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pipewise/pipeline-engine/internal/notifications"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// NotificationWriter is the slice of the notification store the scheduler
// needs.
type NotificationWriter interface {
	Create(ctx context.Context, n *notifications.Notification) error
	DismissByMeetingID(ctx context.Context, orgID string, meetingID uuid.UUID) (int, error)
}

// leadTime is one fixed reminder offset before the meeting start.
type leadTime struct {
	offset time.Duration
	label  string
}

// reminderLeads are the fixed offsets, longest first. Offsets already in
// the past at scheduling time are skipped, never back-filled.
var reminderLeads = []leadTime{
	{24 * time.Hour, "tomorrow"},
	{8 * time.Hour, "in 8 hours"},
	{4 * time.Hour, "in 4 hours"},
	{2 * time.Hour, "in 2 hours"},
	{time.Hour, "in 1 hour"},
	{15 * time.Minute, "in 15 minutes"},
}

// ReminderScheduler emits the reminder notifications for a meeting at
// creation time and cascade-dismisses them on cancellation. Reminders are
// generated exactly once, when the meeting is created; that is where their
// idempotency comes from.
type ReminderScheduler struct {
	store  NotificationWriter
	logger *logging.Logger
}

// NewReminderScheduler creates a reminder scheduler.
func NewReminderScheduler(store NotificationWriter, logger *logging.Logger) *ReminderScheduler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ReminderScheduler{store: store, logger: logger}
}

// Schedule computes the future-dated reminders for the meeting and persists
// them. Returns how many were created; short-notice meetings naturally get
// partial sets.
func (s *ReminderScheduler) Schedule(ctx context.Context, m *Meeting, now time.Time) (int, error) {
	created := 0
	for _, lead := range reminderLeads {
		at := m.ScheduledAt.Add(-lead.offset)
		if !at.After(now) {
			continue
		}

		n := &notifications.Notification{
			OrgID:        m.OrgID,
			UserID:       &m.CreatedBy,
			Type:         notifications.TypeMeetingReminder,
			Title:        fmt.Sprintf("Meeting %s: %s", lead.label, m.Title),
			Body:         reminderBody(m, lead),
			ContactID:    &m.ContactID,
			ScheduledFor: &at,
			Metadata: map[string]any{
				notifications.MetaMeetingID:   m.ID.String(),
				notifications.MetaLeadMinutes: int(lead.offset.Minutes()),
			},
		}
		if err := s.store.Create(ctx, n); err != nil {
			return created, fmt.Errorf("meetings: schedule reminder: %w", err)
		}
		created++
	}

	s.logger.Info("meetings: reminders scheduled",
		"meeting_id", m.ID,
		"org_id", m.OrgID,
		"count", created,
	)
	return created, nil
}

// CancelReminders dismisses every pending reminder referencing the meeting.
// Best-effort: a failure is logged and returned, but a leftover reminder is
// a degraded outcome, not a hard failure for callers.
func (s *ReminderScheduler) CancelReminders(ctx context.Context, orgID string, meetingID uuid.UUID) (int, error) {
	dismissed, err := s.store.DismissByMeetingID(ctx, orgID, meetingID)
	if err != nil {
		s.logger.Error("meetings: cascade dismiss failed",
			"meeting_id", meetingID, "org_id", orgID, "error", err)
		return dismissed, err
	}
	s.logger.Info("meetings: reminders dismissed",
		"meeting_id", meetingID, "org_id", orgID, "count", dismissed)
	return dismissed, nil
}

func reminderBody(m *Meeting, lead leadTime) string {
	when := m.ScheduledAt.Format("Monday, January 2 at 3:04 PM")
	if m.Location != "" {
		return fmt.Sprintf("%q starts %s (%s) at %s.", m.Title, lead.label, when, m.Location)
	}
	return fmt.Sprintf("%q starts %s (%s).", m.Title, lead.label, when)
}
