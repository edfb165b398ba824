package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pipewise/pipeline-engine/internal/meetings"
	"github.com/pipewise/pipeline-engine/internal/observability/metrics"
	"github.com/pipewise/pipeline-engine/internal/tenancy"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// MeetingStore is the slice of the meeting store the handler needs.
type MeetingStore interface {
	Create(ctx context.Context, m *meetings.Meeting) error
	Cancel(ctx context.Context, orgID string, id uuid.UUID) error
}

// ReminderService schedules and cascade-dismisses meeting reminders.
type ReminderService interface {
	Schedule(ctx context.Context, m *meetings.Meeting, now time.Time) (int, error)
	CancelReminders(ctx context.Context, orgID string, meetingID uuid.UUID) (int, error)
}

// MeetingsHandler creates and cancels meetings, driving the reminder
// scheduler on both transitions.
type MeetingsHandler struct {
	store     MeetingStore
	reminders ReminderService
	metrics   *metrics.ReminderMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewMeetingsHandler creates a meetings handler. m may be nil.
func NewMeetingsHandler(store MeetingStore, reminders ReminderService, m *metrics.ReminderMetrics, logger *logging.Logger) *MeetingsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &MeetingsHandler{store: store, reminders: reminders, metrics: m, logger: logger, now: time.Now}
}

// Create schedules a meeting and its future-dated reminders.
// POST /api/meetings
func (h *MeetingsHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing org", http.StatusUnauthorized)
		return
	}
	userID, ok := tenancy.UserIDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing user", http.StatusUnauthorized)
		return
	}

	var req meetings.CreateMeetingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	req.OrgID = orgID
	req.CreatedBy = userID

	now := h.now()
	if err := req.Validate(now); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	m := &meetings.Meeting{
		OrgID:           req.OrgID,
		ContactID:       req.ContactID,
		CreatedBy:       req.CreatedBy,
		Title:           req.Title,
		ScheduledAt:     req.ScheduledAt,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Notes:           req.Notes,
	}
	if err := h.store.Create(r.Context(), m); err != nil {
		h.logger.Error("meetings: create failed", "error", err, "org_id", orgID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	// A reminder failure degrades the meeting, it does not undo it.
	scheduled, err := h.reminders.Schedule(r.Context(), m, now)
	if err != nil {
		h.logger.Warn("meetings: reminder scheduling incomplete",
			"error", err, "meeting_id", m.ID, "scheduled", scheduled)
	}
	h.metrics.ObserveScheduled(scheduled)

	writeJSON(w, http.StatusCreated, map[string]any{
		"meeting":             m,
		"reminders_scheduled": scheduled,
	})
}

// Cancel transitions a meeting to cancelled and dismisses its pending
// reminders.
// POST /api/meetings/{meetingID}/cancel
func (h *MeetingsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing org", http.StatusUnauthorized)
		return
	}
	meetingID, err := uuid.Parse(chi.URLParam(r, "meetingID"))
	if err != nil {
		jsonError(w, "invalid meeting id", http.StatusBadRequest)
		return
	}

	if err := h.store.Cancel(r.Context(), orgID, meetingID); err != nil {
		if errors.Is(err, meetings.ErrNotCancellable) {
			jsonError(w, "meeting is not cancellable", http.StatusConflict)
			return
		}
		if errors.Is(err, meetings.ErrMeetingNotFound) {
			jsonError(w, "meeting not found", http.StatusNotFound)
			return
		}
		h.logger.Error("meetings: cancel failed", "error", err, "meeting_id", meetingID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	dismissed, err := h.reminders.CancelReminders(r.Context(), orgID, meetingID)
	if err != nil {
		h.logger.Warn("meetings: reminder dismissal incomplete",
			"error", err, "meeting_id", meetingID, "dismissed", dismissed)
	}
	h.metrics.ObserveDismissed(dismissed)

	writeJSON(w, http.StatusOK, map[string]any{
		"meeting_id":          meetingID,
		"status":              meetings.StatusCancelled,
		"reminders_dismissed": dismissed,
	})
}
