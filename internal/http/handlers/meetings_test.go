package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pipewise/pipeline-engine/internal/meetings"
)

type fakeMeetingStore struct {
	created   *meetings.Meeting
	createErr error
	cancelErr error
}

func (f *fakeMeetingStore) Create(_ context.Context, m *meetings.Meeting) error {
	if f.createErr != nil {
		return f.createErr
	}
	m.ID = uuid.New()
	f.created = m
	return nil
}

func (f *fakeMeetingStore) Cancel(context.Context, string, uuid.UUID) error {
	return f.cancelErr
}

type fakeReminders struct {
	scheduled int
	dismissed int
}

func (f *fakeReminders) Schedule(_ context.Context, m *meetings.Meeting, now time.Time) (int, error) {
	// Mirror the real scheduler's strictly-future rule.
	for _, offset := range []time.Duration{24 * time.Hour, 8 * time.Hour, 4 * time.Hour, 2 * time.Hour, time.Hour, 15 * time.Minute} {
		if m.ScheduledAt.Add(-offset).After(now) {
			f.scheduled++
		}
	}
	return f.scheduled, nil
}

func (f *fakeReminders) CancelReminders(context.Context, string, uuid.UUID) (int, error) {
	f.dismissed = f.scheduled
	return f.dismissed, nil
}

func TestCreateMeetingSchedulesReminders(t *testing.T) {
	store := &fakeMeetingStore{}
	rem := &fakeReminders{}
	h := NewMeetingsHandler(store, rem, nil, nil)

	at := time.Now().Add(90 * time.Minute).UTC()
	body := fmt.Sprintf(`{"contact_id": %q, "title": "Demo", "scheduled_at": %q}`, uuid.NewString(), at.Format(time.RFC3339))
	req := authedRequest(http.MethodPost, "/api/meetings", "", "", []byte(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	var resp struct {
		RemindersScheduled int `json:"reminders_scheduled"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	// 90 minutes out: only the 1h and 15m offsets are still future.
	if resp.RemindersScheduled != 2 {
		t.Fatalf("expected 2 reminders for a 90-minute lead, got %d", resp.RemindersScheduled)
	}
	if store.created == nil || store.created.DurationMinutes != 60 {
		t.Fatalf("expected default 60-minute duration, got %+v", store.created)
	}
}

func TestCreateMeetingRejectsPastTime(t *testing.T) {
	h := NewMeetingsHandler(&fakeMeetingStore{}, &fakeReminders{}, nil, nil)

	at := time.Now().Add(-time.Hour).UTC()
	body := fmt.Sprintf(`{"contact_id": %q, "title": "Demo", "scheduled_at": %q}`, uuid.NewString(), at.Format(time.RFC3339))
	req := authedRequest(http.MethodPost, "/api/meetings", "", "", []byte(body))
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestCancelMeetingDismissesReminders(t *testing.T) {
	rem := &fakeReminders{scheduled: 4}
	h := NewMeetingsHandler(&fakeMeetingStore{}, rem, nil, nil)

	id := uuid.NewString()
	req := authedRequest(http.MethodPost, "/api/meetings/"+id+"/cancel", "meetingID", id, nil)
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if rem.dismissed != 4 {
		t.Fatalf("expected 4 reminders dismissed, got %d", rem.dismissed)
	}
}

func TestCancelMeetingConflictWhenNotScheduled(t *testing.T) {
	h := NewMeetingsHandler(&fakeMeetingStore{cancelErr: meetings.ErrNotCancellable}, &fakeReminders{}, nil, nil)

	id := uuid.NewString()
	req := authedRequest(http.MethodPost, "/api/meetings/"+id+"/cancel", "meetingID", id, nil)
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
}
