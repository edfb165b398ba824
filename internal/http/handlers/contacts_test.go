package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pipewise/pipeline-engine/internal/crm"
	"github.com/pipewise/pipeline-engine/internal/risk"
	"github.com/pipewise/pipeline-engine/internal/tenancy"
)

type fakeContactStore struct {
	contact  *crm.ContactSnapshot
	getErr   error
	setErr   error
	claimErr error

	setAction crm.ActionType
	setDue    time.Time
	claimedBy string
}

func (f *fakeContactStore) GetByID(context.Context, string, uuid.UUID) (*crm.ContactSnapshot, error) {
	return f.contact, f.getErr
}

func (f *fakeContactStore) SetNextAction(_ context.Context, _ string, _ uuid.UUID, action crm.ActionType, due time.Time) error {
	f.setAction = action
	f.setDue = due
	return f.setErr
}

func (f *fakeContactStore) ClaimOwner(_ context.Context, _ string, _ uuid.UUID, userID string) error {
	f.claimedBy = userID
	return f.claimErr
}

// authedRequest builds a request carrying tenancy context and a chi route
// param.
func authedRequest(method, target, paramKey, paramVal string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	ctx := tenancy.WithOrgID(req.Context(), "org-1")
	ctx = tenancy.WithUserID(ctx, "u1")
	if paramKey != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(paramKey, paramVal)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func staleContact() *crm.ContactSnapshot {
	now := time.Now()
	return &crm.ContactSnapshot{
		ID:        uuid.New(),
		OrgID:     "org-1",
		Name:      "Acme",
		Stage:     crm.StageNew,
		CreatedAt: now.AddDate(0, 0, -10),
		UpdatedAt: now.AddDate(0, 0, -10),
	}
}

func TestInsightsReturnsAlertsAndSuggestion(t *testing.T) {
	c := staleContact()
	h := NewContactsHandler(&fakeContactStore{contact: c}, risk.NewEvaluator(time.UTC), nil)

	req := authedRequest(http.MethodGet, "/api/contacts/"+c.ID.String()+"/insights", "contactID", c.ID.String(), nil)
	rec := httptest.NewRecorder()
	h.Insights(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	var resp InsightsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Alerts) == 0 {
		t.Fatalf("expected alerts for a 10-day-old untouched contact")
	}
	if resp.Suggestion == nil || resp.Suggestion.Action != crm.ActionCall {
		t.Fatalf("expected a call suggestion for a fresh NEW contact, got %+v", resp.Suggestion)
	}
}

func TestInsightsContactNotFound(t *testing.T) {
	h := NewContactsHandler(&fakeContactStore{getErr: crm.ErrContactNotFound}, risk.NewEvaluator(time.UTC), nil)

	id := uuid.NewString()
	req := authedRequest(http.MethodGet, "/api/contacts/"+id+"/insights", "contactID", id, nil)
	rec := httptest.NewRecorder()
	h.Insights(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestInsightsInvalidContactID(t *testing.T) {
	h := NewContactsHandler(&fakeContactStore{}, risk.NewEvaluator(time.UTC), nil)

	req := authedRequest(http.MethodGet, "/api/contacts/abc/insights", "contactID", "abc", nil)
	rec := httptest.NewRecorder()
	h.Insights(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestApplyNextActionValidation(t *testing.T) {
	store := &fakeContactStore{}
	h := NewContactsHandler(store, risk.NewEvaluator(time.UTC), nil)
	id := uuid.NewString()

	cases := []struct {
		name string
		body string
	}{
		{"unknown action", `{"action": "dance", "due_date": "2025-07-01T10:00:00Z"}`},
		{"missing due date", `{"action": "call"}`},
		{"malformed json", `{`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := authedRequest(http.MethodPost, "/api/contacts/"+id+"/next-action", "contactID", id, []byte(tc.body))
			rec := httptest.NewRecorder()
			h.ApplyNextAction(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rec.Code)
			}
		})
	}
}

func TestApplyNextActionPersists(t *testing.T) {
	store := &fakeContactStore{}
	h := NewContactsHandler(store, risk.NewEvaluator(time.UTC), nil)
	id := uuid.NewString()

	body := []byte(`{"action": "schedule_meeting", "due_date": "2025-07-01T10:00:00Z"}`)
	req := authedRequest(http.MethodPost, "/api/contacts/"+id+"/next-action", "contactID", id, body)
	rec := httptest.NewRecorder()
	h.ApplyNextAction(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if store.setAction != crm.ActionScheduleMeeting {
		t.Fatalf("expected schedule_meeting persisted, got %q", store.setAction)
	}
}

func TestClaimSuccess(t *testing.T) {
	store := &fakeContactStore{}
	h := NewContactsHandler(store, risk.NewEvaluator(time.UTC), nil)
	id := uuid.NewString()

	req := authedRequest(http.MethodPost, "/api/contacts/"+id+"/claim", "contactID", id, nil)
	rec := httptest.NewRecorder()
	h.Claim(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if store.claimedBy != "u1" {
		t.Fatalf("expected claim by u1, got %q", store.claimedBy)
	}
}

func TestClaimConflictReturnsWinner(t *testing.T) {
	winner := "u2"
	c := staleContact()
	c.OwnerUserID = &winner
	store := &fakeContactStore{contact: c, claimErr: crm.ErrAlreadyOwned}
	h := NewContactsHandler(store, risk.NewEvaluator(time.UTC), nil)

	req := authedRequest(http.MethodPost, "/api/contacts/"+c.ID.String()+"/claim", "contactID", c.ID.String(), nil)
	rec := httptest.NewRecorder()
	h.Claim(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rec.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["owner_user_id"] != winner {
		t.Fatalf("expected winner %q in response, got %v", winner, resp["owner_user_id"])
	}
}

func TestClaimNotFound(t *testing.T) {
	store := &fakeContactStore{claimErr: crm.ErrContactNotFound}
	h := NewContactsHandler(store, risk.NewEvaluator(time.UTC), nil)
	id := uuid.NewString()

	req := authedRequest(http.MethodPost, "/api/contacts/"+id+"/claim", "contactID", id, nil)
	rec := httptest.NewRecorder()
	h.Claim(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}
