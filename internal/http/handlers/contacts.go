package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pipewise/pipeline-engine/internal/crm"
	"github.com/pipewise/pipeline-engine/internal/nextaction"
	"github.com/pipewise/pipeline-engine/internal/risk"
	"github.com/pipewise/pipeline-engine/internal/tenancy"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// ContactStore is the slice of the contact store the handler needs.
type ContactStore interface {
	GetByID(ctx context.Context, orgID string, id uuid.UUID) (*crm.ContactSnapshot, error)
	SetNextAction(ctx context.Context, orgID string, id uuid.UUID, action crm.ActionType, due time.Time) error
	ClaimOwner(ctx context.Context, orgID string, id uuid.UUID, userID string) error
}

// ContactsHandler serves per-contact insights, next-action application and
// ownership claiming.
type ContactsHandler struct {
	store     ContactStore
	evaluator *risk.Evaluator
	logger    *logging.Logger
	now       func() time.Time
}

// NewContactsHandler creates a contacts handler.
func NewContactsHandler(store ContactStore, evaluator *risk.Evaluator, logger *logging.Logger) *ContactsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &ContactsHandler{store: store, evaluator: evaluator, logger: logger, now: time.Now}
}

// InsightsResponse bundles the computed alerts and suggestion for a contact.
type InsightsResponse struct {
	ContactID  uuid.UUID              `json:"contact_id"`
	Alerts     []risk.Alert           `json:"alerts"`
	Suggestion *nextaction.Suggestion `json:"suggestion,omitempty"`
}

// Insights returns the risk alerts and the recommended next action.
// GET /api/contacts/{contactID}/insights
func (h *ContactsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	orgID, contactID, ok := h.scope(w, r)
	if !ok {
		return
	}

	c, err := h.store.GetByID(r.Context(), orgID, contactID)
	if err != nil {
		if errors.Is(err, crm.ErrContactNotFound) {
			jsonError(w, "contact not found", http.StatusNotFound)
			return
		}
		h.logger.Error("contacts: load failed", "error", err, "contact_id", contactID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	now := h.now()
	resp := InsightsResponse{
		ContactID:  c.ID,
		Alerts:     h.evaluator.Evaluate(c, now),
		Suggestion: nextaction.Recommend(c, now),
	}
	if resp.Alerts == nil {
		resp.Alerts = []risk.Alert{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ApplyNextActionRequest carries an accepted suggestion.
type ApplyNextActionRequest struct {
	Action  crm.ActionType `json:"action"`
	DueDate time.Time      `json:"due_date"`
}

// ApplyNextAction writes a next action onto the contact record.
// POST /api/contacts/{contactID}/next-action
func (h *ContactsHandler) ApplyNextAction(w http.ResponseWriter, r *http.Request) {
	orgID, contactID, ok := h.scope(w, r)
	if !ok {
		return
	}

	var req ApplyNextActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if !req.Action.Valid() {
		jsonError(w, "unknown action type", http.StatusBadRequest)
		return
	}
	if req.DueDate.IsZero() {
		jsonError(w, "due_date is required", http.StatusBadRequest)
		return
	}

	if err := h.store.SetNextAction(r.Context(), orgID, contactID, req.Action, req.DueDate); err != nil {
		if errors.Is(err, crm.ErrContactNotFound) {
			jsonError(w, "contact not found", http.StatusNotFound)
			return
		}
		h.logger.Error("contacts: set next action failed", "error", err, "contact_id", contactID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"contact_id": contactID,
		"action":     req.Action,
		"due_date":   req.DueDate,
	})
}

// Claim assigns the caller as owner of an unowned contact. Exactly one of
// two racing claims succeeds; the loser gets a 409 with the winner.
// POST /api/contacts/{contactID}/claim
func (h *ContactsHandler) Claim(w http.ResponseWriter, r *http.Request) {
	orgID, contactID, ok := h.scope(w, r)
	if !ok {
		return
	}
	userID, ok := tenancy.UserIDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing user", http.StatusUnauthorized)
		return
	}

	err := h.store.ClaimOwner(r.Context(), orgID, contactID, userID)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"contact_id":    contactID,
			"owner_user_id": userID,
		})
	case errors.Is(err, crm.ErrAlreadyOwned):
		owner := ""
		if c, getErr := h.store.GetByID(r.Context(), orgID, contactID); getErr == nil && c.OwnerUserID != nil {
			owner = *c.OwnerUserID
		}
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":         "contact already owned",
			"contact_id":    contactID,
			"owner_user_id": owner,
		})
	case errors.Is(err, crm.ErrContactNotFound):
		jsonError(w, "contact not found", http.StatusNotFound)
	default:
		h.logger.Error("contacts: claim failed", "error", err, "contact_id", contactID)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

// scope resolves the org from context and the contact id from the route.
func (h *ContactsHandler) scope(w http.ResponseWriter, r *http.Request) (string, uuid.UUID, bool) {
	orgID, ok := tenancy.OrgIDFromContext(r.Context())
	if !ok {
		jsonError(w, "missing org", http.StatusUnauthorized)
		return "", uuid.Nil, false
	}
	contactID, err := uuid.Parse(chi.URLParam(r, "contactID"))
	if err != nil {
		jsonError(w, "invalid contact id", http.StatusBadRequest)
		return "", uuid.Nil, false
	}
	return orgID, contactID, true
}
