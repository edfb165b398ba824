package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pipewise/pipeline-engine/internal/feed"
	"github.com/pipewise/pipeline-engine/internal/tenancy"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// FeedBuilder assembles the aggregated feed for one user.
type FeedBuilder interface {
	Build(ctx context.Context, orgID, userID string, now time.Time) (*feed.Feed, error)
}

// FeedHandler serves the announcement feed.
type FeedHandler struct {
	builder FeedBuilder
	logger  *logging.Logger
	now     func() time.Time
}

// NewFeedHandler creates a feed handler.
func NewFeedHandler(builder FeedBuilder, logger *logging.Logger) *FeedHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &FeedHandler{builder: builder, logger: logger, now: time.Now}
}

// Get returns the aggregated feed for the authenticated user.
// GET /api/feed
func (h *FeedHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	f, err := h.builder.Build(r.Context(), orgID, userID, h.now())
	if err != nil {
		h.logger.Error("feed: build failed", "error", err, "org_id", orgID, "user_id", userID)
		jsonError(w, "internal error", http.StatusInternalServerError)
		return
	}
	if f.Items == nil {
		f.Items = []feed.Item{}
	}
	writeJSON(w, http.StatusOK, f)
}
