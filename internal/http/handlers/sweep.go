package handlers

import (
	"context"
	"net/http"

	"github.com/pipewise/pipeline-engine/internal/sweep"
	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// SweepRunner runs the full-tenant notification sweep.
type SweepRunner interface {
	Run(ctx context.Context) (sweep.Summary, error)
}

// SweepHandler exposes the internal sweep trigger. The route sits behind
// the shared-secret middleware; overlapping triggers are safe because the
// orchestrator dedups through its trailing window.
type SweepHandler struct {
	runner SweepRunner
	logger *logging.Logger
}

// NewSweepHandler creates a sweep handler.
func NewSweepHandler(runner SweepRunner, logger *logging.Logger) *SweepHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &SweepHandler{runner: runner, logger: logger}
}

// Trigger runs the sweep synchronously and returns its summary.
// POST /internal/sweep
func (h *SweepHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	summary, err := h.runner.Run(r.Context())
	if err != nil {
		h.logger.Error("sweep: trigger failed", "error", err)
		jsonError(w, "sweep failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
