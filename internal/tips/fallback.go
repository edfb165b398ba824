package tips

import (
	"context"

	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// FallbackCompleter wraps a primary completer with a secondary provider.
// If the primary fails, the request is retried once against the fallback.
type FallbackCompleter struct {
	primary  Completer
	fallback Completer
	logger   *logging.Logger
}

// NewFallbackCompleter creates a fallback-enabled completer. fallback may
// be nil, in which case only the primary is used.
func NewFallbackCompleter(primary, fallback Completer, logger *logging.Logger) *FallbackCompleter {
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackCompleter{primary: primary, fallback: fallback, logger: logger}
}

// Complete tries the primary, then the fallback.
func (c *FallbackCompleter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		return resp, nil
	}

	c.logger.Warn("tips: primary completer failed",
		"error", err.Error(),
		"fallback_available", c.fallback != nil,
	)
	if c.fallback == nil {
		return CompletionResponse{}, err
	}

	resp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		c.logger.Error("tips: fallback completer also failed",
			"primary_error", err.Error(),
			"fallback_error", fallbackErr.Error(),
		)
		return CompletionResponse{}, fallbackErr
	}
	return resp, nil
}

var _ Completer = (*FallbackCompleter)(nil)
