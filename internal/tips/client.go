package tips

import "context"

// CompletionRequest is a single-shot text generation request.
type CompletionRequest struct {
	System      []string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

// CompletionResponse carries the raw generated text.
type CompletionResponse struct {
	Text string
}

// Completer abstracts the text-generation backend. Implementations must be
// safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error)
}
