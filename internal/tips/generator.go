package tips

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pipewise/pipeline-engine/pkg/logging"
)

// ContactSummary is the per-contact slice of a user's pending bucket sent
// to the generator.
type ContactSummary struct {
	ID        string
	Name      string
	Stage     string
	Reason    string
	DaysStale int
	Value     float64
}

// Generator produces one short tip per flagged contact. One external call
// is made per bucket, not per contact; every failure mode (disabled
// backend, timeout, malformed output, missing key) degrades to a
// deterministic tip so the sweep never aborts on tips.
type Generator struct {
	completer Completer
	timeout   time.Duration
	logger    *logging.Logger
}

// NewGenerator creates a tip generator. completer may be nil (disabled);
// every tip is then deterministic.
func NewGenerator(completer Completer, timeout time.Duration, logger *logging.Logger) *Generator {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Generator{completer: completer, timeout: timeout, logger: logger}
}

// ForBucket returns a tip for every contact in the bucket, keyed by
// contact id, plus how many of them fell back to deterministic text. The
// result always contains every input id.
func (g *Generator) ForBucket(ctx context.Context, contacts []ContactSummary) (map[string]string, int) {
	out := make(map[string]string, len(contacts))

	fallbacks := 0
	generated := g.generate(ctx, contacts)
	for _, c := range contacts {
		if tip, ok := generated[c.ID]; ok && strings.TrimSpace(tip) != "" {
			out[c.ID] = strings.TrimSpace(tip)
			continue
		}
		out[c.ID] = DeterministicTip(c)
		fallbacks++
	}
	return out, fallbacks
}

func (g *Generator) generate(ctx context.Context, contacts []ContactSummary) map[string]string {
	if g.completer == nil || len(contacts) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.completer.Complete(ctx, CompletionRequest{
		System: []string{
			"You are a sales coach. For each contact below, write one short, concrete follow-up tip in the language of the contact data.",
			`Answer with a single JSON object mapping contact id to tip text, like {"<id>": "<tip>"}. No other text.`,
		},
		Prompt:      bucketPrompt(contacts),
		MaxTokens:   1024,
		Temperature: 0.4,
	})
	if err != nil {
		g.logger.Warn("tips: generation failed, using deterministic tips", "error", err, "contacts", len(contacts))
		return nil
	}

	parsed, err := parseBatchResponse(resp.Text)
	if err != nil {
		g.logger.Warn("tips: unparsable generation output, using deterministic tips", "error", err)
		return nil
	}
	return parsed
}

func bucketPrompt(contacts []ContactSummary) string {
	var sb strings.Builder
	sb.WriteString("Flagged contacts:\n")
	for _, c := range contacts {
		sb.WriteString(fmt.Sprintf("- id=%s name=%q stage=%s reason=%s days=%d", c.ID, c.Name, c.Stage, c.Reason, c.DaysStale))
		if c.Value > 0 {
			sb.WriteString(fmt.Sprintf(" value=%.2f", c.Value))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// parseBatchResponse extracts the contact-id-keyed JSON object from the
// model output, tolerating surrounding prose or code fences.
func parseBatchResponse(text string) (map[string]string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("tips: no JSON object in response")
	}

	var out map[string]string
	if err := json.Unmarshal([]byte(text[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("tips: decode response: %w", err)
	}
	return out, nil
}

// DeterministicTip synthesizes a tip from the contact's reason and fields.
// Used whenever generation is unavailable; stable for the same input.
func DeterministicTip(c ContactSummary) string {
	name := c.Name
	if name == "" {
		name = "this contact"
	}
	switch c.Reason {
	case "stale":
		return fmt.Sprintf("%s has been quiet for %d days. Reach out today with a quick status check before the deal goes cold.", name, c.DaysStale)
	case "overdue":
		return fmt.Sprintf("The planned next action for %s is overdue. Do it now or reschedule it to a realistic date.", name)
	case "due_today":
		return fmt.Sprintf("Today is the day for your planned action with %s. Block time for it before the day fills up.", name)
	case "unassigned":
		return fmt.Sprintf("%s has no owner. Assign a responsible user so the lead does not slip through.", name)
	default:
		return fmt.Sprintf("Take a moment to review %s and plan the next step.", name)
	}
}
