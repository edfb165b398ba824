package risk

import (
	"sort"

	"github.com/google/uuid"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rule identifiers. These are stable: the sweep derives notification types
// from them and the UI keys styling off them.
const (
	RuleStaleDeal       = "stale_deal"
	RuleNoNextAction    = "no_next_action"
	RuleTaskOverdue     = "task_overdue"
	RuleNoOwner         = "no_owner"
	RuleNeverContacted  = "never_contacted"
	RuleHighValueAtRisk = "high_value_at_risk"
	RuleCoolingDown     = "cooling_down"
)

// Alert is a transient finding about one contact. It lives for the duration
// of a single evaluation and is never persisted as-is.
type Alert struct {
	Rule        string    `json:"rule"`
	Severity    Severity  `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	ContactID   uuid.UUID `json:"contact_id"`
	ContactName string    `json:"contact_name"`
	DaysStale   int       `json:"days_stale,omitempty"`
	Value       float64   `json:"value,omitempty"`
}

// sortBySeverity orders alerts critical-first, preserving input order for
// equal severities.
func sortBySeverity(alerts []Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return severityRank[alerts[i].Severity] < severityRank[alerts[j].Severity]
	})
}
