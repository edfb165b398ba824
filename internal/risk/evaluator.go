package risk

import (
	"fmt"
	"time"

	"github.com/pipewise/pipeline-engine/internal/crm"
)

// StageSLA is the (warn, critical) day pair after which a stage-resident
// contact counts as slow.
type StageSLA struct {
	WarnDays     int
	CriticalDays int
}

// slaByStage is static product configuration, not user-editable.
var slaByStage = map[crm.Stage]StageSLA{
	crm.StageNew:              {WarnDays: 2, CriticalDays: 5},
	crm.StageProspecting:      {WarnDays: 5, CriticalDays: 10},
	crm.StageContacted:        {WarnDays: 3, CriticalDays: 7},
	crm.StageMeetingScheduled: {WarnDays: 5, CriticalDays: 10},
}

// SLAFor returns the SLA pair for a stage, and whether one exists.
func SLAFor(stage crm.Stage) (StageSLA, bool) {
	sla, ok := slaByStage[stage]
	return sla, ok
}

const (
	highValueThreshold  = 10000
	neverContactedAfter = 3 // days
	coolingDownAfter    = 3 // days
	overdueCriticalAt   = 3 // days
)

// Evaluator runs the risk rules over contact snapshots. It holds no state;
// the clock is injected so evaluations are reproducible.
type Evaluator struct {
	loc *time.Location
}

// NewEvaluator creates an evaluator using loc for date-only comparisons.
func NewEvaluator(loc *time.Location) *Evaluator {
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{loc: loc}
}

// Evaluate runs all rules over a single contact and returns its alerts
// sorted critical-first.
func (e *Evaluator) Evaluate(c *crm.ContactSnapshot, now time.Time) []Alert {
	alerts := e.independentRules(c, now)
	if a, ok := e.highValueAtRisk(c, alerts); ok {
		alerts = append(alerts, a)
	}
	sortBySeverity(alerts)
	return alerts
}

// EvaluateBatch runs the independent rules over every contact first, then
// the compound high-value rule against each contact's accumulated alerts,
// then re-sorts globally. The compound rule reads rule output, not the raw
// snapshot, so the two passes must not be interleaved.
func (e *Evaluator) EvaluateBatch(contacts []*crm.ContactSnapshot, now time.Time) []Alert {
	perContact := make([][]Alert, len(contacts))
	var all []Alert
	for i, c := range contacts {
		perContact[i] = e.independentRules(c, now)
		all = append(all, perContact[i]...)
	}
	for i, c := range contacts {
		if a, ok := e.highValueAtRisk(c, perContact[i]); ok {
			all = append(all, a)
		}
	}
	sortBySeverity(all)
	return all
}

// independentRules is the first pass: rules that read only the snapshot.
func (e *Evaluator) independentRules(c *crm.ContactSnapshot, now time.Time) []Alert {
	var alerts []Alert
	if a, ok := e.staleDeal(c, now); ok {
		alerts = append(alerts, a)
	}
	if a, ok := e.noNextAction(c); ok {
		alerts = append(alerts, a)
	}
	if a, ok := e.taskOverdue(c, now); ok {
		alerts = append(alerts, a)
	}
	if a, ok := e.noOwner(c); ok {
		alerts = append(alerts, a)
	}
	if a, ok := e.neverContacted(c, now); ok {
		alerts = append(alerts, a)
	}
	if a, ok := e.coolingDown(c, now); ok {
		alerts = append(alerts, a)
	}
	return alerts
}

func (e *Evaluator) staleDeal(c *crm.ContactSnapshot, now time.Time) (Alert, bool) {
	if !c.Stage.IsActive() {
		return Alert{}, false
	}
	sla, ok := slaByStage[c.Stage]
	if !ok {
		return Alert{}, false
	}
	daysStale := crm.DaysSince(now, c.UpdatedAt)

	var severity Severity
	switch {
	case daysStale >= sla.CriticalDays:
		severity = SeverityCritical
	case daysStale >= sla.WarnDays:
		severity = SeverityHigh
	default:
		return Alert{}, false
	}

	return Alert{
		Rule:        RuleStaleDeal,
		Severity:    severity,
		Title:       "Deal going stale",
		Description: fmt.Sprintf("%s has had no movement for %d days", c.Name, daysStale),
		ContactID:   c.ID,
		ContactName: c.Name,
		DaysStale:   daysStale,
	}, true
}

func (e *Evaluator) noNextAction(c *crm.ContactSnapshot) (Alert, bool) {
	if !c.Stage.IsActive() || c.NextActionType != nil || c.NextActionDate != nil {
		return Alert{}, false
	}
	return Alert{
		Rule:        RuleNoNextAction,
		Severity:    SeverityMedium,
		Title:       "No next action planned",
		Description: fmt.Sprintf("%s has no follow-up scheduled", c.Name),
		ContactID:   c.ID,
		ContactName: c.Name,
	}, true
}

func (e *Evaluator) taskOverdue(c *crm.ContactSnapshot, now time.Time) (Alert, bool) {
	if c.NextActionDate == nil {
		return Alert{}, false
	}
	// Date-only comparison: a task due earlier today is not overdue.
	overdueDays := crm.DaysOverdue(now, *c.NextActionDate, e.loc)
	if overdueDays <= 0 {
		return Alert{}, false
	}

	severity := SeverityHigh
	if overdueDays >= overdueCriticalAt {
		severity = SeverityCritical
	}

	return Alert{
		Rule:        RuleTaskOverdue,
		Severity:    severity,
		Title:       "Task overdue",
		Description: fmt.Sprintf("Next action for %s is %d day(s) overdue", c.Name, overdueDays),
		ContactID:   c.ID,
		ContactName: c.Name,
		DaysStale:   overdueDays,
	}, true
}

func (e *Evaluator) noOwner(c *crm.ContactSnapshot) (Alert, bool) {
	if !c.Stage.IsActive() || c.OwnerUserID != nil {
		return Alert{}, false
	}
	return Alert{
		Rule:        RuleNoOwner,
		Severity:    SeverityMedium,
		Title:       "Nobody owns this deal",
		Description: fmt.Sprintf("%s has no responsible user assigned", c.Name),
		ContactID:   c.ID,
		ContactName: c.Name,
	}, true
}

func (e *Evaluator) neverContacted(c *crm.ContactSnapshot, now time.Time) (Alert, bool) {
	if !c.Stage.IsActive() || len(c.Interactions) > 0 {
		return Alert{}, false
	}
	age := crm.DaysSince(now, c.CreatedAt)
	if age <= neverContactedAfter {
		return Alert{}, false
	}
	return Alert{
		Rule:        RuleNeverContacted,
		Severity:    SeverityHigh,
		Title:       "Never contacted",
		Description: fmt.Sprintf("%s was created %d days ago and nobody reached out", c.Name, age),
		ContactID:   c.ID,
		ContactName: c.Name,
		DaysStale:   age,
	}, true
}

func (e *Evaluator) coolingDown(c *crm.ContactSnapshot, now time.Time) (Alert, bool) {
	if !c.IsHot() || !c.Stage.IsActive() {
		return Alert{}, false
	}
	last := c.LastInteraction()
	if last == nil || last.Outcome != crm.OutcomeNoResponse {
		return Alert{}, false
	}
	age := crm.DaysSince(now, last.OccurredAt)
	if age <= coolingDownAfter {
		return Alert{}, false
	}
	return Alert{
		Rule:        RuleCoolingDown,
		Severity:    SeverityHigh,
		Title:       "Hot contact cooling down",
		Description: fmt.Sprintf("%s is hot but silent for %d days since the last attempt", c.Name, age),
		ContactID:   c.ID,
		ContactName: c.Name,
		DaysStale:   age,
	}, true
}

// highValueAtRisk is the second pass: it fires only when the first pass
// already produced a critical alert for the same contact.
func (e *Evaluator) highValueAtRisk(c *crm.ContactSnapshot, firstPass []Alert) (Alert, bool) {
	if c.EstimatedValue == nil || *c.EstimatedValue < highValueThreshold {
		return Alert{}, false
	}
	hasCritical := false
	for _, a := range firstPass {
		if a.ContactID == c.ID && a.Severity == SeverityCritical {
			hasCritical = true
			break
		}
	}
	if !hasCritical {
		return Alert{}, false
	}
	return Alert{
		Rule:        RuleHighValueAtRisk,
		Severity:    SeverityCritical,
		Title:       "High value deal at risk",
		Description: fmt.Sprintf("%s is worth %.2f and already has a critical alert", c.Name, *c.EstimatedValue),
		ContactID:   c.ID,
		ContactName: c.Name,
		Value:       *c.EstimatedValue,
	}, true
}
