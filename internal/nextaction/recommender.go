package nextaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/pipewise/pipeline-engine/internal/crm"
)

// Priority ranks how urgent a suggestion is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Suggestion is a transient recommendation. It becomes durable only when a
// caller applies it back onto the contact record.
type Suggestion struct {
	Action    crm.ActionType `json:"action"`
	Reason    string         `json:"reason"`
	Priority  Priority       `json:"priority"`
	ContactID uuid.UUID      `json:"contact_id"`
}

// rule is one entry of the decision list. Nil predicate fields mean "don't
// care". Day bounds are inclusive and measured against the last interaction.
type rule struct {
	stage       crm.Stage
	requireNone bool // matches only when the contact has zero interactions
	lastTypes   []crm.InteractionType
	lastOutcome crm.InteractionOutcome
	minDays     int
	maxDays     int // -1 = unbounded
	action      crm.ActionType
	reason      string
	priority    Priority
}

// decisionList is evaluated strictly top-down; the first rule whose
// predicates all hold wins. The order is part of the contract — reordering
// entries silently changes recommendations.
var decisionList = []rule{
	{stage: crm.StageNew, requireNone: true,
		action: crm.ActionCall, priority: PriorityHigh,
		reason: "New contact with no touch points yet; open with a call"},
	{stage: crm.StageNew, lastTypes: []crm.InteractionType{crm.InteractionCall}, lastOutcome: crm.OutcomeNoResponse, minDays: 0, maxDays: 1,
		action: crm.ActionMessage, priority: PriorityHigh,
		reason: "Call went unanswered; a message keeps the thread warm"},
	{stage: crm.StageNew, lastTypes: []crm.InteractionType{crm.InteractionMessage}, lastOutcome: crm.OutcomeNoResponse, minDays: 2, maxDays: 4,
		action: crm.ActionCall, priority: PriorityHigh,
		reason: "Message ignored for days; switch back to a call"},
	{stage: crm.StageNew, lastOutcome: crm.OutcomeResponded, minDays: 0, maxDays: 2,
		action: crm.ActionScheduleMeeting, priority: PriorityHigh,
		reason: "Contact replied; lock in a meeting while interest is fresh"},
	{stage: crm.StageProspecting, lastOutcome: crm.OutcomeResponded, minDays: 0, maxDays: 2,
		action: crm.ActionScheduleMeeting, priority: PriorityHigh,
		reason: "Prospect responded recently; propose a meeting"},
	{stage: crm.StageProspecting, lastOutcome: crm.OutcomeNoResponse, minDays: 2, maxDays: 5,
		action: crm.ActionMessage, priority: PriorityMedium,
		reason: "No response while prospecting; nudge with a message"},
	{stage: crm.StageProspecting, lastOutcome: crm.OutcomeAwaitingReturn, minDays: 3, maxDays: 7,
		action: crm.ActionCall, priority: PriorityMedium,
		reason: "Promised return never came; call to re-engage"},
	{stage: crm.StageContacted, lastOutcome: crm.OutcomeResponded, minDays: 0, maxDays: 3,
		action: crm.ActionScheduleMeeting, priority: PriorityHigh,
		reason: "Conversation is open; move it to a meeting"},
	{stage: crm.StageContacted, lastOutcome: crm.OutcomeAwaitingReturn, minDays: 2, maxDays: 5,
		action: crm.ActionMessage, priority: PriorityMedium,
		reason: "Waiting on their return; a short message keeps it moving"},
	{stage: crm.StageMeetingScheduled, lastTypes: []crm.InteractionType{crm.InteractionMeeting, crm.InteractionVisit, crm.InteractionPresentation}, minDays: 0, maxDays: 1,
		action: crm.ActionSendProposal, priority: PriorityHigh,
		reason: "Meeting just happened; send the proposal while it's fresh"},
	{stage: crm.StageMeetingScheduled, lastOutcome: crm.OutcomeNegotiating, minDays: 2, maxDays: 5,
		action: crm.ActionCall, priority: PriorityHigh,
		reason: "Negotiation stalled for days; call to close the open points"},
}

// fallbackIdleDays is how long a contact can sit idle before the generic
// follow-up suggestion kicks in.
const fallbackIdleDays = 3

// Recommend returns at most one suggestion for the contact, or nil when
// nothing applies. Terminal-stage contacts never get suggestions.
func Recommend(c *crm.ContactSnapshot, now time.Time) *Suggestion {
	if !c.Stage.IsActive() {
		return nil
	}

	last := c.LastInteraction()
	var daysSinceLast int
	if last != nil {
		daysSinceLast = crm.DaysSince(now, last.OccurredAt)
	}

	for _, r := range decisionList {
		if r.matches(c, last, daysSinceLast) {
			return &Suggestion{
				Action:    r.action,
				Reason:    r.reason,
				Priority:  r.priority,
				ContactID: c.ID,
			}
		}
	}

	// Generic fallback: anything idle for more than three days deserves a
	// follow-up; idle is measured by last interaction, or creation when
	// there are none.
	idleSince := c.CreatedAt
	if last != nil {
		idleSince = last.OccurredAt
	}
	if crm.DaysSince(now, idleSince) > fallbackIdleDays {
		return &Suggestion{
			Action:    crm.ActionFollowUp,
			Reason:    "No recent activity; follow up to keep the deal alive",
			Priority:  PriorityMedium,
			ContactID: c.ID,
		}
	}
	return nil
}

func (r rule) matches(c *crm.ContactSnapshot, last *crm.Interaction, daysSinceLast int) bool {
	if c.Stage != r.stage {
		return false
	}
	if r.requireNone {
		return last == nil
	}
	if last == nil {
		return false
	}
	if len(r.lastTypes) > 0 {
		found := false
		for _, t := range r.lastTypes {
			if last.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if r.lastOutcome != "" && last.Outcome != r.lastOutcome {
		return false
	}
	if daysSinceLast < r.minDays {
		return false
	}
	if r.maxDays >= 0 && daysSinceLast > r.maxDays {
		return false
	}
	return true
}
