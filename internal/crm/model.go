package crm

import (
	"time"

	"github.com/google/uuid"
)

// Stage is a contact's position in the sales pipeline.
type Stage string

const (
	StageNew              Stage = "new"
	StageProspecting      Stage = "prospecting"
	StageContacted        Stage = "contacted"
	StageMeetingScheduled Stage = "meeting_scheduled"
	StageWon              Stage = "won"
	StageLost             Stage = "lost"
)

// ActiveStages are the non-terminal stages the engine acts on.
var ActiveStages = []Stage{StageNew, StageProspecting, StageContacted, StageMeetingScheduled}

// IsActive reports whether the stage is non-terminal.
func (s Stage) IsActive() bool {
	switch s {
	case StageNew, StageProspecting, StageContacted, StageMeetingScheduled:
		return true
	}
	return false
}

// Valid reports whether the stage is one of the known values.
func (s Stage) Valid() bool {
	return s.IsActive() || s == StageWon || s == StageLost
}

// Temperature is the subjective buying heat assigned to a contact.
type Temperature string

const (
	TemperatureCold Temperature = "cold"
	TemperatureWarm Temperature = "warm"
	TemperatureHot  Temperature = "hot"
)

// InteractionType identifies the channel of a logged touch point.
type InteractionType string

const (
	InteractionCall         InteractionType = "call"
	InteractionMessage      InteractionType = "message"
	InteractionEmail        InteractionType = "email"
	InteractionMeeting      InteractionType = "meeting"
	InteractionVisit        InteractionType = "visit"
	InteractionPresentation InteractionType = "presentation"
	InteractionProposal     InteractionType = "proposal"
	InteractionQuote        InteractionType = "quote"
)

// InteractionOutcome records how a touch point ended.
type InteractionOutcome string

const (
	OutcomeNoResponse         InteractionOutcome = "no_response"
	OutcomeResponded          InteractionOutcome = "responded"
	OutcomeAwaitingReturn     InteractionOutcome = "awaiting_return"
	OutcomeNegotiating        InteractionOutcome = "negotiating"
	OutcomeReferredThirdParty InteractionOutcome = "referred_third_party"
)

// Interaction is an append-only record of a single touch point.
type Interaction struct {
	ID         uuid.UUID          `json:"id"`
	ContactID  uuid.UUID          `json:"contact_id"`
	Type       InteractionType    `json:"type"`
	Outcome    InteractionOutcome `json:"outcome"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// ActionType identifies a planned or suggested next step on a contact.
type ActionType string

const (
	ActionCall            ActionType = "call"
	ActionMessage         ActionType = "message"
	ActionEmail           ActionType = "email"
	ActionScheduleMeeting ActionType = "schedule_meeting"
	ActionSendProposal    ActionType = "send_proposal"
	ActionSendQuote       ActionType = "send_quote"
	ActionFollowUp        ActionType = "follow_up"
)

// Valid reports whether the action type is one of the known values.
func (a ActionType) Valid() bool {
	switch a {
	case ActionCall, ActionMessage, ActionEmail, ActionScheduleMeeting,
		ActionSendProposal, ActionSendQuote, ActionFollowUp:
		return true
	}
	return false
}

// ContactSnapshot is the engine's immutable view of a contact. Interactions
// are ordered most recent first.
type ContactSnapshot struct {
	ID             uuid.UUID    `json:"id"`
	OrgID          string       `json:"org_id"`
	Name           string       `json:"name"`
	Stage          Stage        `json:"stage"`
	Temperature    *Temperature `json:"temperature,omitempty"`
	EstimatedValue *float64     `json:"estimated_value,omitempty"`
	OwnerUserID    *string      `json:"owner_user_id,omitempty"`
	NextActionType *ActionType  `json:"next_action_type,omitempty"`
	NextActionDate *time.Time   `json:"next_action_date,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`

	Interactions []Interaction `json:"interactions,omitempty"`
}

// LastInteraction returns the most recent interaction, or nil when the
// contact was never touched.
func (c *ContactSnapshot) LastInteraction() *Interaction {
	if len(c.Interactions) == 0 {
		return nil
	}
	return &c.Interactions[0]
}

// IsHot reports whether the contact is flagged as a hot opportunity.
func (c *ContactSnapshot) IsHot() bool {
	return c.Temperature != nil && *c.Temperature == TemperatureHot
}

// User is the slice of the product's user record this engine needs.
type User struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

const RoleAdmin = "admin"

// DaysSince returns whole days elapsed between then and now, never negative.
func DaysSince(now, then time.Time) int {
	d := int(now.Sub(then).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// DaysOverdue compares a due date against today using calendar days only;
// positive results mean the date is in the past, zero means due today.
func DaysOverdue(now, due time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	ny, nm, nd := now.In(loc).Date()
	dy, dm, dd := due.In(loc).Date()
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	dueDay := time.Date(dy, dm, dd, 0, 0, 0, 0, time.UTC)
	return int(today.Sub(dueDay).Hours() / 24)
}
