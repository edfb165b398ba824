package nextaction

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pipewise/pipeline-engine/internal/crm"
)

var testNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func snapshot(stage crm.Stage, interactions ...crm.Interaction) *crm.ContactSnapshot {
	return &crm.ContactSnapshot{
		ID:           uuid.New(),
		OrgID:        "org-1",
		Name:         "Mercado Bom Preço",
		Stage:        stage,
		CreatedAt:    testNow.AddDate(0, 0, -1),
		UpdatedAt:    testNow,
		Interactions: interactions,
	}
}

func daysAgo(n int) time.Time { return testNow.AddDate(0, 0, -n) }

func TestTerminalStagesGetNothing(t *testing.T) {
	assert.Nil(t, Recommend(snapshot(crm.StageWon), testNow))
	assert.Nil(t, Recommend(snapshot(crm.StageLost), testNow))
}

func TestNewContactNoInteractionsSuggestsCall(t *testing.T) {
	s := Recommend(snapshot(crm.StageNew), testNow)
	require.NotNil(t, s)
	assert.Equal(t, crm.ActionCall, s.Action)
	assert.Equal(t, PriorityHigh, s.Priority)
}

func TestNewUnansweredCallSuggestsMessage(t *testing.T) {
	s := Recommend(snapshot(crm.StageNew, crm.Interaction{
		Type: crm.InteractionCall, Outcome: crm.OutcomeNoResponse, OccurredAt: daysAgo(1),
	}), testNow)
	require.NotNil(t, s)
	assert.Equal(t, crm.ActionMessage, s.Action)
	assert.Equal(t, PriorityHigh, s.Priority)
}

func TestProspectingRespondedSuggestsMeeting(t *testing.T) {
	s := Recommend(snapshot(crm.StageProspecting, crm.Interaction{
		Type: crm.InteractionCall, Outcome: crm.OutcomeResponded, OccurredAt: daysAgo(1),
	}), testNow)
	require.NotNil(t, s)
	assert.Equal(t, crm.ActionScheduleMeeting, s.Action)
	assert.Equal(t, PriorityHigh, s.Priority)
}

func TestProspectingRespondedTooOldFallsThrough(t *testing.T) {
	// Same rule but 4 days out of the 0-2 window: must not suggest the
	// meeting; the generic fallback applies instead.
	s := Recommend(snapshot(crm.StageProspecting, crm.Interaction{
		Type: crm.InteractionCall, Outcome: crm.OutcomeResponded, OccurredAt: daysAgo(4),
	}), testNow)
	require.NotNil(t, s)
	assert.Equal(t, crm.ActionFollowUp, s.Action)
	assert.Equal(t, PriorityMedium, s.Priority)
}

func TestMeetingHeldSuggestsProposal(t *testing.T) {
	for _, typ := range []crm.InteractionType{crm.InteractionMeeting, crm.InteractionVisit, crm.InteractionPresentation} {
		s := Recommend(snapshot(crm.StageMeetingScheduled, crm.Interaction{
			Type: typ, Outcome: crm.OutcomeResponded, OccurredAt: daysAgo(1),
		}), testNow)
		require.NotNil(t, s, "type %s", typ)
		assert.Equal(t, crm.ActionSendProposal, s.Action)
	}
}

func TestNegotiationStalledSuggestsCall(t *testing.T) {
	s := Recommend(snapshot(crm.StageMeetingScheduled, crm.Interaction{
		Type: crm.InteractionProposal, Outcome: crm.OutcomeNegotiating, OccurredAt: daysAgo(3),
	}), testNow)
	require.NotNil(t, s)
	assert.Equal(t, crm.ActionCall, s.Action)
	assert.Equal(t, PriorityHigh, s.Priority)
}

func TestDayBoundsAreInclusive(t *testing.T) {
	// Prospecting no-response window is 2-5 days.
	for _, days := range []int{2, 5} {
		s := Recommend(snapshot(crm.StageProspecting, crm.Interaction{
			Type: crm.InteractionMessage, Outcome: crm.OutcomeNoResponse, OccurredAt: daysAgo(days),
		}), testNow)
		require.NotNil(t, s, "%d days", days)
		assert.Equal(t, crm.ActionMessage, s.Action, "%d days", days)
	}

	// 1 day is below the window; no rule matches and the contact is not
	// idle long enough for the fallback.
	s := Recommend(snapshot(crm.StageProspecting, crm.Interaction{
		Type: crm.InteractionMessage, Outcome: crm.OutcomeNoResponse, OccurredAt: daysAgo(1),
	}), testNow)
	assert.Nil(t, s)
}

func TestFirstMatchWins(t *testing.T) {
	// A NEW contact that responded 1 day ago matches the responded→meeting
	// rule; it must not fall through to anything later in the list.
	s := Recommend(snapshot(crm.StageNew, crm.Interaction{
		Type: crm.InteractionMessage, Outcome: crm.OutcomeResponded, OccurredAt: daysAgo(1),
	}), testNow)
	require.NotNil(t, s)
	assert.Equal(t, crm.ActionScheduleMeeting, s.Action)
}

func TestFallbackUsesCreationDateWithoutInteractions(t *testing.T) {
	c := snapshot(crm.StageContacted)
	c.CreatedAt = daysAgo(5)
	s := Recommend(c, testNow)
	require.NotNil(t, s)
	assert.Equal(t, crm.ActionFollowUp, s.Action)

	fresh := snapshot(crm.StageContacted)
	fresh.CreatedAt = daysAgo(2)
	assert.Nil(t, Recommend(fresh, testNow))
}

func TestDecisionListOrderIsStable(t *testing.T) {
	// The table order is part of the contract. Guard the anchor entries so
	// an accidental reorder fails loudly.
	require.GreaterOrEqual(t, len(decisionList), 11)
	assert.True(t, decisionList[0].requireNone)
	assert.Equal(t, crm.ActionCall, decisionList[0].action)
	assert.Equal(t, crm.StageNew, decisionList[1].stage)
	assert.Equal(t, crm.ActionMessage, decisionList[1].action)
	assert.Equal(t, crm.StageProspecting, decisionList[4].stage)
	assert.Equal(t, crm.ActionScheduleMeeting, decisionList[4].action)
	assert.Equal(t, crm.StageMeetingScheduled, decisionList[9].stage)
	assert.Equal(t, crm.ActionSendProposal, decisionList[9].action)
}
