package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callrouter/internal/model"
)

func TestRouteCall_JunkShortCircuits(t *testing.T) {
	out := RouteCall(CallInput{
		CallID:     "call-1",
		Transcript: "Please leave a message after the tone.",
		Spans:      []SpanInput{consensusInput("p1")},
	}, DefaultPolicy())

	assert.True(t, out.Junk.IsJunk)
	assert.Empty(t, out.Spans)
	assert.Empty(t, out.Verdicts)
}

func TestRouteCall_RoutesSpansInOrder(t *testing.T) {
	transcript := "Mike: morning, the cabinet install for the Hendersons is on track.\n" +
		"Dana: great, and the countertop template is scheduled for Tuesday."

	span2 := consensusInput("p1")
	span2.Context.SpanIndex = 2

	out := RouteCall(CallInput{
		CallID:     "call-2",
		Transcript: transcript,
		Spans:      []SpanInput{consensusInput("p1"), span2},
	}, DefaultPolicy())

	assert.False(t, out.Junk.IsJunk)
	require.Len(t, out.Verdicts, 2)
	assert.Equal(t, model.DecisionAssign, out.Verdicts[0].Decision)
	assert.Equal(t, model.DecisionAssign, out.Verdicts[1].Decision)
}

func TestRouteCall_PriorAssignmentsFeedCoherence(t *testing.T) {
	transcript := "Mike: the tile order for Riverside came in.\n" +
		"Dana: good, and scheduling is set for the plumbing rough in."

	// Span 2 hops to p2 with no switch signal; span 1's assignment should
	// pull it back.
	span2 := SpanInput{
		Context: model.SpanContext{
			SpanIndex:      2,
			TranscriptText: "and the rough in is next week",
		},
		Stages: []model.StagePair{{
			First:  strongAssign("openai", "p2", 0.82),
			Second: strongAssign("anthropic", "p2", 0.88),
		}},
		Candidates: []model.EvidenceCandidate{
			{ProjectID: "p1", Evidence: model.CandidateEvidence{TierLabel: model.TierStrong}},
			{ProjectID: "p2", Evidence: model.CandidateEvidence{TierLabel: model.TierStrong}},
		},
	}

	out := RouteCall(CallInput{
		CallID:     "call-3",
		Transcript: transcript,
		Spans:      []SpanInput{consensusInput("p1"), span2},
	}, DefaultPolicy())

	require.Len(t, out.Verdicts, 2)
	assert.Equal(t, "p1", out.Verdicts[0].ProjectID)
	assert.Equal(t, "p1", out.Verdicts[1].ProjectID)
	assert.True(t, out.Verdicts[1].Enforced)
}

func TestRouteCall_ExplicitPriorAssignmentsRespected(t *testing.T) {
	transcript := "Mike: permit update on both jobs.\nDana: go ahead with the schedule."

	span := consensusInput("p2")
	span.Context.SpanIndex = 2
	span.Context.PriorAssignedIDs = []string{"p2"}

	out := RouteCall(CallInput{
		CallID:     "call-4",
		Transcript: transcript,
		Spans:      []SpanInput{span},
	}, DefaultPolicy())

	require.Len(t, out.Verdicts, 1)
	assert.Equal(t, "p2", out.Verdicts[0].ProjectID)
	assert.False(t, out.Verdicts[0].Enforced)
}

func TestRouteCall_ResegmentSignalBubblesUp(t *testing.T) {
	transcript := "Mike: we need to talk about the estimate for both houses.\n" +
		"Dana: sure, walk me through it."

	span := consensusInput("p1")
	span.Anchors = []model.Anchor{
		{MatchType: model.MatchExactProjectName, CandidateProjectID: "p1"},
		{MatchType: model.MatchAddressFragment, CandidateProjectID: "p2"},
	}

	out := RouteCall(CallInput{
		CallID:     "call-5",
		Transcript: transcript,
		Spans:      []SpanInput{span},
	}, DefaultPolicy())

	assert.True(t, out.Resegment)
}
