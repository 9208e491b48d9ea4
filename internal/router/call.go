package router

import (
	"go.uber.org/zap"

	"github.com/sells-group/callrouter/internal/model"
	"github.com/sells-group/callrouter/internal/prefilter"
)

// CallInput is one full call: the raw transcript for the junk prefilter
// plus the per-span inputs prepared by the collaborator layers.
type CallInput struct {
	CallID          string      `json:"call_id"`
	Transcript      string      `json:"transcript"`
	DurationSeconds *float64    `json:"duration_seconds,omitempty"`
	Spans           []SpanInput `json:"spans"`
}

// CallOutcome is the result of routing one call.
type CallOutcome struct {
	CallID    string              `json:"call_id"`
	Junk      prefilter.Result    `json:"junk"`
	Spans     []SpanOutcome       `json:"spans,omitempty"`
	Resegment bool                `json:"resegment_needed"`
	Verdicts  []model.SpanVerdict `json:"verdicts,omitempty"`
}

// RouteCall screens the call and, if it survives, routes each span in
// order. Each assigned span's project id feeds the next span's prior
// assignments so the coherence guardrail sees the running baseline.
func RouteCall(in CallInput, policy Policy) CallOutcome {
	out := CallOutcome{CallID: in.CallID}

	out.Junk = prefilter.Evaluate(in.Transcript, in.DurationSeconds, policy.Prefilter)
	if out.Junk.IsJunk {
		zap.L().Info("router: call filtered as junk",
			zap.String("call_id", in.CallID),
			zap.Strings("reason_codes", out.Junk.ReasonCodes),
		)
		return out
	}

	var priorAssigned []string
	for _, span := range in.Spans {
		if len(span.Context.PriorAssignedIDs) == 0 {
			span.Context.PriorAssignedIDs = append([]string(nil), priorAssigned...)
		}

		spanOut := RouteSpan(span, policy)
		out.Spans = append(out.Spans, spanOut)
		out.Verdicts = append(out.Verdicts, spanOut.Verdict)
		if spanOut.Resegment.Triggered {
			out.Resegment = true
		}
		if spanOut.Verdict.Decision == model.DecisionAssign {
			priorAssigned = append(priorAssigned, spanOut.Verdict.ProjectID)
		}
	}

	return out
}
