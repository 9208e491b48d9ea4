// Package judge adapts LLM providers into per-span attribution judgments.
// Adapters return terminal ProviderResults: every timeout, transport error,
// and malformed response is absorbed into an OK=false result so the cascade
// never sees a raw provider failure.
package judge

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/callrouter/internal/model"
)

// Request is the material a judge sees for one span.
type Request struct {
	CallID     string
	Span       model.SpanContext
	Candidates []model.EvidenceCandidate
}

// Judge produces one provider's judgment for a span.
type Judge interface {
	Provider() string
	Judge(ctx context.Context, req Request) model.ProviderResult
}

// failedResult builds the terminal result for a provider failure.
func failedResult(provider, modelName, errorCode string, err error) model.ProviderResult {
	reasoning := errorCode
	if err != nil {
		reasoning = fmt.Sprintf("%s: %v", errorCode, err)
	}
	return model.ProviderResult{
		Provider:  provider,
		Model:     modelName,
		Decision:  model.DecisionReview,
		Reasoning: reasoning,
		ErrorCode: errorCode,
	}
}

// buildPrompt renders the span and its candidates for the judge models.
// Both providers share the prompt so their judgments differ only by model.
func buildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString("Attribute this call transcript span to one of the candidate construction projects.\n\n")
	fmt.Fprintf(&b, "Span %d transcript:\n%s\n\n", req.Span.SpanIndex, req.Span.TranscriptText)

	if len(req.Candidates) > 0 {
		b.WriteString("Candidate projects:\n")
		for _, c := range req.Candidates {
			fmt.Fprintf(&b, "- %s", c.ProjectID)
			if c.Evidence.TierLabel != "" {
				fmt.Fprintf(&b, " (evidence tier: %s)", c.Evidence.TierLabel)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with JSON only:
{
  "decision": "assign" | "review" | "none",
  "project_id": "<candidate id or null>",
  "confidence": <0..1>,
  "reasoning": "<one or two sentences>",
  "anchors": [{"match_type": "...", "term": "...", "candidate_project_id": "..."}],
  "strong_anchor": <true if any anchor is an exact name, alias, address fragment, or client name>
}`)
	return b.String()
}
