package judge

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/callrouter/internal/model"
)

// judgment is the JSON shape both providers are prompted to return.
type judgment struct {
	Decision     string         `json:"decision"`
	ProjectID    *string        `json:"project_id"`
	Confidence   float64        `json:"confidence"`
	Reasoning    string         `json:"reasoning"`
	Anchors      []model.Anchor `json:"anchors"`
	StrongAnchor bool           `json:"strong_anchor"`
}

// parseJudgment decodes a model response into the fields of a successful
// ProviderResult. Markdown code fences around the JSON are tolerated.
func parseJudgment(raw string) (judgment, error) {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}

	var j judgment
	if err := json.Unmarshal([]byte(text), &j); err != nil {
		return judgment{}, eris.Wrap(err, "judge: decode judgment")
	}

	decision := model.Decision(j.Decision)
	if !decision.Valid() {
		return judgment{}, eris.Errorf("judge: unrecognized decision %q", j.Decision)
	}
	if j.Confidence < 0 {
		j.Confidence = 0
	}
	if j.Confidence > 1 {
		j.Confidence = 1
	}

	// A non-assign judgment never carries a project id.
	if decision != model.DecisionAssign {
		j.ProjectID = nil
	}
	if decision == model.DecisionAssign && (j.ProjectID == nil || strings.TrimSpace(*j.ProjectID) == "") {
		// Assign without a project is not trustworthy; degrade to review.
		j.Decision = string(model.DecisionReview)
		j.ProjectID = nil
	}

	return j, nil
}

// toResult assembles a successful ProviderResult from a parsed judgment.
func (j judgment) toResult(provider, modelName string) model.ProviderResult {
	projectID := ""
	if j.ProjectID != nil {
		projectID = strings.TrimSpace(*j.ProjectID)
	}
	return model.ProviderResult{
		OK:           true,
		Provider:     provider,
		Model:        modelName,
		ProjectID:    projectID,
		Confidence:   j.Confidence,
		Decision:     model.Decision(j.Decision),
		Reasoning:    j.Reasoning,
		Anchors:      j.Anchors,
		StrongAnchor: j.StrongAnchor,
	}
}
