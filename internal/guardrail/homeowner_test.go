package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHomeownerActsAsStrongAnchor_NoConflict(t *testing.T) {
	meta := &HomeownerMeta{Override: true, ProjectID: "proj_123"}

	assert.True(t, HomeownerActsAsStrongAnchor(meta))
}

func TestHomeownerActsAsStrongAnchor_OverrideOff(t *testing.T) {
	meta := &HomeownerMeta{Override: false, ProjectID: "proj_123"}

	assert.False(t, HomeownerActsAsStrongAnchor(meta))
}

func TestHomeownerActsAsStrongAnchor_ConflictProject(t *testing.T) {
	meta := &HomeownerMeta{
		Override:          true,
		ProjectID:         "proj_123",
		ConflictProjectID: "proj_conflict",
	}

	assert.False(t, HomeownerActsAsStrongAnchor(meta))
}

func TestHomeownerActsAsStrongAnchor_ConflictTerm(t *testing.T) {
	meta := &HomeownerMeta{
		Override:     true,
		ProjectID:    "proj_123",
		ConflictTerm: "permar",
	}

	assert.False(t, HomeownerActsAsStrongAnchor(meta))
}

func TestHomeownerActsAsStrongAnchor_BlankConflictIgnored(t *testing.T) {
	meta := &HomeownerMeta{
		Override:          true,
		ProjectID:         "proj_123",
		ConflictProjectID: "   ",
		ConflictTerm:      "",
	}

	assert.True(t, HomeownerActsAsStrongAnchor(meta))
}

func TestHomeownerActsAsStrongAnchor_NilMeta(t *testing.T) {
	assert.False(t, HomeownerActsAsStrongAnchor(nil))
}

func TestEvaluateHomeownerOverride_SingleCandidate(t *testing.T) {
	meta := &HomeownerMeta{Override: true, ProjectID: "proj_homeowner"}

	out := EvaluateHomeownerOverride(meta, []string{"proj_homeowner"})

	assert.True(t, out.StrongAnchorActive)
	assert.Equal(t, "proj_homeowner", out.DeterministicProjectID)
	assert.Empty(t, out.SkipReason)
}

func TestEvaluateHomeownerOverride_NoCandidates(t *testing.T) {
	meta := &HomeownerMeta{Override: true, ProjectID: "proj_homeowner"}

	out := EvaluateHomeownerOverride(meta, nil)

	assert.True(t, out.StrongAnchorActive)
	assert.Equal(t, "proj_homeowner", out.DeterministicProjectID)
}

func TestEvaluateHomeownerOverride_MultiProjectSpan(t *testing.T) {
	meta := &HomeownerMeta{Override: true, ProjectID: "proj_homeowner"}

	out := EvaluateHomeownerOverride(meta, []string{"proj_homeowner", "proj_other"})

	assert.False(t, out.StrongAnchorActive)
	assert.Empty(t, out.DeterministicProjectID)
	assert.Equal(t, "multi_project_span", out.SkipReason)
}

func TestEvaluateHomeownerOverride_MissingProjectID(t *testing.T) {
	meta := &HomeownerMeta{Override: true, ProjectID: " "}

	out := EvaluateHomeownerOverride(meta, nil)

	assert.False(t, out.StrongAnchorActive)
	assert.Equal(t, "missing_project_id", out.SkipReason)
}

func TestEvaluateHomeownerOverride_InactiveWhenConflict(t *testing.T) {
	meta := &HomeownerMeta{
		Override:     true,
		ProjectID:    "proj_homeowner",
		ConflictTerm: "riverside",
	}

	out := EvaluateHomeownerOverride(meta, []string{"proj_homeowner"})

	assert.False(t, out.StrongAnchorActive)
	assert.Empty(t, out.SkipReason)
}

func TestEvaluateHomeownerOverride_BlankCandidatesIgnored(t *testing.T) {
	meta := &HomeownerMeta{Override: true, ProjectID: "proj_homeowner"}

	out := EvaluateHomeownerOverride(meta, []string{"", "  ", "proj_homeowner"})

	assert.True(t, out.StrongAnchorActive)
}
