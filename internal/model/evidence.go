package model

import "strings"

// Anchor is evidence that a transcript region refers to a specific project.
type Anchor struct {
	MatchType          string `json:"match_type"`
	Term               string `json:"term,omitempty"`
	CandidateProjectID string `json:"candidate_project_id,omitempty"`
}

// Strong-anchor match types. The set is closed: anything else is treated as
// a weak signal regardless of how confident the retrieval layer sounds.
const (
	MatchExactProjectName = "exact_project_name"
	MatchAlias            = "alias"
	MatchAddressFragment  = "address_fragment"
	MatchClientName       = "client_name"
)

var strongAnchorTypes = map[string]bool{
	MatchExactProjectName: true,
	MatchAlias:            true,
	MatchAddressFragment:  true,
	MatchClientName:       true,
}

// IsStrongAnchorType reports whether matchType is in the fixed strong set.
func IsStrongAnchorType(matchType string) bool {
	return strongAnchorTypes[matchType]
}

// CandidateEvidence carries the retrieval-layer signals for one candidate.
type CandidateEvidence struct {
	RRFScore       *float64     `json:"rrf_score,omitempty"`
	TierLabel      EvidenceTier `json:"evidence_tier_label,omitempty"`
	SourceStrength float64      `json:"source_strength,omitempty"`
	AliasMatches   []Anchor     `json:"alias_matches,omitempty"`
}

// EvidenceCandidate is a project candidate surfaced by retrieval for a span.
type EvidenceCandidate struct {
	ProjectID string            `json:"project_id"`
	Evidence  CandidateEvidence `json:"evidence"`
}

// DistinctProjectIDs returns the set of non-blank candidate project ids,
// preserving first-seen order.
func DistinctProjectIDs(candidates []EvidenceCandidate) []string {
	seen := make(map[string]bool, len(candidates))
	var ids []string
	for _, c := range candidates {
		id := strings.TrimSpace(c.ProjectID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
