package model

// ProviderResult is one model provider's judgment for a span. It is a
// terminal result: the judge layer resolves timeouts and malformed
// responses into OK=false before the cascade ever sees it.
type ProviderResult struct {
	OK           bool     `json:"ok"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model"`
	ProjectID    string   `json:"project_id,omitempty"`
	Confidence   float64  `json:"confidence"`
	Decision     Decision `json:"decision"`
	Reasoning    string   `json:"reasoning"`
	Anchors      []Anchor `json:"anchors,omitempty"`
	StrongAnchor bool     `json:"strong_anchor"`
	ErrorCode    string   `json:"error_code,omitempty"`
}

// Failed reports whether the result represents a provider failure.
func (r ProviderResult) Failed() bool {
	return !r.OK || r.ErrorCode != ""
}

// StagePair holds the up-to-two provider results collected for one cascade
// stage. Nil slots mean the provider was not consulted at that stage.
type StagePair struct {
	First  *ProviderResult `json:"first"`
	Second *ProviderResult `json:"second"`
}

// Results returns the non-nil results in provider order.
func (s StagePair) Results() []*ProviderResult {
	var out []*ProviderResult
	if s.First != nil {
		out = append(out, s.First)
	}
	if s.Second != nil {
		out = append(out, s.Second)
	}
	return out
}
