// Package rerank fuses multi-channel retrieval ranks into one score per
// candidate project using Reciprocal Rank Fusion and classifies each fused
// score into an evidence tier.
package rerank

import "sort"

// Channel identifies one retrieval channel.
type Channel string

const (
	ChannelStructured Channel = "structured"
	ChannelFTS        Channel = "fts"
	ChannelTrigram    Channel = "trgm"
	ChannelVector     Channel = "vector"
)

// ChannelResult is one channel's ranked project list, best first.
type ChannelResult struct {
	Channel  Channel
	Projects []string
}

// RankedCandidate carries per-channel 1-based ranks and the fused score for
// one project.
type RankedCandidate struct {
	ProjectID string          `json:"project_id"`
	Ranks     map[Channel]int `json:"ranks"`
	RRFScore  float64         `json:"rrf_score"`
}

// MergeChannelResults deduplicates channel results by project id, recording
// each channel's 1-based rank. Insertion order follows first appearance.
func MergeChannelResults(results []ChannelResult) []RankedCandidate {
	index := make(map[string]int)
	var merged []RankedCandidate

	for _, cr := range results {
		for i, projectID := range cr.Projects {
			if projectID == "" {
				continue
			}
			pos, ok := index[projectID]
			if !ok {
				pos = len(merged)
				index[projectID] = pos
				merged = append(merged, RankedCandidate{
					ProjectID: projectID,
					Ranks:     make(map[Channel]int),
				})
			}
			merged[pos].Ranks[cr.Channel] = i + 1
		}
	}

	return merged
}

// Fuse computes each candidate's RRF score and returns the candidates
// sorted by score descending. Channels where a candidate is absent
// contribute nothing. Ties preserve input order.
func Fuse(candidates []RankedCandidate, k int) []RankedCandidate {
	if k <= 0 {
		k = DefaultK
	}

	fused := make([]RankedCandidate, len(candidates))
	copy(fused, candidates)
	for i := range fused {
		score := 0.0
		for _, rank := range fused[i].Ranks {
			if rank > 0 {
				score += 1.0 / float64(k+rank)
			}
		}
		fused[i].RRFScore = score
	}

	sort.SliceStable(fused, func(a, b int) bool {
		return fused[a].RRFScore > fused[b].RRFScore
	})
	return fused
}

// Pipeline merges, fuses, and truncates to topN. topN <= 0 means no limit.
func Pipeline(results []ChannelResult, k, topN int) []RankedCandidate {
	fused := Fuse(MergeChannelResults(results), k)
	if topN > 0 && len(fused) > topN {
		fused = fused[:topN]
	}
	return fused
}
