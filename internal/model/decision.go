// Package model defines the shared value types for call-to-project attribution.
package model

// Decision is the attribution outcome for a single span.
type Decision string

const (
	DecisionAssign Decision = "assign"
	DecisionReview Decision = "review"
	DecisionNone   Decision = "none"
)

// Valid reports whether d is one of the three known decisions.
func (d Decision) Valid() bool {
	switch d {
	case DecisionAssign, DecisionReview, DecisionNone:
		return true
	}
	return false
}

// EvidenceTier is a qualitative bucket derived from fused multi-channel
// retrieval score.
type EvidenceTier string

const (
	TierSmokingGun EvidenceTier = "smoking_gun"
	TierStrong     EvidenceTier = "strong"
	TierModerate   EvidenceTier = "moderate"
	TierWeak       EvidenceTier = "weak"
	TierAnti       EvidenceTier = "anti"
)

// Valid reports whether t is a recognized tier label. Unrecognized labels
// degrade to pass-through downstream, never to an error.
func (t EvidenceTier) Valid() bool {
	switch t {
	case TierSmokingGun, TierStrong, TierModerate, TierWeak, TierAnti:
		return true
	}
	return false
}
