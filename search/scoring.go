package search

import "math"

// Default scoring constants.
const (
	DefaultAlpha = 0.3
	DefaultBeta  = 0.7
)

// Scorer computes the composite score of a semantic candidate. Lower is better.
type Scorer struct {
	// Alpha weighs the length-difference penalty.
	Alpha float64
	// Beta multiplies the score of candidates also found by lexical search.
	Beta float64
}

// DefaultScorer returns a scorer with the default constants.
func DefaultScorer() Scorer {
	return Scorer{Alpha: DefaultAlpha, Beta: DefaultBeta}
}

// LengthPenalty returns 1 + Alpha * |target - query| / (query + 1).
func (s Scorer) LengthPenalty(queryTokens, targetTokens int) float64 {
	ratio := math.Abs(float64(targetTokens-queryTokens)) / float64(queryTokens+1)
	return 1 + s.Alpha*ratio
}

// Score returns distance scaled by the length penalty, and by Beta when the
// candidate is also a lexical hit.
func (s Scorer) Score(distance float32, queryTokens, targetTokens int, inLexical bool) float64 {
	score := float64(distance) * s.LengthPenalty(queryTokens, targetTokens)
	if inLexical {
		score *= s.Beta
	}
	return score
}
