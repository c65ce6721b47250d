package refinement

import (
	"math"
	"unicode/utf8"
)

// DefaultScoreDivisor is the length at which LengthScorer reaches 1.0
const DefaultScoreDivisor = 500

// Scorer assigns a confidence to a refinement result
type Scorer interface {
	Score(text string) float64
}

// ScorerFunc adapts a function to Scorer
type ScorerFunc func(text string) float64

// Score calls f
func (f ScorerFunc) Score(text string) float64 {
	return f(text)
}

// LengthScorer scores by length: min(1, characters/Divisor).
// Characters are Unicode code points. A non-positive Divisor uses
// DefaultScoreDivisor.
type LengthScorer struct {
	Divisor float64
}

// Score implements Scorer
func (s LengthScorer) Score(text string) float64 {
	divisor := s.Divisor
	if divisor <= 0 {
		divisor = DefaultScoreDivisor
	}
	return math.Min(1.0, float64(utf8.RuneCountInString(text))/divisor)
}
