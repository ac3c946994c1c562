// Package values scores free text against a fixed table of value principles.
//
// Scoring is keyword matching plus banded random draws, not language
// understanding. Scores are fresh samples every call; callers must treat
// exact values as unstable and rely only on band membership.
package values

import (
	"math"
	"math/rand"
	"strings"
	"time"
)

// Score bands, chosen by which indicator sets matched.
const (
	highBandLow  = 0.7
	highBandHigh = 1.0
	lowBandLow   = 0.0
	lowBandHigh  = 0.3
	midBandLow   = 0.3
	midBandHigh  = 0.7
	neutralLow   = 0.35
	neutralHigh  = 0.65
	jitter       = 0.05
)

// Scorer maps text to per-principle alignment scores in [0, 1].
type Scorer struct {
	table Table
	rng   *rand.Rand
}

// NewScorer builds a scorer over the given table. A nil rng gets a
// time-seeded source; tests inject a fixed one.
func NewScorer(table Table, rng *rand.Rand) *Scorer {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Scorer{table: table, rng: rng}
}

// Principles returns the principle names this scorer evaluates, sorted.
func (s *Scorer) Principles() []string {
	return s.table.Principles()
}

// Score evaluates text against every principle. Higher scores mean stronger
// misalignment with the principle's virtue side.
func (s *Scorer) Score(text string) map[string]float64 {
	text = strings.ToLower(text)
	scores := make(map[string]float64, len(s.table))
	for name, sp := range s.table {
		negatives := countMatches(text, sp.Negative)
		positives := countMatches(text, sp.Positive)

		var score float64
		switch {
		case negatives > 0 && positives == 0:
			score = s.uniform(highBandLow, highBandHigh)
		case positives > 0 && negatives == 0:
			score = s.uniform(lowBandLow, lowBandHigh)
		case negatives > 0 && positives > 0:
			score = s.uniform(midBandLow, midBandHigh)
		default:
			score = s.uniform(neutralLow, neutralHigh)
		}

		score += s.uniform(-jitter, jitter)
		scores[name] = round2(clamp01(score))
	}
	return scores
}

func (s *Scorer) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func countMatches(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func clamp01(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
