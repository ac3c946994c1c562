// Package modulation implements the feedback signal that couples
// re-evaluation outcomes to numeric drift in memory attributes.
package modulation

import (
	"math"
	"math/rand"
	"time"

	"github.com/xiy/rmm-mcp/pkg/types"
)

// Perturbation bounds applied per cycle, scaled by the current modulation.
const (
	strengthDrift = 0.1
	valenceDrift  = 0.05
)

// Source tracks a single scalar modulation strength. Feedback moves it off
// baseline depending on the last outcome; Apply perturbs a memory with it.
type Source struct {
	baseline      float64
	strengthFloor float64
	current       float64
	rng           *rand.Rand
}

// NewSource builds a modulation source. A nil rng gets a time-seeded source.
func NewSource(baseline, strengthFloor float64, rng *rand.Rand) *Source {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Source{
		baseline:      baseline,
		strengthFloor: strengthFloor,
		current:       baseline,
		rng:           rng,
	}
}

// Current returns the present modulation strength.
func (s *Source) Current() float64 { return s.current }

// Feedback updates the modulation from a re-evaluation outcome and returns
// the matching signal. Corrected inferences enhance plasticity; unresolved
// dissonance dampens it.
func (s *Source) Feedback(outcome types.Outcome) types.Signal {
	switch outcome {
	case types.OutcomeCorrected:
		s.current = s.baseline * 1.5
		return types.SignalPlasticity
	case types.OutcomeDissonance:
		s.current = s.baseline * 0.5
		return types.SignalProcessing
	default:
		s.current = s.baseline
		return types.SignalNeutral
	}
}

// Apply perturbs the memory's strength and valence by the current modulation
// scaled with a bounded uniform draw, then re-clamps both invariants.
func (s *Source) Apply(m *types.Memory) {
	m.Strength = math.Max(s.strengthFloor, m.Strength+s.current*s.uniform(-strengthDrift, strengthDrift))
	m.CurrentValence = clampValence(m.CurrentValence + s.current*s.uniform(-valenceDrift, valenceDrift))
}

func (s *Source) uniform(lo, hi float64) float64 {
	return lo + s.rng.Float64()*(hi-lo)
}

func clampValence(v float64) float64 {
	return math.Max(-1.0, math.Min(1.0, v))
}
