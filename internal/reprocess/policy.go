package reprocess

import (
	"math/rand"
	"strings"

	"github.com/xiy/rmm-mcp/internal/config"
	"github.com/xiy/rmm-mcp/pkg/types"
)

// TriggerPolicy decides the re-evaluation outcome for a memory given the
// freshly computed pre-scores. OutcomeCorrected tells the service to rewrite
// the inference; OutcomeDissonance marks a failed correction attempt.
type TriggerPolicy interface {
	Evaluate(m *types.Memory, preScores map[string]float64, rng *rand.Rand) types.Outcome
}

// ThresholdPolicy triggers a correction whenever any principle's score
// exceeds the threshold. It never produces dissonance.
type ThresholdPolicy struct {
	Threshold float64
}

func (p ThresholdPolicy) Evaluate(_ *types.Memory, preScores map[string]float64, _ *rand.Rand) types.Outcome {
	for _, score := range preScores {
		if score > p.Threshold {
			return types.OutcomeCorrected
		}
	}
	return types.OutcomeNoChange
}

// ChancePolicy is the variant trigger: a literal keyword per principle gates
// a random-chance trigger, and a triggered correction only succeeds with
// CorrectionChance probability, otherwise dissonance remains.
type ChancePolicy struct {
	Triggers         map[string]string
	TriggerChance    float64
	CorrectionChance float64
}

// DefaultChanceTriggers maps the low-fluidity value principles to the
// inference keywords that can clash with them.
func DefaultChanceTriggers() map[string]string {
	return map[string]string{
		"Greedy":        "gain",
		"Angry":         "upset",
		"Affiliational": "alone",
	}
}

func (p ChancePolicy) Evaluate(m *types.Memory, _ map[string]float64, rng *rand.Rand) types.Outcome {
	inference := strings.ToLower(m.CurrentInference)
	triggered := false
	for _, keyword := range p.Triggers {
		if strings.Contains(inference, keyword) && rng.Float64() < p.TriggerChance {
			triggered = true
		}
	}
	if !triggered {
		return types.OutcomeNoChange
	}
	if rng.Float64() < p.CorrectionChance {
		return types.OutcomeCorrected
	}
	return types.OutcomeDissonance
}

// PolicyFromConfig builds the configured trigger policy.
func PolicyFromConfig(cfg config.Config) TriggerPolicy {
	if cfg.TriggerPolicy == config.PolicyChance {
		return ChancePolicy{
			Triggers:         DefaultChanceTriggers(),
			TriggerChance:    cfg.TriggerChance,
			CorrectionChance: cfg.CorrectionChance,
		}
	}
	return ThresholdPolicy{Threshold: cfg.TriggerThreshold}
}
