package types

import "time"

// Outcome classifies the result of the re-evaluation stage.
type Outcome string

const (
	OutcomeCorrected  Outcome = "inference_corrected"
	OutcomeDissonance Outcome = "dissonance_high"
	OutcomeNoChange   Outcome = "no_change"
)

// Signal is the modulation feedback emitted in response to an outcome.
type Signal string

const (
	SignalPlasticity Signal = "plasticity_enhanced"
	SignalProcessing Signal = "processing_needed"
	SignalNeutral    Signal = "neutral"
)

// Memory is one reprocessable episodic record.
//
// Strength never drops below the configured floor, CurrentValence stays in
// [-1, 1], and every value-alignment score stays in [0, 1]. Only the
// reprocessing service mutates a Memory once stored.
type Memory struct {
	Identifier        string             `json:"identifier"`
	Content           string             `json:"content"`
	CurrentInference  string             `json:"current_inference"`
	InitialValence    float64            `json:"initial_valence"`
	CurrentValence    float64            `json:"current_valence"`
	Strength          float64            `json:"strength"`
	ReprocessingCount int                `json:"reprocessing_count"`
	IsAdaptive        bool               `json:"is_adaptive"`
	ValueAlignment    map[string]float64 `json:"value_alignment_scores"`
	AgreementShift    float64            `json:"agreement_shift"`
	MischievousShift  float64            `json:"mischievous_shift"`
}

// Clone returns a deep copy safe to hand to presentation layers.
func (m *Memory) Clone() Memory {
	out := *m
	out.ValueAlignment = make(map[string]float64, len(m.ValueAlignment))
	for k, v := range m.ValueAlignment {
		out.ValueAlignment[k] = v
	}
	return out
}

// AddInput describes a new memory to store.
type AddInput struct {
	Identifier string  `json:"identifier" yaml:"identifier"`
	Content    string  `json:"content" yaml:"content"`
	Inference  string  `json:"inference" yaml:"inference"`
	Valence    float64 `json:"valence,omitempty" yaml:"valence"`
}

// CycleReport summarizes one completed reprocessing cycle for the journal.
type CycleReport struct {
	ID                string    `json:"id"`
	MemoryID          string    `json:"memory_id"`
	Outcome           Outcome   `json:"outcome"`
	Signal            Signal    `json:"signal"`
	AgreementShift    float64   `json:"agreement_shift"`
	MischievousShift  float64   `json:"mischievous_shift"`
	Strength          float64   `json:"strength"`
	Valence           float64   `json:"valence"`
	ReprocessingCount int       `json:"reprocessing_count"`
	DurationMS        int64     `json:"duration_ms"`
	CreatedAt         time.Time `json:"created_at"`
}
