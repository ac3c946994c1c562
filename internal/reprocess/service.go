// Package reprocess runs the four-stage memory reprocessing cycle:
// reactivate, re-evaluate, rewrite, retain.
package reprocess

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/xiy/rmm-mcp/internal/config"
	"github.com/xiy/rmm-mcp/internal/modulation"
	"github.com/xiy/rmm-mcp/internal/values"
	"github.com/xiy/rmm-mcp/pkg/types"
)

// ErrNotFound reports a cycle or read against an unknown identifier.
// It is an ordinary outcome, not a fault; a not-found cycle mutates nothing.
var ErrNotFound = errors.New("memory not found")

const initialStrength = 1.0

// Journal receives completed cycle reports and memory snapshots.
// Writes are best-effort; the cycle itself never fails on journal errors.
type Journal interface {
	InsertCycle(ctx context.Context, rep types.CycleReport) error
	UpsertSnapshot(ctx context.Context, m types.Memory) error
}

// Service owns the memory collection and orchestrates reprocessing cycles.
// All access is serialized through one mutex so concurrent callers always
// observe a consistent snapshot of counts, scores and shift diagnostics.
type Service struct {
	mu       sync.Mutex
	memories map[string]*types.Memory

	scorer  *values.Scorer
	source  *modulation.Source
	policy  TriggerPolicy
	rng     *rand.Rand
	journal Journal
	logger  *log.Logger

	strengthFloor float64
}

// NewService constructs a reprocessing service. journal may be nil when no
// persistence collaborator is attached. A nil rng gets a time-seeded source.
func NewService(cfg config.Config, scorer *values.Scorer, source *modulation.Source, journal Journal, logger *log.Logger, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Service{
		memories:      make(map[string]*types.Memory),
		scorer:        scorer,
		source:        source,
		policy:        PolicyFromConfig(cfg),
		rng:           rng,
		journal:       journal,
		logger:        logger,
		strengthFloor: cfg.StrengthFloor,
	}
}

// Add validates and stores a new memory, scoring its initial inference
// immediately. Re-adding an existing identifier overwrites the previous
// record with a warning.
func (s *Service) Add(ctx context.Context, in types.AddInput) (types.Memory, error) {
	in.Identifier = strings.TrimSpace(in.Identifier)
	if in.Identifier == "" {
		return types.Memory{}, errors.New("identifier must not be empty")
	}
	if strings.TrimSpace(in.Content) == "" {
		return types.Memory{}, errors.New("content must not be empty")
	}
	if strings.TrimSpace(in.Inference) == "" {
		return types.Memory{}, errors.New("inference must not be empty")
	}
	if in.Valence < -1.0 || in.Valence > 1.0 {
		return types.Memory{}, fmt.Errorf("valence %v outside [-1, 1]", in.Valence)
	}

	s.mu.Lock()
	if _, exists := s.memories[in.Identifier]; exists {
		s.logger.Warn("memory already exists; overwriting", "identifier", in.Identifier)
	}
	m := &types.Memory{
		Identifier:       in.Identifier,
		Content:          in.Content,
		CurrentInference: in.Inference,
		InitialValence:   in.Valence,
		CurrentValence:   in.Valence,
		Strength:         initialStrength,
	}
	m.ValueAlignment = s.scorer.Score(m.CurrentInference)
	s.memories[in.Identifier] = m
	out := m.Clone()
	s.mu.Unlock()

	s.snapshot(ctx, out)
	return out, nil
}

// Get returns a copy of one memory's full attribute set.
func (s *Service) Get(identifier string) (types.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memories[identifier]
	if !ok {
		return types.Memory{}, fmt.Errorf("get %q: %w", identifier, ErrNotFound)
	}
	return m.Clone(), nil
}

// List returns copies of all memories, sorted by identifier.
func (s *Service) List() []types.Memory {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Memory, 0, len(s.memories))
	for _, m := range s.memories {
		out = append(out, m.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

// Load installs previously persisted memories without rescoring them.
// Existing entries with the same identifier are replaced.
func (s *Service) Load(mems []types.Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range mems {
		m := mems[i].Clone()
		s.memories[m.Identifier] = &m
	}
}

// RunCycle executes one full reprocessing cycle for the identifier:
// reactivate, re-evaluate, rewrite, retain. On ErrNotFound nothing is
// mutated; otherwise the cycle always runs to completion.
func (s *Service) RunCycle(ctx context.Context, identifier string) (types.CycleReport, error) {
	started := time.Now()

	s.mu.Lock()
	m, ok := s.memories[identifier]
	if !ok {
		s.mu.Unlock()
		return types.CycleReport{}, fmt.Errorf("reactivate %q: %w", identifier, ErrNotFound)
	}

	// Reactivate: the memory becomes labile for this cycle.
	m.ReprocessingCount++

	// Re-evaluate against the value model. preScores is an explicit copy of
	// the pre-state; diagnostics are computed fresh each cycle from it.
	preScores := s.scorer.Score(m.CurrentInference)
	outcome := s.policy.Evaluate(m, preScores, s.rng)
	postScores := preScores
	if outcome == types.OutcomeCorrected {
		m.CurrentInference = "Improved perspective: " + m.Content
		postScores = s.scorer.Score(m.CurrentInference)
	}
	m.ValueAlignment = postScores
	m.AgreementShift = mean(preScores) - mean(postScores)
	m.MischievousShift = math.Abs(stdDev(postScores) - stdDev(preScores))

	signal := s.source.Feedback(outcome)
	s.source.Apply(m)

	// Rewrite, then retain.
	Rewrite(m, outcome, s.strengthFloor)
	m.IsAdaptive = true

	rep := types.CycleReport{
		ID:                uuid.NewString(),
		MemoryID:          m.Identifier,
		Outcome:           outcome,
		Signal:            signal,
		AgreementShift:    m.AgreementShift,
		MischievousShift:  m.MischievousShift,
		Strength:          m.Strength,
		Valence:           m.CurrentValence,
		ReprocessingCount: m.ReprocessingCount,
		DurationMS:        time.Since(started).Milliseconds(),
		CreatedAt:         time.Now().UTC(),
	}
	snap := m.Clone()
	s.mu.Unlock()

	s.logger.Debug("cycle complete",
		"identifier", rep.MemoryID,
		"outcome", rep.Outcome,
		"signal", rep.Signal,
		"count", rep.ReprocessingCount,
	)
	s.record(ctx, rep)
	s.snapshot(ctx, snap)
	return rep, nil
}

// RunAll runs one cycle over every stored memory in identifier order.
func (s *Service) RunAll(ctx context.Context) ([]types.CycleReport, error) {
	ids := make([]string, 0)
	s.mu.Lock()
	for id := range s.memories {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)

	reports := make([]types.CycleReport, 0, len(ids))
	for _, id := range ids {
		rep, err := s.RunCycle(ctx, id)
		if err != nil {
			// A memory removed between listing and cycling is not a fault.
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return reports, err
		}
		reports = append(reports, rep)
	}
	return reports, nil
}

// Rewrite applies the deterministic outcome-driven mutation: corrected
// inferences strengthen the memory and lift valence, persistent dissonance
// weakens it and lowers valence. Any other outcome leaves it untouched.
func Rewrite(m *types.Memory, outcome types.Outcome, strengthFloor float64) {
	switch outcome {
	case types.OutcomeCorrected:
		m.Strength *= 1.1
		m.CurrentValence = clampValence(m.CurrentValence + 0.1)
	case types.OutcomeDissonance:
		m.Strength = math.Max(strengthFloor, m.Strength*0.8)
		m.CurrentValence = clampValence(m.CurrentValence - 0.1)
	}
}

func (s *Service) record(ctx context.Context, rep types.CycleReport) {
	if s.journal == nil {
		return
	}
	if err := s.journal.InsertCycle(ctx, rep); err != nil {
		s.logger.Warn("failed to journal cycle report", "identifier", rep.MemoryID, "error", err)
	}
}

func (s *Service) snapshot(ctx context.Context, m types.Memory) {
	if s.journal == nil {
		return
	}
	if err := s.journal.UpsertSnapshot(ctx, m); err != nil {
		s.logger.Warn("failed to snapshot memory", "identifier", m.Identifier, "error", err)
	}
}

func clampValence(v float64) float64 {
	return math.Max(-1.0, math.Min(1.0, v))
}
