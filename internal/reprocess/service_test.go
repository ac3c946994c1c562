package reprocess

import (
	"context"
	"errors"
	"io"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/charmbracelet/log"

	"github.com/xiy/rmm-mcp/internal/config"
	"github.com/xiy/rmm-mcp/internal/modulation"
	"github.com/xiy/rmm-mcp/internal/values"
	"github.com/xiy/rmm-mcp/pkg/types"
)

type captureJournal struct {
	cycles    []types.CycleReport
	snapshots []types.Memory
}

func (c *captureJournal) InsertCycle(_ context.Context, rep types.CycleReport) error {
	c.cycles = append(c.cycles, rep)
	return nil
}

func (c *captureJournal) UpsertSnapshot(_ context.Context, m types.Memory) error {
	c.snapshots = append(c.snapshots, m)
	return nil
}

// prideOnly keeps scoring deterministic enough for trigger assertions: the
// high band draws at least 0.65 after jitter, the low band at most 0.35, so
// a 0.6 threshold separates them with certainty.
func prideOnly() values.Table {
	return values.Table{
		"Pride": {Negative: []string{"boastful"}, Positive: []string{"humble"}},
	}
}

func newTestService(t *testing.T, table values.Table, journal Journal) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.TriggerThreshold = 0.6
	logger := log.NewWithOptions(io.Discard, log.Options{})
	scorer := values.NewScorer(table, rand.New(rand.NewSource(11)))
	source := modulation.NewSource(cfg.BaselineModulation, cfg.StrengthFloor, rand.New(rand.NewSource(12)))
	return NewService(cfg, scorer, source, journal, logger, rand.New(rand.NewSource(13)))
}

func TestAdd_ScoresInitialInference(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, prideOnly(), nil)

	got, err := svc.Add(context.Background(), types.AddInput{
		Identifier: "ironic_brag",
		Content:    "He claims he's humble while bragging.",
		Inference:  "I am the most boastful person I know.",
		Valence:    -0.2,
	})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if got.Strength != 1.0 {
		t.Fatalf("expected initial strength 1.0, got %v", got.Strength)
	}
	if got.IsAdaptive {
		t.Fatal("expected is_adaptive false before any cycle")
	}
	score, ok := got.ValueAlignment["Pride"]
	if !ok {
		t.Fatal("expected Pride to be scored on add")
	}
	if score < 0.65 || score > 1.0 {
		t.Fatalf("expected negative-indicator score in [0.65, 1.0], got %v", score)
	}
}

func TestAdd_ValidatesInput(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, prideOnly(), nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, types.AddInput{Content: "c", Inference: "i"}); err == nil {
		t.Fatal("expected empty identifier to be rejected")
	}
	if _, err := svc.Add(ctx, types.AddInput{Identifier: "x", Inference: "i"}); err == nil {
		t.Fatal("expected empty content to be rejected")
	}
	if _, err := svc.Add(ctx, types.AddInput{Identifier: "x", Content: "c", Inference: "i", Valence: 1.5}); err == nil {
		t.Fatal("expected out-of-range valence to be rejected")
	}
}

func TestAdd_DuplicateOverwrites(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, prideOnly(), nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, types.AddInput{Identifier: "m1", Content: "first", Inference: "one"}); err != nil {
		t.Fatalf("Add(first) error = %v", err)
	}
	if _, err := svc.Add(ctx, types.AddInput{Identifier: "m1", Content: "second", Inference: "two"}); err != nil {
		t.Fatalf("Add(second) error = %v", err)
	}

	mems := svc.List()
	if len(mems) != 1 {
		t.Fatalf("expected 1 memory after overwrite, got %d", len(mems))
	}
	if mems[0].Content != "second" {
		t.Fatalf("expected overwritten content, got %q", mems[0].Content)
	}
}

func TestRunCycle_NotFoundMutatesNothing(t *testing.T) {
	t.Parallel()
	journal := &captureJournal{}
	svc := newTestService(t, prideOnly(), journal)

	_, err := svc.RunCycle(context.Background(), "missing_id")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(svc.List()) != 0 {
		t.Fatal("expected collection to remain empty")
	}
	if len(journal.cycles) != 0 {
		t.Fatalf("expected no journaled cycles, got %d", len(journal.cycles))
	}
}

func TestRunCycle_TriggersCorrection(t *testing.T) {
	t.Parallel()
	journal := &captureJournal{}
	svc := newTestService(t, prideOnly(), journal)
	ctx := context.Background()

	if _, err := svc.Add(ctx, types.AddInput{
		Identifier: "m1",
		Content:    "He bragged at the party.",
		Inference:  "Everyone there was boastful and loved it.",
		Valence:    -0.2,
	}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	rep, err := svc.RunCycle(ctx, "m1")
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if rep.Outcome != types.OutcomeCorrected {
		t.Fatalf("expected inference_corrected, got %q", rep.Outcome)
	}
	if rep.Signal != types.SignalPlasticity {
		t.Fatalf("expected plasticity_enhanced signal, got %q", rep.Signal)
	}
	if rep.ReprocessingCount != 1 {
		t.Fatalf("expected reprocessing count 1, got %d", rep.ReprocessingCount)
	}

	m, err := svc.Get("m1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !m.IsAdaptive {
		t.Fatal("expected is_adaptive true after retain")
	}
	if !strings.HasPrefix(m.CurrentInference, "Improved perspective: ") {
		t.Fatalf("expected rewritten inference, got %q", m.CurrentInference)
	}
	if len(journal.cycles) != 1 {
		t.Fatalf("expected 1 journaled cycle, got %d", len(journal.cycles))
	}
}

func TestRunCycle_NoChangeKeepsInference(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, prideOnly(), nil)
	ctx := context.Background()

	inference := "She stayed humble about the win."
	if _, err := svc.Add(ctx, types.AddInput{Identifier: "m2", Content: "Won a race.", Inference: inference}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	rep, err := svc.RunCycle(ctx, "m2")
	if err != nil {
		t.Fatalf("RunCycle() error = %v", err)
	}
	if rep.Outcome != types.OutcomeNoChange {
		t.Fatalf("expected no_change, got %q", rep.Outcome)
	}
	if rep.Signal != types.SignalNeutral {
		t.Fatalf("expected neutral signal, got %q", rep.Signal)
	}

	m, _ := svc.Get("m2")
	if m.CurrentInference != inference {
		t.Fatalf("expected inference untouched, got %q", m.CurrentInference)
	}
	if !m.IsAdaptive {
		t.Fatal("expected retain to mark memory adaptive even without correction")
	}
}

func TestRunCycle_TwiceRecomputesDiagnostics(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, prideOnly(), nil)
	ctx := context.Background()

	if _, err := svc.Add(ctx, types.AddInput{Identifier: "m3", Content: "A long day.", Inference: "Nothing remarkable happened."}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	if _, err := svc.RunCycle(ctx, "m3"); err != nil {
		t.Fatalf("RunCycle(first) error = %v", err)
	}
	rep, err := svc.RunCycle(ctx, "m3")
	if err != nil {
		t.Fatalf("RunCycle(second) error = %v", err)
	}
	if rep.ReprocessingCount != 2 {
		t.Fatalf("expected reprocessing count 2, got %d", rep.ReprocessingCount)
	}

	m, _ := svc.Get("m3")
	if m.ReprocessingCount != 2 {
		t.Fatalf("expected memory count 2, got %d", m.ReprocessingCount)
	}
	// Diagnostics belong to the latest cycle only, never accumulated.
	if m.AgreementShift != rep.AgreementShift || m.MischievousShift != rep.MischievousShift {
		t.Fatalf("expected diagnostics from the second cycle, memory=%v/%v report=%v/%v",
			m.AgreementShift, m.MischievousShift, rep.AgreementShift, rep.MischievousShift)
	}
}

func TestRunAll_PreservesInvariants(t *testing.T) {
	t.Parallel()
	svc := newTestService(t, values.DefaultTable(), nil)
	ctx := context.Background()

	seeds := []types.AddInput{
		{Identifier: "bike_drunk_fall", Content: "Man was driving drunk and fell off the bike.", Inference: "Driving under influence is reckless.", Valence: -0.8},
		{Identifier: "school_nerves", Content: "First day at school, felt nervous.", Inference: "School makes people anxious.", Valence: -0.5},
		{Identifier: "ironic_brag", Content: "He claims he's humble while bragging.", Inference: "I am the most modest person I know.", Valence: -0.2},
	}
	for _, in := range seeds {
		if _, err := svc.Add(ctx, in); err != nil {
			t.Fatalf("Add(%s) error = %v", in.Identifier, err)
		}
	}

	for round := 0; round < 5; round++ {
		reports, err := svc.RunAll(ctx)
		if err != nil {
			t.Fatalf("RunAll() error = %v", err)
		}
		if len(reports) != len(seeds) {
			t.Fatalf("expected %d reports, got %d", len(seeds), len(reports))
		}
	}

	for _, m := range svc.List() {
		if m.Strength < 0.1 {
			t.Fatalf("%s: strength %v below floor", m.Identifier, m.Strength)
		}
		if m.CurrentValence < -1.0 || m.CurrentValence > 1.0 {
			t.Fatalf("%s: valence %v outside [-1, 1]", m.Identifier, m.CurrentValence)
		}
		if m.ReprocessingCount != 5 {
			t.Fatalf("%s: expected count 5, got %d", m.Identifier, m.ReprocessingCount)
		}
		for name, v := range m.ValueAlignment {
			if v < 0.0 || v > 1.0 {
				t.Fatalf("%s: score %s=%v outside [0, 1]", m.Identifier, name, v)
			}
		}
	}
}

func TestRewrite_Deterministic(t *testing.T) {
	t.Parallel()
	const eps = 1e-9

	m := &types.Memory{Strength: 1.0, CurrentValence: 0.95}
	Rewrite(m, types.OutcomeCorrected, 0.1)
	if math.Abs(m.Strength-1.1) > eps {
		t.Fatalf("expected strength 1.1, got %v", m.Strength)
	}
	if math.Abs(m.CurrentValence-1.0) > eps {
		t.Fatalf("expected valence clamped to 1.0, got %v", m.CurrentValence)
	}

	m = &types.Memory{Strength: 1.0, CurrentValence: -0.95}
	Rewrite(m, types.OutcomeDissonance, 0.1)
	if math.Abs(m.Strength-0.8) > eps {
		t.Fatalf("expected strength 0.8, got %v", m.Strength)
	}
	if math.Abs(m.CurrentValence+1.0) > eps {
		t.Fatalf("expected valence clamped to -1.0, got %v", m.CurrentValence)
	}

	m = &types.Memory{Strength: 0.11, CurrentValence: 0.0}
	Rewrite(m, types.OutcomeDissonance, 0.1)
	if m.Strength < 0.1 {
		t.Fatalf("expected strength floored at 0.1, got %v", m.Strength)
	}

	m = &types.Memory{Strength: 2.0, CurrentValence: 0.3}
	Rewrite(m, types.OutcomeNoChange, 0.1)
	if m.Strength != 2.0 || m.CurrentValence != 0.3 {
		t.Fatalf("expected no_change to leave memory untouched, got %+v", m)
	}
}

func TestDiagnostics_MeanAndStdDev(t *testing.T) {
	t.Parallel()
	const eps = 1e-9

	scores := map[string]float64{"a": 0.2, "b": 0.4, "c": 0.6}
	if got := mean(scores); math.Abs(got-0.4) > eps {
		t.Fatalf("expected mean 0.4, got %v", got)
	}
	if got := stdDev(scores); math.Abs(got-0.2) > eps {
		t.Fatalf("expected sample stddev 0.2, got %v", got)
	}
	if got := stdDev(map[string]float64{"only": 0.5}); got != 0 {
		t.Fatalf("expected stddev 0 for single score, got %v", got)
	}
}
