package render

import (
	"strings"
	"testing"

	"github.com/xiy/rmm-mcp/pkg/types"
)

func TestMemoryTable_ListsIdentifiers(t *testing.T) {
	t.Parallel()
	out := MemoryTable([]types.Memory{
		{Identifier: "bike_drunk_fall", CurrentInference: "Driving under influence is reckless.", Strength: 1.0, CurrentValence: -0.8, IsAdaptive: true},
		{Identifier: "school_nerves", CurrentInference: "School makes people anxious.", Strength: 0.9, CurrentValence: -0.5},
	})
	if !strings.Contains(out, "bike_drunk_fall") || !strings.Contains(out, "school_nerves") {
		t.Fatalf("expected identifiers in table, got:\n%s", out)
	}
	if !strings.Contains(out, "yes") || !strings.Contains(out, "no") {
		t.Fatalf("expected adaptive flags rendered, got:\n%s", out)
	}
}

func TestMemoryTable_Empty(t *testing.T) {
	t.Parallel()
	out := MemoryTable(nil)
	if !strings.Contains(out, "(no memories)") {
		t.Fatalf("expected empty placeholder, got:\n%s", out)
	}
}

func TestAlignmentHeatmap_RowPerPrinciple(t *testing.T) {
	t.Parallel()
	out := AlignmentHeatmap(types.Memory{
		Identifier:     "ironic_brag",
		ValueAlignment: map[string]float64{"Pride": 0.91, "Sloth": 0.12},
	})
	if !strings.Contains(out, "Pride") || !strings.Contains(out, "Sloth") {
		t.Fatalf("expected principle rows, got:\n%s", out)
	}
	if !strings.Contains(out, "0.91") || !strings.Contains(out, "0.12") {
		t.Fatalf("expected scores rendered, got:\n%s", out)
	}
}

func TestShiftBars_ShowsSigns(t *testing.T) {
	t.Parallel()
	out := ShiftBars([]types.Memory{
		{Identifier: "m1", AgreementShift: 0.25, MischievousShift: 0.05},
		{Identifier: "m2", AgreementShift: -0.4},
	})
	if !strings.Contains(out, "+0.250") {
		t.Fatalf("expected positive agreement bar, got:\n%s", out)
	}
	if !strings.Contains(out, "-0.400") {
		t.Fatalf("expected negative agreement bar, got:\n%s", out)
	}
}
