// Package seed loads memories to add from YAML files or built-in defaults.
package seed

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/xiy/rmm-mcp/pkg/types"
)

type seedFile struct {
	Memories []types.AddInput `yaml:"memories"`
}

// Adder stores a single memory. Satisfied by the reprocessing service.
type Adder interface {
	Add(ctx context.Context, in types.AddInput) (types.Memory, error)
}

// Defaults returns the built-in demo memories.
func Defaults() []types.AddInput {
	return []types.AddInput{
		{
			Identifier: "bike_drunk_fall",
			Content:    "Man was driving drunk and fell off the bike.",
			Inference:  "Driving under influence is reckless.",
			Valence:    -0.8,
		},
		{
			Identifier: "school_nerves",
			Content:    "First day at school, felt nervous.",
			Inference:  "School makes people anxious.",
			Valence:    -0.5,
		},
		{
			Identifier: "ironic_brag",
			Content:    "He claims he's humble while bragging.",
			Inference:  "I am the most modest person I know.",
			Valence:    -0.2,
		},
	}
}

// Load reads memories from a YAML seed file. An empty path returns the
// built-in defaults.
func Load(path string) ([]types.AddInput, error) {
	if path == "" {
		return Defaults(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse seed yaml: %w", err)
	}
	if len(f.Memories) == 0 {
		return nil, errors.New("seed file lists no memories")
	}
	for i, in := range f.Memories {
		if strings.TrimSpace(in.Identifier) == "" {
			return nil, fmt.Errorf("seed entry %d has no identifier", i)
		}
	}
	return f.Memories, nil
}

// Apply adds every seed memory through the service, returning the number
// stored.
func Apply(ctx context.Context, logger *log.Logger, adder Adder, seeds []types.AddInput) (int, error) {
	added := 0
	for _, in := range seeds {
		if _, err := adder.Add(ctx, in); err != nil {
			return added, fmt.Errorf("seed %q: %w", in.Identifier, err)
		}
		logger.Info("seeded memory", "identifier", in.Identifier, "valence", in.Valence)
		added++
	}
	return added, nil
}
