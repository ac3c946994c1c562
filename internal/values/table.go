package values

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Spectrum holds the indicator keyword sets for one value principle.
// Negative keywords pull scores toward the high (misaligned) band,
// positive keywords toward the low (aligned) band.
type Spectrum struct {
	Negative []string `yaml:"negative"`
	Positive []string `yaml:"positive"`
}

// Table maps value-principle names to their keyword spectra.
type Table map[string]Spectrum

// DefaultTable returns the built-in hand-authored value spectrum.
func DefaultTable() Table {
	return Table{
		"Pride":    {Negative: []string{"superior", "arrogant", "boastful"}, Positive: []string{"humble", "modest"}},
		"Envy":     {Negative: []string{"jealous", "resent"}, Positive: []string{"admiration", "contentment"}},
		"Gluttony": {Negative: []string{"excessive", "overeat"}, Positive: []string{"temperance", "moderation"}},
		"Lust":     {Negative: []string{"desire", "sensual"}, Positive: []string{"chastity", "restraint"}},
		"Anger":    {Negative: []string{"angry", "furious"}, Positive: []string{"patience", "calm"}},
		"Greed":    {Negative: []string{"selfish", "hoard"}, Positive: []string{"generosity", "altruism"}},
		"Sloth":    {Negative: []string{"lazy", "idle"}, Positive: []string{"diligence", "zeal"}},
	}
}

// Principles returns principle names in stable sorted order.
func (t Table) Principles() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every principle carries at least one keyword.
func (t Table) Validate() error {
	if len(t) == 0 {
		return errors.New("value table must not be empty")
	}
	for name, sp := range t {
		if strings.TrimSpace(name) == "" {
			return errors.New("value principle name must not be empty")
		}
		if len(sp.Negative) == 0 && len(sp.Positive) == 0 {
			return fmt.Errorf("principle %q has no indicator keywords", name)
		}
	}
	return nil
}

type tableFile struct {
	Principles Table `yaml:"principles"`
}

// LoadTable reads a value spectrum table from a YAML file.
// An empty path returns the default table.
func LoadTable(path string) (Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read values table: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse values yaml: %w", err)
	}
	if err := f.Principles.Validate(); err != nil {
		return nil, err
	}
	return f.Principles, nil
}
