package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// WeightTable maps a finding category to its base scoring weight. Tables are
// fixed per service: loaded once at start and never mutated at request time.
type WeightTable map[string]float64

// Weight returns the base weight for a category, defaulting to 1.0 for
// categories missing from the table.
func (t WeightTable) Weight(category string) float64 {
	if t == nil {
		return 1.0
	}
	if w, ok := t[strings.ToLower(strings.TrimSpace(category))]; ok && w > 0 {
		return w
	}
	return 1.0
}

// DefaultWeights returns the built-in category weights used when no override
// file is configured.
func DefaultWeights() WeightTable {
	return WeightTable{
		CategoryLegal:       1.2,
		CategoryFinancial:   1.0,
		CategoryOperational: 0.8,
		CategoryCompliance:  1.5,
	}
}

// LoadWeightTable reads category weights from a YAML file and merges them
// over the defaults. An empty path yields the defaults unchanged.
func LoadWeightTable(path string) (WeightTable, error) {
	table := DefaultWeights()
	path = strings.TrimSpace(path)
	if path == "" {
		return table, nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read weight table: %w", err)
	}
	var raw map[string]float64
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal weight table: %w", err)
	}
	for category, weight := range raw {
		key := strings.ToLower(strings.TrimSpace(category))
		if key == "" || weight <= 0 {
			continue
		}
		table[key] = weight
	}
	return table, nil
}
