package obfuscation

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Recognised filter ids.
const (
	LowNumberSuppressionID = "Low Number Suppression"
	RoundingID             = "Rounding"
)

// DefaultSQLValue is used for in-query suppression and rounding when the
// filter list does not carry that filter.
const DefaultSQLValue = 10

// Filter is one disclosure-control step. Only the field matching ID is read.
type Filter struct {
	ID        string `json:"id" yaml:"id"`
	Threshold int64  `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Nearest   int64  `json:"nearest,omitempty" yaml:"nearest,omitempty"`
}

// Filters is applied in list order. Order is significant: rounding before
// suppression can lift a suppressed value above the threshold.
type Filters []Filter

// LowNumberSuppression returns v if v > threshold, else 0.
func LowNumberSuppression(v, threshold int64) int64 {
	if v > threshold {
		return v
	}
	return 0
}

// Rounding rounds v to the nearest multiple of nearest, ties away from zero.
// A zero base leaves v unchanged.
func Rounding(v, nearest int64) int64 {
	if nearest == 0 {
		return v
	}
	return nearest * int64(math.Round(float64(v)/float64(nearest)))
}

// Apply runs v through the filters in order. The first filter producing zero
// ends the pipeline. Unknown ids are skipped.
func Apply(v int64, filters Filters) int64 {
	result := v
	for _, f := range filters {
		switch f.ID {
		case LowNumberSuppressionID:
			result = LowNumberSuppression(result, f.Threshold)
		case RoundingID:
			result = Rounding(result, f.Nearest)
		default:
			log.Warn().Str("filter", f.ID).Msg("ignoring unrecognised results modifier")
			continue
		}
		if result == 0 {
			break
		}
	}
	return result
}

// SQLThreshold is the suppression threshold folded into generated SQL.
func (fs Filters) SQLThreshold() int64 {
	for _, f := range fs {
		if f.ID == LowNumberSuppressionID {
			return f.Threshold
		}
	}
	return DefaultSQLValue
}

// SQLNearest is the rounding base folded into generated SQL.
func (fs Filters) SQLNearest() int64 {
	for _, f := range fs {
		if f.ID == RoundingID {
			return f.Nearest
		}
	}
	return DefaultSQLValue
}

// FromSettings builds the daemon's filter list. A zero setting disables that filter.
func FromSettings(threshold, nearest int64) Filters {
	fs := Filters{}
	if threshold != 0 {
		fs = append(fs, Filter{ID: LowNumberSuppressionID, Threshold: threshold})
	}
	if nearest != 0 {
		fs = append(fs, Filter{ID: RoundingID, Nearest: nearest})
	}
	return fs
}

// ParseFilters decodes a JSON list of filters.
func ParseFilters(data []byte) (Filters, error) {
	var fs Filters
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("results modifiers must be a JSON list: %w", err)
	}
	if fs == nil {
		fs = Filters{}
	}
	return fs, nil
}

// LoadFilters reads a filter list from a YAML or JSON file.
func LoadFilters(path string) (Filters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results modifiers %s: %w", path, err)
	}
	var fs Filters
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("decode results modifiers %s: %w", path, err)
	}
	if fs == nil {
		fs = Filters{}
	}
	return fs, nil
}
