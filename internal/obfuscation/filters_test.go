package obfuscation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowNumberSuppression(t *testing.T) {
	tests := []struct {
		v, threshold, want int64
	}{
		{99, 100, 0},
		{100, 100, 0},
		{101, 100, 101},
		{1, 0, 1},
		{0, 0, 0},
		{1, -5, 1},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LowNumberSuppression(tt.v, tt.threshold), "v=%d t=%d", tt.v, tt.threshold)
	}
}

func TestRounding(t *testing.T) {
	tests := []struct {
		name             string
		v, nearest, want int64
	}{
		{"up to ten", 9, 10, 10},
		{"down to hundred", 123, 100, 100},
		{"down to ten", 123, 10, 120},
		{"unit base", 123, 1, 123},
		{"zero base is identity", 123, 0, 123},
		{"half rounds away from zero", 150, 100, 200},
		{"half rounds away from zero on even quotient", 250, 100, 300},
		{"five to ten", 5, 10, 10},
		{"negative half away from zero", -5, 10, -10},
		{"small value to zero", 44, 100, 0},
		{"fifty five to hundred", 55, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Rounding(tt.v, tt.nearest))
		})
	}
}

func TestRoundingBounds(t *testing.T) {
	for _, n := range []int64{1, 2, 5, 7, 10, 100} {
		for v := int64(0); v <= 1000; v++ {
			got := Rounding(v, n)
			diff := got - v
			if diff < 0 {
				diff = -diff
			}
			require.LessOrEqual(t, 2*diff, n, "v=%d n=%d got=%d", v, n, got)
			require.Zero(t, got%n, "v=%d n=%d got=%d", v, n, got)
		}
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name    string
		v       int64
		filters Filters
		want    int64
	}{
		{"rounding only", 123, Filters{{ID: RoundingID, Nearest: 100}}, 100},
		{"suppression only", 123, Filters{{ID: LowNumberSuppressionID, Threshold: 100}}, 123},
		{"suppress then round", 123, Filters{{ID: LowNumberSuppressionID, Threshold: 100}, {ID: RoundingID, Nearest: 100}}, 100},
		{"round first leaks past suppression", 60, Filters{{ID: RoundingID, Nearest: 100}, {ID: LowNumberSuppressionID, Threshold: 70}}, 100},
		{"suppress first hides value", 60, Filters{{ID: LowNumberSuppressionID, Threshold: 70}, {ID: RoundingID, Nearest: 100}}, 0},
		{"empty list", 9, Filters{}, 9},
		{"nil list", 9, nil, 9},
		{"unknown filter ignored", 42, Filters{{ID: "Noise"}, {ID: RoundingID, Nearest: 10}}, 40},
		{"zero stops the pipeline", 4, Filters{{ID: RoundingID, Nearest: 10}, {ID: LowNumberSuppressionID, Threshold: -1}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.v, tt.filters))
		})
	}
}

func TestApplyZeroIsStable(t *testing.T) {
	lists := []Filters{
		{{ID: LowNumberSuppressionID, Threshold: 10}},
		{{ID: RoundingID, Nearest: 10}},
		{{ID: RoundingID, Nearest: 0}},
		{{ID: LowNumberSuppressionID, Threshold: -3}, {ID: RoundingID, Nearest: 100}},
		{{ID: RoundingID, Nearest: 100}, {ID: LowNumberSuppressionID, Threshold: 70}},
	}
	for _, fs := range lists {
		assert.Equal(t, int64(0), Apply(0, fs))
	}
}

func TestApplyDoesNotMutateFilters(t *testing.T) {
	original := Filters{
		{ID: LowNumberSuppressionID, Threshold: 100},
		{ID: RoundingID, Nearest: 100},
	}
	before := append(Filters(nil), original...)
	for i := 0; i < 3; i++ {
		assert.Equal(t, int64(100), Apply(123, original))
	}
	assert.Equal(t, before, original)
}

func TestSQLValues(t *testing.T) {
	assert.Equal(t, int64(10), Filters{}.SQLThreshold())
	assert.Equal(t, int64(10), Filters{}.SQLNearest())

	fs := Filters{{ID: RoundingID, Nearest: 0}, {ID: LowNumberSuppressionID, Threshold: 50}, {ID: RoundingID, Nearest: 100}}
	assert.Equal(t, int64(50), fs.SQLThreshold())
	assert.Equal(t, int64(0), fs.SQLNearest())
}

func TestFromSettings(t *testing.T) {
	assert.Equal(t, Filters{
		{ID: LowNumberSuppressionID, Threshold: 5},
		{ID: RoundingID, Nearest: 10},
	}, FromSettings(5, 10))
	assert.Equal(t, Filters{{ID: RoundingID, Nearest: 10}}, FromSettings(0, 10))
	assert.Empty(t, FromSettings(0, 0))
}

func TestParseFilters(t *testing.T) {
	fs, err := ParseFilters([]byte(`[{"id": "Low Number Suppression", "threshold": 10}, {"id": "Rounding", "nearest": 5}]`))
	require.NoError(t, err)
	assert.Equal(t, Filters{
		{ID: LowNumberSuppressionID, Threshold: 10},
		{ID: RoundingID, Nearest: 5},
	}, fs)

	fs, err = ParseFilters([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, fs)

	_, err = ParseFilters([]byte(`{"id": "Rounding"}`))
	assert.Error(t, err)
}

func TestLoadFilters(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "modifiers.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("- id: Rounding\n  nearest: 100\n- id: Low Number Suppression\n  threshold: 70\n"), 0o600))
	fs, err := LoadFilters(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, Filters{
		{ID: RoundingID, Nearest: 100},
		{ID: LowNumberSuppressionID, Threshold: 70},
	}, fs)

	jsonPath := filepath.Join(dir, "modifiers.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"id": "Rounding", "nearest": 10}]`), 0o600))
	fs, err = LoadFilters(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, Filters{{ID: RoundingID, Nearest: 10}}, fs)

	_, err = LoadFilters(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
