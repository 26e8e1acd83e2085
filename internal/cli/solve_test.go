package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feasibility-engine/internal/rquest"
	"feasibility-engine/internal/storage"
	"feasibility-engine/internal/testutil/omopfixture"
)

const maleCohort = `{
	"uuid": "job-1", "collection": "RQ-CC-1", "owner": "user1",
	"cohort": {"groups_oper": "AND", "groups": [
		{"rules_oper": "AND", "rules": [
			{"varname": "OMOP", "varcat": "Person", "type": "TEXT", "oper": "=", "value": "8507"}
		]}
	]}
}`

// fixtureDB writes the OMOP fixture to a sqlite file and points config at it.
func fixtureDB(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "omop.sqlite")
	wh, err := storage.NewSQLite(context.Background(), path, 1)
	require.NoError(t, err)
	require.NoError(t, omopfixture.Load(context.Background(), func(ctx context.Context, stmt string) error {
		_, err := wh.DB().ExecContext(ctx, stmt)
		return err
	}))
	wh.Close()

	t.Setenv("APP_DATASOURCE_DRIVER", "sqlite")
	t.Setenv("APP_DATASOURCE_PATH", path)
	t.Setenv("APP_SERVER_LOG_LEVEL", "error")
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func runRoot(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))
	return cmd.Execute()
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func readResult(t *testing.T, path string) rquest.Result {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var res rquest.Result
	require.NoError(t, json.Unmarshal(data, &res))
	return res
}

func TestSolve_WritesResult(t *testing.T) {
	fixtureDB(t)
	body := writeFile(t, "query.json", maleCohort)

	tests := []struct {
		name string
		args []string
		want int64
	}{
		{"default modifiers round in query", nil, 40},
		{"explicit modifiers", []string{"--modifiers", `[{"id":"Rounding","nearest":0},{"id":"Low Number Suppression","threshold":0}]`}, omopfixture.Males},
		{"modifiers file", []string{"--modifiers-file", writeFile(t, "mods.yaml", "- id: Rounding\n  nearest: 100\n- id: Low Number Suppression\n  threshold: 0\n")}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "result.json")
			args := append([]string{"solve", "--body", body, "--output", out}, tt.args...)
			require.NoError(t, runRoot(t, args...))

			res := readResult(t, out)
			assert.Equal(t, rquest.StatusOK, res.Status)
			assert.Equal(t, "job-1", res.UUID)
			assert.Equal(t, tt.want, res.Count)
		})
	}
}

func TestSolve_Rejects(t *testing.T) {
	fixtureDB(t)
	body := writeFile(t, "query.json", maleCohort)
	dir := t.TempDir()

	t.Run("non json output", func(t *testing.T) {
		err := runRoot(t, "solve", "--body", body, "--output", filepath.Join(dir, "result.txt"))
		assert.ErrorContains(t, err, "JSON file")
	})

	t.Run("missing body flag", func(t *testing.T) {
		assert.Error(t, runRoot(t, "solve"))
	})

	t.Run("modifiers not a list", func(t *testing.T) {
		err := runRoot(t, "solve", "--body", body, "--modifiers", `{"id":"Rounding"}`, "--output", filepath.Join(dir, "r.json"))
		assert.Error(t, err)
	})

	t.Run("unsupported query", func(t *testing.T) {
		unsupported := writeFile(t, "icd.json", `{"code":"ICD-MAIN","analysis":"DISTRIBUTION","uuid":"job-2","collection":"RQ-CC-1","owner":"user1"}`)
		out := filepath.Join(dir, "icd.json")
		err := runRoot(t, "solve", "--body", unsupported, "--output", out)
		assert.ErrorIs(t, err, rquest.ErrUnsupportedQuery)
		assert.NoFileExists(t, out)
	})
}
