package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// resetFlags restores every flag of cmd and its children to its default so
// consecutive Execute calls in one test do not leak state.
func resetFlags(t *testing.T, cmd *cobra.Command) {
	t.Helper()
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			require.NoError(t, sv.Replace(nil))
		} else {
			require.NoError(t, f.Value.Set(f.DefValue))
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(t, c)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupWorkspace(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("CHAPTER_STORE_DATABASE_URL", filepath.Join(dir, "reports.db"))
	t.Setenv("CHAPTER_INGEST_DIR", filepath.Join(dir, "data"))
	t.Setenv("CHAPTER_LOG_FORMAT", "console")
	t.Setenv("CHAPTER_LOG_LEVEL", "error")

	data := filepath.Join(dir, "data", "ch-1")
	writeFile(t, filepath.Join(data, "roster.csv"), "Name\nAlice Smith\nBob Jones\nCarol King\n")
	writeFile(t, filepath.Join(data, "2024-01", "slips.csv"),
		"Slip Type,From,To,Amount,Inside/Outside\n"+
			"Referral,Alice Smith,Bob Jones,,\n"+
			"Referral,Alice Smith,Bob Jones,,\n"+
			"One to One,Bob Jones,Carol King,,\n"+
			"TYFCB,Alice Smith,Bob Jones,500,Inside\n")
	writeFile(t, filepath.Join(data, "2024-02", "slips.csv"),
		"Slip Type,From,To,Amount,Inside/Outside\n"+
			"Referral,Bob Jones,Alice Smith,,\n"+
			"Referral,Carol King,Alice Smith,,\n"+
			"One to One,Alice Smith,Carol King,,\n")

	t.Cleanup(func() { resetFlags(t, rootCmd) })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t, rootCmd)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestEndToEnd_BuildAndQuery(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, "build", "--chapter", "ch-1", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01")
	assert.Contains(t, out, "2024-02")

	out, err = execute(t, "period", "2024-01", "--chapter", "ch-1")
	require.NoError(t, err)
	var period map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &period))
	assert.Equal(t, "ch-1", period["chapterId"])
	assert.Equal(t, "2024-01", period["period"])
	assert.Equal(t, []any{"Alice Smith", "Bob Jones", "Carol King"}, period["members"])

	out, err = execute(t, "aggregate", "--chapter", "ch-1", "--all")
	require.NoError(t, err)
	var agg map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &agg))
	assert.Equal(t, []any{"2024-01", "2024-02"}, agg["periods"])

	out, err = execute(t, "compare", "--chapter", "ch-1", "--current", "2024-02", "--previous", "2024-01")
	require.NoError(t, err)
	var cmp map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &cmp))
	assert.Contains(t, cmp, "deltas")
	assert.Contains(t, cmp, "insights")
}

func TestEndToEnd_XLSXOutput(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "build", "--chapter", "ch-1", "--period", "2024-01")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "jan.xlsx")
	_, err = execute(t, "period", "2024-01", "--chapter", "ch-1", "--format", "xlsx", "-o", path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestEndToEnd_Aliases(t *testing.T) {
	setupWorkspace(t)

	out, err := execute(t, "alias", "add", "--chapter", "ch-1", "--raw", "Bobby Jones", "--target", "Bob Jones")
	require.NoError(t, err)
	assert.Contains(t, out, "Bobby Jones")

	out, err = execute(t, "alias", "list", "--chapter", "ch-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Bobby Jones")
	assert.Contains(t, out, "Bob Jones")

	_, err = execute(t, "alias", "remove", "--chapter", "ch-1", "--raw", "Bobby Jones")
	require.NoError(t, err)

	_, err = execute(t, "alias", "remove", "--chapter", "ch-1", "--raw", "Bobby Jones")
	assert.Error(t, err)
}

func TestEndToEnd_Errors(t *testing.T) {
	setupWorkspace(t)

	_, err := execute(t, "build", "--all")
	assert.Error(t, err, "missing --chapter")

	_, err = execute(t, "build", "--chapter", "ch-1")
	assert.Error(t, err, "no periods")

	_, err = execute(t, "period", "2030-01", "--chapter", "ch-1")
	assert.Error(t, err, "period never built")

	_, err = execute(t, "compare", "--chapter", "ch-1", "--current", "2024-02")
	assert.Error(t, err, "missing --previous")
}
