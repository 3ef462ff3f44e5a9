package render

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/chapter-report/internal/aggregate"
	"github.com/sells-group/chapter-report/internal/assemble"
	"github.com/sells-group/chapter-report/internal/classify"
	"github.com/sells-group/chapter-report/internal/compare"
	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
)

func build(t *testing.T, period model.Period, active []string, raw ...model.RawEvent) *report.PeriodReport {
	t.Helper()
	r := identity.NewResolver("ch-1", identity.Aliases{})
	for _, name := range active {
		_, err := r.Register(model.RosterEntry{RawName: name})
		require.NoError(t, err)
	}
	for i := range raw {
		raw[i].Period = period
	}
	events, err := r.ResolveEvents(raw)
	require.NoError(t, err)
	rep, err := report.Build("ch-1", period, r, events, classify.DefaultConfig())
	require.NoError(t, err)
	return rep
}

func scenario(t *testing.T, period model.Period) *report.PeriodReport {
	return build(t, period, []string{"Alice", "Bob", "Carol"},
		model.RawEvent{Kind: model.KindReferral, From: "Alice", To: "Bob"},
		model.RawEvent{Kind: model.KindReferral, From: "Alice", To: "Bob"},
		model.RawEvent{Kind: model.KindOneToOne, From: "Bob", To: "Carol"},
		model.RawEvent{Kind: model.KindTYFCB, To: "Bob", Amount: "500", Inside: true},
	)
}

func reopen(t *testing.T, f *xlsx.File) *xlsx.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, Save(f, path))
	out, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	return out
}

func cellAt(t *testing.T, f *xlsx.File, sheet string, row, col int) string {
	t.Helper()
	s, ok := f.Sheet[sheet]
	require.True(t, ok, "missing sheet %s", sheet)
	require.Greater(t, len(s.Rows), row)
	require.Greater(t, len(s.Rows[row].Cells), col)
	return s.Rows[row].Cells[col].String()
}

func sheetNames(f *xlsx.File) []string {
	names := make([]string, len(f.Sheets))
	for i, s := range f.Sheets {
		names[i] = s.Name
	}
	return names
}

func TestPeriod_Workbook(t *testing.T) {
	f, err := Period(assemble.Period(scenario(t, "2024-01")))
	require.NoError(t, err)
	got := reopen(t, f)

	assert.Equal(t, []string{SheetReferral, SheetOneToOne, SheetCombination, SheetTYFCB, SheetTiers}, sheetNames(got))

	assert.Equal(t, "Bob", cellAt(t, got, SheetReferral, 0, 2))
	assert.Equal(t, "Total", cellAt(t, got, SheetReferral, 0, 4))
	assert.Equal(t, "Alice", cellAt(t, got, SheetReferral, 1, 0))
	assert.Equal(t, "2", cellAt(t, got, SheetReferral, 1, 2))
	assert.Equal(t, "2", cellAt(t, got, SheetReferral, 1, 4))
	assert.Equal(t, "2", cellAt(t, got, SheetReferral, 4, 4))

	assert.Equal(t, "1", cellAt(t, got, SheetOneToOne, 3, 2))
	assert.Equal(t, "Referral", cellAt(t, got, SheetCombination, 1, 2))
	assert.Equal(t, "OTO", cellAt(t, got, SheetCombination, 2, 3))

	assert.Equal(t, "Bob", cellAt(t, got, SheetTYFCB, 2, 0))
	assert.Equal(t, "500", cellAt(t, got, SheetTYFCB, 2, 1))
	assert.Equal(t, "green", cellAt(t, got, SheetTiers, 1, 1))
}

func TestAggregate_Workbook(t *testing.T) {
	p1 := scenario(t, "2024-01")
	p2 := build(t, "2024-02", []string{"Alice", "Bob"},
		model.RawEvent{Kind: model.KindReferral, From: "Bob", To: "Alice"})
	agg, err := aggregate.Merge([]*report.PeriodReport{p1, p2}, classify.DefaultConfig())
	require.NoError(t, err)

	f, err := Aggregate(assemble.Aggregate(agg))
	require.NoError(t, err)
	got := reopen(t, f)

	assert.Contains(t, sheetNames(got), SheetCompleteness)
	assert.Equal(t, "2024-02", cellAt(t, got, SheetCompleteness, 0, 2))
	assert.Equal(t, "Carol", cellAt(t, got, SheetCompleteness, 3, 0))
	assert.Equal(t, "present", cellAt(t, got, SheetCompleteness, 3, 1))
	assert.Equal(t, "absent", cellAt(t, got, SheetCompleteness, 3, 2))
	assert.Equal(t, "1", cellAt(t, got, SheetCompleteness, 3, 3))
}

func TestComparison_Workbook(t *testing.T) {
	cur := scenario(t, "2024-02")
	prev := build(t, "2024-01", []string{"Alice", "Bob"})
	res, err := compare.Compare(cur, prev, compare.DefaultOptions())
	require.NoError(t, err)

	f, err := Comparison(assemble.Comparison(res))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(f, &buf))
	got, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)

	names := sheetNames(got)
	assert.Equal(t, SheetChanges, names[0])
	assert.Equal(t, SheetInsights, names[1])
	assert.Contains(t, names, "Current "+SheetReferral)
	assert.Contains(t, names, "Previous "+SheetTiers)

	assert.Equal(t, "referral", cellAt(t, got, SheetChanges, 1, 0))
	assert.Equal(t, "Alice", cellAt(t, got, SheetChanges, 1, 1))
	assert.Equal(t, "improved", cellAt(t, got, SheetChanges, 1, 5))
	assert.Equal(t, "referral", cellAt(t, got, SheetInsights, 1, 0))
	assert.Equal(t, "3", cellAt(t, got, SheetInsights, 1, 1))
}
