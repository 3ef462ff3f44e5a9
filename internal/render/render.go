// Package render writes assembled payloads into xlsx workbooks.
package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/chapter-report/internal/assemble"
	"github.com/sells-group/chapter-report/internal/compare"
	"github.com/sells-group/chapter-report/internal/model"
)

// Sheet names.
const (
	SheetReferral     = "Referral"
	SheetOneToOne     = "One-to-One"
	SheetCombination  = "Combination"
	SheetTYFCB        = "TYFCB"
	SheetTiers        = "Tiers"
	SheetCompleteness = "Completeness"
	SheetChanges      = "Changes"
	SheetInsights     = "Insights"
)

var codeLabels = map[int]string{
	0: "",
	1: "OTO",
	2: "Referral",
	3: "Both",
}

// Period builds the workbook for one period.
func Period(p assemble.PeriodPayload) (*xlsx.File, error) {
	f := xlsx.NewFile()
	if err := addPeriodSheets(f, p, ""); err != nil {
		return nil, err
	}
	return f, nil
}

// Aggregate builds the workbook for a merged range.
func Aggregate(p assemble.AggregatePayload) (*xlsx.File, error) {
	f := xlsx.NewFile()
	if err := addPeriodSheets(f, p.PeriodPayload, ""); err != nil {
		return nil, err
	}
	if err := addCompleteness(f, p); err != nil {
		return nil, err
	}
	return f, nil
}

// Comparison builds the workbook for a two-period comparison: the change
// sheets first, then each period's matrices with a period prefix.
func Comparison(p assemble.ComparisonPayload) (*xlsx.File, error) {
	f := xlsx.NewFile()
	if err := addChanges(f, p); err != nil {
		return nil, err
	}
	if err := addInsights(f, p); err != nil {
		return nil, err
	}
	if err := addPeriodSheets(f, p.Current, "Current "); err != nil {
		return nil, err
	}
	if err := addPeriodSheets(f, p.Previous, "Previous "); err != nil {
		return nil, err
	}
	return f, nil
}

// Save writes f to path.
func Save(f *xlsx.File, path string) error {
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "render: save %s", path)
	}
	return nil
}

// Write streams f to w.
func Write(f *xlsx.File, w io.Writer) error {
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "render: write workbook")
	}
	return nil
}

func addSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	sheet, err := f.AddSheet(name)
	if err != nil {
		return nil, eris.Wrapf(err, "render: add sheet %s", name)
	}
	return sheet, nil
}

func addRow(sheet *xlsx.Sheet, values ...any) {
	row := sheet.AddRow()
	for _, v := range values {
		cell := row.AddCell()
		switch val := v.(type) {
		case int:
			cell.SetInt(val)
		case float64:
			cell.SetFloat(val)
		case decimal.Decimal:
			fv, _ := val.Float64()
			cell.SetFloat(fv)
		case bool:
			cell.SetBool(val)
		case string:
			cell.SetString(val)
		default:
			cell.SetString(fmt.Sprint(val))
		}
	}
}

func addPeriodSheets(f *xlsx.File, p assemble.PeriodPayload, prefix string) error {
	if err := addCountMatrix(f, prefix+SheetReferral, p.Members, p.ReferralMatrix); err != nil {
		return err
	}
	if err := addCountMatrix(f, prefix+SheetOneToOne, p.Members, p.OTOMatrix); err != nil {
		return err
	}
	if err := addCombination(f, prefix+SheetCombination, p.Members, p.CombinationMatrix); err != nil {
		return err
	}
	if err := addTYFCB(f, prefix+SheetTYFCB, p); err != nil {
		return err
	}
	return addTiers(f, prefix+SheetTiers, p)
}

func addCountMatrix(f *xlsx.File, name string, members []string, cells [][]int) error {
	sheet, err := addSheet(f, name)
	if err != nil {
		return err
	}

	header := []any{""}
	for _, m := range members {
		header = append(header, m)
	}
	addRow(sheet, append(header, "Total")...)

	colTotals := make([]int, len(members))
	grand := 0
	for i, row := range cells {
		values := []any{members[i]}
		total := 0
		for j, v := range row {
			values = append(values, v)
			total += v
			colTotals[j] += v
		}
		grand += total
		addRow(sheet, append(values, total)...)
	}

	footer := []any{"Total"}
	for _, v := range colTotals {
		footer = append(footer, v)
	}
	addRow(sheet, append(footer, grand)...)
	return nil
}

func addCombination(f *xlsx.File, name string, members []string, cells [][]int) error {
	sheet, err := addSheet(f, name)
	if err != nil {
		return err
	}
	header := []any{""}
	for _, m := range members {
		header = append(header, m)
	}
	addRow(sheet, header...)
	for i, row := range cells {
		values := []any{members[i]}
		for _, v := range row {
			values = append(values, codeLabels[v])
		}
		addRow(sheet, values...)
	}
	return nil
}

func addTYFCB(f *xlsx.File, name string, p assemble.PeriodPayload) error {
	sheet, err := addSheet(f, name)
	if err != nil {
		return err
	}
	addRow(sheet, "Member", "Inside", "Outside", "Total")
	var inside, outside decimal.Decimal
	for i, key := range p.MemberIDs {
		a := p.TYFCB[key]
		in, err := decimal.NewFromString(a.Inside)
		if err != nil {
			return eris.Wrapf(err, "render: inside amount for %s", key)
		}
		out, err := decimal.NewFromString(a.Outside)
		if err != nil {
			return eris.Wrapf(err, "render: outside amount for %s", key)
		}
		inside, outside = inside.Add(in), outside.Add(out)
		addRow(sheet, p.Members[i], in, out, in.Add(out))
	}
	addRow(sheet, "Total", inside, outside, inside.Add(outside))
	return nil
}

func addTiers(f *xlsx.File, name string, p assemble.PeriodPayload) error {
	sheet, err := addSheet(f, name)
	if err != nil {
		return err
	}
	addRow(sheet, "Member", "Tier")
	for i, key := range p.MemberIDs {
		addRow(sheet, p.Members[i], string(p.Tiers[key]))
	}
	addRow(sheet)
	for _, t := range model.Tiers {
		addRow(sheet, string(t), p.TierCounts[t])
	}
	return nil
}

func addCompleteness(f *xlsx.File, p assemble.AggregatePayload) error {
	sheet, err := addSheet(f, SheetCompleteness)
	if err != nil {
		return err
	}
	header := []any{"Member"}
	for _, period := range p.Periods {
		header = append(header, string(period))
	}
	addRow(sheet, append(header, "Periods Present", "Partial", "New")...)

	for i, key := range p.MemberIDs {
		c := p.MemberCompleteness[key]
		values := []any{p.Members[i]}
		for _, period := range p.Periods {
			if c.Presence[period] {
				values = append(values, "present")
			} else {
				values = append(values, "absent")
			}
		}
		addRow(sheet, append(values, c.PeriodsPresent, c.IsPartial, c.IsNew)...)
	}
	return nil
}

func addChanges(f *xlsx.File, p assemble.ComparisonPayload) error {
	sheet, err := addSheet(f, SheetChanges)
	if err != nil {
		return err
	}
	addRow(sheet, "Metric", "Member", "Previous", "Current", "Delta", "Status", "New", "Departed")
	for _, metric := range compare.Metrics {
		for _, d := range p.Deltas[metric] {
			addRow(sheet, string(metric), d.Name, d.Previous, d.Current, d.Delta, string(d.Status), d.IsNewMember, d.IsDeparted)
		}
	}

	addRow(sheet)
	addRow(sheet, "TYFCB", "Member", "Previous", "Current", "Delta", "Direction")
	names := make(map[model.MemberKey]string, len(p.MemberIDs))
	for i, key := range p.MemberIDs {
		names[key] = p.Members[i]
	}
	for _, d := range p.TYFCBDeltas {
		prev, err := sumAmount(d.Previous)
		if err != nil {
			return err
		}
		cur, err := sumAmount(d.Current)
		if err != nil {
			return err
		}
		addRow(sheet, "", names[d.MemberID], prev, cur, cur.Sub(prev), string(d.Direction))
	}
	return nil
}

func sumAmount(a assemble.Amount) (decimal.Decimal, error) {
	in, err := decimal.NewFromString(a.Inside)
	if err != nil {
		return decimal.Zero, eris.Wrap(err, "render: parse amount")
	}
	out, err := decimal.NewFromString(a.Outside)
	if err != nil {
		return decimal.Zero, eris.Wrap(err, "render: parse amount")
	}
	return in.Add(out), nil
}

func addInsights(f *xlsx.File, p assemble.ComparisonPayload) error {
	sheet, err := addSheet(f, SheetInsights)
	if err != nil {
		return err
	}
	addRow(sheet, "Metric", "Members", "Improved", "Declined", "Unchanged", "New", "Average Change", "Improvement Rate")
	metrics := make([]compare.Metric, 0, len(p.Insights))
	for m := range p.Insights {
		metrics = append(metrics, m)
	}
	sort.Slice(metrics, func(i, j int) bool { return metricOrder(metrics[i]) < metricOrder(metrics[j]) })
	for _, m := range metrics {
		in := p.Insights[m]
		addRow(sheet, string(m), in.TotalMembers, in.ImprovedCount, in.DeclinedCount, in.UnchangedCount,
			in.NewMemberCount, in.AverageChange, in.ImprovementRate)
	}
	addRow(sheet)
	addRow(sheet, "Most Improved Metric", string(p.MostImprovedMetric))

	for _, m := range metrics {
		in := p.Insights[m]
		addRow(sheet)
		addRow(sheet, "Top Improvements: "+string(m), "Delta")
		for _, d := range in.TopImprovements {
			addRow(sheet, d.Name, d.Delta)
		}
		addRow(sheet, "Top Declines: "+string(m), "Delta")
		for _, d := range in.TopDeclines {
			addRow(sheet, d.Name, d.Delta)
		}
	}
	return nil
}

func metricOrder(m compare.Metric) int {
	for i, candidate := range compare.Metrics {
		if candidate == m {
			return i
		}
	}
	return len(compare.Metrics)
}
