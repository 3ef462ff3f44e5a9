package assemble

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chapter-report/internal/aggregate"
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
		model.RawEvent{Kind: model.KindTYFCB, To: "Bob", Amount: "1200.5", Inside: true},
	)
}

func decode(t *testing.T, v any) map[string]any {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestPeriod_Payload(t *testing.T) {
	rep := scenario(t, "2024-01")
	p := Period(rep)

	assert.Equal(t, []string{"Alice", "Bob", "Carol"}, p.Members)
	assert.Equal(t, rep.Axis.Keys(), p.MemberIDs)
	assert.Equal(t, [][]int{{0, 2, 0}, {0, 0, 0}, {0, 0, 0}}, p.ReferralMatrix)
	assert.Equal(t, [][]int{{0, 0, 0}, {0, 0, 1}, {0, 1, 0}}, p.OTOMatrix)
	assert.Equal(t, [][]int{{0, 2, 0}, {0, 0, 1}, {0, 1, 0}}, p.CombinationMatrix)

	bob := rep.Axis.Member(1).Key
	assert.Equal(t, Amount{Inside: "1200.50", Outside: "0.00"}, p.TYFCB[bob])
	assert.Len(t, p.Tiers, 3)
	assert.Equal(t, 1, p.TierCounts[model.TierGreen])

	fields := decode(t, p)
	for _, k := range []string{"members", "memberIds", "referralMatrix", "otoMatrix", "combinationMatrix", "tyfcb", "tiers", "period"} {
		assert.Contains(t, fields, k)
	}
}

func TestPeriod_PayloadIsDetached(t *testing.T) {
	rep := scenario(t, "2024-01")
	p := Period(rep)
	p.ReferralMatrix[0][1] = 42
	assert.Equal(t, 2, rep.Referral.At(0, 1))
}

func TestAggregate_Payload(t *testing.T) {
	p1 := scenario(t, "2024-01")
	p2 := build(t, "2024-02", []string{"Alice", "Bob"},
		model.RawEvent{Kind: model.KindReferral, From: "Bob", To: "Alice"})

	agg, err := aggregate.Merge([]*report.PeriodReport{p1, p2}, classify.DefaultConfig())
	require.NoError(t, err)
	p := Aggregate(agg)

	assert.Equal(t, []model.Period{"2024-01", "2024-02"}, p.Periods)
	assert.Empty(t, p.Period)
	carol := agg.Axis.Member(2).Key
	assert.True(t, p.MemberCompleteness[carol].IsPartial)

	fields := decode(t, p)
	assert.Contains(t, fields, "periods")
	assert.Contains(t, fields, "memberCompleteness")
	assert.Contains(t, fields, "referralMatrix")
	assert.NotContains(t, fields, "period")
}

func TestComparison_Payload(t *testing.T) {
	cur := scenario(t, "2024-02")
	prev := build(t, "2024-01", []string{"Alice", "Bob"},
		model.RawEvent{Kind: model.KindTYFCB, To: "Bob", Amount: "200", Inside: false})

	res, err := compare.Compare(cur, prev, compare.DefaultOptions())
	require.NoError(t, err)
	p := Comparison(res)

	assert.Equal(t, "2024-02", string(p.Current.Period))
	assert.Equal(t, "2024-01", string(p.Previous.Period))
	assert.Len(t, p.Deltas[compare.MetricReferral], 3)
	assert.Len(t, p.TYFCBDeltas, 3)

	bob := res.Axis.Member(1).Key
	for _, d := range p.TYFCBDeltas {
		if d.MemberID == bob {
			assert.Equal(t, "1000.50", d.Delta)
			assert.Equal(t, "200.00", d.Previous.Outside)
		}
	}

	fields := decode(t, p)
	for _, k := range []string{"current", "previous", "deltas", "pairDeltas", "tyfcbDeltas", "insights", "mostImprovedMetric"} {
		assert.Contains(t, fields, k)
	}
}
