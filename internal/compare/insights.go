package compare

import (
	"sort"

	"github.com/sells-group/chapter-report/internal/roster"
)

// Insights summarizes the member deltas of one metric.
type Insights struct {
	Metric          Metric        `json:"metric"`
	TotalMembers    int           `json:"totalMembers"`
	ImprovedCount   int           `json:"improvedCount"`
	DeclinedCount   int           `json:"declinedCount"`
	UnchangedCount  int           `json:"unchangedCount"`
	NewMemberCount  int           `json:"newMemberCount"`
	AverageChange   float64       `json:"averageChange"`
	ImprovementRate float64       `json:"improvementRate"`
	TopImprovements []MemberDelta `json:"topImprovements"`
	TopDeclines     []MemberDelta `json:"topDeclines"`
}

func summarize(metric Metric, axis roster.Axis, deltas []MemberDelta, topN int) Insights {
	in := Insights{Metric: metric, TotalMembers: len(deltas)}
	var sum int
	var up, down []MemberDelta
	for _, d := range deltas {
		sum += d.Delta
		if d.IsNewMember {
			in.NewMemberCount++
		}
		switch d.Status {
		case StatusImproved:
			in.ImprovedCount++
			up = append(up, d)
		case StatusDeclined:
			in.DeclinedCount++
			down = append(down, d)
		default:
			in.UnchangedCount++
		}
	}
	if in.TotalMembers > 0 {
		in.AverageChange = float64(sum) / float64(in.TotalMembers)
		in.ImprovementRate = float64(in.ImprovedCount) / float64(in.TotalMembers)
	}

	rank(up, axis, func(a, b MemberDelta) bool { return a.Delta > b.Delta })
	rank(down, axis, func(a, b MemberDelta) bool { return a.Delta < b.Delta })
	in.TopImprovements = head(up, topN)
	in.TopDeclines = head(down, topN)
	return in
}

// rank orders by better, then by normalized name, then by member key.
func rank(ds []MemberDelta, axis roster.Axis, better func(a, b MemberDelta) bool) {
	sort.SliceStable(ds, func(i, j int) bool {
		a, b := ds[i], ds[j]
		if better(a, b) {
			return true
		}
		if better(b, a) {
			return false
		}
		na, nb := axis.SortKey(a.Member), axis.SortKey(b.Member)
		if na != nb {
			return na < nb
		}
		return a.Member < b.Member
	})
}

func head(ds []MemberDelta, n int) []MemberDelta {
	if len(ds) > n {
		ds = ds[:n]
	}
	out := make([]MemberDelta, len(ds))
	copy(out, ds)
	return out
}

// mostImproved picks the metric with the highest improvement rate. Ties keep
// the earlier metric in Metrics order.
func mostImproved(insights map[Metric]Insights) Metric {
	best := Metrics[0]
	for _, m := range Metrics[1:] {
		if insights[m].ImprovementRate > insights[best].ImprovementRate {
			best = m
		}
	}
	return best
}
