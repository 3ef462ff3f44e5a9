// Package assemble converts reports into the serializable payloads handed to
// the rendering and HTTP collaborators.
package assemble

import (
	"github.com/shopspring/decimal"

	"github.com/sells-group/chapter-report/internal/aggregate"
	"github.com/sells-group/chapter-report/internal/classify"
	"github.com/sells-group/chapter-report/internal/compare"
	"github.com/sells-group/chapter-report/internal/matrix"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
	"github.com/sells-group/chapter-report/internal/roster"
	"github.com/sells-group/chapter-report/internal/tyfcb"
)

// Amount is a TYFCB pair rendered as fixed two-decimal strings.
type Amount struct {
	Inside  string `json:"inside"`
	Outside string `json:"outside"`
}

func amountOf(a tyfcb.Amounts) Amount {
	return Amount{Inside: money(a.Inside), Outside: money(a.Outside)}
}

func money(d decimal.Decimal) string { return d.StringFixed(2) }

// PeriodPayload is the presentation form of one period (or, embedded in
// AggregatePayload, of a merged range). Matrix rows and columns follow
// Members / MemberIDs.
type PeriodPayload struct {
	ChapterID         string                         `json:"chapterId"`
	Period            model.Period                   `json:"period,omitempty"`
	Members           []string                       `json:"members"`
	MemberIDs         []model.MemberKey              `json:"memberIds"`
	ReferralMatrix    [][]int                        `json:"referralMatrix"`
	OTOMatrix         [][]int                        `json:"otoMatrix"`
	CombinationMatrix [][]int                        `json:"combinationMatrix"`
	TYFCB             map[model.MemberKey]Amount     `json:"tyfcb"`
	Tiers             map[model.MemberKey]model.Tier `json:"tiers"`
	TierCounts        map[model.Tier]int             `json:"tierCounts"`
}

// AggregatePayload adds the merged periods and per-member completeness.
type AggregatePayload struct {
	PeriodPayload
	Periods            []model.Period                             `json:"periods"`
	MemberCompleteness map[model.MemberKey]aggregate.Completeness `json:"memberCompleteness"`
}

// TYFCBDelta is compare.TYFCBDelta with string amounts.
type TYFCBDelta struct {
	MemberID  model.MemberKey   `json:"memberId"`
	Previous  Amount            `json:"previous"`
	Current   Amount            `json:"current"`
	Delta     string            `json:"delta"`
	Direction compare.Direction `json:"direction"`
}

// ComparisonPayload is the presentation form of a two-period comparison.
// Deltas follow the union roster in Members / MemberIDs.
type ComparisonPayload struct {
	ChapterID          string                                   `json:"chapterId"`
	Members            []string                                 `json:"members"`
	MemberIDs          []model.MemberKey                        `json:"memberIds"`
	Current            PeriodPayload                            `json:"current"`
	Previous           PeriodPayload                            `json:"previous"`
	Deltas             map[compare.Metric][]compare.MemberDelta `json:"deltas"`
	PairDeltas         map[compare.Metric][]compare.PairDelta   `json:"pairDeltas"`
	TYFCBDeltas        []TYFCBDelta                             `json:"tyfcbDeltas"`
	Insights           map[compare.Metric]compare.Insights      `json:"insights"`
	MostImprovedMetric compare.Metric                           `json:"mostImprovedMetric"`
}

// parts is what a period or an aggregate report contributes to a payload.
type parts struct {
	chapterID   string
	axis        roster.Axis
	referral    *matrix.Matrix
	oneToOne    *matrix.Matrix
	combination *matrix.Combination
	tyfcb       tyfcb.Summary
	tiers       map[model.MemberKey]model.Tier
}

func assemble(p parts) PeriodPayload {
	out := PeriodPayload{
		ChapterID:         p.chapterID,
		Members:           p.axis.Names(),
		MemberIDs:         p.axis.Keys(),
		ReferralMatrix:    p.referral.Cells(),
		OTOMatrix:         p.oneToOne.Cells(),
		CombinationMatrix: p.combination.Cells(),
		TYFCB:             make(map[model.MemberKey]Amount, p.axis.Len()),
		Tiers:             make(map[model.MemberKey]model.Tier, len(p.tiers)),
		TierCounts:        classify.Summarize(p.tiers),
	}
	for _, key := range p.axis.Keys() {
		out.TYFCB[key] = amountOf(p.tyfcb.Get(key))
	}
	for key, t := range p.tiers {
		out.Tiers[key] = t
	}
	return out
}

// Period assembles a single period report.
func Period(r *report.PeriodReport) PeriodPayload {
	out := assemble(parts{
		chapterID:   r.ChapterID,
		axis:        r.Axis,
		referral:    r.Referral,
		oneToOne:    r.OneToOne,
		combination: r.Combination,
		tyfcb:       r.TYFCB,
		tiers:       r.Tiers,
	})
	out.Period = r.Period
	return out
}

// Aggregate assembles a merged report.
func Aggregate(r *aggregate.Report) AggregatePayload {
	completeness := make(map[model.MemberKey]aggregate.Completeness, len(r.Completeness))
	for key, c := range r.Completeness {
		completeness[key] = c
	}
	return AggregatePayload{
		PeriodPayload: assemble(parts{
			chapterID:   r.ChapterID,
			axis:        r.Axis,
			referral:    r.Referral,
			oneToOne:    r.OneToOne,
			combination: r.Combination,
			tyfcb:       r.TYFCB,
			tiers:       r.Tiers,
		}),
		Periods:            append([]model.Period(nil), r.Periods...),
		MemberCompleteness: completeness,
	}
}

// Comparison assembles a comparison result. Current and Previous keep their
// own rosters; deltas are on the union roster.
func Comparison(res *compare.Result) ComparisonPayload {
	out := ComparisonPayload{
		ChapterID:          res.ChapterID,
		Members:            res.Axis.Names(),
		MemberIDs:          res.Axis.Keys(),
		Current:            Period(res.Current),
		Previous:           Period(res.Previous),
		Deltas:             res.Deltas,
		PairDeltas:         res.PairDeltas,
		TYFCBDeltas:        make([]TYFCBDelta, 0, len(res.TYFCBDeltas)),
		Insights:           res.Insights,
		MostImprovedMetric: res.MostImprovedMetric,
	}
	for _, d := range res.TYFCBDeltas {
		out.TYFCBDeltas = append(out.TYFCBDeltas, TYFCBDelta{
			MemberID:  d.Member,
			Previous:  amountOf(d.Previous),
			Current:   amountOf(d.Current),
			Delta:     money(d.Delta),
			Direction: d.Direction,
		})
	}
	return out
}
