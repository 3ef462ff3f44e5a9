// Package compare diffs two period reports member by member and pair by pair
// and derives summary insights from the deltas.
package compare

import (
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/matrix"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
	"github.com/sells-group/chapter-report/internal/roster"
	"github.com/sells-group/chapter-report/internal/tyfcb"
)

// Metric names a compared matrix.
type Metric string

const (
	MetricReferral    Metric = "referral"
	MetricOneToOne    Metric = "one_to_one"
	MetricCombination Metric = "combination"
)

// Metrics lists every metric in tie-break order.
var Metrics = []Metric{MetricReferral, MetricOneToOne, MetricCombination}

// Direction is the sign of a delta.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
	DirectionFlat Direction = "flat"
)

// Status is the judgement attached to a direction.
type Status string

const (
	StatusImproved Status = "improved"
	StatusDeclined Status = "declined"
	StatusNoChange Status = "no_change"
)

func directionOf(delta int) (Direction, Status) {
	switch {
	case delta > 0:
		return DirectionUp, StatusImproved
	case delta < 0:
		return DirectionDown, StatusDeclined
	default:
		return DirectionFlat, StatusNoChange
	}
}

// MemberDelta is one member's change in one metric.
type MemberDelta struct {
	Member      model.MemberKey `json:"memberId"`
	Name        string          `json:"name"`
	Previous    int             `json:"previous"`
	Current     int             `json:"current"`
	Delta       int             `json:"delta"`
	Direction   Direction       `json:"direction"`
	Status      Status          `json:"status"`
	IsNewMember bool            `json:"isNewMember"`
	IsDeparted  bool            `json:"isDeparted"`
}

// PairDelta is a changed cell. For one-to-ones only the upper triangle is
// reported.
type PairDelta struct {
	Metric   Metric          `json:"metric"`
	From     model.MemberKey `json:"from"`
	To       model.MemberKey `json:"to"`
	Previous int             `json:"previous"`
	Current  int             `json:"current"`
	Delta    int             `json:"delta"`
}

// TYFCBDelta is one member's change in closed business.
type TYFCBDelta struct {
	Member    model.MemberKey `json:"memberId"`
	Previous  tyfcb.Amounts   `json:"previous"`
	Current   tyfcb.Amounts   `json:"current"`
	Delta     decimal.Decimal `json:"delta"`
	Direction Direction       `json:"direction"`
}

// Options tunes a comparison.
type Options struct {
	TopN int `mapstructure:"top_n" json:"topN"`
}

// DefaultOptions returns the standard options.
func DefaultOptions() Options { return Options{TopN: 5} }

// Result is the comparison of two periods over their union roster.
type Result struct {
	ChapterID          string
	Current            *report.PeriodReport
	Previous           *report.PeriodReport
	Axis               roster.Axis
	Deltas             map[Metric][]MemberDelta // axis order
	PairDeltas         map[Metric][]PairDelta
	TYFCBDeltas        []TYFCBDelta
	Insights           map[Metric]Insights
	MostImprovedMetric Metric
}

// Compare diffs current against previous. Members on only one side are
// compared against an implicit zero.
func Compare(current, previous *report.PeriodReport, opts Options) (*Result, error) {
	if current == nil || previous == nil {
		return nil, &model.EmptyPeriodSetError{Op: "compare"}
	}
	if current.ChapterID != previous.ChapterID {
		return nil, eris.Errorf("compare: chapter %s against %s", current.ChapterID, previous.ChapterID)
	}
	if opts.TopN < 0 {
		return nil, eris.Errorf("compare: top_n must be >= 0, got %d", opts.TopN)
	}

	axis := roster.Union(current.Axis, previous.Axis)
	res := &Result{
		ChapterID:  current.ChapterID,
		Current:    current,
		Previous:   previous,
		Axis:       axis,
		Deltas:     make(map[Metric][]MemberDelta, len(Metrics)),
		PairDeltas: make(map[Metric][]PairDelta, len(Metrics)),
		Insights:   make(map[Metric]Insights, len(Metrics)),
	}

	curRef, prevRef, err := reindexPair(current.Referral, previous.Referral, axis)
	if err != nil {
		return nil, err
	}
	curOTO, prevOTO, err := reindexPair(current.OneToOne, previous.OneToOne, axis)
	if err != nil {
		return nil, err
	}
	curCombo, err := current.Combination.Reindex(axis)
	if err != nil {
		return nil, err
	}
	prevCombo, err := previous.Combination.Reindex(axis)
	if err != nil {
		return nil, err
	}

	rowTotals := map[Metric][2]func(int) int{
		MetricReferral:    {curRef.RowTotal, prevRef.RowTotal},
		MetricOneToOne:    {curOTO.RowTotal, prevOTO.RowTotal},
		MetricCombination: {curCombo.RelationshipCount, prevCombo.RelationshipCount},
	}
	for _, metric := range Metrics {
		fns := rowTotals[metric]
		res.Deltas[metric] = memberDeltas(axis, current, previous, fns[0], fns[1])
		res.Insights[metric] = summarize(metric, axis, res.Deltas[metric], opts.TopN)
	}

	res.PairDeltas[MetricReferral] = countPairDeltas(MetricReferral, axis, curRef, prevRef, false)
	res.PairDeltas[MetricOneToOne] = countPairDeltas(MetricOneToOne, axis, curOTO, prevOTO, true)
	res.PairDeltas[MetricCombination] = codePairDeltas(axis, curCombo, prevCombo)

	if res.TYFCBDeltas, err = tyfcbDeltas(axis, current.TYFCB, previous.TYFCB); err != nil {
		return nil, err
	}
	res.MostImprovedMetric = mostImproved(res.Insights)

	zap.L().Debug("compare: compared periods",
		zap.String("chapter", res.ChapterID),
		zap.String("current", string(current.Period)),
		zap.String("previous", string(previous.Period)),
		zap.Int("members", axis.Len()),
		zap.String("most_improved", string(res.MostImprovedMetric)),
	)
	return res, nil
}

func reindexPair(cur, prev *matrix.Matrix, axis roster.Axis) (*matrix.Matrix, *matrix.Matrix, error) {
	c, err := cur.Reindex(axis)
	if err != nil {
		return nil, nil, err
	}
	p, err := prev.Reindex(axis)
	if err != nil {
		return nil, nil, err
	}
	return c, p, nil
}

func memberDeltas(axis roster.Axis, current, previous *report.PeriodReport, cur, prev func(int) int) []MemberDelta {
	out := make([]MemberDelta, axis.Len())
	for i := 0; i < axis.Len(); i++ {
		m := axis.Member(i)
		d := MemberDelta{
			Member:      m.Key,
			Name:        m.DisplayName,
			Previous:    prev(i),
			Current:     cur(i),
			IsNewMember: current.Present(m.Key) && !previous.Present(m.Key),
			IsDeparted:  previous.Present(m.Key) && !current.Present(m.Key),
		}
		d.Delta = d.Current - d.Previous
		d.Direction, d.Status = directionOf(d.Delta)
		out[i] = d
	}
	return out
}

func countPairDeltas(metric Metric, axis roster.Axis, cur, prev *matrix.Matrix, symmetric bool) []PairDelta {
	var out []PairDelta
	for i := 0; i < axis.Len(); i++ {
		start := 0
		if symmetric {
			start = i + 1
		}
		for j := start; j < axis.Len(); j++ {
			c, p := cur.At(i, j), prev.At(i, j)
			if c == p {
				continue
			}
			out = append(out, PairDelta{
				Metric:   metric,
				From:     axis.Member(i).Key,
				To:       axis.Member(j).Key,
				Previous: p,
				Current:  c,
				Delta:    c - p,
			})
		}
	}
	return out
}

func codePairDeltas(axis roster.Axis, cur, prev *matrix.Combination) []PairDelta {
	var out []PairDelta
	for i := 0; i < axis.Len(); i++ {
		for j := 0; j < axis.Len(); j++ {
			c, p := cur.At(i, j), prev.At(i, j)
			if c == p {
				continue
			}
			out = append(out, PairDelta{
				Metric:   MetricCombination,
				From:     axis.Member(i).Key,
				To:       axis.Member(j).Key,
				Previous: int(p),
				Current:  int(c),
				Delta:    int(c) - int(p),
			})
		}
	}
	return out
}

func tyfcbDeltas(axis roster.Axis, cur, prev tyfcb.Summary) ([]TYFCBDelta, error) {
	c, err := cur.Reindex(axis)
	if err != nil {
		return nil, err
	}
	p, err := prev.Reindex(axis)
	if err != nil {
		return nil, err
	}
	out := make([]TYFCBDelta, 0, axis.Len())
	for _, key := range axis.Keys() {
		d := TYFCBDelta{Member: key, Previous: p[key], Current: c[key]}
		d.Delta = d.Current.Total().Sub(d.Previous.Total())
		d.Direction, _ = directionOf(d.Delta.Sign())
		out = append(out, d)
	}
	return out, nil
}
