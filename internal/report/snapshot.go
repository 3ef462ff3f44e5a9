package report

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/chapter-report/internal/matrix"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/roster"
	"github.com/sells-group/chapter-report/internal/tyfcb"
)

// Snapshot is the flat, storage-friendly form of a PeriodReport. Cells are
// sparse and keyed by member, never by position.
type Snapshot struct {
	ChapterID string           `json:"chapterId"`
	Period    model.Period     `json:"period"`
	BuiltAt   time.Time        `json:"builtAt"`
	Members   []SnapshotMember `json:"members"`
	Cells     []Cell           `json:"cells"`
	Closed    []ClosedBusiness `json:"closed"`
}

// SnapshotMember is a roster entry plus its tier.
type SnapshotMember struct {
	model.Member
	Tier model.Tier `json:"tier"`
}

// Cell is one non-zero count of a referral or one-to-one matrix.
type Cell struct {
	Kind  model.EventKind `json:"kind"`
	From  model.MemberKey `json:"from"`
	To    model.MemberKey `json:"to"`
	Count int             `json:"count"`
}

// ClosedBusiness is one member's TYFCB amounts.
type ClosedBusiness struct {
	Member  model.MemberKey `json:"member"`
	Inside  decimal.Decimal `json:"inside"`
	Outside decimal.Decimal `json:"outside"`
}

// Snapshot flattens r. Members are in axis order.
func (r *PeriodReport) Snapshot() Snapshot {
	s := Snapshot{ChapterID: r.ChapterID, Period: r.Period, BuiltAt: r.BuiltAt}
	axis := r.Axis
	for i := 0; i < axis.Len(); i++ {
		m := axis.Member(i)
		s.Members = append(s.Members, SnapshotMember{Member: m, Tier: r.Tiers[m.Key]})
	}
	for _, m := range []*matrix.Matrix{r.Referral, r.OneToOne} {
		for i := 0; i < m.Len(); i++ {
			for j := 0; j < m.Len(); j++ {
				if v := m.At(i, j); v > 0 {
					s.Cells = append(s.Cells, Cell{
						Kind:  m.Kind(),
						From:  axis.Member(i).Key,
						To:    axis.Member(j).Key,
						Count: v,
					})
				}
			}
		}
	}
	for _, key := range axis.Keys() {
		a := r.TYFCB.Get(key)
		if a.Total().IsZero() {
			continue
		}
		s.Closed = append(s.Closed, ClosedBusiness{Member: key, Inside: a.Inside, Outside: a.Outside})
	}
	return s
}

// FromSnapshot rebuilds the report, re-validating every matrix invariant and
// recomposing the combination matrix from the counts.
func FromSnapshot(s Snapshot) (*PeriodReport, error) {
	members := make([]model.Member, len(s.Members))
	tiers := make(map[model.MemberKey]model.Tier, len(s.Members))
	for i, sm := range s.Members {
		members[i] = sm.Member
		tiers[sm.Key] = sm.Tier
	}
	axis := roster.NewAxis(members)
	if axis.Len() != len(members) {
		return nil, eris.Errorf("report: snapshot %s/%s has duplicate members", s.ChapterID, s.Period)
	}

	n := axis.Len()
	counts := map[model.EventKind][][]int{
		model.KindReferral: square(n),
		model.KindOneToOne: square(n),
	}
	for _, c := range s.Cells {
		grid, ok := counts[c.Kind]
		if !ok {
			return nil, eris.Errorf("report: snapshot cell with kind %q", c.Kind)
		}
		i, ok := axis.IndexOf(c.From)
		if !ok {
			return nil, &model.UnknownMemberError{Member: c.From, Period: s.Period}
		}
		j, ok := axis.IndexOf(c.To)
		if !ok {
			return nil, &model.UnknownMemberError{Member: c.To, Period: s.Period}
		}
		grid[i][j] += c.Count
	}

	referral, err := matrix.New(model.KindReferral, axis, counts[model.KindReferral])
	if err != nil {
		return nil, eris.Wrapf(err, "report: decode %s referral matrix", s.Period)
	}
	oneToOne, err := matrix.New(model.KindOneToOne, axis, counts[model.KindOneToOne])
	if err != nil {
		return nil, eris.Wrapf(err, "report: decode %s one-to-one matrix", s.Period)
	}
	combo, err := matrix.Compose(referral, oneToOne)
	if err != nil {
		return nil, err
	}

	summary := make(tyfcb.Summary, n)
	for _, c := range s.Closed {
		if c.Inside.IsNegative() || c.Outside.IsNegative() {
			return nil, &model.InvalidAmountError{Value: c.Inside.Add(c.Outside).String(), Member: c.Member}
		}
		summary[c.Member] = summary[c.Member].Add(tyfcb.Amounts{Inside: c.Inside, Outside: c.Outside})
	}
	summary, err = summary.Reindex(axis)
	if err != nil {
		return nil, err
	}

	return &PeriodReport{
		ChapterID:   s.ChapterID,
		Period:      s.Period,
		BuiltAt:     s.BuiltAt,
		Axis:        axis,
		Referral:    referral,
		OneToOne:    oneToOne,
		Combination: combo,
		TYFCB:       summary,
		Tiers:       tiers,
	}, nil
}

func square(n int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = make([]int, n)
	}
	return out
}
