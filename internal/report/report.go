// Package report builds the per-period report: the referral, one-to-one and
// combination matrices, the closed-business summary and the tier map, all on
// one roster axis.
package report

import (
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/classify"
	"github.com/sells-group/chapter-report/internal/matrix"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/roster"
	"github.com/sells-group/chapter-report/internal/tyfcb"
)

// Directory supplies the members a period is built against.
// identity.Resolver implements it.
type Directory interface {
	roster.Directory
	ActiveMembers() []model.Member
}

// PeriodReport is one period's complete, immutable result. A rebuild
// replaces it wholesale.
type PeriodReport struct {
	ChapterID   string
	Period      model.Period
	BuiltAt     time.Time
	Axis        roster.Axis
	Referral    *matrix.Matrix
	OneToOne    *matrix.Matrix
	Combination *matrix.Combination
	TYFCB       tyfcb.Summary
	Tiers       map[model.MemberKey]model.Tier
}

// Build constructs the report for period from already resolved events.
// Events of other periods are ignored.
func Build(chapterID string, period model.Period, dir Directory, events []model.Event, cfg classify.Config) (*PeriodReport, error) {
	events = model.FilterPeriod(events, period)

	axis, err := roster.Build(chapterID, period, dir.ActiveMembers(), events, dir)
	if err != nil {
		return nil, err
	}
	referral, err := matrix.Build(model.KindReferral, events, axis)
	if err != nil {
		return nil, err
	}
	oneToOne, err := matrix.Build(model.KindOneToOne, events, axis)
	if err != nil {
		return nil, err
	}
	combo, err := matrix.Compose(referral, oneToOne)
	if err != nil {
		return nil, err
	}
	summary, err := tyfcb.Aggregate(events, axis)
	if err != nil {
		return nil, err
	}
	tiers, err := classify.Classify(referral, cfg, classify.WithEligible(Eligible(axis)))
	if err != nil {
		return nil, err
	}

	zap.L().Debug("report: built period",
		zap.String("chapter", chapterID),
		zap.String("period", string(period)),
		zap.Int("members", axis.Len()),
		zap.Int("events", len(events)),
		zap.Int("referrals", referral.Total()),
	)

	return &PeriodReport{
		ChapterID:   chapterID,
		Period:      period,
		Axis:        axis,
		Referral:    referral,
		OneToOne:    oneToOne,
		Combination: combo,
		TYFCB:       summary,
		Tiers:       tiers,
	}, nil
}

// Eligible returns the members that count toward the chapter mean: the
// active ones. When nobody on the axis is marked active (no roster source)
// every member counts.
func Eligible(axis roster.Axis) map[model.MemberKey]bool {
	out := make(map[model.MemberKey]bool, axis.Len())
	for _, m := range axis.Members() {
		if m.Active {
			out[m.Key] = true
		}
	}
	if len(out) == 0 {
		for _, k := range axis.Keys() {
			out[k] = true
		}
	}
	return out
}

// Members returns the roster snapshot the report was built against.
func (r *PeriodReport) Members() []model.Member { return r.Axis.Members() }

// Present reports whether key was on this period's roster.
func (r *PeriodReport) Present(key model.MemberKey) bool { return r.Axis.Contains(key) }

// Matrix returns the count matrix of the given kind.
func (r *PeriodReport) Matrix(kind model.EventKind) (*matrix.Matrix, error) {
	switch kind {
	case model.KindReferral:
		return r.Referral, nil
	case model.KindOneToOne:
		return r.OneToOne, nil
	default:
		return nil, eris.Errorf("report: no %q matrix", kind)
	}
}

// Equal reports whether two reports carry identical content. BuiltAt is
// ignored.
func (r *PeriodReport) Equal(o *PeriodReport) bool {
	if r.ChapterID != o.ChapterID || r.Period != o.Period {
		return false
	}
	if !r.Axis.Equal(o.Axis) || !r.Referral.Equal(o.Referral) || !r.OneToOne.Equal(o.OneToOne) {
		return false
	}
	if !r.Combination.Equal(o.Combination) || !r.TYFCB.Equal(o.TYFCB) {
		return false
	}
	if len(r.Tiers) != len(o.Tiers) {
		return false
	}
	for k, t := range r.Tiers {
		if o.Tiers[k] != t {
			return false
		}
	}
	return true
}
