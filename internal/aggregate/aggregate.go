// Package aggregate merges period reports into one report over the union
// roster, tracking which periods each member was present in.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/classify"
	"github.com/sells-group/chapter-report/internal/matrix"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
	"github.com/sells-group/chapter-report/internal/roster"
	"github.com/sells-group/chapter-report/internal/tyfcb"
)

// Completeness records a member's presence across the merged periods.
type Completeness struct {
	Presence       map[model.Period]bool `json:"presence"`
	PeriodsPresent int                   `json:"periodsPresent"`
	IsPartial      bool                  `json:"isPartial"`
	IsNew          bool                  `json:"isNew"`
}

// Report is the merge of one or more period reports.
type Report struct {
	ChapterID    string
	Periods      []model.Period // ascending
	Axis         roster.Axis
	Referral     *matrix.Matrix
	OneToOne     *matrix.Matrix
	Combination  *matrix.Combination
	TYFCB        tyfcb.Summary
	Tiers        map[model.MemberKey]model.Tier
	Completeness map[model.MemberKey]Completeness

	eligible map[model.MemberKey]bool
}

// part is the common shape of a period report and an aggregate, so both
// merge through the same path.
type part struct {
	chapterID string
	periods   []model.Period
	axis      roster.Axis
	referral  *matrix.Matrix
	oneToOne  *matrix.Matrix
	tyfcb     tyfcb.Summary
	presence  map[model.MemberKey]map[model.Period]bool
	eligible  map[model.MemberKey]bool
}

func fromPeriod(r *report.PeriodReport) part {
	presence := make(map[model.MemberKey]map[model.Period]bool, r.Axis.Len())
	for _, key := range r.Axis.Keys() {
		presence[key] = map[model.Period]bool{r.Period: true}
	}
	return part{
		chapterID: r.ChapterID,
		periods:   []model.Period{r.Period},
		axis:      r.Axis,
		referral:  r.Referral,
		oneToOne:  r.OneToOne,
		tyfcb:     r.TYFCB,
		presence:  presence,
		eligible:  report.Eligible(r.Axis),
	}
}

func fromAggregate(a *Report) part {
	presence := make(map[model.MemberKey]map[model.Period]bool, len(a.Completeness))
	for key, c := range a.Completeness {
		p := make(map[model.Period]bool, len(c.Presence))
		for period, ok := range c.Presence {
			if ok {
				p[period] = true
			}
		}
		presence[key] = p
	}
	return part{
		chapterID: a.ChapterID,
		periods:   a.Periods,
		axis:      a.Axis,
		referral:  a.Referral,
		oneToOne:  a.OneToOne,
		tyfcb:     a.TYFCB,
		presence:  presence,
		eligible:  a.eligible,
	}
}

// Merge combines period reports of one chapter. Reports may arrive in any
// order; they are merged in period order. Each period's matrices are
// reindexed onto the union roster before summing.
func Merge(reports []*report.PeriodReport, cfg classify.Config) (*Report, error) {
	if len(reports) == 0 {
		return nil, &model.EmptyPeriodSetError{Op: "merge"}
	}
	parts := make([]part, len(reports))
	for i, r := range reports {
		if r == nil {
			return nil, eris.Errorf("aggregate: nil period report at position %d", i)
		}
		parts[i] = fromPeriod(r)
	}
	return mergeParts(parts, cfg)
}

// MergeReports extends an aggregate with further periods. The result equals
// merging every underlying period at once.
func MergeReports(agg *Report, more []*report.PeriodReport, cfg classify.Config) (*Report, error) {
	if agg == nil {
		return Merge(more, cfg)
	}
	parts := []part{fromAggregate(agg)}
	for i, r := range more {
		if r == nil {
			return nil, eris.Errorf("aggregate: nil period report at position %d", i)
		}
		parts = append(parts, fromPeriod(r))
	}
	return mergeParts(parts, cfg)
}

func mergeParts(parts []part, cfg classify.Config) (*Report, error) {
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].periods[0] < parts[j].periods[0] })

	chapterID := parts[0].chapterID
	seen := make(map[model.Period]bool)
	var periods []model.Period
	axes := make([]roster.Axis, len(parts))
	for i, p := range parts {
		if p.chapterID != chapterID {
			return nil, eris.Errorf("aggregate: cannot merge chapter %s with %s", chapterID, p.chapterID)
		}
		for _, period := range p.periods {
			if seen[period] {
				return nil, eris.Errorf("aggregate: period %s merged twice", period)
			}
			seen[period] = true
			periods = append(periods, period)
		}
		axes[i] = p.axis
	}
	periods = model.SortPeriods(periods)
	union := roster.Union(axes...)

	referrals := make([]*matrix.Matrix, len(parts))
	oneToOnes := make([]*matrix.Matrix, len(parts))
	summaries := make([]tyfcb.Summary, len(parts))
	for i, p := range parts {
		var err error
		if referrals[i], err = p.referral.Reindex(union); err != nil {
			return nil, err
		}
		if oneToOnes[i], err = p.oneToOne.Reindex(union); err != nil {
			return nil, err
		}
		if summaries[i], err = p.tyfcb.Reindex(union); err != nil {
			return nil, err
		}
	}

	referral, err := matrix.Sum(referrals...)
	if err != nil {
		return nil, err
	}
	oneToOne, err := matrix.Sum(oneToOnes...)
	if err != nil {
		return nil, err
	}
	combo, err := matrix.Compose(referral, oneToOne)
	if err != nil {
		return nil, err
	}

	completeness := buildCompleteness(union, periods, parts)
	eligible := make(map[model.MemberKey]bool)
	for _, p := range parts {
		for key, ok := range p.eligible {
			if ok {
				eligible[key] = true
			}
		}
	}
	present := make(map[model.MemberKey]int, len(completeness))
	for key, c := range completeness {
		present[key] = c.PeriodsPresent
	}
	tiers, err := classify.Classify(referral, cfg,
		classify.WithEligible(eligible),
		classify.WithPeriodsPresent(present),
	)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("aggregate: merged periods",
		zap.String("chapter", chapterID),
		zap.Int("periods", len(periods)),
		zap.Int("members", union.Len()),
	)

	return &Report{
		ChapterID:    chapterID,
		Periods:      periods,
		Axis:         union,
		Referral:     referral,
		OneToOne:     oneToOne,
		Combination:  combo,
		TYFCB:        tyfcb.Merge(summaries...),
		Tiers:        tiers,
		Completeness: completeness,
		eligible:     eligible,
	}, nil
}

func buildCompleteness(union roster.Axis, periods []model.Period, parts []part) map[model.MemberKey]Completeness {
	latest := periods[len(periods)-1]
	out := make(map[model.MemberKey]Completeness, union.Len())
	for _, key := range union.Keys() {
		c := Completeness{Presence: make(map[model.Period]bool, len(periods))}
		for _, period := range periods {
			c.Presence[period] = false
		}
		for _, p := range parts {
			for period := range p.presence[key] {
				c.Presence[period] = true
			}
		}
		for _, ok := range c.Presence {
			if ok {
				c.PeriodsPresent++
			}
		}
		c.IsPartial = c.PeriodsPresent < len(periods)
		c.IsNew = len(periods) > 1 && c.PeriodsPresent == 1 && c.Presence[latest]
		out[key] = c
	}
	return out
}

// Partial returns the members missing from at least one merged period, in
// axis order.
func (r *Report) Partial() []model.MemberKey {
	var out []model.MemberKey
	for _, key := range r.Axis.Keys() {
		if r.Completeness[key].IsPartial {
			out = append(out, key)
		}
	}
	return out
}

// PeriodsPresent returns member → number of periods present.
func (r *Report) PeriodsPresent() map[model.MemberKey]int {
	out := make(map[model.MemberKey]int, len(r.Completeness))
	for key, c := range r.Completeness {
		out[key] = c.PeriodsPresent
	}
	return out
}

// Equal reports whether two aggregates carry identical content.
func (r *Report) Equal(o *Report) bool {
	if r.ChapterID != o.ChapterID || len(r.Periods) != len(o.Periods) {
		return false
	}
	for i := range r.Periods {
		if r.Periods[i] != o.Periods[i] {
			return false
		}
	}
	if !r.Axis.Equal(o.Axis) || !r.Referral.Equal(o.Referral) || !r.OneToOne.Equal(o.OneToOne) {
		return false
	}
	if !r.Combination.Equal(o.Combination) || !r.TYFCB.Equal(o.TYFCB) {
		return false
	}
	for key, t := range r.Tiers {
		if o.Tiers[key] != t {
			return false
		}
	}
	for key, c := range r.Completeness {
		oc, ok := o.Completeness[key]
		if !ok || oc.PeriodsPresent != c.PeriodsPresent || oc.IsPartial != c.IsPartial || oc.IsNew != c.IsNew {
			return false
		}
		for period, present := range c.Presence {
			if oc.Presence[period] != present {
				return false
			}
		}
	}
	return len(r.Tiers) == len(o.Tiers) && len(r.Completeness) == len(o.Completeness)
}
