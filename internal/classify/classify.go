package classify

import (
	"github.com/sells-group/chapter-report/internal/matrix"
	"github.com/sells-group/chapter-report/internal/model"
)

// Score is one member's classification detail.
type Score struct {
	Total    int        `json:"total"`
	Adjusted float64    `json:"adjusted"` // total per period present
	Eligible bool       `json:"eligible"`
	Tier     model.Tier `json:"tier"`
}

// Result is the outcome of classifying one matrix.
type Result struct {
	Mean   float64                   `json:"mean"`
	Scores map[model.MemberKey]Score `json:"scores"`
}

// Tiers flattens the result to member → tier.
func (r Result) Tiers() map[model.MemberKey]model.Tier {
	out := make(map[model.MemberKey]model.Tier, len(r.Scores))
	for k, s := range r.Scores {
		out[k] = s.Tier
	}
	return out
}

type options struct {
	eligible       map[model.MemberKey]bool
	periodsPresent map[model.MemberKey]int
}

// Option adjusts a classification run.
type Option func(*options)

// WithEligible limits the mean to the given members. Members not in the set
// still get a tier, always red.
func WithEligible(keys map[model.MemberKey]bool) Option {
	return func(o *options) { o.eligible = keys }
}

// WithPeriodsPresent divides each member's total by the number of periods
// they were present in before comparing against the mean. A member present
// in zero periods is ineligible.
func WithPeriodsPresent(present map[model.MemberKey]int) Option {
	return func(o *options) { o.periodsPresent = present }
}

// Classify tiers every member on m's axis by outbound total (row sum).
func Classify(m *matrix.Matrix, cfg Config, opts ...Option) (map[model.MemberKey]model.Tier, error) {
	res, err := Evaluate(m, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return res.Tiers(), nil
}

// Evaluate is Classify with the per-member detail and the mean.
func Evaluate(m *matrix.Matrix, cfg Config, opts ...Option) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	axis := m.Axis()
	scores := make(map[model.MemberKey]Score, axis.Len())
	var sum float64
	var eligible int

	for i := 0; i < axis.Len(); i++ {
		key := axis.Member(i).Key
		s := Score{Total: m.RowTotal(i), Eligible: true}
		s.Adjusted = float64(s.Total)

		if o.eligible != nil && !o.eligible[key] {
			s.Eligible = false
		}
		if o.periodsPresent != nil {
			n := o.periodsPresent[key]
			if n <= 0 {
				s.Eligible = false
			} else {
				s.Adjusted = float64(s.Total) / float64(n)
			}
		}
		if s.Eligible {
			sum += s.Adjusted
			eligible++
		}
		scores[key] = s
	}

	var mean float64
	if eligible > 0 {
		mean = sum / float64(eligible)
	}
	for key, s := range scores {
		if s.Eligible {
			s.Tier = tierFor(s.Adjusted, mean, cfg)
		} else {
			s.Tier = model.TierRed
		}
		scores[key] = s
	}
	return Result{Mean: mean, Scores: scores}, nil
}

// tierFor applies the thresholds in order green, orange, red, orange-low.
// Totals falling in a gap between red_at and orange_low_at are red.
func tierFor(total, mean float64, cfg Config) model.Tier {
	if mean == 0 {
		return model.TierOrange
	}
	switch {
	case total >= cfg.GreenAt*mean:
		return model.TierGreen
	case total >= cfg.OrangeHighAt*mean:
		return model.TierOrange
	case total < cfg.RedAt*mean:
		return model.TierRed
	case total >= cfg.OrangeLowAt*mean:
		return model.TierOrangeLow
	default:
		return model.TierRed
	}
}

// Summarize counts members per tier. Every tier is present in the result.
func Summarize(tiers map[model.MemberKey]model.Tier) map[model.Tier]int {
	out := make(map[model.Tier]int, len(model.Tiers))
	for _, t := range model.Tiers {
		out[t] = 0
	}
	for _, t := range tiers {
		out[t]++
	}
	return out
}
