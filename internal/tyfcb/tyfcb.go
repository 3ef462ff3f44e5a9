// Package tyfcb sums closed-business amounts per receiving member, split by
// whether the business came from inside or outside the chapter.
package tyfcb

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/roster"
)

// Amounts is one member's closed business for a period.
type Amounts struct {
	Inside  decimal.Decimal `json:"inside"`
	Outside decimal.Decimal `json:"outside"`
}

// Total returns Inside + Outside.
func (a Amounts) Total() decimal.Decimal { return a.Inside.Add(a.Outside) }

// Add returns the element-wise sum.
func (a Amounts) Add(b Amounts) Amounts {
	return Amounts{Inside: a.Inside.Add(b.Inside), Outside: a.Outside.Add(b.Outside)}
}

// Equal compares numerically, so 1.5 equals 1.50.
func (a Amounts) Equal(b Amounts) bool {
	return a.Inside.Equal(b.Inside) && a.Outside.Equal(b.Outside)
}

// Summary maps every member of an axis to its amounts. Members with no
// closed business carry zeros.
type Summary map[model.MemberKey]Amounts

// Aggregate sums the TYFCB events onto axis. Other event kinds are skipped.
func Aggregate(events []model.Event, axis roster.Axis) (Summary, error) {
	out := make(Summary, axis.Len())
	for _, key := range axis.Keys() {
		out[key] = Amounts{}
	}

	for _, e := range events {
		ev, ok := e.(model.TYFCB)
		if !ok {
			continue
		}
		if ev.Amount.IsNegative() {
			return nil, &model.InvalidAmountError{Value: ev.Amount.String(), Member: ev.Receiver}
		}
		if ev.Giver != "" && ev.Giver == ev.Receiver {
			return nil, &model.SelfInteractionError{Kind: model.KindTYFCB, Member: ev.Receiver, Period: ev.Period}
		}
		cur, ok := out[ev.Receiver]
		if !ok {
			return nil, &model.UnknownMemberError{Member: ev.Receiver, Period: ev.Period}
		}
		if ev.Inside {
			cur.Inside = cur.Inside.Add(ev.Amount)
		} else {
			cur.Outside = cur.Outside.Add(ev.Amount)
		}
		out[ev.Receiver] = cur
	}
	return out, nil
}

// Reindex returns s with an entry for every member of axis, zero-filling
// members s does not know. Every member of s must be on axis.
func (s Summary) Reindex(axis roster.Axis) (Summary, error) {
	out := make(Summary, axis.Len())
	for key, a := range s {
		if !axis.Contains(key) {
			return nil, &model.AxisMismatchError{Op: "reindex tyfcb: " + string(key) + " missing from target axis", Left: len(s), Right: axis.Len()}
		}
		out[key] = a
	}
	for _, key := range axis.Keys() {
		if _, ok := out[key]; !ok {
			out[key] = Amounts{}
		}
	}
	return out, nil
}

// Merge sums summaries member by member. The result holds the union of keys.
func Merge(summaries ...Summary) Summary {
	out := make(Summary)
	for _, s := range summaries {
		for key, a := range s {
			out[key] = out[key].Add(a)
		}
	}
	return out
}

// Get returns the amounts for key, zero when absent.
func (s Summary) Get(key model.MemberKey) Amounts { return s[key] }

// Total returns the member's inside + outside total.
func (s Summary) Total(key model.MemberKey) decimal.Decimal { return s[key].Total() }

// ChapterTotal sums every member.
func (s Summary) ChapterTotal() Amounts {
	var out Amounts
	for _, a := range s {
		out = out.Add(a)
	}
	return out
}

// Keys returns the member keys in sorted order.
func (s Summary) Keys() []model.MemberKey {
	keys := make([]model.MemberKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Equal reports whether both summaries hold the same keys with numerically
// equal amounts.
func (s Summary) Equal(o Summary) bool {
	if len(s) != len(o) {
		return false
	}
	for k, a := range s {
		b, ok := o[k]
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}
