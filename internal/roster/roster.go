// Package roster builds the ordered member axis that indexes every matrix of
// a period.
package roster

import (
	"sort"

	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/model"
)

// Directory looks up members by key. identity.Resolver implements it.
type Directory interface {
	Member(key model.MemberKey) (model.Member, bool)
}

// Axis is an immutable, deterministically ordered member list with O(1)
// key-to-index lookup. Order is case-insensitive display name, ties broken by
// member key, so two axes built from the same members are identical.
type Axis struct {
	members []model.Member
	index   map[model.MemberKey]int
}

// NewAxis sorts members into axis order. Duplicate keys keep the first
// occurrence.
func NewAxis(members []model.Member) Axis {
	seen := make(map[model.MemberKey]bool, len(members))
	sorted := make([]model.Member, 0, len(members))
	for _, m := range members {
		if seen[m.Key] {
			continue
		}
		seen[m.Key] = true
		sorted = append(sorted, m)
	}

	sortKeys := make(map[model.MemberKey]string, len(sorted))
	for _, m := range sorted {
		sortKeys[m.Key] = identity.Normalize(m.DisplayName)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sortKeys[sorted[i].Key], sortKeys[sorted[j].Key]
		if a != b {
			return a < b
		}
		return sorted[i].Key < sorted[j].Key
	})

	index := make(map[model.MemberKey]int, len(sorted))
	for i, m := range sorted {
		index[m.Key] = i
	}
	return Axis{members: sorted, index: index}
}

// Build produces the axis for period: every member referenced by an event of
// that period plus every active member of the chapter. Events from other
// periods are ignored.
func Build(chapterID string, period model.Period, active []model.Member, events []model.Event, dir Directory) (Axis, error) {
	members := make([]model.Member, 0, len(active))
	for _, m := range active {
		if m.ChapterID != "" && m.ChapterID != chapterID {
			continue
		}
		members = append(members, m)
	}

	for _, e := range events {
		if e.EventPeriod() != period {
			continue
		}
		for _, key := range e.Participants() {
			m, ok := dir.Member(key)
			if !ok {
				return Axis{}, &model.UnknownMemberError{Member: key, Period: period}
			}
			members = append(members, m)
		}
	}
	return NewAxis(members), nil
}

// Union merges axes into one axis under the same ordering rule. When a key
// appears in several axes the member from the earliest axis wins.
func Union(axes ...Axis) Axis {
	var members []model.Member
	for _, a := range axes {
		members = append(members, a.members...)
	}
	return NewAxis(members)
}

// Len returns the number of members on the axis.
func (a Axis) Len() int { return len(a.members) }

// Member returns the member at position i.
func (a Axis) Member(i int) model.Member { return a.members[i] }

// Members returns a copy of the ordered member list.
func (a Axis) Members() []model.Member {
	out := make([]model.Member, len(a.members))
	copy(out, a.members)
	return out
}

// Keys returns the member keys in axis order.
func (a Axis) Keys() []model.MemberKey {
	out := make([]model.MemberKey, len(a.members))
	for i, m := range a.members {
		out[i] = m.Key
	}
	return out
}

// Names returns the display names in axis order.
func (a Axis) Names() []string {
	out := make([]string, len(a.members))
	for i, m := range a.members {
		out[i] = m.DisplayName
	}
	return out
}

// IndexOf returns the position of key on the axis.
func (a Axis) IndexOf(key model.MemberKey) (int, bool) {
	i, ok := a.index[key]
	return i, ok
}

// Contains reports whether key is on the axis.
func (a Axis) Contains(key model.MemberKey) bool {
	_, ok := a.index[key]
	return ok
}

// Equal reports whether both axes hold the same keys in the same order.
func (a Axis) Equal(b Axis) bool {
	if len(a.members) != len(b.members) {
		return false
	}
	for i := range a.members {
		if a.members[i].Key != b.members[i].Key {
			return false
		}
	}
	return true
}

// SortKey returns the name used to order key on the axis.
func (a Axis) SortKey(key model.MemberKey) string {
	i, ok := a.index[key]
	if !ok {
		return ""
	}
	return identity.Normalize(a.members[i].DisplayName)
}
