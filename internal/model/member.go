package model

import "sort"

// MemberKey is the stable identifier of a chapter member. It is the join key
// for every matrix, summary and comparison; list position never is.
type MemberKey string

// Period identifies a single reporting interval, e.g. "2024-01".
// Periods sort lexicographically in chronological order.
type Period string

// Member is a person on a chapter roster.
type Member struct {
	Key         MemberKey `json:"key"`
	ChapterID   string    `json:"chapter_id"`
	DisplayName string    `json:"display_name"`
	Variants    []string  `json:"variants,omitempty"` // raw spellings seen, sorted
	Active      bool      `json:"active"`
}

// HasVariant reports whether raw was already observed for this member.
func (m Member) HasVariant(raw string) bool {
	i := sort.SearchStrings(m.Variants, raw)
	return i < len(m.Variants) && m.Variants[i] == raw
}

// WithVariant returns a copy of m with raw added to its variant set.
func (m Member) WithVariant(raw string) Member {
	if raw == "" || m.HasVariant(raw) {
		return m
	}
	variants := make([]string, 0, len(m.Variants)+1)
	variants = append(variants, m.Variants...)
	variants = append(variants, raw)
	sort.Strings(variants)
	m.Variants = variants
	return m
}

// RosterEntry is one line of an active-member roster as delivered by a
// roster source. Key is optional.
type RosterEntry struct {
	RawName string    `json:"raw_name"`
	Key     MemberKey `json:"key,omitempty"`
}

// SortPeriods returns a sorted copy of periods with duplicates removed.
func SortPeriods(periods []Period) []Period {
	seen := make(map[Period]bool, len(periods))
	out := make([]Period, 0, len(periods))
	for _, p := range periods {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
