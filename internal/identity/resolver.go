package identity

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/model"
)

// Resolver maps raw name strings to member keys for a single chapter.
// Lookup order:
//  1. Alias table (exact trimmed raw name)
//  2. Normalized name index
//  3. New member keyed by KeyFor(chapter, normalized)
//
// A Resolver is safe for concurrent use.
type Resolver struct {
	chapterID string
	aliases   Aliases

	mu           sync.Mutex
	byNormalized map[string]model.MemberKey
	// rosterRaw holds the first roster spelling registered per normalized name.
	rosterRaw map[string]string
	members   map[model.MemberKey]model.Member
}

// NewResolver creates a resolver for chapterID with the given alias overrides.
func NewResolver(chapterID string, aliases Aliases) *Resolver {
	return &Resolver{
		chapterID:    chapterID,
		aliases:      aliases,
		byNormalized: make(map[string]model.MemberKey),
		rosterRaw:    make(map[string]string),
		members:      make(map[model.MemberKey]model.Member),
	}
}

// ChapterID returns the chapter this resolver serves.
func (r *Resolver) ChapterID() string { return r.chapterID }

// Resolve returns the member key for rawName, creating the member on first
// sight and recording rawName as a variant otherwise.
func (r *Resolver) Resolve(rawName string) (model.MemberKey, error) {
	trimmed := strings.TrimSpace(rawName)
	if trimmed == "" {
		return "", eris.New("identity: empty member name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if alias, ok := r.aliases.Lookup(trimmed); ok {
		key := alias.keyIn(r.chapterID)
		display := alias.Target
		if display == "" {
			display = trimmed
		}
		r.attach(key, display, trimmed, false)
		return key, nil
	}

	n := Normalize(trimmed)
	if n == "" {
		return "", eris.Errorf("identity: name %q normalizes to nothing", rawName)
	}
	if key, ok := r.byNormalized[n]; ok {
		r.attach(key, trimmed, trimmed, false)
		return key, nil
	}

	key := KeyFor(r.chapterID, n)
	r.byNormalized[n] = key
	r.attach(key, trimmed, trimmed, false)
	zap.L().Debug("identity: new member",
		zap.String("chapter", r.chapterID),
		zap.String("name", trimmed),
		zap.String("member_key", string(key)),
	)
	return key, nil
}

// Register seeds an active roster member. When entry.Key is empty the key is
// derived exactly as Resolve would. Two different roster spellings that
// normalize to the same name return a DuplicateNormalizedKeyError unless an
// alias covers the raw name or both entries carry the same explicit key.
func (r *Resolver) Register(entry model.RosterEntry) (model.MemberKey, error) {
	trimmed := strings.TrimSpace(entry.RawName)
	if trimmed == "" {
		return "", eris.New("identity: roster entry without a name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if alias, ok := r.aliases.Lookup(trimmed); ok {
		key := alias.keyIn(r.chapterID)
		if entry.Key != "" && entry.Key != key {
			return "", eris.Errorf("identity: roster key %s for %q contradicts alias to %s", entry.Key, trimmed, key)
		}
		display := alias.Target
		if display == "" {
			display = trimmed
		}
		r.attach(key, display, trimmed, true)
		return key, nil
	}

	n := Normalize(trimmed)
	if n == "" {
		return "", eris.Errorf("identity: name %q normalizes to nothing", entry.RawName)
	}
	existing, seen := r.byNormalized[n]
	if prev, ok := r.rosterRaw[n]; ok && prev != trimmed && entry.Key != existing {
		incoming := entry.Key
		if incoming == "" {
			incoming = existing
		}
		return "", &model.DuplicateNormalizedKeyError{
			Normalized: n,
			Existing:   existing,
			Incoming:   incoming,
			RawName:    trimmed,
		}
	}
	key := entry.Key
	switch {
	case key == "" && seen:
		key = existing
	case key == "":
		key = KeyFor(r.chapterID, n)
	case seen && existing != key:
		return "", &model.DuplicateNormalizedKeyError{
			Normalized: n,
			Existing:   existing,
			Incoming:   key,
			RawName:    trimmed,
		}
	}
	r.byNormalized[n] = key
	if _, ok := r.rosterRaw[n]; !ok {
		r.rosterRaw[n] = trimmed
	}
	r.attach(key, trimmed, trimmed, true)
	return key, nil
}

// attach records a variant for key, creating the member if needed.
// Caller holds r.mu.
func (r *Resolver) attach(key model.MemberKey, display, variant string, active bool) {
	m, ok := r.members[key]
	if !ok {
		m = model.Member{
			Key:         key,
			ChapterID:   r.chapterID,
			DisplayName: DisplayName(display),
		}
	}
	if active {
		m.Active = true
	}
	r.members[key] = m.WithVariant(variant)
}

// Member returns the member for key.
func (r *Resolver) Member(key model.MemberKey) (model.Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[key]
	return m, ok
}

// Members returns every member seen so far, ordered by key.
func (r *Resolver) Members() []model.Member {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// ActiveMembers returns the members registered from a roster source.
func (r *Resolver) ActiveMembers() []model.Member {
	all := r.Members()
	out := all[:0]
	for _, m := range all {
		if m.Active {
			out = append(out, m)
		}
	}
	return out
}

// ResolveEvents resolves every participant of raw and parses TYFCB amounts.
// Historical events are never rewritten; the returned slice is new.
func (r *Resolver) ResolveEvents(raw []model.RawEvent) ([]model.Event, error) {
	events := make([]model.Event, 0, len(raw))
	for _, re := range raw {
		e, err := r.resolveEvent(re)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func (r *Resolver) resolveEvent(re model.RawEvent) (model.Event, error) {
	switch re.Kind {
	case model.KindReferral:
		from, to, err := r.resolvePair(re)
		if err != nil {
			return nil, err
		}
		return model.Referral{Giver: from, Receiver: to, Period: re.Period}, nil
	case model.KindOneToOne:
		from, to, err := r.resolvePair(re)
		if err != nil {
			return nil, err
		}
		return model.OneToOne{A: from, B: to, Period: re.Period}, nil
	case model.KindTYFCB:
		receiver, err := r.Resolve(re.To)
		if err != nil {
			return nil, eris.Wrapf(err, "identity: tyfcb receiver (line %d)", re.Line)
		}
		// Outside business names a non-member in From; it never joins the axis.
		var giver model.MemberKey
		if re.Inside && strings.TrimSpace(re.From) != "" {
			if giver, err = r.Resolve(re.From); err != nil {
				return nil, eris.Wrapf(err, "identity: tyfcb giver (line %d)", re.Line)
			}
		}
		amount, err := model.ParseAmount(re.Amount)
		if err != nil {
			var iae *model.InvalidAmountError
			if errors.As(err, &iae) {
				iae.Member = receiver
				iae.Line = re.Line
			}
			return nil, err
		}
		return model.TYFCB{
			Receiver: receiver,
			Giver:    giver,
			Amount:   amount,
			Inside:   re.Inside,
			Period:   re.Period,
		}, nil
	default:
		return nil, eris.Errorf("identity: unknown event kind %q (line %d)", re.Kind, re.Line)
	}
}

func (r *Resolver) resolvePair(re model.RawEvent) (model.MemberKey, model.MemberKey, error) {
	from, err := r.Resolve(re.From)
	if err != nil {
		return "", "", eris.Wrapf(err, "identity: %s from (line %d)", re.Kind, re.Line)
	}
	to, err := r.Resolve(re.To)
	if err != nil {
		return "", "", eris.Wrapf(err, "identity: %s to (line %d)", re.Kind, re.Line)
	}
	return from, to, nil
}
