package identity

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chapter-report/internal/model"
)

func TestNormalize_Empty(t *testing.T) {
	assert.Equal(t, "", Normalize(""))
	assert.Equal(t, "", Normalize("   "))
}

func TestNormalize_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, "alice smith", Normalize("  Alice   SMITH "))
	assert.Equal(t, "alice smith", Normalize("alice\tsmith"))
}

func TestNormalize_Punctuation(t *testing.T) {
	assert.Equal(t, Normalize("OBrien"), Normalize("O'Brien"))
	assert.Equal(t, Normalize("OBrien"), Normalize("O’Brien"))
	assert.Equal(t, "mary jane watson", Normalize("Mary-Jane Watson"))
	assert.Equal(t, "jr smith", Normalize("J.R. Smith"))
	assert.Equal(t, "smith john", Normalize("Smith, John"))
}

func TestNormalize_Unicode(t *testing.T) {
	assert.Equal(t, Normalize("Ｊｏｓé"), Normalize("josé"))
}

func TestKeyFor_Deterministic(t *testing.T) {
	a := KeyFor("ch-1", "alice")
	assert.Equal(t, a, KeyFor("ch-1", "alice"))
	assert.NotEqual(t, a, KeyFor("ch-2", "alice"))
	assert.NotEqual(t, a, KeyFor("ch-1", "bob"))
}

func TestResolver_SameKeyForVariants(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})

	k1, err := r.Resolve("Patrick O'Brien")
	require.NoError(t, err)
	k2, err := r.Resolve("patrick  obrien")
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	m, ok := r.Member(k1)
	require.True(t, ok)
	assert.Equal(t, "Patrick O'Brien", m.DisplayName)
	assert.Equal(t, []string{"Patrick O'Brien", "patrick  obrien"}, m.Variants)
	assert.False(t, m.Active)
	assert.Len(t, r.Members(), 1)
}

func TestResolver_EmptyName(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})
	_, err := r.Resolve("  ")
	assert.Error(t, err)

	_, err = r.Resolve("'.-")
	assert.Error(t, err)
}

func TestResolver_AliasMerge(t *testing.T) {
	aliases, err := NewAliases([]Alias{{RawName: "Jon Smith", Target: "John Smith"}})
	require.NoError(t, err)
	r := NewResolver("ch-1", aliases)

	canonical, err := r.Resolve("John Smith")
	require.NoError(t, err)
	aliased, err := r.Resolve("Jon Smith")
	require.NoError(t, err)

	assert.Equal(t, canonical, aliased)
	m, _ := r.Member(canonical)
	assert.Equal(t, []string{"John Smith", "Jon Smith"}, m.Variants)
}

func TestResolver_AliasUnmerge(t *testing.T) {
	// Two different people whose names normalize identically.
	aliases, err := NewAliases([]Alias{
		{RawName: "Chris Lee-Park", Key: "member-a"},
		{RawName: "Chris Lee Park", Key: "member-b"},
	})
	require.NoError(t, err)
	r := NewResolver("ch-1", aliases)

	a, err := r.Resolve("Chris Lee-Park")
	require.NoError(t, err)
	b, err := r.Resolve("Chris Lee Park")
	require.NoError(t, err)

	assert.Equal(t, model.MemberKey("member-a"), a)
	assert.Equal(t, model.MemberKey("member-b"), b)
}

func TestResolver_RegisterDuplicateNormalizedKey(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})

	_, err := r.Register(model.RosterEntry{RawName: "Chris Lee-Park", Key: "member-a"})
	require.NoError(t, err)

	_, err = r.Register(model.RosterEntry{RawName: "Chris Lee Park", Key: "member-b"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDuplicateNormalized))

	var dup *model.DuplicateNormalizedKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, model.MemberKey("member-a"), dup.Existing)
	assert.Equal(t, model.MemberKey("member-b"), dup.Incoming)
}

func TestResolver_RegisterCollidingSpellings(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})

	first, err := r.Register(model.RosterEntry{RawName: "Mary-Jane Doe"})
	require.NoError(t, err)

	_, err = r.Register(model.RosterEntry{RawName: "Mary Jane Doe"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDuplicateNormalized))

	var dup *model.DuplicateNormalizedKeyError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, first, dup.Existing)
	assert.Equal(t, "Mary Jane Doe", dup.RawName)
	assert.Len(t, r.Members(), 1)

	// The same roster line twice is not a collision.
	again, err := r.Register(model.RosterEntry{RawName: "Mary-Jane Doe"})
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// Slips may still spell the name either way.
	resolved, err := r.Resolve("Mary Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, first, resolved)
}

func TestResolver_RegisterCollidingSpellingsWithAlias(t *testing.T) {
	aliases, err := NewAliases([]Alias{{RawName: "Mary Jane Doe", Key: "member-b"}})
	require.NoError(t, err)
	r := NewResolver("ch-1", aliases)

	a, err := r.Register(model.RosterEntry{RawName: "Mary-Jane Doe"})
	require.NoError(t, err)
	b, err := r.Register(model.RosterEntry{RawName: "Mary Jane Doe"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, model.MemberKey("member-b"), b)
	assert.Len(t, r.ActiveMembers(), 2)
}

func TestResolver_RegisterMarksActive(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})

	key, err := r.Register(model.RosterEntry{RawName: "Alice"})
	require.NoError(t, err)
	_, err = r.Resolve("Bob")
	require.NoError(t, err)

	resolved, err := r.Resolve("ALICE")
	require.NoError(t, err)
	assert.Equal(t, key, resolved)

	active := r.ActiveMembers()
	require.Len(t, active, 1)
	assert.Equal(t, key, active[0].Key)
}

func TestResolver_RegisterExplicitKeyReused(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})

	key, err := r.Register(model.RosterEntry{RawName: "Alice", Key: "m-42"})
	require.NoError(t, err)
	assert.Equal(t, model.MemberKey("m-42"), key)

	again, err := r.Register(model.RosterEntry{RawName: "alice", Key: "m-42"})
	require.NoError(t, err)
	assert.Equal(t, key, again)

	resolved, err := r.Resolve("Alice")
	require.NoError(t, err)
	assert.Equal(t, key, resolved)
}

func TestResolver_RegisterContradictsAlias(t *testing.T) {
	aliases, err := NewAliases([]Alias{{RawName: "Alice", Key: "m-1"}})
	require.NoError(t, err)
	r := NewResolver("ch-1", aliases)

	_, err = r.Register(model.RosterEntry{RawName: "Alice", Key: "m-2"})
	assert.Error(t, err)
}

func TestResolver_ConcurrentResolve(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})
	names := []string{"Alice", "alice", "ALICE ", "Bob", "bob"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, n := range names {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				_, err := r.Resolve(name)
				assert.NoError(t, err)
			}(n)
		}
	}
	wg.Wait()

	assert.Len(t, r.Members(), 2)
}

func TestResolver_ResolveEvents(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})
	raw := []model.RawEvent{
		{Kind: model.KindReferral, From: "Alice", To: "Bob", Period: "2024-01"},
		{Kind: model.KindOneToOne, From: "bob", To: "Carol", Period: "2024-01"},
		{Kind: model.KindTYFCB, From: "Carol", To: "alice", Amount: "$1,250.50", Inside: true, Period: "2024-01"},
		{Kind: model.KindTYFCB, To: "Bob", Amount: "300", Period: "2024-01"},
	}

	events, err := r.ResolveEvents(raw)
	require.NoError(t, err)
	require.Len(t, events, 4)

	alice, _ := r.Resolve("Alice")
	bob, _ := r.Resolve("Bob")
	carol, _ := r.Resolve("Carol")

	assert.Equal(t, model.Referral{Giver: alice, Receiver: bob, Period: "2024-01"}, events[0])
	assert.Equal(t, model.OneToOne{A: bob, B: carol, Period: "2024-01"}, events[1])

	ty := events[2].(model.TYFCB)
	assert.Equal(t, alice, ty.Receiver)
	assert.Equal(t, carol, ty.Giver)
	assert.True(t, ty.Amount.Equal(decimal.RequireFromString("1250.50")))
	assert.True(t, ty.Inside)

	outside := events[3].(model.TYFCB)
	assert.Equal(t, model.MemberKey(""), outside.Giver)
	assert.False(t, outside.Inside)
}

func TestResolver_OutsideTYFCBGiverNotAMember(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})
	_, err := r.Register(model.RosterEntry{RawName: "Bob"})
	require.NoError(t, err)

	events, err := r.ResolveEvents([]model.RawEvent{
		{Kind: model.KindTYFCB, From: "Acme Client", To: "Bob", Amount: "900", Period: "2024-01"},
	})
	require.NoError(t, err)
	require.Len(t, events, 1)

	ty := events[0].(model.TYFCB)
	assert.Empty(t, ty.Giver)
	assert.False(t, ty.Inside)
	require.Len(t, r.Members(), 1)
	assert.Equal(t, "Bob", r.Members()[0].DisplayName)
}

func TestResolver_ResolveEventsInvalidAmount(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})
	for _, amount := range []string{"-5", "lots"} {
		_, err := r.ResolveEvents([]model.RawEvent{
			{Kind: model.KindTYFCB, To: "Bob", Amount: amount, Line: 9},
		})
		require.Error(t, err)
		var iae *model.InvalidAmountError
		require.True(t, errors.As(err, &iae), amount)
		assert.Equal(t, 9, iae.Line)
		assert.NotEmpty(t, iae.Member)
	}
}

func TestResolver_ResolveEventsUnknownKind(t *testing.T) {
	r := NewResolver("ch-1", Aliases{})
	_, err := r.ResolveEvents([]model.RawEvent{{Kind: "visitor", From: "A", To: "B"}})
	assert.ErrorContains(t, err, "unknown event kind")
}

func TestNewAliases_Validation(t *testing.T) {
	_, err := NewAliases([]Alias{{RawName: " ", Target: "x"}})
	assert.Error(t, err)

	_, err = NewAliases([]Alias{{RawName: "a"}})
	assert.Error(t, err)

	_, err = NewAliases([]Alias{{RawName: "a", Key: "1"}, {RawName: "a ", Key: "2"}})
	assert.ErrorContains(t, err, "conflicting")

	a, err := NewAliases([]Alias{{RawName: "b", Key: "1"}, {RawName: "a", Key: "2"}, {RawName: "a", Key: "2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, "a", a.List()[0].RawName)
}

func TestLoadAliasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	content := `
aliases:
  - raw_name: "Jon Smith"
    target: "John Smith"
    note: "typo on slip audit"
  - raw_name: "Chris Lee Park"
    member_key: "member-b"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	a, err := LoadAliasesFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Len())

	alias, ok := a.Lookup(" Jon Smith ")
	require.True(t, ok)
	assert.Equal(t, "John Smith", alias.Target)
	assert.Equal(t, KeyFor("ch", "john smith"), alias.keyIn("ch"))
}

func TestLoadAliasesFile_Missing(t *testing.T) {
	_, err := LoadAliasesFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
