package matrix

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/roster"
)

const period = model.Period("2024-01")

func testAxis(names ...string) roster.Axis {
	members := make([]model.Member, len(names))
	for i, n := range names {
		members[i] = model.Member{Key: model.MemberKey(n), DisplayName: n, Active: true}
	}
	return roster.NewAxis(members)
}

func ref(from, to string) model.Event {
	return model.Referral{Giver: model.MemberKey(from), Receiver: model.MemberKey(to), Period: period}
}

func oto(a, b string) model.Event {
	return model.OneToOne{A: model.MemberKey(a), B: model.MemberKey(b), Period: period}
}

func TestBuild_AliceBobCarolScenario(t *testing.T) {
	axis := testAxis("Alice", "Bob", "Carol")
	events := []model.Event{
		ref("Alice", "Bob"),
		ref("Alice", "Bob"),
		oto("Bob", "Carol"),
	}

	referral, err := Build(model.KindReferral, events, axis)
	require.NoError(t, err)
	oneToOne, err := Build(model.KindOneToOne, events, axis)
	require.NoError(t, err)
	combo, err := Compose(referral, oneToOne)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 2, 0}, referral.Row(0))
	assert.Equal(t, 1, oneToOne.Get("Bob", "Carol"))
	assert.Equal(t, 1, oneToOne.Get("Carol", "Bob"))
	assert.Equal(t, 0, oneToOne.Get("Alice", "Bob"))

	assert.Equal(t, CodeReferralOnly, combo.At(0, 1))
	assert.Equal(t, CodeOneToOneOnly, combo.At(1, 2))
	assert.Equal(t, CodeNeither, combo.At(0, 2))
	assert.Equal(t, [][]int{{0, 2, 0}, {0, 0, 1}, {0, 1, 0}}, combo.Cells())
}

func TestBuild_SelfInteraction(t *testing.T) {
	axis := testAxis("Alice", "Bob")

	_, err := Build(model.KindReferral, []model.Event{ref("Alice", "Alice")}, axis)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrSelfInteraction))

	_, err = Build(model.KindOneToOne, []model.Event{oto("Bob", "Bob")}, axis)
	assert.True(t, errors.Is(err, model.ErrSelfInteraction))
}

func TestBuild_UnknownMember(t *testing.T) {
	axis := testAxis("Alice", "Bob")

	_, err := Build(model.KindReferral, []model.Event{ref("Alice", "Zed")}, axis)
	require.Error(t, err)
	var ume *model.UnknownMemberError
	require.True(t, errors.As(err, &ume))
	assert.Equal(t, model.MemberKey("Zed"), ume.Member)
}

func TestBuild_IgnoresOtherKinds(t *testing.T) {
	axis := testAxis("Alice", "Bob")
	events := []model.Event{
		oto("Alice", "Bob"),
		model.TYFCB{Receiver: "Alice", Amount: decimal.NewFromInt(10), Period: period},
	}

	m, err := Build(model.KindReferral, events, axis)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Total())
}

func TestBuild_RejectsTYFCBKind(t *testing.T) {
	_, err := Build(model.KindTYFCB, nil, testAxis("A"))
	assert.Error(t, err)
}

func randomEvents(rng *rand.Rand, names []string, n int) []model.Event {
	events := make([]model.Event, 0, n)
	for len(events) < n {
		a, b := names[rng.Intn(len(names))], names[rng.Intn(len(names))]
		if a == b {
			continue
		}
		if rng.Intn(2) == 0 {
			events = append(events, ref(a, b))
		} else {
			events = append(events, oto(a, b))
		}
	}
	return events
}

func TestBuild_Properties(t *testing.T) {
	names := []string{"A", "B", "C", "D", "E", "F"}
	axis := testAxis(names...)
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 25; round++ {
		events := randomEvents(rng, names, rng.Intn(60))
		t.Run(fmt.Sprintf("round-%d", round), func(t *testing.T) {
			referral, err := Build(model.KindReferral, events, axis)
			require.NoError(t, err)
			oneToOne, err := Build(model.KindOneToOne, events, axis)
			require.NoError(t, err)
			combo, err := Compose(referral, oneToOne)
			require.NoError(t, err)

			given := map[model.MemberKey]int{}
			received := map[model.MemberKey]int{}
			for _, e := range events {
				if r, ok := e.(model.Referral); ok {
					given[r.Giver]++
					received[r.Receiver]++
				}
			}

			for i := 0; i < axis.Len(); i++ {
				key := axis.Member(i).Key
				assert.Equal(t, 0, referral.At(i, i))
				assert.Equal(t, 0, oneToOne.At(i, i))
				assert.Equal(t, given[key], referral.RowTotal(i))
				assert.Equal(t, received[key], referral.ColumnTotal(i))
				assert.Equal(t, oneToOne.RowTotal(i), oneToOne.ColumnTotal(i))

				for j := 0; j < axis.Len(); j++ {
					r, o := referral.At(i, j), oneToOne.At(i, j)
					assert.Equal(t, r > 0 && o > 0, combo.At(i, j) == CodeBoth)
					assert.Equal(t, r == 0 && o == 0, combo.At(i, j) == CodeNeither)
					assert.Equal(t, o, oneToOne.At(j, i))
				}
			}
		})
	}
}

func TestBuild_Idempotent(t *testing.T) {
	names := []string{"A", "B", "C", "D"}
	events := randomEvents(rand.New(rand.NewSource(7)), names, 40)

	first, err := Build(model.KindReferral, events, testAxis(names...))
	require.NoError(t, err)
	second, err := Build(model.KindReferral, events, testAxis("D", "C", "B", "A"))
	require.NoError(t, err)

	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Cells(), second.Cells())
}

func TestMatrix_ImmutableAccessors(t *testing.T) {
	m, err := Build(model.KindReferral, []model.Event{ref("A", "B")}, testAxis("A", "B"))
	require.NoError(t, err)

	row := m.Row(0)
	row[1] = 99
	cells := m.Cells()
	cells[0][1] = 99

	assert.Equal(t, 1, m.At(0, 1))
}

func TestCompose_AxisMismatch(t *testing.T) {
	r := Empty(model.KindReferral, testAxis("A", "B"))
	o := Empty(model.KindOneToOne, testAxis("A", "B", "C"))

	_, err := Compose(r, o)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAxisMismatch))

	reordered := Empty(model.KindOneToOne, roster.NewAxis([]model.Member{
		{Key: "A", DisplayName: "Zed"},
		{Key: "B", DisplayName: "Amy"},
	}))
	_, err = Compose(r, reordered)
	assert.True(t, errors.Is(err, model.ErrAxisMismatch))
}

func TestCompose_WrongKinds(t *testing.T) {
	axis := testAxis("A", "B")
	_, err := Compose(Empty(model.KindOneToOne, axis), Empty(model.KindReferral, axis))
	assert.Error(t, err)
}

func TestReindex_ZeroFillsNewMembers(t *testing.T) {
	m, err := Build(model.KindReferral, []model.Event{ref("B", "D")}, testAxis("B", "D"))
	require.NoError(t, err)

	target := testAxis("A", "B", "C", "D")
	re, err := m.Reindex(target)
	require.NoError(t, err)

	assert.Equal(t, 4, re.Len())
	assert.Equal(t, 1, re.Get("B", "D"))
	assert.Equal(t, 1, re.Total())
	assert.Equal(t, []int{0, 0, 0, 0}, re.Row(0))
}

func TestReindex_MissingMember(t *testing.T) {
	m := Empty(model.KindReferral, testAxis("A", "B"))
	_, err := m.Reindex(testAxis("A", "C"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrAxisMismatch))
}

func TestSum(t *testing.T) {
	axis := testAxis("A", "B")
	m1, _ := Build(model.KindReferral, []model.Event{ref("A", "B")}, axis)
	m2, _ := Build(model.KindReferral, []model.Event{ref("A", "B"), ref("B", "A")}, axis)

	sum, err := Sum(m1, m2)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{0, 2}, {1, 0}}, sum.Cells())
	assert.Equal(t, [][]int{{0, 1}, {0, 0}}, m1.Cells())
}

func TestSum_Errors(t *testing.T) {
	_, err := Sum()
	assert.True(t, errors.Is(err, model.ErrEmptyPeriodSet))

	_, err = Sum(Empty(model.KindReferral, testAxis("A")), Empty(model.KindReferral, testAxis("A", "B")))
	assert.True(t, errors.Is(err, model.ErrAxisMismatch))

	_, err = Sum(Empty(model.KindReferral, testAxis("A")), Empty(model.KindOneToOne, testAxis("A")))
	assert.Error(t, err)
}

func TestNew_ValidatesInvariants(t *testing.T) {
	axis := testAxis("A", "B")

	m, err := New(model.KindReferral, axis, [][]int{{0, 3}, {1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 4, m.Total())

	_, err = New(model.KindReferral, axis, [][]int{{0, 3}})
	assert.True(t, errors.Is(err, model.ErrAxisMismatch))

	_, err = New(model.KindReferral, axis, [][]int{{0, -1}, {0, 0}})
	assert.Error(t, err)

	_, err = New(model.KindReferral, axis, [][]int{{2, 0}, {0, 0}})
	assert.True(t, errors.Is(err, model.ErrSelfInteraction))
}

func TestNewCombination_Validates(t *testing.T) {
	axis := testAxis("A", "B")

	c, err := NewCombination(axis, [][]int{{0, 3}, {2, 0}})
	require.NoError(t, err)
	assert.Equal(t, CodeBoth, c.At(0, 1))
	assert.Equal(t, map[Code]int{CodeBoth: 1, CodeReferralOnly: 1}, c.Counts())

	_, err = NewCombination(axis, [][]int{{0, 4}, {0, 0}})
	assert.Error(t, err)
	_, err = NewCombination(axis, [][]int{{1, 0}, {0, 0}})
	assert.Error(t, err)
}

func TestCombination_RelationshipCountsAndReindex(t *testing.T) {
	axis := testAxis("A", "B", "C")
	events := []model.Event{ref("A", "B"), oto("A", "C")}
	r, _ := Build(model.KindReferral, events, axis)
	o, _ := Build(model.KindOneToOne, events, axis)
	c, err := Compose(r, o)
	require.NoError(t, err)

	assert.Equal(t, map[model.MemberKey]int{"A": 2, "B": 0, "C": 1}, c.RelationshipCounts())

	wide, err := c.Reindex(testAxis("A", "B", "C", "D"))
	require.NoError(t, err)
	assert.Equal(t, 4, wide.Len())
	assert.Equal(t, CodeReferralOnly, wide.At(0, 1))
	assert.Equal(t, CodeNeither, wide.At(3, 0))
	assert.False(t, wide.Equal(c))
}

func TestCode_String(t *testing.T) {
	assert.Equal(t, "both", CodeBoth.String())
	assert.Equal(t, "invalid", Code(9).String())
	assert.False(t, Code(-1).Valid())
}
