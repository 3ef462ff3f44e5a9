package matrix

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/roster"
)

// Code classifies a member pair by which interactions it had.
type Code int

const (
	CodeNeither      Code = 0
	CodeOneToOneOnly Code = 1
	CodeReferralOnly Code = 2
	CodeBoth         Code = 3
)

func (c Code) String() string {
	switch c {
	case CodeNeither:
		return "neither"
	case CodeOneToOneOnly:
		return "one_to_one_only"
	case CodeReferralOnly:
		return "referral_only"
	case CodeBoth:
		return "both"
	default:
		return "invalid"
	}
}

// Valid reports whether c is in the combination domain.
func (c Code) Valid() bool { return c >= CodeNeither && c <= CodeBoth }

// codeFor derives the code from the two source counts.
func codeFor(referrals, oneToOnes int) Code {
	switch {
	case referrals > 0 && oneToOnes > 0:
		return CodeBoth
	case referrals > 0:
		return CodeReferralOnly
	case oneToOnes > 0:
		return CodeOneToOneOnly
	default:
		return CodeNeither
	}
}

// Combination is an immutable coded matrix summarizing referral and
// one-to-one presence per pair. It keeps no counts.
type Combination struct {
	axis  roster.Axis
	cells [][]Code
}

// Compose derives the combination matrix. Both inputs must be on the same
// axis.
func Compose(referral, oneToOne *Matrix) (*Combination, error) {
	if referral.Kind() != model.KindReferral || oneToOne.Kind() != model.KindOneToOne {
		return nil, eris.Errorf("matrix: compose needs referral and one_to_one matrices, got %s and %s",
			referral.Kind(), oneToOne.Kind())
	}
	if !referral.axis.Equal(oneToOne.axis) {
		return nil, &model.AxisMismatchError{Op: "compose", Left: referral.Len(), Right: oneToOne.Len()}
	}
	n := referral.Len()
	cells := zeroCodes(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			cells[i][j] = codeFor(referral.cells[i][j], oneToOne.cells[i][j])
		}
	}
	return &Combination{axis: referral.axis, cells: cells}, nil
}

// NewCombination wraps decoded codes, validating the domain and zero diagonal.
func NewCombination(axis roster.Axis, cells [][]int) (*Combination, error) {
	n := axis.Len()
	if len(cells) != n {
		return nil, &model.AxisMismatchError{Op: "new combination", Left: n, Right: len(cells)}
	}
	out := zeroCodes(n)
	for i, row := range cells {
		if len(row) != n {
			return nil, &model.AxisMismatchError{Op: "new combination", Left: n, Right: len(row)}
		}
		for j, v := range row {
			c := Code(v)
			if !c.Valid() {
				return nil, eris.Errorf("matrix: combination cell [%d][%d] = %d outside 0..3", i, j, v)
			}
			if i == j && c != CodeNeither {
				return nil, eris.Errorf("matrix: combination diagonal [%d][%d] = %d", i, j, v)
			}
			out[i][j] = c
		}
	}
	return &Combination{axis: axis, cells: out}, nil
}

func zeroCodes(n int) [][]Code {
	backing := make([]Code, n*n)
	cells := make([][]Code, n)
	for i := range cells {
		cells[i] = backing[i*n : (i+1)*n : (i+1)*n]
	}
	return cells
}

// Axis returns the member axis.
func (c *Combination) Axis() roster.Axis { return c.axis }

// Len returns the number of rows.
func (c *Combination) Len() int { return len(c.cells) }

// At returns the code at [i][j].
func (c *Combination) At(i, j int) Code { return c.cells[i][j] }

// Cells returns the codes as plain ints, suitable for serialization.
func (c *Combination) Cells() [][]int {
	n := len(c.cells)
	out := make([][]int, n)
	for i, row := range c.cells {
		out[i] = make([]int, n)
		for j, v := range row {
			out[i][j] = int(v)
		}
	}
	return out
}

// RelationshipCount returns how many partners member i has any relationship
// with.
func (c *Combination) RelationshipCount(i int) int {
	count := 0
	for _, v := range c.cells[i] {
		if v != CodeNeither {
			count++
		}
	}
	return count
}

// RelationshipCounts returns RelationshipCount for every member.
func (c *Combination) RelationshipCounts() map[model.MemberKey]int {
	out := make(map[model.MemberKey]int, len(c.cells))
	for i := range c.cells {
		out[c.axis.Member(i).Key] = c.RelationshipCount(i)
	}
	return out
}

// Counts tallies off-diagonal cells per code.
func (c *Combination) Counts() map[Code]int {
	out := make(map[Code]int, 4)
	for i, row := range c.cells {
		for j, v := range row {
			if i != j {
				out[v]++
			}
		}
	}
	return out
}

// Equal reports whether both combinations share axis and codes.
func (c *Combination) Equal(o *Combination) bool {
	if !c.axis.Equal(o.axis) {
		return false
	}
	for i := range c.cells {
		for j := range c.cells[i] {
			if c.cells[i][j] != o.cells[i][j] {
				return false
			}
		}
	}
	return true
}

// Reindex maps c onto target; new pairs are CodeNeither.
func (c *Combination) Reindex(target roster.Axis) (*Combination, error) {
	if c.axis.Equal(target) {
		return c, nil
	}
	mapping, err := remap(c.axis, target, "reindex combination")
	if err != nil {
		return nil, err
	}
	cells := zeroCodes(target.Len())
	for i, row := range c.cells {
		for j, v := range row {
			cells[mapping[i]][mapping[j]] = v
		}
	}
	return &Combination{axis: target, cells: cells}, nil
}
