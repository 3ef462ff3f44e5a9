// Package matrix builds square member-by-member interaction matrices and the
// coded combination matrix derived from them.
package matrix

import (
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/roster"
)

// Matrix is an immutable N×N count matrix over an axis. Cells are
// non-negative and the diagonal is always zero. Row i counts interactions
// initiated by axis member i (for one-to-ones the matrix is symmetric).
type Matrix struct {
	kind  model.EventKind
	axis  roster.Axis
	cells [][]int
}

// Build counts events of the given kind onto axis. Referrals increment
// [giver][receiver]; one-to-ones increment both [a][b] and [b][a]. Events of
// other kinds are skipped.
func Build(kind model.EventKind, events []model.Event, axis roster.Axis) (*Matrix, error) {
	if kind != model.KindReferral && kind != model.KindOneToOne {
		return nil, eris.Errorf("matrix: cannot build a %q matrix", kind)
	}
	cells := zeroCells(axis.Len())

	for _, e := range events {
		switch ev := e.(type) {
		case model.Referral:
			if kind != model.KindReferral {
				continue
			}
			i, j, err := locate(axis, model.KindReferral, ev.Giver, ev.Receiver, ev.Period)
			if err != nil {
				return nil, err
			}
			cells[i][j]++
		case model.OneToOne:
			if kind != model.KindOneToOne {
				continue
			}
			i, j, err := locate(axis, model.KindOneToOne, ev.A, ev.B, ev.Period)
			if err != nil {
				return nil, err
			}
			cells[i][j]++
			cells[j][i]++
		case model.TYFCB:
			// Closed business is summed by the tyfcb package, not counted here.
		default:
			return nil, eris.Errorf("matrix: unsupported event type %T", e)
		}
	}
	return &Matrix{kind: kind, axis: axis, cells: cells}, nil
}

func locate(axis roster.Axis, kind model.EventKind, from, to model.MemberKey, period model.Period) (int, int, error) {
	if from == to {
		return 0, 0, &model.SelfInteractionError{Kind: kind, Member: from, Period: period}
	}
	i, ok := axis.IndexOf(from)
	if !ok {
		return 0, 0, &model.UnknownMemberError{Member: from, Period: period}
	}
	j, ok := axis.IndexOf(to)
	if !ok {
		return 0, 0, &model.UnknownMemberError{Member: to, Period: period}
	}
	return i, j, nil
}

// New wraps existing cell values, validating the matrix invariants. Used when
// decoding stored reports.
func New(kind model.EventKind, axis roster.Axis, cells [][]int) (*Matrix, error) {
	n := axis.Len()
	if len(cells) != n {
		return nil, &model.AxisMismatchError{Op: "new matrix", Left: n, Right: len(cells)}
	}
	out := zeroCells(n)
	for i, row := range cells {
		if len(row) != n {
			return nil, &model.AxisMismatchError{Op: "new matrix", Left: n, Right: len(row)}
		}
		for j, v := range row {
			if v < 0 {
				return nil, eris.Errorf("matrix: negative cell [%d][%d] = %d", i, j, v)
			}
			if i == j && v != 0 {
				return nil, &model.SelfInteractionError{Kind: kind, Member: axis.Member(i).Key}
			}
			out[i][j] = v
		}
	}
	return &Matrix{kind: kind, axis: axis, cells: out}, nil
}

// Empty returns an all-zero matrix over axis.
func Empty(kind model.EventKind, axis roster.Axis) *Matrix {
	return &Matrix{kind: kind, axis: axis, cells: zeroCells(axis.Len())}
}

func zeroCells(n int) [][]int {
	backing := make([]int, n*n)
	cells := make([][]int, n)
	for i := range cells {
		cells[i] = backing[i*n : (i+1)*n : (i+1)*n]
	}
	return cells
}

// Kind returns the event kind this matrix counts.
func (m *Matrix) Kind() model.EventKind { return m.kind }

// Axis returns the member axis indexing rows and columns.
func (m *Matrix) Axis() roster.Axis { return m.axis }

// Len returns the number of rows (and columns).
func (m *Matrix) Len() int { return len(m.cells) }

// At returns cell [i][j].
func (m *Matrix) At(i, j int) int { return m.cells[i][j] }

// Get returns the cell for the from/to member pair, zero when either is off
// the axis.
func (m *Matrix) Get(from, to model.MemberKey) int {
	i, ok := m.axis.IndexOf(from)
	if !ok {
		return 0
	}
	j, ok := m.axis.IndexOf(to)
	if !ok {
		return 0
	}
	return m.cells[i][j]
}

// Row returns a copy of row i.
func (m *Matrix) Row(i int) []int {
	out := make([]int, len(m.cells[i]))
	copy(out, m.cells[i])
	return out
}

// Cells returns a deep copy of all cells.
func (m *Matrix) Cells() [][]int {
	out := zeroCells(len(m.cells))
	for i, row := range m.cells {
		copy(out[i], row)
	}
	return out
}

// RowTotal returns the sum of row i (outbound total).
func (m *Matrix) RowTotal(i int) int {
	total := 0
	for _, v := range m.cells[i] {
		total += v
	}
	return total
}

// ColumnTotal returns the sum of column j (inbound total).
func (m *Matrix) ColumnTotal(j int) int {
	total := 0
	for i := range m.cells {
		total += m.cells[i][j]
	}
	return total
}

// RowTotals returns every member's outbound total keyed by member.
func (m *Matrix) RowTotals() map[model.MemberKey]int {
	out := make(map[model.MemberKey]int, len(m.cells))
	for i := range m.cells {
		out[m.axis.Member(i).Key] = m.RowTotal(i)
	}
	return out
}

// Total returns the sum of all cells.
func (m *Matrix) Total() int {
	total := 0
	for i := range m.cells {
		total += m.RowTotal(i)
	}
	return total
}

// Equal reports whether both matrices have the same kind, axis and cells.
func (m *Matrix) Equal(o *Matrix) bool {
	if m.kind != o.kind || !m.axis.Equal(o.axis) {
		return false
	}
	for i := range m.cells {
		for j := range m.cells[i] {
			if m.cells[i][j] != o.cells[i][j] {
				return false
			}
		}
	}
	return true
}

// Reindex maps m onto target, zero-filling members absent from m. Every
// member of m must be on target.
func (m *Matrix) Reindex(target roster.Axis) (*Matrix, error) {
	if m.axis.Equal(target) {
		return m, nil
	}
	mapping, err := remap(m.axis, target, "reindex")
	if err != nil {
		return nil, err
	}
	cells := zeroCells(target.Len())
	for i, row := range m.cells {
		for j, v := range row {
			cells[mapping[i]][mapping[j]] = v
		}
	}
	return &Matrix{kind: m.kind, axis: target, cells: cells}, nil
}

// remap returns, for every position on from, its position on to.
func remap(from, to roster.Axis, op string) ([]int, error) {
	mapping := make([]int, from.Len())
	for i := 0; i < from.Len(); i++ {
		j, ok := to.IndexOf(from.Member(i).Key)
		if !ok {
			return nil, &model.AxisMismatchError{
				Op:    fmt.Sprintf("%s: %s missing from target axis", op, from.Member(i).Key),
				Left:  from.Len(),
				Right: to.Len(),
			}
		}
		mapping[i] = j
	}
	return mapping, nil
}

// Sum adds matrices cell-wise. All inputs must share kind and axis; reindex
// onto a common axis first.
func Sum(ms ...*Matrix) (*Matrix, error) {
	if len(ms) == 0 {
		return nil, &model.EmptyPeriodSetError{Op: "matrix sum"}
	}
	first := ms[0]
	cells := first.Cells()
	for _, m := range ms[1:] {
		if m.kind != first.kind {
			return nil, eris.Errorf("matrix: cannot sum %s with %s", first.kind, m.kind)
		}
		if !m.axis.Equal(first.axis) {
			return nil, &model.AxisMismatchError{Op: "sum", Left: first.Len(), Right: m.Len()}
		}
		for i, row := range m.cells {
			for j, v := range row {
				cells[i][j] += v
			}
		}
	}
	return &Matrix{kind: first.kind, axis: first.axis, cells: cells}, nil
}
