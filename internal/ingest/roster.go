package ingest

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-report/internal/model"
)

var rosterColumns = map[string][]string{
	"name":  {"name", "member", "member name", "full name"},
	"first": {"first name", "first"},
	"last":  {"last name", "last"},
	"id":    {"member id", "id", "member key"},
}

// ParseRoster converts roster rows into entries. The header carries either a
// single name column or first and last name columns; a member id column is
// optional.
func ParseRoster(rows [][]string) ([]model.RosterEntry, error) {
	start, idx, err := findHeader(rows, rosterColumns, "name")
	if err != nil {
		start, idx, err = findHeader(rows, rosterColumns, "first", "last")
		if err != nil {
			return nil, eris.New("ingest: roster needs a Name column or First Name and Last Name columns")
		}
	}

	var out []model.RosterEntry
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		name := idx.cell(row, "name")
		if name == "" {
			name = strings.TrimSpace(idx.cell(row, "first") + " " + idx.cell(row, "last"))
		}
		if name == "" {
			continue
		}
		out = append(out, model.RosterEntry{
			RawName: name,
			Key:     model.MemberKey(idx.cell(row, "id")),
		})
	}
	return out, nil
}

// ReadRosterXLSX reads a roster workbook.
func ReadRosterXLSX(path string, opts XLSXOptions) ([]model.RosterEntry, error) {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	entries, err := ParseRoster(rows)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: roster %s", path)
	}
	return entries, nil
}

// ReadRosterCSV reads a roster CSV export.
func ReadRosterCSV(ctx context.Context, r io.Reader) ([]model.RosterEntry, error) {
	rows, err := ReadCSV(ctx, r)
	if err != nil {
		return nil, err
	}
	return ParseRoster(rows)
}
