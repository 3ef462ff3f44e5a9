// Package ingest reads slip-audit exports and member rosters from XLSX and
// CSV files and exposes them as event and roster sources.
package ingest

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/model"
)

// headerScanRows bounds how far down a sheet the header row may sit. Exports
// often carry a title and a date line above it.
const headerScanRows = 10

var slipColumns = map[string][]string{
	"type":   {"slip type", "type"},
	"from":   {"from", "giver", "from member"},
	"to":     {"to", "receiver", "to member"},
	"amount": {"amount", "tyfcb amount", "$ if tyfcb", "value"},
	"inside": {"inside/outside", "inside / outside", "referral type", "inside"},
}

var slipKinds = map[string]model.EventKind{
	"referral":   model.KindReferral,
	"referrals":  model.KindReferral,
	"one to one": model.KindOneToOne,
	"one-to-one": model.KindOneToOne,
	"1-2-1":      model.KindOneToOne,
	"121":        model.KindOneToOne,
	"1 to 1":     model.KindOneToOne,
	"oto":        model.KindOneToOne,
	"tyfcb":      model.KindTYFCB,
}

// ParseSlipKind maps a slip-type cell to an event kind.
func ParseSlipKind(raw string) (model.EventKind, bool) {
	k, ok := slipKinds[strings.Join(strings.Fields(strings.ToLower(raw)), " ")]
	return k, ok
}

func parseInside(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inside", "in", "internal", "yes", "y", "true":
		return true
	default:
		return false
	}
}

// columnIndex maps each logical column to its position in a header row.
type columnIndex map[string]int

func (c columnIndex) cell(row []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func matchHeader(row []string, columns map[string][]string) columnIndex {
	idx := make(columnIndex)
	for i, cell := range row {
		h := strings.Join(strings.Fields(strings.ToLower(cell)), " ")
		for name, aliases := range columns {
			if _, taken := idx[name]; taken {
				continue
			}
			for _, a := range aliases {
				if h == a {
					idx[name] = i
					break
				}
			}
		}
	}
	return idx
}

// findHeader returns the first row (within headerScanRows) that carries
// every required column.
func findHeader(rows [][]string, columns map[string][]string, required ...string) (int, columnIndex, error) {
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		idx := matchHeader(rows[i], columns)
		complete := true
		for _, r := range required {
			if _, ok := idx[r]; !ok {
				complete = false
				break
			}
		}
		if complete {
			return i, idx, nil
		}
	}
	return 0, nil, eris.Errorf("ingest: no header row with columns %s", strings.Join(required, ", "))
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// ParseSlips converts slip-audit rows into raw events for period. Rows with
// an unknown slip type are skipped; amounts stay unparsed until resolution.
func ParseSlips(rows [][]string, period model.Period) ([]model.RawEvent, error) {
	start, idx, err := findHeader(rows, slipColumns, "type", "from", "to")
	if err != nil {
		return nil, err
	}

	var events []model.RawEvent
	skipped := 0
	for i := start + 1; i < len(rows); i++ {
		row := rows[i]
		if blank(row) {
			continue
		}
		line := i + 1
		kind, ok := ParseSlipKind(idx.cell(row, "type"))
		if !ok {
			skipped++
			zap.L().Debug("ingest: skipping slip row",
				zap.Int("line", line),
				zap.String("slip_type", idx.cell(row, "type")),
			)
			continue
		}

		ev := model.RawEvent{
			Kind:   kind,
			From:   idx.cell(row, "from"),
			To:     idx.cell(row, "to"),
			Period: period,
			Line:   line,
		}
		if kind == model.KindTYFCB {
			ev.Amount = idx.cell(row, "amount")
			ev.Inside = parseInside(idx.cell(row, "inside"))
		}
		if ev.To == "" || (kind != model.KindTYFCB && ev.From == "") {
			return nil, eris.Errorf("ingest: %s slip on line %d is missing a member name", kind, line)
		}
		events = append(events, ev)
	}

	zap.L().Debug("ingest: parsed slips",
		zap.String("period", string(period)),
		zap.Int("events", len(events)),
		zap.Int("skipped", skipped),
	)
	return events, nil
}

// ReadSlipAuditXLSX reads a slip-audit workbook.
func ReadSlipAuditXLSX(path string, period model.Period, opts XLSXOptions) ([]model.RawEvent, error) {
	rows, err := ReadXLSX(path, opts)
	if err != nil {
		return nil, err
	}
	events, err := ParseSlips(rows, period)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: slip audit %s", path)
	}
	return events, nil
}

// ReadSlipAuditCSV reads a slip-audit CSV export.
func ReadSlipAuditCSV(ctx context.Context, r io.Reader, period model.Period) ([]model.RawEvent, error) {
	rows, err := ReadCSV(ctx, r)
	if err != nil {
		return nil, err
	}
	return ParseSlips(rows, period)
}
