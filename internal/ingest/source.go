package ingest

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chapter-report/internal/model"
)

// FileSource serves events and rosters from a directory tree:
//
//	<root>/<chapter>/<period>/slips.xlsx   (or slips.csv)
//	<root>/<chapter>/<period>/roster.xlsx  (or roster.csv)
//	<root>/<chapter>/roster.xlsx           chapter-wide fallback roster
type FileSource struct {
	Root  string
	Sheet XLSXOptions
}

// NewFileSource returns a source rooted at dir.
func NewFileSource(dir string, sheet XLSXOptions) *FileSource {
	return &FileSource{Root: dir, Sheet: sheet}
}

// FetchEvents reads the period's slip audit.
func (s *FileSource) FetchEvents(ctx context.Context, chapterID string, period model.Period) ([]model.RawEvent, error) {
	dir := filepath.Join(s.Root, chapterID, string(period))
	path, ok := s.find(dir, "slips")
	if !ok {
		return nil, eris.Errorf("ingest: no slips.xlsx or slips.csv in %s", dir)
	}
	zap.L().Info("ingest: reading slip audit", zap.String("path", path))

	if filepath.Ext(path) == ".csv" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close()
		return ReadSlipAuditCSV(ctx, f, period)
	}
	return ReadSlipAuditXLSX(path, period, s.Sheet)
}

// FetchActiveMembers reads the period roster, falling back to the
// chapter-wide roster. No roster at all yields an empty list.
func (s *FileSource) FetchActiveMembers(ctx context.Context, chapterID string, period model.Period) ([]model.RosterEntry, error) {
	path, ok := s.find(filepath.Join(s.Root, chapterID, string(period)), "roster")
	if !ok {
		path, ok = s.find(filepath.Join(s.Root, chapterID), "roster")
	}
	if !ok {
		zap.L().Warn("ingest: no roster found, using event participants only",
			zap.String("chapter", chapterID),
			zap.String("period", string(period)),
		)
		return nil, nil
	}

	if filepath.Ext(path) == ".csv" {
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close()
		return ReadRosterCSV(ctx, f)
	}
	return ReadRosterXLSX(path, s.Sheet)
}

// ListPeriods returns the period directories present for chapterID, sorted.
func (s *FileSource) ListPeriods(chapterID string) ([]model.Period, error) {
	entries, err := os.ReadDir(filepath.Join(s.Root, chapterID))
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: list periods of %s", chapterID)
	}
	var out []model.Period
	for _, e := range entries {
		if e.IsDir() {
			out = append(out, model.Period(e.Name()))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *FileSource) find(dir, base string) (string, bool) {
	for _, ext := range []string{".xlsx", ".csv"} {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true
		} else if !errors.Is(err, fs.ErrNotExist) {
			zap.L().Warn("ingest: stat failed", zap.String("path", path), zap.Error(err))
		}
	}
	return "", false
}
