// Package store persists built period reports and the alias table.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
)

// ErrNotFound is returned, wrapped, when a period report or alias does not
// exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence collaborator for period reports.
type Store interface {
	// ReplacePeriodReport atomically swaps the stored report for
	// (chapterID, period) with snap. Readers see the old or the new report,
	// never a mix.
	ReplacePeriodReport(ctx context.Context, chapterID string, period model.Period, snap report.Snapshot) error
	LoadSnapshot(ctx context.Context, chapterID string, period model.Period) (*report.Snapshot, error)
	// LoadPeriodReports returns the reports in the order of periods.
	LoadPeriodReports(ctx context.Context, chapterID string, periods []model.Period) ([]*report.PeriodReport, error)
	ListPeriods(ctx context.Context, chapterID string) ([]model.Period, error)

	// Aliases
	SaveAlias(ctx context.Context, chapterID string, alias identity.Alias) error
	ListAliases(ctx context.Context, chapterID string) ([]identity.Alias, error)
	DeleteAlias(ctx context.Context, chapterID, rawName string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// Config selects and configures a store backend.
type Config struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// Open returns the store named by cfg.Driver, migrated and ready for use.
func Open(ctx context.Context, cfg Config) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "sqlite", "":
		st, err = NewSQLite(cfg.DSN)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DSN, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// loadReports loads each period through load and rebuilds the report.
func loadReports(ctx context.Context, chapterID string, periods []model.Period,
	load func(context.Context, string, model.Period) (*report.Snapshot, error),
) ([]*report.PeriodReport, error) {
	out := make([]*report.PeriodReport, 0, len(periods))
	for _, p := range periods {
		snap, err := load(ctx, chapterID, p)
		if err != nil {
			return nil, err
		}
		rep, err := report.FromSnapshot(*snap)
		if err != nil {
			return nil, eris.Wrapf(err, "store: decode report %s/%s", chapterID, p)
		}
		out = append(out, rep)
	}
	return out, nil
}

func checkSnapshot(chapterID string, period model.Period, snap report.Snapshot) error {
	if snap.ChapterID != chapterID || snap.Period != period {
		return eris.Errorf("store: snapshot %s/%s does not match %s/%s", snap.ChapterID, snap.Period, chapterID, period)
	}
	return nil
}

func notFound(entity, chapterID, id string) error {
	return eris.Wrapf(ErrNotFound, "store: %s %s/%s", entity, chapterID, id)
}

func encodeVariants(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "store: marshal variants")
	}
	return string(b), nil
}

func decodeVariants(s string) ([]string, error) {
	var v []string
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal variants")
	}
	if len(v) == 0 {
		return nil, nil
	}
	return v, nil
}
