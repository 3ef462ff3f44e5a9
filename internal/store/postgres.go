package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/chapter-report/internal/db"
	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

var cellColumns = []string{"chapter_id", "period", "kind", "from_key", "to_key", "count"}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS period_reports (
	chapter_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	built_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (chapter_id, period)
);

CREATE TABLE IF NOT EXISTS period_members (
	chapter_id   TEXT NOT NULL,
	period       TEXT NOT NULL,
	position     INTEGER NOT NULL,
	member_key   TEXT NOT NULL,
	display_name TEXT NOT NULL,
	variants     JSONB NOT NULL DEFAULT '[]',
	active       BOOLEAN NOT NULL DEFAULT false,
	tier         TEXT NOT NULL,
	PRIMARY KEY (chapter_id, period, member_key),
	FOREIGN KEY (chapter_id, period) REFERENCES period_reports(chapter_id, period) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS period_cells (
	chapter_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	from_key   TEXT NOT NULL,
	to_key     TEXT NOT NULL,
	count      INTEGER NOT NULL CHECK (count > 0),
	PRIMARY KEY (chapter_id, period, kind, from_key, to_key),
	FOREIGN KEY (chapter_id, period) REFERENCES period_reports(chapter_id, period) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS period_tyfcb (
	chapter_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	member_key TEXT NOT NULL,
	inside     NUMERIC NOT NULL CHECK (inside >= 0),
	outside    NUMERIC NOT NULL CHECK (outside >= 0),
	PRIMARY KEY (chapter_id, period, member_key),
	FOREIGN KEY (chapter_id, period) REFERENCES period_reports(chapter_id, period) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS aliases (
	chapter_id TEXT NOT NULL,
	raw_name   TEXT NOT NULL,
	member_key TEXT NOT NULL DEFAULT '',
	target     TEXT NOT NULL DEFAULT '',
	note       TEXT NOT NULL DEFAULT '',
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (chapter_id, raw_name)
);

CREATE INDEX IF NOT EXISTS idx_period_members_position ON period_members(chapter_id, period, position);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// ReplacePeriodReport deletes the period row, cascading to its members,
// cells and amounts, then writes snap in the same transaction.
func (s *PostgresStore) ReplacePeriodReport(ctx context.Context, chapterID string, period model.Period, snap report.Snapshot) error {
	if err := checkSnapshot(chapterID, period, snap); err != nil {
		return err
	}
	p := string(period)

	return db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM period_reports WHERE chapter_id = $1 AND period = $2`, chapterID, p,
		); err != nil {
			return eris.Wrapf(err, "postgres: clear report %s/%s", chapterID, p)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO period_reports (chapter_id, period, built_at) VALUES ($1, $2, $3)`,
			chapterID, p, snap.BuiltAt.UTC(),
		); err != nil {
			return eris.Wrapf(err, "postgres: insert report %s/%s", chapterID, p)
		}

		for i, m := range snap.Members {
			variants, err := encodeVariants(m.Variants)
			if err != nil {
				return err
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO period_members (chapter_id, period, position, member_key, display_name, variants, active, tier)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				chapterID, p, i, string(m.Key), m.DisplayName, variants, m.Active, string(m.Tier),
			); err != nil {
				return eris.Wrapf(err, "postgres: insert member %s", m.Key)
			}
		}

		rows := make([][]any, len(snap.Cells))
		for i, c := range snap.Cells {
			rows[i] = []any{chapterID, p, string(c.Kind), string(c.From), string(c.To), c.Count}
		}
		if _, err := db.CopyFrom(ctx, tx, "period_cells", cellColumns, rows); err != nil {
			return eris.Wrapf(err, "postgres: copy cells %s/%s", chapterID, p)
		}

		for _, c := range snap.Closed {
			if _, err := tx.Exec(ctx,
				`INSERT INTO period_tyfcb (chapter_id, period, member_key, inside, outside) VALUES ($1, $2, $3, $4, $5)`,
				chapterID, p, string(c.Member), c.Inside, c.Outside,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert tyfcb for %s", c.Member)
			}
		}
		return nil
	})
}

// LoadSnapshot reads every table of one period inside a single read-only
// transaction.
func (s *PostgresStore) LoadSnapshot(ctx context.Context, chapterID string, period model.Period) (*report.Snapshot, error) {
	p := string(period)
	snap := &report.Snapshot{ChapterID: chapterID, Period: period}

	err := db.ReadTx(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT built_at FROM period_reports WHERE chapter_id = $1 AND period = $2`, chapterID, p,
		).Scan(&snap.BuiltAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return notFound("period report", chapterID, p)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: get report %s/%s", chapterID, p)
		}
		snap.BuiltAt = snap.BuiltAt.UTC()

		if snap.Members, err = loadPostgresMembers(ctx, tx, chapterID, p); err != nil {
			return err
		}
		if snap.Cells, err = loadPostgresCells(ctx, tx, chapterID, p); err != nil {
			return err
		}
		snap.Closed, err = loadPostgresClosed(ctx, tx, chapterID, p)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func loadPostgresMembers(ctx context.Context, tx pgx.Tx, chapterID, period string) ([]report.SnapshotMember, error) {
	rows, err := tx.Query(ctx,
		`SELECT member_key, display_name, variants::text, active, tier FROM period_members
		 WHERE chapter_id = $1 AND period = $2 ORDER BY position`,
		chapterID, period,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list members %s/%s", chapterID, period)
	}
	defer rows.Close()

	var out []report.SnapshotMember
	for rows.Next() {
		var (
			m        report.SnapshotMember
			key      string
			tier     string
			variants string
		)
		if err := rows.Scan(&key, &m.DisplayName, &variants, &m.Active, &tier); err != nil {
			return nil, eris.Wrap(err, "postgres: scan member")
		}
		if m.Variants, err = decodeVariants(variants); err != nil {
			return nil, err
		}
		m.Key, m.ChapterID, m.Tier = model.MemberKey(key), chapterID, model.Tier(tier)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list members iterate")
}

func loadPostgresCells(ctx context.Context, tx pgx.Tx, chapterID, period string) ([]report.Cell, error) {
	rows, err := tx.Query(ctx,
		`SELECT kind, from_key, to_key, count FROM period_cells
		 WHERE chapter_id = $1 AND period = $2 ORDER BY kind, from_key, to_key`,
		chapterID, period,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list cells %s/%s", chapterID, period)
	}
	defer rows.Close()

	var out []report.Cell
	for rows.Next() {
		var kind, from, to string
		var count int
		if err := rows.Scan(&kind, &from, &to, &count); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cell")
		}
		out = append(out, report.Cell{
			Kind:  model.EventKind(kind),
			From:  model.MemberKey(from),
			To:    model.MemberKey(to),
			Count: count,
		})
	}
	return out, eris.Wrap(rows.Err(), "postgres: list cells iterate")
}

func loadPostgresClosed(ctx context.Context, tx pgx.Tx, chapterID, period string) ([]report.ClosedBusiness, error) {
	rows, err := tx.Query(ctx,
		`SELECT member_key, inside::text, outside::text FROM period_tyfcb
		 WHERE chapter_id = $1 AND period = $2 ORDER BY member_key`,
		chapterID, period,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list tyfcb %s/%s", chapterID, period)
	}
	defer rows.Close()

	var out []report.ClosedBusiness
	for rows.Next() {
		var key, inside, outside string
		if err := rows.Scan(&key, &inside, &outside); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tyfcb")
		}
		c, err := closedBusiness(key, inside, outside)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list tyfcb iterate")
}

func (s *PostgresStore) LoadPeriodReports(ctx context.Context, chapterID string, periods []model.Period) ([]*report.PeriodReport, error) {
	return loadReports(ctx, chapterID, periods, s.LoadSnapshot)
}

func (s *PostgresStore) ListPeriods(ctx context.Context, chapterID string) ([]model.Period, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT period FROM period_reports WHERE chapter_id = $1 ORDER BY period`, chapterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list periods of %s", chapterID)
	}
	defer rows.Close()

	var out []model.Period
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "postgres: scan period")
		}
		out = append(out, model.Period(p))
	}
	return out, eris.Wrap(rows.Err(), "postgres: list periods iterate")
}

func (s *PostgresStore) SaveAlias(ctx context.Context, chapterID string, alias identity.Alias) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO aliases (chapter_id, raw_name, member_key, target, note, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (chapter_id, raw_name) DO UPDATE SET
			member_key = EXCLUDED.member_key,
			target = EXCLUDED.target,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at`,
		chapterID, alias.RawName, string(alias.Key), alias.Target, alias.Note,
	)
	return eris.Wrapf(err, "postgres: save alias %q", alias.RawName)
}

func (s *PostgresStore) ListAliases(ctx context.Context, chapterID string) ([]identity.Alias, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT raw_name, member_key, target, note FROM aliases WHERE chapter_id = $1 ORDER BY raw_name`, chapterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list aliases of %s", chapterID)
	}
	defer rows.Close()

	var out []identity.Alias
	for rows.Next() {
		var a identity.Alias
		var key string
		if err := rows.Scan(&a.RawName, &key, &a.Target, &a.Note); err != nil {
			return nil, eris.Wrap(err, "postgres: scan alias")
		}
		a.Key = model.MemberKey(key)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list aliases iterate")
}

func (s *PostgresStore) DeleteAlias(ctx context.Context, chapterID, rawName string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM aliases WHERE chapter_id = $1 AND raw_name = $2`, chapterID, rawName,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete alias %q", rawName)
	}
	if tag.RowsAffected() == 0 {
		return notFound("alias", chapterID, rawName)
	}
	return nil
}
