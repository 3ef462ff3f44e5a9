package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/sells-group/chapter-report/internal/identity"
	"github.com/sells-group/chapter-report/internal/model"
	"github.com/sells-group/chapter-report/internal/report"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS period_reports (
	chapter_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	built_at   TEXT NOT NULL,
	PRIMARY KEY (chapter_id, period)
);

CREATE TABLE IF NOT EXISTS period_members (
	chapter_id   TEXT NOT NULL,
	period       TEXT NOT NULL,
	position     INTEGER NOT NULL,
	member_key   TEXT NOT NULL,
	display_name TEXT NOT NULL,
	variants     TEXT NOT NULL DEFAULT '[]',
	active       INTEGER NOT NULL DEFAULT 0,
	tier         TEXT NOT NULL,
	PRIMARY KEY (chapter_id, period, member_key)
);

CREATE TABLE IF NOT EXISTS period_cells (
	chapter_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	from_key   TEXT NOT NULL,
	to_key     TEXT NOT NULL,
	count      INTEGER NOT NULL,
	PRIMARY KEY (chapter_id, period, kind, from_key, to_key)
);

CREATE TABLE IF NOT EXISTS period_tyfcb (
	chapter_id TEXT NOT NULL,
	period     TEXT NOT NULL,
	member_key TEXT NOT NULL,
	inside     TEXT NOT NULL,
	outside    TEXT NOT NULL,
	PRIMARY KEY (chapter_id, period, member_key)
);

CREATE TABLE IF NOT EXISTS aliases (
	chapter_id TEXT NOT NULL,
	raw_name   TEXT NOT NULL,
	member_key TEXT NOT NULL DEFAULT '',
	target     TEXT NOT NULL DEFAULT '',
	note       TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (chapter_id, raw_name)
);

CREATE INDEX IF NOT EXISTS idx_period_members_position ON period_members(chapter_id, period, position);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ReplacePeriodReport(ctx context.Context, chapterID string, period model.Period, snap report.Snapshot) error {
	if err := checkSnapshot(chapterID, period, snap); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	p := string(period)
	for _, table := range []string{"period_members", "period_cells", "period_tyfcb"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE chapter_id = ? AND period = ?`, chapterID, p); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s for %s/%s", table, chapterID, p)
		}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO period_reports (chapter_id, period, built_at) VALUES (?, ?, ?)
		 ON CONFLICT (chapter_id, period) DO UPDATE SET built_at = excluded.built_at`,
		chapterID, p, snap.BuiltAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert report %s/%s", chapterID, p)
	}

	for i, m := range snap.Members {
		variants, err := encodeVariants(m.Variants)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO period_members (chapter_id, period, position, member_key, display_name, variants, active, tier)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			chapterID, p, i, string(m.Key), m.DisplayName, variants, m.Active, string(m.Tier),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert member %s", m.Key)
		}
	}

	for _, c := range snap.Cells {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO period_cells (chapter_id, period, kind, from_key, to_key, count) VALUES (?, ?, ?, ?, ?, ?)`,
			chapterID, p, string(c.Kind), string(c.From), string(c.To), c.Count,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert %s cell %s->%s", c.Kind, c.From, c.To)
		}
	}

	for _, c := range snap.Closed {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO period_tyfcb (chapter_id, period, member_key, inside, outside) VALUES (?, ?, ?, ?, ?)`,
			chapterID, p, string(c.Member), c.Inside.String(), c.Outside.String(),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert tyfcb for %s", c.Member)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit report")
}

// LoadSnapshot reads every table of one period inside a single transaction.
// In WAL mode the transaction pins one snapshot from its first read, so a
// concurrent ReplacePeriodReport is seen entirely or not at all.
func (s *SQLiteStore) LoadSnapshot(ctx context.Context, chapterID string, period model.Period) (*report.Snapshot, error) {
	p := string(period)
	snap := &report.Snapshot{ChapterID: chapterID, Period: period}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin read tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var builtAt string
	err = tx.QueryRowContext(ctx,
		`SELECT built_at FROM period_reports WHERE chapter_id = ? AND period = ?`, chapterID, p,
	).Scan(&builtAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("period report", chapterID, p)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get report %s/%s", chapterID, p)
	}
	if snap.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse built_at for %s/%s", chapterID, p)
	}

	if snap.Members, err = loadSQLiteMembers(ctx, tx, chapterID, p); err != nil {
		return nil, err
	}
	if snap.Cells, err = loadSQLiteCells(ctx, tx, chapterID, p); err != nil {
		return nil, err
	}
	if snap.Closed, err = loadSQLiteClosed(ctx, tx, chapterID, p); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: end read tx")
	}
	return snap, nil
}

func loadSQLiteMembers(ctx context.Context, tx *sql.Tx, chapterID, period string) ([]report.SnapshotMember, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT member_key, display_name, variants, active, tier FROM period_members
		 WHERE chapter_id = ? AND period = ? ORDER BY position`,
		chapterID, period,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list members %s/%s", chapterID, period)
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
			return nil, eris.Wrap(err, "sqlite: scan member")
		}
		if m.Variants, err = decodeVariants(variants); err != nil {
			return nil, err
		}
		m.Key, m.ChapterID, m.Tier = model.MemberKey(key), chapterID, model.Tier(tier)
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list members iterate")
}

func loadSQLiteCells(ctx context.Context, tx *sql.Tx, chapterID, period string) ([]report.Cell, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT kind, from_key, to_key, count FROM period_cells
		 WHERE chapter_id = ? AND period = ? ORDER BY kind, from_key, to_key`,
		chapterID, period,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list cells %s/%s", chapterID, period)
	}
	defer rows.Close()

	var out []report.Cell
	for rows.Next() {
		var kind, from, to string
		var count int
		if err := rows.Scan(&kind, &from, &to, &count); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cell")
		}
		out = append(out, report.Cell{
			Kind:  model.EventKind(kind),
			From:  model.MemberKey(from),
			To:    model.MemberKey(to),
			Count: count,
		})
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list cells iterate")
}

func loadSQLiteClosed(ctx context.Context, tx *sql.Tx, chapterID, period string) ([]report.ClosedBusiness, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT member_key, inside, outside FROM period_tyfcb
		 WHERE chapter_id = ? AND period = ? ORDER BY member_key`,
		chapterID, period,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list tyfcb %s/%s", chapterID, period)
	}
	defer rows.Close()

	var out []report.ClosedBusiness
	for rows.Next() {
		var key, inside, outside string
		if err := rows.Scan(&key, &inside, &outside); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tyfcb")
		}
		c, err := closedBusiness(key, inside, outside)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list tyfcb iterate")
}

func (s *SQLiteStore) LoadPeriodReports(ctx context.Context, chapterID string, periods []model.Period) ([]*report.PeriodReport, error) {
	return loadReports(ctx, chapterID, periods, s.LoadSnapshot)
}

func (s *SQLiteStore) ListPeriods(ctx context.Context, chapterID string) ([]model.Period, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT period FROM period_reports WHERE chapter_id = ? ORDER BY period`, chapterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list periods of %s", chapterID)
	}
	defer rows.Close()

	var out []model.Period
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan period")
		}
		out = append(out, model.Period(p))
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list periods iterate")
}

func (s *SQLiteStore) SaveAlias(ctx context.Context, chapterID string, alias identity.Alias) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO aliases (chapter_id, raw_name, member_key, target, note, updated_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (chapter_id, raw_name) DO UPDATE SET
			member_key = excluded.member_key,
			target = excluded.target,
			note = excluded.note,
			updated_at = excluded.updated_at`,
		chapterID, alias.RawName, string(alias.Key), alias.Target, alias.Note,
	)
	return eris.Wrapf(err, "sqlite: save alias %q", alias.RawName)
}

func (s *SQLiteStore) ListAliases(ctx context.Context, chapterID string) ([]identity.Alias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT raw_name, member_key, target, note FROM aliases WHERE chapter_id = ? ORDER BY raw_name`, chapterID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list aliases of %s", chapterID)
	}
	defer rows.Close()

	var out []identity.Alias
	for rows.Next() {
		var a identity.Alias
		var key string
		if err := rows.Scan(&a.RawName, &key, &a.Target, &a.Note); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alias")
		}
		a.Key = model.MemberKey(key)
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list aliases iterate")
}

func (s *SQLiteStore) DeleteAlias(ctx context.Context, chapterID, rawName string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM aliases WHERE chapter_id = ? AND raw_name = ?`, chapterID, rawName,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete alias %q", rawName)
	}
	return checkRowsAffected(res, "alias", chapterID, rawName)
}

// helpers

func checkRowsAffected(res sql.Result, entity, chapterID, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return notFound(entity, chapterID, id)
	}
	return nil
}

func closedBusiness(key, inside, outside string) (report.ClosedBusiness, error) {
	in, err := decimal.NewFromString(inside)
	if err != nil {
		return report.ClosedBusiness{}, eris.Wrapf(err, "store: inside amount for %s", key)
	}
	out, err := decimal.NewFromString(outside)
	if err != nil {
		return report.ClosedBusiness{}, eris.Wrapf(err, "store: outside amount for %s", key)
	}
	return report.ClosedBusiness{Member: model.MemberKey(key), Inside: in, Outside: out}, nil
}
