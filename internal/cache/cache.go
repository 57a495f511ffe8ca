// Package cache keeps the history of finalization checks in a local
// SQLite database.
package cache

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

type Cache struct {
	readDB  *sql.DB
	writeDB *sql.DB
}

func Open(dbPath string) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	writeDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening write db: %w", err)
	}
	writeDB.SetMaxOpenConns(1)

	readDB, err := sql.Open("sqlite", dbPath+"?mode=ro")
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("opening read db: %w", err)
	}

	c := &Cache{readDB: readDB, writeDB: writeDB}
	if err := c.init(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Cache) init() error {
	_, err := c.writeDB.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id           TEXT PRIMARY KEY,
			bundle       TEXT NOT NULL,
			title        TEXT NOT NULL DEFAULT '',
			window_start DATETIME NOT NULL,
			window_end   DATETIME NOT NULL,
			confidence   REAL NOT NULL,
			band         TEXT NOT NULL,
			signals      INTEGER NOT NULL DEFAULT 0,
			forecast     INTEGER NOT NULL DEFAULT 0,
			unparseable  INTEGER NOT NULL DEFAULT 0,
			dangling     TEXT NOT NULL DEFAULT '',
			uncited      TEXT NOT NULL DEFAULT '',
			passed       BOOLEAN NOT NULL,
			checked_at   DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_checked ON runs(checked_at DESC);
		CREATE INDEX IF NOT EXISTS idx_runs_bundle ON runs(bundle);

		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("initializing schema: %w", err)
	}
	return nil
}

func (c *Cache) Close() error {
	var errs []error
	if c.readDB != nil {
		errs = append(errs, c.readDB.Close())
	}
	if c.writeDB != nil {
		errs = append(errs, c.writeDB.Close())
	}
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}

// RecordRun stores a run, assigning an ID and timestamp when missing.
// It returns the stored run.
func (c *Cache) RecordRun(r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CheckedAt.IsZero() {
		r.CheckedAt = time.Now()
	}

	_, err := c.writeDB.Exec(`
		INSERT INTO runs (id, bundle, title, window_start, window_end, confidence, band,
			signals, forecast, unparseable, dangling, uncited, passed, checked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			confidence = excluded.confidence,
			band = excluded.band,
			dangling = excluded.dangling,
			uncited = excluded.uncited,
			passed = excluded.passed,
			checked_at = excluded.checked_at
	`, r.ID, r.Bundle, r.Title, r.WindowStart, r.WindowEnd, r.Confidence, r.Band,
		r.Signals, r.Forecast, r.Unparseable, joinIDs(r.Dangling), joinIDs(r.Uncited), r.Passed, r.CheckedAt)
	if err != nil {
		return Run{}, fmt.Errorf("recording run %s: %w", r.ID, err)
	}
	if err := c.setMeta("last_check", r.CheckedAt.Format(time.RFC3339)); err != nil {
		return Run{}, err
	}
	return r, nil
}

func (c *Cache) GetRuns(opts QueryOpts) ([]Run, error) {
	var (
		where []string
		args  []interface{}
	)

	if !opts.Since.IsZero() {
		where = append(where, "checked_at >= ?")
		args = append(args, opts.Since)
	}
	if len(opts.Bundles) > 0 {
		placeholders := make([]string, len(opts.Bundles))
		for i, b := range opts.Bundles {
			placeholders[i] = "?"
			args = append(args, b)
		}
		where = append(where, "bundle IN ("+strings.Join(placeholders, ",")+")") //nolint:gosec
	}
	if opts.Search != "" {
		where = append(where, "(title LIKE ? OR bundle LIKE ?)")
		term := "%" + opts.Search + "%"
		args = append(args, term, term)
	}
	if opts.FailedOnly {
		where = append(where, "passed = 0")
	}

	query := `SELECT id, bundle, title, window_start, window_end, confidence, band,
		signals, forecast, unparseable, dangling, uncited, passed, checked_at FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY checked_at DESC"

	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	rows, err := c.readDB.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			dangling, uncited string
		)
		if err := rows.Scan(&r.ID, &r.Bundle, &r.Title, &r.WindowStart, &r.WindowEnd, &r.Confidence, &r.Band,
			&r.Signals, &r.Forecast, &r.Unparseable, &dangling, &uncited, &r.Passed, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Dangling = splitIDs(dangling)
		r.Uncited = splitIDs(uncited)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Prune deletes runs checked more than olderThan ago and vacuums the file.
// With keepFailed set, old runs that did not pass are left in place.
func (c *Cache) Prune(olderThan time.Duration, keepFailed bool) (PruneResult, error) {
	cutoff := time.Now().Add(-olderThan)

	tx, err := c.writeDB.Begin()
	if err != nil {
		return PruneResult{}, fmt.Errorf("starting prune: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var oldFailed int64
	if err := tx.QueryRow("SELECT COUNT(*) FROM runs WHERE checked_at < ? AND passed = 0", cutoff).Scan(&oldFailed); err != nil {
		return PruneResult{}, fmt.Errorf("counting failed runs: %w", err)
	}

	query := "DELETE FROM runs WHERE checked_at < ?"
	if keepFailed {
		query += " AND passed = 1"
	}
	res, err := tx.Exec(query, cutoff)
	if err != nil {
		return PruneResult{}, fmt.Errorf("deleting runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return PruneResult{}, err
	}
	if err := tx.Commit(); err != nil {
		return PruneResult{}, fmt.Errorf("committing prune: %w", err)
	}

	pr := PruneResult{Removed: n}
	if keepFailed {
		pr.Kept = oldFailed
	} else {
		pr.Failed = oldFailed
	}
	if n > 0 {
		if _, err := c.writeDB.Exec("VACUUM"); err != nil {
			return pr, fmt.Errorf("vacuuming: %w", err)
		}
	}
	return pr, nil
}

// Stats summarizes stored runs and the size of the database file.
func (c *Cache) Stats(dbPath string) (RunStats, error) {
	var st RunStats
	err := c.readDB.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN passed = 0 THEN 1 ELSE 0 END), 0), COUNT(DISTINCT bundle)
		FROM runs
	`).Scan(&st.Runs, &st.Failed, &st.Bundles)
	if err != nil {
		return RunStats{}, fmt.Errorf("counting runs: %w", err)
	}
	fi, err := os.Stat(dbPath)
	if err != nil {
		return st, fmt.Errorf("stat db: %w", err)
	}
	st.Size = fi.Size()
	return st, nil
}

// BundleSummaries returns per-bundle run counts, ordered by bundle path.
func (c *Cache) BundleSummaries() ([]BundleSummary, error) {
	rows, err := c.readDB.Query(`
		SELECT r.bundle, COUNT(*), SUM(CASE WHEN r.passed = 0 THEN 1 ELSE 0 END),
			(SELECT l.passed FROM runs l WHERE l.bundle = r.bundle ORDER BY l.checked_at DESC LIMIT 1)
		FROM runs r
		GROUP BY r.bundle
		ORDER BY r.bundle
	`)
	if err != nil {
		return nil, fmt.Errorf("summarizing bundles: %w", err)
	}
	defer rows.Close()

	var out []BundleSummary
	for rows.Next() {
		var s BundleSummary
		if err := rows.Scan(&s.Bundle, &s.Runs, &s.Failed, &s.LastPassed); err != nil {
			return nil, fmt.Errorf("scanning bundle summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LastCheck returns the time of the most recent recorded run.
func (c *Cache) LastCheck() (time.Time, error) {
	v, err := c.getMeta("last_check")
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.RFC3339, v)
}

func (c *Cache) getMeta(key string) (string, error) {
	var value string
	err := c.readDB.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	return value, err
}

func (c *Cache) setMeta(key, value string) error {
	_, err := c.writeDB.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) []int {
	if s == "" {
		return nil
	}
	var ids []int
	for _, p := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(p); err == nil {
			ids = append(ids, n)
		}
	}
	return ids
}
