// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package archive keeps a SQLite history of delivered digests: one row per
// run and one row per item sent in that run. It backs title search and the
// monthly top-item lists the rollup builds on.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Cyberlurch/NewsAgent2-sub000/pkg/types"
)

const defaultLimit = 20

// Store is an open archive database.
type Store struct {
	db  *sql.DB
	sb  sq.StatementBuilderType
	fts bool
}

// Open opens or creates the archive at path and ensures its schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating archive directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	s := &Store{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// FullText reports whether title search uses the FTS5 index.
func (s *Store) FullText() bool {
	return s.fts
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			report_key TEXT NOT NULL,
			mode TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT NOT NULL,
			candidates INTEGER NOT NULL DEFAULT 0,
			overview INTEGER NOT NULL DEFAULT 0,
			deep_dives INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS delivered (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id),
			report_key TEXT NOT NULL,
			source TEXT NOT NULL,
			item_id TEXT NOT NULL,
			channel TEXT,
			title TEXT NOT NULL,
			url TEXT,
			published_at TEXT,
			delivered_at TEXT NOT NULL,
			month TEXT NOT NULL,
			score REAL,
			rank INTEGER,
			deep_dive INTEGER NOT NULL DEFAULT 0,
			top_pick INTEGER NOT NULL DEFAULT 0,
			UNIQUE(run_id, source, item_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delivered_report_month ON delivered(report_key, month)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_report ON runs(report_key)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 is optional in some SQLite builds; without it search falls back
	// to LIKE.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='delivered_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists > 0 {
		s.fts = true
		return nil
	}
	ftsStatements := []string{
		`CREATE VIRTUAL TABLE delivered_fts USING fts5(title, channel, content=delivered, content_rowid=rowid)`,
		`CREATE TRIGGER delivered_ai AFTER INSERT ON delivered BEGIN
			INSERT INTO delivered_fts(rowid, title, channel) VALUES (new.rowid, new.title, new.channel);
		END`,
		`CREATE TRIGGER delivered_ad AFTER DELETE ON delivered BEGIN
			INSERT INTO delivered_fts(delivered_fts, rowid, title, channel) VALUES('delete', old.rowid, old.title, old.channel);
		END`,
	}
	if _, err := s.db.Exec(ftsStatements[0]); err != nil {
		return nil
	}
	for _, stmt := range ftsStatements[1:] {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("creating FTS infrastructure: %w", err)
		}
	}
	s.fts = true
	return nil
}

// Run describes one completed digest run.
type Run struct {
	ID         int64            `json:"id" yaml:"id"`
	ReportKey  string           `json:"report_key" yaml:"report_key"`
	Mode       types.ReportMode `json:"mode" yaml:"mode"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time        `json:"finished_at" yaml:"finished_at"`
	Candidates int              `json:"candidates" yaml:"candidates"`
	Overview   int              `json:"overview" yaml:"overview"`
	DeepDives  int              `json:"deep_dives" yaml:"deep_dives"`

	// Month ("YYYY-MM") files the run's delivered items for TopItems. It
	// defaults to the month of FinishedAt and is not read back by Runs.
	Month string `json:"month,omitempty" yaml:"month,omitempty"`
}

// Entry is one delivered item as stored.
type Entry struct {
	RunID       int64        `json:"run_id" yaml:"run_id"`
	ReportKey   string       `json:"report_key" yaml:"report_key"`
	Source      types.Source `json:"source" yaml:"source"`
	ItemID      string       `json:"item_id" yaml:"item_id"`
	Channel     string       `json:"channel" yaml:"channel"`
	Title       string       `json:"title" yaml:"title"`
	URL         string       `json:"url" yaml:"url"`
	PublishedAt time.Time    `json:"published_at,omitzero" yaml:"published_at,omitempty"`
	DeliveredAt time.Time    `json:"delivered_at" yaml:"delivered_at"`
	Score       float64      `json:"score,omitempty" yaml:"score,omitempty"`
	Rank        int          `json:"rank,omitempty" yaml:"rank,omitempty"`
	DeepDive    bool         `json:"deep_dive,omitempty" yaml:"deep_dive,omitempty"`
	TopPick     bool         `json:"top_pick,omitempty" yaml:"top_pick,omitempty"`
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// RecordRun stores a run and the items it delivered in one transaction and
// returns the run ID. Items repeated within the run are stored once.
func (s *Store) RecordRun(ctx context.Context, run Run, items []types.Item) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := s.sb.Insert("runs").
		Columns("report_key", "mode", "started_at", "finished_at", "candidates", "overview", "deep_dives").
		Values(run.ReportKey, string(run.Mode), types.FormatUTC(run.StartedAt), types.FormatUTC(run.FinishedAt),
			run.Candidates, run.Overview, run.DeepDives).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("building run insert: %w", err)
	}
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	delivered := run.FinishedAt
	month := run.Month
	if month == "" {
		month = types.MonthKey(delivered)
	}
	for _, it := range items {
		query, args, err := s.sb.Insert("delivered").
			Columns("run_id", "report_key", "source", "item_id", "channel", "title", "url",
				"published_at", "delivered_at", "month", "score", "rank", "deep_dive", "top_pick").
			Values(runID, run.ReportKey, string(it.Source), it.ID, it.Channel, it.Title, it.URL,
				types.FormatUTC(it.PublishedAt), types.FormatUTC(delivered), month,
				it.Score, it.Rank, boolInt(it.DeepDive), boolInt(it.TopPick)).
			Suffix("ON CONFLICT(run_id, source, item_id) DO NOTHING").
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("building item insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("inserting item %s: %w", it.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

var entryColumns = []string{
	"d.run_id", "d.report_key", "d.source", "d.item_id", "d.channel", "d.title", "d.url",
	"d.published_at", "d.delivered_at", "d.score", "d.rank", "d.deep_dive", "d.top_pick",
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var (
			e                    Entry
			source               string
			channel, url         sql.NullString
			published, delivered sql.NullString
			score                sql.NullFloat64
			rank                 sql.NullInt64
			deepDive, topPick    int
		)
		if err := rows.Scan(&e.RunID, &e.ReportKey, &source, &e.ItemID, &channel, &e.Title, &url,
			&published, &delivered, &score, &rank, &deepDive, &topPick); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		e.Source = types.Source(source)
		e.Channel = channel.String
		e.URL = url.String
		e.PublishedAt, _ = types.ParseUTC(published.String)
		e.DeliveredAt, _ = types.ParseUTC(delivered.String)
		e.Score = score.Float64
		e.Rank = int(rank.Int64)
		e.DeepDive = deepDive != 0
		e.TopPick = topPick != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) query(ctx context.Context, b sq.SelectBuilder) ([]Entry, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying archive: %w", err)
	}
	return scanEntries(rows)
}

// TopItems returns up to n distinct items delivered for reportKey in month
// ("YYYY-MM"), top picks and deep dives first, then by score and delivery
// time.
func (s *Store) TopItems(ctx context.Context, reportKey, month string, n int) ([]Entry, error) {
	if n <= 0 {
		n = defaultLimit
	}
	entries, err := s.query(ctx, s.sb.Select(entryColumns...).
		From("delivered d").
		Where(sq.Eq{"d.report_key": reportKey, "d.month": month}).
		OrderBy("d.top_pick DESC", "d.deep_dive DESC", "d.score DESC", "d.delivered_at ASC", "d.rowid ASC"))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []Entry
	for _, e := range entries {
		key := string(e.Source) + ":" + e.ItemID
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, e)
		if len(out) == n {
			break
		}
	}
	return out, nil
}

// SearchOptions filters Search.
type SearchOptions struct {
	Query     string
	ReportKey string
	Source    types.Source
	Limit     int
}

// Search finds delivered items whose title or channel matches every term
// of the query, newest first.
func (s *Store) Search(ctx context.Context, opts SearchOptions) ([]Entry, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	b := s.sb.Select(entryColumns...).From("delivered d")

	terms := strings.Fields(opts.Query)
	if len(terms) > 0 {
		if s.fts {
			b = b.Join("delivered_fts ON delivered_fts.rowid = d.rowid").
				Where("delivered_fts MATCH ?", ftsQuery(terms))
		} else {
			for _, term := range terms {
				like := "%" + strings.ToLower(term) + "%"
				b = b.Where(sq.Or{
					sq.Like{"lower(d.title)": like},
					sq.Like{"lower(d.channel)": like},
				})
			}
		}
	}
	if opts.ReportKey != "" {
		b = b.Where(sq.Eq{"d.report_key": opts.ReportKey})
	}
	if opts.Source != "" {
		b = b.Where(sq.Eq{"d.source": string(opts.Source)})
	}
	return s.query(ctx, b.OrderBy("d.delivered_at DESC", "d.rowid DESC").Limit(uint64(limit)))
}

// ftsQuery quotes each term so user input cannot inject FTS syntax.
func ftsQuery(terms []string) string {
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

// Runs returns the most recent runs, newest first. An empty reportKey
// lists every report.
func (s *Store) Runs(ctx context.Context, reportKey string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	b := s.sb.Select("id", "report_key", "mode", "started_at", "finished_at", "candidates", "overview", "deep_dives").
		From("runs").
		OrderBy("id DESC").
		Limit(uint64(limit))
	if reportKey != "" {
		b = b.Where(sq.Eq{"report_key": reportKey})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r                 Run
			mode              string
			started, finished string
		)
		if err := rows.Scan(&r.ID, &r.ReportKey, &mode, &started, &finished, &r.Candidates, &r.Overview, &r.DeepDives); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		r.Mode = types.ReportMode(mode)
		r.StartedAt, _ = types.ParseUTC(started)
		r.FinishedAt, _ = types.ParseUTC(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}
