// CLAUDE:SUMMARY Run ledger over SQLite: start/finish runs, record unresolved codes, keep detail-page evidence for audits.
// CLAUDE:DEPENDS modernc.org/sqlite (driver), dbopen, idgen
// Package ledger records the history of surfacekeeper runs next to the JSON
// index: when each run started and finished, how many fragments and records
// it handled, which codes it could not resolve, and the detail-page
// evidence later audits re-resolve codes from.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/surfacekeeper/dbopen"
	"github.com/hazyhaar/surfacekeeper/idgen"
)

// ErrNoRuns is returned by LatestRun on an empty ledger.
var ErrNoRuns = errors.New("ledger: no runs")

// StatusRunning marks a run that has not finished.
const StatusRunning = -1

// Run is one row of the runs table.
type Run struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	IndexPath  string    `json:"index_path"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Fragments  int       `json:"fragments"`
	Records    int       `json:"records"`
	Unresolved int       `json:"unresolved"`
	Status     int       `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// UnresolvedCode is a code kept under a best-effort value.
type UnresolvedCode struct {
	RunID       string `json:"run_id"`
	Code        string `json:"code"`
	ProductLink string `json:"product_link,omitempty"`
	Producer    string `json:"producer,omitempty"`
	Reason      string `json:"reason"`
}

// Evidence is what a detail page said about a product link.
type Evidence struct {
	ProductLink string    `json:"product_link"`
	SKU         string    `json:"sku,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	ScaleHint   string    `json:"scale_hint,omitempty"`
	SeenAt      time.Time `json:"seen_at"`
}

// Ledger is the run history handle.
type Ledger struct {
	DB    *sql.DB
	newID idgen.Generator
	now   func() time.Time
}

// Open opens (or creates) the ledger database at path and applies Schema.
func Open(path string, opts ...dbopen.Option) (*Ledger, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return New(db), nil
}

// New wraps a database that already carries Schema.
func New(db *sql.DB) *Ledger {
	return &Ledger{
		DB:    db,
		newID: idgen.Prefixed("run_", idgen.UUIDv7()),
		now:   time.Now,
	}
}

// SetIDGenerator replaces the run ID generator.
func (l *Ledger) SetIDGenerator(gen idgen.Generator) { l.newID = gen }

// Close closes the database.
func (l *Ledger) Close() error { return l.DB.Close() }

// StartRun inserts a running row and returns it.
func (l *Ledger) StartRun(ctx context.Context, kind, indexPath string) (*Run, error) {
	run := &Run{
		ID:        l.newID(),
		Kind:      kind,
		IndexPath: indexPath,
		StartedAt: l.now().UTC(),
		Status:    StatusRunning,
	}
	_, err := dbopen.Exec(ctx, l.DB,
		`INSERT INTO runs (id, kind, index_path, started_at, status) VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.IndexPath, run.StartedAt.UnixMilli(), run.Status)
	if err != nil {
		return nil, fmt.Errorf("ledger: start run: %w", err)
	}
	return run, nil
}

// FinishRun stores the run's final counters, status and error text, and
// its unresolved codes, in one transaction.
func (l *Ledger) FinishRun(ctx context.Context, run *Run, unresolved []UnresolvedCode) error {
	run.FinishedAt = l.now().UTC()
	run.Unresolved = len(unresolved)
	return dbopen.RunTx(ctx, l.DB, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE runs SET finished_at = ?, fragments = ?, records = ?, unresolved = ?,
			status = ?, error = ? WHERE id = ?`,
			run.FinishedAt.UnixMilli(), run.Fragments, run.Records, run.Unresolved,
			run.Status, run.Error, run.ID)
		if err != nil {
			return fmt.Errorf("ledger: finish run: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("ledger: finish run %s: not found", run.ID)
		}
		for _, u := range unresolved {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO unresolved_codes (run_id, code, product_link, producer, reason)
				VALUES (?, ?, ?, ?, ?)`,
				run.ID, u.Code, u.ProductLink, u.Producer, u.Reason); err != nil {
				return fmt.Errorf("ledger: insert unresolved: %w", err)
			}
		}
		return nil
	})
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.DB.QueryContext(ctx,
		`SELECT id, kind, index_path, started_at, finished_at, fragments, records,
		unresolved, status, error
		FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ledger: list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently started run.
func (l *Ledger) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := l.Runs(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return runs[0], nil
}

// Unresolved returns the unresolved codes recorded for runID.
func (l *Ledger) Unresolved(ctx context.Context, runID string) ([]UnresolvedCode, error) {
	rows, err := l.DB.QueryContext(ctx,
		`SELECT run_id, code, product_link, producer, reason
		FROM unresolved_codes WHERE run_id = ? ORDER BY code, product_link`, runID)
	if err != nil {
		return nil, fmt.Errorf("ledger: list unresolved: %w", err)
	}
	defer rows.Close()

	var out []UnresolvedCode
	for rows.Next() {
		var u UnresolvedCode
		if err := rows.Scan(&u.RunID, &u.Code, &u.ProductLink, &u.Producer, &u.Reason); err != nil {
			return nil, fmt.Errorf("ledger: scan unresolved: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// PutEvidence upserts detail-page evidence. Non-empty fields replace stored
// ones; empty fields keep what an earlier page said.
func (l *Ledger) PutEvidence(ctx context.Context, ev Evidence) error {
	if ev.ProductLink == "" {
		return nil
	}
	if ev.SeenAt.IsZero() {
		ev.SeenAt = l.now().UTC()
	}
	_, err := dbopen.Exec(ctx, l.DB,
		`INSERT INTO evidence (product_link, sku, image_url, scale_hint, seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(product_link) DO UPDATE SET
			sku        = CASE WHEN excluded.sku <> '' THEN excluded.sku ELSE evidence.sku END,
			image_url  = CASE WHEN excluded.image_url <> '' THEN excluded.image_url ELSE evidence.image_url END,
			scale_hint = CASE WHEN excluded.scale_hint <> '' THEN excluded.scale_hint ELSE evidence.scale_hint END,
			seen_at    = excluded.seen_at`,
		ev.ProductLink, ev.SKU, ev.ImageURL, ev.ScaleHint, ev.SeenAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("ledger: put evidence: %w", err)
	}
	return nil
}

// AllEvidence returns every evidence row keyed by product link.
func (l *Ledger) AllEvidence(ctx context.Context) (map[string]Evidence, error) {
	rows, err := l.DB.QueryContext(ctx,
		`SELECT product_link, sku, image_url, scale_hint, seen_at FROM evidence`)
	if err != nil {
		return nil, fmt.Errorf("ledger: list evidence: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Evidence)
	for rows.Next() {
		var ev Evidence
		var seen int64
		if err := rows.Scan(&ev.ProductLink, &ev.SKU, &ev.ImageURL, &ev.ScaleHint, &seen); err != nil {
			return nil, fmt.Errorf("ledger: scan evidence: %w", err)
		}
		ev.SeenAt = time.UnixMilli(seen).UTC()
		out[ev.ProductLink] = ev
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	if err := s.Scan(&r.ID, &r.Kind, &r.IndexPath, &started, &finished,
		&r.Fragments, &r.Records, &r.Unresolved, &r.Status, &r.Error); err != nil {
		return nil, fmt.Errorf("ledger: scan run: %w", err)
	}
	r.StartedAt = time.UnixMilli(started).UTC()
	if finished.Valid {
		r.FinishedAt = time.UnixMilli(finished.Int64).UTC()
	}
	return &r, nil
}
