// CLAUDE:SUMMARY SQLite schema for the run ledger: runs, unresolved codes per run, detail-page evidence by product link.
package ledger

// Schema is applied on every Open; statements are idempotent.
const Schema = `
-- One row per ingestion, audit or scale run.
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL DEFAULT 'ingest',
    index_path  TEXT NOT NULL,
    started_at  INTEGER NOT NULL,
    finished_at INTEGER,
    fragments   INTEGER NOT NULL DEFAULT 0,
    records     INTEGER NOT NULL DEFAULT 0,
    unresolved  INTEGER NOT NULL DEFAULT 0,
    status      INTEGER NOT NULL DEFAULT -1,
    error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);

-- Codes that failed validation during a run, for manual review.
CREATE TABLE IF NOT EXISTS unresolved_codes (
    run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    code         TEXT NOT NULL,
    product_link TEXT NOT NULL DEFAULT '',
    producer     TEXT NOT NULL DEFAULT '',
    reason       TEXT NOT NULL,
    PRIMARY KEY (run_id, code, product_link)
);

-- Secondary code evidence seen on detail pages, keyed by product link.
CREATE TABLE IF NOT EXISTS evidence (
    product_link TEXT PRIMARY KEY,
    sku          TEXT NOT NULL DEFAULT '',
    image_url    TEXT NOT NULL DEFAULT '',
    scale_hint   TEXT NOT NULL DEFAULT '',
    seen_at      INTEGER NOT NULL
);
`
