package runlog

// Schema is the DDL of the run ledger.
const Schema = `
CREATE TABLE IF NOT EXISTS run_events (
    event_id      TEXT PRIMARY KEY,
    run_id        TEXT NOT NULL,
    request_id    TEXT NOT NULL DEFAULT '',
    ts_ms         INTEGER NOT NULL,
    kind          TEXT NOT NULL,
    file          TEXT NOT NULL DEFAULT '',
    media_type    TEXT NOT NULL DEFAULT '',
    method        TEXT NOT NULL DEFAULT '',
    files         INTEGER NOT NULL DEFAULT 0,
    pages         INTEGER NOT NULL DEFAULT 0,
    page_failures INTEGER NOT NULL DEFAULT 0,
    text_len      INTEGER NOT NULL DEFAULT 0,
    duration_ms   INTEGER NOT NULL DEFAULT 0,
    error         TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_run_events_ts ON run_events(ts_ms DESC);
CREATE INDEX IF NOT EXISTS idx_run_events_run ON run_events(run_id, ts_ms);
`
