package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_records (
    seq INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    kind TEXT NOT NULL,
    outcome TEXT NOT NULL,

    actor TEXT,
    reason TEXT,
    request_id TEXT,

    engine_key TEXT,
    from_state TEXT,
    to_state TEXT,

    action TEXT,
    block_code TEXT,
    detail TEXT,

    -- Microseconds since the Unix epoch, UTC
    recorded_at INTEGER NOT NULL,

    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_recorded_at ON audit_records(recorded_at);
CREATE INDEX IF NOT EXISTS idx_audit_kind ON audit_records(kind);
CREATE INDEX IF NOT EXISTS idx_audit_engine_key ON audit_records(engine_key);
CREATE INDEX IF NOT EXISTS idx_audit_actor ON audit_records(actor);
`

// InsertSchemaVersion records the schema version.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const recordColumns = `seq, id, kind, outcome, actor, reason, request_id,
    engine_key, from_state, to_state, action, block_code, detail,
    recorded_at, prev_hash, hash`
