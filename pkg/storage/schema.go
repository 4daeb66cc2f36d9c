package storage

// schemaSQL creates the state tables. The go_live_state table holds exactly
// one row with id 1.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS engines (
	key TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	revision INTEGER NOT NULL,
	changed_by TEXT,
	reason TEXT,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS go_live_state (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	go_live_enabled INTEGER NOT NULL DEFAULT 0,
	kill_switch_engaged INTEGER NOT NULL DEFAULT 0,
	changed_by TEXT,
	reason TEXT,
	updated_at INTEGER NOT NULL,
	revision INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS kpi_events (
	id TEXT PRIMARY KEY,
	domain TEXT NOT NULL,
	metric TEXT NOT NULL,
	success INTEGER,
	value REAL,
	actor TEXT,
	correlation_id TEXT,
	detail TEXT,
	created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_kpi_events_domain_metric_created
	ON kpi_events(domain, metric, created_at DESC);

CREATE TABLE IF NOT EXISTS tripwire_evaluations (
	domain TEXT NOT NULL,
	metric TEXT NOT NULL,
	triggered INTEGER NOT NULL,
	baseline REAL,
	current REAL,
	drop_fraction REAL,
	action TEXT,
	note TEXT,
	last_checked_at INTEGER NOT NULL,
	last_triggered_at INTEGER,
	PRIMARY KEY (domain, metric)
);
`

// seedGateSQL creates the singleton gate row with both flags off.
const seedGateSQL = `
INSERT OR IGNORE INTO go_live_state (id, go_live_enabled, kill_switch_engaged, updated_at, revision)
VALUES (1, 0, 0, ?, 0)
`
