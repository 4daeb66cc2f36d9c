package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"valhalla-hq/heimdall/pkg/engine"
	"valhalla-hq/heimdall/pkg/golive"
	"valhalla-hq/heimdall/pkg/tripwire"
)

const backendName = "sqlite"

// SQLiteStore persists engine records, the go-live gate, and KPI events in
// one SQLite database. It implements engine.Store, golive.Store and
// tripwire.Store.
//
// The connection pool holds a single connection and transactions begin
// IMMEDIATE, so every read-modify-write of the gate holds the write lock for
// its whole duration.
type SQLiteStore struct {
	db                 *sql.DB
	path               string
	checkpointInterval time.Duration
	done               chan struct{}
	closeOnce          sync.Once

	getEngineStmt    *sql.Stmt
	listEnginesStmt  *sql.Stmt
	updateEngineStmt *sql.Stmt
	insertEngineStmt *sql.Stmt
	loadGateStmt     *sql.Stmt
	insertEventStmt  *sql.Stmt
	recentEventsStmt *sql.Stmt
	saveEvalStmt     *sql.Stmt
	getEvalStmt      *sql.Stmt
}

// Config configures the SQLite store.
type Config struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration
}

// Open opens (creating if needed) the SQLite store at path with default
// settings.
func Open(path string) (*SQLiteStore, error) {
	return OpenWithConfig(Config{Path: path})
}

// OpenWithConfig opens the SQLite store described by cfg.
func OpenWithConfig(cfg Config) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_txlock=immediate",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, NewStorageError(backendName, "open", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports a single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:                 db,
		path:               cfg.Path,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, NewStorageError(backendName, "init_schema", err)
	}

	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, NewStorageError(backendName, "prepare", err)
	}

	go s.checkpointLoop()

	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := s.db.Exec(seedGateSQL, time.Now().UTC().UnixNano()); err != nil {
		return fmt.Errorf("failed to seed go-live state: %w", err)
	}
	return nil
}

func (s *SQLiteStore) prepareStatements() error {
	stmts := []struct {
		dst   **sql.Stmt
		name  string
		query string
	}{
		{&s.getEngineStmt, "get engine", `
			SELECT key, state, revision, changed_by, reason, updated_at
			FROM engines WHERE key = ?`},
		{&s.listEnginesStmt, "list engines", `
			SELECT key, state, revision, changed_by, reason, updated_at
			FROM engines ORDER BY key`},
		{&s.updateEngineStmt, "update engine", `
			UPDATE engines
			SET state = ?, revision = ?, changed_by = ?, reason = ?, updated_at = ?
			WHERE key = ? AND revision = ?`},
		{&s.insertEngineStmt, "insert engine", `
			INSERT INTO engines (key, state, revision, changed_by, reason, updated_at)
			VALUES (?, ?, 1, ?, ?, ?)
			ON CONFLICT (key) DO NOTHING`},
		{&s.loadGateStmt, "load gate", `
			SELECT go_live_enabled, kill_switch_engaged, changed_by, reason, updated_at, revision
			FROM go_live_state WHERE id = 1`},
		{&s.insertEventStmt, "insert event", `
			INSERT INTO kpi_events (id, domain, metric, success, value, actor, correlation_id, detail, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`},
		{&s.recentEventsStmt, "recent events", `
			SELECT id, domain, metric, success, value, actor, correlation_id, detail, created_at
			FROM kpi_events
			WHERE domain = ? AND metric = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ? OFFSET ?`},
		{&s.saveEvalStmt, "save evaluation", `
			INSERT INTO tripwire_evaluations
				(domain, metric, triggered, baseline, current, drop_fraction, action, note, last_checked_at, last_triggered_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (domain, metric) DO UPDATE SET
				triggered = excluded.triggered,
				baseline = excluded.baseline,
				current = excluded.current,
				drop_fraction = excluded.drop_fraction,
				action = excluded.action,
				note = excluded.note,
				last_checked_at = excluded.last_checked_at,
				last_triggered_at = excluded.last_triggered_at`},
		{&s.getEvalStmt, "get evaluation", `
			SELECT domain, metric, triggered, baseline, current, drop_fraction, action, note, last_checked_at, last_triggered_at
			FROM tripwire_evaluations WHERE domain = ? AND metric = ?`},
	}

	for _, st := range stmts {
		prepared, err := s.db.Prepare(st.query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s statement: %w", st.name, err)
		}
		*st.dst = prepared
	}
	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStorageError(backendName, "ping", err)
	}
	return nil
}

// GetEngine implements engine.Store.
func (s *SQLiteStore) GetEngine(ctx context.Context, key string) (*engine.Record, error) {
	rec, err := scanEngine(s.getEngineStmt.QueryRowContext(ctx, key))
	if err == sql.ErrNoRows {
		return engine.DefaultRecord(key), nil
	}
	if err != nil {
		return nil, NewStorageError(backendName, "get_engine", err)
	}
	return rec, nil
}

// ListEngines implements engine.Store.
func (s *SQLiteStore) ListEngines(ctx context.Context) ([]*engine.Record, error) {
	rows, err := s.listEnginesStmt.QueryContext(ctx)
	if err != nil {
		return nil, NewStorageError(backendName, "list_engines", err)
	}
	defer rows.Close()

	records := []*engine.Record{}
	for rows.Next() {
		rec, err := scanEngine(rows)
		if err != nil {
			return nil, NewStorageError(backendName, "list_engines", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(backendName, "list_engines", err)
	}
	return records, nil
}

// CompareAndSetEngine implements engine.Store. The revision check and the
// write are a single statement, so no explicit transaction is needed.
func (s *SQLiteStore) CompareAndSetEngine(ctx context.Context, next *engine.Record, expectedRevision int64) (*engine.Record, error) {
	updatedAt := next.UpdatedAt.UTC().UnixNano()

	var (
		res sql.Result
		err error
	)
	if expectedRevision == 0 {
		res, err = s.insertEngineStmt.ExecContext(ctx,
			next.Key, string(next.State), nullString(next.ChangedBy), nullString(next.Reason), updatedAt)
	} else {
		res, err = s.updateEngineStmt.ExecContext(ctx,
			string(next.State), expectedRevision+1, nullString(next.ChangedBy), nullString(next.Reason), updatedAt,
			next.Key, expectedRevision)
	}
	if err != nil {
		return nil, NewStorageError(backendName, "compare_and_set_engine", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, NewStorageError(backendName, "compare_and_set_engine", err)
	}
	if n == 0 {
		return nil, engine.ErrConflict
	}

	stored := *next
	stored.Revision = expectedRevision + 1
	stored.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &stored, nil
}

// LoadGate implements golive.Store.
func (s *SQLiteStore) LoadGate(ctx context.Context) (*golive.State, error) {
	st, err := scanGate(s.loadGateStmt.QueryRowContext(ctx))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError(backendName, "load_gate", err)
	}
	return st, nil
}

// UpdateGate implements golive.Store. The read and the write run in one
// IMMEDIATE transaction.
func (s *SQLiteStore) UpdateGate(ctx context.Context, fn func(golive.State) (golive.State, error)) (*golive.State, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewStorageError(backendName, "update_gate", err)
	}
	defer tx.Rollback()

	current, err := scanGate(tx.StmtContext(ctx, s.loadGateStmt).QueryRowContext(ctx))
	if err != nil && err != sql.ErrNoRows {
		return nil, NewStorageError(backendName, "update_gate", err)
	}
	if current == nil {
		current = &golive.State{}
	}

	next, err := fn(*current)
	if err != nil {
		return nil, err
	}
	next.Revision = current.Revision + 1
	updatedAt := next.UpdatedAt.UTC().UnixNano()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO go_live_state (id, go_live_enabled, kill_switch_engaged, changed_by, reason, updated_at, revision)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			go_live_enabled = excluded.go_live_enabled,
			kill_switch_engaged = excluded.kill_switch_engaged,
			changed_by = excluded.changed_by,
			reason = excluded.reason,
			updated_at = excluded.updated_at,
			revision = excluded.revision`,
		next.GoLiveEnabled, next.KillSwitchEngaged,
		nullString(next.ChangedBy), nullString(next.Reason),
		updatedAt, next.Revision,
	)
	if err != nil {
		return nil, NewStorageError(backendName, "update_gate", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, NewStorageError(backendName, "update_gate", err)
	}

	next.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &next, nil
}

// AppendEvent implements tripwire.Store.
func (s *SQLiteStore) AppendEvent(ctx context.Context, e *tripwire.Event) error {
	var success sql.NullBool
	if e.Success != nil {
		success = sql.NullBool{Bool: *e.Success, Valid: true}
	}
	var value sql.NullFloat64
	if e.Value != nil {
		value = sql.NullFloat64{Float64: *e.Value, Valid: true}
	}

	_, err := s.insertEventStmt.ExecContext(ctx,
		e.ID, e.Domain, e.Metric, success, value,
		nullString(e.Actor), nullString(e.CorrelationID), nullString(e.Detail),
		e.CreatedAt.UTC().UnixNano(),
	)
	if err != nil {
		return NewStorageError(backendName, "append_event", err)
	}
	return nil
}

// RecentEvents implements tripwire.Store.
func (s *SQLiteStore) RecentEvents(ctx context.Context, domain, metric string, offset, limit int) ([]*tripwire.Event, error) {
	rows, err := s.recentEventsStmt.QueryContext(ctx, domain, metric, limit, offset)
	if err != nil {
		return nil, NewStorageError(backendName, "recent_events", err)
	}
	defer rows.Close()

	events := []*tripwire.Event{}
	for rows.Next() {
		var (
			e                            tripwire.Event
			success                      sql.NullBool
			value                        sql.NullFloat64
			actor, correlationID, detail sql.NullString
			createdAt                    int64
		)
		if err := rows.Scan(&e.ID, &e.Domain, &e.Metric, &success, &value,
			&actor, &correlationID, &detail, &createdAt); err != nil {
			return nil, NewStorageError(backendName, "recent_events", err)
		}
		if success.Valid {
			b := success.Bool
			e.Success = &b
		}
		if value.Valid {
			v := value.Float64
			e.Value = &v
		}
		e.Actor = actor.String
		e.CorrelationID = correlationID.String
		e.Detail = detail.String
		e.CreatedAt = time.Unix(0, createdAt).UTC()
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError(backendName, "recent_events", err)
	}
	return events, nil
}

// SaveEvaluation implements tripwire.Store.
func (s *SQLiteStore) SaveEvaluation(ctx context.Context, ev *tripwire.Evaluation) error {
	var lastTriggered sql.NullInt64
	if ev.LastTriggeredAt != nil {
		lastTriggered = sql.NullInt64{Int64: ev.LastTriggeredAt.UTC().UnixNano(), Valid: true}
	}

	_, err := s.saveEvalStmt.ExecContext(ctx,
		ev.Domain, ev.Metric, ev.Triggered,
		nullFloat(ev.Baseline), nullFloat(ev.Current), nullFloat(ev.DropFraction),
		nullString(string(ev.Action)), ev.Note,
		ev.LastCheckedAt.UTC().UnixNano(), lastTriggered,
	)
	if err != nil {
		return NewStorageError(backendName, "save_evaluation", err)
	}
	return nil
}

// GetEvaluation implements tripwire.Store.
func (s *SQLiteStore) GetEvaluation(ctx context.Context, domain, metric string) (*tripwire.Evaluation, error) {
	var (
		ev                      tripwire.Evaluation
		baseline, current, drop sql.NullFloat64
		action, note            sql.NullString
		lastChecked             int64
		lastTriggered           sql.NullInt64
	)

	err := s.getEvalStmt.QueryRowContext(ctx, domain, metric).Scan(
		&ev.Domain, &ev.Metric, &ev.Triggered, &baseline, &current, &drop,
		&action, &note, &lastChecked, &lastTriggered,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, NewStorageError(backendName, "get_evaluation", err)
	}

	ev.Baseline = floatPtr(baseline)
	ev.Current = floatPtr(current)
	ev.DropFraction = floatPtr(drop)
	ev.Action = tripwire.Action(action.String)
	ev.Note = note.String
	ev.LastCheckedAt = time.Unix(0, lastChecked).UTC()
	if lastTriggered.Valid {
		t := time.Unix(0, lastTriggered.Int64).UTC()
		ev.LastTriggeredAt = &t
	}
	return &ev, nil
}

// Close releases the database. It is idempotent.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{
			s.getEngineStmt, s.listEnginesStmt, s.updateEngineStmt, s.insertEngineStmt,
			s.loadGateStmt, s.insertEventStmt, s.recentEventsStmt, s.saveEvalStmt, s.getEvalStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})

	return closeErr
}

func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEngine(row rowScanner) (*engine.Record, error) {
	var (
		rec               engine.Record
		state             string
		changedBy, reason sql.NullString
		updatedAt         int64
	)
	if err := row.Scan(&rec.Key, &state, &rec.Revision, &changedBy, &reason, &updatedAt); err != nil {
		return nil, err
	}
	rec.State = engine.State(state)
	rec.ChangedBy = changedBy.String
	rec.Reason = reason.String
	rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &rec, nil
}

func scanGate(row rowScanner) (*golive.State, error) {
	var (
		st                golive.State
		changedBy, reason sql.NullString
		updatedAt         int64
	)
	if err := row.Scan(&st.GoLiveEnabled, &st.KillSwitchEngaged, &changedBy, &reason, &updatedAt, &st.Revision); err != nil {
		return nil, err
	}
	st.ChangedBy = changedBy.String
	st.Reason = reason.String
	st.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &st, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
