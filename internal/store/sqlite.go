package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/attendance-cli/internal/model"
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
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES pipeline_runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	detail     TEXT,
	started_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS work_sessions (
	run_id          TEXT NOT NULL REFERENCES pipeline_runs(id),
	session_id      TEXT NOT NULL,
	employee_id     TEXT NOT NULL,
	shift_id        TEXT NOT NULL DEFAULT '',
	session_date    TEXT NOT NULL,
	scheduled_start DATETIME NOT NULL,
	scheduled_end   DATETIME NOT NULL,
	actual_start    DATETIME,
	actual_end      DATETIME,
	worked_hours    REAL NOT NULL,
	overtime_hours  REAL NOT NULL,
	is_partial      INTEGER NOT NULL DEFAULT 0,
	is_imputed      INTEGER NOT NULL DEFAULT 0,
	unmatched       INTEGER NOT NULL DEFAULT 0,
	facility        TEXT NOT NULL DEFAULT '',
	badge_id        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, session_id)
);

CREATE TABLE IF NOT EXISTS exception_flags (
	run_id      TEXT NOT NULL REFERENCES pipeline_runs(id),
	session_id  TEXT NOT NULL,
	code        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	explanation TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS anomaly_flags (
	run_id       TEXT NOT NULL REFERENCES pipeline_runs(id),
	session_id   TEXT NOT NULL,
	score        REAL NOT NULL,
	top_features TEXT NOT NULL,
	explanation  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS unresolved_events (
	run_id        TEXT NOT NULL REFERENCES pipeline_runs(id),
	event_id      TEXT NOT NULL,
	reason        TEXT NOT NULL,
	badge_id      TEXT NOT NULL DEFAULT '',
	phone_id      TEXT NOT NULL DEFAULT '',
	raw_timestamp TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON pipeline_runs(status);
CREATE INDEX IF NOT EXISTS idx_run_phases_run_id ON run_phases(run_id);
CREATE INDEX IF NOT EXISTS idx_sessions_employee ON work_sessions(run_id, employee_id);
CREATE INDEX IF NOT EXISTS idx_sessions_date ON work_sessions(run_id, session_date);
CREATE INDEX IF NOT EXISTS idx_exceptions_session ON exception_flags(run_id, session_id);
CREATE INDEX IF NOT EXISTS idx_anomalies_session ON anomaly_flags(run_id, session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (id, status, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET summary = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(summaryJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, summary, created_at, updated_at FROM pipeline_runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) LatestRun(ctx context.Context) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, summary, created_at, updated_at FROM pipeline_runs
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, summary, created_at, updated_at FROM pipeline_runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *SQLiteStore) CompletePhase(ctx context.Context, phaseID string, status model.PhaseStatus, detail string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_phases SET status = ?, detail = ? WHERE id = ?`,
		string(status), detail, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete phase %s", phaseID)
	}
	return checkRowsAffected(res, "phase", phaseID)
}

// SaveResults replaces the run's artifacts inside one transaction, so a rerun
// of the same run id never duplicates rows.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID string, res model.RunArtifacts) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save results")
	}
	defer tx.Rollback()

	for _, table := range []string{"work_sessions", "exception_flags", "anomaly_flags", "unresolved_events"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, runID); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s", table)
		}
	}

	for _, ws := range res.Sessions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO work_sessions (run_id, session_id, employee_id, shift_id, session_date,
			   scheduled_start, scheduled_end, actual_start, actual_end,
			   worked_hours, overtime_hours, is_partial, is_imputed, unmatched, facility, badge_id)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, ws.SessionID, ws.EmployeeID, ws.ShiftID, ws.SessionDate.Format("2006-01-02"),
			ws.ScheduledStart, ws.ScheduledEnd, nullTime(ws.ActualStart), nullTime(ws.ActualEnd),
			ws.WorkedHours, ws.OvertimeHours, ws.IsPartial, ws.IsImputed, ws.Unmatched, ws.Facility, ws.BadgeID,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert session %s", ws.SessionID)
		}
	}

	for _, f := range res.Exceptions {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO exception_flags (run_id, session_id, code, severity, explanation) VALUES (?, ?, ?, ?, ?)`,
			runID, f.SessionID, string(f.Code), f.Severity, f.Explanation,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert exception for %s", f.SessionID)
		}
	}

	for _, f := range res.Anomalies {
		featuresJSON, err := json.Marshal(f.TopFeatures)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal top features")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO anomaly_flags (run_id, session_id, score, top_features, explanation) VALUES (?, ?, ?, ?, ?)`,
			runID, f.SessionID, f.Score, string(featuresJSON), f.Explanation,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert anomaly for %s", f.SessionID)
		}
	}

	for _, e := range res.Unresolved {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO unresolved_events (run_id, event_id, reason, badge_id, phone_id, raw_timestamp) VALUES (?, ?, ?, ?, ?, ?)`,
			runID, e.EventID, e.Reason, e.BadgeID, e.PhoneID, e.RawTimestamp,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert unresolved event %s", e.EventID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save results")
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.WorkSession, error) {
	query := `SELECT session_id, employee_id, shift_id, session_date,
	            scheduled_start, scheduled_end, actual_start, actual_end,
	            worked_hours, overtime_hours, is_partial, is_imputed, unmatched, facility, badge_id
	          FROM work_sessions WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.EmployeeID != "" {
		query += ` AND employee_id = ?`
		args = append(args, filter.EmployeeID)
	}
	if filter.Date != "" {
		query += ` AND session_date = ?`
		args = append(args, filter.Date)
	}
	query += ` ORDER BY session_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.WorkSession
	for rows.Next() {
		var ws model.WorkSession
		var dateStr string
		var actualStart, actualEnd sql.NullTime

		err := rows.Scan(&ws.SessionID, &ws.EmployeeID, &ws.ShiftID, &dateStr,
			&ws.ScheduledStart, &ws.ScheduledEnd, &actualStart, &actualEnd,
			&ws.WorkedHours, &ws.OvertimeHours, &ws.IsPartial, &ws.IsImputed, &ws.Unmatched, &ws.Facility, &ws.BadgeID)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}

		ws.SessionDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, eris.Wrapf(err, "sqlite: parse session date %s", dateStr)
		}
		if actualStart.Valid {
			t := actualStart.Time
			ws.ActualStart = &t
		}
		if actualEnd.Valid {
			t := actualEnd.Time
			ws.ActualEnd = &t
		}
		sessions = append(sessions, ws)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) ListExceptions(ctx context.Context, filter FlagFilter) ([]model.ExceptionFlag, error) {
	query := `SELECT session_id, code, severity, explanation FROM exception_flags WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	query += ` ORDER BY session_id, code, explanation`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list exceptions")
	}
	defer rows.Close()

	var flags []model.ExceptionFlag
	for rows.Next() {
		var f model.ExceptionFlag
		var code string
		if err := rows.Scan(&f.SessionID, &code, &f.Severity, &f.Explanation); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan exception")
		}
		f.Code = model.ExceptionCode(code)
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "sqlite: list exceptions iterate")
}

func (s *SQLiteStore) ListAnomalies(ctx context.Context, filter FlagFilter) ([]model.AnomalyFlag, error) {
	query := `SELECT session_id, score, top_features, explanation FROM anomaly_flags WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, filter.RunID)
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	query += ` ORDER BY score, session_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list anomalies")
	}
	defer rows.Close()

	var flags []model.AnomalyFlag
	for rows.Next() {
		var f model.AnomalyFlag
		var featuresJSON string
		if err := rows.Scan(&f.SessionID, &f.Score, &featuresJSON, &f.Explanation); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan anomaly")
		}
		if err := json.Unmarshal([]byte(featuresJSON), &f.TopFeatures); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal top features")
		}
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "sqlite: list anomalies iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var summaryJSON sql.NullString

	err := row.Scan(&r.ID, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if summaryJSON.Valid {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal([]byte(summaryJSON.String), r.Summary); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal summary")
		}
	}
	return &r, nil
}
