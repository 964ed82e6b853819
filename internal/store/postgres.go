package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/attendance-cli/internal/db"
	"github.com/sells-group/attendance-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_run":        `INSERT INTO pipeline_runs (id, status, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
	"update_run_status": `UPDATE pipeline_runs SET status = $1, updated_at = $2 WHERE id = $3`,
	"complete_run":      `UPDATE pipeline_runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
	"get_run":           `SELECT id, status, summary, created_at, updated_at FROM pipeline_runs WHERE id = $1`,
	"insert_phase":      `INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
	"complete_phase":    `UPDATE run_phases SET status = $1, detail = $2 WHERE id = $3`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool, used by tests with pgxmock.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	status     TEXT NOT NULL DEFAULT 'queued',
	summary    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_phases (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	run_id     TEXT NOT NULL REFERENCES pipeline_runs(id),
	name       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	detail     TEXT,
	started_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS work_sessions (
	run_id          TEXT NOT NULL REFERENCES pipeline_runs(id),
	session_id      TEXT NOT NULL,
	employee_id     TEXT NOT NULL,
	shift_id        TEXT NOT NULL DEFAULT '',
	session_date    TEXT NOT NULL,
	scheduled_start TIMESTAMPTZ NOT NULL,
	scheduled_end   TIMESTAMPTZ NOT NULL,
	actual_start    TIMESTAMPTZ,
	actual_end      TIMESTAMPTZ,
	worked_hours    DOUBLE PRECISION NOT NULL,
	overtime_hours  DOUBLE PRECISION NOT NULL,
	is_partial      BOOLEAN NOT NULL DEFAULT false,
	is_imputed      BOOLEAN NOT NULL DEFAULT false,
	unmatched       BOOLEAN NOT NULL DEFAULT false,
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
	score        DOUBLE PRECISION NOT NULL,
	top_features JSONB NOT NULL,
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

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO pipeline_runs (id, status, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		id, string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary *model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE pipeline_runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	return s.queryRun(ctx,
		`SELECT id, status, summary, created_at, updated_at FROM pipeline_runs WHERE id = $1`,
		runID)
}

func (s *PostgresStore) LatestRun(ctx context.Context) (*model.Run, error) {
	return s.queryRun(ctx,
		`SELECT id, status, summary, created_at, updated_at FROM pipeline_runs
		 ORDER BY created_at DESC, id DESC LIMIT 1`)
}

func (s *PostgresStore) queryRun(ctx context.Context, query string, args ...any) (*model.Run, error) {
	var r model.Run
	var summaryJSON []byte

	err := s.pool.QueryRow(ctx, query, args...).
		Scan(&r.ID, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}

	if len(summaryJSON) > 0 {
		r.Summary = &model.RunSummary{}
		if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal summary")
		}
	}
	return &r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, status, summary, created_at, updated_at FROM pipeline_runs`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` WHERE status = $%d`, len(args))
	}
	query += ` ORDER BY created_at DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var summaryJSON []byte
		if err := rows.Scan(&r.ID, &r.Status, &summaryJSON, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(summaryJSON) > 0 {
			r.Summary = &model.RunSummary{}
			if err := json.Unmarshal(summaryJSON, r.Summary); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal summary")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) CreatePhase(ctx context.Context, runID string, name string) (*model.RunPhase, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_phases (id, run_id, name, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id, runID, name, string(model.PhaseStatusRunning), now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert phase for run %s", runID)
	}

	return &model.RunPhase{
		ID:        id,
		RunID:     runID,
		Name:      name,
		Status:    model.PhaseStatusRunning,
		StartedAt: now,
	}, nil
}

func (s *PostgresStore) CompletePhase(ctx context.Context, phaseID string, status model.PhaseStatus, detail string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_phases SET status = $1, detail = $2 WHERE id = $3`,
		string(status), detail, phaseID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete phase %s", phaseID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("phase not found: %s", phaseID)
	}
	return nil
}

// SaveResults loads the run's artifacts in bulk: sessions are upserted on
// (run_id, session_id) and the append-only flag tables are cleared for the
// run first, so reruns replace rather than duplicate.
func (s *PostgresStore) SaveResults(ctx context.Context, runID string, res model.RunArtifacts) error {
	for _, table := range []string{"exception_flags", "anomaly_flags", "unresolved_events"} {
		if _, err := s.pool.Exec(ctx, `DELETE FROM `+table+` WHERE run_id = $1`, runID); err != nil {
			return eris.Wrapf(err, "postgres: clear %s", table)
		}
	}

	sessionRows := make([][]any, 0, len(res.Sessions))
	for _, ws := range res.Sessions {
		sessionRows = append(sessionRows, []any{
			runID, ws.SessionID, ws.EmployeeID, ws.ShiftID, ws.SessionDate.Format("2006-01-02"),
			ws.ScheduledStart, ws.ScheduledEnd, ws.ActualStart, ws.ActualEnd,
			ws.WorkedHours, ws.OvertimeHours, ws.IsPartial, ws.IsImputed, ws.Unmatched, ws.Facility, ws.BadgeID,
		})
	}
	if _, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table: "work_sessions",
		Columns: []string{
			"run_id", "session_id", "employee_id", "shift_id", "session_date",
			"scheduled_start", "scheduled_end", "actual_start", "actual_end",
			"worked_hours", "overtime_hours", "is_partial", "is_imputed", "unmatched", "facility", "badge_id",
		},
		ConflictKeys: []string{"run_id", "session_id"},
	}, sessionRows); err != nil {
		return err
	}

	exceptionRows := make([][]any, 0, len(res.Exceptions))
	for _, f := range res.Exceptions {
		exceptionRows = append(exceptionRows, []any{runID, f.SessionID, string(f.Code), f.Severity, f.Explanation})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "exception_flags",
		[]string{"run_id", "session_id", "code", "severity", "explanation"}, exceptionRows); err != nil {
		return err
	}

	anomalyRows := make([][]any, 0, len(res.Anomalies))
	for _, f := range res.Anomalies {
		featuresJSON, err := json.Marshal(f.TopFeatures)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal top features")
		}
		anomalyRows = append(anomalyRows, []any{runID, f.SessionID, f.Score, featuresJSON, f.Explanation})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "anomaly_flags",
		[]string{"run_id", "session_id", "score", "top_features", "explanation"}, anomalyRows); err != nil {
		return err
	}

	unresolvedRows := make([][]any, 0, len(res.Unresolved))
	for _, e := range res.Unresolved {
		unresolvedRows = append(unresolvedRows, []any{runID, e.EventID, e.Reason, e.BadgeID, e.PhoneID, e.RawTimestamp})
	}
	if _, err := db.CopyFrom(ctx, s.pool, "unresolved_events",
		[]string{"run_id", "event_id", "reason", "badge_id", "phone_id", "raw_timestamp"}, unresolvedRows); err != nil {
		return err
	}

	return nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.WorkSession, error) {
	query := `SELECT session_id, employee_id, shift_id, session_date,
	            scheduled_start, scheduled_end, actual_start, actual_end,
	            worked_hours, overtime_hours, is_partial, is_imputed, unmatched, facility, badge_id
	          FROM work_sessions WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += fmt.Sprintf(` AND run_id = $%d`, len(args))
	}
	if filter.EmployeeID != "" {
		args = append(args, filter.EmployeeID)
		query += fmt.Sprintf(` AND employee_id = $%d`, len(args))
	}
	if filter.Date != "" {
		args = append(args, filter.Date)
		query += fmt.Sprintf(` AND session_date = $%d`, len(args))
	}
	query += ` ORDER BY session_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.WorkSession
	for rows.Next() {
		var ws model.WorkSession
		var dateStr string

		err := rows.Scan(&ws.SessionID, &ws.EmployeeID, &ws.ShiftID, &dateStr,
			&ws.ScheduledStart, &ws.ScheduledEnd, &ws.ActualStart, &ws.ActualEnd,
			&ws.WorkedHours, &ws.OvertimeHours, &ws.IsPartial, &ws.IsImputed, &ws.Unmatched, &ws.Facility, &ws.BadgeID)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}

		ws.SessionDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: parse session date %s", dateStr)
		}
		sessions = append(sessions, ws)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) ListExceptions(ctx context.Context, filter FlagFilter) ([]model.ExceptionFlag, error) {
	query := `SELECT session_id, code, severity, explanation FROM exception_flags WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += fmt.Sprintf(` AND run_id = $%d`, len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		query += fmt.Sprintf(` AND session_id = $%d`, len(args))
	}
	query += ` ORDER BY session_id, code, explanation`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list exceptions")
	}
	defer rows.Close()

	var flags []model.ExceptionFlag
	for rows.Next() {
		var f model.ExceptionFlag
		var code string
		if err := rows.Scan(&f.SessionID, &code, &f.Severity, &f.Explanation); err != nil {
			return nil, eris.Wrap(err, "postgres: scan exception")
		}
		f.Code = model.ExceptionCode(code)
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "postgres: list exceptions iterate")
}

func (s *PostgresStore) ListAnomalies(ctx context.Context, filter FlagFilter) ([]model.AnomalyFlag, error) {
	query := `SELECT session_id, score, top_features, explanation FROM anomaly_flags WHERE 1=1`
	var args []any

	if filter.RunID != "" {
		args = append(args, filter.RunID)
		query += fmt.Sprintf(` AND run_id = $%d`, len(args))
	}
	if filter.SessionID != "" {
		args = append(args, filter.SessionID)
		query += fmt.Sprintf(` AND session_id = $%d`, len(args))
	}
	query += ` ORDER BY score, session_id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	args = append(args, limit)
	query += fmt.Sprintf(` LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list anomalies")
	}
	defer rows.Close()

	var flags []model.AnomalyFlag
	for rows.Next() {
		var f model.AnomalyFlag
		var featuresJSON []byte
		if err := rows.Scan(&f.SessionID, &f.Score, &featuresJSON, &f.Explanation); err != nil {
			return nil, eris.Wrap(err, "postgres: scan anomaly")
		}
		if err := json.Unmarshal(featuresJSON, &f.TopFeatures); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal top features")
		}
		flags = append(flags, f)
	}
	return flags, eris.Wrap(rows.Err(), "postgres: list anomalies iterate")
}
