package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/yourorg/testgen/pkg/types"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	if dir := filepath.Dir(dsn); dir != "." && dsn != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db}
	if err := s.Init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`PRAGMA busy_timeout=5000;`); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			surface TEXT NOT NULL,
			stage TEXT NOT NULL,
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			scenario_count INTEGER NOT NULL DEFAULT 0,
			failed_count INTEGER NOT NULL DEFAULT 0,
			output_path TEXT NOT NULL DEFAULT '',
			error_msg TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_runs_surface ON runs(surface);`,
		`CREATE TABLE IF NOT EXISTS scenario_results (
			run_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			scenario TEXT NOT NULL,
			status TEXT NOT NULL,
			line_count INTEGER NOT NULL DEFAULT 0,
			error_msg TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			PRIMARY KEY(run_id, seq)
		);`,
		`CREATE TABLE IF NOT EXISTS response_cache (
			surface TEXT NOT NULL,
			scenario TEXT NOT NULL,
			model TEXT NOT NULL,
			status TEXT NOT NULL,
			raw_output TEXT NOT NULL,
			tokens_used INTEGER NOT NULL,
			error_msg TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY(surface, scenario, model)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) CreateRun(surface, stage, model string) (*types.Run, error) {
	now := time.Now().UTC()
	run := &types.Run{ID: uuid.NewString(), Surface: surface, Stage: stage, Model: model, Status: types.StatusRunning, CreatedAt: now, UpdatedAt: now}
	_, err := s.db.Exec(`INSERT INTO runs(id,surface,stage,model,status,scenario_count,failed_count,output_path,error_msg,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		run.ID, run.Surface, run.Stage, run.Model, run.Status, run.ScenarioCount, run.FailedCount, run.OutputPath, run.ErrorMsg, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return run, nil
}

const runColumns = `id,surface,stage,model,status,scenario_count,failed_count,output_path,error_msg,created_at,updated_at`

func scanRun(row interface{ Scan(...any) error }) (types.Run, error) {
	var r types.Run
	err := row.Scan(&r.ID, &r.Surface, &r.Stage, &r.Model, &r.Status, &r.ScenarioCount, &r.FailedCount, &r.OutputPath, &r.ErrorMsg, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

func (s *SQLiteStore) GetRun(id string) (*types.Run, error) {
	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id=?`, id))
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// FinishRun persists the final status, counts and output path of run.
func (s *SQLiteStore) FinishRun(run *types.Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	run.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`UPDATE runs SET status=?, scenario_count=?, failed_count=?, output_path=?, error_msg=?, updated_at=? WHERE id=?`,
		run.Status, run.ScenarioCount, run.FailedCount, run.OutputPath, run.ErrorMsg, run.UpdatedAt, run.ID)
	return err
}

// ListRuns returns runs newest first; an empty surface lists all of them.
func (s *SQLiteStore) ListRuns(surface string) ([]types.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if surface != "" {
		query += ` WHERE surface=?`
		args = append(args, surface)
	}
	query += ` ORDER BY created_at DESC`
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.Run, 0)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRun(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`DELETE FROM scenario_results WHERE run_id=?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id=?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) SaveResults(runID string, results []types.ScenarioResult) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.Prepare(`INSERT INTO scenario_results(run_id,seq,scenario,status,line_count,error_msg,created_at) VALUES(?,?,?,?,?,?,?)
	ON CONFLICT(run_id,seq) DO UPDATE SET scenario=excluded.scenario,status=excluded.status,line_count=excluded.line_count,error_msg=excluded.error_msg,created_at=excluded.created_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	now := time.Now().UTC()
	for _, r := range results {
		created := r.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := stmt.Exec(runID, r.Seq, r.Scenario, r.Status, r.LineCount, r.ErrorMsg, created); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(`UPDATE runs SET updated_at=? WHERE id=?`, now, runID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetResults(runID string) ([]types.ScenarioResult, error) {
	rows, err := s.db.Query(`SELECT run_id,seq,scenario,status,line_count,error_msg,created_at FROM scenario_results WHERE run_id=? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.ScenarioResult, 0)
	for rows.Next() {
		var r types.ScenarioResult
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Scenario, &r.Status, &r.LineCount, &r.ErrorMsg, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveResponse(cache *types.ResponseCache) error {
	if cache.CreatedAt.IsZero() {
		cache.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`INSERT INTO response_cache(surface,scenario,model,status,raw_output,tokens_used,error_msg,created_at)
	VALUES(?,?,?,?,?,?,?,?)
	ON CONFLICT(surface,scenario,model) DO UPDATE SET status=excluded.status,raw_output=excluded.raw_output,tokens_used=excluded.tokens_used,error_msg=excluded.error_msg,created_at=excluded.created_at`,
		cache.Surface, cache.Scenario, cache.Model, cache.Status, cache.RawOutput, cache.TokensUsed, cache.ErrorMsg, cache.CreatedAt)
	return err
}

func (s *SQLiteStore) GetResponses(surface, model string) ([]types.ResponseCache, error) {
	rows, err := s.db.Query(`SELECT surface,scenario,model,status,raw_output,tokens_used,error_msg,created_at FROM response_cache WHERE surface=? AND model=? ORDER BY scenario ASC`, surface, model)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]types.ResponseCache, 0)
	for rows.Next() {
		var c types.ResponseCache
		if err := rows.Scan(&c.Surface, &c.Scenario, &c.Model, &c.Status, &c.RawOutput, &c.TokensUsed, &c.ErrorMsg, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ClearResponses(surface string) error {
	_, err := s.db.Exec(`DELETE FROM response_cache WHERE surface=?`, surface)
	return err
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return errors.New("store is nil")
	}
	return s.db.Close()
}
