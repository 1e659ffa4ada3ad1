package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mpataki/mend/internal/models"
	_ "modernc.org/sqlite"
)

type Storage struct {
	db *sql.DB
}

func New(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &Storage{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		completed_at TIMESTAMP,
		project_dir TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		turns INTEGER NOT NULL DEFAULT 0,
		message TEXT
	);

	CREATE TABLE IF NOT EXISTS tool_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		turn INTEGER NOT NULL,
		tool TEXT NOT NULL,
		arguments TEXT NOT NULL,
		result TEXT NOT NULL,
		is_error INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_tool_calls_run ON tool_calls(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *Storage) CreateRun(run *models.Run) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO runs (project_dir, model, status) VALUES (?, ?, ?)`,
		run.ProjectDir, run.Model, run.Status,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Storage) GetRun(id int64) (*models.Run, error) {
	row := s.db.QueryRow(
		`SELECT id, created_at, completed_at, project_dir, model, status, turns, message
		 FROM runs WHERE id = ?`, id,
	)

	return scanRun(row.Scan)
}

func (s *Storage) UpdateRun(run *models.Run) error {
	_, err := s.db.Exec(
		`UPDATE runs SET completed_at = ?, status = ?, turns = ?, message = ? WHERE id = ?`,
		run.CompletedAt, run.Status, run.Turns, run.Message, run.ID,
	)
	return err
}

func (s *Storage) ListRuns(limit int) ([]*models.Run, error) {
	// id DESC rather than created_at: CURRENT_TIMESTAMP has second
	// resolution, so back-to-back runs would tie.
	rows, err := s.db.Query(
		`SELECT id, created_at, completed_at, project_dir, model, status, turns, message
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows.Scan)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

func scanRun(scan func(...any) error) (*models.Run, error) {
	var run models.Run
	var completedAt sql.NullTime
	var message sql.NullString

	err := scan(
		&run.ID, &run.CreatedAt, &completedAt, &run.ProjectDir,
		&run.Model, &run.Status, &run.Turns, &message,
	)
	if err != nil {
		return nil, err
	}

	if completedAt.Valid {
		run.CompletedAt = &completedAt.Time
	}
	if message.Valid {
		run.Message = message.String
	}

	return &run, nil
}

func (s *Storage) CreateToolCall(call *models.ToolCall) (int64, error) {
	result, err := s.db.Exec(
		`INSERT INTO tool_calls (run_id, turn, tool, arguments, result, is_error)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		call.RunID, call.Turn, call.Tool, call.Arguments, call.Result, call.IsError,
	)
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *Storage) ListToolCalls(runID int64) ([]*models.ToolCall, error) {
	rows, err := s.db.Query(
		`SELECT id, run_id, turn, tool, arguments, result, is_error, created_at
		 FROM tool_calls WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []*models.ToolCall
	for rows.Next() {
		var call models.ToolCall
		err := rows.Scan(
			&call.ID, &call.RunID, &call.Turn, &call.Tool,
			&call.Arguments, &call.Result, &call.IsError, &call.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		calls = append(calls, &call)
	}

	return calls, rows.Err()
}

func (s *Storage) DeleteRun(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tool_calls WHERE run_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM runs WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

// Helper to format time for display
func FormatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}
