// Package persistence provides SQLite-based storage of run results: the run
// row itself, the per-step series, the final agent snapshot, and events.
package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/uprising/internal/agents"
	"github.com/talgya/uprising/internal/config"
	"github.com/talgya/uprising/internal/engine"
)

// DB wraps a SQLite connection for run storage.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		seed INTEGER NOT NULL,
		params_json TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS series (
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		quiescent INTEGER NOT NULL,
		active INTEGER NOT NULL,
		jailed INTEGER NOT NULL,
		employed INTEGER NOT NULL,
		PRIMARY KEY (run_id, step)
	);

	CREATE TABLE IF NOT EXISTS agents (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		x INTEGER,
		y INTEGER,
		behavior TEXT,
		hardship REAL NOT NULL,
		risk_aversion REAL NOT NULL,
		threshold REAL NOT NULL,
		susceptible INTEGER NOT NULL,
		employed INTEGER NOT NULL,
		jail_term INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		step INTEGER NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_series_run ON series(run_id);
	CREATE INDEX IF NOT EXISTS idx_events_run_step ON events(run_id, step);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun inserts a run row and returns its generated identifier.
func (db *DB) CreateRun(cfg config.Config, seed int64) (string, error) {
	params, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	_, err = db.conn.Exec(
		`INSERT INTO runs (id, created_at, seed, params_json) VALUES (?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), seed, string(params),
	)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}
	return id, nil
}

// SaveSeries writes the full step series for a run (replace on re-save).
func (db *DB) SaveSeries(runID string, series []engine.StepStats) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM series WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.Preparex(
		`INSERT INTO series (run_id, step, quiescent, active, jailed, employed)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range series {
		if _, err := stmt.Exec(runID, row.Step, row.Quiescent, row.Active, row.Jailed, row.Employed); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveAgents writes the agent snapshot for a run (replace on re-save).
func (db *DB) SaveAgents(runID string, list []agents.Agent) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM agents WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.Preparex(
		`INSERT INTO agents (run_id, id, kind, x, y, behavior,
		 hardship, risk_aversion, threshold, susceptible, employed, jail_term)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range list {
		var x, y *int
		if a.Position != nil {
			x, y = &a.Position.X, &a.Position.Y
		}
		var behavior *string
		if a.Kind == agents.KindCitizen {
			b := a.Behavior.String()
			behavior = &b
		}
		_, err := stmt.Exec(runID, a.ID, a.Kind.String(), x, y, behavior,
			a.Hardship, a.RiskAversion, a.Threshold, a.Susceptible, a.Employed, a.JailTerm)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveEvents writes the event log for a run (replace on re-save).
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM events WHERE run_id = ?`, runID); err != nil {
		return err
	}
	stmt, err := tx.Preparex(
		`INSERT INTO events (run_id, step, category, description) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.Exec(runID, e.Step, e.Category, e.Description); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveRun stores the run's full observable output in one pass.
func (db *DB) SaveRun(runID string, sim *engine.Simulation) error {
	if err := db.SaveSeries(runID, sim.Series()); err != nil {
		return fmt.Errorf("save series: %w", err)
	}
	if err := db.SaveAgents(runID, sim.AgentRecords()); err != nil {
		return fmt.Errorf("save agents: %w", err)
	}
	if err := db.SaveEvents(runID, sim.Events()); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	return nil
}

// LoadSeries reads the per-step series of a run, ordered by step.
func (db *DB) LoadSeries(runID string) ([]engine.StepStats, error) {
	rows, err := db.conn.Queryx(
		`SELECT step, quiescent, active, jailed, employed
		 FROM series WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.StepStats
	for rows.Next() {
		var st engine.StepStats
		if err := rows.Scan(&st.Step, &st.Quiescent, &st.Active, &st.Jailed, &st.Employed); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// RunInfo summarizes a stored run.
type RunInfo struct {
	ID        string `db:"id" json:"id"`
	CreatedAt string `db:"created_at" json:"created_at"`
	Seed      int64  `db:"seed" json:"seed"`
	Steps     int    `db:"steps" json:"steps"`
}

// ListRuns returns stored runs, newest first.
func (db *DB) ListRuns() ([]RunInfo, error) {
	var out []RunInfo
	err := db.conn.Select(&out,
		`SELECT r.id, r.created_at, r.seed,
		        COALESCE(MAX(s.step), 0) AS steps
		 FROM runs r LEFT JOIN series s ON s.run_id = r.id
		 GROUP BY r.id ORDER BY r.created_at DESC`)
	return out, err
}
