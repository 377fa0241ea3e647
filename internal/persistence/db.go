// Package persistence stores run summaries and traces in SQLite.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/househunt/internal/config"
	"github.com/talgya/househunt/internal/engine"
)

// timeFormat sorts lexically in time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

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
		ticks INTEGER NOT NULL,
		halt TEXT NOT NULL,
		colony_split INTEGER NOT NULL,
		final_decision_optimal INTEGER NOT NULL,
		time_to_vacate INTEGER NOT NULL,
		time_to_completion INTEGER NOT NULL,
		recruitment_acts INTEGER NOT NULL,
		home TEXT NOT NULL,
		best TEXT NOT NULL,
		experiment_yaml TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS run_sites (
		run_id TEXT NOT NULL REFERENCES runs(id),
		idx INTEGER NOT NULL,
		name TEXT NOT NULL,
		quality INTEGER NOT NULL,
		habitable INTEGER NOT NULL,
		distance INTEGER NOT NULL,
		quorum INTEGER NOT NULL,
		passive INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE TABLE IF NOT EXISTS trace (
		run_id TEXT NOT NULL REFERENCES runs(id),
		tick INTEGER NOT NULL,
		size INTEGER NOT NULL,
		threshold INTEGER NOT NULL,
		idle INTEGER NOT NULL,
		passive_json TEXT NOT NULL,
		recruiters_json TEXT NOT NULL,
		assessing_json TEXT NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Run is a stored run summary.
type Run struct {
	ID                   string              `db:"id" json:"id"`
	CreatedAt            string              `db:"created_at" json:"created_at"`
	Seed                 int64               `db:"seed" json:"seed"`
	Ticks                uint64              `db:"ticks" json:"ticks"`
	Halt                 string              `db:"halt" json:"halt"`
	ColonySplit          bool                `db:"colony_split" json:"colony_split"`
	FinalDecisionOptimal bool                `db:"final_decision_optimal" json:"final_decision_optimal"`
	TimeToVacate         uint64              `db:"time_to_vacate" json:"time_to_vacate"`
	TimeToCompletion     uint64              `db:"time_to_completion" json:"time_to_completion"`
	RecruitmentActs      int                 `db:"recruitment_acts" json:"recruitment_acts"`
	Home                 string              `db:"home" json:"home"`
	Best                 string              `db:"best" json:"best"`
	Experiment           string              `db:"experiment_yaml" json:"experiment,omitempty"`
	Sites                []engine.SiteResult `db:"-" json:"sites,omitempty"`
}

const runColumns = `id, created_at, seed, ticks, halt, colony_split, final_decision_optimal,
	time_to_vacate, time_to_completion, recruitment_acts, home, best, experiment_yaml`

// SaveRun stores a finished run with its sites and trace and returns the
// new run id.
func (db *DB) SaveRun(exp *config.Experiment, sum engine.Summary, trace []engine.TraceRow) (string, error) {
	expYAML, err := exp.Marshal()
	if err != nil {
		return "", fmt.Errorf("encode experiment: %w", err)
	}
	id := uuid.NewString()

	tx, err := db.conn.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs (`+runColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(timeFormat), sum.Seed, sum.Ticks, string(sum.Halt),
		sum.ColonySplit, sum.FinalDecisionOptimal, sum.TimeToVacate, sum.TimeToCompletion,
		sum.RecruitmentActs, sum.Home, sum.Best, string(expYAML),
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for i, s := range sum.Sites {
		_, err := tx.Exec(`INSERT INTO run_sites
			(run_id, idx, name, quality, habitable, distance, quorum, passive)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			id, i, s.Name, s.Quality, s.Habitable, s.Distance, s.Quorum, s.Passive,
		)
		if err != nil {
			return "", fmt.Errorf("insert site %s: %w", s.Name, err)
		}
	}

	if len(trace) > 0 {
		stmt, err := tx.Preparex(`INSERT INTO trace
			(run_id, tick, size, threshold, idle, passive_json, recruiters_json, assessing_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return "", err
		}
		defer stmt.Close()
		for _, row := range trace {
			passiveJSON, _ := json.Marshal(row.Passive)
			recruitersJSON, _ := json.Marshal(row.Recruits)
			assessingJSON, _ := json.Marshal(row.Assessing)
			if _, err := stmt.Exec(id, row.Tick, row.Size, row.Threshold, row.Idle,
				string(passiveJSON), string(recruitersJSON), string(assessingJSON)); err != nil {
				return "", fmt.Errorf("insert trace tick %d: %w", row.Tick, err)
			}
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES ('last_run', ?)", id); err != nil {
		return "", fmt.Errorf("save meta: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	slog.Info("run saved", "id", id, "seed", sum.Seed, "trace_rows", len(trace))
	return id, nil
}

// ListRuns returns the most recent runs, newest first, without sites.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	for i := range runs {
		runs[i].Experiment = ""
	}
	return runs, nil
}

// GetRun returns one run with its sites.
func (db *DB) GetRun(id string) (*Run, error) {
	var run Run
	err := db.conn.Get(&run, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	err = db.conn.Select(&run.Sites,
		"SELECT name, quality, habitable, distance, quorum, passive FROM run_sites WHERE run_id = ? ORDER BY idx", id)
	if err != nil {
		return nil, fmt.Errorf("get sites of run %s: %w", id, err)
	}
	return &run, nil
}

type traceRecord struct {
	Tick       uint64 `db:"tick"`
	Size       int    `db:"size"`
	Threshold  int    `db:"threshold"`
	Idle       int    `db:"idle"`
	Passive    string `db:"passive_json"`
	Recruiters string `db:"recruiters_json"`
	Assessing  string `db:"assessing_json"`
}

// RunTrace returns a run's per-tick trace in tick order.
func (db *DB) RunTrace(id string) ([]engine.TraceRow, error) {
	var exists int
	if err := db.conn.Get(&exists, "SELECT COUNT(*) FROM runs WHERE id = ?", id); err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, ErrNotFound
	}

	var records []traceRecord
	err := db.conn.Select(&records, `SELECT tick, size, threshold, idle, passive_json, recruiters_json, assessing_json
		FROM trace WHERE run_id = ? ORDER BY tick`, id)
	if err != nil {
		return nil, fmt.Errorf("get trace of run %s: %w", id, err)
	}
	rows := make([]engine.TraceRow, len(records))
	for i, r := range records {
		rows[i] = engine.TraceRow{Tick: r.Tick, Size: r.Size, Threshold: r.Threshold, Idle: r.Idle}
		if err := errors.Join(
			json.Unmarshal([]byte(r.Passive), &rows[i].Passive),
			json.Unmarshal([]byte(r.Recruiters), &rows[i].Recruits),
			json.Unmarshal([]byte(r.Assessing), &rows[i].Assessing),
		); err != nil {
			return nil, fmt.Errorf("decode trace tick %d: %w", r.Tick, err)
		}
	}
	return rows, nil
}

// CountRuns returns the number of stored runs.
func (db *DB) CountRuns() (int, error) {
	var n int
	err := db.conn.Get(&n, "SELECT COUNT(*) FROM runs")
	return n, err
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
