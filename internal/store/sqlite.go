package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nvandessel/sirgraph/internal/config"
	"github.com/nvandessel/sirgraph/internal/simulation"
)

// timeFormat keeps a fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements ResultStore on a single SQLite database file.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dbPath string
}

var _ ResultStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens or creates the database at dbPath, creating its
// parent directory if needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// BeginRun records a new run, replacing any run with the same expidx.
func (s *SQLiteStore) BeginRun(ctx context.Context, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, err := prepareRun(run)
	if err != nil {
		return Run{}, err
	}
	expJSON, err := json.Marshal(run.Experiment)
	if err != nil {
		return Run{}, fmt.Errorf("marshal experiment: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE expidx = ?`, run.ExpIdx); err != nil {
		return Run{}, fmt.Errorf("failed to replace run %s: %w", run.ExpIdx, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (expidx, id, experiment, topology_kind, vertices, agents, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ExpIdx, run.ID, string(expJSON), run.Experiment.TopologyKind,
		run.Vertices, run.Agents, run.Status, run.StartedAt.Format(timeFormat))
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run %s: %w", run.ExpIdx, err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("failed to commit run %s: %w", run.ExpIdx, err)
	}
	return run, nil
}

// prepareRun fills in the generated fields of a new run.
func prepareRun(run Run) (Run, error) {
	if run.ExpIdx == "" {
		return Run{}, fmt.Errorf("run expidx is required")
	}
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.StartedAt = run.StartedAt.UTC()
	run.Status = StatusRunning
	run.Summary = nil
	return run, nil
}

// AppendSeries inserts rows in one transaction.
func (s *SQLiteStore) AppendSeries(ctx context.Context, expidx string, rows []simulation.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireRun(ctx, tx, expidx); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO series (expidx, t, s, i, r, occupancy_std) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare series insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, expidx, row.T, row.S, row.I, row.R, row.OccupancyStd); err != nil {
			return fmt.Errorf("failed to insert series row t=%d: %w", row.T, err)
		}
	}

	return tx.Commit()
}

// SaveAttraction replaces the attraction table of a run.
func (s *SQLiteStore) SaveAttraction(ctx context.Context, expidx string, rows []simulation.AttractionRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := requireRun(ctx, tx, expidx); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attraction WHERE expidx = ?`, expidx); err != nil {
		return fmt.Errorf("failed to clear attraction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO attraction (expidx, vertex, x, y, gradient) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare attraction insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, expidx, row.Vertex, row.X, row.Y, row.Gradient); err != nil {
			return fmt.Errorf("failed to insert attraction vertex %d: %w", row.Vertex, err)
		}
	}

	return tx.Commit()
}

// FinishRun stores the summary and transmission counters.
func (s *SQLiteStore) FinishRun(ctx context.Context, expidx string, summary Summary, transmissions []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if summary.FinishedAt.IsZero() {
		summary.FinishedAt = time.Now()
	}
	summary.FinishedAt = summary.FinishedAt.UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE runs SET
			status = ?, finished_at = ?, epochs = ?, stop_reason = ?,
			peak_i = ?, peak_t = ?, final_s = ?, final_i = ?, final_r = ?,
			total_transmissions = ?, elapsed_seconds = ?
		WHERE expidx = ?`,
		StatusFinished, summary.FinishedAt.Format(timeFormat), summary.Epochs, summary.StopReason,
		summary.PeakI, summary.PeakT, summary.FinalS, summary.FinalI, summary.FinalR,
		summary.TotalTransmissions, summary.ElapsedSeconds, expidx)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", expidx, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish %s: %w", expidx, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM transmissions WHERE expidx = ?`, expidx); err != nil {
		return fmt.Errorf("failed to clear transmissions: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transmissions (expidx, vertex, count) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare transmissions insert: %w", err)
	}
	defer stmt.Close()
	for v, n := range transmissions {
		if _, err := stmt.ExecContext(ctx, expidx, v, n); err != nil {
			return fmt.Errorf("failed to insert transmissions vertex %d: %w", v, err)
		}
	}

	return tx.Commit()
}

const runColumns = `expidx, id, experiment, vertices, agents, status, started_at,
	finished_at, epochs, stop_reason, peak_i, peak_t, final_s, final_i, final_r,
	total_transmissions, elapsed_seconds`

// GetRun returns a run by expidx, or ErrNotFound.
func (s *SQLiteStore) GetRun(ctx context.Context, expidx string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE expidx = ?`, expidx)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %s: %w", expidx, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs ordered by start time.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter ListFilter) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []interface{}
	if filter.TopologyKind != "" {
		query += ` AND topology_kind = ?`
		args = append(args, filter.TopologyKind)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	query += ` ORDER BY started_at, expidx`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                    Run
		expJSON, started       string
		finished, stopReason   sql.NullString
		epochs, peakI, peakT   sql.NullInt64
		finalS, finalI, finalR sql.NullInt64
		total                  sql.NullInt64
		elapsed                sql.NullFloat64
	)
	err := sc.Scan(&run.ExpIdx, &run.ID, &expJSON, &run.Vertices, &run.Agents, &run.Status, &started,
		&finished, &epochs, &stopReason, &peakI, &peakT, &finalS, &finalI, &finalR, &total, &elapsed)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Experiment = config.DefaultExperiment()
	if err := json.Unmarshal([]byte(expJSON), &run.Experiment); err != nil {
		return Run{}, fmt.Errorf("unmarshal experiment of %s: %w", run.ExpIdx, err)
	}
	if run.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return Run{}, fmt.Errorf("parse started_at of %s: %w", run.ExpIdx, err)
	}

	if finished.Valid {
		sum := &Summary{
			Epochs:             int(epochs.Int64),
			StopReason:         stopReason.String,
			PeakI:              int(peakI.Int64),
			PeakT:              int(peakT.Int64),
			FinalS:             int(finalS.Int64),
			FinalI:             int(finalI.Int64),
			FinalR:             int(finalR.Int64),
			TotalTransmissions: int(total.Int64),
			ElapsedSeconds:     elapsed.Float64,
		}
		if sum.FinishedAt, err = time.Parse(timeFormat, finished.String); err != nil {
			return Run{}, fmt.Errorf("parse finished_at of %s: %w", run.ExpIdx, err)
		}
		run.Summary = sum
	}
	return run, nil
}

// GetSeries returns the time series of a run ordered by t.
func (s *SQLiteStore) GetSeries(ctx context.Context, expidx string) ([]simulation.Row, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := requireRun(ctx, s.db, expidx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT t, s, i, r, occupancy_std FROM series WHERE expidx = ? ORDER BY t`, expidx)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []simulation.Row
	for rows.Next() {
		var row simulation.Row
		if err := rows.Scan(&row.T, &row.S, &row.I, &row.R, &row.OccupancyStd); err != nil {
			return nil, fmt.Errorf("failed to scan series row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetTransmissions returns the final per-vertex counters of a run. It is
// empty until the run finishes.
func (s *SQLiteStore) GetTransmissions(ctx context.Context, expidx string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := requireRun(ctx, s.db, expidx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT count FROM transmissions WHERE expidx = ? ORDER BY vertex`, expidx)
	if err != nil {
		return nil, fmt.Errorf("failed to query transmissions: %w", err)
	}
	defer rows.Close()

	out := []int{}
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan transmissions: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// GetAttraction returns the attraction table of a run ordered by vertex.
func (s *SQLiteStore) GetAttraction(ctx context.Context, expidx string) ([]simulation.AttractionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := requireRun(ctx, s.db, expidx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT vertex, x, y, gradient FROM attraction WHERE expidx = ? ORDER BY vertex`, expidx)
	if err != nil {
		return nil, fmt.Errorf("failed to query attraction: %w", err)
	}
	defer rows.Close()

	var out []simulation.AttractionRow
	for rows.Next() {
		var row simulation.AttractionRow
		if err := rows.Scan(&row.Vertex, &row.X, &row.Y, &row.Gradient); err != nil {
			return nil, fmt.Errorf("failed to scan attraction row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and everything attached to it.
func (s *SQLiteStore) DeleteRun(ctx context.Context, expidx string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE expidx = ?`, expidx)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", expidx, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete %s: %w", expidx, ErrNotFound)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func requireRun(ctx context.Context, q querier, expidx string) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM runs WHERE expidx = ?`, expidx).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("run %s: %w", expidx, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to look up run %s: %w", expidx, err)
	}
	return nil
}
