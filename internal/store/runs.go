package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MeKo-Tech/sevseg/internal/aggregate"
)

// Run describes one persisted detection run.
type Run struct {
	ID          string     `json:"run_id"`
	Mode        string     `json:"mode"`
	Source      string     `json:"source"`
	DigitCount  int        `json:"digit_count"`
	State       string     `json:"state"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	ResultCount int        `json:"result_count"`
}

// BeginRun inserts a running run. An empty ID is replaced by a new UUID.
func (s *Store) BeginRun(r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.State == "" {
		r.State = "running"
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, mode, source, digit_count, state, started_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.Mode, r.Source, r.DigitCount, r.State, r.StartedAt.UnixNano(),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}

// FinishRun records the terminal state of a run.
func (s *Store) FinishRun(id, state string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := s.db.Exec(`UPDATE runs SET state = ?, error = ?, finished_at = ? WHERE run_id = ?`,
		state, msg, time.Now().UnixNano(), id)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// AddResult appends a result to a run.
func (s *Store) AddResult(runID string, seq int, r aggregate.DetectionResult) error {
	var value sql.NullInt64
	if r.Value != nil {
		value = sql.NullInt64{Int64: int64(*r.Value), Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO results (run_id, seq, timestamp, value, failed_rate)
		VALUES (?, ?, ?, ?, ?)`,
		runID, seq, r.Timestamp, value, r.FailedRate,
	)
	if err != nil {
		return fmt.Errorf("insert result %d of run %s: %w", seq, runID, err)
	}
	return nil
}

// Results returns a run's results in emission order.
func (s *Store) Results(runID string) ([]aggregate.DetectionResult, error) {
	if _, err := s.Run(runID); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(`
		SELECT timestamp, value, failed_rate FROM results
		WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	var out []aggregate.DetectionResult
	for rows.Next() {
		var (
			r     aggregate.DetectionResult
			value sql.NullInt64
		)
		if err := rows.Scan(&r.Timestamp, &value, &r.FailedRate); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if value.Valid {
			v := int(value.Int64)
			r.Value = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const runColumns = `
	r.run_id, r.mode, r.source, r.digit_count, r.state, r.error, r.started_at, r.finished_at,
	(SELECT COUNT(*) FROM results WHERE results.run_id = r.run_id)`

// Run returns one run.
func (s *Store) Run(id string) (Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs r WHERE r.run_id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return r, err
}

// Runs lists runs, newest first. limit <= 0 lists all.
func (s *Store) Runs(limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs r ORDER BY r.started_at DESC, r.rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun() (Run, error) {
	runs, err := s.Runs(1)
	if err != nil {
		return Run{}, err
	}
	if len(runs) == 0 {
		return Run{}, ErrRunNotFound
	}
	return runs[0], nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	if err := sc.Scan(&r.ID, &r.Mode, &r.Source, &r.DigitCount, &r.State, &r.Error,
		&started, &finished, &r.ResultCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	r.StartedAt = time.Unix(0, started)
	if finished.Valid {
		t := time.Unix(0, finished.Int64)
		r.FinishedAt = &t
	}
	return r, nil
}
