package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	_ "modernc.org/sqlite"
)

var ErrRunNotFound = errors.New("run not found")

// Fixed width so that text ordering in SQLite matches time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run statuses stored in the ledger.
const (
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
)

var ledgerSchema = []string{
	`create table if not exists runs (
		run_id          text primary key,
		started_at      text not null,
		finished_at     text not null,
		output_path     text not null,
		add_prefix      integer not null,
		records_written integer not null,
		status          text not null,
		error           text not null default ''
	)`,
	`create table if not exists run_inputs (
		run_id          text not null,
		position        integer not null,
		path            text not null,
		genome          text not null,
		records_read    integer not null,
		records_skipped integer not null,
		stop_trimmed    integer not null,
		overwrites      integer not null,
		primary key (run_id, position)
	)`,
	`create table if not exists skipped_records (
		run_id    text not null,
		seq       integer not null,
		genome    text not null,
		record_id text not null,
		stage     text not null,
		primary key (run_id, seq)
	)`,
}

// Ledger keeps a history of combine runs in a SQLite file.
type Ledger struct {
	db *sql.DB
}

type RunInput struct {
	Position       int
	Path           string
	Genome         string
	RecordsRead    int
	RecordsSkipped int
	StopTrimmed    int
	Overwrites     int
}

type SkippedRecord struct {
	Genome   string
	RecordID string
	Stage    string
}

type RunRecord struct {
	RunID          string
	StartedAt      time.Time
	FinishedAt     time.Time
	OutputPath     string
	AddPrefix      bool
	RecordsWritten int
	Status         string
	Error          string
	Inputs         []RunInput
	Skipped        []SkippedRecord
}

func NewRunID() string {
	return "run-" + uuid.New().String()
}

func OpenLedger(path string) (*Ledger, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	ctx := context.TODO()
	for _, stmt := range ledgerSchema {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return nil, multierr.Append(fmt.Errorf("ledger schema: %w", err), conn.Close())
		}
	}
	return &Ledger{db: conn}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// RecordRun stores a run with its inputs and skipped records in one transaction.
func (l *Ledger) RecordRun(ctx context.Context, run *RunRecord) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, rbErr)
		}
	}()

	_, err = tx.ExecContext(ctx,
		`insert into runs (run_id, started_at, finished_at, output_path, add_prefix, records_written, status, error)
		 values (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID,
		run.StartedAt.UTC().Format(timeLayout),
		run.FinishedAt.UTC().Format(timeLayout),
		run.OutputPath,
		run.AddPrefix,
		run.RecordsWritten,
		run.Status,
		run.Error,
	)
	if err != nil {
		return err
	}

	inputStmt, err := tx.PrepareContext(ctx,
		`insert into run_inputs (run_id, position, path, genome, records_read, records_skipped, stop_trimmed, overwrites)
		 values (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer inputStmt.Close()

	for _, in := range run.Inputs {
		if _, err = inputStmt.ExecContext(ctx, run.RunID, in.Position, in.Path, in.Genome,
			in.RecordsRead, in.RecordsSkipped, in.StopTrimmed, in.Overwrites); err != nil {
			return err
		}
	}

	skipStmt, err := tx.PrepareContext(ctx,
		`insert into skipped_records (run_id, seq, genome, record_id, stage) values (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer skipStmt.Close()

	for i, s := range run.Skipped {
		if _, err = skipStmt.ExecContext(ctx, run.RunID, i, s.Genome, s.RecordID, s.Stage); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetRun loads a run with its inputs and skipped records.
func (l *Ledger) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`select run_id, started_at, finished_at, output_path, add_prefix, records_written, status, error
		 from runs where run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := l.db.QueryContext(ctx,
		`select position, path, genome, records_read, records_skipped, stop_trimmed, overwrites
		 from run_inputs where run_id = ? order by position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var in RunInput
		if err := rows.Scan(&in.Position, &in.Path, &in.Genome, &in.RecordsRead,
			&in.RecordsSkipped, &in.StopTrimmed, &in.Overwrites); err != nil {
			return nil, err
		}
		run.Inputs = append(run.Inputs, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	skipRows, err := l.db.QueryContext(ctx,
		`select genome, record_id, stage from skipped_records where run_id = ? order by seq`, runID)
	if err != nil {
		return nil, err
	}
	defer skipRows.Close()

	for skipRows.Next() {
		var s SkippedRecord
		if err := skipRows.Scan(&s.Genome, &s.RecordID, &s.Stage); err != nil {
			return nil, err
		}
		run.Skipped = append(run.Skipped, s)
	}
	return run, skipRows.Err()
}

// ListRuns returns run summaries, most recent first. Inputs and skipped records are not loaded.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	stm, err := l.db.PrepareContext(ctx,
		`select run_id, started_at, finished_at, output_path, add_prefix, records_written, status, error
		 from runs order by started_at desc limit ?`)
	if err != nil {
		return nil, err
	}
	defer stm.Close()

	rows, err := stm.QueryContext(ctx, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var (
		run             RunRecord
		started, finish string
	)
	if err := row.Scan(&run.RunID, &started, &finish, &run.OutputPath, &run.AddPrefix,
		&run.RecordsWritten, &run.Status, &run.Error); err != nil {
		return nil, err
	}

	var err error
	if run.StartedAt, err = time.Parse(timeLayout, started); err != nil {
		return nil, err
	}
	if run.FinishedAt, err = time.Parse(timeLayout, finish); err != nil {
		return nil, err
	}
	return &run, nil
}
