// Package audit provides an HMAC-signed audit trail for batch runs.
//
// Every completed run produces a Run record that is signed (HMAC-SHA256)
// and persisted in SQLite, so an operator can later show what was scanned,
// when, and how many records were flagged — and verify the numbers were
// not edited after the fact.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dativo-io/scrub/internal/batch"
	scrubotel "github.com/dativo-io/scrub/internal/otel"
)

var tracer = scrubotel.Tracer("github.com/dativo-io/scrub/internal/audit")

// Run is the audit record for one batch run.
type Run struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	InputPath   string    `json:"input_path"`
	OutputPath  string    `json:"output_path"`
	RowsRead    int       `json:"rows_read"`
	RowsWritten int       `json:"rows_written"`
	RowsSkipped int       `json:"rows_skipped"`
	PIIRecords  int       `json:"pii_records"`
	Workers     int       `json:"workers"`
	DurationMS  int64     `json:"duration_ms"`
	Signature   string    `json:"signature,omitempty"`
}

// FromSummary converts a batch summary into an unsigned audit record.
func FromSummary(s *batch.Summary) *Run {
	return &Run{
		ID:          s.RunID,
		StartedAt:   s.StartedAt,
		InputPath:   s.InputPath,
		OutputPath:  s.OutputPath,
		RowsRead:    s.RowsRead,
		RowsWritten: s.RowsWritten,
		RowsSkipped: s.RowsSkipped,
		PIIRecords:  s.PIIRecords,
		Workers:     s.Workers,
		DurationMS:  s.Duration.Milliseconds(),
	}
}

// Store persists signed run records in SQLite.
type Store struct {
	db     *sql.DB
	signer *Signer
}

// NewStore opens (creating if needed) the run audit database.
func NewStore(dbPath, signingKey string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening audit database: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		input_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		rows_written INTEGER NOT NULL,
		pii_records INTEGER NOT NULL,
		run_json TEXT NOT NULL,
		signature TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	if _, err := db.ExecContext(context.Background(), schema); err != nil {
		return nil, fmt.Errorf("creating audit schema: %w", err)
	}

	signer, err := NewSigner(signingKey)
	if err != nil {
		return nil, fmt.Errorf("creating signer: %w", err)
	}

	return &Store{db: db, signer: signer}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record signs a run record and persists it.
func (s *Store) Record(ctx context.Context, run *Run) error {
	ctx, span := tracer.Start(ctx, "audit.record",
		trace.WithAttributes(attribute.String("run.id", run.ID)))
	defer span.End()

	run.Signature = ""
	unsigned, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run record: %w", err)
	}

	signature, err := s.signer.Sign(unsigned)
	if err != nil {
		return fmt.Errorf("signing run record: %w", err)
	}
	run.Signature = signature

	runJSON, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling signed run record: %w", err)
	}

	query := `INSERT INTO runs (id, started_at, input_path, output_path, rows_written, pii_records, run_json, signature)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.InputPath, run.OutputPath,
		run.RowsWritten, run.PIIRecords, string(runJSON), signature,
	)
	if err != nil {
		return fmt.Errorf("storing run record: %w", err)
	}

	return nil
}

// Get retrieves a run record by id.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	ctx, span := tracer.Start(ctx, "audit.get",
		trace.WithAttributes(attribute.String("run.id", id)))
	defer span.End()

	var runJSON string
	err := s.db.QueryRowContext(ctx, `SELECT run_json FROM runs WHERE id = ?`, id).Scan(&runJSON)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run record: %w", err)
	}

	var run Run
	if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
		return nil, fmt.Errorf("unmarshaling run record: %w", err)
	}
	return &run, nil
}

// List returns run records, newest first, optionally bounded by time range
// and limit.
func (s *Store) List(ctx context.Context, from, to time.Time, limit int) ([]Run, error) {
	ctx, span := tracer.Start(ctx, "audit.list")
	defer span.End()

	query := `SELECT run_json FROM runs WHERE 1=1`
	args := []interface{}{}

	if !from.IsZero() {
		query += ` AND started_at >= ?`
		args = append(args, from)
	}
	if !to.IsZero() {
		query += ` AND started_at <= ?`
		args = append(args, to)
	}

	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying run records: %w", err)
	}
	defer rows.Close()

	var results []Run
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, fmt.Errorf("scanning run record: %w", err)
		}
		var run Run
		if err := json.Unmarshal([]byte(runJSON), &run); err != nil {
			return nil, fmt.Errorf("unmarshaling run record: %w", err)
		}
		results = append(results, run)
	}
	return results, rows.Err()
}

// Verify re-signs the stored record and checks it against the stored
// signature.
func (s *Store) Verify(ctx context.Context, id string) (bool, error) {
	run, err := s.Get(ctx, id)
	if err != nil {
		return false, err
	}

	signature := run.Signature
	run.Signature = ""
	unsigned, err := json.Marshal(run)
	if err != nil {
		return false, fmt.Errorf("marshaling run record: %w", err)
	}

	return s.signer.Verify(unsigned, signature), nil
}
