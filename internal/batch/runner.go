// Package batch drives a full dataset scan: rows of (record_id, JSON
// payload) in, rows of (record_id, redacted payload, is_pii) out. Records
// are independent, so rows fan out to a bounded worker pool; results are
// written back in the input row order.
package batch

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	scrubotel "github.com/dativo-io/scrub/internal/otel"
	"github.com/dativo-io/scrub/internal/record"
	"github.com/dativo-io/scrub/internal/redact"
)

var tracer = scrubotel.Tracer("github.com/dativo-io/scrub/internal/batch")

// DefaultWorkers bounds the evaluation pool when no worker count is configured.
const DefaultWorkers = 4

// outputHeader is the column layout of the redacted dataset.
var outputHeader = []string{"record_id", "redacted_data_json", "is_pii"}

// Summary describes one completed batch run.
type Summary struct {
	RunID       string        `json:"run_id"`
	InputPath   string        `json:"input_path,omitempty"`
	OutputPath  string        `json:"output_path,omitempty"`
	RowsRead    int           `json:"rows_read"`
	RowsWritten int           `json:"rows_written"`
	RowsSkipped int           `json:"rows_skipped"`
	PIIRecords  int           `json:"pii_records"`
	Workers     int           `json:"workers"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// Runner evaluates datasets with a fixed worker pool.
type Runner struct {
	evaluator *redact.Evaluator
	workers   int
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the evaluation pool size. Values below 1 fall back to
// DefaultWorkers.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.workers = n
		}
	}
}

// NewRunner builds a Runner around an evaluator.
func NewRunner(e *redact.Evaluator, opts ...Option) *Runner {
	r := &Runner{evaluator: e, workers: DefaultWorkers}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes inputPath into outputPath and returns the run summary.
func (r *Runner) Run(ctx context.Context, inputPath, outputPath string) (*Summary, error) {
	in, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("opening input dataset: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("creating output dataset: %w", err)
	}

	summary, err := r.Process(ctx, in, out)
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("closing output dataset: %w", cerr)
	}
	if err != nil {
		return nil, err
	}

	summary.InputPath = inputPath
	summary.OutputPath = outputPath
	return summary, nil
}

// Process reads the input CSV, evaluates every row, and writes the
// redacted CSV. The first input column is the passthrough record id and
// the second is the JSON payload; extra columns are ignored. Rows with
// fewer than two columns are skipped. A payload that does not decode into
// a JSON object is treated as an empty record (no fields, is_pii=false).
func (r *Runner) Process(ctx context.Context, in io.Reader, out io.Writer) (*Summary, error) {
	ctx, span := tracer.Start(ctx, "batch.process")
	defer span.End()

	start := time.Now()
	summary := &Summary{
		RunID:     uuid.NewString(),
		Workers:   r.workers,
		StartedAt: start,
	}

	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading input header: %w", err)
	}
	if len(header) == 0 || !strings.HasPrefix(strings.ToLower(header[0]), "record_id") {
		return nil, fmt.Errorf("input header must start with record_id, got %q", strings.Join(header, ","))
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading input rows: %w", err)
	}
	summary.RowsRead = len(rows)

	// Fan out: each worker writes its result into the slot for its row so
	// output order matches input order regardless of completion order.
	results := make([][]string, len(rows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for i, row := range rows {
		if len(row) < 2 {
			continue
		}
		i, row := i, row
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			cols, err := r.processRow(gctx, row[0], row[1])
			if err != nil {
				return err
			}
			results[i] = cols
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	writer := csv.NewWriter(out)
	if err := writer.Write(outputHeader); err != nil {
		return nil, fmt.Errorf("writing output header: %w", err)
	}
	for _, row := range results {
		if row == nil {
			summary.RowsSkipped++
			continue
		}
		if row[2] == "true" {
			summary.PIIRecords++
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("writing output row: %w", err)
		}
		summary.RowsWritten++
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flushing output: %w", err)
	}

	summary.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("batch.run_id", summary.RunID),
		attribute.Int("batch.rows", summary.RowsWritten),
		attribute.Int("batch.pii_records", summary.PIIRecords),
	)
	log.Info().
		Str("run_id", summary.RunID).
		Int("rows", summary.RowsWritten).
		Int("skipped", summary.RowsSkipped).
		Int("pii_records", summary.PIIRecords).
		Dur("duration", summary.Duration).
		Msg("Batch run complete")

	return summary, nil
}

// processRow evaluates one dataset row into its output columns.
func (r *Runner) processRow(ctx context.Context, recordID, payload string) ([]string, error) {
	rec, err := record.Decode([]byte(payload))
	if err != nil {
		// Malformed payloads become empty records: no fields, not PII.
		log.Debug().Str("record_id", recordID).Err(err).Msg("Payload not decodable, treating as empty record")
		rec = record.New()
	}

	eval := r.evaluator.Evaluate(ctx, rec)

	redactedJSON, err := eval.Record.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding redacted record %s: %w", recordID, err)
	}

	return []string{recordID, string(redactedJSON), strconv.FormatBool(eval.IsPII)}, nil
}
