package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/scrub/internal/audit"
	"github.com/dativo-io/scrub/internal/batch"
	"github.com/dativo-io/scrub/internal/classifier"
	"github.com/dativo-io/scrub/internal/config"
	"github.com/dativo-io/scrub/internal/redact"
)

var (
	runInput   string
	runOutput  string
	runWorkers int
	runRules   string
	runNoAudit bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Scan a dataset and write its redacted copy",
	Long: `Reads a CSV dataset of (record_id, data_json) rows, classifies each
record, and writes (record_id, redacted_data_json, is_pii) rows in the
same order. The completed run is recorded in the signed audit trail.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, span := tracer.Start(cmd.Context(), "run")
		defer span.End()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		rulesFile := cfg.RulesFile
		if runRules != "" {
			rulesFile = runRules
		}
		workers := cfg.Workers
		if runWorkers > 0 {
			workers = runWorkers
		}

		cls, err := classifier.New(classifier.WithRuleFile(rulesFile))
		if err != nil {
			return fmt.Errorf("building classifier: %w", err)
		}
		evaluator, err := redact.New(cls)
		if err != nil {
			return fmt.Errorf("building evaluator: %w", err)
		}

		runner := batch.NewRunner(evaluator, batch.WithWorkers(workers))
		summary, err := runner.Run(ctx, runInput, runOutput)
		if err != nil {
			return fmt.Errorf("batch run: %w", err)
		}

		if !runNoAudit {
			if err := recordRun(ctx, cfg, summary); err != nil {
				// The redacted output is already on disk; a failed audit
				// write should not fail the run.
				log.Warn().Err(err).Msg("Recording run audit failed")
			}
		}

		fmt.Printf("✓ Scanned %d records: %d flagged as PII, %d skipped\n",
			summary.RowsWritten, summary.PIIRecords, summary.RowsSkipped)
		fmt.Printf("  Run:    %s\n", summary.RunID)
		fmt.Printf("  Output: %s\n", summary.OutputPath)

		return nil
	},
}

func recordRun(ctx context.Context, cfg *config.Config, summary *batch.Summary) error {
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}
	cfg.WarnIfDefaultKey()

	store, err := audit.NewStore(cfg.AuditDBPath(), cfg.SigningKey)
	if err != nil {
		return fmt.Errorf("opening audit store: %w", err)
	}
	defer store.Close()

	return store.Record(ctx, audit.FromSummary(summary))
}

func init() {
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "input dataset CSV (record_id, data_json)")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "output dataset CSV")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "evaluation pool size (default from config)")
	runCmd.Flags().StringVar(&runRules, "rules", "", "field rule override file")
	runCmd.Flags().BoolVar(&runNoAudit, "no-audit", false, "skip recording the run in the audit trail")
	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(runCmd)
}
