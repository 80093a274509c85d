package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dativo-io/scrub/internal/classifier"
	"github.com/dativo-io/scrub/internal/redact"
)

var validateFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a field rule file",
	Long:  "Parses and compiles a field rule YAML file (merged over the embedded defaults) and checks that every mask id resolves",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, span := tracer.Start(cmd.Context(), "validate")
		defer span.End()

		cls, err := classifier.New(classifier.WithRuleFile(validateFile))
		if err != nil {
			log.Error().Err(err).Str("file", validateFile).Msg("Field rule validation failed")
			fmt.Fprintf(os.Stderr, "✗ Validation failed: %s\n", validateFile)
			return fmt.Errorf("validation failed: %w", err)
		}

		// Building the evaluator verifies every referenced mask transform exists.
		if _, err := redact.New(cls); err != nil {
			fmt.Fprintf(os.Stderr, "✗ Mask resolution failed: %s\n", validateFile)
			return fmt.Errorf("mask resolution failed: %w", err)
		}

		log.Info().Str("file", validateFile).Msg("Field rules validated successfully")

		fmt.Printf("✓ Field rules valid: %s\n", validateFile)
		fmt.Printf("  Combinatorial fields: %v\n", cls.CombinatorialFields())
		fmt.Printf("  Masks: %v\n", cls.MaskIDs())

		return nil
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "field rule file to validate (default: embedded rules only)")
	rootCmd.AddCommand(validateCmd)
}
