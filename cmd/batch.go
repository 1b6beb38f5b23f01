package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/quickfit/tryon/internal/batch"
	"github.com/spf13/cobra"
)

func newBatchCmd(opts *rootOptions) *cobra.Command {
	var (
		manifestPath string
		outputDir    string
		concurrency  int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run try-ons for every job in a manifest",
		Long: `Runs a try-on for each job listed in a manifest and writes the result
images plus a report.yaml summary into the output directory.

Manifests may be YAML ({jobs: [{id, person, clothing: [...]}]}), JSONL with
one job per line, or Parquet with id, person and clothing columns. Relative
paths are resolved against the manifest's directory.`,
		Example: `  tryon batch --manifest jobs.yaml --output results/
  tryon batch --manifest jobs.parquet --output results/ --concurrency 4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			jobs, err := batch.NewLoader(manifestPath).Load()
			if err != nil {
				return fmt.Errorf("failed to load manifest: %w", err)
			}
			slog.Info("Manifest loaded", "jobs", len(jobs))

			service, err := newService(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			outcomes, runErr := batch.NewRunner(service, outputDir, concurrency).Run(cmd.Context(), jobs)

			report := batch.Report{
				Config: batch.ReportConfig{
					Model:       cfg.GeminiModel,
					Manifest:    manifestPath,
					Concurrency: concurrency,
					Timestamp:   time.Now().Format("2006-01-02_15-04-05"),
				},
				Summary:  batch.Summarize(outcomes),
				Outcomes: outcomes,
			}
			reportPath, err := batch.SaveReport(outputDir, report)
			if err != nil {
				return err
			}

			fmt.Printf("\nProcessed %d jobs: %d succeeded, %d fallbacks, %d failed\n",
				report.Summary.Total, report.Summary.Succeeded, report.Summary.Fallbacks, report.Summary.Failed)
			fmt.Printf("Report saved to: %s\n", reportPath)

			return runErr
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "Path to the job manifest (.yaml, .jsonl or .parquet)")
	cmd.Flags().StringVarP(&outputDir, "output", "o", "tryon-results", "Directory for result images and report")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 2, "Number of concurrent try-ons")
	_ = cmd.MarkFlagRequired("manifest")

	return cmd
}
