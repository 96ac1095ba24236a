package admin

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloo-solutions/cryptoadvisor/internal/config"
	"github.com/cloo-solutions/cryptoadvisor/internal/jobs"
	"github.com/cloo-solutions/cryptoadvisor/internal/service"
)

func IngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Load documents into the knowledge base",
		Long: `Split every supported document (.pdf, .txt, .md) of the corpus into
segments, embed them and store them in the vector store. Documents whose
content did not change since the last run are skipped unless --force is set.`,
		RunE: runIngest,
	}

	cmd.Flags().String("dir", "", "Documents directory (overrides ADVISOR_DOCS_DIR)")
	cmd.Flags().String("s3-prefix", "", "Read documents from this S3 prefix instead of a directory")
	cmd.Flags().Bool("force", false, "Re-embed documents even when unchanged")
	cmd.Flags().Bool("watch", false, "Keep running and re-ingest when files in the directory change")
	cmd.Flags().Duration("debounce", jobs.DefaultDebounce, "Delay after the last file change before re-ingesting")
	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	dir, _ := cmd.Flags().GetString("dir")
	if dir == "" {
		dir = cfg.DocsDir
	}
	s3Prefix, _ := cmd.Flags().GetString("s3-prefix")
	if s3Prefix == "" {
		s3Prefix = cfg.DocsS3Prefix
	}
	force, _ := cmd.Flags().GetBool("force")
	watch, _ := cmd.Flags().GetBool("watch")
	debounce, _ := cmd.Flags().GetDuration("debounce")
	outputFormat, _ := cmd.Flags().GetString("output")

	if watch && s3Prefix != "" {
		return fmt.Errorf("--watch only works with a local directory")
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	src, err := app.DocumentSource(dir, s3Prefix)
	if err != nil {
		return err
	}
	ingestion, err := app.Ingestion(src)
	if err != nil {
		return err
	}

	start := time.Now()
	report, err := ingestion.IngestAll(ctx, service.IngestOptions{Force: force})
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}
	printReport(report, time.Since(start), outputFormat)

	if !watch {
		if len(report.Failed) > 0 {
			return fmt.Errorf("%d document(s) failed to ingest", len(report.Failed))
		}
		return nil
	}

	fmt.Printf("\nWatching %s for changes (Ctrl+C to stop)\n", dir)
	watcher := jobs.NewDirWatcher(dir, jobs.NewReingestProcessor(ingestion, logger), debounce, logger)
	return watcher.Run(ctx)
}

func printReport(report *service.IngestReport, took time.Duration, outputFormat string) {
	if outputFormat == "json" {
		failed := make([]map[string]string, len(report.Failed))
		for i, f := range report.Failed {
			failed[i] = map[string]string{"source_id": f.SourceID, "error": f.Err.Error()}
		}
		printJSON(map[string]any{
			"ingested":    report.Ingested,
			"skipped":     report.Skipped,
			"unsupported": report.Unsupported,
			"failed":      failed,
			"segments":    report.Segments,
			"duration_ms": took.Milliseconds(),
		})
		return
	}

	fmt.Printf("Ingested %d document(s), %d segment(s) in %s\n", len(report.Ingested), report.Segments, took.Round(time.Millisecond))
	for _, id := range report.Ingested {
		fmt.Printf("  + %s\n", id)
	}
	if len(report.Skipped) > 0 {
		fmt.Printf("Unchanged: %d\n", len(report.Skipped))
	}
	for _, id := range report.Unsupported {
		fmt.Printf("  ? %s (unsupported format)\n", id)
	}
	for _, f := range report.Failed {
		fmt.Printf("  ! %s: %v\n", f.SourceID, f.Err)
	}
}

