package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/entrylog/internal/export"
	"github.com/Tiliavir/entrylog/internal/metrics"
)

var (
	exportView        viewFlags
	exportFormat      string
	exportOut         string
	exportMetricsFile string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every entry of the current view to a file",
	Long: `export pages through the whole filtered view and writes it to
<section>-export_<timestamp>.<format> in the output directory. A rate-limited
page is retried once after a short backoff; any other failure aborts the
export without writing a file.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportView.bind(exportCmd)
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "Output format: csv, xlsx, json (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output directory (default from config)")
	exportCmd.Flags().StringVar(&exportMetricsFile, "metrics-file", "", "Write export metrics in Prometheus text format to this file")
}

func runExport(cmd *cobra.Command, args []string) error {
	snap, err := exportView.snapshot()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	formatName := exportFormat
	if formatName == "" {
		formatName = cfg.Export.Format
	}
	format, err := export.ParseFormat(formatName)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	dir := exportOut
	if dir == "" {
		dir = cfg.Export.OutputDir
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	m := metrics.NewExport()
	runner := export.NewRunner(newClient(ctx, false),
		export.WithPreferredLimit(cfg.Export.PreferredLimit),
		export.WithPageLimit(cfg.Export.PageLimit),
		export.WithDelay(cfg.Export.PageDelay),
		export.WithBackoff(cfg.Export.RateLimitBackoff),
		export.WithLogger(logger),
		export.WithMetrics(m),
	)

	start := time.Now()
	result, err := runner.Collect(ctx, snap)
	writeMetrics(m)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Export failed:", err)
		os.Exit(1)
	}

	path, err := export.Save(dir, snap, format, result.Rows, time.Now())
	if err != nil {
		fmt.Fprintln(os.Stderr, "Saving export:", err)
		os.Exit(2)
	}

	fmt.Printf("Exported %d entries from %d page(s) to %s in %s",
		len(result.Rows), result.Pages, path, formatElapsed(int64(time.Since(start).Seconds())))
	if result.Retries > 0 {
		fmt.Printf(" (%d rate-limit retries)", result.Retries)
	}
	fmt.Println()
	return nil
}

func writeMetrics(m *metrics.Export) {
	if exportMetricsFile == "" {
		return
	}
	if err := m.WriteTextfile(exportMetricsFile); err != nil {
		logger.Warn("writing export metrics", "path", exportMetricsFile, "err", err)
	}
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
