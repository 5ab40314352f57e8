// Command reportgen runs the report pipeline once over a ledger export and
// writes the finished workbook.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"

	"ledgerage/internal/config"
	"ledgerage/internal/infrastructure"
	"ledgerage/internal/services"
)

func main() {
	in := flag.String("in", "export.xls", "path to the ledger export (.xls or .xlsx)")
	out := flag.String("out", "Final_Report.xlsx", "path of the report workbook to write")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := infrastructure.NewLogger(cfg.Logging)

	// Batch mode needs neither the job store nor metrics scraping.
	svc := services.NewReportService(cfg, nil, logger, services.NewMetrics(nil))

	logger.Info("starting report generation",
		slog.String("input", *in),
		slog.String("output", *out))

	if err := svc.GenerateReport(context.Background(), *in, *out); err != nil {
		if errors.Is(err, services.ErrEmptyAfterCleaning) {
			logger.Error("no valid rows remained after cleaning", "input", *in)
		} else {
			logger.Error("report generation failed", "error", err)
		}
		os.Exit(1)
	}
	logger.Info("report saved", slog.String("output", *out))
}
