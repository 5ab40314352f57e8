// Package services orchestrates the report pipeline and job bookkeeping for
// the transport layer.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ledgerage/internal/aggregate"
	"ledgerage/internal/config"
	"ledgerage/internal/ingest"
	"ledgerage/internal/report"
	"ledgerage/internal/store"
	"ledgerage/pkg/contracts/domain"
)

// previewAccountRowLimit caps how many rows per account the preview endpoint
// returns.
const previewAccountRowLimit = 10

// ReportService runs the Validate -> Aggregate -> Compose pipeline for one
// uploaded file and records the outcome in the job store. The pipeline itself
// is a strict linear sequence; a failure at any stage halts it.
type ReportService struct {
	cfg        *config.Config
	store      *store.Store
	cleaner    *ingest.Cleaner
	summarizer *aggregate.Summarizer
	composer   *report.Composer
	logger     *slog.Logger
	metrics    *Metrics
}

// NewReportService wires the pipeline stages together.
func NewReportService(cfg *config.Config, st *store.Store, logger *slog.Logger, metrics *Metrics) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		cfg:        cfg,
		store:      st,
		cleaner:    ingest.NewCleaner(logger),
		summarizer: aggregate.NewSummarizer(logger),
		composer:   report.NewComposer(logger),
		logger:     logger.With(slog.String("component", "report_service")),
		metrics:    metrics,
	}
}

// Preview is the condensed view of a completed job for display.
type Preview struct {
	Summary      []domain.SummaryRow           `json:"summary"`
	Accounts     map[string][]store.AccountRow `json:"accounts"`
	TotalDoc     float64                       `json:"total_doc_curr"`
	TotalLocal   float64                       `json:"total_local_curr"`
	AccountCount int                           `json:"account_count"`
	TotalRecords int                           `json:"total_records"`
}

// AccountDetail is one page of a job's rows for a single account.
type AccountDetail struct {
	Account string             `json:"account"`
	Rows    []store.AccountRow `json:"data"`
	Total   int                `json:"total"`
}

// ProcessFile runs the full pipeline over the stored upload for jobID and
// records the job outcome. The returned job reflects the terminal state.
func (s *ReportService) ProcessFile(ctx context.Context, jobID, filename, sourcePath string) (*store.Job, error) {
	job, err := s.store.CreateJob(ctx, jobID, filename)
	if err != nil {
		return nil, err
	}

	outputPath := s.cfg.OutputPath(jobID)
	summary, partitions, runErr := s.run(ctx, sourcePath, outputPath)
	if runErr != nil {
		s.metrics.JobsFailed.Inc()
		if err := s.store.MarkFailed(ctx, jobID, runErr.Error()); err != nil {
			s.logger.ErrorContext(ctx, "failed to record job failure",
				slog.String("job_id", jobID), slog.String("error", err.Error()))
		}
		job.Status = store.JobFailed
		job.ErrorMessage = runErr.Error()
		return job, runErr
	}

	if err := s.store.SaveResults(ctx, jobID, summary, partitions, time.Now()); err != nil {
		s.metrics.JobsFailed.Inc()
		if markErr := s.store.MarkFailed(ctx, jobID, err.Error()); markErr != nil {
			s.logger.ErrorContext(ctx, "failed to record job failure",
				slog.String("job_id", jobID), slog.String("error", markErr.Error()))
		}
		job.Status = store.JobFailed
		job.ErrorMessage = err.Error()
		return job, err
	}

	if err := s.store.MarkCompleted(ctx, jobID, outputPath); err != nil {
		return nil, err
	}
	s.metrics.JobsProcessed.Inc()
	job.Status = store.JobCompleted
	job.OutputFile = outputPath
	return job, nil
}

// GenerateReport runs the pipeline once without job bookkeeping. Used by the
// batch command.
func (s *ReportService) GenerateReport(ctx context.Context, inputPath, outputPath string) error {
	_, _, err := s.run(ctx, inputPath, outputPath)
	return err
}

// run executes the linear pipeline. Stage entry and exit are logged here at
// the boundary; the stages themselves only return typed results.
func (s *ReportService) run(ctx context.Context, inputPath, outputPath string) (*domain.SummaryTable, *domain.Partitions, error) {
	var cleaned *domain.CleanedTable
	err := s.stage(ctx, "ingest", func() error {
		table, err := ingest.ReadWorkbook(inputPath)
		if err != nil {
			return err
		}
		cleaned, err = s.cleaner.Clean(table, s.cfg.RequiredColumns)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	if cleaned.Empty() {
		return nil, nil, ErrEmptyAfterCleaning
	}
	s.metrics.RowsCleaned.Add(float64(len(cleaned.Records)))

	var (
		summary    *domain.SummaryTable
		partitions *domain.Partitions
	)
	if err := s.stage(ctx, "aggregate", func() error {
		summary, partitions = s.summarizer.Summarize(cleaned)
		return nil
	}); err != nil {
		return nil, nil, err
	}

	if err := s.stage(ctx, "compose", func() error {
		return s.composer.Compose(summary, partitions, outputPath)
	}); err != nil {
		return nil, nil, err
	}
	return summary, partitions, nil
}

// stage wraps one pipeline stage with entry/exit logging.
func (s *ReportService) stage(ctx context.Context, name string, fn func() error) error {
	s.logger.InfoContext(ctx, "stage starting", slog.String("stage", name))
	start := time.Now()
	if err := fn(); err != nil {
		s.logger.ErrorContext(ctx, "stage failed",
			slog.String("stage", name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()))
		return err
	}
	s.logger.InfoContext(ctx, "stage finished",
		slog.String("stage", name),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// JobStatus returns one job by id.
func (s *ReportService) JobStatus(ctx context.Context, jobID string) (*store.Job, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrJobNotFound
	}
	return job, err
}

// ListJobs returns one page of jobs, newest first.
func (s *ReportService) ListJobs(ctx context.Context, page, perPage int) ([]store.Job, int, error) {
	return s.store.ListJobs(ctx, page, perPage)
}

// Preview returns the condensed results of a completed job.
func (s *ReportService) Preview(ctx context.Context, jobID string) (*Preview, error) {
	if _, err := s.completedJob(ctx, jobID); err != nil {
		return nil, err
	}

	summary, err := s.store.SummaryRows(ctx, jobID)
	if err != nil {
		return nil, err
	}
	accounts, err := s.store.Accounts(ctx, jobID)
	if err != nil {
		return nil, err
	}

	preview := &Preview{
		Summary:      summary,
		Accounts:     make(map[string][]store.AccountRow, len(accounts)),
		AccountCount: len(accounts),
	}
	for _, account := range accounts {
		rows, _, err := s.store.AccountRows(ctx, jobID, account, previewAccountRowLimit, 0)
		if err != nil {
			return nil, err
		}
		preview.Accounts[account] = rows
	}
	if preview.TotalDoc, preview.TotalLocal, err = s.store.Totals(ctx, jobID); err != nil {
		return nil, err
	}
	if preview.TotalRecords, err = s.store.CountAccountRows(ctx, jobID); err != nil {
		return nil, err
	}
	return preview, nil
}

// AccountDetail returns one page of a completed job's rows for one account.
func (s *ReportService) AccountDetail(ctx context.Context, jobID, account string, page, perPage int) (*AccountDetail, error) {
	if _, err := s.completedJob(ctx, jobID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	rows, total, err := s.store.AccountRows(ctx, jobID, account, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, ErrAccountNotFound
	}
	return &AccountDetail{Account: account, Rows: rows, Total: total}, nil
}

// DownloadInfo returns the workbook path and user-facing filename for a
// completed job.
func (s *ReportService) DownloadInfo(ctx context.Context, jobID string) (path, downloadName string, err error) {
	job, err := s.completedJob(ctx, jobID)
	if err != nil {
		return "", "", err
	}
	if job.OutputFile == "" {
		return "", "", ErrOutputMissing
	}
	if _, err := os.Stat(job.OutputFile); err != nil {
		return "", "", ErrOutputMissing
	}
	return job.OutputFile, fmt.Sprintf("Report_%s.xlsx", trimExt(job.Filename)), nil
}

func (s *ReportService) completedJob(ctx context.Context, jobID string) (*store.Job, error) {
	job, err := s.JobStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != store.JobCompleted {
		return nil, ErrJobNotCompleted
	}
	return job, nil
}

func trimExt(filename string) string {
	for i := len(filename) - 1; i >= 0; i-- {
		if filename[i] == '.' {
			return filename[:i]
		}
	}
	return filename
}
