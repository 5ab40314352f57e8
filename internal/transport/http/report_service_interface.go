package http

import (
	"context"

	"ledgerage/internal/services"
	"ledgerage/internal/store"
)

// ReportServiceInterface defines what the handlers need from the report
// service. Kept as an interface so handler tests can substitute a mock.
type ReportServiceInterface interface {
	ProcessFile(ctx context.Context, jobID, filename, sourcePath string) (*store.Job, error)
	JobStatus(ctx context.Context, jobID string) (*store.Job, error)
	ListJobs(ctx context.Context, page, perPage int) ([]store.Job, int, error)
	Preview(ctx context.Context, jobID string) (*services.Preview, error)
	AccountDetail(ctx context.Context, jobID, account string, page, perPage int) (*services.AccountDetail, error)
	DownloadInfo(ctx context.Context, jobID string) (path, downloadName string, err error)
}
