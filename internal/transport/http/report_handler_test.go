package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apierrors "ledgerage/internal/errors"
	"ledgerage/internal/ingest"
	"ledgerage/internal/services"
	"ledgerage/internal/store"
)

// mockReportService implements ReportServiceInterface with function fields so
// each test overrides only what it exercises.
type mockReportService struct {
	processFile   func(ctx context.Context, jobID, filename, sourcePath string) (*store.Job, error)
	jobStatus     func(ctx context.Context, jobID string) (*store.Job, error)
	listJobs      func(ctx context.Context, page, perPage int) ([]store.Job, int, error)
	preview       func(ctx context.Context, jobID string) (*services.Preview, error)
	accountDetail func(ctx context.Context, jobID, account string, page, perPage int) (*services.AccountDetail, error)
	downloadInfo  func(ctx context.Context, jobID string) (string, string, error)
}

func (m *mockReportService) ProcessFile(ctx context.Context, jobID, filename, sourcePath string) (*store.Job, error) {
	return m.processFile(ctx, jobID, filename, sourcePath)
}

func (m *mockReportService) JobStatus(ctx context.Context, jobID string) (*store.Job, error) {
	return m.jobStatus(ctx, jobID)
}

func (m *mockReportService) ListJobs(ctx context.Context, page, perPage int) ([]store.Job, int, error) {
	return m.listJobs(ctx, page, perPage)
}

func (m *mockReportService) Preview(ctx context.Context, jobID string) (*services.Preview, error) {
	return m.preview(ctx, jobID)
}

func (m *mockReportService) AccountDetail(ctx context.Context, jobID, account string, page, perPage int) (*services.AccountDetail, error) {
	return m.accountDetail(ctx, jobID, account, page, perPage)
}

func (m *mockReportService) DownloadInfo(ctx context.Context, jobID string) (string, string, error) {
	return m.downloadInfo(ctx, jobID)
}

const testJobID = "c2e9d6e0-0000-4000-8000-000000000001"

func newTestHandler(t *testing.T, svc ReportServiceInterface) *ReportHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewReportHandler(svc, logger, apierrors.NewErrorHandler(logger), t.TempDir(), 1<<20)
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestUpload_Success(t *testing.T) {
	var gotFilename, gotSource string
	svc := &mockReportService{
		processFile: func(_ context.Context, jobID, filename, sourcePath string) (*store.Job, error) {
			gotFilename = filename
			gotSource = sourcePath
			return &store.Job{ID: jobID, Status: store.JobCompleted}, nil
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "export.xlsx", []byte("payload")))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "export.xlsx", gotFilename)
	assert.Equal(t, string(store.JobCompleted), body["status"])
	assert.NotEmpty(t, body["job_id"])

	// The upload must have been persisted before processing.
	data, err := os.ReadFile(gotSource)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.Equal(t, h.uploadsDir, filepath.Dir(gotSource))
}

func TestUpload_RejectsExtension(t *testing.T) {
	h := newTestHandler(t, &mockReportService{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "export.csv", []byte("a,b")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
}

func TestUpload_MissingFilePart(t *testing.T) {
	h := newTestHandler(t, &mockReportService{})

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_MissingColumnsBecomes400(t *testing.T) {
	svc := &mockReportService{
		processFile: func(_ context.Context, jobID, _, _ string) (*store.Job, error) {
			return &store.Job{ID: jobID, Status: store.JobFailed},
				&ingest.MissingColumnsError{Columns: []string{"Account", "Document Date"}}
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "export.xls", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "MISSING_COLUMNS", body["error_code"])
	details, ok := body["details"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, details["job_id"])
}

func TestUpload_EmptyAfterCleaningBecomes422(t *testing.T) {
	svc := &mockReportService{
		processFile: func(_ context.Context, jobID, _, _ string) (*store.Job, error) {
			return &store.Job{ID: jobID, Status: store.JobFailed}, services.ErrEmptyAfterCleaning
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, uploadRequest(t, "export.xls", []byte("x")))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "EMPTY_AFTER_CLEANING", decodeBody(t, rec)["error_code"])
}

func TestJobStatus(t *testing.T) {
	now := time.Date(2020, 7, 1, 12, 0, 0, 0, time.UTC)
	svc := &mockReportService{
		jobStatus: func(_ context.Context, jobID string) (*store.Job, error) {
			return &store.Job{ID: jobID, Status: store.JobProcessing, UploadDate: now}, nil
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/"+testJobID+"/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, testJobID, body["job_id"])
	assert.Equal(t, string(store.JobProcessing), body["status"])
}

func TestJobStatus_NotFound(t *testing.T) {
	svc := &mockReportService{
		jobStatus: func(_ context.Context, _ string) (*store.Job, error) {
			return nil, services.ErrJobNotFound
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/"+testJobID+"/status", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "JOB_NOT_FOUND", decodeBody(t, rec)["error_code"])
}

func TestJobCtx_RejectsMalformedID(t *testing.T) {
	h := newTestHandler(t, &mockReportService{})

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/not-a-uuid/status", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_FAILED", decodeBody(t, rec)["error_code"])
}

func TestListJobs_Pagination(t *testing.T) {
	var gotPage, gotPerPage int
	svc := &mockReportService{
		listJobs: func(_ context.Context, page, perPage int) ([]store.Job, int, error) {
			gotPage, gotPerPage = page, perPage
			return []store.Job{{ID: testJobID, Status: store.JobCompleted}}, 11, nil
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?page=2&per_page=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, gotPage)
	assert.Equal(t, 5, gotPerPage)

	body := decodeBody(t, rec)
	pg, ok := body["pagination"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(11), pg["total"])
	assert.Equal(t, float64(3), pg["pages"])
}

func TestListJobs_InvalidPageFallsBack(t *testing.T) {
	var gotPage int
	svc := &mockReportService{
		listJobs: func(_ context.Context, page, perPage int) ([]store.Job, int, error) {
			gotPage = page
			return nil, 0, nil
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/jobs?page=zero", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, gotPage)
}

func TestPreview_NotCompleted(t *testing.T) {
	svc := &mockReportService{
		preview: func(_ context.Context, _ string) (*services.Preview, error) {
			return nil, services.ErrJobNotCompleted
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/"+testJobID+"/preview", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "JOB_NOT_COMPLETED", decodeBody(t, rec)["error_code"])
}

func TestAccountDetail(t *testing.T) {
	svc := &mockReportService{
		accountDetail: func(_ context.Context, _, account string, page, perPage int) (*services.AccountDetail, error) {
			return &services.AccountDetail{Account: account, Total: 2}, nil
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/"+testJobID+"/account/63010001", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "63010001", decodeBody(t, rec)["account"])
}

func TestDownload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, os.WriteFile(path, []byte("workbook-bytes"), 0o644))

	svc := &mockReportService{
		downloadInfo: func(_ context.Context, _ string) (string, string, error) {
			return path, "Report_export.xlsx", nil
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/"+testJobID+"/download", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "workbook-bytes", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="Report_export.xlsx"`)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
}

func TestDownload_MissingOutput(t *testing.T) {
	svc := &mockReportService{
		downloadInfo: func(_ context.Context, _ string) (string, string, error) {
			return "", "", services.ErrOutputMissing
		},
	}
	h := newTestHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job/"+testJobID+"/download", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
