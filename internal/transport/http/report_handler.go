// Package http contains the chi handlers exposing the report pipeline over
// REST.
package http

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	apierrors "ledgerage/internal/errors"
	"ledgerage/internal/ingest"
	"ledgerage/internal/report"
	"ledgerage/internal/services"
	"ledgerage/internal/store"
)

// allowedExtensions are the upload file types the pipeline can ingest.
var allowedExtensions = map[string]bool{
	".xls":  true,
	".xlsx": true,
}

// ReportHandler handles upload, job, preview and download requests.
type ReportHandler struct {
	service      ReportServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
	uploadsDir   string
	maxBytes     int64
}

// NewReportHandler creates a report handler.
func NewReportHandler(service ReportServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler, uploadsDir string, maxBytes int64) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "report_handler")),
		errorHandler: errorHandler,
		uploadsDir:   uploadsDir,
		maxBytes:     maxBytes,
	}
}

// Routes returns the report routes.
func (h *ReportHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/upload", h.Upload)
	r.Get("/jobs", h.ListJobs)

	r.Route("/job/{jobID}", func(r chi.Router) {
		r.Use(h.JobCtx)
		r.Get("/status", h.JobStatus)
		r.Get("/preview", h.Preview)
		r.Get("/download", h.Download)
		r.Get("/account/{account}", h.AccountDetail)
	})

	return r
}

// JobCtx validates the job id parameter.
func (h *ReportHandler) JobCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "jobID")
		if _, err := uuid.Parse(jobID); err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("jobID", "Job id must be a UUID"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Upload handles POST /api/upload: stores the file, runs the pipeline
// synchronously and reports the terminal job state.
func (h *ReportHandler) Upload(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errorHandler.HandleError(w, r, apierrors.ErrPayloadTooLarge)
			return
		}
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "A file part is required"))
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	if filename == "" || filename == "." {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "Filename is required"))
		return
	}
	if !allowedExtensions[strings.ToLower(filepath.Ext(filename))] {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "Only .xls and .xlsx files are allowed"))
		return
	}

	jobID := uuid.New().String()
	sourcePath := filepath.Join(h.uploadsDir, jobID+"_"+filename)
	if err := h.saveUpload(file, sourcePath); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to store upload",
			slog.String("request_id", reqID), slog.String("error", err.Error()))
		h.errorHandler.HandleError(w, r, apierrors.ErrInternalServer)
		return
	}

	h.logger.InfoContext(r.Context(), "processing upload",
		slog.String("request_id", reqID),
		slog.String("job_id", jobID),
		slog.String("filename", filename))

	job, err := h.service.ProcessFile(r.Context(), jobID, filename, sourcePath)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.pipelineError(err, jobID))
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, map[string]interface{}{
		"message": "File processed successfully",
		"job_id":  job.ID,
		"status":  job.Status,
	})
}

func (h *ReportHandler) saveUpload(file multipart.File, path string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		return err
	}
	return out.Close()
}

// pipelineError maps typed pipeline failures to API errors, carrying the job
// id so callers can inspect the failed job afterwards.
func (h *ReportHandler) pipelineError(err error, jobID string) error {
	var apiErr *apierrors.APIError

	var missingCols *ingest.MissingColumnsError
	var sourceErr *ingest.SourceError
	var composeErr *report.ComposeError
	switch {
	case errors.As(err, &missingCols):
		apiErr = apierrors.MissingColumnsError(missingCols.Columns)
	case errors.As(err, &sourceErr):
		apiErr = apierrors.SourceUnreadableError(sourceErr)
	case errors.Is(err, services.ErrEmptyAfterCleaning):
		apiErr = apierrors.EmptyAfterCleaningError()
	case errors.As(err, &composeErr):
		apiErr = apierrors.ErrReportFailed
	default:
		apiErr = apierrors.ErrInternalServer
	}

	details := map[string]interface{}{"job_id": jobID}
	if apiErr.Details != nil {
		details["details"] = apiErr.Details
	}
	return apierrors.NewWithDetails(apiErr.StatusCode, apiErr.ErrorCode, apiErr.Message, details)
}

// JobStatus handles GET /api/job/{jobID}/status.
func (h *ReportHandler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.service.JobStatus(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, h.serviceError(err))
		return
	}
	render.JSON(w, r, job)
}

// ListJobs handles GET /api/jobs with pagination.
func (h *ReportHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 10)

	jobs, total, err := h.service.ListJobs(r.Context(), page, perPage)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.serviceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"jobs":       jobs,
		"pagination": pagination(page, perPage, total),
	})
}

// Preview handles GET /api/job/{jobID}/preview.
func (h *ReportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	preview, err := h.service.Preview(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, h.serviceError(err))
		return
	}
	render.JSON(w, r, preview)
}

// AccountDetail handles GET /api/job/{jobID}/account/{account}.
func (h *ReportHandler) AccountDetail(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	if account == "" {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("account", "Account is required"))
		return
	}
	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 20)

	detail, err := h.service.AccountDetail(r.Context(), chi.URLParam(r, "jobID"), account, page, perPage)
	if err != nil {
		h.errorHandler.HandleError(w, r, h.serviceError(err))
		return
	}
	render.JSON(w, r, map[string]interface{}{
		"account":    detail.Account,
		"data":       detail.Rows,
		"pagination": pagination(page, perPage, detail.Total),
	})
}

// Download handles GET /api/job/{jobID}/download, streaming the workbook.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	path, downloadName, err := h.service.DownloadInfo(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		h.errorHandler.HandleError(w, r, h.serviceError(err))
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+downloadName+`"`)
	http.ServeFile(w, r, path)
}

// serviceError maps service sentinels to API errors.
func (h *ReportHandler) serviceError(err error) error {
	switch {
	case errors.Is(err, services.ErrJobNotFound):
		return apierrors.ErrJobNotFound
	case errors.Is(err, services.ErrJobNotCompleted):
		return apierrors.ErrJobNotCompleted
	case errors.Is(err, services.ErrOutputMissing):
		return apierrors.ErrNotFound
	case errors.Is(err, services.ErrAccountNotFound):
		return apierrors.ErrNotFound
	case errors.Is(err, store.ErrNotFound):
		return apierrors.ErrNotFound
	default:
		return err
	}
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func pagination(page, perPage, total int) map[string]int {
	pages := 0
	if perPage > 0 {
		pages = (total + perPage - 1) / perPage
	}
	return map[string]int{
		"page":     page,
		"per_page": perPage,
		"total":    total,
		"pages":    pages,
	}
}
