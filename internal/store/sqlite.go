// Package store persists processing jobs and their derived summary and
// account rows in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"ledgerage/pkg/contracts/domain"
)

// ErrNotFound is returned when a job or row does not exist.
var ErrNotFound = errors.New("not found")

// JobStatus tracks a processing job through its lifecycle.
type JobStatus string

const (
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is one upload-and-process invocation.
type Job struct {
	ID           string    `json:"job_id"`
	Filename     string    `json:"filename"`
	UploadDate   time.Time `json:"upload_date"`
	Status       JobStatus `json:"status"`
	OutputFile   string    `json:"output_file,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// AccountRow is one persisted ledger line with its ageing at processing time.
type AccountRow struct {
	domain.LedgerRecord
	Ageing int `json:"doc_ageing"`
}

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id            TEXT PRIMARY KEY,
	filename      TEXT NOT NULL,
	upload_date   TIMESTAMP NOT NULL,
	status        TEXT NOT NULL,
	output_file   TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS summary_rows (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id            TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	company           TEXT NOT NULL,
	account           TEXT NOT NULL,
	document_currency TEXT NOT NULL,
	amount_doc_curr   REAL NOT NULL,
	local_currency    TEXT NOT NULL,
	amount_local_curr REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS account_rows (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id            TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
	account           TEXT NOT NULL,
	company           TEXT NOT NULL,
	document_date     TIMESTAMP NOT NULL,
	document_currency TEXT NOT NULL,
	local_currency    TEXT NOT NULL,
	amount_doc_curr   REAL NOT NULL,
	amount_local_curr REAL NOT NULL,
	doc_ageing        INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_summary_rows_job ON summary_rows(job_id);
CREATE INDEX IF NOT EXISTS idx_account_rows_job_account ON account_rows(job_id, account);
`

// Store is a SQLite-backed job store. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the SQLite database at path and applies the
// schema.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With(slog.String("component", "store")),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateJob inserts a new job in the processing state.
func (s *Store) CreateJob(ctx context.Context, id, filename string) (*Job, error) {
	job := &Job{
		ID:         id,
		Filename:   filename,
		UploadDate: time.Now().UTC(),
		Status:     JobProcessing,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, filename, upload_date, status) VALUES (?, ?, ?, ?)`,
		job.ID, job.Filename, job.UploadDate, job.Status)
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}
	return job, nil
}

// MarkCompleted flips a job to completed and records its output file.
func (s *Store) MarkCompleted(ctx context.Context, id, outputFile string) error {
	return s.updateJob(ctx, id, JobCompleted, outputFile, "")
}

// MarkFailed flips a job to failed with the given message.
func (s *Store) MarkFailed(ctx context.Context, id, message string) error {
	return s.updateJob(ctx, id, JobFailed, "", message)
}

func (s *Store) updateJob(ctx context.Context, id string, status JobStatus, outputFile, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, output_file = ?, error_message = ? WHERE id = ?`,
		status, outputFile, message, id)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetJob returns one job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	var job Job
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, upload_date, status, output_file, error_message FROM jobs WHERE id = ?`, id).
		Scan(&job.ID, &job.Filename, &job.UploadDate, &job.Status, &job.OutputFile, &job.ErrorMessage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &job, nil
}

// ListJobs returns one page of jobs, newest first, plus the total count.
func (s *Store) ListJobs(ctx context.Context, page, perPage int) ([]Job, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, upload_date, status, output_file, error_message
		 FROM jobs ORDER BY upload_date DESC LIMIT ? OFFSET ?`,
		perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var job Job
		if err := rows.Scan(&job.ID, &job.Filename, &job.UploadDate, &job.Status, &job.OutputFile, &job.ErrorMessage); err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	return jobs, total, rows.Err()
}

// SaveResults persists the derived summary and account rows for a completed
// job in one transaction. Ageing is computed once against processedAt; the
// workbook carries the live formulas.
func (s *Store) SaveResults(ctx context.Context, jobID string, summary *domain.SummaryTable, partitions *domain.Partitions, processedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save results: %w", err)
	}
	defer tx.Rollback()

	for _, row := range summary.Rows {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO summary_rows (job_id, company, account, document_currency, amount_doc_curr, local_currency, amount_local_curr)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			jobID, row.Company, row.Account, row.DocumentCurrency, row.AmountDoc, row.LocalCurrency, row.AmountLocal); err != nil {
			return fmt.Errorf("insert summary row: %w", err)
		}
	}

	for _, account := range partitions.Accounts {
		for _, rec := range partitions.ByAccount[account] {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO account_rows (job_id, account, company, document_date, document_currency, local_currency, amount_doc_curr, amount_local_curr, doc_ageing)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				jobID, rec.Account, rec.Company, rec.DocumentDate, rec.DocumentCurrency,
				rec.LocalCurrency, rec.AmountDoc, rec.AmountLocal, rec.Ageing(processedAt)); err != nil {
				return fmt.Errorf("insert account row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save results: %w", err)
	}
	s.logger.Debug("results saved",
		slog.String("job_id", jobID),
		slog.Int("summary_rows", len(summary.Rows)),
		slog.Int("accounts", len(partitions.Accounts)))
	return nil
}

// SummaryRows returns the persisted summary rows for a job, sorted by account.
func (s *Store) SummaryRows(ctx context.Context, jobID string) ([]domain.SummaryRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT company, account, document_currency, amount_doc_curr, local_currency, amount_local_curr
		 FROM summary_rows WHERE job_id = ? ORDER BY account`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query summary rows: %w", err)
	}
	defer rows.Close()

	var out []domain.SummaryRow
	for rows.Next() {
		var row domain.SummaryRow
		if err := rows.Scan(&row.Company, &row.Account, &row.DocumentCurrency, &row.AmountDoc, &row.LocalCurrency, &row.AmountLocal); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Accounts returns the distinct accounts persisted for a job.
func (s *Store) Accounts(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT account FROM account_rows WHERE job_id = ? ORDER BY account`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []string
	for rows.Next() {
		var account string
		if err := rows.Scan(&account); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// AccountRows returns one page of a job's rows for one account in insertion
// order, plus the total row count for that account.
func (s *Store) AccountRows(ctx context.Context, jobID, account string, limit, offset int) ([]AccountRow, int, error) {
	if limit < 1 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_rows WHERE job_id = ? AND account = ?`, jobID, account).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count account rows: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT company, account, document_date, document_currency, local_currency, amount_doc_curr, amount_local_curr, doc_ageing
		 FROM account_rows WHERE job_id = ? AND account = ? ORDER BY id LIMIT ? OFFSET ?`,
		jobID, account, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("query account rows: %w", err)
	}
	defer rows.Close()

	var out []AccountRow
	for rows.Next() {
		var row AccountRow
		if err := rows.Scan(&row.Company, &row.Account, &row.DocumentDate, &row.DocumentCurrency,
			&row.LocalCurrency, &row.AmountDoc, &row.AmountLocal, &row.Ageing); err != nil {
			return nil, 0, err
		}
		out = append(out, row)
	}
	return out, total, rows.Err()
}

// Totals returns the grand totals over a job's summary rows.
func (s *Store) Totals(ctx context.Context, jobID string) (docTotal, localTotal float64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_doc_curr), 0), COALESCE(SUM(amount_local_curr), 0)
		 FROM summary_rows WHERE job_id = ?`, jobID).Scan(&docTotal, &localTotal)
	if err != nil {
		return 0, 0, fmt.Errorf("query totals: %w", err)
	}
	return docTotal, localTotal, nil
}

// CountAccountRows returns the number of persisted ledger lines for a job.
func (s *Store) CountAccountRows(ctx context.Context, jobID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_rows WHERE job_id = ?`, jobID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count account rows: %w", err)
	}
	return n, nil
}
