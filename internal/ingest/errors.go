package ingest

import (
	"fmt"
	"strings"
)

// SourceError indicates the input workbook could not be opened or parsed at
// all. It is fatal to the invocation and distinct from a missing-columns
// failure.
type SourceError struct {
	Path string
	Err  error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s unreadable: %v", e.Path, e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// MissingColumnsError reports the required columns absent from the export.
// Ingestion never produces a partial table when columns are missing.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Columns, ", "))
}
