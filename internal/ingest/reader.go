package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"ledgerage/pkg/contracts/domain"
)

// maxLegacyRows bounds how many rows are pulled from a legacy .xls sheet.
// The BIFF format caps sheets at 65536 rows anyway.
const maxLegacyRows = 65536

// ReadWorkbook loads the first sheet of a ledger export into a RawTable.
// Modern .xlsx workbooks are read with excelize, legacy .xls with the BIFF
// reader. Any open or parse failure is reported as a SourceError.
func ReadWorkbook(path string) (*domain.RawTable, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readModern(path)
	case ".xls":
		return readLegacy(path)
	default:
		return nil, &SourceError{Path: path, Err: fmt.Errorf("unsupported file extension %q", filepath.Ext(path))}
	}
}

func readModern(path string) (*domain.RawTable, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, &SourceError{Path: path, Err: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &SourceError{Path: path, Err: fmt.Errorf("workbook has no sheets")}
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, &SourceError{Path: path, Err: err}
	}
	return tableFromRows(rows), nil
}

func readLegacy(path string) (*domain.RawTable, error) {
	wb, err := xls.Open(path, "utf-8")
	if err != nil {
		return nil, &SourceError{Path: path, Err: err}
	}
	rows := wb.ReadAllCells(maxLegacyRows)
	return tableFromRows(rows), nil
}

// tableFromRows splits the first row off as the column headers. Header cells
// keep their exact text; the column-presence check is case-sensitive.
func tableFromRows(rows [][]string) *domain.RawTable {
	table := &domain.RawTable{}
	if len(rows) == 0 {
		return table
	}
	table.Columns = rows[0]
	table.Rows = rows[1:]
	return table
}

// cellAt returns the cell at idx, tolerating the ragged rows spreadsheet
// readers produce when trailing cells are empty.
func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
