// Package report renders the summary and per-account partitions into a styled
// workbook with live ageing and totals formulas.
package report

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"ledgerage/pkg/contracts/domain"
)

// SummarySheetName is the fixed name of the summary sheet. Account sheets are
// named after the account identifier.
const SummarySheetName = "Summary"

// summaryStartRow is the header row of the summary table. Rows 1-3 are left
// blank for the title and the generation-date stamp.
const summaryStartRow = 4

// reportTitle is written merged across the summary columns.
const reportTitle = "Document Ageing Report"

const headerFillColor = "B7DEE8"

// ComposeError indicates the workbook could not be written or styled. A
// partial file left behind must not be treated as valid output.
type ComposeError struct {
	Path string
	Err  error
}

func (e *ComposeError) Error() string {
	return fmt.Sprintf("compose report %s: %v", e.Path, e.Err)
}

func (e *ComposeError) Unwrap() error {
	return e.Err
}

// Composer writes report workbooks. The zero value is not usable; create one
// with NewComposer.
type Composer struct {
	logger *slog.Logger
	now    func() time.Time
}

// NewComposer creates a Composer that logs with the given logger.
func NewComposer(logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		logger: logger.With(slog.String("component", "composer")),
		now:    time.Now,
	}
}

var summaryColumns = []string{
	domain.ColumnCompany,
	domain.ColumnAccount,
	domain.ColumnDocumentCurrency,
	domain.ColumnAmountDoc,
	domain.ColumnLocalCurrency,
	domain.ColumnAmountLocal,
}

var accountColumns = []string{
	domain.ColumnCompany,
	domain.ColumnAccount,
	domain.ColumnDocumentDate,
	domain.ColumnDocumentCurrency,
	domain.ColumnLocalCurrency,
	domain.ColumnAmountDoc,
	domain.ColumnAmountLocal,
}

// Column positions within accountColumns, 1-based.
const (
	accountDateCol   = 3
	accountAmtDocCol = 6
	accountAmtLocCol = 7
	accountAgeingCol = 8
)

// Compose writes the full report workbook to path, overwriting any existing
// file. The write happens in two passes: raw tabular data first, then a
// styling pass that sizes columns and places formulas, since both need the
// data cells to already exist.
func (c *Composer) Compose(summary *domain.SummaryTable, partitions *domain.Partitions, path string) error {
	if err := c.writeData(summary, partitions, path); err != nil {
		return &ComposeError{Path: path, Err: err}
	}
	if err := c.applyStyling(summary, partitions, path); err != nil {
		return &ComposeError{Path: path, Err: err}
	}
	c.logger.Info("report written",
		slog.String("path", path),
		slog.Int("accounts", len(partitions.Accounts)))
	return nil
}

// writeData is the first pass: plain tabular content, no presentation.
func (c *Composer) writeData(summary *domain.SummaryTable, partitions *domain.Partitions, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SummarySheetName); err != nil {
		return err
	}

	for i, name := range summaryColumns {
		cell, _ := excelize.CoordinatesToCellName(i+1, summaryStartRow)
		if err := f.SetCellValue(SummarySheetName, cell, name); err != nil {
			return err
		}
	}
	for r, row := range summary.Rows {
		values := []interface{}{
			row.Company, row.Account, row.DocumentCurrency,
			row.AmountDoc, row.LocalCurrency, row.AmountLocal,
		}
		if err := setRow(f, SummarySheetName, summaryStartRow+1+r, values); err != nil {
			return err
		}
	}

	for _, account := range partitions.Accounts {
		if _, err := f.NewSheet(account); err != nil {
			return err
		}
		for i, name := range accountColumns {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			if err := f.SetCellValue(account, cell, name); err != nil {
				return err
			}
		}
		for r, rec := range partitions.ByAccount[account] {
			values := []interface{}{
				rec.Company, rec.Account, rec.DocumentDate,
				rec.DocumentCurrency, rec.LocalCurrency,
				rec.AmountDoc, rec.AmountLocal,
			}
			if err := setRow(f, account, 2+r, values); err != nil {
				return err
			}
		}
	}

	return f.SaveAs(path)
}

// applyStyling is the second pass: header styles, column widths, the live
// ageing column, per-sheet totals, and the summary title and date stamp.
func (c *Composer) applyStyling(summary *domain.SummaryTable, partitions *domain.Partitions, path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	styles, err := newStyleSet(f)
	if err != nil {
		return err
	}

	for _, account := range partitions.Accounts {
		if err := c.styleAccountSheet(f, styles, account, partitions.ByAccount[account]); err != nil {
			return err
		}
	}
	if err := c.styleSummarySheet(f, styles, summary); err != nil {
		return err
	}

	return f.Save()
}

// styleSet holds the style ids shared across sheets.
type styleSet struct {
	header int
	bold   int
	title  int
	date   int
}

func newStyleSet(f *excelize.File) (*styleSet, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, err
	}
	date, err := f.NewStyle(&excelize.Style{NumFmt: 14})
	if err != nil {
		return nil, err
	}
	return &styleSet{header: header, bold: bold, title: title, date: date}, nil
}

func (c *Composer) styleAccountSheet(f *excelize.File, styles *styleSet, account string, records []domain.LedgerRecord) error {
	first, _ := excelize.CoordinatesToCellName(1, 1)
	last, _ := excelize.CoordinatesToCellName(len(accountColumns), 1)
	if err := f.SetCellStyle(account, first, last, styles.header); err != nil {
		return err
	}

	if err := sizeColumns(f, account, accountColumnWidths(records)); err != nil {
		return err
	}

	dataEnd := 1 + len(records)
	dateFirst, _ := excelize.CoordinatesToCellName(accountDateCol, 2)
	dateLast, _ := excelize.CoordinatesToCellName(accountDateCol, dataEnd)
	if len(records) > 0 {
		if err := f.SetCellStyle(account, dateFirst, dateLast, styles.date); err != nil {
			return err
		}
	}

	// Ageing is a live formula so the workbook stays correct when reopened
	// on a later date.
	ageingHeader, _ := excelize.CoordinatesToCellName(accountAgeingCol, 1)
	if err := f.SetCellValue(account, ageingHeader, "Doc Ageing"); err != nil {
		return err
	}
	if err := f.SetCellStyle(account, ageingHeader, ageingHeader, styles.bold); err != nil {
		return err
	}
	for r := 2; r <= dataEnd; r++ {
		dateCell, _ := excelize.CoordinatesToCellName(accountDateCol, r)
		ageingCell, _ := excelize.CoordinatesToCellName(accountAgeingCol, r)
		if err := f.SetCellFormula(account, ageingCell, fmt.Sprintf("TODAY()-%s", dateCell)); err != nil {
			return err
		}
	}

	if len(records) == 0 {
		return nil
	}
	totalsRow := dataEnd + 1
	labelCell, _ := excelize.CoordinatesToCellName(1, totalsRow)
	if err := f.SetCellValue(account, labelCell, "Total"); err != nil {
		return err
	}
	if err := f.SetCellStyle(account, labelCell, labelCell, styles.bold); err != nil {
		return err
	}
	for _, colIdx := range []int{accountAmtDocCol, accountAmtLocCol} {
		colName, _ := excelize.ColumnNumberToName(colIdx)
		cell, _ := excelize.CoordinatesToCellName(colIdx, totalsRow)
		formula := fmt.Sprintf("SUM(%s2:%s%d)", colName, colName, dataEnd)
		if err := f.SetCellFormula(account, cell, formula); err != nil {
			return err
		}
		if err := f.SetCellStyle(account, cell, cell, styles.bold); err != nil {
			return err
		}
	}
	return nil
}

func (c *Composer) styleSummarySheet(f *excelize.File, styles *styleSet, summary *domain.SummaryTable) error {
	lastCol, _ := excelize.ColumnNumberToName(len(summaryColumns))
	if err := f.SetCellValue(SummarySheetName, "A1", reportTitle); err != nil {
		return err
	}
	if err := f.MergeCell(SummarySheetName, "A1", lastCol+"1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(SummarySheetName, "A1", "A1", styles.title); err != nil {
		return err
	}
	if err := f.SetCellValue(SummarySheetName, "B2", c.now().Format("2006-01-02")); err != nil {
		return err
	}

	headerFirst, _ := excelize.CoordinatesToCellName(1, summaryStartRow)
	headerLast, _ := excelize.CoordinatesToCellName(len(summaryColumns), summaryStartRow)
	if err := f.SetCellStyle(SummarySheetName, headerFirst, headerLast, styles.header); err != nil {
		return err
	}
	return sizeColumns(f, SummarySheetName, summaryColumnWidths(summary))
}

// setRow writes values left to right starting at column A of the given row.
func setRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func sizeColumns(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, w); err != nil {
			return err
		}
	}
	return nil
}

// accountColumnWidths sizes each column to the longest rendered value plus a
// small padding, matching what the header and data cells display.
func accountColumnWidths(records []domain.LedgerRecord) []float64 {
	widths := make([]int, len(accountColumns))
	for i, name := range accountColumns {
		widths[i] = len(name)
	}
	for _, rec := range records {
		rendered := []string{
			rec.Company,
			rec.Account,
			rec.DocumentDate.Format("02/01/2006"),
			rec.DocumentCurrency,
			rec.LocalCurrency,
			formatAmount(rec.AmountDoc),
			formatAmount(rec.AmountLocal),
		}
		for i, v := range rendered {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}
	return pad(widths)
}

func summaryColumnWidths(summary *domain.SummaryTable) []float64 {
	widths := make([]int, len(summaryColumns))
	for i, name := range summaryColumns {
		widths[i] = len(name)
	}
	for _, row := range summary.Rows {
		rendered := []string{
			row.Company,
			row.Account,
			row.DocumentCurrency,
			formatAmount(row.AmountDoc),
			row.LocalCurrency,
			formatAmount(row.AmountLocal),
		}
		for i, v := range rendered {
			if len(v) > widths[i] {
				widths[i] = len(v)
			}
		}
	}
	return pad(widths)
}

func pad(widths []int) []float64 {
	out := make([]float64, len(widths))
	for i, w := range widths {
		out[i] = float64(w + 2)
	}
	return out
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
