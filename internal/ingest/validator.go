package ingest

import (
	"log/slog"
	"sort"
	"time"

	"ledgerage/pkg/contracts/domain"
)

// Cleaner validates and normalizes raw ledger exports into CleanedTables.
// A Cleaner is stateless across calls and safe to reuse.
type Cleaner struct {
	logger *slog.Logger
}

// NewCleaner creates a Cleaner that logs with the given logger.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		logger: logger.With(slog.String("component", "cleaner")),
	}
}

// pendingRow is a row whose account is already canonical but whose date may
// still be unparsed.
type pendingRow struct {
	record    domain.LedgerRecord
	dateValid bool
}

// Clean validates column presence, normalizes accounts, parses day-first
// document dates, repairs whole-account date failures with the dataset-wide
// median date, and drops the rows that remain invalid. A zero-row result is
// valid; only a missing column set is an error here.
func (c *Cleaner) Clean(table *domain.RawTable, required []string) (*domain.CleanedTable, error) {
	index := make(map[string]int, len(table.Columns))
	for i, name := range table.Columns {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, name := range required {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	col := func(name string) int {
		if i, ok := index[name]; ok {
			return i
		}
		return -1
	}
	companyIdx := col(domain.ColumnCompany)
	accountIdx := col(domain.ColumnAccount)
	dateIdx := col(domain.ColumnDocumentDate)
	docCurIdx := col(domain.ColumnDocumentCurrency)
	locCurIdx := col(domain.ColumnLocalCurrency)
	amtDocIdx := col(domain.ColumnAmountDoc)
	amtLocIdx := col(domain.ColumnAmountLocal)

	var (
		pending      []pendingRow
		validDates   []time.Time
		unparsedPer  = make(map[string]int)
		totalPer     = make(map[string]int)
		droppedBlank int
	)

	for _, row := range table.Rows {
		account, ok := NormalizeAccount(cellAt(row, accountIdx))
		if !ok || account == "" || isNaNPlaceholder(account) {
			droppedBlank++
			continue
		}

		date, parsed := ParseDocumentDate(cellAt(row, dateIdx))
		record := domain.LedgerRecord{
			Company:          cellAt(row, companyIdx),
			Account:          account,
			DocumentDate:     date,
			DocumentCurrency: cellAt(row, docCurIdx),
			LocalCurrency:    cellAt(row, locCurIdx),
			AmountDoc:        parseAmount(cellAt(row, amtDocIdx)),
			AmountLocal:      parseAmount(cellAt(row, amtLocIdx)),
		}

		pending = append(pending, pendingRow{record: record, dateValid: parsed})
		totalPer[account]++
		if parsed {
			validDates = append(validDates, date)
		} else {
			unparsedPer[account]++
		}
	}

	// An account whose every row failed date parsing would vanish from the
	// ageing report entirely. Substituting the dataset-wide median date keeps
	// the account visible, which the business prefers over silence.
	repaired := make(map[string]bool)
	if len(validDates) > 0 {
		for account, bad := range unparsedPer {
			if bad == totalPer[account] {
				repaired[account] = true
			}
		}
	}
	if len(repaired) > 0 {
		median := medianDate(validDates)
		c.logger.Info("repairing accounts with no parseable dates",
			slog.Int("accounts", len(repaired)),
			slog.Time("median_date", median))
		for i := range pending {
			if !pending[i].dateValid && repaired[pending[i].record.Account] {
				pending[i].record.DocumentDate = median
				pending[i].dateValid = true
			}
		}
	}

	cleaned := &domain.CleanedTable{}
	droppedDates := 0
	for _, p := range pending {
		if !p.dateValid {
			droppedDates++
			continue
		}
		cleaned.Records = append(cleaned.Records, p.record)
	}

	c.logger.Debug("cleaning complete",
		slog.Int("input_rows", len(table.Rows)),
		slog.Int("kept_rows", len(cleaned.Records)),
		slog.Int("dropped_blank_accounts", droppedBlank),
		slog.Int("dropped_invalid_dates", droppedDates))

	return cleaned, nil
}

// medianDate returns the middle of the sorted dates; for an even count it is
// the midpoint of the two middle dates, truncated to a day.
func medianDate(dates []time.Time) time.Time {
	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	lo, hi := sorted[n/2-1], sorted[n/2]
	return truncateToDay(lo.Add(hi.Sub(lo) / 2))
}
