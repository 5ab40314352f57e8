// Package aggregate turns cleaned ledger records into the management summary
// and the per-account partitions the report is rendered from.
package aggregate

import (
	"log/slog"
	"sort"

	"ledgerage/pkg/contracts/domain"
)

// Summarizer groups cleaned records by account. It holds no state between
// calls.
type Summarizer struct {
	logger *slog.Logger
}

// NewSummarizer creates a Summarizer that logs with the given logger.
func NewSummarizer(logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		logger: logger.With(slog.String("component", "summarizer")),
	}
}

// Summarize produces one SummaryRow per distinct account and the partition of
// records for each account. The grouping key is the account alone; company
// and currency fields are taken from the first record encountered for the
// account. Amount sums preserve sign so credits net against debits. Summary
// rows are sorted by account; partition rows keep input order and the account
// list keeps first-appearance order.
func (s *Summarizer) Summarize(cleaned *domain.CleanedTable) (*domain.SummaryTable, *domain.Partitions) {
	sums := make(map[string]*domain.SummaryRow)
	partitions := &domain.Partitions{
		ByAccount: make(map[string][]domain.LedgerRecord),
	}

	for _, rec := range cleaned.Records {
		row, seen := sums[rec.Account]
		if !seen {
			row = &domain.SummaryRow{
				Company:          rec.Company,
				Account:          rec.Account,
				DocumentCurrency: rec.DocumentCurrency,
				LocalCurrency:    rec.LocalCurrency,
			}
			sums[rec.Account] = row
			partitions.Accounts = append(partitions.Accounts, rec.Account)
		}
		row.AmountDoc += rec.AmountDoc
		row.AmountLocal += rec.AmountLocal
		partitions.ByAccount[rec.Account] = append(partitions.ByAccount[rec.Account], rec)
	}

	summary := &domain.SummaryTable{
		Rows: make([]domain.SummaryRow, 0, len(sums)),
	}
	for _, row := range sums {
		summary.Rows = append(summary.Rows, *row)
	}
	sort.Slice(summary.Rows, func(i, j int) bool {
		return summary.Rows[i].Account < summary.Rows[j].Account
	})

	s.logger.Debug("summarized ledger records",
		slog.Int("records", len(cleaned.Records)),
		slog.Int("accounts", len(partitions.Accounts)))

	return summary, partitions
}
