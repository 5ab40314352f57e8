package domain

import (
	"time"
)

// Default column headers of the ledger export. The names are exact and
// case-sensitive, including the "Comapany" spelling the export ships with.
const (
	ColumnCompany          = "Comapany"
	ColumnAccount          = "Account"
	ColumnDocumentDate     = "Document Date"
	ColumnDocumentCurrency = "Document currency"
	ColumnLocalCurrency    = "Local Currency"
	ColumnAmountDoc        = "Amount in doc. curr."
	ColumnAmountLocal      = "Amount in local currency"
	ColumnEntryDate        = "Entry Date"
)

// RequiredColumns returns the ordered column set every ledger export must
// carry. Additional columns (such as Entry Date) are tolerated on input and
// discarded during aggregation.
func RequiredColumns() []string {
	return []string{
		ColumnCompany,
		ColumnAccount,
		ColumnDocumentDate,
		ColumnDocumentCurrency,
		ColumnLocalCurrency,
		ColumnAmountDoc,
		ColumnAmountLocal,
	}
}

// RawTable is one sheet of a ledger export as read from disk, before any
// validation. Cell values are the rendered strings of the source workbook.
type RawTable struct {
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// LedgerRecord is one accounting document line that passed validation and
// normalization: the account is a canonical string key and the document date
// is a concrete calendar day with no time component.
type LedgerRecord struct {
	Company          string    `json:"company" db:"company"`
	Account          string    `json:"account" db:"account" validate:"required"`
	DocumentDate     time.Time `json:"document_date" db:"document_date" validate:"required"`
	DocumentCurrency string    `json:"document_currency" db:"document_currency"`
	LocalCurrency    string    `json:"local_currency" db:"local_currency"`
	AmountDoc        float64   `json:"amount_doc_curr" db:"amount_doc_curr"`
	AmountLocal      float64   `json:"amount_local_curr" db:"amount_local_curr"`
}

// Ageing returns the number of whole days between the document date and now.
func (r LedgerRecord) Ageing(now time.Time) int {
	return int(now.Truncate(24*time.Hour).Sub(r.DocumentDate.Truncate(24*time.Hour)).Hours() / 24)
}

// CleanedTable holds every LedgerRecord that survived ingestion. A zero-row
// table is a valid result, distinct from an ingestion failure.
type CleanedTable struct {
	Records []LedgerRecord `json:"records"`
}

// Empty reports whether cleaning filtered out every input row.
func (t CleanedTable) Empty() bool {
	return len(t.Records) == 0
}

// SummaryRow is one aggregated row per distinct account. Descriptive fields
// come from the first record encountered for the account; the two amounts are
// exact float64 sums over the account's records.
type SummaryRow struct {
	Company          string  `json:"company" db:"company"`
	Account          string  `json:"account" db:"account" validate:"required"`
	DocumentCurrency string  `json:"document_currency" db:"document_currency"`
	AmountDoc        float64 `json:"amount_doc_curr" db:"amount_doc_curr"`
	LocalCurrency    string  `json:"local_currency" db:"local_currency"`
	AmountLocal      float64 `json:"amount_local_curr" db:"amount_local_curr"`
}

// SummaryTable is the management summary, one row per account, sorted by
// account for deterministic output.
type SummaryTable struct {
	Rows []SummaryRow `json:"rows"`
}

// Partitions maps each account to its cleaned records in input order.
// Accounts preserves first-appearance order for stable sheet layout.
type Partitions struct {
	Accounts  []string                  `json:"accounts"`
	ByAccount map[string][]LedgerRecord `json:"by_account"`
}
