package ingest

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// NormalizeAccount converts a raw account cell into its canonical string key.
// Accounts arrive numerically typed from spreadsheets, so an integral float
// like "63010001.0" must become "63010001" with no decimal point and no
// exponent. Anything else is returned with surrounding whitespace trimmed.
// The second return is false when the cell is empty or whitespace only.
func NormalizeAccount(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", false
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f) {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return trimmed, true
}

// isNaNPlaceholder reports whether a normalized account value is the textual
// residue of a failed numeric parse rather than a real identifier.
func isNaNPlaceholder(account string) bool {
	return strings.EqualFold(account, "nan")
}

// dayFirstLayouts are tried in order when parsing document dates. The export
// uses locale-ambiguous day-first dates, so day-first layouts come before the
// unambiguous ISO forms.
var dayFirstLayouts = []string{
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.06",
	"02/01/06",
	"2006-01-02",
	"2006/01/02",
	"02-Jan-2006",
	"2-Jan-2006",
	"02 Jan 2006",
	"2 January 2006",
}

// excelEpoch is day zero of the 1900 date system as Excel stores it.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// ParseDocumentDate parses a document-date cell into a calendar day. It
// accepts day-first textual dates, ISO dates, and raw Excel serial numbers.
// The returned time has no clock component.
func ParseDocumentDate(raw string) (time.Time, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return truncateToDay(t), true
		}
	}
	// Unformatted date cells surface as the raw serial number.
	if serial, err := strconv.ParseFloat(trimmed, 64); err == nil {
		if serial > 59 && serial < 300000 {
			return truncateToDay(excelEpoch.AddDate(0, 0, int(serial))), true
		}
	}
	return time.Time{}, false
}

// parseAmount reads a numeric cell, tolerating thousands separators. Cells
// that do not parse contribute zero rather than poisoning the account sums.
func parseAmount(raw string) float64 {
	cleaned := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
