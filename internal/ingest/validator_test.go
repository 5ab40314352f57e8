package ingest

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerage/pkg/contracts/domain"
)

func rawExportTable() *domain.RawTable {
	return &domain.RawTable{
		Columns: append(domain.RequiredColumns(), domain.ColumnEntryDate),
		Rows: [][]string{
			{"UN0100", "63010001.0", "01.06.2020", "USD", "USD", "-1000", "-1000", "03.06.2020"},
			{"UN0100", "63010001.0", "02.06.2020", "USD", "USD", "500", "500", "04.06.2020"},
			{"XT0150", "63010012.0", "30.06.2020", "LKR", "USD", "20000", "110", "01.07.2020"},
			{"UN0150", "63010502.0", "10.06.2020", "LKR", "USD", "5000", "27", "12.06.2020"},
		},
	}
}

func TestCleaner_Clean(t *testing.T) {
	cleaner := NewCleaner(slog.Default())

	t.Run("round trip keeps all valid rows", func(t *testing.T) {
		cleaned, err := cleaner.Clean(rawExportTable(), domain.RequiredColumns())
		require.NoError(t, err)
		require.Len(t, cleaned.Records, 4)

		accounts := make([]string, 0, len(cleaned.Records))
		for _, rec := range cleaned.Records {
			accounts = append(accounts, rec.Account)
		}
		assert.Equal(t, []string{"63010001", "63010001", "63010012", "63010502"}, accounts)

		first := cleaned.Records[0]
		assert.Equal(t, "UN0100", first.Company)
		assert.True(t, time.Date(2020, time.June, 1, 0, 0, 0, 0, time.UTC).Equal(first.DocumentDate))
		assert.Equal(t, -1000.0, first.AmountDoc)
		assert.Equal(t, -1000.0, first.AmountLocal)
	})

	t.Run("missing columns fail whole ingestion", func(t *testing.T) {
		table := &domain.RawTable{
			Columns: []string{domain.ColumnCompany, domain.ColumnAccount},
			Rows:    [][]string{{"UN0100", "63010001"}},
		}

		cleaned, err := cleaner.Clean(table, domain.RequiredColumns())
		assert.Nil(t, cleaned)

		var missing *MissingColumnsError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []string{
			domain.ColumnDocumentDate,
			domain.ColumnDocumentCurrency,
			domain.ColumnLocalCurrency,
			domain.ColumnAmountDoc,
			domain.ColumnAmountLocal,
		}, missing.Columns)
	})

	t.Run("blank and nan accounts dropped", func(t *testing.T) {
		table := rawExportTable()
		table.Rows = append(table.Rows,
			[]string{"UN0100", "", "01.06.2020", "USD", "USD", "1", "1", ""},
			[]string{"UN0100", "   ", "01.06.2020", "USD", "USD", "1", "1", ""},
			[]string{"UN0100", "nan", "01.06.2020", "USD", "USD", "1", "1", ""},
		)

		cleaned, err := cleaner.Clean(table, domain.RequiredColumns())
		require.NoError(t, err)
		assert.Len(t, cleaned.Records, 4)
	})

	t.Run("account with all dates unparsed gets median", func(t *testing.T) {
		table := rawExportTable()
		table.Rows = append(table.Rows,
			[]string{"ZZ0001", "99999999.0", "??", "USD", "USD", "10", "10", ""},
			[]string{"ZZ0001", "99999999.0", "", "USD", "USD", "20", "20", ""},
		)

		cleaned, err := cleaner.Clean(table, domain.RequiredColumns())
		require.NoError(t, err)
		require.Len(t, cleaned.Records, 6)

		// Valid dates are Jun 1, 2, 30, 10; the median of the even set is the
		// midpoint of Jun 2 and Jun 10.
		median := time.Date(2020, time.June, 6, 0, 0, 0, 0, time.UTC)
		repaired := 0
		for _, rec := range cleaned.Records {
			if rec.Account == "99999999" {
				repaired++
				assert.True(t, median.Equal(rec.DocumentDate), "got %s", rec.DocumentDate)
			}
		}
		assert.Equal(t, 2, repaired)
	})

	t.Run("account with mixed dates drops only unparsed rows", func(t *testing.T) {
		table := rawExportTable()
		table.Rows = append(table.Rows,
			[]string{"UN0100", "63010001.0", "not a date", "USD", "USD", "999", "999", ""},
		)

		cleaned, err := cleaner.Clean(table, domain.RequiredColumns())
		require.NoError(t, err)
		assert.Len(t, cleaned.Records, 4)
		for _, rec := range cleaned.Records {
			assert.NotEqual(t, 999.0, rec.AmountDoc)
		}
	})

	t.Run("empty result is valid not an error", func(t *testing.T) {
		table := &domain.RawTable{
			Columns: domain.RequiredColumns(),
			Rows: [][]string{
				{"UN0100", "", "01.06.2020", "USD", "USD", "1", "1"},
			},
		}

		cleaned, err := cleaner.Clean(table, domain.RequiredColumns())
		require.NoError(t, err)
		assert.True(t, cleaned.Empty())
	})

	t.Run("no parseable dates anywhere drops everything", func(t *testing.T) {
		table := &domain.RawTable{
			Columns: domain.RequiredColumns(),
			Rows: [][]string{
				{"UN0100", "63010001.0", "??", "USD", "USD", "1", "1"},
				{"XT0150", "63010012.0", "??", "USD", "USD", "2", "2"},
			},
		}

		cleaned, err := cleaner.Clean(table, domain.RequiredColumns())
		require.NoError(t, err)
		assert.True(t, cleaned.Empty())
	})
}

func TestCleaner_Clean_Idempotent(t *testing.T) {
	cleaner := NewCleaner(slog.Default())

	first, err := cleaner.Clean(rawExportTable(), domain.RequiredColumns())
	require.NoError(t, err)
	second, err := cleaner.Clean(rawExportTable(), domain.RequiredColumns())
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
