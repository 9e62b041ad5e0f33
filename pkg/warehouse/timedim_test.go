// pkg/warehouse/timedim_test.go
package warehouse

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeKey(t *testing.T) {
	assert.Equal(t, 20230315, TimeKey(time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 20231231, TimeKey(time.Date(2023, time.December, 31, 18, 45, 0, 0, time.UTC)), "time of day is ignored")
	assert.Equal(t, 20150101, TimeKey(time.Date(2015, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func TestResolveTime(t *testing.T) {
	t.Run("mid-march wednesday", func(t *testing.T) {
		row := ResolveTime(time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC), 4)

		assert.Equal(t, 20230315, row.DateKey)
		assert.Equal(t, 15, row.Day)
		assert.Equal(t, 3, row.Month)
		assert.Equal(t, "March", row.MonthName)
		assert.Equal(t, 1, row.Quarter)
		assert.Equal(t, "Q1", row.QuarterName)
		assert.Equal(t, 2023, row.Year)
		assert.Equal(t, 11, row.WeekISO)
		assert.Equal(t, "Wednesday", row.DayName)
		assert.False(t, row.IsWeekend)
		assert.Equal(t, 2022, row.FiscalYear, "march sits in the fiscal year that began the previous april")
		assert.Equal(t, 4, row.FiscalQuarter)
	})

	t.Run("first of april starts the fiscal year", func(t *testing.T) {
		row := ResolveTime(time.Date(2023, time.April, 1, 0, 0, 0, 0, time.UTC), 4)

		assert.Equal(t, 2023, row.FiscalYear)
		assert.Equal(t, 1, row.FiscalQuarter)
		assert.Equal(t, "Saturday", row.DayName)
		assert.True(t, row.IsWeekend)
	})

	t.Run("sunday in january maps to fiscal q4", func(t *testing.T) {
		row := ResolveTime(time.Date(2024, time.January, 7, 0, 0, 0, 0, time.UTC), 4)

		assert.True(t, row.IsWeekend)
		assert.Equal(t, 2023, row.FiscalYear)
		assert.Equal(t, 4, row.FiscalQuarter)
	})

	t.Run("calendar fiscal year when it starts in january", func(t *testing.T) {
		row := ResolveTime(time.Date(2023, time.November, 20, 0, 0, 0, 0, time.UTC), 1)

		assert.Equal(t, 2023, row.FiscalYear)
		assert.Equal(t, row.Quarter, row.FiscalQuarter)
	})

	t.Run("out of range start falls back to april", func(t *testing.T) {
		row := ResolveTime(time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC), 0)

		assert.Equal(t, 2022, row.FiscalYear)
		assert.Equal(t, 4, row.FiscalQuarter)
	})

	t.Run("iso week crosses the year boundary", func(t *testing.T) {
		row := ResolveTime(time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC), 4)
		assert.Equal(t, 52, row.WeekISO, "jan 1 2023 belongs to iso week 52 of 2022")
	})

	t.Run("time of day never changes the row", func(t *testing.T) {
		a := ResolveTime(time.Date(2023, time.June, 9, 0, 0, 0, 0, time.UTC), 4)
		b := ResolveTime(time.Date(2023, time.June, 9, 13, 30, 0, 0, time.UTC), 4)
		assert.Equal(t, a, b)
	})
}

func TestTimeUpsertSQL(t *testing.T) {
	query := timeUpsertSQL("analytics", 2)

	assert.True(t, strings.HasPrefix(query,
		`INSERT INTO "analytics"."time_dimension" (date_key, date, day, month, month_name, quarter, quarter_name, year, week_iso, day_name, is_weekend, fiscal_year, fiscal_quarter) VALUES `),
		"query %q", query)
	assert.Contains(t, query, "($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)")
	assert.Contains(t, query, "($14,")
	assert.Contains(t, query, "$26)")
	assert.NotContains(t, query, "$27")
	assert.Contains(t, query, " ON CONFLICT (date_key) DO UPDATE SET ")
	assert.Contains(t, query, "fiscal_quarter = EXCLUDED.fiscal_quarter")
	assert.NotContains(t, query, "date_key = EXCLUDED.date_key", "the key column is never rewritten")
}

func TestTimeRowArgsMatchColumnOrder(t *testing.T) {
	row := ResolveTime(time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC), 4)
	args := timeRowArgs(row)

	require.Len(t, args, len(timeColumns))
	assert.Equal(t, 20230315, args[0])
	assert.Equal(t, "March", args[4])
	assert.Equal(t, false, args[10])
	assert.Equal(t, 4, args[12])
}
