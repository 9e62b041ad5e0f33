// pkg/warehouse/timedim.go
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/connector"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// DefaultFiscalYearStart is the first month of the fiscal year.
// April matches the Indian fiscal calendar used by the source data.
const DefaultFiscalYearStart = 4

// TimeKey derives the surrogate key for a calendar date (YYYYMMDD as integer).
func TimeKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// ResolveTime expands a calendar date into a full time dimension row.
// fiscalYearStart is the first month of the fiscal year (1-12); values
// outside that range fall back to DefaultFiscalYearStart.
func ResolveTime(t time.Time, fiscalYearStart int) model.TimeRow {
	if fiscalYearStart < 1 || fiscalYearStart > 12 {
		fiscalYearStart = DefaultFiscalYearStart
	}

	y, m, d := t.Date()
	date := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	_, week := date.ISOWeek()
	weekday := date.Weekday()
	quarter := (int(m)-1)/3 + 1

	fiscalYear := y
	if int(m) < fiscalYearStart {
		fiscalYear--
	}
	// Go's % can return negative values, so shift before reducing.
	fiscalQuarter := ((int(m)-fiscalYearStart+12)%12)/3 + 1

	return model.TimeRow{
		DateKey:       TimeKey(date),
		Date:          date,
		Day:           d,
		Month:         int(m),
		MonthName:     m.String(),
		Quarter:       quarter,
		QuarterName:   fmt.Sprintf("Q%d", quarter),
		Year:          y,
		WeekISO:       week,
		DayName:       weekday.String(),
		IsWeekend:     weekday == time.Saturday || weekday == time.Sunday,
		FiscalYear:    fiscalYear,
		FiscalQuarter: fiscalQuarter,
	}
}

// timeColumns is the insert column order for the time dimension.
var timeColumns = []string{
	"date_key", "date", "day", "month", "month_name",
	"quarter", "quarter_name", "year", "week_iso",
	"day_name", "is_weekend", "fiscal_year", "fiscal_quarter",
}

// timeUpsertSQL builds a multi-row upsert for the time dimension. Existing
// rows are refreshed so calendar fixes propagate on re-population.
func timeUpsertSQL(schema string, rowCount int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ",
		qualifiedTable(schema, "time_dimension"),
		strings.Join(timeColumns, ", "),
	))

	arg := 1
	for i := 0; i < rowCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range timeColumns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("$%d", arg))
			arg++
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ON CONFLICT (date_key) DO UPDATE SET ")
	for i, col := range timeColumns[1:] {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return sb.String()
}

// timeRowArgs flattens a time row into the insert argument order.
func timeRowArgs(row model.TimeRow) []interface{} {
	return []interface{}{
		row.DateKey, row.Date, row.Day, row.Month, row.MonthName,
		row.Quarter, row.QuarterName, row.Year, row.WeekISO,
		row.DayName, row.IsWeekend, row.FiscalYear, row.FiscalQuarter,
	}
}

// TimeDimensionLoader populates the time dimension for a date range
type TimeDimensionLoader struct {
	conn            connector.DatabaseConnector
	schema          string
	fiscalYearStart int
	batchSize       int
	timeout         time.Duration
	logger          *zap.Logger
}

// NewTimeDimensionLoader creates a loader for the time dimension
func NewTimeDimensionLoader(conn connector.DatabaseConnector, schema string, fiscalYearStart int) *TimeDimensionLoader {
	return &TimeDimensionLoader{
		conn:            conn,
		schema:          schema,
		fiscalYearStart: fiscalYearStart,
		batchSize:       500,
		timeout:         time.Minute * 2,
		logger:          zap.L().Named("time-dimension"),
	}
}

// WithBatchSize sets the number of calendar days written per statement
func (l *TimeDimensionLoader) WithBatchSize(size int) *TimeDimensionLoader {
	if size > 0 {
		l.batchSize = size
	}
	return l
}

// WithTimeout sets a custom timeout for populate statements
func (l *TimeDimensionLoader) WithTimeout(timeout time.Duration) *TimeDimensionLoader {
	l.timeout = timeout
	return l
}

// Populate upserts one time dimension row for every calendar day in
// [start, end] inclusive and returns the number of rows written.
func (l *TimeDimensionLoader) Populate(ctx context.Context, start, end time.Time) (int, error) {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end = time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC)
	if end.Before(start) {
		return 0, fmt.Errorf("invalid time range: %s is after %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	l.logger.Info("Populating time dimension",
		zap.String("start", start.Format("2006-01-02")),
		zap.String("end", end.Format("2006-01-02")),
		zap.Int("fiscal_year_start", l.fiscalYearStart))

	total := 0
	batch := make([]model.TimeRow, 0, l.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		args := make([]interface{}, 0, len(batch)*len(timeColumns))
		for _, row := range batch {
			args = append(args, timeRowArgs(row)...)
		}
		query := timeUpsertSQL(l.schema, len(batch))
		if _, err := l.conn.ExecWithTimeout(ctx, query, l.timeout, args...); err != nil {
			return fmt.Errorf("failed to upsert time dimension batch: %w", err)
		}
		total += len(batch)
		batch = batch[:0]
		return nil
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		batch = append(batch, ResolveTime(day, l.fiscalYearStart))
		if len(batch) >= l.batchSize {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	l.logger.Info("Time dimension populated", zap.Int("rows", total))
	return total, nil
}
