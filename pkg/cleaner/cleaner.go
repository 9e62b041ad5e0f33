// pkg/cleaner/cleaner.go
package cleaner

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/convert"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// fieldOp is one column family's clean-one-value capability with its
// parameters already bound. Implementations are pure.
type fieldOp interface {
	family() string
	clean(field string, v model.Value) (model.Value, []model.ReportEntry, bool)
}

// boundOp ties a fieldOp to the column it operates on
type boundOp struct {
	field string
	op    fieldOp
}

// RecordCleaner transforms one raw row at a time according to a
// declarative rule set. The dispatch table is built once at
// construction; Clean is a pure function over it.
type RecordCleaner struct {
	table  []boundOp
	logger *zap.Logger
}

// NewRecordCleaner builds the dispatch table for a validated cleaning
// configuration. Families run in a fixed order (missing, dates, prices,
// ratings, categorical, geo, booleans, delivery, outliers, payment) so
// identical input always produces identical output.
func NewRecordCleaner(cfg *config.CleaningConfig) (*RecordCleaner, error) {
	logger := zap.L().Named("cleaner")

	table, err := buildDispatchTable(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build cleaning dispatch table: %w", err)
	}

	logger.Info("Built cleaning dispatch table",
		zap.String("config", cfg.Name),
		zap.Int("operations", len(table)))

	return &RecordCleaner{table: table, logger: logger}, nil
}

// Clean applies every bound operation to one raw row. It returns the
// typed record and a report of everything that was done to it; a
// drop_row violation marks the report dropped but cleaning still
// finishes so the report covers the whole row.
func (rc *RecordCleaner) Clean(raw model.RawRecord) (model.CleanedRecord, model.RowReport) {
	rec := model.CleanedRecord{
		RowIndex: raw.RowIndex,
		Columns:  raw.Columns,
		Fields:   make(map[string]model.Value, len(raw.Columns)),
	}
	for _, col := range raw.Columns {
		rec.Fields[col] = convert.ParseRaw(raw.Fields[col])
	}

	report := model.RowReport{RowIndex: raw.RowIndex}

	for _, b := range rc.table {
		v := rec.Get(b.field)
		cleaned, entries, drop := b.op.clean(b.field, v)
		rec.Set(b.field, cleaned)
		report.Entries = append(report.Entries, entries...)
		if drop {
			detail := ""
			if n := len(entries); n > 0 {
				detail = entries[n-1].Detail
			}
			report.Drop(b.op.family(), detail)
		}
	}

	return rec, report
}

// buildDispatchTable binds every configured family to its columns in
// canonical family order. Map-keyed families (fills, references) are
// sorted so the table layout never depends on map iteration order.
func buildDispatchTable(cfg *config.CleaningConfig) ([]boundOp, error) {
	var table []boundOp

	// missing
	for _, field := range sortedKeys(cfg.Missing.NumericFills) {
		table = append(table, boundOp{field, &fillOp{fill: model.FloatValue(cfg.Missing.NumericFills[field])}})
	}
	for _, field := range sortedStringKeys(cfg.Missing.CategoricalFills) {
		table = append(table, boundOp{field, &fillOp{fill: model.StringValue(cfg.Missing.CategoricalFills[field])}})
	}

	// dates
	if len(cfg.Dates.Fields) > 0 {
		op, err := newDateOp(cfg.Dates)
		if err != nil {
			return nil, err
		}
		for _, field := range cfg.Dates.Fields {
			table = append(table, boundOp{field, op})
		}
	}

	// prices
	if len(cfg.Prices.Fields) > 0 {
		op := newPriceOp(cfg.Prices)
		for _, field := range cfg.Prices.Fields {
			table = append(table, boundOp{field, op})
		}
	}

	// ratings
	if cfg.Ratings.Field != "" {
		table = append(table, boundOp{cfg.Ratings.Field, newRatingOp(cfg.Ratings)})
	}

	// categorical
	for _, field := range cfg.Categorical.Fields {
		table = append(table, boundOp{field, newCategoryOp(cfg.Categorical, field)})
	}

	// geo
	if cfg.Geo.CityField != "" {
		table = append(table, boundOp{cfg.Geo.CityField, newGeoOp(cfg.Geo.CityAliases)})
	}
	if cfg.Geo.StateField != "" {
		table = append(table, boundOp{cfg.Geo.StateField, newGeoOp(cfg.Geo.StateAliases)})
	}

	// booleans
	if len(cfg.Booleans.Fields) > 0 {
		op := newBoolOp(cfg.Booleans)
		for _, field := range cfg.Booleans.Fields {
			table = append(table, boundOp{field, op})
		}
	}

	// delivery
	if cfg.Delivery.Field != "" {
		table = append(table, boundOp{cfg.Delivery.Field, newDeliveryOp(cfg.Delivery)})
	}

	// outliers
	for _, field := range cfg.Outliers.Fields {
		table = append(table, boundOp{field, newOutlierOp(cfg.Outliers, field)})
	}

	// payment
	if cfg.Payment.Field != "" {
		table = append(table, boundOp{cfg.Payment.Field, newPaymentOp(cfg.Payment)})
	}

	return table, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
