// pkg/convert/values.go
package convert

import (
	"database/sql"
	"math"
	"strconv"
	"strings"

	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// nullTokens are raw cell contents treated as an absent value
var nullTokens = []string{"", "null", "NULL", "nil", "NIL", "na", "NA", "n/a", "N/A"}

// IsNullToken reports whether a raw cell should be treated as missing
func IsNullToken(s string) bool {
	trimmed := strings.TrimSpace(s)
	for _, tok := range nullTokens {
		if trimmed == tok {
			return true
		}
	}
	return false
}

// ParseRaw converts one raw CSV cell into a starting Value: the missing
// marker for null-like content, untouched text otherwise
func ParseRaw(s string) model.Value {
	if IsNullToken(s) {
		return model.MissingValue()
	}
	return model.StringValue(s)
}

// CellOptions controls canonical serialization of a cleaned value
type CellOptions struct {
	DateLayout string // layout for date values, e.g. "2006-01-02"
	Decimals   int    // fixed decimal places for floats; -1 for shortest form
}

// DefaultCellOptions serializes ISO dates and shortest-form decimals
func DefaultCellOptions() CellOptions {
	return CellOptions{DateLayout: "2006-01-02", Decimals: -1}
}

// CSVCell serializes a cleaned value into its canonical CSV form.
// Missing values become the empty cell; booleans use the warehouse
// encoding t/f so the cleaned file loads without re-normalization.
func CSVCell(v model.Value, opts CellOptions) string {
	switch v.Kind {
	case model.KindMissing:
		return ""
	case model.KindString:
		return v.Str
	case model.KindInt:
		return strconv.FormatInt(v.Int, 10)
	case model.KindFloat:
		return strconv.FormatFloat(v.Float, 'f', opts.Decimals, 64)
	case model.KindBool:
		if v.Bool {
			return "t"
		}
		return "f"
	case model.KindDate:
		layout := opts.DateLayout
		if layout == "" {
			layout = "2006-01-02"
		}
		return v.Date.Format(layout)
	default:
		return ""
	}
}

// AsNullString coerces a cleaned value to a nullable text column
func AsNullString(v model.Value) sql.NullString {
	switch v.Kind {
	case model.KindString:
		return sql.NullString{String: v.Str, Valid: true}
	case model.KindInt:
		return sql.NullString{String: strconv.FormatInt(v.Int, 10), Valid: true}
	case model.KindFloat:
		return sql.NullString{String: strconv.FormatFloat(v.Float, 'f', -1, 64), Valid: true}
	case model.KindBool:
		return sql.NullString{String: strconv.FormatBool(v.Bool), Valid: true}
	case model.KindDate:
		return sql.NullString{String: v.Date.Format("2006-01-02"), Valid: true}
	default:
		return sql.NullString{}
	}
}

// AsNullInt64 coerces a cleaned value to a nullable integer column.
// Text is accepted when it parses as a number; fractional values round
// half away from zero.
func AsNullInt64(v model.Value) sql.NullInt64 {
	switch v.Kind {
	case model.KindInt:
		return sql.NullInt64{Int64: v.Int, Valid: true}
	case model.KindFloat:
		return sql.NullInt64{Int64: int64(math.Round(v.Float)), Valid: true}
	case model.KindBool:
		if v.Bool {
			return sql.NullInt64{Int64: 1, Valid: true}
		}
		return sql.NullInt64{Int64: 0, Valid: true}
	case model.KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return sql.NullInt64{Int64: int64(math.Round(f)), Valid: true}
		}
		return sql.NullInt64{}
	default:
		return sql.NullInt64{}
	}
}

// AsNullFloat64 coerces a cleaned value to a nullable numeric column
func AsNullFloat64(v model.Value) sql.NullFloat64 {
	switch v.Kind {
	case model.KindFloat:
		return sql.NullFloat64{Float64: v.Float, Valid: true}
	case model.KindInt:
		return sql.NullFloat64{Float64: float64(v.Int), Valid: true}
	case model.KindString:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str), 64); err == nil {
			return sql.NullFloat64{Float64: f, Valid: true}
		}
		return sql.NullFloat64{}
	default:
		return sql.NullFloat64{}
	}
}

// AsNullBool coerces a cleaned value to a nullable boolean column.
// Unrecognized text stays NULL rather than defaulting to false.
func AsNullBool(v model.Value) sql.NullBool {
	switch v.Kind {
	case model.KindBool:
		return sql.NullBool{Bool: v.Bool, Valid: true}
	case model.KindInt:
		return sql.NullBool{Bool: v.Int != 0, Valid: true}
	case model.KindString:
		switch strings.ToLower(strings.TrimSpace(v.Str)) {
		case "true", "t", "yes", "y", "1":
			return sql.NullBool{Bool: true, Valid: true}
		case "false", "f", "no", "n", "0":
			return sql.NullBool{Bool: false, Valid: true}
		}
		return sql.NullBool{}
	default:
		return sql.NullBool{}
	}
}

// AsNullTime coerces a cleaned value to a nullable date column. Only
// values the cleaner already parsed count; raw text stays NULL.
func AsNullTime(v model.Value) sql.NullTime {
	if v.Kind == model.KindDate {
		return sql.NullTime{Time: v.Date, Valid: true}
	}
	return sql.NullTime{}
}

// Round rounds a float to the given number of decimal places, half away
// from zero
func Round(f float64, decimals int) float64 {
	if decimals < 0 {
		return f
	}
	shift := math.Pow(10, float64(decimals))
	return math.Round(f*shift) / shift
}
