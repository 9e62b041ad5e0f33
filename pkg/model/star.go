// pkg/model/star.go
package model

import (
	"database/sql"
	"time"
)

// TimeRow is one time_dimension row. Every field is a pure function of
// Date, so the same date always produces the same row.
type TimeRow struct {
	DateKey       int       `db:"date_key"` // YYYYMMDD integer surrogate key
	Date          time.Time `db:"date"`
	Day           int       `db:"day"`
	Month         int       `db:"month"`
	MonthName     string    `db:"month_name"`
	Quarter       int       `db:"quarter"`
	QuarterName   string    `db:"quarter_name"`
	Year          int       `db:"year"`
	WeekISO       int       `db:"week_iso"`
	DayName       string    `db:"day_name"`
	IsWeekend     bool      `db:"is_weekend"`
	FiscalYear    int       `db:"fiscal_year"`
	FiscalQuarter int       `db:"fiscal_quarter"`
}

// ProductRow is one products dimension row. Catalog loads supply the
// full shape; placeholder inserts fill only id, category and brand.
type ProductRow struct {
	ProductID     string          `db:"product_id"`
	ProductName   sql.NullString  `db:"product_name"`
	Brand         sql.NullString  `db:"brand"`
	Category      sql.NullString  `db:"category"`
	Subcategory   sql.NullString  `db:"subcategory"`
	LaunchYear    sql.NullInt64   `db:"launch_year"`
	BasePrice2015 sql.NullFloat64 `db:"base_price_2015"`
	WeightKg      sql.NullFloat64 `db:"weight_kg"`
}

// CustomerRow is one customers dimension row
type CustomerRow struct {
	CustomerID    string         `db:"customer_id"`
	City          sql.NullString `db:"city"`
	State         sql.NullString `db:"state"`
	IsPrimeMember sql.NullBool   `db:"is_prime_member"`
}

// FactRow is one transactions fact row. OrderID and ProductID form the
// natural identity; both are always populated (synthetic values stand in
// when the source row lacks them).
type FactRow struct {
	OrderID        string          `db:"order_id"`
	DateKey        sql.NullInt64   `db:"date_key"`
	OrderDate      sql.NullTime    `db:"order_date"`
	CustomerID     sql.NullString  `db:"customer_id"`
	ProductID      string          `db:"product_id"`
	Quantity       sql.NullInt64   `db:"quantity"`
	UnitPrice      sql.NullFloat64 `db:"unit_price"`
	Revenue        sql.NullFloat64 `db:"revenue"`
	Category       sql.NullString  `db:"category"`
	Brand          sql.NullString  `db:"brand"`
	PaymentMethod  sql.NullString  `db:"payment_method"`
	City           sql.NullString  `db:"city"`
	State          sql.NullString  `db:"state"`
	IsPrimeMember  sql.NullBool    `db:"is_prime_member"`
	DeliveryDays   sql.NullInt64   `db:"delivery_days"`
	CustomerRating sql.NullFloat64 `db:"customer_rating"`
	DiscountPct    sql.NullFloat64 `db:"discount_pct"`
	IsReturned     sql.NullBool    `db:"is_returned"`
	SourceFile     string          `db:"source_file"`

	// RowIndex ties the fact back to its source row for load failure
	// reporting. Not a warehouse column.
	RowIndex int `db:"-"`
}
