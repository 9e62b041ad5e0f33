// pkg/warehouse/resolver.go
package warehouse

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/connector"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// UnknownValue is the sentinel stored for dimension attributes that the
// source row could not supply.
const UnknownValue = "Unknown"

// UnknownProductID keys the placeholder product that facts without a
// product id reference. Keeping the reference non-null preserves the
// fact table's natural key.
const UnknownProductID = "UNKNOWN"

// ResolutionStats summarizes dimension work done during a load
type ResolutionStats struct {
	TimeRowsCreated      int
	PlaceholderProducts  int
	PlaceholderCustomers int
}

// DimensionResolver guarantees that every dimension key referenced by a
// fact exists before the fact is written. Rows absent from a dimension
// are inserted as placeholders and counted, never rejected.
//
// A resolver caches the keys it has already ensured, so create one per
// load; it is not safe for concurrent use.
type DimensionResolver struct {
	conn            connector.DatabaseConnector
	schema          string
	fiscalYearStart int
	timeout         time.Duration
	logger          *zap.Logger

	seenTime      map[int]struct{}
	seenProducts  map[string]struct{}
	seenCustomers map[string]struct{}
	stats         ResolutionStats
}

// NewDimensionResolver creates a resolver bound to one warehouse schema
func NewDimensionResolver(conn connector.DatabaseConnector, schema string, fiscalYearStart int) *DimensionResolver {
	return &DimensionResolver{
		conn:            conn,
		schema:          schema,
		fiscalYearStart: fiscalYearStart,
		timeout:         time.Second * 30,
		logger:          zap.L().Named("resolver"),
		seenTime:        make(map[int]struct{}),
		seenProducts:    make(map[string]struct{}),
		seenCustomers:   make(map[string]struct{}),
	}
}

// WithTimeout sets a custom timeout for dimension statements
func (r *DimensionResolver) WithTimeout(timeout time.Duration) *DimensionResolver {
	r.timeout = timeout
	return r
}

// Stats returns the counters accumulated so far
func (r *DimensionResolver) Stats() ResolutionStats {
	return r.stats
}

// EnsureTime resolves a calendar date to its date_key, inserting the time
// dimension row when it does not exist yet.
func (r *DimensionResolver) EnsureTime(ctx context.Context, date time.Time) (int, error) {
	row := ResolveTime(date, r.fiscalYearStart)
	if _, ok := r.seenTime[row.DateKey]; ok {
		return row.DateKey, nil
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13) ON CONFLICT (date_key) DO NOTHING",
		qualifiedTable(r.schema, "time_dimension"),
		"date_key, date, day, month, month_name, quarter, quarter_name, year, week_iso, day_name, is_weekend, fiscal_year, fiscal_quarter",
	)
	res, err := r.conn.ExecWithTimeout(ctx, query, r.timeout, timeRowArgs(row)...)
	if err != nil {
		return 0, fmt.Errorf("failed to ensure time row %d: %w", row.DateKey, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		r.stats.TimeRowsCreated++
	}

	r.seenTime[row.DateKey] = struct{}{}
	return row.DateKey, nil
}

// EnsureProduct resolves a product id, inserting a placeholder row when
// the catalog has no entry for it. Fallback attributes come from the fact
// row when present and default to the Unknown sentinel. Returns true when
// a new placeholder was created.
func (r *DimensionResolver) EnsureProduct(ctx context.Context, productID, fallbackCategory, fallbackBrand string) (bool, error) {
	if productID == "" {
		return false, nil
	}
	if _, ok := r.seenProducts[productID]; ok {
		return false, nil
	}

	if fallbackCategory == "" {
		fallbackCategory = UnknownValue
	}
	if fallbackBrand == "" {
		fallbackBrand = UnknownValue
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (product_id, category, brand) VALUES ($1, $2, $3) ON CONFLICT (product_id) DO NOTHING",
		qualifiedTable(r.schema, "products"),
	)
	res, err := r.conn.ExecWithTimeout(ctx, query, r.timeout, productID, fallbackCategory, fallbackBrand)
	if err != nil {
		return false, fmt.Errorf("failed to ensure product %q: %w", productID, err)
	}

	created := false
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		created = true
		r.stats.PlaceholderProducts++
		r.logger.Debug("Inserted placeholder product",
			zap.String("product_id", productID),
			zap.String("category", fallbackCategory),
			zap.String("brand", fallbackBrand))
	}

	r.seenProducts[productID] = struct{}{}
	return created, nil
}

// EnsureCustomer resolves a customer id, inserting a placeholder row
// carrying whatever attributes the fact row had. Returns true when a new
// placeholder was created.
func (r *DimensionResolver) EnsureCustomer(ctx context.Context, customer model.CustomerRow) (bool, error) {
	if customer.CustomerID == "" {
		return false, nil
	}
	if _, ok := r.seenCustomers[customer.CustomerID]; ok {
		return false, nil
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (customer_id, city, state, is_prime_member) VALUES ($1, $2, $3, $4) ON CONFLICT (customer_id) DO NOTHING",
		qualifiedTable(r.schema, "customers"),
	)
	res, err := r.conn.ExecWithTimeout(ctx, query, r.timeout,
		customer.CustomerID, customer.City, customer.State, customer.IsPrimeMember)
	if err != nil {
		return false, fmt.Errorf("failed to ensure customer %q: %w", customer.CustomerID, err)
	}

	created := false
	if affected, err := res.RowsAffected(); err == nil && affected > 0 {
		created = true
		r.stats.PlaceholderCustomers++
		r.logger.Debug("Inserted placeholder customer",
			zap.String("customer_id", customer.CustomerID))
	}

	r.seenCustomers[customer.CustomerID] = struct{}{}
	return created, nil
}
