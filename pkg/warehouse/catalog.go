// pkg/warehouse/catalog.go
package warehouse

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/connector"
	"github.com/jaysh0/retail-warehouse/pkg/convert"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// catalogColumns is the insert column order for catalog upserts
var catalogColumns = []string{
	"product_id", "product_name", "brand", "category",
	"subcategory", "launch_year", "base_price_2015", "weight_kg",
}

// ProductFromRecord maps a cleaned catalog record onto the products
// dimension shape. Records without a product id are not loadable and
// return false. The legacy sub_category spelling is accepted.
func ProductFromRecord(rec model.CleanedRecord) (model.ProductRow, bool) {
	id := convert.AsNullString(rec.Get("product_id"))
	if !id.Valid || id.String == "" {
		return model.ProductRow{}, false
	}

	subcategory := rec.Get("subcategory")
	if subcategory.IsMissing() {
		subcategory = rec.Get("sub_category")
	}

	return model.ProductRow{
		ProductID:     id.String,
		ProductName:   convert.AsNullString(rec.Get("product_name")),
		Brand:         convert.AsNullString(rec.Get("brand")),
		Category:      convert.AsNullString(rec.Get("category")),
		Subcategory:   convert.AsNullString(subcategory),
		LaunchYear:    convert.AsNullInt64(rec.Get("launch_year")),
		BasePrice2015: convert.AsNullFloat64(rec.Get("base_price_2015")),
		WeightKg:      convert.AsNullFloat64(rec.Get("weight_kg")),
	}, true
}

// catalogUpsertSQL builds the named-parameter catalog upsert. COALESCE
// keeps existing attribute values when the incoming catalog cell is NULL,
// so a sparse catalog never erases what an earlier load supplied.
func catalogUpsertSQL(schema string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (:%s)",
		qualifiedTable(schema, "products"),
		strings.Join(catalogColumns, ", "),
		strings.Join(catalogColumns, ", :"),
	))

	sb.WriteString(" ON CONFLICT (product_id) DO UPDATE SET ")
	first := true
	for _, col := range catalogColumns {
		if col == "product_id" {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(fmt.Sprintf("%s = COALESCE(EXCLUDED.%s, products.%s)", col, col, col))
	}
	return sb.String()
}

// CatalogLoader upserts product catalog rows into the products dimension.
// Fact rows referencing those products are never touched; only the
// dimension attributes change.
type CatalogLoader struct {
	db      *sqlx.DB
	schema  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewCatalogLoader creates a catalog loader on an existing connection
func NewCatalogLoader(conn connector.DatabaseConnector, schema string) *CatalogLoader {
	return &CatalogLoader{
		db:      sqlx.NewDb(conn.DB(), "pgx"),
		schema:  schema,
		timeout: time.Minute * 2,
		logger:  zap.L().Named("catalog"),
	}
}

// WithTimeout sets a custom timeout for the catalog transaction
func (c *CatalogLoader) WithTimeout(timeout time.Duration) *CatalogLoader {
	c.timeout = timeout
	return c
}

// Load upserts the given products in one transaction and returns how many
// rows were written. Duplicate product ids keep their first occurrence,
// matching the cleaning pipeline's dedup rule.
func (c *CatalogLoader) Load(ctx context.Context, products []model.ProductRow) (n int, err error) {
	if len(products) == 0 {
		return 0, nil
	}

	execCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.db.BeginTxx(execCtx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	query := catalogUpsertSQL(c.schema)
	seen := make(map[string]struct{}, len(products))
	for _, product := range products {
		if _, dup := seen[product.ProductID]; dup {
			continue
		}
		seen[product.ProductID] = struct{}{}

		if _, err = tx.NamedExecContext(execCtx, query, product); err != nil {
			return 0, fmt.Errorf("failed to upsert product %q: %w", product.ProductID, err)
		}
		n++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	c.logger.Info("Catalog loaded",
		zap.Int("products", n),
		zap.Int("duplicates_skipped", len(products)-n))
	return n, nil
}
