// pkg/warehouse/schema.go
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/connector"
)

// qualifiedTable returns a schema-qualified, quoted table reference
func qualifiedTable(schema, table string) string {
	return pq.QuoteIdentifier(schema) + "." + pq.QuoteIdentifier(table)
}

// SchemaManager creates and maintains the star schema tables
type SchemaManager struct {
	conn    connector.DatabaseConnector
	schema  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewSchemaManager creates a schema manager for the given warehouse schema
func NewSchemaManager(conn connector.DatabaseConnector, schema string) *SchemaManager {
	return &SchemaManager{
		conn:    conn,
		schema:  schema,
		timeout: time.Minute * 2,
		logger:  zap.L().Named("schema"),
	}
}

// WithTimeout sets a custom timeout for DDL statements
func (m *SchemaManager) WithTimeout(timeout time.Duration) *SchemaManager {
	m.timeout = timeout
	return m
}

// EnsureTables creates the dimension and fact tables plus their indexes.
// All statements are idempotent so the command is safe to re-run.
func (m *SchemaManager) EnsureTables(ctx context.Context) error {
	m.logger.Info("Ensuring warehouse tables", zap.String("schema", m.schema))

	timeDim := qualifiedTable(m.schema, "time_dimension")
	products := qualifiedTable(m.schema, "products")
	customers := qualifiedTable(m.schema, "customers")
	transactions := qualifiedTable(m.schema, "transactions")

	statements := []struct {
		name  string
		query string
	}{
		{
			name: "time_dimension",
			query: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				date_key INTEGER PRIMARY KEY,
				date DATE NOT NULL,
				day INTEGER NOT NULL,
				month INTEGER NOT NULL,
				month_name TEXT NOT NULL,
				quarter INTEGER NOT NULL,
				quarter_name TEXT NOT NULL,
				year INTEGER NOT NULL,
				week_iso INTEGER NOT NULL,
				day_name TEXT NOT NULL,
				is_weekend BOOLEAN NOT NULL,
				fiscal_year INTEGER NOT NULL,
				fiscal_quarter INTEGER NOT NULL
			)`, timeDim),
		},
		{
			name: "products",
			query: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				product_id TEXT PRIMARY KEY,
				product_name TEXT,
				brand TEXT,
				category TEXT,
				subcategory TEXT,
				launch_year INTEGER,
				base_price_2015 NUMERIC(12,2),
				weight_kg NUMERIC(8,3)
			)`, products),
		},
		{
			name: "customers",
			query: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				customer_id TEXT PRIMARY KEY,
				city TEXT,
				state TEXT,
				is_prime_member BOOLEAN
			)`, customers),
		},
		{
			name: "transactions",
			query: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				order_id TEXT NOT NULL,
				date_key INTEGER REFERENCES %s (date_key),
				order_date DATE,
				customer_id TEXT REFERENCES %s (customer_id),
				product_id TEXT NOT NULL REFERENCES %s (product_id),
				quantity INTEGER,
				unit_price NUMERIC(12,2),
				revenue NUMERIC(14,2),
				category TEXT,
				brand TEXT,
				payment_method TEXT,
				city TEXT,
				state TEXT,
				is_prime_member BOOLEAN,
				delivery_days INTEGER,
				customer_rating NUMERIC(3,1),
				discount_pct NUMERIC(5,2),
				is_returned BOOLEAN,
				source_file TEXT NOT NULL,
				PRIMARY KEY (order_id, product_id)
			)`, transactions, timeDim, customers, products),
		},
		{
			name:  "idx_tx_date_key",
			query: fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_tx_date_key ON %s (date_key)", transactions),
		},
		{
			name:  "idx_tx_product",
			query: fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_tx_product ON %s (product_id)", transactions),
		},
		{
			name:  "idx_tx_customer",
			query: fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_tx_customer ON %s (customer_id)", transactions),
		},
		{
			name:  "idx_tx_category",
			query: fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_tx_category ON %s (category)", transactions),
		},
		{
			name:  "idx_tx_brand",
			query: fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_tx_brand ON %s (brand)", transactions),
		},
	}

	for _, stmt := range statements {
		if _, err := m.conn.ExecWithTimeout(ctx, stmt.query, m.timeout); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
		m.logger.Debug("Ensured object", zap.String("object", stmt.name))
	}

	m.logger.Info("Warehouse tables ready",
		zap.String("schema", m.schema),
		zap.Int("statements", len(statements)))
	return nil
}
