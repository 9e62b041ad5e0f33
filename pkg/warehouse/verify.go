// pkg/warehouse/verify.go
package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/connector"
)

// Verifier provides post-load verification against the fact table
type Verifier struct {
	db      *sqlx.DB
	schema  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewVerifier creates a verifier on an existing connection
func NewVerifier(conn connector.DatabaseConnector, schema string) *Verifier {
	return &Verifier{
		db:      sqlx.NewDb(conn.DB(), "pgx"),
		schema:  schema,
		timeout: time.Minute,
		logger:  zap.L().Named("verifier"),
	}
}

// WithTimeout sets a custom timeout for verification queries
func (v *Verifier) WithTimeout(timeout time.Duration) *Verifier {
	v.timeout = timeout
	return v
}

// VerifySourceFileCount checks that the fact table holds exactly as many
// rows for a source file as the load reported. A mismatch is reported,
// not fatal: an earlier load of the same file can legitimately leave
// extra rows behind.
func (v *Verifier) VerifySourceFileCount(ctx context.Context, sourceFile string, expected int) (bool, int64, error) {
	queryCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	query := fmt.Sprintf(
		"SELECT COUNT(*) FROM %s WHERE source_file = $1",
		qualifiedTable(v.schema, "transactions"),
	)

	var count int64
	if err := v.db.GetContext(queryCtx, &count, query, sourceFile); err != nil {
		return false, 0, fmt.Errorf("failed to count facts for %q: %w", sourceFile, err)
	}

	matches := count == int64(expected)
	if matches {
		v.logger.Debug("Row count verified",
			zap.String("source_file", sourceFile),
			zap.Int64("count", count))
	} else {
		v.logger.Warn("Row count mismatch",
			zap.String("source_file", sourceFile),
			zap.Int("expected", expected),
			zap.Int64("actual", count))
	}
	return matches, count, nil
}
