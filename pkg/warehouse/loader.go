// pkg/warehouse/loader.go
package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/connector"
	"github.com/jaysh0/retail-warehouse/pkg/convert"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// LoadError reports the batch that could not be committed. Batches
// committed before it stay in place.
type LoadError struct {
	Table    string
	Batch    int
	FirstRow int
	LastRow  int
	Attempts int
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load failed on %s batch %d (rows %d-%d) after %d attempt(s): %v",
		e.Table, e.Batch, e.FirstRow, e.LastRow, e.Attempts, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ResolutionError reports a dimension that could not be ensured for a fact
type ResolutionError struct {
	Dimension string
	Key       string
	Err       error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("failed to resolve %s %q: %v", e.Dimension, e.Key, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// SyntheticOrderID builds the stand-in identity for rows without an order
// id. It is stable across reloads of the same file.
func SyntheticOrderID(sourceFile string, rowIndex int) string {
	return fmt.Sprintf("%s#%d", sourceFile, rowIndex)
}

// factColumns is the insert column order for the fact table
var factColumns = []string{
	"order_id", "date_key", "order_date", "customer_id", "product_id",
	"quantity", "unit_price", "revenue", "category", "brand",
	"payment_method", "city", "state", "is_prime_member", "delivery_days",
	"customer_rating", "discount_pct", "is_returned", "source_file",
}

// factKeyColumns form the conflict target; everything else is refreshed
// on conflict so reloading a corrected file wins.
var factKeyColumns = map[string]bool{
	"order_id":   true,
	"product_id": true,
}

// factUpsertSQL builds a multi-row fact upsert with last-write-wins
// semantics on the natural key.
func factUpsertSQL(schema string, rowCount int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES ",
		qualifiedTable(schema, "transactions"),
		strings.Join(factColumns, ", "),
	))

	arg := 1
	for i := 0; i < rowCount; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for j := range factColumns {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("$%d", arg))
			arg++
		}
		sb.WriteString(")")
	}

	sb.WriteString(" ON CONFLICT (order_id, product_id) DO UPDATE SET ")
	first := true
	for _, col := range factColumns {
		if factKeyColumns[col] {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	return sb.String()
}

// factRowArgs flattens a fact row into the insert argument order
func factRowArgs(f model.FactRow) []interface{} {
	return []interface{}{
		f.OrderID, f.DateKey, f.OrderDate, f.CustomerID, f.ProductID,
		f.Quantity, f.UnitPrice, f.Revenue, f.Category, f.Brand,
		f.PaymentMethod, f.City, f.State, f.IsPrimeMember, f.DeliveryDays,
		f.CustomerRating, f.DiscountPct, f.IsReturned, f.SourceFile,
	}
}

// FactFromRecord maps a cleaned record onto the fact row shape. Missing
// identity fields get deterministic stand-ins; everything else coerces to
// its nullable column type.
func FactFromRecord(rec model.CleanedRecord) model.FactRow {
	orderID := convert.AsNullString(rec.Get("order_id"))
	productID := convert.AsNullString(rec.Get("product_id"))

	fact := model.FactRow{
		OrderID:        orderID.String,
		OrderDate:      convert.AsNullTime(rec.Get("order_date")),
		CustomerID:     convert.AsNullString(rec.Get("customer_id")),
		ProductID:      productID.String,
		Quantity:       convert.AsNullInt64(rec.Get("quantity")),
		UnitPrice:      convert.AsNullFloat64(rec.Get("unit_price")),
		Revenue:        convert.AsNullFloat64(rec.Get("revenue")),
		Category:       convert.AsNullString(rec.Get("category")),
		Brand:          convert.AsNullString(rec.Get("brand")),
		PaymentMethod:  convert.AsNullString(rec.Get("payment_method")),
		City:           convert.AsNullString(rec.Get("city")),
		State:          convert.AsNullString(rec.Get("state")),
		IsPrimeMember:  convert.AsNullBool(rec.Get("is_prime_member")),
		DeliveryDays:   convert.AsNullInt64(rec.Get("delivery_days")),
		CustomerRating: convert.AsNullFloat64(rec.Get("customer_rating")),
		DiscountPct:    convert.AsNullFloat64(rec.Get("discount_pct")),
		IsReturned:     convert.AsNullBool(rec.Get("is_returned")),
		SourceFile:     rec.SourceFile,
		RowIndex:       rec.RowIndex,
	}

	if !orderID.Valid || fact.OrderID == "" {
		fact.OrderID = SyntheticOrderID(rec.SourceFile, rec.RowIndex)
	}
	if !productID.Valid || fact.ProductID == "" {
		fact.ProductID = UnknownProductID
	}
	if fact.OrderDate.Valid {
		fact.DateKey = sql.NullInt64{Int64: int64(TimeKey(fact.OrderDate.Time)), Valid: true}
	}
	return fact
}

// FactLoader streams cleaned records into the fact table in batches.
// Dimension keys are resolved before each fact is buffered. One loader
// serves one source file.
type FactLoader struct {
	conn       connector.DatabaseConnector
	schema     string
	resolver   *DimensionResolver
	sourceFile string
	batchSize  int
	retryDelay time.Duration
	timeout    time.Duration
	logger     *zap.Logger

	buf        []model.FactRow
	report     *model.LoadReport
	batchIndex int
	failure    error
}

// NewFactLoader creates a loader for one source file
func NewFactLoader(conn connector.DatabaseConnector, schema string, resolver *DimensionResolver, sourceFile string) *FactLoader {
	return &FactLoader{
		conn:       conn,
		schema:     schema,
		resolver:   resolver,
		sourceFile: sourceFile,
		batchSize:  500,
		retryDelay: time.Second,
		timeout:    time.Minute * 2,
		logger:     zap.L().Named("loader").With(zap.String("source_file", sourceFile)),
		report:     &model.LoadReport{SourceFile: sourceFile},
	}
}

// WithBatchSize sets the number of facts per upsert statement
func (l *FactLoader) WithBatchSize(size int) *FactLoader {
	if size > 0 {
		l.batchSize = size
	}
	return l
}

// WithRetryDelay sets the pause before the single batch retry
func (l *FactLoader) WithRetryDelay(delay time.Duration) *FactLoader {
	l.retryDelay = delay
	return l
}

// WithTimeout sets a custom timeout for batch transactions
func (l *FactLoader) WithTimeout(timeout time.Duration) *FactLoader {
	l.timeout = timeout
	return l
}

// Append resolves the record's dimension keys, buffers the fact and
// flushes when a batch is full. After a batch failure every further call
// returns the same error.
func (l *FactLoader) Append(ctx context.Context, rec model.CleanedRecord) error {
	if l.failure != nil {
		return l.failure
	}

	fact := FactFromRecord(rec)

	if fact.DateKey.Valid {
		if _, err := l.resolver.EnsureTime(ctx, fact.OrderDate.Time); err != nil {
			return &ResolutionError{Dimension: "time", Key: fmt.Sprintf("%d", fact.DateKey.Int64), Err: err}
		}
	}
	if _, err := l.resolver.EnsureProduct(ctx, fact.ProductID, fact.Category.String, fact.Brand.String); err != nil {
		return &ResolutionError{Dimension: "product", Key: fact.ProductID, Err: err}
	}
	if fact.CustomerID.Valid {
		customer := model.CustomerRow{
			CustomerID:    fact.CustomerID.String,
			City:          fact.City,
			State:         fact.State,
			IsPrimeMember: fact.IsPrimeMember,
		}
		if _, err := l.resolver.EnsureCustomer(ctx, customer); err != nil {
			return &ResolutionError{Dimension: "customer", Key: customer.CustomerID, Err: err}
		}
	}

	l.buf = append(l.buf, fact)
	if len(l.buf) >= l.batchSize {
		return l.flush(ctx)
	}
	return nil
}

// Finish flushes the remaining facts and returns the load report. The
// report is returned even when the load failed so committed progress
// stays visible.
func (l *FactLoader) Finish(ctx context.Context) (*model.LoadReport, error) {
	err := l.failure
	if err == nil {
		err = l.flush(ctx)
	}

	stats := l.resolver.Stats()
	l.report.PlaceholderProducts = stats.PlaceholderProducts
	l.report.PlaceholderCustomers = stats.PlaceholderCustomers
	l.report.TimeRowsCreated = stats.TimeRowsCreated

	if err != nil {
		return l.report, err
	}

	l.logger.Info("Load complete",
		zap.Int("facts_upserted", l.report.FactsUpserted),
		zap.Int("batches", l.report.BatchesCommitted),
		zap.Int("placeholder_products", l.report.PlaceholderProducts),
		zap.Int("placeholder_customers", l.report.PlaceholderCustomers))
	return l.report, nil
}

// flush commits the buffered facts in one transaction, retrying once on
// a transient failure.
func (l *FactLoader) flush(ctx context.Context) error {
	if len(l.buf) == 0 {
		return nil
	}

	query := factUpsertSQL(l.schema, len(l.buf))
	args := make([]interface{}, 0, len(l.buf)*len(factColumns))
	for _, fact := range l.buf {
		args = append(args, factRowArgs(fact)...)
	}
	firstRow := l.buf[0].RowIndex
	lastRow := l.buf[len(l.buf)-1].RowIndex

	err := l.execBatch(ctx, query, args)
	attempts := 1
	if err != nil && connector.IsRetryableError(err) {
		l.logger.Warn("Fact batch failed, retrying once",
			zap.Int("batch", l.batchIndex),
			zap.Int("first_row", firstRow),
			zap.Int("last_row", lastRow),
			zap.Error(err))
		select {
		case <-time.After(l.retryDelay):
			err = l.execBatch(ctx, query, args)
			attempts++
		case <-ctx.Done():
			err = ctx.Err()
		}
	}

	if err != nil {
		loadErr := &LoadError{
			Table:    "transactions",
			Batch:    l.batchIndex,
			FirstRow: firstRow,
			LastRow:  lastRow,
			Attempts: attempts,
			Err:      err,
		}
		l.report.Failure = &model.LoadFailure{
			Batch:    loadErr.Batch,
			FirstRow: loadErr.FirstRow,
			LastRow:  loadErr.LastRow,
			Attempts: loadErr.Attempts,
			Cause:    err.Error(),
		}
		l.failure = loadErr
		l.logger.Error("Fact batch failed permanently",
			zap.Int("batch", l.batchIndex),
			zap.Int("first_row", firstRow),
			zap.Int("last_row", lastRow),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return loadErr
	}

	l.report.FactsUpserted += len(l.buf)
	l.report.BatchesCommitted++
	l.logger.Debug("Committed fact batch",
		zap.Int("batch", l.batchIndex),
		zap.Int("rows", len(l.buf)))
	l.batchIndex++
	l.buf = l.buf[:0]
	return nil
}

// execBatch runs one batch upsert inside a transaction
func (l *FactLoader) execBatch(ctx context.Context, query string, args []interface{}) (err error) {
	execCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	tx, err := l.conn.DB().BeginTx(execCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(execCtx, query, args...); err != nil {
		return fmt.Errorf("failed to upsert facts: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
