// pkg/warehouse/resolver_test.go
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysh0/retail-warehouse/pkg/model"
)

type fakeResult struct {
	affected int64
}

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return r.affected, nil }

// fakeConnector records every statement it is asked to execute. Exec
// results report f.affected rows; a non-nil err fails the call instead.
type fakeConnector struct {
	queries  []string
	args     [][]interface{}
	affected int64
	err      error
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{affected: 1}
}

func (f *fakeConnector) DB() *sql.DB     { return nil }
func (f *fakeConnector) Validate() error { return nil }
func (f *fakeConnector) Close() error    { return nil }

func (f *fakeConnector) QueryWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (f *fakeConnector) ExecWithTimeout(ctx context.Context, query string, timeout time.Duration, args ...interface{}) (sql.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.queries = append(f.queries, query)
	f.args = append(f.args, args)
	return fakeResult{affected: f.affected}, nil
}

func TestEnsureProductInsertsPlaceholderOnce(t *testing.T) {
	conn := newFakeConnector()
	r := NewDimensionResolver(conn, "analytics", 4)

	created, err := r.EnsureProduct(context.Background(), "P-404", "Electronics", "Acme")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = r.EnsureProduct(context.Background(), "P-404", "Electronics", "Acme")
	require.NoError(t, err)
	assert.False(t, created, "second resolution is served from the cache")

	require.Len(t, conn.queries, 1)
	assert.Contains(t, conn.queries[0], `INSERT INTO "analytics"."products"`)
	assert.Contains(t, conn.queries[0], "ON CONFLICT (product_id) DO NOTHING")
	assert.Equal(t, []interface{}{"P-404", "Electronics", "Acme"}, conn.args[0])
	assert.Equal(t, 1, r.Stats().PlaceholderProducts)
}

func TestEnsureProductFallsBackToUnknown(t *testing.T) {
	conn := newFakeConnector()
	r := NewDimensionResolver(conn, "analytics", 4)

	_, err := r.EnsureProduct(context.Background(), "P-9", "", "")
	require.NoError(t, err)

	require.Len(t, conn.args, 1)
	assert.Equal(t, []interface{}{"P-9", UnknownValue, UnknownValue}, conn.args[0])
}

func TestEnsureProductExistingRow(t *testing.T) {
	conn := newFakeConnector()
	conn.affected = 0
	r := NewDimensionResolver(conn, "analytics", 4)

	created, err := r.EnsureProduct(context.Background(), "P-1", "Electronics", "Acme")
	require.NoError(t, err)
	assert.False(t, created, "conflict with the catalog row creates nothing")
	assert.Equal(t, 0, r.Stats().PlaceholderProducts)

	_, err = r.EnsureProduct(context.Background(), "P-1", "Electronics", "Acme")
	require.NoError(t, err)
	assert.Len(t, conn.queries, 1, "existing rows are cached too")
}

func TestEnsureProductEmptyID(t *testing.T) {
	conn := newFakeConnector()
	r := NewDimensionResolver(conn, "analytics", 4)

	created, err := r.EnsureProduct(context.Background(), "", "Electronics", "Acme")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, conn.queries)
}

func TestEnsureCustomer(t *testing.T) {
	conn := newFakeConnector()
	r := NewDimensionResolver(conn, "analytics", 4)

	customer := model.CustomerRow{
		CustomerID:    "C-77",
		City:          sql.NullString{String: "Mumbai", Valid: true},
		State:         sql.NullString{String: "Maharashtra", Valid: true},
		IsPrimeMember: sql.NullBool{Bool: true, Valid: true},
	}

	created, err := r.EnsureCustomer(context.Background(), customer)
	require.NoError(t, err)
	assert.True(t, created)

	created, err = r.EnsureCustomer(context.Background(), customer)
	require.NoError(t, err)
	assert.False(t, created)

	require.Len(t, conn.queries, 1)
	assert.Contains(t, conn.queries[0], `INSERT INTO "analytics"."customers"`)
	assert.Contains(t, conn.queries[0], "ON CONFLICT (customer_id) DO NOTHING")
	assert.Equal(t, 1, r.Stats().PlaceholderCustomers)

	created, err = r.EnsureCustomer(context.Background(), model.CustomerRow{})
	require.NoError(t, err)
	assert.False(t, created, "rows without a customer id resolve to nothing")
	assert.Len(t, conn.queries, 1)
}

func TestEnsureTime(t *testing.T) {
	conn := newFakeConnector()
	r := NewDimensionResolver(conn, "analytics", 4)

	key, err := r.EnsureTime(context.Background(), time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 20230315, key)

	key, err = r.EnsureTime(context.Background(), time.Date(2023, time.March, 15, 17, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 20230315, key)
	assert.Len(t, conn.queries, 1, "the same calendar day is cached regardless of clock time")

	_, err = r.EnsureTime(context.Background(), time.Date(2023, time.March, 16, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, conn.queries, 2)

	assert.Contains(t, conn.queries[0], `INSERT INTO "analytics"."time_dimension"`)
	assert.Contains(t, conn.queries[0], "ON CONFLICT (date_key) DO NOTHING")
	assert.Len(t, conn.args[0], 13)
	assert.Equal(t, 20230315, conn.args[0][0])
	assert.Equal(t, 2, r.Stats().TimeRowsCreated)
}

func TestResolverSurfacesErrors(t *testing.T) {
	conn := newFakeConnector()
	conn.err = errors.New("connection refused")
	r := NewDimensionResolver(conn, "analytics", 4)

	_, err := r.EnsureProduct(context.Background(), "P-1", "", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `failed to ensure product "P-1"`)

	// A failed key is not cached; the retry reaches the database again.
	conn.err = nil
	created, err := r.EnsureProduct(context.Background(), "P-1", "", "")
	require.NoError(t, err)
	assert.True(t, created)
}
