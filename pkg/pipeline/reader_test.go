// pkg/pipeline/reader_test.go
package pipeline

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeCSV drops a file with the given content into a fresh temp dir
func writeCSV(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestOpenCSVStripsByteOrderMark(t *testing.T) {
	content := "\xEF\xBB\xBFid,name\n1,a\n"
	path := writeCSV(t, "bom.csv", content)

	src, err := OpenCSV(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, []string{"id", "name"}, src.Header(), "the BOM must not leak into the first column name")
	assert.Equal(t, int64(len(content)), src.Size())

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 0, rec.RowIndex)
	assert.Equal(t, map[string]string{"id": "1", "name": "a"}, rec.Fields)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenCSVRaggedRows(t *testing.T) {
	path := writeCSV(t, "ragged.csv", "id,name,city\n1,a\n2,b,Pune,extra\n")

	src, err := OpenCSV(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "1", "name": "a", "city": ""}, rec.Fields,
		"short rows pad missing trailing cells")

	rec, err = src.Next()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"id": "2", "name": "b", "city": "Pune"}, rec.Fields,
		"extra cells beyond the header are dropped")
	assert.Equal(t, 1, rec.RowIndex)
}

func TestOpenCSVEmptyFile(t *testing.T) {
	path := writeCSV(t, "empty.csv", "")

	_, err := OpenCSV(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingHeader)
}

func TestOpenCSVMissingFile(t *testing.T) {
	_, err := OpenCSV(context.Background(), filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open")
}

func TestWithHeaderAliases(t *testing.T) {
	path := writeCSV(t, "catalog.csv", "product_id,sub_category\nP-1,Drinkware\n")

	src, err := OpenCSV(context.Background(), path)
	require.NoError(t, err)
	defer src.Close()

	src.WithHeaderAliases(map[string]string{"sub_category": "subcategory"})
	assert.Equal(t, []string{"product_id", "subcategory"}, src.Header())

	rec, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, "Drinkware", rec.Fields["subcategory"])
	assert.NotContains(t, rec.Fields, "sub_category")
}

func TestNextHonorsCancellation(t *testing.T) {
	path := writeCSV(t, "cancel.csv", "id\n1\n2\n")

	ctx, cancel := context.WithCancel(context.Background())
	src, err := OpenCSV(ctx, path)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	require.NoError(t, err)

	cancel()
	_, err = src.Next()
	assert.ErrorIs(t, err, context.Canceled)
}
