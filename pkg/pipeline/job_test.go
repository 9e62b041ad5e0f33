// pkg/pipeline/job_test.go
package pipeline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

func TestKindForPath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want FileKind
	}{
		{name: "transactions by default", path: filepath.Join("data", "sales_2023.csv"), want: FileKindTransactions},
		{name: "catalog by base name", path: "product_catalog.csv", want: FileKindCatalog},
		{name: "catalog match is case-insensitive", path: "PRODUCT_CATALOG.CSV", want: FileKindCatalog},
		{name: "directory name does not count", path: filepath.Join("srv", "catalog", "sales.csv"), want: FileKindTransactions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindForPath(tt.path))
		})
	}
}

func TestFileJobRetry(t *testing.T) {
	job := NewFileJob(filepath.Join("data", "sales.csv"), FileKindTransactions, config.DefaultCleaningConfig())

	assert.NotEmpty(t, job.ID)
	assert.Equal(t, "sales.csv", job.SourceName())
	assert.True(t, job.IsRetryable(), "one retry is allowed by default")

	retried := job.Retry()
	assert.Equal(t, 1, retried.RetryCount)
	assert.False(t, retried.IsRetryable())
	assert.Equal(t, job.ID, retried.ID, "a retry is the same job")

	patient := job.WithMaxRetries(3).Retry()
	assert.True(t, patient.IsRetryable())
}

func TestRunSummaryAggregation(t *testing.T) {
	summary := NewRunSummary()

	good := FileResult{
		File:              "good.csv",
		Kind:              FileKindTransactions,
		Success:           true,
		RowsRead:          100,
		RowsAccepted:      90,
		RowsRejected:      5,
		DuplicatesRemoved: 5,
		FactsUpserted:     90,
		BytesRead:         4096,
		Load: &model.LoadReport{
			PlaceholderProducts:  2,
			PlaceholderCustomers: 1,
			TimeRowsCreated:      30,
		},
	}
	bad := FileResult{
		File:    "bad.csv",
		Kind:    FileKindTransactions,
		Success: false,
		Errors: []ErrorRecord{
			NewErrorRecord(errors.New("missing header row"), ErrorCategoryFile).WithFile("bad.csv"),
		},
	}
	unknown := FileResult{File: "empty.csv", Success: false}

	summary.AddFileResult(good)
	summary.AddFileResult(bad)
	summary.AddFileResult(unknown)

	assert.Equal(t, 3, summary.Files)
	assert.Equal(t, int64(100), summary.TotalRowsRead)
	assert.Equal(t, int64(90), summary.TotalRowsAccepted)
	assert.Equal(t, int64(5), summary.TotalRowsRejected)
	assert.Equal(t, int64(5), summary.TotalDuplicatesRemoved)
	assert.Equal(t, int64(90), summary.TotalFactsUpserted)
	assert.Equal(t, int64(4096), summary.TotalBytesRead)
	assert.Equal(t, int64(2), summary.TotalPlaceholderProducts)
	assert.Equal(t, int64(1), summary.TotalPlaceholderCustomers)
	assert.Equal(t, int64(30), summary.TotalTimeRowsCreated)

	assert.Equal(t, []string{"good.csv"}, summary.SucceededFiles)
	require.Len(t, summary.FailedFiles, 2)
	assert.Contains(t, summary.FailedFiles["bad.csv"].Error(), "missing header row")
	assert.ErrorIs(t, summary.FailedFiles["empty.csv"], errUnknownFailure,
		"a failed result without error records still lands in the summary")

	assert.Equal(t, 1, summary.ErrorCategories[ErrorCategoryFile])
	assert.InDelta(t, 33.33, summary.SuccessRate(), 0.01)

	summary.Complete()
	assert.False(t, summary.EndTime.IsZero())
}
