// pkg/pipeline/job.go
package pipeline

import (
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// errUnknownFailure stands in when a failed result carries no error record
var errUnknownFailure = errors.New("unknown failure")

// FileKind tells the worker which cleaning profile and load target a
// source file gets
type FileKind string

const (
	// FileKindTransactions is retail transaction data headed for the fact table
	FileKindTransactions FileKind = "transactions"
	// FileKindCatalog is product master data headed for the products dimension
	FileKindCatalog FileKind = "catalog"
)

// KindForPath infers the file kind from its name: anything with
// "catalog" in the base name is product master data.
func KindForPath(path string) FileKind {
	base := strings.ToLower(filepath.Base(path))
	if strings.Contains(base, "catalog") {
		return FileKindCatalog
	}
	return FileKindTransactions
}

// FileJob represents one source file to clean and optionally load
type FileJob struct {
	ID         string                 // Unique job identifier
	Path       string                 // Source CSV path
	Kind       FileKind               // Cleaning profile / load target
	Cleaning   *config.CleaningConfig // Profile applied to this file
	Priority   int                    // Job priority (higher = more important)
	CreatedAt  time.Time              // Job creation timestamp
	RetryCount int                    // Number of retries attempted
	MaxRetries int                    // Maximum allowed retries
}

// NewFileJob creates a new file job with defaults
func NewFileJob(path string, kind FileKind, cleaning *config.CleaningConfig) FileJob {
	return FileJob{
		ID:         uuid.New().String(),
		Path:       path,
		Kind:       kind,
		Cleaning:   cleaning,
		Priority:   1, // Default priority
		CreatedAt:  time.Now(),
		RetryCount: 0,
		MaxRetries: 1,
	}
}

// WithPriority sets the job priority and returns the modified job
func (j FileJob) WithPriority(priority int) FileJob {
	j.Priority = priority
	return j
}

// WithMaxRetries sets the maximum retry count and returns the modified job
func (j FileJob) WithMaxRetries(maxRetries int) FileJob {
	j.MaxRetries = maxRetries
	return j
}

// IsRetryable checks if the job can be retried
func (j FileJob) IsRetryable() bool {
	return j.RetryCount < j.MaxRetries
}

// Retry increments the retry count and returns the modified job
func (j FileJob) Retry() FileJob {
	j.RetryCount++
	return j
}

// SourceName returns the base file name recorded in the warehouse
func (j FileJob) SourceName() string {
	return filepath.Base(j.Path)
}

// FileResult represents the outcome of processing one source file
type FileResult struct {
	JobID             string
	File              string
	Kind              FileKind
	Success           bool
	RowsRead          int
	RowsAccepted      int
	RowsRejected      int
	DuplicatesRemoved int
	FactsUpserted     int
	ProductsUpserted  int
	BytesRead         int64
	CleanedPath       string
	RejectedPath      string
	ReportPath        string
	Report            *model.RunReport
	Load              *model.LoadReport
	Errors            []ErrorRecord
	Warnings          []string
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
	RetryCount        int
	WorkerID          int
}

// NewFileResult initializes a result for a job
func NewFileResult(job FileJob, workerID int) *FileResult {
	return &FileResult{
		JobID:      job.ID,
		File:       job.SourceName(),
		Kind:       job.Kind,
		StartTime:  time.Now(),
		RetryCount: job.RetryCount,
		WorkerID:   workerID,
		Errors:     make([]ErrorRecord, 0),
		Warnings:   make([]string, 0),
	}
}

// Complete marks the result as complete and calculates duration
func (r *FileResult) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success
}

// AddError adds an error to the result
func (r *FileResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// AddWarning adds a warning to the result
func (r *FileResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// HasErrors checks if any errors occurred
func (r *FileResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// RunSummary represents the final summary of a pipeline run
type RunSummary struct {
	Files                     int
	SucceededFiles            []string
	FailedFiles               map[string]error
	TotalRowsRead             int64
	TotalRowsAccepted         int64
	TotalRowsRejected         int64
	TotalDuplicatesRemoved    int64
	TotalFactsUpserted        int64
	TotalProductsUpserted     int64
	TotalPlaceholderProducts  int64
	TotalPlaceholderCustomers int64
	TotalTimeRowsCreated      int64
	TotalBytesRead            int64
	ErrorCategories           map[ErrorCategory]int
	StartTime                 time.Time
	EndTime                   time.Time
	Duration                  time.Duration
	Throughput                float64 // rows/second
}

// NewRunSummary initializes a new run summary
func NewRunSummary() *RunSummary {
	return &RunSummary{
		SucceededFiles:  make([]string, 0),
		FailedFiles:     make(map[string]error),
		StartTime:       time.Now(),
		ErrorCategories: make(map[ErrorCategory]int),
	}
}

// Complete marks the run as complete and calculates throughput
func (s *RunSummary) Complete() {
	s.EndTime = time.Now()
	s.Duration = s.EndTime.Sub(s.StartTime)
	if s.Duration.Seconds() > 0 {
		s.Throughput = float64(s.TotalRowsRead) / s.Duration.Seconds()
	}
}

// AddFileResult incorporates one file result into the summary
func (s *RunSummary) AddFileResult(result FileResult) {
	s.Files++
	s.TotalRowsRead += int64(result.RowsRead)
	s.TotalRowsAccepted += int64(result.RowsAccepted)
	s.TotalRowsRejected += int64(result.RowsRejected)
	s.TotalDuplicatesRemoved += int64(result.DuplicatesRemoved)
	s.TotalFactsUpserted += int64(result.FactsUpserted)
	s.TotalProductsUpserted += int64(result.ProductsUpserted)
	s.TotalBytesRead += result.BytesRead

	if result.Load != nil {
		s.TotalPlaceholderProducts += int64(result.Load.PlaceholderProducts)
		s.TotalPlaceholderCustomers += int64(result.Load.PlaceholderCustomers)
		s.TotalTimeRowsCreated += int64(result.Load.TimeRowsCreated)
	}

	for _, errRecord := range result.Errors {
		s.ErrorCategories[errRecord.Category]++
	}

	if result.Success {
		s.SucceededFiles = append(s.SucceededFiles, result.File)
	} else if len(result.Errors) > 0 {
		s.FailedFiles[result.File] = result.Errors[0].Error
	} else {
		s.FailedFiles[result.File] = errUnknownFailure
	}
}

// SuccessRate returns the percentage of files processed successfully
func (s *RunSummary) SuccessRate() float64 {
	if s.Files == 0 {
		return 0
	}
	return float64(len(s.SucceededFiles)) / float64(s.Files) * 100
}
