// pkg/pipeline/error.go
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/warehouse"
)

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates processing should continue despite the error
	ActionContinue Action = iota
	// ActionRetry indicates the operation should be retried
	ActionRetry
	// ActionSkipRow indicates the current row should be skipped
	ActionSkipRow
	// ActionSkipFile indicates the current file should be skipped
	ActionSkipFile
	// ActionAbort indicates the entire run should be aborted
	ActionAbort
)

// ErrorCategory defines categories of errors during a pipeline run
type ErrorCategory int

const (
	// Error categories with increasing severity
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryWarning
	ErrorCategoryRow
	ErrorCategoryResolution
	ErrorCategoryFile
	ErrorCategoryLoad
	ErrorCategoryConfig
	ErrorCategorySystem
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryWarning:
		return "Warning"
	case ErrorCategoryRow:
		return "Row"
	case ErrorCategoryResolution:
		return "Resolution"
	case ErrorCategoryFile:
		return "File"
	case ErrorCategoryLoad:
		return "Load"
	case ErrorCategoryConfig:
		return "Config"
	case ErrorCategorySystem:
		return "System"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// ErrorRecord represents a single error during a pipeline run
type ErrorRecord struct {
	Category    ErrorCategory
	SourceFile  string
	RowIndex    int // -1 when the error is not row-scoped
	Error       error
	Message     string // Derived from Error but stored for serialization
	Timestamp   time.Time
	Recoverable bool
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:    category,
		RowIndex:    -1,
		Error:       err,
		Timestamp:   time.Now(),
		Recoverable: category < ErrorCategoryLoad,
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithFile adds source file information to the error record
func (r ErrorRecord) WithFile(path string) ErrorRecord {
	r.SourceFile = path
	return r
}

// WithRowIndex adds row information to the error record
func (r ErrorRecord) WithRowIndex(rowIndex int) ErrorRecord {
	r.RowIndex = rowIndex
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.SourceFile != "" {
		sb.WriteString(fmt.Sprintf("File: %s ", r.SourceFile))
	}

	if r.RowIndex >= 0 {
		sb.WriteString(fmt.Sprintf("Row: %d ", r.RowIndex))
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	return sb.String()
}

// ErrorHandler manages error handling during a pipeline run
type ErrorHandler struct {
	logger       *zap.Logger
	errorCounts  map[ErrorCategory]int
	sampleErrors map[ErrorCategory][]ErrorRecord
	fileErrors   map[string]int
	mu           sync.Mutex
	maxSamples   int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger,
		errorCounts:  make(map[ErrorCategory]int),
		sampleErrors: make(map[ErrorCategory][]ErrorRecord),
		fileErrors:   make(map[string]int),
		maxSamples:   5, // Store up to 5 sample errors per category
	}
}

// CategorizeError determines the category of an error. Typed errors from
// the config and warehouse layers are recognized first; anything else is
// classified by message.
func (eh *ErrorHandler) CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	var configErr *config.ConfigError
	var loadErr *warehouse.LoadError
	var resolutionErr *warehouse.ResolutionError

	var category ErrorCategory
	switch {
	case errors.As(err, &configErr):
		category = ErrorCategoryConfig

	case errors.As(err, &loadErr):
		category = ErrorCategoryLoad

	case errors.As(err, &resolutionErr):
		category = ErrorCategoryResolution

	default:
		msg := strings.ToLower(err.Error())
		switch {
		case strings.Contains(msg, "permission denied") ||
			strings.Contains(msg, "disk") ||
			strings.Contains(msg, "memory"):
			category = ErrorCategorySystem

		case strings.Contains(msg, "parse") ||
			strings.Contains(msg, "wrong number of fields") ||
			strings.Contains(msg, "bare \" in non-quoted-field") ||
			strings.Contains(msg, "quote"):
			category = ErrorCategoryRow

		// Anything else while working a file fails that file only
		default:
			category = ErrorCategoryFile
		}
	}

	if eh.logger != nil {
		eh.logger.Debug("Categorized error",
			zap.String("error", err.Error()),
			zap.String("category", category.String()))
	}

	return category
}

// HandleError processes an error and determines action
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.RecordError(record)

	switch record.Category {
	case ErrorCategoryNone, ErrorCategoryWarning:
		return ActionContinue

	case ErrorCategoryRow, ErrorCategoryResolution:
		return ActionSkipRow

	case ErrorCategoryFile:
		return ActionSkipFile

	case ErrorCategoryLoad:
		// The loader already retried transient failures internally
		return ActionAbort

	case ErrorCategoryConfig, ErrorCategorySystem:
		if eh.logger != nil {
			eh.logger.Error("Fatal error during run",
				zap.String("category", record.Category.String()),
				zap.String("error", record.Message))
		}
		return ActionAbort

	default:
		return ActionContinue
	}
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	eh.errorCounts[record.Category]++

	// Save sample errors (up to max samples per category)
	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	if record.SourceFile != "" {
		eh.fileErrors[record.SourceFile]++
	}

	if eh.logger != nil {
		logLevel := zap.InfoLevel
		switch record.Category {
		case ErrorCategoryWarning, ErrorCategoryResolution, ErrorCategoryFile:
			logLevel = zap.WarnLevel
		case ErrorCategoryLoad, ErrorCategoryConfig, ErrorCategorySystem:
			logLevel = zap.ErrorLevel
		}

		eh.logger.Log(logLevel, "Pipeline error",
			zap.String("category", record.Category.String()),
			zap.String("file", record.SourceFile),
			zap.Int("row", record.RowIndex),
			zap.String("error", record.Message),
			zap.Bool("recoverable", record.Recoverable))
	}
}

// ShouldAbortRun reports whether a fatal error has been recorded. Row and
// resolution errors never abort a run; config, load and system errors do.
func (eh *ErrorHandler) ShouldAbortRun() bool {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	for _, category := range []ErrorCategory{
		ErrorCategoryLoad,
		ErrorCategoryConfig,
		ErrorCategorySystem,
	} {
		if eh.errorCounts[category] > 0 {
			return true
		}
	}
	return false
}

// GetErrorSummary generates an error summary report
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	summary := make(map[ErrorCategory]int)
	for category, count := range eh.errorCounts {
		summary[category] = count
	}
	return summary
}

// GetErrorSamples returns sample errors for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	samples := make(map[ErrorCategory][]ErrorRecord)
	for category, records := range eh.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}
	return samples
}

// GetFileErrorCounts returns error counts by source file
func (eh *ErrorHandler) GetFileErrorCounts() map[string]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	fileCounts := make(map[string]int)
	for file, count := range eh.fileErrors {
		fileCounts[file] = count
	}
	return fileCounts
}
