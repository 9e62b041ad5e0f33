// pkg/pipeline/worker.go
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/cleaner"
	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/connector"
	"github.com/jaysh0/retail-warehouse/pkg/model"
	"github.com/jaysh0/retail-warehouse/pkg/warehouse"
)

// WorkerState represents the current state of a worker
type WorkerState string

const (
	WorkerStateIdle      WorkerState = "idle"
	WorkerStateWorking   WorkerState = "working"
	WorkerStateCompleted WorkerState = "completed"
)

// catalogHeaderAliases folds legacy catalog column spellings onto the
// warehouse names
var catalogHeaderAliases = map[string]string{
	"sub_category": "subcategory",
}

// Worker processes file jobs: clean always, load when a connection is
// present
type Worker struct {
	ID           int
	cfg          *config.Config
	conn         connector.DatabaseConnector // nil when cleaning only
	schema       string
	errorHandler *ErrorHandler
	logger       *zap.Logger
	state        WorkerState
	currentJob   *FileJob
	stateLock    sync.RWMutex
}

// NewWorker creates a new worker
func NewWorker(
	id int,
	cfg *config.Config,
	conn connector.DatabaseConnector,
	errorHandler *ErrorHandler,
	logger *zap.Logger,
) *Worker {
	schema := ""
	if cfg.Postgres != nil {
		schema = cfg.Postgres.Schema
	}
	return &Worker{
		ID:           id,
		cfg:          cfg,
		conn:         conn,
		schema:       schema,
		errorHandler: errorHandler,
		logger:       logger.With(zap.Int("workerID", id)),
		state:        WorkerStateIdle,
	}
}

// GetState returns the current state of the worker
func (w *Worker) GetState() WorkerState {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.state
}

// setState updates the worker state
func (w *Worker) setState(state WorkerState) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()

	prevState := w.state
	w.state = state

	if prevState != state {
		w.logger.Debug("Worker state changed",
			zap.String("from", string(prevState)),
			zap.String("to", string(state)))
	}
}

// GetCurrentJob returns the job currently being processed
func (w *Worker) GetCurrentJob() *FileJob {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.currentJob
}

func (w *Worker) setCurrentJob(job *FileJob) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()
	w.currentJob = job
}

// Start begins the worker processing loop
func (w *Worker) Start(ctx context.Context, jobs <-chan FileJob, results chan<- FileResult) {
	w.setState(WorkerStateWorking)
	w.logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping due to context cancellation")
			w.setState(WorkerStateCompleted)
			return

		case job, ok := <-jobs:
			if !ok {
				// Channel closed, no more jobs
				w.logger.Info("Worker stopping due to closed job channel")
				w.setState(WorkerStateCompleted)
				return
			}

			w.logger.Info("Received job",
				zap.String("file", job.Path),
				zap.String("kind", string(job.Kind)),
				zap.Int("retryCount", job.RetryCount))

			result := w.ProcessJob(ctx, job)

			select {
			case results <- result:
				// Result sent successfully
			case <-ctx.Done():
				w.logger.Warn("Context cancelled while sending result",
					zap.String("file", job.Path))
				w.setState(WorkerStateCompleted)
				return
			}
		}
	}
}

// ProcessJob processes a single file job
func (w *Worker) ProcessJob(ctx context.Context, job FileJob) FileResult {
	w.setCurrentJob(&job)
	w.setState(WorkerStateWorking)

	result := NewFileResult(job, w.ID)
	startTime := time.Now()

	w.logger.Info("Starting file",
		zap.String("file", job.Path),
		zap.String("kind", string(job.Kind)),
		zap.Int("retryCount", job.RetryCount))

	success := w.processFile(ctx, job, result)

	result.Complete(success)
	result.Duration = time.Since(startTime)

	if success {
		w.logger.Info("File completed",
			zap.String("file", job.Path),
			zap.Int("rowsAccepted", result.RowsAccepted),
			zap.Int("factsUpserted", result.FactsUpserted),
			zap.Duration("duration", result.Duration))
	} else {
		w.logger.Warn("File failed",
			zap.String("file", job.Path),
			zap.Int("errors", len(result.Errors)),
			zap.Duration("duration", result.Duration))
	}

	w.setCurrentJob(nil)
	w.setState(WorkerStateIdle)

	return *result
}

// processFile runs the clean pass and, when a connection is present, the
// warehouse load for one file
func (w *Worker) processFile(ctx context.Context, job FileJob, result *FileResult) bool {
	src, err := OpenCSV(ctx, job.Path)
	if err != nil {
		record := NewErrorRecord(err, w.errorHandler.CategorizeError(err)).WithFile(job.Path)
		w.errorHandler.RecordError(record)
		result.AddError(record)
		return false
	}
	defer src.Close()

	if job.Kind == FileKindCatalog {
		src.WithHeaderAliases(catalogHeaderAliases)
	}
	result.BytesRead = src.Size()

	// Column mismatches fail this file only; the rules document itself
	// was validated when the manager was built
	if err := job.Cleaning.Validate(src.Header()); err != nil {
		record := NewErrorRecord(err, ErrorCategoryFile).WithFile(job.Path)
		w.errorHandler.RecordError(record)
		result.AddError(record)
		return false
	}

	recordCleaner, err := cleaner.NewRecordCleaner(job.Cleaning)
	if err != nil {
		record := NewErrorRecord(err, w.errorHandler.CategorizeError(err)).WithFile(job.Path)
		w.errorHandler.RecordError(record)
		result.AddError(record)
		return false
	}

	artifacts := ArtifactsFor(w.cfg.OutputDir, job.Path)
	cleanedWriter, err := NewCleanedWriter(artifacts.Cleaned, src.Header())
	if err != nil {
		record := NewErrorRecord(err, ErrorCategorySystem).WithFile(job.Path)
		w.errorHandler.RecordError(record)
		result.AddError(record)
		return false
	}
	cleanedWriter.WithColumnDecimals(columnDecimals(job.Cleaning))
	rejectWriter := NewRejectWriter(artifacts.Rejected, src.Header())

	orch := NewOrchestrator(src, recordCleaner, job.Cleaning, job.SourceName()).
		WithRejectSink(rejectWriter)

	var loader *warehouse.FactLoader
	loading := w.conn != nil
	if loading && job.Kind == FileKindTransactions {
		resolver := warehouse.NewDimensionResolver(w.conn, w.schema, w.cfg.FiscalYearStart).
			WithTimeout(w.cfg.OperationTimeout)
		loader = warehouse.NewFactLoader(w.conn, w.schema, resolver, job.SourceName()).
			WithBatchSize(w.cfg.BatchSize).
			WithRetryDelay(w.cfg.RetryDelay).
			WithTimeout(w.cfg.OperationTimeout)
	}

	products, ok := w.drain(ctx, job, result, orch, cleanedWriter, loader, loading)

	if err := cleanedWriter.Close(); err != nil && ok {
		record := NewErrorRecord(err, ErrorCategorySystem).WithFile(job.Path)
		w.errorHandler.RecordError(record)
		result.AddError(record)
		ok = false
	}
	if err := rejectWriter.Close(); err != nil && ok {
		record := NewErrorRecord(err, ErrorCategorySystem).WithFile(job.Path)
		w.errorHandler.RecordError(record)
		result.AddError(record)
		ok = false
	}

	report := orch.Report()
	result.Report = report
	result.RowsRead = report.RowsRead
	result.RowsAccepted = report.RowsAccepted
	result.RowsRejected = report.RowsRejected
	result.DuplicatesRemoved = report.DuplicatesRemoved
	result.CleanedPath = artifacts.Cleaned
	result.ReportPath = artifacts.Report
	if rejectWriter.Rows() > 0 {
		result.RejectedPath = artifacts.Rejected
	}

	// The report is written even for failed files so partial progress
	// stays inspectable
	if err := WriteRunReport(artifacts.Report, report); err != nil {
		record := NewErrorRecord(err, ErrorCategorySystem).WithFile(job.Path)
		w.errorHandler.RecordError(record)
		result.AddError(record)
		ok = false
	}

	// A failed file still surfaces whatever the loader committed before
	// the failure; a retried file re-upserts the same keys
	if loader != nil && !ok {
		loadReport, _ := loader.Finish(ctx)
		result.Load = loadReport
		result.FactsUpserted = loadReport.FactsUpserted
	}

	if !ok || !loading {
		return ok
	}

	switch job.Kind {
	case FileKindTransactions:
		loadReport, err := loader.Finish(ctx)
		result.Load = loadReport
		result.FactsUpserted = loadReport.FactsUpserted
		if err != nil {
			record := NewErrorRecord(err, w.errorHandler.CategorizeError(err)).WithFile(job.Path)
			w.errorHandler.RecordError(record)
			result.AddError(record)
			return false
		}

		verifier := warehouse.NewVerifier(w.conn, w.schema).WithTimeout(w.cfg.OperationTimeout)
		if matches, count, err := verifier.VerifySourceFileCount(ctx, job.SourceName(), loadReport.FactsUpserted); err != nil {
			result.AddWarning(fmt.Sprintf("count verification failed: %v", err))
		} else if !matches {
			result.AddWarning(fmt.Sprintf("fact table holds %d rows for %s, load reported %d",
				count, job.SourceName(), loadReport.FactsUpserted))
		}

	case FileKindCatalog:
		catalogLoader := warehouse.NewCatalogLoader(w.conn, w.schema).
			WithTimeout(w.cfg.OperationTimeout)
		n, err := catalogLoader.Load(ctx, products)
		result.ProductsUpserted = n
		if err != nil {
			record := NewErrorRecord(err, w.errorHandler.CategorizeError(err)).WithFile(job.Path)
			w.errorHandler.RecordError(record)
			result.AddError(record)
			return false
		}
	}

	return true
}

// drain pulls every accepted record out of the orchestrator, writing the
// cleaned file and feeding the loader as it goes
func (w *Worker) drain(
	ctx context.Context,
	job FileJob,
	result *FileResult,
	orch *Orchestrator,
	cleanedWriter *CleanedWriter,
	loader *warehouse.FactLoader,
	loading bool,
) ([]model.ProductRow, bool) {
	var products []model.ProductRow

	for {
		rec, ok, err := orch.Next()
		if err != nil {
			record := NewErrorRecord(err, w.errorHandler.CategorizeError(err)).WithFile(job.Path)
			switch w.errorHandler.HandleError(record) {
			case ActionContinue, ActionSkipRow:
				result.AddWarning(record.String())
				continue
			default:
				result.AddError(record)
				return products, false
			}
		}
		if !ok {
			return products, true
		}

		if err := cleanedWriter.Write(rec); err != nil {
			record := NewErrorRecord(err, ErrorCategorySystem).WithFile(job.Path).WithRowIndex(rec.RowIndex)
			w.errorHandler.RecordError(record)
			result.AddError(record)
			return products, false
		}

		if loading && job.Kind == FileKindCatalog {
			if row, loadable := warehouse.ProductFromRecord(rec); loadable {
				products = append(products, row)
			}
		}

		if loader != nil {
			if err := loader.Append(ctx, rec); err != nil {
				record := NewErrorRecord(err, w.errorHandler.CategorizeError(err)).
					WithFile(job.Path).
					WithRowIndex(rec.RowIndex)
				switch w.errorHandler.HandleError(record) {
				case ActionContinue, ActionSkipRow:
					result.AddWarning(record.String())
					continue
				default:
					result.AddError(record)
					return products, false
				}
			}
		}
	}
}
