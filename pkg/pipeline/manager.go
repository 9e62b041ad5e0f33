// pkg/pipeline/manager.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/connector"
)

// Manager orchestrates a pipeline run over a set of source files
type Manager struct {
	cfg          *config.Config
	conn         connector.DatabaseConnector // nil cleans without loading
	transactions *config.CleaningConfig
	catalog      *config.CleaningConfig
	errorHandler *ErrorHandler
	metrics      *PipelineMetrics
	logger       *zap.Logger
	workerCount  int
}

// NewManager creates a manager. conn may be nil for clean-only runs. A
// custom cleaning rules document from the configuration replaces the
// built-in transaction profile; catalog files always use the catalog
// profile.
func NewManager(cfg *config.Config, conn connector.DatabaseConnector, logger *zap.Logger) (*Manager, error) {
	transactions := config.DefaultCleaningConfig()
	if cfg.CleaningConfig != "" {
		loaded, err := config.LoadCleaningConfig(cfg.CleaningConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to load cleaning rules from %s: %w", cfg.CleaningConfig, err)
		}
		transactions = loaded
	}

	return &Manager{
		cfg:          cfg,
		conn:         conn,
		transactions: transactions,
		catalog:      config.DefaultCatalogConfig(),
		errorHandler: NewErrorHandler(logger),
		metrics:      NewPipelineMetrics(logger),
		logger:       logger,
		workerCount:  calculateWorkerCount(cfg.WorkerPoolSize),
	}, nil
}

// calculateWorkerCount resolves the pool size: the configured value
// wins, otherwise one worker per CPU capped at 8. The pool is always
// clamped to the file count at run time.
func calculateWorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	count := runtime.NumCPU()
	if count < 1 {
		count = 1
	}
	if count > 8 {
		count = 8
	}
	return count
}

// Metrics exposes the run metrics collector
func (m *Manager) Metrics() *PipelineMetrics {
	return m.metrics
}

// CleaningFor returns the cleaning profile used for a file kind
func (m *Manager) CleaningFor(kind FileKind) *config.CleaningConfig {
	if kind == FileKindCatalog {
		return m.catalog
	}
	return m.transactions
}

// Run cleans (and loads, when connected) the given files, inferring each
// file's kind from its name
func (m *Manager) Run(ctx context.Context, files []string) (*RunSummary, error) {
	jobs := make([]FileJob, 0, len(files))
	for _, file := range files {
		kind := KindForPath(file)
		jobs = append(jobs, NewFileJob(file, kind, m.CleaningFor(kind)))
	}
	return m.run(ctx, jobs)
}

// RunCatalog forces every file through the catalog profile regardless of
// its name
func (m *Manager) RunCatalog(ctx context.Context, files []string) (*RunSummary, error) {
	jobs := make([]FileJob, 0, len(files))
	for _, file := range files {
		jobs = append(jobs, NewFileJob(file, FileKindCatalog, m.catalog))
	}
	return m.run(ctx, jobs)
}

// run executes the jobs on a worker pool and collects the results.
// Fatal errors cancel the pool; everything else is per-file.
func (m *Manager) run(ctx context.Context, jobs []FileJob) (*RunSummary, error) {
	summary := NewRunSummary()
	if len(jobs) == 0 {
		summary.Complete()
		return summary, nil
	}

	if err := os.MkdirAll(m.cfg.OutputDir, 0o755); err != nil {
		return summary, fmt.Errorf("failed to create output directory %s: %w", m.cfg.OutputDir, err)
	}

	workerCount := m.workerCount
	if workerCount > len(jobs) {
		workerCount = len(jobs)
	}

	m.logger.Info("Starting pipeline run",
		zap.Int("files", len(jobs)),
		zap.Int("workers", workerCount),
		zap.Bool("loading", m.conn != nil))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Extra queue capacity leaves room for retried jobs
	jobQueue := make(chan FileJob, len(jobs)*2)
	resultQueue := make(chan FileResult, len(jobs)*2)

	pending := make(map[string]FileJob, len(jobs))
	for _, job := range jobs {
		pending[job.ID] = job
		jobQueue <- job
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		worker := NewWorker(i+1, m.cfg, m.conn, m.errorHandler, m.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker.Start(runCtx, jobQueue, resultQueue)
		}()
	}

	outstanding := len(jobs)
	aborted := false

	for outstanding > 0 && !aborted {
		select {
		case result := <-resultQueue:
			job := pending[result.JobID]

			// Transient file failures go back on the queue
			if !result.Success && job.IsRetryable() && retryableResult(result) && !m.errorHandler.ShouldAbortRun() {
				retried := job.Retry()
				pending[retried.ID] = retried
				m.logger.Warn("Retrying file",
					zap.String("file", retried.Path),
					zap.Int("retryCount", retried.RetryCount))
				jobQueue <- retried
				continue
			}

			outstanding--
			delete(pending, result.JobID)
			m.metrics.RecordFileResult(result)
			summary.AddFileResult(result)

			if !result.Success && m.errorHandler.ShouldAbortRun() {
				m.logger.Error("Aborting run after fatal error",
					zap.String("file", result.File))
				aborted = true
				cancel()
			}

		case <-runCtx.Done():
			aborted = true
		}
	}

	close(jobQueue)
	cancel()
	wg.Wait()

	summary.Complete()
	m.metrics.Complete()

	m.logger.Info("Pipeline run complete",
		zap.Int("files", summary.Files),
		zap.Int("succeeded", len(summary.SucceededFiles)),
		zap.Int("failed", len(summary.FailedFiles)),
		zap.Int64("rowsRead", summary.TotalRowsRead),
		zap.Int64("factsUpserted", summary.TotalFactsUpserted),
		zap.Duration("duration", summary.Duration))

	if err := ctx.Err(); err != nil {
		return summary, err
	}
	if aborted {
		return summary, errors.New("run aborted after fatal error")
	}
	return summary, nil
}

// retryableResult reports whether a failed result looks transient
func retryableResult(result FileResult) bool {
	if len(result.Errors) == 0 {
		return false
	}
	last := result.Errors[len(result.Errors)-1]
	return last.Error != nil && connector.IsRetryableError(last.Error)
}
