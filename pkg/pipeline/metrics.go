// pkg/pipeline/metrics.go
package pipeline

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ThroughputSample represents a point-in-time throughput measurement
type ThroughputSample struct {
	Timestamp     time.Time
	RowsPerSecond float64
	ActiveWorkers int
	MemoryUsageMB float64
}

// PipelineMetrics tracks metrics for a pipeline run
type PipelineMetrics struct {
	mu     sync.Mutex
	logger *zap.Logger

	StartTime time.Time
	EndTime   time.Time

	FilesSucceeded int
	FilesFailed    int

	TotalRowsRead          int64
	TotalRowsAccepted      int64
	TotalRowsRejected      int64
	TotalDuplicatesRemoved int64
	TotalFactsUpserted     int64
	TotalProductsUpserted  int64
	TotalBytesRead         int64

	TotalPlaceholderProducts  int64
	TotalPlaceholderCustomers int64
	TotalTimeRowsCreated      int64

	PeakMemoryUsage   int64
	ErrorCounts       map[ErrorCategory]int
	WorkerUtilization map[int]time.Duration
	ThroughputSamples []ThroughputSample
	sampleInterval    time.Duration
	lastSampleTime    time.Time
}

// NewPipelineMetrics creates a new metrics tracker
func NewPipelineMetrics(logger *zap.Logger) *PipelineMetrics {
	return &PipelineMetrics{
		StartTime:         time.Now(),
		ErrorCounts:       make(map[ErrorCategory]int),
		WorkerUtilization: make(map[int]time.Duration),
		ThroughputSamples: make([]ThroughputSample, 0),
		sampleInterval:    time.Second * 30, // Sample throughput every 30 seconds
		lastSampleTime:    time.Now(),
		logger:            logger,
	}
}

// RecordFileResult folds a completed file result into the run metrics
func (pm *PipelineMetrics) RecordFileResult(result FileResult) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.TotalRowsRead += int64(result.RowsRead)
	pm.TotalRowsAccepted += int64(result.RowsAccepted)
	pm.TotalRowsRejected += int64(result.RowsRejected)
	pm.TotalDuplicatesRemoved += int64(result.DuplicatesRemoved)
	pm.TotalFactsUpserted += int64(result.FactsUpserted)
	pm.TotalProductsUpserted += int64(result.ProductsUpserted)
	pm.TotalBytesRead += result.BytesRead

	if result.Load != nil {
		pm.TotalPlaceholderProducts += int64(result.Load.PlaceholderProducts)
		pm.TotalPlaceholderCustomers += int64(result.Load.PlaceholderCustomers)
		pm.TotalTimeRowsCreated += int64(result.Load.TimeRowsCreated)
	}

	if result.Success {
		pm.FilesSucceeded++
	} else {
		pm.FilesFailed++
	}
	for _, errRecord := range result.Errors {
		pm.ErrorCounts[errRecord.Category]++
	}

	pm.WorkerUtilization[result.WorkerID] += result.Duration

	now := time.Now()
	if now.Sub(pm.lastSampleTime) >= pm.sampleInterval {
		pm.takeThroughputSample()
		pm.lastSampleTime = now
	}

	if pm.logger != nil {
		pm.logger.Info("File processed",
			zap.String("file", result.File),
			zap.String("kind", string(result.Kind)),
			zap.Bool("success", result.Success),
			zap.Int("rows_read", result.RowsRead),
			zap.Int("rows_accepted", result.RowsAccepted),
			zap.Int("rows_rejected", result.RowsRejected),
			zap.Duration("duration", result.Duration),
			zap.Int("worker", result.WorkerID))
	}
}

// takeThroughputSample records a throughput sample point. Callers must
// hold the mutex.
func (pm *PipelineMetrics) takeThroughputSample() {
	elapsed := time.Since(pm.StartTime).Seconds()
	if elapsed <= 0 {
		return
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	if int64(memStats.Alloc) > pm.PeakMemoryUsage {
		pm.PeakMemoryUsage = int64(memStats.Alloc)
	}

	pm.ThroughputSamples = append(pm.ThroughputSamples, ThroughputSample{
		Timestamp:     time.Now(),
		RowsPerSecond: float64(pm.TotalRowsRead) / elapsed,
		ActiveWorkers: len(pm.WorkerUtilization),
		MemoryUsageMB: float64(memStats.Alloc) / (1024 * 1024),
	})
}

// Complete marks the run as complete and takes a final sample
func (pm *PipelineMetrics) Complete() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.EndTime = time.Now()
	pm.takeThroughputSample()

	if pm.logger != nil {
		pm.logger.Info("Pipeline run completed",
			zap.Duration("duration", pm.durationLocked()),
			zap.Int("files_succeeded", pm.FilesSucceeded),
			zap.Int("files_failed", pm.FilesFailed),
			zap.Int64("rows_read", pm.TotalRowsRead),
			zap.Int64("rows_accepted", pm.TotalRowsAccepted),
			zap.Int64("facts_upserted", pm.TotalFactsUpserted),
			zap.Float64("throughput", pm.throughputLocked()))
	}
}

// Duration returns the total duration of the run so far
func (pm *PipelineMetrics) Duration() time.Duration {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.durationLocked()
}

func (pm *PipelineMetrics) durationLocked() time.Duration {
	if pm.EndTime.IsZero() {
		return time.Since(pm.StartTime)
	}
	return pm.EndTime.Sub(pm.StartTime)
}

// CalculateThroughput calculates the rows/second throughput
func (pm *PipelineMetrics) CalculateThroughput() float64 {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.throughputLocked()
}

func (pm *PipelineMetrics) throughputLocked() float64 {
	seconds := pm.durationLocked().Seconds()
	if seconds <= 0 {
		return 0
	}
	return float64(pm.TotalRowsRead) / seconds
}

// GetWorkerEfficiency calculates per-worker active time as a share of
// the run duration
func (pm *PipelineMetrics) GetWorkerEfficiency() map[int]float64 {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.workerEfficiencyLocked()
}

func (pm *PipelineMetrics) workerEfficiencyLocked() map[int]float64 {
	efficiency := make(map[int]float64)
	total := pm.durationLocked()
	if total <= 0 {
		return efficiency
	}
	for workerID, active := range pm.WorkerUtilization {
		efficiency[workerID] = float64(active) / float64(total)
	}
	return efficiency
}

// GetErrorDistribution returns error distribution by category
func (pm *PipelineMetrics) GetErrorDistribution() map[ErrorCategory]float64 {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.errorDistributionLocked()
}

func (pm *PipelineMetrics) errorDistributionLocked() map[ErrorCategory]float64 {
	distribution := make(map[ErrorCategory]float64)
	totalErrors := 0
	for _, count := range pm.ErrorCounts {
		totalErrors += count
	}
	if totalErrors == 0 {
		return distribution
	}
	for category, count := range pm.ErrorCounts {
		distribution[category] = float64(count) / float64(totalErrors) * 100
	}
	return distribution
}

// formatBytes converts bytes to a human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// GenerateMetricsReport creates a detailed metrics report
func (pm *PipelineMetrics) GenerateMetricsReport() string {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	totalFiles := pm.FilesSucceeded + pm.FilesFailed
	report := fmt.Sprintf(`
Pipeline Metrics Report
=======================
Duration:                %s
Start Time:              %s
End Time:                %s

Files Summary
-------------
Total Files:             %d
Succeeded:               %d (%.1f%%)
Failed:                  %d (%.1f%%)

Rows Summary
------------
Rows Read:               %d
Rows Accepted:           %d
Rows Rejected:           %d
Duplicates Removed:      %d
Data Read:               %s
Average Throughput:      %.2f rows/sec

Warehouse Summary
-----------------
Facts Upserted:          %d
Products Upserted:       %d
Placeholder Products:    %d
Placeholder Customers:   %d
Time Rows Created:       %d

Resource Usage
--------------
Peak Memory Usage:       %s
`,
		formatDuration(pm.durationLocked()),
		pm.StartTime.Format(time.RFC3339),
		pm.EndTime.Format(time.RFC3339),

		totalFiles,
		pm.FilesSucceeded, percentage(float64(pm.FilesSucceeded), float64(totalFiles)),
		pm.FilesFailed, percentage(float64(pm.FilesFailed), float64(totalFiles)),

		pm.TotalRowsRead,
		pm.TotalRowsAccepted,
		pm.TotalRowsRejected,
		pm.TotalDuplicatesRemoved,
		formatBytes(pm.TotalBytesRead),
		pm.throughputLocked(),

		pm.TotalFactsUpserted,
		pm.TotalProductsUpserted,
		pm.TotalPlaceholderProducts,
		pm.TotalPlaceholderCustomers,
		pm.TotalTimeRowsCreated,

		formatBytes(pm.PeakMemoryUsage),
	)

	if len(pm.ErrorCounts) > 0 {
		report += "\nError Distribution\n------------------\n"
		for category, share := range pm.errorDistributionLocked() {
			report += fmt.Sprintf("- %s: %d (%.1f%%)\n", category.String(), pm.ErrorCounts[category], share)
		}
	}

	report += "\nWorker Efficiency\n-----------------\n"
	for workerID, eff := range pm.workerEfficiencyLocked() {
		report += fmt.Sprintf("- Worker %d: %.1f%% active time\n", workerID, eff*100)
	}

	return report
}

// percentage safely calculates a percentage, avoiding division by zero
func percentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// ToJSON serializes metrics to JSON
func (pm *PipelineMetrics) ToJSON() ([]byte, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	return json.Marshal(struct {
		Duration              string                    `json:"duration"`
		FilesSucceeded        int                       `json:"filesSucceeded"`
		FilesFailed           int                       `json:"filesFailed"`
		TotalRowsRead         int64                     `json:"totalRowsRead"`
		TotalRowsAccepted     int64                     `json:"totalRowsAccepted"`
		TotalRowsRejected     int64                     `json:"totalRowsRejected"`
		TotalFactsUpserted    int64                     `json:"totalFactsUpserted"`
		TotalProductsUpserted int64                     `json:"totalProductsUpserted"`
		TotalBytesRead        int64                     `json:"totalBytesRead"`
		Throughput            float64                   `json:"throughput"`
		ErrorDistribution     map[ErrorCategory]float64 `json:"errorDistribution"`
	}{
		Duration:              formatDuration(pm.durationLocked()),
		FilesSucceeded:        pm.FilesSucceeded,
		FilesFailed:           pm.FilesFailed,
		TotalRowsRead:         pm.TotalRowsRead,
		TotalRowsAccepted:     pm.TotalRowsAccepted,
		TotalRowsRejected:     pm.TotalRowsRejected,
		TotalFactsUpserted:    pm.TotalFactsUpserted,
		TotalProductsUpserted: pm.TotalProductsUpserted,
		TotalBytesRead:        pm.TotalBytesRead,
		Throughput:            pm.throughputLocked(),
		ErrorDistribution:     pm.errorDistributionLocked(),
	})
}
