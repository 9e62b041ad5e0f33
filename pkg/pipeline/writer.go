// pkg/pipeline/writer.go
package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/convert"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// columnDecimals maps each numeric field to the precision its cleaning
// rule rounds to, so the cleaned file prints what the warehouse stores
func columnDecimals(cfg *config.CleaningConfig) map[string]int {
	decimals := make(map[string]int)
	for _, field := range cfg.Prices.Fields {
		decimals[field] = cfg.Prices.DecimalPlaces
	}
	if cfg.Ratings.Field != "" {
		decimals[cfg.Ratings.Field] = cfg.Ratings.DecimalPlaces
	}
	return decimals
}

// CleanedWriter writes accepted records as canonical CSV. The column
// order is fixed at creation and the header row is written immediately.
type CleanedWriter struct {
	file     *os.File
	writer   *csv.Writer
	columns  []string
	opts     convert.CellOptions
	decimals map[string]int
}

// NewCleanedWriter creates the cleaned output file and writes its header
func NewCleanedWriter(path string, columns []string) (*CleanedWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(columns); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to write header of %s: %w", path, err)
	}

	return &CleanedWriter{
		file:    file,
		writer:  writer,
		columns: columns,
		opts:    convert.DefaultCellOptions(),
	}, nil
}

// WithColumnDecimals fixes the printed precision of specific columns
func (w *CleanedWriter) WithColumnDecimals(decimals map[string]int) *CleanedWriter {
	w.decimals = decimals
	return w
}

// Write serializes one accepted record in the writer's column order
func (w *CleanedWriter) Write(rec model.CleanedRecord) error {
	cells := make([]string, len(w.columns))
	for i, col := range w.columns {
		opts := w.opts
		if d, ok := w.decimals[col]; ok {
			opts.Decimals = d
		}
		cells[i] = convert.CSVCell(rec.Get(col), opts)
	}
	return w.writer.Write(cells)
}

// Close flushes buffered rows and closes the file
func (w *CleanedWriter) Close() error {
	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// RejectWriter writes dropped rows verbatim so they can be inspected and
// replayed. The file is only created when the first reject arrives; a
// clean run leaves nothing behind.
type RejectWriter struct {
	path    string
	columns []string
	file    *os.File
	writer  *csv.Writer
	rows    int
}

// NewRejectWriter prepares a reject sink for the given path
func NewRejectWriter(path string, columns []string) *RejectWriter {
	return &RejectWriter{path: path, columns: columns}
}

// Write appends one rejected raw row, creating the file on first use
func (w *RejectWriter) Write(raw model.RawRecord) error {
	if w.file == nil {
		file, err := os.Create(w.path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", w.path, err)
		}
		w.file = file
		w.writer = csv.NewWriter(file)
		if err := w.writer.Write(w.columns); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", w.path, err)
		}
	}

	cells := make([]string, len(w.columns))
	for i, col := range w.columns {
		cells[i] = raw.Fields[col]
	}
	w.rows++
	return w.writer.Write(cells)
}

// Rows returns how many rejects were written
func (w *RejectWriter) Rows() int {
	return w.rows
}

// Close flushes and closes the reject file if it was ever created
func (w *RejectWriter) Close() error {
	if w.file == nil {
		return nil
	}
	w.writer.Flush()
	flushErr := w.writer.Error()
	closeErr := w.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// WriteRunReport serializes a cleaning report as indented JSON. Map keys
// sort on marshal, so the same input bytes always produce the same
// report bytes.
func WriteRunReport(path string, report *model.RunReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ArtifactPaths derives the output paths for one source file: the
// cleaned data, the reject file and the cleaning report all share the
// source base name.
type ArtifactPaths struct {
	Cleaned  string
	Rejected string
	Report   string
}

// ArtifactsFor builds the artifact paths for a source file in outputDir
func ArtifactsFor(outputDir, sourcePath string) ArtifactPaths {
	base := filepath.Base(sourcePath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return ArtifactPaths{
		Cleaned:  filepath.Join(outputDir, stem+".cleaned.csv"),
		Rejected: filepath.Join(outputDir, stem+".rejected.csv"),
		Report:   filepath.Join(outputDir, stem+".report.json"),
	}
}
