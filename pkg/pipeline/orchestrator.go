// pkg/pipeline/orchestrator.go
package pipeline

import (
	"errors"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jaysh0/retail-warehouse/pkg/cleaner"
	"github.com/jaysh0/retail-warehouse/pkg/config"
	"github.com/jaysh0/retail-warehouse/pkg/convert"
	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// RawSink receives rejected raw rows
type RawSink interface {
	Write(model.RawRecord) error
}

// Orchestrator pulls raw rows through the cleaner in a single pass:
// clean, reject, dedup, count. Accepted records come out one at a time
// so the caller can stream them anywhere without buffering the file.
type Orchestrator struct {
	src        RowSource
	cleaner    *cleaner.RecordCleaner
	cfg        *config.CleaningConfig
	sourceFile string
	report     *model.RunReport
	seen       map[string]struct{}
	rejects    RawSink
	logger     *zap.Logger
	done       bool
}

// NewOrchestrator wires a source to a cleaner for one file
func NewOrchestrator(src RowSource, rc *cleaner.RecordCleaner, cfg *config.CleaningConfig, sourceFile string) *Orchestrator {
	return &Orchestrator{
		src:        src,
		cleaner:    rc,
		cfg:        cfg,
		sourceFile: sourceFile,
		report:     model.NewRunReport(sourceFile, cfg.Name),
		seen:       make(map[string]struct{}),
		logger:     zap.L().Named("orchestrator").With(zap.String("source_file", sourceFile)),
	}
}

// WithRejectSink routes dropped raw rows to the given sink
func (o *Orchestrator) WithRejectSink(sink RawSink) *Orchestrator {
	o.rejects = sink
	return o
}

// Next returns the next accepted record. ok is false once the source is
// exhausted; from that point the report is final.
func (o *Orchestrator) Next() (model.CleanedRecord, bool, error) {
	if o.done {
		return model.CleanedRecord{}, false, nil
	}

	for {
		raw, err := o.src.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				o.done = true
				o.logger.Info("Cleaning pass complete",
					zap.Int("rows_read", o.report.RowsRead),
					zap.Int("rows_accepted", o.report.RowsAccepted),
					zap.Int("rows_rejected", o.report.RowsRejected),
					zap.Int("duplicates_removed", o.report.DuplicatesRemoved))
				return model.CleanedRecord{}, false, nil
			}
			return model.CleanedRecord{}, false, err
		}

		o.report.RowsRead++
		for _, col := range raw.Columns {
			if convert.IsNullToken(raw.Fields[col]) {
				o.report.MissingBefore[col]++
			}
		}

		rec, rowReport := o.cleaner.Clean(raw)
		rec.SourceFile = o.sourceFile
		o.report.Absorb(&rowReport)

		if rowReport.Dropped {
			o.report.RowsRejected++
			if o.rejects != nil {
				if err := o.rejects.Write(raw); err != nil {
					return model.CleanedRecord{}, false, err
				}
			}
			continue
		}

		if o.cfg.Dedup.Enabled {
			key := dedupKey(rec, o.cfg.Dedup.KeyFields)
			if _, dup := o.seen[key]; dup {
				o.report.DuplicatesRemoved++
				continue
			}
			o.seen[key] = struct{}{}
		}

		// Missing-after counts only cover rows that reach the output
		o.report.RowsAccepted++
		for _, col := range rec.Columns {
			if rec.Get(col).IsMissing() {
				o.report.MissingAfter[col]++
			}
		}
		return rec, true, nil
	}
}

// Report returns the run report being accumulated. It is final once
// Next has reported exhaustion.
func (o *Orchestrator) Report() *model.RunReport {
	return o.report
}

// dedupKey serializes the key fields of a cleaned record into the
// identity used for first-wins duplicate removal. Each value carries a
// kind tag so a missing value and an empty string stay distinct.
func dedupKey(rec model.CleanedRecord, fields []string) string {
	opts := convert.DefaultCellOptions()
	var sb strings.Builder
	for i, field := range fields {
		if i > 0 {
			sb.WriteByte(0x1f)
		}
		v := rec.Get(field)
		sb.WriteString(strconv.Itoa(int(v.Kind)))
		sb.WriteByte(':')
		sb.WriteString(convert.CSVCell(v, opts))
	}
	return sb.String()
}
