// pkg/model/report.go
package model

// Actions recorded in report entries. The cleaner emits these; the run
// report aggregates them into its counters.
const (
	ActionParsed          = "parsed"             // value coerced to its canonical type
	ActionUnparseable     = "unparseable"        // no configured format matched
	ActionInvalid         = "invalid"            // parsed but outside the accepted domain, set missing
	ActionClamped         = "clamped"            // value pulled onto the configured bound
	ActionOutlierFlagged  = "outlier_flagged"    // anomalous value retained and annotated
	ActionDownscaled      = "downscaled"         // decimal-shift entry error corrected
	ActionNullFilled      = "null_filled"        // missing value replaced by the configured fill
	ActionCanonicalized   = "canonicalized"      // mapped onto a canonical label
	ActionUncanonicalized = "uncanonicalized"    // no alias matched, value passed through verbatim
	ActionRowDropped      = "row_dropped"        // drop_row policy triggered
)

// ReportEntry records one transformation or anomaly applied to a field
type ReportEntry struct {
	Field  string `json:"field"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// RowReport collects everything the cleaner did to a single row
type RowReport struct {
	RowIndex   int
	Entries    []ReportEntry
	Dropped    bool   // row excluded from output by a drop_row policy
	DropReason string // family that triggered the drop
}

// Add appends one entry to the row report
func (r *RowReport) Add(field, action, detail string) {
	r.Entries = append(r.Entries, ReportEntry{Field: field, Action: action, Detail: detail})
}

// Drop marks the row rejected. The first triggering family wins; later
// calls keep the original reason.
func (r *RowReport) Drop(family, detail string) {
	if !r.Dropped {
		r.Dropped = true
		r.DropReason = family
	}
	r.Add(family, ActionRowDropped, detail)
}

// SampleEntry is one retained row-level entry in the run report
type SampleEntry struct {
	RowIndex int    `json:"row_index"`
	Field    string `json:"field"`
	Action   string `json:"action"`
	Detail   string `json:"detail,omitempty"`
}

// maxSamplesPerKey bounds how many row-level entries the run report
// retains per (field, action) pair. Counters stay exact; only the
// per-row detail is sampled so reports stay small on large files.
const maxSamplesPerKey = 5

// RunReport is the deterministic per-file report artifact. It carries no
// timestamps so identical inputs produce byte-identical reports.
type RunReport struct {
	File              string         `json:"file"`
	Config            string         `json:"config"`
	RowsRead          int            `json:"rows_read"`
	RowsAccepted      int            `json:"rows_accepted"`
	RowsRejected      int            `json:"rows_rejected"`
	DuplicatesRemoved int            `json:"duplicates_removed"`
	OutliersFlagged   map[string]int `json:"outliers_flagged,omitempty"`
	NullFills         map[string]int `json:"null_fills,omitempty"`
	Uncanonicalized   map[string]int `json:"uncanonicalized,omitempty"`
	MissingBefore     map[string]int `json:"missing_before,omitempty"`
	MissingAfter      map[string]int `json:"missing_after,omitempty"`
	Samples           []SampleEntry  `json:"samples,omitempty"`

	sampleCounts map[string]int
}

// NewRunReport creates an empty report for one source file
func NewRunReport(file, configName string) *RunReport {
	return &RunReport{
		File:            file,
		Config:          configName,
		OutliersFlagged: make(map[string]int),
		NullFills:       make(map[string]int),
		Uncanonicalized: make(map[string]int),
		MissingBefore:   make(map[string]int),
		MissingAfter:    make(map[string]int),
		sampleCounts:    make(map[string]int),
	}
}

// Absorb folds one row report into the run-level aggregates and retains
// a bounded sample of its entries
func (r *RunReport) Absorb(row *RowReport) {
	for _, e := range row.Entries {
		switch e.Action {
		case ActionOutlierFlagged:
			r.OutliersFlagged[e.Field]++
		case ActionNullFilled:
			r.NullFills[e.Field]++
		case ActionUncanonicalized:
			r.Uncanonicalized[e.Field]++
		}
		key := e.Field + "\x00" + e.Action
		if r.sampleCounts[key] < maxSamplesPerKey {
			r.sampleCounts[key]++
			r.Samples = append(r.Samples, SampleEntry{
				RowIndex: row.RowIndex,
				Field:    e.Field,
				Action:   e.Action,
				Detail:   e.Detail,
			})
		}
	}
}

// LoadFailure describes the batch that ended a load
type LoadFailure struct {
	Batch    int    `json:"batch"`     // 0-based batch number
	FirstRow int    `json:"first_row"` // row index of the first record in the batch
	LastRow  int    `json:"last_row"`  // row index of the last record in the batch
	Attempts int    `json:"attempts"`
	Cause    string `json:"cause"`
}

// LoadReport summarizes one warehouse load. Emitted even when the load
// aborts so partial progress is always inspectable.
type LoadReport struct {
	SourceFile           string       `json:"source_file"`
	FactsUpserted        int          `json:"facts_upserted"`
	BatchesCommitted     int          `json:"batches_committed"`
	PlaceholderProducts  int          `json:"placeholder_products"`
	PlaceholderCustomers int          `json:"placeholder_customers"`
	TimeRowsCreated      int          `json:"time_rows_created"`
	Failure              *LoadFailure `json:"failure,omitempty"`
}
