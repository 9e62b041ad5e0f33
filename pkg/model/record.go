// pkg/model/record.go
package model

// RawRecord is one source CSV row exactly as read: untyped text keyed by
// column name. Immutable once constructed; the Columns slice is shared
// with the file header and must not be modified.
type RawRecord struct {
	RowIndex int               // 0-based data row index within the source file
	Columns  []string          // column names in file order
	Fields   map[string]string // column name → raw cell text
}

// Get returns the raw cell text for a column and whether the column exists
func (r RawRecord) Get(col string) (string, bool) {
	s, ok := r.Fields[col]
	return s, ok
}

// CleanedRecord is the typed projection of a RawRecord. Each field holds
// its canonical type or the explicit missing marker. It carries the
// originating row index for traceability but does not own the RawRecord.
type CleanedRecord struct {
	RowIndex   int              // row index of the originating RawRecord
	SourceFile string           // base name of the originating file
	Columns    []string         // column names in file order
	Fields     map[string]Value // column name → cleaned value
}

// Get returns the cleaned value for a column, or the missing marker if
// the column is absent
func (c CleanedRecord) Get(col string) Value {
	if v, ok := c.Fields[col]; ok {
		return v
	}
	return MissingValue()
}

// Set stores a cleaned value for a column
func (c *CleanedRecord) Set(col string, v Value) {
	c.Fields[col] = v
}
