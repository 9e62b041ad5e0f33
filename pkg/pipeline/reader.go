// pkg/pipeline/reader.go
package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jaysh0/retail-warehouse/pkg/model"
)

// byteOrderMark is the UTF-8 BOM some exports prepend
var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// ErrMissingHeader reports a source file with no header row
var ErrMissingHeader = errors.New("missing header row")

// RowSource produces raw records from a source file. Next returns io.EOF
// when the file is exhausted.
type RowSource interface {
	Header() []string
	Next() (model.RawRecord, error)
	Close() error
}

// CSVSource reads raw records from a CSV file. The first row is the
// header and names the columns; data rows are indexed from zero. Short
// rows leave their trailing columns empty and extra cells are dropped.
type CSVSource struct {
	ctx      context.Context
	file     *os.File
	reader   *csv.Reader
	header   []string
	size     int64
	rowIndex int
}

// OpenCSV opens a CSV source file. A UTF-8 byte order mark is stripped
// and the header row is read eagerly so column problems surface before
// any data is processed.
func OpenCSV(ctx context.Context, path string) (*CSVSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	buffered := bufio.NewReader(file)
	if prefix, err := buffered.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		buffered.Discard(len(byteOrderMark))
	}

	reader := csv.NewReader(buffered)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err != nil {
		file.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: %w", path, ErrMissingHeader)
		}
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}

	return &CSVSource{
		ctx:    ctx,
		file:   file,
		reader: reader,
		header: header,
		size:   info.Size(),
	}, nil
}

// WithHeaderAliases renames header columns in place, e.g. the legacy
// sub_category spelling to subcategory. Call before the first Next.
func (s *CSVSource) WithHeaderAliases(aliases map[string]string) *CSVSource {
	for i, col := range s.header {
		if renamed, ok := aliases[col]; ok {
			s.header[i] = renamed
		}
	}
	return s
}

// Header returns the column names in file order
func (s *CSVSource) Header() []string {
	return s.header
}

// Size returns the file size in bytes
func (s *CSVSource) Size() int64 {
	return s.size
}

// Next returns the next data row. Cancellation is checked between rows
// so a stuck run stops at a row boundary.
func (s *CSVSource) Next() (model.RawRecord, error) {
	if err := s.ctx.Err(); err != nil {
		return model.RawRecord{}, err
	}

	cells, err := s.reader.Read()
	if err != nil {
		return model.RawRecord{}, err
	}

	fields := make(map[string]string, len(s.header))
	for i, col := range s.header {
		if i < len(cells) {
			fields[col] = cells[i]
		} else {
			fields[col] = ""
		}
	}

	record := model.RawRecord{
		RowIndex: s.rowIndex,
		Columns:  s.header,
		Fields:   fields,
	}
	s.rowIndex++
	return record, nil
}

// Close releases the underlying file
func (s *CSVSource) Close() error {
	return s.file.Close()
}
