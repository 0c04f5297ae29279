// Package tripfile reads and writes the delimited-text trip files: raw
// per-city exports with a header row, and condensed summaries with the fixed
// duration,month,hour,day_of_week,user_type header.
package tripfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"bikeshare-platform/internal/models"
)

// Spreadsheet exports sometimes prefix the header with a byte order mark.
const utf8BOM = "\ufeff"

// RawReader yields raw records in file order, keyed by the header row.
type RawReader struct {
	reader *csv.Reader
	header []string
	line   int
}

// NewRawReader consumes the header row of r.
func NewRawReader(r io.Reader) (*RawReader, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = false

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	return &RawReader{
		reader: reader,
		header: header,
		line:   1,
	}, nil
}

// Header returns the column names in file order.
func (r *RawReader) Header() []string {
	return append([]string(nil), r.header...)
}

// Line is the 1-based line of the last row returned, counting the header.
func (r *RawReader) Line() int {
	return r.line
}

// Next returns the next record or io.EOF. A malformed row yields a
// *models.ParseError; reading may continue after it.
func (r *RawReader) Next() (models.RawTripRecord, error) {
	fields, err := r.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.line++
	if err != nil {
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			return nil, &models.ParseError{Field: fmt.Sprintf("line %d", csvErr.Line), Err: csvErr.Err}
		}
		return nil, fmt.Errorf("failed to read line %d: %w", r.line, err)
	}

	record := make(models.RawTripRecord, len(r.header))
	for i, name := range r.header {
		record[name] = fields[i]
	}
	return record, nil
}
