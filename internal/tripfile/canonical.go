package tripfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"bikeshare-platform/internal/models"
)

// CanonicalWriter appends condensed trips as rows under the fixed header.
type CanonicalWriter struct {
	writer *csv.Writer
	count  int
}

// NewCanonicalWriter writes the header row to w.
func NewCanonicalWriter(w io.Writer) (*CanonicalWriter, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(models.CanonicalHeader[:]); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &CanonicalWriter{writer: writer}, nil
}

// Write appends one trip. Rows are buffered until Flush.
func (w *CanonicalWriter) Write(trip *models.CanonicalTrip) error {
	if err := w.writer.Write(FormatTrip(trip)); err != nil {
		return fmt.Errorf("failed to write record %d: %w", w.count, err)
	}
	w.count++
	return nil
}

// Flush writes buffered rows to the underlying writer.
func (w *CanonicalWriter) Flush() error {
	w.writer.Flush()
	return w.writer.Error()
}

// Count is the number of trips written so far.
func (w *CanonicalWriter) Count() int {
	return w.count
}

// FormatTrip renders a trip in header order. Durations use the shortest
// decimal form that parses back to the same float64.
func FormatTrip(trip *models.CanonicalTrip) []string {
	return []string{
		strconv.FormatFloat(trip.DurationMinutes, 'f', -1, 64),
		strconv.Itoa(trip.Month),
		strconv.Itoa(trip.Hour),
		trip.DayOfWeek,
		trip.UserType,
	}
}

// ParseTrip is the inverse of FormatTrip.
func ParseTrip(fields []string) (*models.CanonicalTrip, error) {
	if len(fields) != len(models.CanonicalHeader) {
		return nil, &models.ParseError{
			Field: "row",
			Value: strings.Join(fields, ","),
			Err:   fmt.Errorf("expected %d fields, got %d", len(models.CanonicalHeader), len(fields)),
		}
	}

	duration, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil, &models.ParseError{Field: "duration", Value: fields[0], Err: unwrapNumError(err)}
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) {
		return nil, &models.ParseError{Field: "duration", Value: fields[0], Err: errNotFinite}
	}
	month, err := strconv.Atoi(fields[1])
	if err != nil {
		return nil, &models.ParseError{Field: "month", Value: fields[1], Err: unwrapNumError(err)}
	}
	if month < 1 || month > 12 {
		return nil, &models.ValidationError{Field: "month", Value: fields[1], Message: "month must be between 1 and 12"}
	}
	hour, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, &models.ParseError{Field: "hour", Value: fields[2], Err: unwrapNumError(err)}
	}
	if hour < 0 || hour > 23 {
		return nil, &models.ValidationError{Field: "hour", Value: fields[2], Message: "hour must be between 0 and 23"}
	}
	if _, ok := models.WeekdayIndex(fields[3]); !ok {
		return nil, &models.ValidationError{Field: "day_of_week", Value: fields[3], Message: "unknown weekday"}
	}

	return &models.CanonicalTrip{
		DurationMinutes: duration,
		Month:           month,
		Hour:            hour,
		DayOfWeek:       fields[3],
		UserType:        fields[4],
	}, nil
}

// CanonicalReader reads condensed summary rows back into trips.
type CanonicalReader struct {
	reader *csv.Reader
	line   int
}

// NewCanonicalReader checks that r starts with the canonical header.
func NewCanonicalReader(r io.Reader) (*CanonicalReader, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(models.CanonicalHeader)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	for i, name := range models.CanonicalHeader {
		if header[i] != name {
			return nil, &models.ValidationError{
				Field:   "header",
				Value:   strings.Join(header, ","),
				Message: fmt.Sprintf("unexpected summary header column %d: %q, want %q", i, header[i], name),
			}
		}
	}

	return &CanonicalReader{reader: reader, line: 1}, nil
}

// Next returns the next trip or io.EOF.
func (r *CanonicalReader) Next() (*models.CanonicalTrip, error) {
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

	trip, err := ParseTrip(fields)
	if err != nil {
		return nil, fmt.Errorf("line %d: %w", r.line, err)
	}
	return trip, nil
}

var errNotFinite = errors.New("duration is not a finite number")

func unwrapNumError(err error) error {
	var numErr *strconv.NumError
	if errors.As(err, &numErr) {
		return numErr.Err
	}
	return err
}
