// Package source reads RunKeeper cardio activity exports.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/barrald/strava-uploader/pkg/domain/activity"
)

const (
	ColumnActivityID = "Activity Id"
	ColumnType       = "Type"
	ColumnDate       = "Date"
	ColumnDuration   = "Duration"
	ColumnNotes      = "Notes"
	ColumnGPXFile    = "GPX File"

	// DateLayout is the export's local timestamp format. It carries no zone.
	DateLayout = "2006-01-02 15:04:05"
)

var requiredColumns = []string{
	ColumnActivityID,
	ColumnType,
	ColumnDate,
	ColumnDuration,
	ColumnNotes,
	ColumnGPXFile,
}

var (
	ErrInputNotFound = errors.New("input file cannot be found")
	ErrMissingColumn = errors.New("missing required column")
)

// Record is one row of the export. Values are kept as exported text;
// Distance holds the value of the column bound by the reader's distance mode.
type Record struct {
	Line     int
	ID       string
	Type     string
	Date     string
	Duration string
	Distance string
	Notes    string
	GPXFile  string
}

// HasTrack reports whether the row references a companion track file.
func (r Record) HasTrack() bool {
	return strings.TrimSpace(r.GPXFile) != ""
}

// Reader yields export rows in file order.
type Reader struct {
	file    io.Closer
	csv     *csv.Reader
	index   map[string]int
	mode    activity.DistanceMode
	line    int
	headers []string
}

// Open opens an export file and validates its header.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.file = f
	return r, nil
}

// NewReader wraps an export stream. The header row is read immediately.
func NewReader(in io.Reader) (*Reader, error) {
	cr := csv.NewReader(in)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	headers, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	index := make(map[string]int, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		headers[i] = h
		index[h] = i
	}

	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, col)
		}
	}

	mode, err := activity.ResolveDistanceMode(headers)
	if err != nil {
		return nil, err
	}

	return &Reader{
		csv:     cr,
		index:   index,
		mode:    mode,
		line:    1,
		headers: headers,
	}, nil
}

// DistanceMode returns the distance mode bound from the header.
func (r *Reader) DistanceMode() activity.DistanceMode {
	return r.mode
}

// Headers returns the cleaned header row.
func (r *Reader) Headers() []string {
	return r.headers
}

// Next returns the next row, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	fields, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	r.line++

	get := func(col string) string {
		i, ok := r.index[col]
		if !ok || i >= len(fields) {
			return ""
		}
		return strings.TrimSpace(fields[i])
	}

	return Record{
		Line:     r.line,
		ID:       get(ColumnActivityID),
		Type:     get(ColumnType),
		Date:     get(ColumnDate),
		Duration: get(ColumnDuration),
		Distance: get(r.mode.Column),
		Notes:    get(ColumnNotes),
		GPXFile:  get(ColumnGPXFile),
	}, nil
}

// Close releases the underlying file, if any.
func (r *Reader) Close() error {
	if r.file == nil {
		return nil
	}
	return r.file.Close()
}

// ParseStart parses an export timestamp as a naive local time.
func ParseStart(text string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(text))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse start time %q: %w", text, err)
	}
	return t, nil
}
