package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/dmitrymomot/mailmerge/pkg/recipient"
)

// ValidRow is a record that passed validation, tagged with its source index.
type ValidRow struct {
	Record   recipient.Record
	RowIndex int
}

// MarshalJSON flattens the record and adds the row index.
func (v ValidRow) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(v.Record)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	fields["row_index"] = v.RowIndex
	return json.Marshal(fields)
}

// InvalidRow is a row that failed validation.
type InvalidRow struct {
	Data     recipient.RawRow      `json:"data"`
	Errors   recipient.FieldErrors `json:"errors"`
	RowIndex int                   `json:"row_index"`
}

// Result partitions the ingested rows.
// Total equals len(Valid) + len(Invalid) + Blank + Duplicates.
type Result struct {
	Valid      []ValidRow   `json:"valid_rows"`
	Invalid    []InvalidRow `json:"invalid_rows"`
	Total      int          `json:"total_rows"`
	Blank      int          `json:"blank_rows"`
	Duplicates int          `json:"duplicate_rows"`
}

// Records returns the validated records in source order.
func (r *Result) Records() []recipient.Record {
	records := make([]recipient.Record, len(r.Valid))
	for i, v := range r.Valid {
		records[i] = v.Record
	}
	return records
}

// Ingest reads every record from src and partitions them.
// Structural problems (no header, no email column, unparsable input) are
// returned as errors with no partial result; row-level validation failures
// are reported in Result.Invalid.
func Ingest(src Source) (*Result, error) {
	header, err := src.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrMalformedSource, err)
	}

	columns := normalizeHeader(header)
	if !containsColumn(columns, recipient.FieldEmail) {
		present := make([]string, 0, len(columns))
		for _, c := range columns {
			if c != "" {
				present = append(present, c)
			}
		}
		return nil, &MissingColumnError{Column: recipient.FieldEmail, Columns: present}
	}

	res := &Result{
		Valid:   []ValidRow{},
		Invalid: []InvalidRow{},
	}
	seen := make(map[string]struct{})

	for idx := 0; ; idx++ {
		record, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: data row %d: %w", ErrMalformedSource, idx, err)
		}
		res.Total++

		row := toRawRow(columns, record)
		email := row[recipient.FieldEmail]
		if email == "" {
			res.Blank++
			continue
		}
		if _, dup := seen[email]; dup {
			res.Duplicates++
			continue
		}
		seen[email] = struct{}{}

		rec, err := recipient.Validate(row)
		if err != nil {
			var fe recipient.FieldErrors
			if !errors.As(err, &fe) {
				return nil, err
			}
			res.Invalid = append(res.Invalid, InvalidRow{RowIndex: idx, Errors: fe, Data: row})
			continue
		}
		res.Valid = append(res.Valid, ValidRow{RowIndex: idx, Record: rec})
	}

	return res, nil
}

// IngestCSV is shorthand for Ingest(NewCSVSource(r)).
func IngestCSV(r io.Reader) (*Result, error) {
	return Ingest(NewCSVSource(r))
}

// NormalizeColumn trims, NFKC-normalizes and lowercases a column name.
func NormalizeColumn(name string) string {
	return strings.ToLower(norm.NFKC.String(strings.TrimSpace(name)))
}

// normalizeHeader returns normalized names; a repeated name is blanked so
// that the first column carrying it wins.
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		name := NormalizeColumn(h)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		columns[i] = name
	}
	return columns
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}
	return false
}

func toRawRow(columns, record []string) recipient.RawRow {
	row := make(recipient.RawRow, len(columns))
	for i, col := range columns {
		if col == "" {
			continue
		}
		var value string
		if i < len(record) {
			value = strings.TrimSpace(record[i])
		}
		row[col] = value
	}
	return row
}
