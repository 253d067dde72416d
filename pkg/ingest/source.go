package ingest

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Source yields tabular records one at a time. The first record is the
// header; io.EOF signals the end of data.
type Source interface {
	Read() ([]string, error)
}

// NewCSVSource returns a CSV Source over r. A leading UTF-8 BOM is stripped,
// UTF-16 input marked with a BOM is transcoded, and records may have a
// varying number of fields. Stray quotes inside unquoted fields are kept
// as literal text.
func NewCSVSource(r io.Reader) Source {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}
