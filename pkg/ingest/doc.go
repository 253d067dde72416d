// Package ingest loads tabular recipient data, normalizes and deduplicates it,
// and partitions the rows into validated records and rejected rows.
//
// Any row iterator that yields a header record followed by data records can
// be ingested; *csv.Reader satisfies Source directly, and NewCSVSource adds
// BOM and UTF-16 handling on top of it:
//
//	res, err := ingest.Ingest(ingest.NewCSVSource(file))
//	if errors.Is(err, ingest.ErrMissingColumn) {
//		// the file has no email column
//	}
//	for _, row := range res.Invalid {
//		log.Println(row.RowIndex, row.Errors)
//	}
//
// # Normalization
//
// Column names are trimmed, NFKC-normalized and lowercased. Cell values are
// trimmed. Rows with an empty email are dropped as blank lines, and rows
// repeating an earlier email are dropped as duplicates; neither is reported
// as invalid, but both are counted on the Result.
//
// Row indexes are zero-based and count data rows only, so the first record
// after the header has index 0.
package ingest
