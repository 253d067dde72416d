package ingest_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/mailmerge/pkg/ingest"
	"github.com/dmitrymomot/mailmerge/pkg/recipient"
)

func TestIngest_PartitionsRows(t *testing.T) {
	t.Parallel()

	input := strings.Join([]string{
		" Email , First_Name,LAST_NAME,opt_out,company",
		"a@x.com,Alice,Smith,false,Acme",
		"not-an-email,Bob,,,",
		",Blank,Row,,",
		"c@x.com,Carol,,yes,",
		"a@x.com,Alice2,Dup,,",
		"d@x.com,Dan,,perhaps,",
	}, "\n")

	res, err := ingest.IngestCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Total)
	assert.Equal(t, 1, res.Blank)
	assert.Equal(t, 1, res.Duplicates)
	require.Len(t, res.Valid, 2)
	require.Len(t, res.Invalid, 2)
	assert.Equal(t, res.Total, len(res.Valid)+len(res.Invalid)+res.Blank+res.Duplicates)

	assert.Equal(t, 0, res.Valid[0].RowIndex)
	assert.Equal(t, "a@x.com", res.Valid[0].Record.Email())
	first, _ := res.Valid[0].Record.FirstName()
	assert.Equal(t, "Alice", first)

	assert.Equal(t, 3, res.Valid[1].RowIndex)
	assert.True(t, res.Valid[1].Record.OptOut())

	assert.Equal(t, 1, res.Invalid[0].RowIndex)
	assert.True(t, res.Invalid[0].Errors.Has(recipient.CodeInvalidEmail))
	assert.Equal(t, "Bob", res.Invalid[0].Data["first_name"])

	assert.Equal(t, 5, res.Invalid[1].RowIndex)
	assert.True(t, res.Invalid[1].Errors.Has(recipient.CodeInvalidOptOut))
}

func TestIngest_DeduplicatesOnTrimmedEmail(t *testing.T) {
	t.Parallel()

	input := "email,first_name\n a@x.com ,First\na@x.com,Second\n"

	res, err := ingest.IngestCSV(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, res.Valid, 1)
	assert.Equal(t, 1, res.Duplicates)
	first, _ := res.Valid[0].Record.FirstName()
	assert.Equal(t, "First", first)
}

func TestIngest_DuplicateInvalidRowReportedOnce(t *testing.T) {
	t.Parallel()

	input := "email\nbroken\nbroken\n"

	res, err := ingest.IngestCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Empty(t, res.Valid)
	require.Len(t, res.Invalid, 1)
	assert.Equal(t, 0, res.Invalid[0].RowIndex)
	assert.Equal(t, 1, res.Duplicates)
}

func TestIngest_MissingEmailColumn(t *testing.T) {
	t.Parallel()

	res, err := ingest.IngestCSV(strings.NewReader("name,phone\nAlice,123\n"))
	require.Error(t, err)
	assert.Nil(t, res)
	require.ErrorIs(t, err, ingest.ErrMissingColumn)

	var mce *ingest.MissingColumnError
	require.True(t, errors.As(err, &mce))
	assert.Equal(t, "email", mce.Column)
	assert.Equal(t, []string{"name", "phone"}, mce.Columns)
}

func TestIngest_EmptySource(t *testing.T) {
	t.Parallel()

	res, err := ingest.IngestCSV(strings.NewReader(""))
	require.ErrorIs(t, err, ingest.ErrNoHeader)
	assert.Nil(t, res)
}

func TestIngest_HeaderOnly(t *testing.T) {
	t.Parallel()

	res, err := ingest.IngestCSV(strings.NewReader("email,first_name\n"))
	require.NoError(t, err)
	assert.Empty(t, res.Valid)
	assert.Empty(t, res.Invalid)
	assert.Zero(t, res.Total)
}

func TestIngest_BareQuotes(t *testing.T) {
	t.Parallel()

	input := "email,first_name\na@x.com,Alice\nb@x.com,Robert \"Bob\"\nc@x.com,O\"Neil\n"

	res, err := ingest.IngestCSV(strings.NewReader(input))
	require.NoError(t, err)
	assert.Empty(t, res.Invalid)
	require.Len(t, res.Valid, 3)

	first, _ := res.Valid[1].Record.FirstName()
	assert.Equal(t, `Robert "Bob"`, first)
	first, _ = res.Valid[2].Record.FirstName()
	assert.Equal(t, `O"Neil`, first)
}

func TestIngest_ReadError(t *testing.T) {
	t.Parallel()

	errBroken := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("email\na@x.com\n"), iotest.ErrReader(errBroken))

	res, err := ingest.IngestCSV(r)
	require.ErrorIs(t, err, ingest.ErrMalformedSource)
	require.ErrorIs(t, err, errBroken)
	assert.Nil(t, res)
}

func TestIngest_ShortAndLongRows(t *testing.T) {
	t.Parallel()

	input := "email,first_name,last_name\na@x.com\nb@x.com,B,Bee,extra,cells\n"

	res, err := ingest.IngestCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Valid, 2)

	_, ok := res.Valid[0].Record.FirstName()
	assert.False(t, ok)
	last, ok := res.Valid[1].Record.LastName()
	assert.True(t, ok)
	assert.Equal(t, "Bee", last)
}

func TestIngest_DuplicateHeaderFirstWins(t *testing.T) {
	t.Parallel()

	input := "email,EMAIL\na@x.com,other@x.com\n"

	res, err := ingest.IngestCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, res.Valid, 1)
	assert.Equal(t, "a@x.com", res.Valid[0].Record.Email())
}

func TestNewCSVSource_StripsUTF8BOM(t *testing.T) {
	t.Parallel()

	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte("email\na@x.com\n")...)

	res, err := ingest.Ingest(ingest.NewCSVSource(bytes.NewReader(input)))
	require.NoError(t, err)
	require.Len(t, res.Valid, 1)
}

func TestNewCSVSource_DecodesUTF16(t *testing.T) {
	t.Parallel()

	text := "email\r\na@x.com\r\n"
	buf := []byte{0xFF, 0xFE} // UTF-16LE BOM
	for _, r := range text {
		buf = append(buf, byte(r), 0)
	}

	res, err := ingest.Ingest(ingest.NewCSVSource(bytes.NewReader(buf)))
	require.NoError(t, err)
	require.Len(t, res.Valid, 1)
	assert.Equal(t, "a@x.com", res.Valid[0].Record.Email())
}

func TestNormalizeColumn(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "email", ingest.NormalizeColumn("  EMAIL "))
	assert.Equal(t, "email", ingest.NormalizeColumn("ｅｍａｉｌ"))
	assert.Equal(t, "first_name", ingest.NormalizeColumn("First_Name"))
}

func TestIngest_AcceptsAnySource(t *testing.T) {
	t.Parallel()

	src := &sliceSource{records: [][]string{
		{"email", "first_name"},
		{"a@x.com", "A"},
	}}

	res, err := ingest.Ingest(src)
	require.NoError(t, err)
	require.Len(t, res.Records(), 1)
}

func TestResult_JSON(t *testing.T) {
	t.Parallel()

	res, err := ingest.IngestCSV(strings.NewReader("email,first_name\na@x.com,A\nbad,B\n"))
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded struct {
		Valid   []map[string]any `json:"valid_rows"`
		Invalid []struct {
			Data     map[string]string `json:"data"`
			Errors   []map[string]any  `json:"errors"`
			RowIndex int               `json:"row_index"`
		} `json:"invalid_rows"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Valid, 1)
	assert.Equal(t, "a@x.com", decoded.Valid[0]["email"])
	assert.EqualValues(t, 0, decoded.Valid[0]["row_index"])
	require.Len(t, decoded.Invalid, 1)
	assert.Equal(t, 1, decoded.Invalid[0].RowIndex)
	assert.Equal(t, "invalid_email", decoded.Invalid[0].Errors[0]["code"])
}

type sliceSource struct {
	records [][]string
	pos     int
}

func (s *sliceSource) Read() ([]string, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	rec := s.records[s.pos]
	s.pos++
	return rec, nil
}
