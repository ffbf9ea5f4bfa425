package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"databoard/internal/core"
)

const header = "id,price,num_rooms,num_bathrooms,square_footage,year_built,garage,pool,location,days_on_market,neighborhood,lot_size,condition,lat,long,sale_date"

func csvOf(rows ...string) string {
	return header + "\n" + strings.Join(rows, "\n")
}

func TestParseRowCountMatchesDataLines(t *testing.T) {
	text := csvOf(
		"1,100,2,1,900,1990,true,false,Downtown,5,A,4000,Good,40.1,-73.9,2023-01-15",
		"2,200,3,2,1200,2001,false,true,Uptown,8,A,5000,Fair,40.2,-73.8,2023-02-01",
		"3,300,4,2,1500,2010,true,true,Suburbs,13,B,6000,Excellent,40.3,-73.7,2023-03-10",
	) + "\n"

	records, err := Parse([]byte(text))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{records[0].ID, records[1].ID, records[2].ID})
}

func TestParseRejectsNaNPrice(t *testing.T) {
	text := csvOf("1,NaN,3,2,1500,1990,true,false,Loc,10,A,5000,Good,1.0,2.0,2023-01-15") + "\n"

	_, err := Parse([]byte(text))
	var pe *core.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 2, pe.Line)
	assert.Equal(t, "price", pe.Column)
	assert.ErrorIs(t, err, core.ErrNotFinite)
}

func TestParseHandlesCRLFAndBlankLines(t *testing.T) {
	text := strings.ReplaceAll(csvOf(
		"1,100,2,1,900,1990,true,false,Downtown,5,A,4000,Good,40.1,-73.9,2023-01-15",
		"",
		"2,200,3,2,1200,2001,false,true,Uptown,8,A,5000,Fair,40.2,-73.8,2023-02-01",
	), "\n", "\r\n")

	records, err := Parse([]byte(text))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2023-02-01", records[1].SaleDateText())
}

func TestParseReportsPhysicalLine(t *testing.T) {
	text := csvOf(
		"1,100,2,1,900,1990,true,false,Downtown,5,A,4000,Good,40.1,-73.9,2023-01-15",
		"",
		"2,oops,3,2,1200,2001,false,true,Uptown,8,A,5000,Fair,40.2,-73.8,2023-02-01",
	)

	_, err := Parse([]byte(text))
	var pe *core.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 4, pe.Line)
	assert.Equal(t, "price", pe.Column)
}

func TestParseHeaderOnly(t *testing.T) {
	_, err := Parse([]byte(header + "\n"))
	assert.ErrorIs(t, err, core.ErrEmptyDataset)
}

func TestReadRecordsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.csv")

	records, err := New(path).ReadRecords(context.Background())
	assert.Nil(t, records)
	var ioErr *core.IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, path, ioErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestReadRecordsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvOf(
		"9,100,2,1,900,1990,true,false,Downtown,5,A,4000,Good,40.1,-73.9,not-a-date",
	)), 0o644))

	records, err := New(path).ReadRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].HasValidDate())
}
