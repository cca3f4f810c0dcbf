package marketdata

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longbtc-go/internal/market"
)

const sample = `Datetime,Open,High,Low,Close,Volume
2024-01-01 00:00:00,100,101,99,100.5,3
2024-01-01 00:01:00,100.5,102,100,101.5,4
2024-01-01 00:02:00,bad,102,100,101,1
2024-01-01 00:01:00,1,1,1,1,1
2024-01-01T00:03:00Z,101.5,103,101,102,2
not a time,1,1,1,1,1
2024-01-01 00:04:00,102,102,100,NaN,2
`

func TestReadCSVDropsBadRows(t *testing.T) {
	s, stats, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)
	assert.Equal(t, Stats{Rows: 7, Kept: 3, Dropped: 3, Duplicates: 1}, stats)
	require.Equal(t, 3, s.Len())
	require.NoError(t, s.Validate())

	assert.True(t, s.At(0).Time.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 101.5, s.At(1).Close)
	assert.True(t, s.At(2).Time.Equal(time.Date(2024, 1, 1, 0, 3, 0, 0, time.UTC)))
}

func TestReadCSVWithoutVolume(t *testing.T) {
	in := "timestamp,close,low,high,open\n1704067200000,10,9,11,10\n"
	s, stats, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Kept)
	b := s.At(0)
	assert.Equal(t, market.Bar{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 10, High: 11, Low: 9, Close: 10}, b)
}

func TestReadCSVMissingColumns(t *testing.T) {
	_, _, err := ReadCSV(strings.NewReader("Datetime,Open,Close\n"))
	assert.Error(t, err)
	_, _, err = ReadCSV(strings.NewReader("Open,High,Low,Close\n"))
	assert.Error(t, err)
	_, _, err = ReadCSV(strings.NewReader(""))
	assert.Error(t, err)
}

func TestWriteThenLoad(t *testing.T) {
	in, _, err := ReadCSV(strings.NewReader(sample))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, SaveCSV(path, in.Bars()))
	out, stats, err := LoadCSV(path)
	require.NoError(t, err)
	assert.Zero(t, stats.Dropped)
	assert.Equal(t, in.Bars(), out.Bars())

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, in.Bars()[:1]))
	assert.Equal(t, "Datetime,Open,High,Low,Close,Volume\n2024-01-01 00:00:00,100,101,99,100.5,3\n", buf.String())
}

func TestLoadCSVMissingFile(t *testing.T) {
	_, _, err := LoadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
