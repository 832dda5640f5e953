package storage

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trendscope/internal/domain/trend"
)

func sampleTable() *trend.Table {
	return &trend.Table{
		Index: []time.Time{
			time.Date(2021, time.January, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2021, time.February, 28, 0, 0, 0, 0, time.UTC),
		},
		Columns: []string{"trauma", "ipnosi"},
		Values: map[string][]float64{
			"trauma": {33, 41.25},
			"ipnosi": {math.NaN(), 7.5},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTable()))

	want := "date,trauma,ipnosi\n" +
		"2021-01-31,33.0,\n" +
		"2021-02-28,41.25,7.5\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteCSV_EmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, trend.NewTable()))
	assert.Equal(t, "date\n", buf.String())
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	require.NoError(t, WriteCSVFile(path, sampleTable()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2021-02-28,41.25,7.5")
}
