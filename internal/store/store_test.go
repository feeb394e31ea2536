package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

func sampleSeries(t *testing.T) prices.TimeSeries {
	t.Helper()
	out, err := prices.ParseDate("2026-07-03")
	require.NoError(t, err)
	return prices.TimeSeries{{
		Origin:              "AMS",
		Destination:         "LIS",
		OutboundDate:        out,
		ReturnDate:          out.AddDays(7),
		TripLengthDays:      7,
		DaysBeforeDeparture: 12,
		Price:               120,
		Airline:             "KL",
		Stops:               1,
		MaxLayoverHours:     1.5,
		FetchedAt:           time.Date(2026, 6, 21, 6, 0, 0, 0, time.UTC),
	}}
}

func TestFileStoreMissingFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "series.json"), filepath.Join(dir, "buckets.json"))

	assert.Empty(t, s.LoadSeries())
	buckets := s.LoadBuckets()
	assert.NotNil(t, buckets)
	assert.Empty(t, buckets)
}

func TestFileStoreCorruptFilesAreEmpty(t *testing.T) {
	dir := t.TempDir()
	seriesPath := filepath.Join(dir, "series.json")
	bucketsPath := filepath.Join(dir, "buckets.json")
	require.NoError(t, os.WriteFile(seriesPath, []byte(`[{"origin":`), 0644))
	require.NoError(t, os.WriteFile(bucketsPath, []byte(`not json`), 0644))

	s := NewFileStore(seriesPath, bucketsPath)

	assert.Empty(t, s.LoadSeries())
	assert.Empty(t, s.LoadBuckets())
}

func TestFileStorePersistsArtifacts(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	s := NewFileStore(filepath.Join(dir, "series.json"), filepath.Join(dir, "buckets.json"))
	series := sampleSeries(t)
	buckets := prices.MergeBuckets(nil, "AMS-LIS", 2026, map[string]int{"2026-07-03": 120, "2026-07-10": 99})

	require.NoError(t, s.SaveSeries(series))
	require.NoError(t, s.SaveBuckets(buckets))

	assert.Equal(t, series, s.LoadSeries())
	assert.Equal(t, buckets, s.LoadBuckets())

	raw, err := os.ReadFile(filepath.Join(dir, "series.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"outbound_date": "2026-07-03"`)
	assert.Contains(t, string(raw), `"max_layover_hours": 1.5`)

	raw, err = os.ReadFile(filepath.Join(dir, "buckets.json"))
	require.NoError(t, err)
	compact := strings.Join(strings.Fields(string(raw)), "")
	assert.Contains(t, compact, `"07":[120,99,null,null]`)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	series := sampleSeries(t)
	require.NoError(t, s.SaveSeries(series))

	loaded := s.LoadSeries()
	loaded[0].Price = 1
	assert.Equal(t, 120, s.LoadSeries()[0].Price)

	require.NoError(t, s.SaveBuckets(prices.MergeBuckets(nil, "AMS-LIS", 2026, map[string]int{"2026-07-03": 120})))
	b := s.LoadBuckets()
	*b["AMS-LIS"]["2026"]["07"][0] = 1
	assert.Equal(t, 120, *s.LoadBuckets()["AMS-LIS"]["2026"]["07"][0])
}

func TestWriteSeriesCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "series.csv")

	require.NoError(t, CSVExporter{Path: path}.Export(sampleSeries(t)))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "origin,destination,outbound_date,return_date,"))
	assert.True(t, strings.HasPrefix(lines[1], "AMS,LIS,2026-07-03,2026-07-10,7,12,120,KL,1,1.5,"))
}

func TestWriteSeriesParquet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "series.parquet")

	require.NoError(t, ParquetExporter{Path: path}.Export(sampleSeries(t)))

	rows, err := parquet.ReadFile[snapshotRow](path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "AMS", rows[0].Origin)
	assert.Equal(t, "2026-07-03", rows[0].OutboundDate)
	assert.EqualValues(t, 120, rows[0].Price)
}
