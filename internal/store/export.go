package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/parquet-go/parquet-go"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

// CSVExporter writes the full time series as CSV, one snapshot per row.
type CSVExporter struct {
	Path string
}

func (e CSVExporter) Name() string { return "csv" }

func (e CSVExporter) Export(series prices.TimeSeries) error {
	return WriteSeriesCSV(e.Path, series)
}

// WriteSeriesCSV encodes series with a header row derived from the csv tags.
func WriteSeriesCSV(path string, series prices.TimeSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("csv: create output dir: %w", err)
	}

	data, err := csvutil.Marshal([]prices.PriceSnapshot(series))
	if err != nil {
		return fmt.Errorf("csv: encode series: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("csv: write file %q: %w", path, err)
	}
	return nil
}

// ParquetExporter writes the full time series as a Parquet file.
type ParquetExporter struct {
	Path string
}

func (e ParquetExporter) Name() string { return "parquet" }

func (e ParquetExporter) Export(series prices.TimeSeries) error {
	return WriteSeriesParquet(e.Path, series)
}

// snapshotRow is the Parquet schema of a PriceSnapshot.
type snapshotRow struct {
	Origin              string    `parquet:"origin,snappy,dict"`
	Destination         string    `parquet:"destination,snappy,dict"`
	OutboundDate        string    `parquet:"outbound_date,snappy"`
	ReturnDate          string    `parquet:"return_date,snappy"`
	TripLengthDays      int32     `parquet:"trip_length_days,snappy"`
	DaysBeforeDeparture int32     `parquet:"days_before_departure,snappy"`
	Price               int32     `parquet:"price,snappy"`
	Airline             string    `parquet:"airline,snappy,dict"`
	Stops               int32     `parquet:"stops,snappy"`
	MaxLayoverHours     float64   `parquet:"max_layover_hours,snappy"`
	FetchedAt           time.Time `parquet:"fetched_at,snappy"`
}

func toRow(s prices.PriceSnapshot) snapshotRow {
	return snapshotRow{
		Origin:              s.Origin,
		Destination:         s.Destination,
		OutboundDate:        s.OutboundDate.String(),
		ReturnDate:          s.ReturnDate.String(),
		TripLengthDays:      int32(s.TripLengthDays),
		DaysBeforeDeparture: int32(s.DaysBeforeDeparture),
		Price:               int32(s.Price),
		Airline:             s.Airline,
		Stops:               int32(s.Stops),
		MaxLayoverHours:     s.MaxLayoverHours,
		FetchedAt:           s.FetchedAt,
	}
}

// WriteSeriesParquet writes series to path using a schema inferred from
// snapshotRow.
func WriteSeriesParquet(path string, series prices.TimeSeries) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("parquet: create output dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("parquet: create file %q: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	rows := make([]snapshotRow, len(series))
	for i, s := range series {
		rows[i] = toRow(s)
	}

	writer := parquet.NewGenericWriter[snapshotRow](file)
	if _, err := writer.Write(rows); err != nil {
		_ = writer.Close()
		return fmt.Errorf("parquet: write rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("parquet: close writer: %w", err)
	}
	return nil
}
