package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

// FileStore persists both artifacts as indented JSON files, rewritten in full
// on every save.
type FileStore struct {
	seriesPath  string
	bucketsPath string
}

// NewFileStore creates a FileStore. Parent directories are created on save.
func NewFileStore(seriesPath, bucketsPath string) *FileStore {
	return &FileStore{
		seriesPath:  seriesPath,
		bucketsPath: bucketsPath,
	}
}

// LoadSeries reads the time series. A missing or corrupt file yields an empty
// series.
func (s *FileStore) LoadSeries() prices.TimeSeries {
	var series prices.TimeSeries
	if !readJSON(s.seriesPath, &series) {
		return prices.TimeSeries{}
	}
	return series
}

func (s *FileStore) SaveSeries(series prices.TimeSeries) error {
	if series == nil {
		series = prices.TimeSeries{}
	}
	return writeJSON(s.seriesPath, series)
}

// LoadBuckets reads the bucket store. A missing or corrupt file yields an
// empty store.
func (s *FileStore) LoadBuckets() prices.BucketStore {
	var buckets prices.BucketStore
	if !readJSON(s.bucketsPath, &buckets) || buckets == nil {
		return make(prices.BucketStore)
	}
	return buckets
}

func (s *FileStore) SaveBuckets(buckets prices.BucketStore) error {
	if buckets == nil {
		buckets = make(prices.BucketStore)
	}
	return writeJSON(s.bucketsPath, buckets)
}

func readJSON(path string, v any) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Printf("INFO: %s not found, starting empty", path)
		} else {
			log.Printf("WARN: failed to read %s, starting empty: %v", path, err)
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		log.Printf("WARN: %s is corrupt, starting empty: %v", path, err)
		return false
	}
	return true
}

// writeJSON writes to a temp file in the target directory and renames it over
// path, so readers never observe a half-written artifact.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
