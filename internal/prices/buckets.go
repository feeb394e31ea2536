package prices

import (
	"fmt"
	"log"
	"sort"
	"strconv"
)

// BucketIndex maps a day of month to its 7-day bucket. Days 29-31 fall into
// the last bucket.
func BucketIndex(day int) int {
	b := (day - 1) / 7
	if b > BucketsPerMonth-1 {
		b = BucketsPerMonth - 1
	}
	return b
}

// MergeBuckets folds a sparse calendar map into the store for one route and
// year, keeping the lower of the stored and the new price per cell. Dates
// outside year and unparseable keys are ignored. The existing store is not
// modified; cells the calendar does not touch are carried over as is.
func MergeBuckets(existing BucketStore, routeKey string, year int, cal map[string]int) BucketStore {
	merged := existing.Clone()
	yearKey := strconv.Itoa(year)

	for _, dateKey := range sortedKeys(cal) {
		d, err := ParseDate(dateKey)
		if err != nil {
			log.Printf("WARN: skipping calendar key %q for %s: %v", dateKey, routeKey, err)
			continue
		}
		if d.Year() != year {
			continue
		}

		years, ok := merged[routeKey]
		if !ok {
			years = make(map[string]BucketMatrix)
			merged[routeKey] = years
		}
		matrix, ok := years[yearKey]
		if !ok {
			matrix = make(BucketMatrix)
			years[yearKey] = matrix
		}

		month := fmt.Sprintf("%02d", int(d.Month()))
		row := matrix[month]
		b := BucketIndex(d.Day())
		price := cal[dateKey]
		if row[b] == nil || price < *row[b] {
			p := price
			row[b] = &p
		}
		matrix[month] = row
	}
	return merged
}

// SplitByYear groups a calendar map by the year of its dates so a window that
// spans New Year can be merged into both years.
func SplitByYear(cal map[string]int) map[int]map[string]int {
	out := make(map[int]map[string]int)
	for dateKey, price := range cal {
		d, err := ParseDate(dateKey)
		if err != nil {
			continue
		}
		byYear, ok := out[d.Year()]
		if !ok {
			byYear = make(map[string]int)
			out[d.Year()] = byYear
		}
		byYear[dateKey] = price
	}
	return out
}

// Clone returns a deep copy of the store.
func (bs BucketStore) Clone() BucketStore {
	out := make(BucketStore, len(bs))
	for route, years := range bs {
		ys := make(map[string]BucketMatrix, len(years))
		for year, matrix := range years {
			ys[year] = matrix.Clone()
		}
		out[route] = ys
	}
	return out
}

// Clone returns a deep copy of the matrix.
func (m BucketMatrix) Clone() BucketMatrix {
	out := make(BucketMatrix, len(m))
	for month, row := range m {
		var cp BucketRow
		for i, v := range row {
			if v != nil {
				p := *v
				cp[i] = &p
			}
		}
		out[month] = cp
	}
	return out
}

// Lookup returns the matrix for a route and year.
func (bs BucketStore) Lookup(routeKey, year string) (BucketMatrix, bool) {
	years, ok := bs[routeKey]
	if !ok {
		return nil, false
	}
	m, ok := years[year]
	return m, ok
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
