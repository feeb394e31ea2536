package prices

// DefaultMaxSeriesLen caps the persisted time series.
const DefaultMaxSeriesLen = 60000

// MergeSeries appends newRows to existing and evicts the oldest entries once
// the result exceeds maxLen. Neither input is modified. Repeated observations
// are kept as distinct points. A maxLen <= 0 disables the cap.
func MergeSeries(existing TimeSeries, newRows []PriceSnapshot, maxLen int) TimeSeries {
	total := len(existing) + len(newRows)
	merged := make(TimeSeries, 0, total)
	merged = append(merged, existing...)
	merged = append(merged, newRows...)

	if maxLen > 0 && len(merged) > maxLen {
		over := len(merged) - maxLen
		merged = merged[over:]
	}
	return merged
}

// SeriesFilter narrows a time series for reads. Zero fields match anything.
type SeriesFilter struct {
	Origin      string
	Destination string
	From        Date
	To          Date
}

// Filter returns the snapshots whose route and outbound date match f, in
// insertion order.
func (ts TimeSeries) Filter(f SeriesFilter) TimeSeries {
	var out TimeSeries
	for _, s := range ts {
		if f.Origin != "" && s.Origin != f.Origin {
			continue
		}
		if f.Destination != "" && s.Destination != f.Destination {
			continue
		}
		if !f.From.IsZero() && s.OutboundDate.Before(f.From.Time) {
			continue
		}
		if !f.To.IsZero() && s.OutboundDate.After(f.To.Time) {
			continue
		}
		out = append(out, s)
	}
	return out
}
