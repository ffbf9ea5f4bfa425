// Package aggregate computes per-neighborhood groups and dataset totals.
package aggregate

import (
	"databoard/internal/core"
)

// ByNeighborhood groups records by neighborhood in first-seen order.
// Each group carries the record count, the mean price and the location of
// the first record seen for that neighborhood. Groups are rebuilt from
// scratch on every call.
func ByNeighborhood(records []core.Record) []core.AggregatedGroup {
	index := make(map[string]int)
	groups := make([]core.AggregatedGroup, 0)
	sums := make([]float64, 0)

	for _, r := range records {
		i, ok := index[r.Neighborhood]
		if !ok {
			i = len(groups)
			index[r.Neighborhood] = i
			groups = append(groups, core.AggregatedGroup{
				Neighborhood: r.Neighborhood,
				Location:     r.Location,
			})
			sums = append(sums, 0)
		}
		groups[i].Count++
		sums[i] += r.Price
	}

	for i := range groups {
		groups[i].Price = sums[i] / float64(groups[i].Count)
	}
	return groups
}

// DateExtent returns the earliest and latest valid sale dates.
// ok is false when no record has a valid date.
func DateExtent(records []core.Record) (r core.DateRange, ok bool) {
	for _, rec := range records {
		if !rec.HasValidDate() {
			continue
		}
		if !ok {
			r = core.DateRange{Min: rec.SaleDate, Max: rec.SaleDate}
			ok = true
			continue
		}
		if rec.SaleDate.Before(r.Min.Time) {
			r.Min = rec.SaleDate
		}
		if rec.SaleDate.After(r.Max.Time) {
			r.Max = rec.SaleDate
		}
	}
	return r, ok
}

// Mean returns the arithmetic mean of values, or 0 for an empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// MeanOf applies Mean to one numeric attribute of each record.
func MeanOf(records []core.Record, attr func(core.Record) float64) float64 {
	if len(records) == 0 {
		return 0
	}
	var sum float64
	for _, r := range records {
		sum += attr(r)
	}
	return sum / float64(len(records))
}

// Summarize builds the unfiltered dataset view: groups, totals and date extent.
// Records with an invalid sale date are counted in the groups and totals but
// excluded from the date extent.
func Summarize(records []core.Record) core.Dataset {
	ds := core.Dataset{
		Records: records,
		Groups:  ByNeighborhood(records),
		Total:   len(records),
	}
	ds.DateRange, ds.HasDateRange = DateExtent(records)
	for _, r := range records {
		if !r.HasValidDate() {
			ds.InvalidDates++
		}
	}
	return ds
}
