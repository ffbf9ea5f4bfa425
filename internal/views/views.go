// Package views builds the chart and table data shown for a filtered record set.
package views

import (
	"sort"

	"databoard/internal/aggregate"
	"databoard/internal/core"
)

type (
	// RoomCount is one bar of the room distribution chart.
	RoomCount struct {
		Rooms int `json:"rooms"`
		Count int `json:"count"`
	}

	// MonthCount is one point of the monthly sales chart.
	MonthCount struct {
		Month core.Date `json:"month"`
		Label string    `json:"label"`
		Count int       `json:"count"`
	}

	// Summary holds the headline metrics.
	Summary struct {
		Count            int     `json:"count"`
		MeanLotSizeK     float64 `json:"mean_lot_size_k"`
		MeanDaysOnMarket float64 `json:"mean_days_on_market"`
	}

	// Row is one line of the sales table.
	Row struct {
		Condition    string  `json:"condition"`
		DaysOnMarket int     `json:"days_on_market"`
		ID           int     `json:"id"`
		Location     string  `json:"location"`
		Price        float64 `json:"price"`
		SaleDate     string  `json:"sale_date"`
	}

	// View is everything derived from one filtered set.
	View struct {
		Summary       Summary                `json:"summary"`
		Rooms         []RoomCount            `json:"rooms"`
		Months        []MonthCount           `json:"months"`
		Neighborhoods []core.AggregatedGroup `json:"neighborhoods"`
		Rows          []Row                  `json:"rows"`
	}
)

// Build derives every view from the filtered records.
func Build(filtered []core.Record) View {
	return View{
		Summary:       Summarize(filtered),
		Rooms:         RoomDistribution(filtered),
		Months:        MonthlyDistribution(filtered),
		Neighborhoods: aggregate.ByNeighborhood(filtered),
		Rows:          Rows(filtered),
	}
}

// Summarize computes the headline metrics. An empty set reports zeros.
func Summarize(records []core.Record) Summary {
	return Summary{
		Count:            len(records),
		MeanLotSizeK:     aggregate.MeanOf(records, func(r core.Record) float64 { return r.LotSize }) / 1000,
		MeanDaysOnMarket: aggregate.MeanOf(records, func(r core.Record) float64 { return float64(r.DaysOnMarket) }),
	}
}

// RoomDistribution counts records per room count, ascending by room count.
func RoomDistribution(records []core.Record) []RoomCount {
	counts := make(map[int]int)
	for _, r := range records {
		counts[r.Rooms]++
	}
	out := make([]RoomCount, 0, len(counts))
	for rooms, n := range counts {
		out = append(out, RoomCount{Rooms: rooms, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rooms < out[j].Rooms })
	return out
}

// MonthlyDistribution counts records per sale month in chronological order.
// Records without a valid sale date are not bucketed.
func MonthlyDistribution(records []core.Record) []MonthCount {
	counts := make(map[core.Date]int)
	for _, r := range records {
		if !r.HasValidDate() {
			continue
		}
		counts[r.SaleDate.MonthStart()]++
	}
	out := make([]MonthCount, 0, len(counts))
	for m, n := range counts {
		out = append(out, MonthCount{Month: m, Label: m.Format("Jan"), Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month.Time) })
	return out
}

// Rows projects the records onto the table columns, preserving order.
func Rows(records []core.Record) []Row {
	out := make([]Row, 0, len(records))
	for _, r := range records {
		out = append(out, Row{
			Condition:    r.Condition,
			DaysOnMarket: r.DaysOnMarket,
			ID:           r.ID,
			Location:     r.Location,
			Price:        r.Price,
			SaleDate:     r.SaleDateText(),
		})
	}
	return out
}
