package core

import (
	"encoding/json"
	"time"
)

type (
	// Date is a calendar date with no time component, stored as UTC midnight.
	Date struct {
		time.Time
	}

	// Record is one housing sale.
	Record struct {
		ID            int     `json:"id"`
		Price         float64 `json:"price"`
		Rooms         int     `json:"num_rooms"`
		Bathrooms     int     `json:"num_bathrooms"`
		SquareFootage float64 `json:"square_footage"`
		YearBuilt     int     `json:"year_built"`
		Garage        bool    `json:"garage"`
		Pool          bool    `json:"pool"`
		Location      string  `json:"location"`
		DaysOnMarket  int     `json:"days_on_market"`
		Neighborhood  string  `json:"neighborhood"`
		LotSize       float64 `json:"lot_size"`
		Condition     string  `json:"condition"`
		Lat           float64 `json:"lat"`
		Long          float64 `json:"long"`
		SaleDate      Date    `json:"-"`
		// RawSaleDate keeps the source text when SaleDate could not be parsed.
		RawSaleDate string `json:"-"`
	}

	// AggregatedGroup summarizes the records sharing a neighborhood.
	AggregatedGroup struct {
		Neighborhood string  `json:"neighborhood"`
		Location     string  `json:"location"` // location of the first record seen
		Price        float64 `json:"price"`    // mean price
		Count        int     `json:"count"`
	}

	// DateRange is an inclusive span of calendar dates.
	DateRange struct {
		Min Date `json:"min"`
		Max Date `json:"max"`
	}

	// Dataset is a loaded record set together with its unfiltered aggregation.
	Dataset struct {
		Records      []Record
		Groups       []AggregatedGroup
		Total        int
		DateRange    DateRange
		HasDateRange bool
		InvalidDates int
		LoadedAt     time.Time
		Fingerprint  string
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf drops the time component of t, keeping its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// MonthStart truncates the date to the first day of its month.
func (d Date) MonthStart() Date {
	if d.IsZero() {
		return d
	}
	return NewDate(d.Year(), d.Month(), 1)
}

// Equal reports whether both dates name the same calendar day.
func (d Date) Equal(o Date) bool {
	return d.Time.Equal(o.Time)
}

// String formats the date as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Contains reports whether d lies within the range, both ends inclusive.
func (r DateRange) Contains(d Date) bool {
	if d.IsZero() {
		return false
	}
	return !d.Before(r.Min.Time) && !d.After(r.Max.Time)
}

// HasValidDate reports whether the sale date was parsed.
func (r Record) HasValidDate() bool {
	return !r.SaleDate.IsZero()
}

// SaleDateText returns the ISO sale date, or the raw source text when it was unparseable.
func (r Record) SaleDateText() string {
	if r.HasValidDate() {
		return r.SaleDate.String()
	}
	return r.RawSaleDate
}

func (r Record) MarshalJSON() ([]byte, error) {
	type plain Record
	return json.Marshal(struct {
		plain
		SaleDate string `json:"sale_date"`
	}{plain(r), r.SaleDateText()})
}
