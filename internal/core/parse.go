// Package core provides record parsing for the housing dataset.
//
// This file converts one row of string cells (from CSV, a spreadsheet or
// any other tabular source) into a typed Record.
package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical wire format for calendar dates.
const DateLayout = "2006-01-02"

// Columns lists the fixed schema of the housing dataset, in file order.
var Columns = [...]string{
	"id", "price", "num_rooms", "num_bathrooms", "square_footage", "year_built",
	"garage", "pool", "location", "days_on_market", "neighborhood", "lot_size",
	"condition", "lat", "long", "sale_date",
}

// NumColumns is the number of fields every data row must carry.
const NumColumns = len(Columns)

const (
	colID = iota
	colPrice
	colRooms
	colBathrooms
	colSquareFootage
	colYearBuilt
	colGarage
	colPool
	colLocation
	colDaysOnMarket
	colNeighborhood
	colLotSize
	colCondition
	colLat
	colLong
	colSaleDate
)

var dateLayouts = []string{
	DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
}

var (
	ErrFieldCount = errors.New("wrong number of fields")
	ErrNegative   = errors.New("value must not be negative")
	ErrNotFinite  = errors.New("value must be a finite number")
)

// ParseDate parses a sale date in any of the accepted layouts, dropping the time of day.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("unrecognized date %q", s)
}

// ParseMonth parses a YYYY-MM month into the first day of that month.
func ParseMonth(s string) (Date, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("unrecognized month %q", s)
	}
	return DateOf(t), nil
}

// ParseRecord converts the cells of one data row into a Record.
//
// line is the 1-based position of the row in its source and is only used
// for error reporting. Numeric fields are parsed strictly: any malformed or
// negative price/days value yields a *ParseError. Boolean fields are true
// only for the exact text "true". An unparseable sale date is not an error:
// the record keeps a zero SaleDate and the raw text, and dateOK is false.
func ParseRecord(fields []string, line int) (rec Record, dateOK bool, err error) {
	if len(fields) != NumColumns {
		return Record{}, false, &ParseError{
			Line: line,
			Err:  fmt.Errorf("%w: got %d, want %d", ErrFieldCount, len(fields), NumColumns),
		}
	}

	p := rowParser{fields: fields, line: line}
	rec = Record{
		ID:            p.intAt(colID),
		Price:         p.floatAt(colPrice),
		Rooms:         p.intAt(colRooms),
		Bathrooms:     p.intAt(colBathrooms),
		SquareFootage: p.floatAt(colSquareFootage),
		YearBuilt:     p.intAt(colYearBuilt),
		Garage:        p.boolAt(colGarage),
		Pool:          p.boolAt(colPool),
		Location:      p.textAt(colLocation),
		DaysOnMarket:  p.intAt(colDaysOnMarket),
		Neighborhood:  p.textAt(colNeighborhood),
		LotSize:       p.floatAt(colLotSize),
		Condition:     p.textAt(colCondition),
		Lat:           p.floatAt(colLat),
		Long:          p.floatAt(colLong),
	}
	if p.err == nil && rec.Price < 0 {
		p.fail(colPrice, ErrNegative)
	}
	if p.err == nil && rec.DaysOnMarket < 0 {
		p.fail(colDaysOnMarket, ErrNegative)
	}
	if p.err != nil {
		return Record{}, false, p.err
	}

	raw := p.textAt(colSaleDate)
	if d, derr := ParseDate(raw); derr == nil {
		rec.SaleDate = d
		return rec, true, nil
	}
	rec.RawSaleDate = raw
	return rec, false, nil
}

// rowParser records the first failure and turns later calls into no-ops.
type rowParser struct {
	fields []string
	line   int
	err    *ParseError
}

func (p *rowParser) textAt(col int) string {
	return strings.TrimSpace(p.fields[col])
}

func (p *rowParser) fail(col int, err error) {
	if p.err == nil {
		p.err = &ParseError{Line: p.line, Column: Columns[col], Value: p.textAt(col), Err: err}
	}
}

func (p *rowParser) intAt(col int) int {
	if p.err != nil {
		return 0
	}
	v, err := strconv.Atoi(p.textAt(col))
	if err != nil {
		p.fail(col, err)
	}
	return v
}

func (p *rowParser) floatAt(col int) float64 {
	if p.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(p.textAt(col), 64)
	if err != nil {
		p.fail(col, err)
		return 0
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		p.fail(col, ErrNotFinite)
		return 0
	}
	return v
}

func (p *rowParser) boolAt(col int) bool {
	return p.textAt(col) == "true"
}
