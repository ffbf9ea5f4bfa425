// Package http provides HTTP server and handler implementations.
//
// This file turns /api/view query parameters into a filter state.

package http

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"databoard/internal/core"
	"databoard/internal/filter"
)

// ParamError names the query parameter that failed to parse.
type ParamError struct {
	Param string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Param, e.Value, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// ParseFilterState builds a filter state from query parameters:
//
//	start, end   YYYY-MM-DD; a missing bound defaults to the dataset extent
//	pool, garage true|false|1|0
//	rooms        non-negative integer
//	month        YYYY-MM
//
// Empty parameters leave their predicate unset.
func ParseFilterState(q url.Values, ds core.Dataset) (filter.State, error) {
	var st filter.State

	start, hasStart, err := dateParam(q, "start")
	if err != nil {
		return st, err
	}
	end, hasEnd, err := dateParam(q, "end")
	if err != nil {
		return st, err
	}
	switch {
	case hasStart || hasEnd:
		if !hasStart {
			start = ds.DateRange.Min
			if !ds.HasDateRange {
				start = end
			}
		}
		if !hasEnd {
			end = ds.DateRange.Max
			if !ds.HasDateRange {
				end = start
			}
		}
		st = st.WithDateRange(filter.Some(core.DateRange{Min: start, Max: end}))
	case ds.HasDateRange:
		st = st.WithDateRange(filter.Some(ds.DateRange))
	}

	pool, err := boolParam(q, "pool")
	if err != nil {
		return st, err
	}
	garage, err := boolParam(q, "garage")
	if err != nil {
		return st, err
	}
	rooms, err := roomsParam(q)
	if err != nil {
		return st, err
	}
	month, err := monthParam(q)
	if err != nil {
		return st, err
	}

	return st.WithPool(pool).WithGarage(garage).WithRooms(rooms).WithMonth(month), nil
}

func param(q url.Values, name string) string {
	return strings.TrimSpace(sanitizeInput(q.Get(name)))
}

func dateParam(q url.Values, name string) (core.Date, bool, error) {
	v := param(q, name)
	if v == "" {
		return core.Date{}, false, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, false, &ParamError{Param: name, Value: v, Err: err}
	}
	return d, true, nil
}

func boolParam(q url.Values, name string) (filter.Opt[bool], error) {
	v := param(q, name)
	switch strings.ToLower(v) {
	case "":
		return filter.None[bool](), nil
	case "true", "1":
		return filter.Some(true), nil
	case "false", "0":
		return filter.Some(false), nil
	}
	return filter.None[bool](), &ParamError{Param: name, Value: v, Err: errNotBool}
}

func roomsParam(q url.Values) (filter.Opt[int], error) {
	v := param(q, "rooms")
	if v == "" {
		return filter.None[int](), nil
	}
	n, err := strconv.Atoi(v)
	if err == nil && n < 0 {
		err = core.ErrNegative
	}
	if err != nil {
		return filter.None[int](), &ParamError{Param: "rooms", Value: v, Err: err}
	}
	return filter.Some(n), nil
}

func monthParam(q url.Values) (filter.Opt[core.Date], error) {
	v := param(q, "month")
	if v == "" {
		return filter.None[core.Date](), nil
	}
	m, err := core.ParseMonth(v)
	if err != nil {
		return filter.None[core.Date](), &ParamError{Param: "month", Value: v, Err: err}
	}
	return filter.Some(m), nil
}
