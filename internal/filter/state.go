// Package filter implements crossfilter-style record selection: an
// immutable State of independent optional predicates and an Engine that
// re-applies them to the full record set on every change.
package filter

import (
	"fmt"
	"strings"

	"databoard/internal/core"
)

// State is the set of active predicates. A filtered set is the AND of every
// set predicate; unset predicates place no restriction. State is a value:
// the With and Toggle methods return a modified copy.
type State struct {
	DateRange Opt[core.DateRange] `json:"date_range"`
	Pool      Opt[bool]           `json:"pool"`
	Garage    Opt[bool]           `json:"garage"`
	Rooms     Opt[int]            `json:"rooms"`
	Month     Opt[core.Date]      `json:"month"`
}

// Initial returns the load-time state for a dataset: its date extent and no
// other restriction.
func Initial(ds core.Dataset) State {
	if !ds.HasDateRange {
		return State{}
	}
	return State{DateRange: Some(ds.DateRange)}
}

// NewDateRange builds an inclusive range, swapping the bounds when start is after end.
func NewDateRange(start, end core.Date) core.DateRange {
	if start.After(end.Time) {
		start, end = end, start
	}
	return core.DateRange{Min: start, Max: end}
}

func (s State) WithDateRange(r Opt[core.DateRange]) State {
	if v, ok := r.Get(); ok {
		r = Some(NewDateRange(v.Min, v.Max))
	}
	s.DateRange = r
	return s
}

func (s State) WithPool(v Opt[bool]) State   { s.Pool = v; return s }
func (s State) WithGarage(v Opt[bool]) State { s.Garage = v; return s }
func (s State) WithRooms(v Opt[int]) State   { s.Rooms = v; return s }

// WithMonth stores the month truncated to its first day.
func (s State) WithMonth(v Opt[core.Date]) State {
	if m, ok := v.Get(); ok {
		v = Some(m.MonthStart())
	}
	s.Month = v
	return s
}

// TogglePool selects v, or clears the pool predicate when v is already selected.
func (s State) TogglePool(v Opt[bool]) State { return s.WithPool(toggle(s.Pool, v)) }

// ToggleGarage selects v, or clears the garage predicate when v is already selected.
func (s State) ToggleGarage(v Opt[bool]) State { return s.WithGarage(toggle(s.Garage, v)) }

// ToggleRooms selects v, or clears the room predicate when v is already selected.
func (s State) ToggleRooms(v Opt[int]) State { return s.WithRooms(toggle(s.Rooms, v)) }

// ToggleMonth selects the month of v, or clears the month predicate when it is already selected.
func (s State) ToggleMonth(v Opt[core.Date]) State {
	if m, ok := v.Get(); ok {
		v = Some(m.MonthStart())
	}
	cur, ok := s.Month.Get()
	if m, sel := v.Get(); ok && sel && cur.Equal(m) {
		return s.WithMonth(None[core.Date]())
	}
	return s.WithMonth(v)
}

func toggle[T comparable](cur, next Opt[T]) Opt[T] {
	c, ok := cur.Get()
	n, sel := next.Get()
	if !sel || (ok && c == n) {
		return None[T]()
	}
	return next
}

// Matches reports whether r satisfies every set predicate.
func (s State) Matches(r core.Record) bool {
	if dr, ok := s.DateRange.Get(); ok && !dr.Contains(r.SaleDate) {
		return false
	}
	if v, ok := s.Pool.Get(); ok && r.Pool != v {
		return false
	}
	if v, ok := s.Garage.Get(); ok && r.Garage != v {
		return false
	}
	if v, ok := s.Rooms.Get(); ok && r.Rooms != v {
		return false
	}
	if m, ok := s.Month.Get(); ok {
		if !r.HasValidDate() || !r.SaleDate.MonthStart().Equal(m.MonthStart()) {
			return false
		}
	}
	return true
}

// Apply returns the records matching s, in input order. The input is not modified.
func (s State) Apply(records []core.Record) []core.Record {
	out := make([]core.Record, 0, len(records))
	for _, r := range records {
		if s.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// Key is a canonical text form of the state, equal for equal states.
func (s State) Key() string {
	var b strings.Builder
	if dr, ok := s.DateRange.Get(); ok {
		fmt.Fprintf(&b, "date=%s..%s", dr.Min, dr.Max)
	} else {
		b.WriteString("date=*")
	}
	b.WriteString(";pool=" + optKey(s.Pool))
	b.WriteString(";garage=" + optKey(s.Garage))
	b.WriteString(";rooms=" + optKey(s.Rooms))
	if m, ok := s.Month.Get(); ok {
		b.WriteString(";month=" + m.Format("2006-01"))
	} else {
		b.WriteString(";month=*")
	}
	return b.String()
}

func optKey[T any](o Opt[T]) string {
	if v, ok := o.Get(); ok {
		return fmt.Sprint(v)
	}
	return "*"
}
