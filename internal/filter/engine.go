package filter

import (
	"databoard/internal/core"
	"databoard/internal/views"
)

// Engine owns a read-only record set and the current filter State. Every
// mutation replaces the State and rebuilds the View before returning, so a
// caller never observes a view computed from an older state.
//
// An Engine is not safe for concurrent use; each session owns its own.
type Engine struct {
	records []core.Record
	initial State
	state   State
	view    views.View
}

// NewEngine creates an engine over the dataset, starting from Initial(ds).
func NewEngine(ds core.Dataset) *Engine {
	e := &Engine{records: ds.Records, initial: Initial(ds)}
	e.Replace(e.initial)
	return e
}

// State returns the current filter state.
func (e *Engine) State() State { return e.state }

// View returns the view built by the last mutation.
func (e *Engine) View() views.View { return e.view }

// CurrentFiltered computes the records matching the current state.
func (e *Engine) CurrentFiltered() []core.Record {
	return e.state.Apply(e.records)
}

// Replace swaps the whole state and recomputes. The date range and month are
// normalized the same way the With methods normalize them.
func (e *Engine) Replace(s State) views.View {
	e.state = s.WithDateRange(s.DateRange).WithMonth(s.Month)
	e.view = views.Build(e.CurrentFiltered())
	return e.view
}

// Reset restores the load-time state.
func (e *Engine) Reset() views.View { return e.Replace(e.initial) }

func (e *Engine) SetDateRange(start, end core.Date) views.View {
	return e.Replace(e.state.WithDateRange(Some(core.DateRange{Min: start, Max: end})))
}

func (e *Engine) ClearDateRange() views.View {
	return e.Replace(e.state.WithDateRange(None[core.DateRange]()))
}

func (e *Engine) SetPool(v Opt[bool]) views.View   { return e.Replace(e.state.WithPool(v)) }
func (e *Engine) SetGarage(v Opt[bool]) views.View { return e.Replace(e.state.WithGarage(v)) }
func (e *Engine) SetRooms(v Opt[int]) views.View   { return e.Replace(e.state.WithRooms(v)) }
func (e *Engine) SetMonth(v Opt[core.Date]) views.View {
	return e.Replace(e.state.WithMonth(v))
}

// SelectPool is the click handler for the pool toggle pair.
func (e *Engine) SelectPool(v Opt[bool]) views.View { return e.Replace(e.state.TogglePool(v)) }

// SelectGarage is the click handler for the garage toggle pair.
func (e *Engine) SelectGarage(v Opt[bool]) views.View { return e.Replace(e.state.ToggleGarage(v)) }

// SelectRooms is the click handler for the room chart.
func (e *Engine) SelectRooms(v Opt[int]) views.View { return e.Replace(e.state.ToggleRooms(v)) }

// SelectMonth is the click handler for the monthly chart.
func (e *Engine) SelectMonth(v Opt[core.Date]) views.View {
	return e.Replace(e.state.ToggleMonth(v))
}
