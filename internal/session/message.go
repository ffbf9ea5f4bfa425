package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"databoard/internal/core"
	"databoard/internal/filter"
	"databoard/internal/views"
)

// Client message types.
const (
	TypeSetDateRange   = "set_date_range"
	TypeClearDateRange = "clear_date_range"
	TypeSetPool        = "set_pool"
	TypeSetGarage      = "set_garage"
	TypeTogglePool     = "toggle_pool"
	TypeToggleGarage   = "toggle_garage"
	TypeSelectRooms    = "select_rooms"
	TypeSelectMonth    = "select_month"
	TypeReset          = "reset"
	TypePing           = "ping"
)

// Server message types.
const (
	TypeView  = "view"
	TypeError = "error"
	TypePong  = "pong"
)

var ErrUnknownType = errors.New("unknown message type")

// Request is a message sent by the browser. Value carries the selection for
// the set, toggle and select types; null or absent clears the predicate.
type Request struct {
	Type  string          `json:"type"`
	Start string          `json:"start,omitempty"`
	End   string          `json:"end,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// Reply is a message sent to the browser.
type Reply struct {
	Type    string        `json:"type"`
	Session string        `json:"session"`
	Filters *filter.State `json:"filters,omitempty"`
	View    *views.View   `json:"view,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Apply runs one request against the engine and returns the reply to send.
// Malformed requests leave the engine state untouched.
func Apply(e *filter.Engine, req Request) (Reply, error) {
	var (
		v   views.View
		err error
	)
	switch req.Type {
	case TypePing:
		return Reply{Type: TypePong}, nil
	case TypeReset:
		v = e.Reset()
	case TypeClearDateRange:
		v = e.ClearDateRange()
	case TypeSetDateRange:
		var start, end core.Date
		if start, err = core.ParseDate(req.Start); err != nil {
			return Reply{}, fmt.Errorf("start: %w", err)
		}
		if end, err = core.ParseDate(req.End); err != nil {
			return Reply{}, fmt.Errorf("end: %w", err)
		}
		v = e.SetDateRange(start, end)
	case TypeSetPool, TypeTogglePool, TypeSetGarage, TypeToggleGarage:
		var b filter.Opt[bool]
		if b, err = decodeOpt[bool](req.Value); err != nil {
			return Reply{}, err
		}
		v = applyBool(e, req.Type, b)
	case TypeSelectRooms:
		var n filter.Opt[int]
		if n, err = decodeOpt[int](req.Value); err != nil {
			return Reply{}, err
		}
		v = e.SelectRooms(n)
	case TypeSelectMonth:
		var m filter.Opt[core.Date]
		if m, err = decodeMonth(req.Value); err != nil {
			return Reply{}, err
		}
		v = e.SelectMonth(m)
	default:
		return Reply{}, fmt.Errorf("%w %q", ErrUnknownType, req.Type)
	}

	st := e.State()
	return Reply{Type: TypeView, Filters: &st, View: &v}, nil
}

func applyBool(e *filter.Engine, typ string, b filter.Opt[bool]) views.View {
	switch typ {
	case TypeSetPool:
		return e.SetPool(b)
	case TypeTogglePool:
		return e.SelectPool(b)
	case TypeSetGarage:
		return e.SetGarage(b)
	default:
		return e.SelectGarage(b)
	}
}

func decodeOpt[T any](raw json.RawMessage) (filter.Opt[T], error) {
	var o filter.Opt[T]
	if len(raw) == 0 {
		return o, nil
	}
	if err := json.Unmarshal(raw, &o); err != nil {
		return o, fmt.Errorf("value: %w", err)
	}
	return o, nil
}

// decodeMonth accepts "YYYY-MM" or any sale date layout.
func decodeMonth(raw json.RawMessage) (filter.Opt[core.Date], error) {
	s, err := decodeOpt[string](raw)
	if err != nil {
		return filter.None[core.Date](), err
	}
	text, ok := s.Get()
	if !ok || text == "" {
		return filter.None[core.Date](), nil
	}
	if m, err := core.ParseMonth(text); err == nil {
		return filter.Some(m), nil
	}
	d, err := core.ParseDate(text)
	if err != nil {
		return filter.None[core.Date](), fmt.Errorf("value: %w", err)
	}
	return filter.Some(d.MonthStart()), nil
}
