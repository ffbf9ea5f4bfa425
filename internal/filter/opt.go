package filter

import (
	"bytes"
	"encoding/json"
)

// Opt is an optional predicate value. The zero Opt is unset.
type Opt[T any] struct {
	v   T
	set bool
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] { return Opt[T]{v: v, set: true} }

// None returns an unset Opt.
func None[T any]() Opt[T] { return Opt[T]{} }

// Get returns the held value and whether it is set.
func (o Opt[T]) Get() (T, bool) { return o.v, o.set }

// IsSet reports whether the Opt holds a value.
func (o Opt[T]) IsSet() bool { return o.set }

// MarshalJSON encodes an unset Opt as null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.set {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}

func (o *Opt[T]) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = Opt[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
