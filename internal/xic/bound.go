package xic

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Bound is an optional query limit. The zero value is unset.
type Bound struct {
	v   float64
	set bool
}

// Unset returns an unset bound
func Unset() Bound {
	return Bound{}
}

// Value returns a bound set to v
func Value(v float64) Bound {
	return Bound{v: v, set: true}
}

// IsSet reports whether the bound has a value
func (b Bound) IsSet() bool {
	return b.set
}

// Get returns the value and whether it is set
func (b Bound) Get() (float64, bool) {
	return b.v, b.set
}

// Or returns the value, or def when unset
func (b Bound) Or(def float64) float64 {
	if b.set {
		return b.v
	}
	return def
}

func (b Bound) String() string {
	if !b.set {
		return ""
	}
	return strconv.FormatFloat(b.v, 'g', -1, 64)
}

// MarshalJSON writes null for an unset bound
func (b Bound) MarshalJSON() ([]byte, error) {
	if !b.set {
		return []byte("null"), nil
	}
	return json.Marshal(b.v)
}

// UnmarshalJSON reads null as unset
func (b *Bound) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = Bound{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*b = Value(v)
	return nil
}
