package xic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrMixedResult means the two result fields of a unit do not share one
// representation
var ErrMixedResult = errors.New("xic: retention times and intensities differ in representation")

// Query is the request part of a unit. Unset bounds are filled from the
// run when the unit is extracted. An empty filter means the generic MS
// filter; it is not written back.
type Query struct {
	MzStart Bound  `json:"MzStart"`
	MzEnd   Bound  `json:"MzEnd"`
	RtStart Bound  `json:"RtStart"`
	RtEnd   Bound  `json:"RtEnd"`
	Filter  string `json:"Filter,omitempty"`
	Comment string `json:"Comment,omitempty"`
}

// Result is the extracted signal of a unit: nil (not extracted, or no
// samples), Raw or Encoded
type Result interface {
	clone() Result
}

// Raw holds an extracted signal as numbers
type Raw struct {
	Times       []float64
	Intensities []float64
}

func (r Raw) clone() Result {
	return Raw{Times: slices.Clone(r.Times), Intensities: slices.Clone(r.Intensities)}
}

// Encoded holds an extracted signal as base64 strings of little-endian
// 64-bit floats
type Encoded struct {
	Times       string
	Intensities string
}

func (e Encoded) clone() Result {
	return e
}

// Unit is one XIC query together with its result
type Unit struct {
	Meta   Query
	Result Result
}

// NewUnit returns a unit for the given window
func NewUnit(mzStart, mzEnd, rtStart, rtEnd Bound, filter, comment string) Unit {
	return Unit{Meta: Query{
		MzStart: mzStart,
		MzEnd:   mzEnd,
		RtStart: rtStart,
		RtEnd:   rtEnd,
		Filter:  filter,
		Comment: comment,
	}}
}

// Clone returns a deep copy of u
func (u Unit) Clone() Unit {
	c := Unit{Meta: u.Meta}
	if u.Result != nil {
		c.Result = u.Result.clone()
	}
	return c
}

// Valid reports whether the set bounds form non-empty ranges. An invalid
// unit is still extracted unless Options.SkipInvalid is set.
func (u Unit) Valid() bool {
	return u.Meta.valid()
}

func (q Query) valid() bool {
	mzStart, okStart := q.MzStart.Get()
	mzEnd, okEnd := q.MzEnd.Get()
	if okStart && okEnd && mzStart > mzEnd {
		return false
	}
	rtStart, okStart := q.RtStart.Get()
	rtEnd, okEnd := q.RtEnd.Get()
	if okStart && okEnd && rtStart > rtEnd {
		return false
	}
	return true
}

func (u Unit) String() string {
	return fmt.Sprintf("Filter: %q; m/z: [%s - %s]; RT: [%s - %s]; Comment: %s",
		u.Meta.Filter, u.Meta.MzStart, u.Meta.MzEnd, u.Meta.RtStart, u.Meta.RtEnd, u.Meta.Comment)
}

type unitJSON struct {
	Meta           Query           `json:"Meta"`
	RetentionTimes json.RawMessage `json:"RetentionTimes"`
	Intensities    json.RawMessage `json:"Intensities"`
}

// MarshalJSON writes the result fields as null, number arrays or strings
func (u Unit) MarshalJSON() ([]byte, error) {
	var times, intens any
	switch r := u.Result.(type) {
	case nil:
	case Raw:
		times, intens = nonNil(r.Times), nonNil(r.Intensities)
	case Encoded:
		times, intens = r.Times, r.Intensities
	default:
		return nil, fmt.Errorf("xic: unknown result type %T", r)
	}
	t, err := json.Marshal(times)
	if err != nil {
		return nil, err
	}
	i, err := json.Marshal(intens)
	if err != nil {
		return nil, err
	}
	return json.Marshal(unitJSON{Meta: u.Meta, RetentionTimes: t, Intensities: i})
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

// UnmarshalJSON accepts the representation written by MarshalJSON
func (u *Unit) UnmarshalJSON(data []byte) error {
	var uj unitJSON
	if err := json.Unmarshal(data, &uj); err != nil {
		return err
	}
	kt, ki := resultKind(uj.RetentionTimes), resultKind(uj.Intensities)
	if kt != ki {
		return ErrMixedResult
	}
	u.Meta = uj.Meta
	u.Result = nil
	switch kt {
	case '[':
		var r Raw
		if err := json.Unmarshal(uj.RetentionTimes, &r.Times); err != nil {
			return err
		}
		if err := json.Unmarshal(uj.Intensities, &r.Intensities); err != nil {
			return err
		}
		u.Result = r
	case '"':
		var e Encoded
		if err := json.Unmarshal(uj.RetentionTimes, &e.Times); err != nil {
			return err
		}
		if err := json.Unmarshal(uj.Intensities, &e.Intensities); err != nil {
			return err
		}
		u.Result = e
	case 'n':
	default:
		return fmt.Errorf("xic: unexpected result value %s", uj.RetentionTimes)
	}
	return nil
}

// resultKind returns the first byte of a JSON value, 'n' for null or absent
func resultKind(raw json.RawMessage) byte {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 'n'
	}
	return raw[0]
}
