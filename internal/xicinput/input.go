// Package xicinput builds XIC queries from user input: JSON documents of
// query entries, and peptide identifications.
package xicinput

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/524D/mzxic/internal/xic"
)

var (
	ErrAmbiguousMz    = errors.New("xicinput: more than one of mz, mz_start/mz_end and sequence given")
	ErrMissingCharge  = errors.New("xicinput: sequence given without charge")
	ErrStrayTolerance = errors.New("xicinput: tolerance given without mz or sequence")
	ErrStrayCharge    = errors.New("xicinput: charge given without sequence")
)

// Entry is one query of an input document. At most one way to give the
// m/z range may be used: a center m/z with tolerance, an explicit range or
// a peptide sequence with charge. Tolerance only applies to mz and
// sequence, charge only to sequence. Absent fields leave the bound unset.
type Entry struct {
	Mz            *float64 `json:"mz,omitempty" jsonschema:"description=Center m/z of the trace"`
	Tolerance     *float64 `json:"tolerance,omitempty" jsonschema:"minimum=0,description=Half width of the m/z window around mz or the peptide m/z (default 10)"`
	ToleranceUnit string   `json:"tolerance_unit,omitempty" jsonschema:"enum=ppm,enum=da,enum=amu,enum=mmu,description=Unit of tolerance (case insensitive)"`
	MzStart       *float64 `json:"mz_start,omitempty" jsonschema:"minimum=0"`
	MzEnd         *float64 `json:"mz_end,omitempty" jsonschema:"minimum=0"`
	Sequence      string   `json:"sequence,omitempty" jsonschema:"pattern=^[ACDEFGHIKLMNOPQRSTUVWYacdefghiklmnopqrstuvwy]+$"`
	Charge        int      `json:"charge,omitempty" jsonschema:"minimum=1"`
	RtStart       *float64 `json:"rt_start,omitempty" jsonschema:"description=Retention time in minutes"`
	RtEnd         *float64 `json:"rt_end,omitempty" jsonschema:"description=Retention time in minutes"`
	Filter        string   `json:"filter,omitempty"`
	Comment       string   `json:"comment,omitempty"`
}

// Parse validates an input document and converts its entries to units
func Parse(data []byte) ([]xic.Unit, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	lowerUnits(doc)
	if err := validate(doc); err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	units := make([]xic.Unit, 0, len(entries))
	for i, e := range entries {
		u, err := e.Unit()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		units = append(units, u)
	}
	return units, nil
}

// lowerUnits lowercases the tolerance units of a decoded document, so
// that the schema enum matches any case
func lowerUnits(doc any) {
	entries, ok := doc.([]any)
	if !ok {
		return
	}
	for _, e := range entries {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		if u, ok := m["tolerance_unit"].(string); ok {
			m["tolerance_unit"] = strings.ToLower(u)
		}
	}
}

// Read parses an input document from r
func Read(r io.Reader) ([]xic.Unit, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// ReadFile parses the input document in file name
func ReadFile(name string) ([]xic.Unit, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Unit converts the entry to an unextracted unit
func (e Entry) Unit() (xic.Unit, error) {
	forms := 0
	if e.Mz != nil {
		forms++
	}
	if e.MzStart != nil || e.MzEnd != nil {
		forms++
	}
	if e.Sequence != "" {
		forms++
	}
	if forms > 1 {
		return xic.Unit{}, ErrAmbiguousMz
	}
	if e.Mz == nil && e.Sequence == "" && (e.Tolerance != nil || e.ToleranceUnit != "") {
		return xic.Unit{}, ErrStrayTolerance
	}
	if e.Sequence == "" && e.Charge != 0 {
		return xic.Unit{}, ErrStrayCharge
	}

	q := xic.Query{
		MzStart: bound(e.MzStart),
		MzEnd:   bound(e.MzEnd),
		RtStart: bound(e.RtStart),
		RtEnd:   bound(e.RtEnd),
		Filter:  e.Filter,
		Comment: e.Comment,
	}

	center, hasCenter := 0.0, false
	switch {
	case e.Mz != nil:
		center, hasCenter = *e.Mz, true
	case e.Sequence != "":
		if e.Charge == 0 {
			return xic.Unit{}, ErrMissingCharge
		}
		m, err := PepMass(e.Sequence)
		if err != nil {
			return xic.Unit{}, err
		}
		center, err = ChargedMz(m, e.Charge)
		if err != nil {
			return xic.Unit{}, err
		}
		hasCenter = true
		if q.Comment == "" {
			q.Comment = fmt.Sprintf("%s %d+", e.Sequence, e.Charge)
		}
	}
	if hasCenter {
		tol := DefaultTolerance
		if e.Tolerance != nil {
			tol.Value = *e.Tolerance
		}
		if e.ToleranceUnit != "" {
			tol.Unit = e.ToleranceUnit
		}
		lo, hi, err := tol.Window(center)
		if err != nil {
			return xic.Unit{}, err
		}
		q.MzStart, q.MzEnd = xic.Value(lo), xic.Value(hi)
	}
	return xic.Unit{Meta: q}, nil
}

func bound(v *float64) xic.Bound {
	if v == nil {
		return xic.Unset()
	}
	return xic.Value(*v)
}
