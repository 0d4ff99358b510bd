package xicinput

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tolerance units
const (
	UnitPPM = "ppm"
	UnitDa  = "da"
	UnitAmu = "amu"
	UnitMmu = "mmu"
)

// DefaultTolerance is used when an entry gives an m/z without tolerance
var DefaultTolerance = Tolerance{Value: 10, Unit: UnitPPM}

var ErrUnknownUnit = errors.New("xicinput: unknown tolerance unit")

// Tolerance is the half width of an m/z window
type Tolerance struct {
	Value float64
	Unit  string
}

// Window returns the m/z range of mz +/- t
func (t Tolerance) Window(mz float64) (float64, float64, error) {
	var w float64
	switch strings.ToLower(t.Unit) {
	case UnitPPM, "":
		w = mz * t.Value * 1e-6
	case UnitDa, UnitAmu:
		w = t.Value
	case UnitMmu:
		w = t.Value * 1e-3
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrUnknownUnit, t.Unit)
	}
	return mz - w, mz + w, nil
}

func (t Tolerance) String() string {
	u := t.Unit
	if u == "" {
		u = UnitPPM
	}
	return strconv.FormatFloat(t.Value, 'g', -1, 64) + u
}

// ParseTolerance parses a value with an optional unit suffix, like "10ppm",
// "0.02da" or "5". Without a unit ppm is assumed.
func ParseTolerance(s string) (Tolerance, error) {
	s = strings.TrimSpace(s)
	i := -1
	for k, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '+' || r == 'e' || r == 'E' {
			continue
		}
		// exponent sign
		if r == '-' && k > 0 && (s[k-1] == 'e' || s[k-1] == 'E') {
			continue
		}
		i = k
		break
	}
	num, unit := s, ""
	if i >= 0 {
		num, unit = s[:i], strings.ToLower(strings.TrimSpace(s[i:]))
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return Tolerance{}, fmt.Errorf("xicinput: invalid tolerance %q: %w", s, err)
	}
	t := Tolerance{Value: v, Unit: unit}
	if unit == "" {
		t.Unit = UnitPPM
	}
	if _, _, err := t.Window(0); err != nil {
		return Tolerance{}, err
	}
	return t, nil
}
