package xicinput

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/mzxic/internal/mzidentml"
	"github.com/524D/mzxic/internal/xic"
)

func bounds(t *testing.T, u xic.Unit) (mzStart, mzEnd float64) {
	t.Helper()
	lo, ok := u.Meta.MzStart.Get()
	require.True(t, ok, "MzStart unset")
	hi, ok := u.Meta.MzEnd.Get()
	require.True(t, ok, "MzEnd unset")
	return lo, hi
}

func TestPepMass(t *testing.T) {
	m, err := PepMass("PEPTIDE")
	require.NoError(t, err)
	assert.InDelta(t, 799.359964, m, 1e-6)

	lower, err := PepMass("peptide")
	require.NoError(t, err)
	assert.Equal(t, m, lower)

	mz, err := ChargedMz(m, 2)
	require.NoError(t, err)
	assert.InDelta(t, 400.687258, mz, 1e-6)

	_, err = PepMass("PEPTIDEX")
	assert.ErrorIs(t, err, ErrInvalidAminoAcid)
	_, err = PepMass("")
	assert.ErrorIs(t, err, ErrInvalidAminoAcid)
	_, err = ChargedMz(m, 0)
	assert.ErrorIs(t, err, ErrInvalidCharge)
}

func TestParseTolerance(t *testing.T) {
	tests := []struct {
		in   string
		want Tolerance
	}{
		{"10ppm", Tolerance{10, UnitPPM}},
		{"0.02da", Tolerance{0.02, UnitDa}},
		{"0.02 Da", Tolerance{0.02, UnitDa}},
		{"5", Tolerance{5, UnitPPM}},
		{"3mmu", Tolerance{3, UnitMmu}},
		{"1.5amu", Tolerance{1.5, UnitAmu}},
		{"5e-3da", Tolerance{0.005, UnitDa}},
		{"2E+1ppm", Tolerance{20, UnitPPM}},
	}
	for _, tt := range tests {
		got, err := ParseTolerance(tt.in)
		if assert.NoError(t, err, tt.in) {
			assert.Equal(t, tt.want, got, tt.in)
		}
	}

	_, err := ParseTolerance("7xyz")
	assert.ErrorIs(t, err, ErrUnknownUnit)
	_, err = ParseTolerance("ppm")
	assert.Error(t, err)
	_, err = ParseTolerance("-5da")
	assert.Error(t, err)
	assert.Equal(t, "10ppm", DefaultTolerance.String())
}

func TestToleranceWindow(t *testing.T) {
	lo, hi, err := Tolerance{10, UnitPPM}.Window(500)
	require.NoError(t, err)
	assert.InDelta(t, 499.995, lo, 1e-9)
	assert.InDelta(t, 500.005, hi, 1e-9)

	lo, hi, err = Tolerance{5, UnitMmu}.Window(500)
	require.NoError(t, err)
	assert.InDelta(t, 499.995, lo, 1e-9)
	assert.InDelta(t, 500.005, hi, 1e-9)

	_, _, err = Tolerance{1, "th"}.Window(500)
	assert.ErrorIs(t, err, ErrUnknownUnit)
}

func TestParse(t *testing.T) {
	doc := `[
		{"mz": 500, "rt_start": 10, "rt_end": 20, "comment": "default tolerance"},
		{"mz": 500, "tolerance": 0.5, "tolerance_unit": "da", "filter": "ms2"},
		{"mz_start": 300},
		{"sequence": "PEPTIDE", "charge": 2, "tolerance": 20},
		{}
	]`
	units, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, units, 5)

	lo, hi := bounds(t, units[0])
	assert.InDelta(t, 499.995, lo, 1e-9)
	assert.InDelta(t, 500.005, hi, 1e-9)
	assert.Equal(t, xic.Value(10), units[0].Meta.RtStart)
	assert.Equal(t, xic.Value(20), units[0].Meta.RtEnd)
	assert.Equal(t, "default tolerance", units[0].Meta.Comment)

	lo, hi = bounds(t, units[1])
	assert.InDelta(t, 499.5, lo, 1e-9)
	assert.InDelta(t, 500.5, hi, 1e-9)
	assert.Equal(t, "ms2", units[1].Meta.Filter)
	assert.False(t, units[1].Meta.RtStart.IsSet())

	assert.Equal(t, xic.Value(300), units[2].Meta.MzStart)
	assert.False(t, units[2].Meta.MzEnd.IsSet())

	m, _ := PepMass("PEPTIDE")
	mz, _ := ChargedMz(m, 2)
	lo, hi = bounds(t, units[3])
	assert.InDelta(t, mz-mz*20e-6, lo, 1e-9)
	assert.InDelta(t, mz+mz*20e-6, hi, 1e-9)
	assert.Equal(t, "PEPTIDE 2+", units[3].Meta.Comment)

	assert.Equal(t, xic.Unit{}, units[4])
	for _, u := range units {
		assert.Nil(t, u.Result)
	}
}

func TestParseUnitCase(t *testing.T) {
	units, err := Parse([]byte(`[{"mz": 500, "tolerance": 0.5, "tolerance_unit": "Da"}, {"mz": 500, "tolerance_unit": "PPM"}]`))
	require.NoError(t, err)
	lo, hi := bounds(t, units[0])
	assert.InDelta(t, 499.5, lo, 1e-9)
	assert.InDelta(t, 500.5, hi, 1e-9)
	lo, hi = bounds(t, units[1])
	assert.InDelta(t, 499.995, lo, 1e-9)
	assert.InDelta(t, 500.005, hi, 1e-9)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		want    error
		message string
	}{
		{"not json", `[{`, ErrInvalidInput, ""},
		{"not an array", `{"mz": 500}`, ErrInvalidInput, ""},
		{"unknown field", `[{"mass": 500}]`, ErrInvalidInput, "/0"},
		{"unknown unit", `[{"mz": 500, "tolerance_unit": "th"}]`, ErrInvalidInput, "/0/tolerance_unit"},
		{"negative tolerance", `[{"mz": 500, "tolerance": -1}]`, ErrInvalidInput, "/0/tolerance"},
		{"bad sequence", `[{}, {"sequence": "PEPTIDEX", "charge": 2}]`, ErrInvalidInput, "/1/sequence"},
		{"bad charge", `[{"sequence": "PEPTIDE", "charge": -2}]`, ErrInvalidInput, "/0/charge"},
		{"mz type", `[{"mz": "500"}]`, ErrInvalidInput, "/0/mz"},
		{"two forms", `[{"mz": 500, "mz_end": 600}]`, ErrAmbiguousMz, ""},
		{"three forms", `[{"mz": 500, "mz_start": 400, "sequence": "PEPTIDE", "charge": 1}]`, ErrAmbiguousMz, ""},
		{"no charge", `[{"sequence": "PEPTIDE"}]`, ErrMissingCharge, ""},
		{"tolerance with range", `[{"mz_start": 500, "mz_end": 501, "tolerance": 5}]`, ErrStrayTolerance, ""},
		{"unit with range", `[{"mz_start": 500, "tolerance_unit": "da"}]`, ErrStrayTolerance, ""},
		{"charge without sequence", `[{"mz": 500, "charge": 2}]`, ErrStrayCharge, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.ErrorIs(t, err, tt.want)
			if tt.message != "" {
				assert.Contains(t, err.Error(), tt.message)
			}
		})
	}
}

func TestReadEmpty(t *testing.T) {
	units, err := Read(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Empty(t, units)
}

func TestSchemaJSON(t *testing.T) {
	b, err := SchemaJSON()
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"type": "array"`)
	assert.Contains(t, s, `"tolerance_unit"`)
	assert.NotContains(t, s, `"$ref"`)
}

func TestFromIdentifications(t *testing.T) {
	ids := []mzidentml.Identification{
		{PepSeq: "PEPTIDE", PepID: "p1", Charge: 2, Rank: 1, PassThreshold: true, CalculatedMz: 400.6924, RetentionTime: 15.5},
		{PepSeq: "PEPTIDE", PepID: "p1", Charge: 2, Rank: 1, PassThreshold: true, CalculatedMz: 400.6924, RetentionTime: 16},
		{PepSeq: "PEPTIDE", PepID: "p1", Charge: 3, Rank: 2, PassThreshold: true, CalculatedMz: 267.4640, RetentionTime: 16},
		{PepSeq: "SAMPLER", PepID: "p2", Charge: 2, Rank: 1, PassThreshold: false, CalculatedMz: 394.2, RetentionTime: 20},
		{PepSeq: "MSCK", PepID: "p3", Charge: 3, Rank: 1, PassThreshold: true, ModMass: 57.021464, RetentionTime: -1},
	}
	units, err := FromIdentifications(ids, Tolerance{0.01, UnitDa}, 1)
	require.NoError(t, err)
	require.Len(t, units, 2)

	lo, hi := bounds(t, units[0])
	assert.InDelta(t, 400.6824, lo, 1e-9)
	assert.InDelta(t, 400.7024, hi, 1e-9)
	assert.Equal(t, xic.Value(14.5), units[0].Meta.RtStart)
	assert.Equal(t, xic.Value(17), units[0].Meta.RtEnd)
	assert.Equal(t, "PEPTIDE 2+", units[0].Meta.Comment)

	m, err := PepMass("MSCK")
	require.NoError(t, err)
	mz, err := ChargedMz(m+57.021464, 3)
	require.NoError(t, err)
	lo, hi = bounds(t, units[1])
	assert.InDelta(t, mz-0.01, lo, 1e-9)
	assert.InDelta(t, mz+0.01, hi, 1e-9)
	assert.False(t, units[1].Meta.RtStart.IsSet())
	assert.False(t, units[1].Meta.RtEnd.IsSet())

	// Without an RT window, no RT bounds are set
	units, err = FromIdentifications(ids[:1], DefaultTolerance, 0)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.False(t, units[0].Meta.RtStart.IsSet())

	// RT windows do not start before zero
	units, err = FromIdentifications([]mzidentml.Identification{
		{PepSeq: "PEPTIDE", Charge: 1, Rank: 1, PassThreshold: true, RetentionTime: 0.5},
	}, DefaultTolerance, 2)
	require.NoError(t, err)
	assert.Equal(t, xic.Value(0), units[0].Meta.RtStart)
	assert.Equal(t, xic.Value(2.5), units[0].Meta.RtEnd)
}
