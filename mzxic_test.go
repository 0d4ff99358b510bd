package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/524D/mzxic/internal/mzml/mzmltest"
	"github.com/524D/mzxic/internal/xic"
)

func TestParseBoundRange(t *testing.T) {
	// Test case 1: Valid input range
	lo, hi, err := parseBoundRange("0.5:1.5")
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if lo != xic.Value(0.5) {
		t.Errorf("Expected min to be 0.5, got: %v", lo)
	}
	if hi != xic.Value(1.5) {
		t.Errorf("Expected max to be 1.5, got: %v", hi)
	}

	// Test case 2: Empty input range
	lo, hi, err = parseBoundRange("")
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if lo.IsSet() || hi.IsSet() {
		t.Errorf("Expected unset bounds, got: %v %v", lo, hi)
	}

	// Test case 3: Invalid input range
	_, _, err = parseBoundRange("2.5:1.5")
	if !errors.Is(err, ErrRangeSpec) {
		t.Errorf("Expected error: %v, got: %v", ErrRangeSpec, err)
	}

	// Test case 4: Only max specified
	lo, hi, err = parseBoundRange(":1.5")
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if lo.IsSet() {
		t.Errorf("Expected min to be unset, got: %v", lo)
	}
	if hi != xic.Value(1.5) {
		t.Errorf("Expected max to be 1.5, got: %v", hi)
	}

	// Test case 5: Only min specified
	lo, hi, err = parseBoundRange("500:")
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if lo != xic.Value(500) {
		t.Errorf("Expected min to be 500, got: %v", lo)
	}
	if hi.IsSet() {
		t.Errorf("Expected max to be unset, got: %v", hi)
	}

	// Test case 6: Only ":" specified
	lo, hi, err = parseBoundRange(":")
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if lo.IsSet() || hi.IsSet() {
		t.Errorf("Expected unset bounds, got: %v %v", lo, hi)
	}

	// Test case 7: Exponents in numbers
	lo, hi, err = parseBoundRange("-2.0e10:3.0e10")
	if err != nil {
		t.Errorf("Expected no error, got: %v", err)
	}
	if lo != xic.Value(-2.0e10) {
		t.Errorf("Expected min to be -2.0e10, got: %v", lo)
	}
	if hi != xic.Value(3.0e10) {
		t.Errorf("Expected max to be 3.0e10, got: %v", hi)
	}

	// Test case 8: Garbage
	for _, r := range []string{"abc", "1:2:3", "500"} {
		if _, _, err = parseBoundRange(r); !errors.Is(err, ErrRangeSpec) {
			t.Errorf("%q: expected error: %v, got: %v", r, ErrRangeSpec, err)
		}
	}
}

func TestParseIntRange(t *testing.T) {
	tests := []struct {
		in       string
		min, max int
		wantErr  bool
	}{
		{"3:6", 3, 6, false},
		{":6", 0, 6, false},
		{"3:", 3, 10, false},
		{":", 0, 10, false},
		{"-5:20", 0, 10, false},
		{"4", 4, 4, false},
		{"8:2", 2, 2, true},
		{"x", 0, 10, true},
	}
	for _, tt := range tests {
		min, max, err := parseIntRange(tt.in, 0, 10)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: error return %v", tt.in, err)
		}
		if min != tt.min || max != tt.max {
			t.Errorf("%q: got %d:%d, expected %d:%d", tt.in, min, max, tt.min, tt.max)
		}
	}
}

func JSONCompare(t testing.TB, expected, actual io.Reader) {
	alwaysEqual := cmp.Comparer(func(_, _ interface{}) bool { return true })

	opts := cmp.Options{
		// This option declares that a float64 comparison is equal only if
		// both inputs are NaN.
		cmp.FilterValues(func(x, y float64) bool {
			return math.IsNaN(x) && math.IsNaN(y)
		}, alwaysEqual),

		// This option declares approximate equality on float64s only if
		// both inputs are not NaN.
		cmp.FilterValues(func(x, y float64) bool {
			return !math.IsNaN(x) && !math.IsNaN(y)
		}, cmp.Comparer(func(x, y float64) bool {
			delta := math.Abs(x - y)
			mean := math.Abs(x+y) / 2.0
			return delta == 0 || delta/mean < 0.00001
		})),
	}

	var in1 map[string]any
	var in2 map[string]any

	dec := json.NewDecoder(expected)
	err := dec.Decode(&in1)
	if err != nil {
		t.Fatalf("Error decoding expected JSON: %v", err)
	}
	dec = json.NewDecoder(actual)
	err = dec.Decode(&in2)
	if err != nil {
		t.Fatalf("Error decoding actual JSON: %v", err)
	}

	if diff := cmp.Diff(in1, in2, opts); diff != "" {
		t.Errorf("JSON mismatch (-want +got):\n%s", diff)
	}
}

// JSONCompareFile compares the contents of a JSON file with a string
func JSONCompareFile(t testing.TB, expected, actualFile string) {
	actual, err := os.Open(actualFile)
	if err != nil {
		t.Fatalf("Error opening actual file: %v", err)
	}
	defer actual.Close()
	JSONCompare(t, strings.NewReader(expected), actual)
}

func runMain(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("MZXIC_DEBUG", "")
	t.Setenv("MZXIC_LOG_FILE", "")
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestMassRange(t *testing.T) {
	mzML := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(10))
	outDir := t.TempDir()

	code, _, stderr := runMain(t, "-quiet", "-mz", "499:501", "-o", outDir, mzML)
	require.Equal(t, exitOK, code, stderr)

	JSONCompareFile(t, `{
		"OutputMeta": {"base64": false, "timeunit": "minutes"},
		"Content": [{
			"Meta": {"MzStart": 499, "MzEnd": 501, "RtStart": 0, "RtEnd": 4.5},
			"RetentionTimes": [0, 1, 2, 3, 4],
			"Intensities": [10, 30, 50, 70, 90]
		}]
	}`, filepath.Join(outDir, "test.xic.json"))
}

func TestDefaultOutputName(t *testing.T) {
	mzML := mzmltest.WriteFile(t, "run.mzML", mzmltest.Run(4))

	code, _, stderr := runMain(t, "-quiet", "-filter", "ms2", "-comment", "all MS2", mzML)
	require.Equal(t, exitOK, code, stderr)

	JSONCompareFile(t, `{
		"OutputMeta": {"base64": false, "timeunit": "minutes"},
		"Content": [{
			"Meta": {"MzStart": 100, "MzEnd": 2000, "RtStart": 0, "RtEnd": 1.5,
				"Filter": "ms2", "Comment": "all MS2"},
			"RetentionTimes": [0.5, 1.5],
			"Intensities": [4, 8]
		}]
	}`, filepath.Join(filepath.Dir(mzML), "run.xic.json"))
}

func TestBase64Stdout(t *testing.T) {
	mzML := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(10))

	code, stdout, stderr := runMain(t, "-quiet", "-b", "-rt", "1:3", "-o", "-", mzML)
	require.Equal(t, exitOK, code, stderr)

	var data xic.Data
	require.NoError(t, json.Unmarshal([]byte(stdout), &data))
	assert.True(t, data.OutputMeta.Base64)
	require.Len(t, data.Content, 1)
	enc, ok := data.Content[0].Result.(xic.Encoded)
	require.True(t, ok, "result is %T", data.Content[0].Result)
	dec, err := enc.Decode()
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, dec.Times)
	assert.Equal(t, []float64{333, 555, 777}, dec.Intensities)
}

func TestInputFile(t *testing.T) {
	dir := t.TempDir()
	mzML1 := mzmltest.WriteFile(t, "a.mzML", mzmltest.Run(10))
	mzML2 := mzmltest.WriteFile(t, "b.mzML", mzmltest.Run(6))
	input := filepath.Join(dir, "queries.json")
	require.NoError(t, os.WriteFile(input, []byte(`[
		{"mz": 500, "tolerance": 1, "tolerance_unit": "da", "comment": "a"},
		{"mz_start": 140, "mz_end": 160, "filter": "ms2"},
		{"mz_start": 900, "mz_end": 950}
	]`), 0644))

	code, _, stderr := runMain(t, "-quiet", "-j", "2", "-i", input, "-o", dir, mzML1, mzML2)
	require.Equal(t, exitOK, code, stderr)

	JSONCompareFile(t, `{
		"OutputMeta": {"base64": false, "timeunit": "minutes"},
		"Content": [
			{"Meta": {"MzStart": 499, "MzEnd": 501, "RtStart": 0, "RtEnd": 2.5, "Comment": "a"},
			 "RetentionTimes": [0, 1, 2], "Intensities": [10, 30, 50]},
			{"Meta": {"MzStart": 140, "MzEnd": 160, "RtStart": 0, "RtEnd": 2.5, "Filter": "ms2"},
			 "RetentionTimes": [0.5, 1.5, 2.5], "Intensities": [2, 4, 6]},
			{"Meta": {"MzStart": 900, "MzEnd": 950, "RtStart": 0, "RtEnd": 2.5},
			 "RetentionTimes": [0, 1, 2], "Intensities": [0, 0, 0]}
		]
	}`, filepath.Join(dir, "b.xic.json"))

	b, err := os.ReadFile(filepath.Join(dir, "a.xic.json"))
	require.NoError(t, err)
	var data xic.Data
	require.NoError(t, json.Unmarshal(b, &data))
	require.Len(t, data.Content, 3)
	assert.Equal(t, xic.Value(4.5), data.Content[0].Meta.RtEnd)
}

func TestMzIdentML(t *testing.T) {
	dir := t.TempDir()
	mzML := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(10))
	mzid := filepath.Join(dir, "test.mzid")
	require.NoError(t, os.WriteFile(mzid, []byte(`<?xml version="1.0" encoding="UTF-8"?>
<MzIdentML id="test" version="1.1.0">
  <SequenceCollection>
    <Peptide id="pep_1"><PeptideSequence>PEPTIDE</PeptideSequence></Peptide>
  </SequenceCollection>
  <DataCollection><AnalysisData><SpectrumIdentificationList id="SIL_1">
    <SpectrumIdentificationResult id="SIR_1" spectrumID="scan=4">
      <SpectrumIdentificationItem id="SII_1" chargeState="1" rank="1" passThreshold="true"
        experimentalMassToCharge="500.0" calculatedMassToCharge="500.0" peptide_ref="pep_1"/>
      <cvParam accession="MS:1000016" name="scan start time" value="2" unitAccession="UO:0000031"/>
    </SpectrumIdentificationResult>
  </SpectrumIdentificationList></AnalysisData></DataCollection>
</MzIdentML>`), 0644))

	code, stdout, stderr := runMain(t, "-quiet", "-mzid", mzid, "-tol", "0.5da", "-rtwin", "1", "-o", "-", mzML)
	require.Equal(t, exitOK, code, stderr)

	JSONCompare(t, strings.NewReader(`{
		"OutputMeta": {"base64": false, "timeunit": "minutes"},
		"Content": [{
			"Meta": {"MzStart": 499.5, "MzEnd": 500.5, "RtStart": 1, "RtEnd": 3, "Comment": "PEPTIDE 1+"},
			"RetentionTimes": [1, 2, 3],
			"Intensities": [30, 50, 70]
		}]
	}`), strings.NewReader(stdout))
}

func TestDebugOutput(t *testing.T) {
	mzML := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(10))

	code, _, stderr := runMain(t, "-quiet", "-debug", "0:0", "-mz", "499:501", "-rt", "1:2", "-o", t.TempDir(), mzML)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stderr, "Run:"+mzML+" unit:0 strategy:mass-range trace:MassRange")
	assert.Contains(t, stderr, `scans:3-5 ids:"scan=3"-"scan=5"`)

	code, _, stderr = runMain(t, "-debug", "8:2", "-o", t.TempDir(), mzML)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Invalid debug range")

	code, _, _ = runMain(t, "-debug", "x", "-o", t.TempDir(), mzML)
	assert.Equal(t, exitUsage, code)
}

func TestOutputNameCollision(t *testing.T) {
	a := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(4))
	b := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(6))
	outDir := t.TempDir()

	code, _, stderr := runMain(t, "-quiet", "-j", "2", "-o", outDir, a, b)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "would both be written to")
	_, err := os.Stat(filepath.Join(outDir, "test.xic.json"))
	assert.True(t, os.IsNotExist(err))

	// Next to their inputs the names differ
	code, _, stderr = runMain(t, "-quiet", "-j", "2", a, b)
	require.Equal(t, exitOK, code, stderr)
}

func TestUsageErrors(t *testing.T) {
	mzML := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(4))

	code, _, _ := runMain(t)
	assert.Equal(t, exitUsage, code)

	code, _, stderr := runMain(t, "-mz", "600:500", mzML)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "Invalid m/z range")

	code, _, _ = runMain(t, "-nosuchflag", mzML)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runMain(t, "-mzid", "x.mzid", "-tol", "5xyz", mzML)
	assert.Equal(t, exitUsage, code)

	code, _, _ = runMain(t, "-h")
	assert.Equal(t, exitOK, code)
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()
	mzML := mzmltest.WriteFile(t, "test.mzML", mzmltest.Run(4))

	code, _, stderr := runMain(t, "-o", dir, filepath.Join(dir, "missing.mzML"), mzML)
	assert.Equal(t, exitRun, code)
	assert.Contains(t, stderr, "kind=\"not found\"")
	// The other run is still extracted
	_, err := os.Stat(filepath.Join(dir, "test.xic.json"))
	assert.NoError(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`[{"mz": "x"}]`), 0644))
	code, _, _ = runMain(t, "-i", bad, mzML)
	assert.Equal(t, exitRun, code)
}

func TestSchemaFlag(t *testing.T) {
	code, stdout, _ := runMain(t, "-schema")
	require.Equal(t, exitOK, code)
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &schema))
	assert.Equal(t, "array", schema["type"])
}
