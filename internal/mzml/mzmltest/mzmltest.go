// Package mzmltest builds small synthetic mzML documents for tests.
package mzmltest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/524D/mzxic/internal/binarray"
)

// Spectrum describes one spectrum of a synthetic run
type Spectrum struct {
	MSLevel  int
	RT       float64 // scan start time in minutes
	Mz       []float64
	Intens   []float64
	Centroid bool
	Negative bool
	Filter   string // MS:1000512 filter string, omitted when empty
	// Scan window, omitted when both are zero
	WindowLo float64
	WindowHi float64
	TIC      *float64 // MS:1000285, omitted when nil
	Seconds  bool     // write scan start time in seconds
	NoRT     bool     // omit the scan start time
	Format   binarray.Format
}

// Build returns an mzML document containing specs
func Build(specs []Spectrum) []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>
<indexedmzML xmlns="http://psi.hupo.org/ms/mzml">
<mzML xmlns="http://psi.hupo.org/ms/mzml" version="1.1.0">
 <instrumentConfigurationList count="1">
  <instrumentConfiguration id="IC1">
   <componentList count="1">
    <analyzer order="2"><cvParam cvRef="MS" accession="MS:1000484" name="orbitrap"/></analyzer>
   </componentList>
  </instrumentConfiguration>
 </instrumentConfigurationList>
 <run id="synthetic" defaultInstrumentConfigurationRef="IC1">
`)
	fmt.Fprintf(&b, "  <spectrumList count=\"%d\">\n", len(specs))
	for i, s := range specs {
		writeSpectrum(&b, i, s)
	}
	b.WriteString(`  </spectrumList>
 </run>
</mzML>
</indexedmzML>
`)
	return b.Bytes()
}

func cv(b *bytes.Buffer, accession, name, value, unitAccession string) {
	fmt.Fprintf(b, `<cvParam cvRef="MS" accession="%s" name="%s"`, accession, name)
	if value != "" {
		fmt.Fprintf(b, ` value="%s"`, value)
	}
	if unitAccession != "" {
		fmt.Fprintf(b, ` unitAccession="%s"`, unitAccession)
	}
	b.WriteString("/>\n")
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeSpectrum(b *bytes.Buffer, i int, s Spectrum) {
	level := s.MSLevel
	if level == 0 {
		level = 1
	}
	format := s.Format
	if format == (binarray.Format{}) {
		format = binarray.Float64
	}
	fmt.Fprintf(b, "   <spectrum index=\"%d\" id=\"scan=%d\" defaultArrayLength=\"%d\">\n",
		i, i+1, len(s.Mz))
	cv(b, "MS:1000511", "ms level", strconv.Itoa(level), "")
	if s.Centroid {
		cv(b, "MS:1000127", "centroid spectrum", "", "")
	} else {
		cv(b, "MS:1000128", "profile spectrum", "", "")
	}
	if s.Negative {
		cv(b, "MS:1000129", "negative scan", "", "")
	} else {
		cv(b, "MS:1000130", "positive scan", "", "")
	}
	if s.TIC != nil {
		cv(b, "MS:1000285", "total ion current", ftoa(*s.TIC), "")
	}
	if len(s.Mz) > 0 {
		cv(b, "MS:1000528", "lowest observed m/z", ftoa(s.Mz[0]), "")
		cv(b, "MS:1000527", "highest observed m/z", ftoa(s.Mz[len(s.Mz)-1]), "")
	}
	b.WriteString("    <scanList count=\"1\"><scan>\n")
	switch {
	case s.NoRT:
	case s.Seconds:
		cv(b, "MS:1000016", "scan start time", ftoa(s.RT*60), "UO:0000010")
	default:
		cv(b, "MS:1000016", "scan start time", ftoa(s.RT), "UO:0000031")
	}
	if s.Filter != "" {
		cv(b, "MS:1000512", "filter string", s.Filter, "")
	}
	if s.WindowLo != 0 || s.WindowHi != 0 {
		b.WriteString("     <scanWindowList count=\"1\"><scanWindow>\n")
		cv(b, "MS:1000501", "scan window lower limit", ftoa(s.WindowLo), "")
		cv(b, "MS:1000500", "scan window upper limit", ftoa(s.WindowHi), "")
		b.WriteString("     </scanWindow></scanWindowList>\n")
	}
	b.WriteString("    </scan></scanList>\n")
	b.WriteString("    <binaryDataArrayList count=\"2\">\n")
	writeArray(b, s.Mz, format, "MS:1000514", "m/z array")
	writeArray(b, s.Intens, format, "MS:1000515", "intensity array")
	b.WriteString("    </binaryDataArrayList>\n   </spectrum>\n")
}

func writeArray(b *bytes.Buffer, values []float64, format binarray.Format, accession, name string) {
	enc, err := binarray.Encode(values, format)
	if err != nil {
		panic(err)
	}
	fmt.Fprintf(b, "     <binaryDataArray encodedLength=\"%d\">\n", len(enc))
	if format.Bits64 {
		cv(b, "MS:1000523", "64-bit float", "", "")
	} else {
		cv(b, "MS:1000521", "32-bit float", "", "")
	}
	if format.Zlib {
		cv(b, "MS:1000574", "zlib compression", "", "")
	} else {
		cv(b, "MS:1000576", "no compression", "", "")
	}
	cv(b, accession, name, "", "")
	fmt.Fprintf(b, "      <binary>%s</binary>\n     </binaryDataArray>\n", enc)
}

// WriteFile writes the document for specs to a file named name in a
// temporary directory and returns its path
func WriteFile(t testing.TB, name string, specs []Spectrum) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Build(specs), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
	return path
}

// Run returns a run of n spectra, alternating MS1 and MS2, with one MS1
// spectrum per minute starting at minute 0. Each MS1 spectrum has peaks at
// m/z 300, 500 and 700 with intensities 1, 10 and 100 times its position.
func Run(n int) []Spectrum {
	specs := make([]Spectrum, n)
	for i := range specs {
		f := float64(i + 1)
		if i%2 == 0 {
			specs[i] = Spectrum{
				MSLevel:  1,
				RT:       float64(i / 2),
				Mz:       []float64{300, 500, 700},
				Intens:   []float64{f, 10 * f, 100 * f},
				Centroid: true,
				Filter:   "FTMS + c NSI Full ms [200.00-2000.00]",
				WindowLo: 200,
				WindowHi: 2000,
			}
		} else {
			specs[i] = Spectrum{
				MSLevel:  2,
				RT:       float64(i/2) + 0.5,
				Mz:       []float64{150, 250},
				Intens:   []float64{f, f},
				Centroid: true,
				Filter:   "ITMS + c NSI d Full ms2 500.00@cid35.00 [100.00-1000.00]",
				WindowLo: 100,
				WindowHi: 1000,
			}
		}
	}
	return specs
}
