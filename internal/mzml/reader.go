package mzml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"

	"github.com/524D/mzxic/internal/binarray"
)

// ErrTruncated means the document ended before the mzML element was closed,
// which is what a file that is still being written looks like
var ErrTruncated = errors.New("MzML: document is truncated")

// Read reads mzML file from an io.Reader
func Read(reader io.Reader) (MzML, error) {
	var mzML MzML

	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel

	// We are only interested in mzML content, so skip over indexedmzML
	// and everything else
	found := false
	for {
		t, tokenErr := d.Token()
		if tokenErr != nil {
			if tokenErr == io.EOF {
				break
			}
			return mzML, wrapSyntaxError(tokenErr)
		}
		switch t := t.(type) {
		case xml.StartElement:
			if t.Name.Local == "mzML" {
				if err := d.DecodeElement(&mzML.content, &t); err != nil {
					return mzML, wrapSyntaxError(err)
				}
				found = true
			}
		}
	}
	if !found {
		return mzML, ErrNoMzML
	}

	err := mzML.traverseScan()
	return mzML, err
}

// wrapSyntaxError marks a premature end of the document with ErrTruncated
func wrapSyntaxError(err error) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) && syntaxErr.Msg == "unexpected EOF" {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", ErrTruncated, err)
	}
	return err
}

// binaryDataPars decodes the CV terms in a mzML binarydata section
//
// CV Terms for binary data compression
// MS:1000574 zlib compression
// MS:1000576 No Compression
// MS:1002312 MS-Numpress linear prediction compression
// MS:1002313 MS-Numpress positive integer compression
// MS:1002314 MS-Numpress short logged float compression
// MS:1002746 MS-Numpress linear prediction compression followed by zlib compression
// MS:1002747 MS-Numpress positive integer compression followed by zlib compression
// MS:1002748 MS-Numpress short logged float compression followed by zlib compression
//
// CV Terms for binary data array types
// MS:1000514 m/z array
// MS:1000515 intensity array
//
// CV Terms for binary-data-type
// MS:1000521 32-bit float
// MS:1000523 64-bit float
func binaryDataPars(binaryDataArray *binaryDataArray) (
	binarray.Format, bool, bool, error) {
	var format binarray.Format // Default: no compression, 32 bits
	mzArray := false
	intensityArray := false
	for _, cvParam := range binaryDataArray.CvPar {
		switch cvParam.Accession {
		case `MS:1000574`: // zlib compression
			format.Zlib = true
		case `MS:1000514`: // m/z array
			mzArray = true
		case `MS:1000515`: // intensity array
			intensityArray = true
		case `MS:1000523`: // 64-bit float
			format.Bits64 = true
		case `MS:1002312`, `MS:1002313`, `MS:1002314`,
			`MS:1002746`, `MS:1002747`, `MS:1002748`:
			return format, false, false, fmt.Errorf("%w (CV term %s)",
				ErrUnsupportedCompression, cvParam.Accession)
		}
	}
	return format, mzArray, intensityArray, nil
}

func fillScan(p []Peak, binaryDataArray *binaryDataArray) ([]Peak, error) {
	format, mzArray, intensityArray, err := binaryDataPars(binaryDataArray)
	if err != nil {
		return nil, err
	}
	// We are only interrested in mz and intensity
	if !mzArray && !intensityArray {
		return p, nil
	}
	values, err := binarray.Decode(binaryDataArray.Binary, format)
	if err != nil {
		return nil, err
	}
	for len(p) < len(values) {
		p = append(p, Peak{})
	}
	if mzArray {
		for i, v := range values {
			p[i].Mz = v
		}
	} else {
		for i, v := range values {
			p[i].Intens = v
		}
	}
	return p, nil
}

// NumSpecs returns the number of spectra
func (f *MzML) NumSpecs() int {
	return len(f.content.Run.SpectrumList.Spectrum)
}

// RunID returns the id attribute of the run element
func (f *MzML) RunID() string {
	return f.content.Run.ID
}

// RetentionTime returns the retention time of a spectrum in minutes,
// or -1 if the spectrum has no scan start time
func (f *MzML) RetentionTime(scanIndex int) (float64, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0.0, ErrInvalidScanIndex
	}
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, cvParam := range scan.CvPar {
			if cvParam.Accession == "MS:1000016" {
				retentionTime, err := strconv.ParseFloat(cvParam.Value, 64)
				// Check if the retention time is in minutes, otherwise assume it's seconds
				if cvParam.UnitAccession != "UO:0000031" &&
					cvParam.UnitAccession != "MS:1000038" {
					retentionTime /= 60
				}

				return retentionTime, err
			}
		}
	}
	return -1.0, nil
}

// ReadScan reads a single scan
// scanIndex is the sequence number of the scan in the mzML file,
// This is not the same as the scan number that is specified
// in the mzML file! ScanID returns that identifier.
func (f *MzML) ReadScan(scanIndex int) ([]Peak, error) {

	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return nil, ErrInvalidScanIndex
	}
	p := make([]Peak, f.content.Run.SpectrumList.Spectrum[scanIndex].DefaultArrayLength)
	var err error
	for _, b := range f.content.Run.SpectrumList.Spectrum[scanIndex].BinaryDataArrayList.BinaryDataArray {
		p, err = fillScan(p, &b)
		if err != nil {
			return p, err
		}
	}
	return p, nil
}

// Centroid returns true is the spectrum contains centroid peaks
func (f *MzML) Centroid(scanIndex int) (bool, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return false, ErrInvalidScanIndex
	}

	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000127" { // centroid spectrum
			return true, nil
		}
	}
	return false, nil
}

// Polarity returns the scan polarity
func (f *MzML) Polarity(scanIndex int) (Polarity, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return PolarityUnknown, ErrInvalidScanIndex
	}

	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		switch cvParam.Accession {
		case "MS:1000130": // positive scan
			return PolarityPositive, nil
		case "MS:1000129": // negative scan
			return PolarityNegative, nil
		}
	}
	return PolarityUnknown, nil
}

// TotalIonCurrent returns the total ion current, or NaN if not found
func (f *MzML) TotalIonCurrent(scanIndex int) (float64, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0.0, ErrInvalidScanIndex
	}

	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000285" { // total ion current
			tic, err := strconv.ParseFloat(cvParam.Value, 64)
			return tic, err
		}
	}
	return math.NaN(), nil
}

// MSLevel returns the MS level of a scan
func (f *MzML) MSLevel(scanIndex int) (int, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, ErrInvalidScanIndex
	}

	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		if cvParam.Accession == "MS:1000511" { // ms level
			msLevel, err := strconv.ParseInt(cvParam.Value, 10, 64)
			return int(msLevel), err
		}
	}
	return 1, nil // If nothing else, guess it's MS1
}

// FilterString returns the instrument filter string of a scan (MS:1000512),
// or an empty string if there is none
func (f *MzML) FilterString(scanIndex int) (string, error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return "", ErrInvalidScanIndex
	}
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, cvParam := range scan.CvPar {
			if cvParam.Accession == "MS:1000512" {
				return cvParam.Value, nil
			}
		}
	}
	return "", nil
}

// ScanWindow returns the lowest lower limit and highest upper limit of the
// scan windows of a spectrum. ok is false if the spectrum has no scan window.
func (f *MzML) ScanWindow(scanIndex int) (lo, hi float64, ok bool, err error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, 0, false, ErrInvalidScanIndex
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, scan := range f.content.Run.SpectrumList.Spectrum[scanIndex].ScanList.Scan {
		for _, w := range scan.ScanWindow {
			for _, cvParam := range w.CvPar {
				switch cvParam.Accession {
				case "MS:1000501": // scan window lower limit
					v, err := strconv.ParseFloat(cvParam.Value, 64)
					if err != nil {
						return 0, 0, false, err
					}
					lo = math.Min(lo, v)
				case "MS:1000500": // scan window upper limit
					v, err := strconv.ParseFloat(cvParam.Value, 64)
					if err != nil {
						return 0, 0, false, err
					}
					hi = math.Max(hi, v)
				}
			}
		}
	}
	if math.IsInf(lo, 1) || math.IsInf(hi, -1) {
		return 0, 0, false, nil
	}
	return lo, hi, true, nil
}

// ObservedMzRange returns the lowest and highest observed m/z of a spectrum
// (MS:1000528, MS:1000527). ok is false if either is missing.
func (f *MzML) ObservedMzRange(scanIndex int) (lo, hi float64, ok bool, err error) {
	if scanIndex < 0 || scanIndex >= f.NumSpecs() {
		return 0, 0, false, ErrInvalidScanIndex
	}
	var haveLo, haveHi bool
	for _, cvParam := range f.content.Run.SpectrumList.Spectrum[scanIndex].CvPar {
		switch cvParam.Accession {
		case "MS:1000528": // lowest observed m/z
			lo, err = strconv.ParseFloat(cvParam.Value, 64)
			haveLo = true
		case "MS:1000527": // highest observed m/z
			hi, err = strconv.ParseFloat(cvParam.Value, 64)
			haveHi = true
		}
		if err != nil {
			return 0, 0, false, err
		}
	}
	return lo, hi, haveLo && haveHi, nil
}

// MSInstruments returns the CV terms of the analyzers of the first
// instrument configuration
func (f *MzML) MSInstruments() ([]string, error) {

	type analyzer struct {
		CvPar CVParam `xml:"cvParam"`
	}
	type instrumentConfiguration struct {
		XMLName  xml.Name   `xml:"instrumentConfiguration"`
		Analyzer []analyzer `xml:"componentList>analyzer"`
	}

	if f.content.InstrumentConfigurationList == nil {
		return nil, nil
	}

	var instr []string
	var instrConf instrumentConfiguration

	// Get the raw XML for the instrument configuration
	XML := f.content.InstrumentConfigurationList.InstrumentConfigurationListXML
	// Parse it
	err := xml.Unmarshal(XML, &instrConf)
	if err != nil {
		return nil, err
	}

	// Fill array with CV params of analysers
	for _, conf := range instrConf.Analyzer {
		instr = append(instr, conf.CvPar.Accession)
	}
	return instr, nil
}

// traverseScan traverses all scans,
// collects info of all scans and
// and fills the array f.index2id to make scans accessible
func (f *MzML) traverseScan() error {

	f.index2id = make([]string, f.NumSpecs())

	for i := range f.content.Run.SpectrumList.Spectrum {
		if err := f.addSpecToIndex(i); err != nil {
			return err
		}
	}
	return nil
}

func (f *MzML) addSpecToIndex(i int) error {

	if i != f.content.Run.SpectrumList.Spectrum[i].Index {
		return ErrInvalidScanIndex
	}
	f.index2id[i] = f.content.Run.SpectrumList.Spectrum[i].ID
	return nil
}

// ScanID converts a scan index (used to access the scan data) into a scan id
// (used in the mzML file)
func (f *MzML) ScanID(scanIndex int) (string, error) {
	if scanIndex >= 0 && scanIndex < f.NumSpecs() {
		return f.index2id[scanIndex], nil
	}
	return "", ErrInvalidScanIndex
}
