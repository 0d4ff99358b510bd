package mzidentml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"golang.org/x/net/html/charset"
)

// Read reads mzIdentML content from io.reader
func Read(reader io.Reader) (MzIdentML, error) {
	var mzIdentML MzIdentML
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	err := d.Decode(&mzIdentML.content)
	if errors.Is(err, io.EOF) {
		return mzIdentML, ErrNoMzIdentML
	}
	if err != nil {
		return mzIdentML, err
	}
	mzIdentML.buildPepID2Idx()
	mzIdentML.buildIdentList()
	return mzIdentML, nil
}

func (m *MzIdentML) buildPepID2Idx() {
	m.pepID2Idx = make(map[string]int, len(m.content.Peptide))
	for i, p := range m.content.Peptide {
		m.pepID2Idx[p.ID] = i
	}
}

func (m *MzIdentML) buildIdentList() {
	for i := range m.content.SpectrumIdentificationResult {
		for j := range m.content.SpectrumIdentificationResult[i].SpectrumIdentificationItem {
			m.identList = append(m.identList, identRef{resultIdx: i, itemIdx: j})
		}
	}
}

// NumIdents returns the total number of identifications in the mzIdentML file
// Note that for some spectra, multiple identifications may be present
// The identifications can be accessed using the Ident() method, which takes
// an index as argument. The index runs from 0 to NumIdents()-1
func (m *MzIdentML) NumIdents() int {
	return len(m.identList)
}

// Ident returns a spectrum identification from the mzIdentML file.
// Parameter i is the index of the identification to return. The index runs
// from 0 to NumIdents()-1
func (m *MzIdentML) Ident(i int) (Identification, error) {
	var ident Identification

	if i < 0 || i >= len(m.identList) {
		return ident, ErrInvalidIdentIndex
	}
	result := &m.content.SpectrumIdentificationResult[m.identList[i].resultIdx]
	item := &result.SpectrumIdentificationItem[m.identList[i].itemIdx]

	pepIdx, ok := m.pepID2Idx[item.PeptideRef]
	if !ok {
		return ident, fmt.Errorf("%w: %q", ErrUnknownPeptide, item.PeptideRef)
	}
	pep := &m.content.Peptide[pepIdx]
	ident.PepSeq = pep.PeptideSequence
	ident.PepID = pep.ID
	for _, mod := range pep.Modification {
		ident.ModMass += mod.MonoisotopicMassDelta
	}
	ident.Charge = item.ChargeState
	ident.Rank = item.Rank
	ident.PassThreshold = item.PassThreshold
	ident.ExperimentalMz = item.ExperimentalMassToCharge
	ident.CalculatedMz = item.CalculatedMassToCharge
	ident.SpecID = result.SpectrumID

	rt, err := retentionTime(result.CvPar)
	if err != nil {
		return ident, err
	}
	ident.RetentionTime = rt

	// Collect CV terms/values for the identification, the scores are in there
	ident.Cv = append(ident.Cv, item.CvPar...)
	return ident, nil
}

// retentionTime returns the retention time in minutes from the cvParams of
// a spectrum identification result, or -1 if none is present.
// There are multiple CV terms that can be used to report the
// retention time. In order of decreasing preference we use:
// 1. MS:1000016 - scan start time
// 2. MS:1000894 - retention time
// 3. MS:1000826 - elution time
// 4. MS:1001114 - retention time (deprecated)
func retentionTime(cvs []CVParam) (float64, error) {
	rt := float64(-1)
	prio := math.MaxInt32
	for _, cv := range cvs {
		p := 0
		switch cv.Accession {
		case "MS:1000016":
			p = 1
		case "MS:1000894":
			p = 2
		case "MS:1000826":
			p = 3
		case "MS:1001114":
			p = 4
		default:
			continue
		}
		if p >= prio {
			continue
		}
		v, err := strconv.ParseFloat(cv.Value, 64)
		if err != nil {
			return -1, err
		}
		prio = p
		// Minutes are kept, anything else is taken as seconds
		if cv.UnitAccession != "UO:0000031" && cv.UnitAccession != "MS:1000038" {
			v /= 60
		}
		rt = v
	}
	return rt, nil
}
