package mzidentml

import (
	"encoding/xml"
	"errors"
)

// Types for parsing mzIdentML

// MzIdentML holds the peptides and spectrum identifications of an
// mzIdentML file
type MzIdentML struct {
	pepID2Idx map[string]int
	identList []identRef
	content   mzIdentMLContent
}

type identRef struct {
	resultIdx int // Index into SpectrumIdentificationResult
	itemIdx   int // Index into SpectrumIdentificationItem
}

// Identification is one spectrum identification item together with its
// peptide and the retention time of the spectrum it was found in
type Identification struct {
	PepSeq         string
	PepID          string
	Charge         int
	Rank           int
	PassThreshold  bool
	ModMass        float64
	ExperimentalMz float64
	CalculatedMz   float64 // 0 if not reported
	SpecID         string
	RetentionTime  float64 // minutes, -1 if not reported
	Cv             []CVParam
}

type mzIdentMLContent struct {
	XMLName                      xml.Name                       `xml:"MzIdentML"`
	Peptide                      []peptide                      `xml:"SequenceCollection>Peptide"`
	SpectrumIdentificationResult []spectrumIdentificationResult `xml:"DataCollection>AnalysisData>SpectrumIdentificationList>SpectrumIdentificationResult"`
}

type peptide struct {
	ID              string `xml:"id,attr"`
	PeptideSequence string
	Modification    []modification
}

type modification struct {
	// monoisotopicMassDelta is optional in the schema, but no other
	// attribute or cvParam carries the mass shift
	MonoisotopicMassDelta float64 `xml:"monoisotopicMassDelta,attr"`
}

type spectrumIdentificationResult struct {
	SpectrumID                 string `xml:"spectrumID,attr"`
	SpectrumIdentificationItem []spectrumIdentificationItem
	CvPar                      []CVParam `xml:"cvParam"`
}

type spectrumIdentificationItem struct {
	ChargeState              int       `xml:"chargeState,attr"`
	Rank                     int       `xml:"rank,attr"`
	PassThreshold            bool      `xml:"passThreshold,attr"`
	ExperimentalMassToCharge float64   `xml:"experimentalMassToCharge,attr"`
	CalculatedMassToCharge   float64   `xml:"calculatedMassToCharge,attr"`
	PeptideRef               string    `xml:"peptide_ref,attr"`
	CvPar                    []CVParam `xml:"cvParam"`
}

// CVParam is a controlled vocabulary term, scores are reported this way
type CVParam struct {
	Accession     string `xml:"accession,attr"`
	Name          string `xml:"name,attr"`
	Value         string `xml:"value,attr"`
	UnitAccession string `xml:"unitAccession,attr"`
}

var (
	ErrInvalidIdentIndex = errors.New("mzIdentML: invalid identification index")
	ErrUnknownPeptide    = errors.New("mzIdentML: unknown peptide reference")
	ErrNoMzIdentML       = errors.New("mzIdentML: no MzIdentML element")
)
