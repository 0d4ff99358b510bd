package xicinput

import (
	"errors"
	"fmt"
	"strings"
)

const massProton = float64(1.007276466879)
const massH2O = float64(18.0105647)

// Masses of amino acids (minus H2O)
var aaMass = map[rune]float64{
	'A': 71.0371138,
	'C': 103.0091848,
	'D': 115.0269430,
	'E': 129.0425931,
	'F': 147.0684139,
	'G': 57.0214637,
	'H': 137.0589119,
	'I': 113.0840640,
	'K': 128.0949630,
	'L': 113.0840640,
	'M': 131.0404849,
	'N': 114.0429274,
	'P': 97.0527638,
	'O': 237.1477269, // Pyrrolysine
	'Q': 128.0585775,
	'R': 156.1011110,
	'S': 87.0320284,
	'T': 101.0476785,
	'U': 144.9595902, // Selenocysteine
	'V': 99.0684139,
	'W': 186.0793129,
	'Y': 163.0633285,
}

var (
	ErrInvalidAminoAcid = errors.New("xicinput: invalid amino acid")
	ErrInvalidCharge    = errors.New("xicinput: charge must be positive")
)

// PepMass computes the lowest isotope mass of the uncharged peptide
func PepMass(pepSeq string) (float64, error) {
	if pepSeq == "" {
		return 0, fmt.Errorf("%w: empty sequence", ErrInvalidAminoAcid)
	}
	m := massH2O
	for _, aa := range strings.ToUpper(pepSeq) {
		aam, ok := aaMass[aa]
		if !ok {
			return 0, fmt.Errorf("%w: %q in %s", ErrInvalidAminoAcid, aa, pepSeq)
		}
		m += aam
	}
	return m, nil
}

// ChargedMz returns the m/z of an uncharged mass carrying charge protons
func ChargedMz(mass float64, charge int) (float64, error) {
	if charge < 1 {
		return 0, ErrInvalidCharge
	}
	c := float64(charge)
	return (mass + c*massProton) / c, nil
}
