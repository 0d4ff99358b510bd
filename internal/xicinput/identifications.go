package xicinput

import (
	"fmt"
	"math"

	"github.com/524D/mzxic/internal/mzidentml"
	"github.com/524D/mzxic/internal/xic"
)

// Identifications with the same peptide and charge whose m/z differ less
// than this are merged into one query
const mergeMzTol = float64(1e-7)

type identKey struct {
	pepSeq string
	charge int
}

type identQuery struct {
	mz      float64
	rtMin   float64
	rtMax   float64
	hasRT   bool
	comment string
}

// FromIdentifications builds one query per peptide and charge of the rank 1
// identifications passing the threshold. The m/z window is tol around the
// calculated m/z. When rtWindow is positive and the identification has a
// retention time, the RT range spans rtWindow minutes around it; several
// identifications of the same peptide and charge widen that range.
func FromIdentifications(ids []mzidentml.Identification, tol Tolerance, rtWindow float64) ([]xic.Unit, error) {
	var order []identKey
	queries := make(map[identKey]*identQuery)
	for _, id := range ids {
		if id.Rank != 1 || !id.PassThreshold {
			continue
		}
		mz, err := identMz(id)
		if err != nil {
			return nil, fmt.Errorf("identification %s: %w", id.PepID, err)
		}
		key := identKey{pepSeq: id.PepSeq, charge: id.Charge}
		q, ok := queries[key]
		if ok && math.Abs(q.mz-mz) > mergeMzTol {
			// Same sequence with other modifications
			key.pepSeq = fmt.Sprintf("%s@%.7f", id.PepSeq, mz)
			q, ok = queries[key]
		}
		if !ok {
			q = &identQuery{
				mz:      mz,
				rtMin:   math.Inf(1),
				rtMax:   math.Inf(-1),
				comment: fmt.Sprintf("%s %d+", id.PepSeq, id.Charge),
			}
			queries[key] = q
			order = append(order, key)
		}
		if rtWindow > 0 && id.RetentionTime >= 0 {
			q.hasRT = true
			q.rtMin = math.Min(q.rtMin, id.RetentionTime-rtWindow)
			q.rtMax = math.Max(q.rtMax, id.RetentionTime+rtWindow)
		}
	}

	units := make([]xic.Unit, 0, len(order))
	for _, key := range order {
		q := queries[key]
		lo, hi, err := tol.Window(q.mz)
		if err != nil {
			return nil, err
		}
		rtStart, rtEnd := xic.Unset(), xic.Unset()
		if q.hasRT {
			rtStart, rtEnd = xic.Value(math.Max(q.rtMin, 0)), xic.Value(q.rtMax)
		}
		units = append(units, xic.NewUnit(xic.Value(lo), xic.Value(hi), rtStart, rtEnd, "", q.comment))
	}
	return units, nil
}

// identMz returns the calculated m/z of an identification, computing it
// from the sequence when the file does not report it
func identMz(id mzidentml.Identification) (float64, error) {
	if id.CalculatedMz > 0 {
		return id.CalculatedMz, nil
	}
	m, err := PepMass(id.PepSeq)
	if err != nil {
		if id.ExperimentalMz > 0 {
			return id.ExperimentalMz, nil
		}
		return 0, err
	}
	return ChargedMz(m+id.ModMass, id.Charge)
}
