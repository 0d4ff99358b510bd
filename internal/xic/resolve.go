package xic

import (
	"github.com/524D/mzxic/internal/raw"
)

// Run is the access to an open run that extraction needs. *raw.Run
// implements it.
type Run interface {
	Bounds() raw.Bounds
	FilteredScans(filter string, rtStart, rtEnd float64) ([]int, error)
	Chromatogram(s raw.Settings, lo, hi int) (raw.Signal, error)
}

// ScanSpan returns the scan span to search for r. RT-filtered queries use
// the first and last MS scan within the RT window; when there is none, or
// the query has no RT bound, the whole run is used.
func ScanSpan(run Run, r Resolved) (int, int, error) {
	b := run.Bounds()
	if r.RTFiltered {
		// The scan list always uses the generic filter, not the query filter
		scans, err := run.FilteredScans(raw.MSFilter, r.RtStart, r.RtEnd)
		if err != nil {
			return 0, 0, err
		}
		if len(scans) > 0 {
			return scans[0], scans[len(scans)-1], nil
		}
	}
	return b.FirstScan, b.LastScan, nil
}
