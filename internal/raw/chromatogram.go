package raw

import (
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/floats"

	"github.com/524D/mzxic/internal/mzml"
)

// TraceType selects what a chromatogram traces
type TraceType int

const (
	// TraceTIC traces the total ion current of the scans passing the filter
	TraceTIC TraceType = iota
	// TraceMassRange traces the summed intensity within a mass range
	TraceMassRange
)

func (t TraceType) String() string {
	switch t {
	case TraceTIC:
		return "TIC"
	case TraceMassRange:
		return "MassRange"
	}
	return fmt.Sprintf("TraceType(%d)", int(t))
}

// Range is a closed m/z interval
type Range struct {
	Low  float64
	High float64
}

// Settings describe one chromatogram trace
type Settings struct {
	Trace     TraceType
	Filter    string
	MassRange Range // used when Trace is TraceMassRange
}

// FilterOnly returns settings that trace the TIC of scans passing filter
func FilterOnly(filter string) Settings {
	return Settings{Trace: TraceTIC, Filter: filter}
}

// MassRange returns settings that trace intensity between low and high
// in scans passing filter
func MassRange(filter string, low, high float64) Settings {
	return Settings{Trace: TraceMassRange, Filter: filter, MassRange: Range{Low: low, High: high}}
}

// Signal is a chromatogram trace. Times and Intensities have equal length
// and are in ascending time order.
type Signal struct {
	Scans       []int
	Times       []float64
	Intensities []float64
}

// Len returns the number of samples
func (s Signal) Len() int {
	return len(s.Times)
}

// selection returns the scans that pass the level, polarity and centroid
// constraints of f
func (r *Run) selection(f Filter) *roaring.Bitmap {
	bm := r.all.Clone()
	if f.MSLevel > 0 {
		level, ok := r.byLevel[f.MSLevel]
		if !ok {
			return roaring.New()
		}
		bm.And(level)
	}
	switch f.Polarity {
	case mzml.PolarityPositive:
		bm.And(r.positive)
	case mzml.PolarityNegative:
		bm.And(r.negative)
	}
	if f.Centroid != nil {
		if *f.Centroid {
			bm.And(r.centroid)
		} else {
			bm.AndNot(r.centroid)
		}
	}
	return bm
}

// FilteredScans returns, in ascending order, the scans passing filter whose
// retention time lies within [rtStart, rtEnd]. Scans without a retention
// time are never returned.
func (r *Run) FilteredScans(filter string, rtStart, rtEnd float64) ([]int, error) {
	if r.closed {
		return nil, ErrClosed
	}
	f := ParseFilter(filter)
	var scans []int
	it := r.selection(f).Iterator()
	for it.HasNext() {
		scan := int(it.Next())
		info := r.scans[scan-1]
		if info.rt < 0 || info.rt < rtStart || info.rt > rtEnd {
			continue
		}
		if !f.matchTerms(info.filter) {
			continue
		}
		scans = append(scans, scan)
	}
	return scans, nil
}

// Chromatogram traces s over the scans lo to hi (inclusive). Every scan in
// range that passes the filter and has a retention time contributes one
// sample.
func (r *Run) Chromatogram(s Settings, lo, hi int) (Signal, error) {
	var sig Signal
	if r.closed {
		return sig, ErrClosed
	}
	lo = max(lo, r.bounds.FirstScan)
	hi = min(hi, r.bounds.LastScan)
	if lo > hi {
		return sig, nil
	}
	f := ParseFilter(s.Filter)
	bm := r.selection(f)
	span := roaring.New()
	span.AddRange(uint64(lo), uint64(hi)+1)
	bm.And(span)

	it := bm.Iterator()
	for it.HasNext() {
		scan := int(it.Next())
		info := r.scans[scan-1]
		if info.rt < 0 || !f.matchTerms(info.filter) {
			continue
		}
		intensity, err := r.intensity(scan-1, info, s)
		if err != nil {
			return Signal{}, err
		}
		sig.Scans = append(sig.Scans, scan)
		sig.Times = append(sig.Times, info.rt)
		sig.Intensities = append(sig.Intensities, intensity)
	}
	return sig, nil
}

func (r *Run) intensity(i int, info scanInfo, s Settings) (float64, error) {
	if s.Trace == TraceTIC && !math.IsNaN(info.tic) {
		return info.tic, nil
	}
	p, err := r.decode(i)
	if err != nil {
		return 0, err
	}
	if s.Trace == TraceTIC {
		return floats.Sum(p.intens), nil
	}
	low, high := s.MassRange.Low, s.MassRange.High
	first := sort.SearchFloat64s(p.mz, low)
	last := sort.Search(len(p.mz), func(k int) bool { return p.mz[k] > high })
	if last <= first {
		return 0, nil
	}
	return floats.Sum(p.intens[first:last]), nil
}

type byMz scanPeaks

func (p byMz) Len() int           { return len(p.mz) }
func (p byMz) Swap(i, j int)      { p.mz[i], p.mz[j] = p.mz[j], p.mz[i]; p.intens[i], p.intens[j] = p.intens[j], p.intens[i] }
func (p byMz) Less(i, j int) bool { return p.mz[i] < p.mz[j] }

// decode returns the peaks of spectrum i sorted by m/z
func (r *Run) decode(i int) (scanPeaks, error) {
	if r.cache != nil {
		if p, ok := r.cache.Get(i); ok {
			return p, nil
		}
	}
	peaks, err := r.file.ReadScan(i)
	if err != nil {
		return scanPeaks{}, fmt.Errorf("%w: %s: scan %d: %w", ErrCorruptRun, r.path, i+1, err)
	}
	p := scanPeaks{
		mz:     make([]float64, len(peaks)),
		intens: make([]float64, len(peaks)),
	}
	for k, peak := range peaks {
		p.mz[k] = peak.Mz
		p.intens[k] = peak.Intens
	}
	if !sort.Float64sAreSorted(p.mz) {
		sort.Sort(byMz(p))
	}
	if r.cache != nil {
		r.cache.Add(i, p)
	}
	return p, nil
}
