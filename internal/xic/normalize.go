package xic

import (
	"github.com/524D/mzxic/internal/raw"
)

// Strategy is the chromatogram retrieval strategy of a query
type Strategy int

const (
	// WholeFilter traces all scans passing the filter, without a mass range
	WholeFilter Strategy = iota
	// MassRange traces the intensity within one mass interval
	MassRange
)

func (s Strategy) String() string {
	if s == MassRange {
		return "mass-range"
	}
	return "whole-filter"
}

// Resolved is a query with all bounds filled in
type Resolved struct {
	MzStart  float64
	MzEnd    float64
	RtStart  float64
	RtEnd    float64
	Filter   string
	Comment  string
	Strategy Strategy
	// RTFiltered is true when at least one RT bound was given, so the scan
	// span is taken from the scans in the RT window
	RTFiltered bool
}

// Normalize fills the unset bounds of q from the run bounds b and decides
// the retrieval strategy. The open checks come before the defaulting, so a
// query without any m/z bound keeps whole-filter semantics.
func Normalize(q Query, b raw.Bounds) Resolved {
	r := Resolved{
		Filter:   q.Filter,
		Comment:  q.Comment,
		Strategy: MassRange,
	}
	if !q.MzStart.IsSet() && !q.MzEnd.IsSet() {
		r.Strategy = WholeFilter
	}
	r.MzStart = q.MzStart.Or(b.MinMass)
	r.MzEnd = q.MzEnd.Or(b.MaxMass)

	r.RTFiltered = q.RtStart.IsSet() || q.RtEnd.IsSet()
	r.RtStart = q.RtStart.Or(b.StartTime)
	r.RtEnd = q.RtEnd.Or(b.EndTime)
	return r
}

// EffectiveFilter returns the filter used for retrieval
func (r Resolved) EffectiveFilter() string {
	if r.Filter == "" {
		return raw.MSFilter
	}
	return r.Filter
}

// Settings returns the chromatogram settings for the resolved query
func (r Resolved) Settings() raw.Settings {
	if r.Strategy == WholeFilter {
		return raw.FilterOnly(r.EffectiveFilter())
	}
	return raw.MassRange(r.EffectiveFilter(), r.MzStart, r.MzEnd)
}

// Query returns the fully bound query. Filter and comment are unchanged.
func (r Resolved) Query() Query {
	return Query{
		MzStart: Value(r.MzStart),
		MzEnd:   Value(r.MzEnd),
		RtStart: Value(r.RtStart),
		RtEnd:   Value(r.RtEnd),
		Filter:  r.Filter,
		Comment: r.Comment,
	}
}

// Valid reports whether mzStart <= mzEnd and rtStart <= rtEnd
func (r Resolved) Valid() bool {
	return r.MzStart <= r.MzEnd && r.RtStart <= r.RtEnd
}
