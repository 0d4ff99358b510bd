// This file contains code to help debugging, and is
// separated in from the rest in order not to litter
// the main code with debugging stuff

package main

import (
	"flag"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/524D/mzxic/internal/raw"
	"github.com/524D/mzxic/internal/xic"
)

func addDebugFlags(fs *flag.FlagSet, par *params) {
	par.debugUnits = fs.String("debug", "",
		"Print how the queries in `range` e.g. 3:6 are resolved against each run")
}

// debugPrinter prints the resolution of the units in a range. Output of
// parallel runs is serialized.
type debugPrinter struct {
	w       io.Writer
	mux     sync.Mutex
	minUnit int
	maxUnit int
}

func newDebugPrinter(w io.Writer, unitRange string, numUnits int) (*debugPrinter, error) {
	d := &debugPrinter{w: w, maxUnit: math.MaxInt32}
	if unitRange != `` {
		var err error
		d.minUnit, d.maxUnit, err = parseIntRange(unitRange, 0, max(numUnits-1, 0))
		if err != nil {
			return nil, newUsageError("Invalid debug range %q for %d queries", unitRange, numUnits)
		}
	}
	return d, nil
}

// print is called by the extraction for every resolved unit
func (d *debugPrinter) print(run xic.Run, i int, r xic.Resolved, lo, hi int) {
	if i < d.minUnit || i > d.maxUnit {
		return
	}
	name, loID, hiID := ``, ``, ``
	if rr, ok := run.(*raw.Run); ok {
		name = rr.Path()
		loID, _ = rr.ScanID(lo)
		hiID, _ = rr.ScanID(hi)
	}
	d.mux.Lock()
	defer d.mux.Unlock()
	fmt.Fprintf(d.w, "Run:%s unit:%d strategy:%s trace:%s filter:%q mz:%f-%f rt:%f-%f rtFiltered:%v scans:%d-%d ids:%q-%q",
		name, i, r.Strategy, r.Settings().Trace, r.EffectiveFilter(),
		r.MzStart, r.MzEnd, r.RtStart, r.RtEnd, r.RTFiltered, lo, hi, loID, hiID)
	if r.Comment != `` {
		fmt.Fprintf(d.w, " comment:%s", r.Comment)
	}
	fmt.Fprintf(d.w, "\n")
}
