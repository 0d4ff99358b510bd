// Package xic resolves extracted-ion chromatogram queries against a run and
// extracts their signals.
//
// A query may leave any of its m/z and retention time bounds unset. Unset
// bounds are filled from the run, and whether the m/z bounds were given
// decides between a whole-filter and a mass-range trace. Units of a batch
// are extracted one after the other against a single open run.
package xic

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/524D/mzxic/internal/raw"
)

// Options control an extraction. They are fixed for a whole batch.
type Options struct {
	Base64      bool // encode results as base64 strings
	SkipInvalid bool // leave units with an inverted range unextracted
	Logger      *slog.Logger
	// OnResolved, when set, is called for every unit after its scan span
	// has been determined
	OnResolved func(run Run, i int, r Resolved, lo, hi int)
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// ExtractFile opens the run at path, extracts all units of data and closes
// the run again. When the run cannot be opened no unit is touched.
func ExtractFile(ctx context.Context, path string, data *Data, opts Options, rawOpts ...raw.Option) error {
	rawOpts = append([]raw.Option{raw.WithLogger(opts.logger())}, rawOpts...)
	run, err := raw.Open(path, rawOpts...)
	if err != nil {
		return err
	}
	defer run.Close()
	return Extract(ctx, run, data, opts)
}

// Extract resolves and extracts every unit of data in order, storing the
// filled-in bounds and the result in the unit. It stops at the first
// retrieval error.
func Extract(ctx context.Context, run Run, data *Data, opts Options) error {
	data.OutputMeta = OutputMeta{Base64: opts.Base64, TimeUnit: TimeUnit}
	log := opts.logger()
	bounds := run.Bounds()

	for i := range data.Content {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := extractUnit(run, bounds, i, &data.Content[i], opts, log); err != nil {
			return fmt.Errorf("xic: unit %d: %w", i, err)
		}
	}
	return nil
}

func extractUnit(run Run, bounds raw.Bounds, i int, u *Unit, opts Options, log *slog.Logger) error {
	r := Normalize(u.Meta, bounds)
	u.Meta = r.Query()
	u.Result = nil

	if !r.Valid() {
		log.Warn("invalid XIC range",
			slog.Int("unit", i),
			slog.String("query", u.String()),
			slog.Bool("skipped", opts.SkipInvalid))
		if opts.SkipInvalid {
			return nil
		}
	}

	lo, hi, err := ScanSpan(run, r)
	if err != nil {
		return err
	}
	if opts.OnResolved != nil {
		opts.OnResolved(run, i, r, lo, hi)
	}

	sig, err := run.Chromatogram(r.Settings(), lo, hi)
	if err != nil {
		return err
	}
	log.Debug("extracted XIC",
		slog.Int("unit", i),
		slog.String("strategy", r.Strategy.String()),
		slog.String("trace", r.Settings().Trace.String()),
		slog.Int("lo_scan", lo),
		slog.Int("hi_scan", hi),
		slog.Int("samples", sig.Len()))
	if sig.Len() == 0 {
		return nil
	}
	u.Result = Encode(sig.Times, sig.Intensities, opts.Base64)
	return nil
}
