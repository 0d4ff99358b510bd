// Package raw provides access to a mass spectrometry run stored as mzML:
// run bounds, time filtered scan lists and chromatogram retrieval.
//
// Scans are addressed by scan number, the 1-based position of the spectrum
// in the file. A Run is not safe for concurrent use; open one Run per
// goroutine.
package raw

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"

	"github.com/RoaringBitmap/roaring/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/524D/mzxic/internal/mzml"
)

// DefaultScanCacheSize is the default number of decoded scans kept in memory
const DefaultScanCacheSize = 512

var (
	// ErrNotFound means the run file does not exist
	ErrNotFound = errors.New("raw: run not found")
	// ErrUnreadable means the run file exists but cannot be read
	ErrUnreadable = errors.New("raw: run unreadable")
	// ErrStillAcquiring means the run file is incomplete, as it is while the
	// instrument is still writing it
	ErrStillAcquiring = errors.New("raw: run still being acquired")
	// ErrCorruptRun means the run file is not valid mzML
	ErrCorruptRun = errors.New("raw: run corrupt")
	// ErrNoInstrument means the run contains no MS spectra
	ErrNoInstrument = errors.New("raw: no MS instrument data in run")
	// ErrClosed means the run was used after Close
	ErrClosed = errors.New("raw: run closed")
)

// Bounds are the run-wide limits reported for an open run
type Bounds struct {
	FirstScan int
	LastScan  int
	StartTime float64 // minutes
	EndTime   float64 // minutes
	MinMass   float64
	MaxMass   float64
}

type scanInfo struct {
	level    int
	rt       float64
	polarity mzml.Polarity
	centroid bool
	filter   string
	tic      float64 // NaN when not reported
}

type scanPeaks struct {
	mz     []float64
	intens []float64
}

// Run is an open mzML run
type Run struct {
	path   string
	file   mzml.MzML
	scans  []scanInfo
	bounds Bounds
	log    *slog.Logger

	all      *roaring.Bitmap
	byLevel  map[int]*roaring.Bitmap
	positive *roaring.Bitmap
	negative *roaring.Bitmap
	centroid *roaring.Bitmap

	cacheSize int
	cache     *lru.Cache[int, scanPeaks]
	closed    bool
}

// Option configures Open
type Option func(*Run)

// WithScanCache sets the number of decoded scans kept in memory.
// Values below 1 disable caching.
func WithScanCache(n int) Option {
	return func(r *Run) { r.cacheSize = n }
}

// WithLogger sets the logger used by the run
func WithLogger(l *slog.Logger) Option {
	return func(r *Run) { r.log = l }
}

// Open opens and validates the run stored in the mzML file at path
func Open(path string, opts ...Option) (*Run, error) {
	r := &Run{
		path:      path,
		log:       slog.Default(),
		cacheSize: DefaultScanCacheSize,
	}
	for _, opt := range opts {
		opt(r)
	}

	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrUnreadable, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
	defer f.Close()

	r.file, err = mzml.Read(f)
	if err != nil {
		return nil, classifyReadError(path, err)
	}
	if r.file.NumSpecs() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoInstrument, path)
	}
	if instruments, err := r.file.MSInstruments(); err == nil {
		r.log.Debug("selected MS instrument",
			slog.String("run", path),
			slog.Any("analyzers", instruments))
	}
	if err := r.index(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptRun, path, err)
	}
	if r.cacheSize > 0 {
		r.cache, err = lru.New[int, scanPeaks](r.cacheSize)
		if err != nil {
			return nil, err
		}
	}
	r.log.Debug("opened run",
		slog.String("run", path),
		slog.Int("scans", len(r.scans)),
		slog.Float64("start_time", r.bounds.StartTime),
		slog.Float64("end_time", r.bounds.EndTime),
		slog.Float64("min_mass", r.bounds.MinMass),
		slog.Float64("max_mass", r.bounds.MaxMass))
	return r, nil
}

func classifyReadError(path string, err error) error {
	var syntaxErr *xml.SyntaxError
	switch {
	case errors.Is(err, mzml.ErrTruncated):
		return fmt.Errorf("%w: %s: %w", ErrStillAcquiring, path, err)
	case errors.As(err, &syntaxErr),
		errors.Is(err, mzml.ErrNoMzML),
		errors.Is(err, mzml.ErrInvalidScanIndex):
		return fmt.Errorf("%w: %s: %w", ErrCorruptRun, path, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrUnreadable, path, err)
	}
}

// index collects per scan info, the scan selection bitmaps and the run bounds
func (r *Run) index() error {
	n := r.file.NumSpecs()
	r.scans = make([]scanInfo, n)
	r.all = roaring.New()
	r.byLevel = make(map[int]*roaring.Bitmap)
	r.positive = roaring.New()
	r.negative = roaring.New()
	r.centroid = roaring.New()

	startTime, endTime := math.Inf(1), math.Inf(-1)
	minMass, maxMass := math.Inf(1), math.Inf(-1)
	for i := 0; i < n; i++ {
		var info scanInfo
		var err error
		if info.level, err = r.file.MSLevel(i); err != nil {
			return err
		}
		if info.rt, err = r.file.RetentionTime(i); err != nil {
			return err
		}
		if info.polarity, err = r.file.Polarity(i); err != nil {
			return err
		}
		if info.centroid, err = r.file.Centroid(i); err != nil {
			return err
		}
		if info.filter, err = r.file.FilterString(i); err != nil {
			return err
		}
		if info.tic, err = r.file.TotalIonCurrent(i); err != nil {
			return err
		}
		r.scans[i] = info

		scan := uint32(i + 1)
		r.all.Add(scan)
		bm, ok := r.byLevel[info.level]
		if !ok {
			bm = roaring.New()
			r.byLevel[info.level] = bm
		}
		bm.Add(scan)
		switch info.polarity {
		case mzml.PolarityPositive:
			r.positive.Add(scan)
		case mzml.PolarityNegative:
			r.negative.Add(scan)
		}
		if info.centroid {
			r.centroid.Add(scan)
		}

		if info.rt >= 0 {
			startTime = math.Min(startTime, info.rt)
			endTime = math.Max(endTime, info.rt)
		}
		lo, hi, ok, err := r.massLimits(i)
		if err != nil {
			return err
		}
		if ok {
			minMass = math.Min(minMass, lo)
			maxMass = math.Max(maxMass, hi)
		}
	}
	if math.IsInf(startTime, 1) {
		startTime, endTime = 0, 0
	}
	if math.IsInf(minMass, 1) {
		minMass, maxMass = 0, 0
	}
	r.bounds = Bounds{
		FirstScan: 1,
		LastScan:  n,
		StartTime: startTime,
		EndTime:   endTime,
		MinMass:   minMass,
		MaxMass:   maxMass,
	}
	return nil
}

// massLimits returns the m/z limits of a spectrum: the scan window when
// reported, otherwise the observed m/z range, otherwise the extremes of
// the decoded peaks
func (r *Run) massLimits(i int) (float64, float64, bool, error) {
	lo, hi, ok, err := r.file.ScanWindow(i)
	if err != nil || ok {
		return lo, hi, ok, err
	}
	lo, hi, ok, err = r.file.ObservedMzRange(i)
	if err != nil || ok {
		return lo, hi, ok, err
	}
	p, err := r.decode(i)
	if err != nil {
		return 0, 0, false, err
	}
	if len(p.mz) == 0 {
		return 0, 0, false, nil
	}
	// decode sorts by m/z
	return p.mz[0], p.mz[len(p.mz)-1], true, nil
}

// Path returns the path the run was opened from
func (r *Run) Path() string {
	return r.path
}

// Bounds returns the run-wide limits
func (r *Run) Bounds() Bounds {
	return r.bounds
}

// ScanID returns the native mzML id of a scan
func (r *Run) ScanID(scan int) (string, error) {
	if r.closed {
		return "", ErrClosed
	}
	return r.file.ScanID(scan - 1)
}

// Close releases the decoded scan cache. The run cannot be used afterwards.
func (r *Run) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if r.cache != nil {
		r.cache.Purge()
	}
	r.log.Debug("closed run", slog.String("run", r.path))
	return nil
}
