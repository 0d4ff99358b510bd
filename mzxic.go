// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/524D/mzxic/internal/logging"
	"github.com/524D/mzxic/internal/mzidentml"
	"github.com/524D/mzxic/internal/raw"
	"github.com/524D/mzxic/internal/xic"
	"github.com/524D/mzxic/internal/xicinput"
)

// Program name and version
const progName = "mzXIC"

var progVersion = `Unknown`

// Suffix of output files, replacing the extension of the mzML file
const outputSuffix = ".xic.json"

// Exit codes
const (
	exitOK    = 0
	exitRun   = 1 // one or more runs failed
	exitUsage = 2
)

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

// Command line parameters
type params struct {
	inputFilename     *string  // JSON file with XIC queries
	mzRange           *string  // m/z range of the command line query
	rtRange           *string  // RT range of the command line query
	filter            *string  // scan filter of the command line query
	comment           *string  // comment of the command line query
	mzIdentMlFilename *string  // identifications to build queries from
	tolerance         *string  // m/z tolerance for identification queries
	rtWindow          *float64 // RT half window for identification queries
	base64            *bool    // encode results as base64
	skipInvalid       *bool    // don't extract units with inverted ranges
	outDir            *string  // output directory, "-" for stdout
	jobs              *int     // number of runs processed in parallel
	schema            *bool    // print the input schema and exit
	debugUnits        *string  // print resolution of units in this range
	verbosity         int      // Verbosity of progress messages (infoDefault...)
	args              []string // mzML files
	debug             bool     // Debug output for all units (environment variable MZXIC_DEBUG=1)
}

var ErrRangeSpec = errors.New("invalid range specified")

// Parse string like "-12:6" into 2 values, -12 and 6
// Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12:"), the default is assigned
func parseIntRange(r string, min int, max int) (int, int, error) {
	re := regexp.MustCompile(`\s*(\-?\d*):(\-?\d*)`)
	m := re.FindStringSubmatch(r)
	if m == nil {
		// A single number selects just that value
		v, err := strconv.Atoi(strings.TrimSpace(r))
		if err != nil {
			return min, max, ErrRangeSpec
		}
		return v, v, nil
	}
	minOut := min
	maxOut := max
	if m[1] != "" {
		minOut, _ = strconv.Atoi(m[1])
		if minOut < min {
			minOut = min
		}
	}
	if m[2] != "" {
		maxOut, _ = strconv.Atoi(m[2])
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

var floatRangeRe = regexp.MustCompile(`^\s*([-+]?[0-9]*\.?[0-9]*(?:[eE][-+]?[0-9]+)?)\s*:\s*([-+]?[0-9]*\.?[0-9]*(?:[eE][-+]?[0-9]+)?)\s*$`)

// Parse string like "-12.01e1:+6" into 2 bounds, -120.1 and 6.0
// A side that is not specified (e.g. "-12.01e1:") is left unset, so that
// it is filled from the run. An empty string leaves both sides unset.
func parseBoundRange(r string) (xic.Bound, xic.Bound, error) {
	if strings.TrimSpace(r) == "" {
		return xic.Unset(), xic.Unset(), nil
	}
	m := floatRangeRe.FindStringSubmatch(r)
	if m == nil {
		return xic.Unset(), xic.Unset(), fmt.Errorf("%w: %q", ErrRangeSpec, r)
	}
	var b [2]xic.Bound
	for i, s := range m[1:] {
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return xic.Unset(), xic.Unset(), fmt.Errorf("%w: %q", ErrRangeSpec, r)
		}
		b[i] = xic.Value(v)
	}
	lo, okLo := b[0].Get()
	hi, okHi := b[1].Get()
	if okLo && okHi && lo > hi {
		return b[0], b[1], fmt.Errorf("%w: %q", ErrRangeSpec, r)
	}
	return b[0], b[1], nil
}

// usageError is reported with a hint to the help text
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

func newUsageError(format string, a ...any) error {
	return usageError{msg: fmt.Sprintf(format, a...)}
}

// commandLineUnit returns the query given by -mz, -rt, -filter and -comment,
// and whether any of them was given
func commandLineUnit(par params) (xic.Unit, bool, error) {
	given := *par.mzRange != "" || *par.rtRange != "" || *par.filter != "" || *par.comment != ""
	mzStart, mzEnd, err := parseBoundRange(*par.mzRange)
	if err != nil {
		return xic.Unit{}, given, newUsageError("Invalid m/z range: %v", err)
	}
	rtStart, rtEnd, err := parseBoundRange(*par.rtRange)
	if err != nil {
		return xic.Unit{}, given, newUsageError("Invalid RT range: %v", err)
	}
	return xic.NewUnit(mzStart, mzEnd, rtStart, rtEnd, *par.filter, *par.comment), given, nil
}

// identificationUnits reads the mzIdentML file and builds a query for
// each accepted identification
func identificationUnits(par params, tol xicinput.Tolerance) ([]xic.Unit, error) {
	f, err := os.Open(*par.mzIdentMlFilename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	mzIdentML, err := mzidentml.Read(f)
	if err != nil {
		return nil, fmt.Errorf("mzidentml.Read %s: %w", *par.mzIdentMlFilename, err)
	}
	ids := make([]mzidentml.Identification, 0, mzIdentML.NumIdents())
	for i := 0; i < mzIdentML.NumIdents(); i++ {
		ident, err := mzIdentML.Ident(i)
		if err != nil {
			return nil, err
		}
		ids = append(ids, ident)
	}
	units, err := xicinput.FromIdentifications(ids, tol, *par.rtWindow)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		slog.Warn("no usable identifications",
			slog.String("file", *par.mzIdentMlFilename),
			slog.Int("identifications", len(ids)))
	}
	return units, nil
}

// buildQueries collects the units of all query sources. The command line
// query is used when it is given, or when there is no other source.
func buildQueries(par params) (*xic.Data, error) {
	var units []xic.Unit
	if *par.inputFilename != "" {
		u, err := xicinput.ReadFile(*par.inputFilename)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", *par.inputFilename, err)
		}
		units = append(units, u...)
	}
	if *par.mzIdentMlFilename != "" {
		tol, err := xicinput.ParseTolerance(*par.tolerance)
		if err != nil {
			return nil, newUsageError("Invalid tolerance: %v", err)
		}
		u, err := identificationUnits(par, tol)
		if err != nil {
			return nil, err
		}
		units = append(units, u...)
	}
	u, given, err := commandLineUnit(par)
	if err != nil {
		return nil, err
	}
	if given || (*par.inputFilename == "" && *par.mzIdentMlFilename == "") {
		units = append(units, u)
	}
	return xic.NewData(units...), nil
}

// outputName returns the name of the output file for an mzML file, or ""
// when writing to stdout
func outputName(mzMLFilename string, par params) string {
	if *par.outDir == "-" {
		return ""
	}
	base := filepath.Base(mzMLFilename)
	startName := base[0 : len(base)-len(filepath.Ext(base))]
	dir := filepath.Dir(mzMLFilename)
	if *par.outDir != "" {
		dir = *par.outDir
	}
	return filepath.Join(dir, startName+outputSuffix)
}

// checkOutputNames returns an error when two mzML files would be written
// to the same output file
func checkOutputNames(par params) error {
	seen := make(map[string]string, len(par.args))
	for _, mzMLFilename := range par.args {
		name := outputName(mzMLFilename, par)
		if name == "" {
			continue
		}
		key := filepath.Clean(name)
		if other, ok := seen[key]; ok {
			return newUsageError("%s and %s would both be written to %s", other, mzMLFilename, name)
		}
		seen[key] = mzMLFilename
	}
	return nil
}

// writeXIC writes the extracted data of one run as JSON
func writeXIC(w io.Writer, data *xic.Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeXICFile(name string, data *xic.Data) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	if err := writeXIC(f, data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// extractRuns extracts data from each mzML file. Every run gets its own copy
// of the queries. A failing run is reported and does not stop the others.
func extractRuns(ctx context.Context, par params, data *xic.Data, stdout io.Writer, dbg *debugPrinter, logger *slog.Logger) error {
	var stdoutMux sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(max(*par.jobs, 1))
	for _, mzMLFilename := range par.args {
		g.Go(func() error {
			t := time.Now()
			runData := data.Clone()
			opts := xic.Options{
				Base64:      *par.base64,
				SkipInvalid: *par.skipInvalid,
				Logger:      logger.With(slog.String("run", mzMLFilename)),
			}
			if dbg != nil {
				opts.OnResolved = dbg.print
			}
			err := xic.ExtractFile(ctx, mzMLFilename, runData, opts)
			if err == nil {
				if name := outputName(mzMLFilename, par); name != "" {
					err = writeXICFile(name, runData)
				} else {
					stdoutMux.Lock()
					err = writeXIC(stdout, runData)
					stdoutMux.Unlock()
				}
			}
			if err != nil {
				logger.Error("run failed",
					slog.String("run", mzMLFilename),
					slog.String("kind", runErrorKind(err)),
					slog.Any("error", err))
				return err
			}
			logger.Info("extracted XICs",
				slog.String("run", mzMLFilename),
				slog.Int("units", len(runData.Content)),
				slog.Duration("elapsed", time.Since(t)))
			return nil
		})
	}
	return g.Wait()
}

// runErrorKind names the kind of a run failure for log messages
func runErrorKind(err error) string {
	switch {
	case errors.Is(err, raw.ErrNotFound):
		return "not found"
	case errors.Is(err, raw.ErrStillAcquiring):
		return "still acquiring"
	case errors.Is(err, raw.ErrCorruptRun):
		return "corrupt"
	case errors.Is(err, raw.ErrNoInstrument):
		return "no MS data"
	case errors.Is(err, raw.ErrUnreadable):
		return "unreadable"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "extraction"
	}
}

func usage(fs *flag.FlagSet) func() {
	return func() {
		w := fs.Output()
		exeName := filepath.Base(os.Args[0])
		fmt.Fprintf(w,
			`USAGE:
  %s [options] <mzMLfile>...

  This program extracts ion chromatograms (XICs) from MS data in mzML files.
  Each query selects an m/z range, a retention time range and a scan filter.
  Bounds that are not given are taken from the run.

OPTIONS:
`, exeName)
		fs.PrintDefaults()
		fmt.Fprintf(w,
			`
QUERY SOURCES:
  Queries are read from the JSON file given with -i, built from the
  identifications in the mzIdentML file given with -mzid, and given on the
  command line with -mz, -rt, -filter and -comment. Without -i or -mzid, the
  command line query is used, which by default is the TIC of all MS1 scans.
  Use -schema to print the JSON schema of the -i file.

SCAN FILTERS:
  Filters are space separated tokens. "ms" selects MS1 scans, "ms2" MS2 scans
  and so on, "+" and "-" the polarity, "c" and "p" centroid or profile data.
  Other tokens must appear in the filter string of the scan.

ENVIRONMENT VARIABLES:
    %s  log level (debug, info, warn, error)
    %s  write log to this file, with rotation
    MZXIC_DEBUG=1    print the resolution of all queries, like -debug :

USAGE EXAMPLES:
  %s -mz 524.26:524.27 -rt 20:30 yeast.mzML
    Extract m/z 524.26-524.27 between 20 and 30 minutes, write the result
    to yeast.xic.json.

  %s -mzid yeast.mzid -tol 5ppm -rtwin 2 -o - yeast.mzML
    Extract an XIC for every identified peptide, 5 ppm around its m/z and
    2 minutes around its retention time, and write the result to stdout.
`, logging.EnvLevel, logging.EnvFile, exeName, exeName)
	}
}

func newFlagSet(par *params, stderr io.Writer) (*flag.FlagSet, *bool, *bool, *bool) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	fs.SetOutput(stderr)

	par.inputFilename = fs.String("i", "",
		"JSON `filename` with XIC queries")
	par.mzRange = fs.String("mz", "",
		"m/z `range` of the query, e.g. 500.1:500.2 or 500:")
	par.rtRange = fs.String("rt", "",
		"retention time `range` of the query in minutes, e.g. 10:20")
	par.filter = fs.String("filter", "",
		"scan `filter` of the query (default \"ms\")")
	par.comment = fs.String("comment", "",
		"`comment` stored with the query")
	par.mzIdentMlFilename = fs.String("mzid", "",
		"mzIdentMl `filename`, make a query for each identified peptide")
	par.tolerance = fs.String("tol", xicinput.DefaultTolerance.String(),
		"m/z `tolerance` of identification queries, e.g. 10ppm, 0.01da or 5mmu")
	par.rtWindow = fs.Float64("rtwin", 1.0,
		"retention time window (`minutes`) around identifications, 0 for the whole run")
	par.base64 = fs.Bool("b", false,
		"encode results as base64 little-endian 64-bit floats")
	par.skipInvalid = fs.Bool("skip-invalid", false,
		"don't extract queries with an inverted m/z or RT range")
	par.outDir = fs.String("o", "",
		"output `directory`, or - for stdout. Default is the directory of the mzML file")
	par.jobs = fs.Int("j", 1,
		"number of mzML files processed in parallel")
	par.schema = fs.Bool("schema", false,
		"print the JSON schema of the -i file and exit")
	addDebugFlags(fs, par)
	version := fs.Bool("version", false,
		`Show software version`)
	verbose := fs.Bool("verbose", false,
		`Print more verbose progress information`)
	quiet := fs.Bool("quiet", false,
		`Don't print any output except for errors`)
	fs.Usage = usage(fs)
	return fs, version, verbose, quiet
}

// run executes the program with the given arguments and returns the exit code
func run(args []string, stdout, stderr io.Writer) int {
	var par params
	fs, version, verbose, quiet := newFlagSet(&par, stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *version {
		v := progVersion
		if v == `Unknown` {
			v = `Unknown
Please build this program with script 'build.sh' so that the git version is shown here.`
		}
		fmt.Fprintf(stderr, "%s version %s\n", progName, v)
		return exitOK
	}
	if *par.schema {
		b, err := xicinput.SchemaJSON()
		if err != nil {
			fmt.Fprintln(stderr, err)
			return exitRun
		}
		fmt.Fprintf(stdout, "%s\n", b)
		return exitOK
	}
	if *verbose {
		par.verbosity = infoVerbose
	}
	if *quiet {
		par.verbosity = infoSilent
	}
	par.args = fs.Args()
	// Check if debug output should be enabled
	par.debug = os.Getenv("MZXIC_DEBUG") == `1`

	logCfg := logging.FromEnv()
	logCfg.Stderr = stderr
	switch par.verbosity {
	case infoVerbose:
		logCfg.Level = "debug"
	case infoSilent:
		logCfg.Level = "error"
	}
	logger, logCleanup, err := logging.Setup(logCfg)
	if err != nil {
		fmt.Fprintf(stderr, "Can't set up logging: %v\n", err)
		return exitUsage
	}
	defer logCleanup()

	exeName := filepath.Base(os.Args[0])
	if len(par.args) == 0 {
		fmt.Fprintf(stderr, `Last argument(s) must be name of mzML file(s).
Type %s --help for usage
`, exeName)
		return exitUsage
	}

	reportUsage := func(err error) {
		fmt.Fprintf(stderr, "%v\nType %s --help for usage\n", err, exeName)
	}
	if err := checkOutputNames(par); err != nil {
		reportUsage(err)
		return exitUsage
	}

	data, err := buildQueries(par)
	if err != nil {
		var uerr usageError
		if errors.As(err, &uerr) {
			reportUsage(err)
			return exitUsage
		}
		logger.Error("can't read queries", slog.Any("error", err))
		return exitRun
	}
	logger.Debug("queries", slog.Int("units", len(data.Content)))

	var dbg *debugPrinter
	if *par.debugUnits != "" || par.debug {
		dbg, err = newDebugPrinter(stderr, *par.debugUnits, len(data.Content))
		if err != nil {
			reportUsage(err)
			return exitUsage
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := extractRuns(ctx, par, data, stdout, dbg, logger); err != nil {
		return exitRun
	}
	return exitOK
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
