package raw

import (
	"strconv"
	"strings"

	"github.com/524D/mzxic/internal/mzml"
)

// MSFilter is the generic filter token that selects MS1 scans
const MSFilter = "ms"

// Filter is a parsed instrument filter string.
//
// Recognised tokens are "ms" and "msN" (MS level), "+" and "-" (polarity)
// and "c" and "p" (centroid or profile). "Full" is ignored. All other tokens
// must occur in the scan's own filter string, when the scan has one.
type Filter struct {
	MSLevel  int // 0 means any level
	Polarity mzml.Polarity
	Centroid *bool
	Terms    []string
}

// ParseFilter parses an instrument filter string. An empty string yields the
// generic MS1 filter.
func ParseFilter(s string) Filter {
	var f Filter
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		tokens = []string{MSFilter}
	}
	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		switch {
		case lower == "ms":
			f.MSLevel = 1
		case strings.HasPrefix(lower, "ms") && isLevel(lower[2:]):
			f.MSLevel, _ = strconv.Atoi(lower[2:])
		case lower == "+":
			f.Polarity = mzml.PolarityPositive
		case lower == "-":
			f.Polarity = mzml.PolarityNegative
		case lower == "c":
			c := true
			f.Centroid = &c
		case lower == "p":
			c := false
			f.Centroid = &c
		case lower == "full":
		default:
			f.Terms = append(f.Terms, lower)
		}
	}
	return f
}

func isLevel(s string) bool {
	n, err := strconv.Atoi(s)
	return err == nil && n > 0
}

// matchTerms reports whether all free terms of the filter occur in the
// scan filter string. Scans without a filter string match any terms.
func (f Filter) matchTerms(scanFilter string) bool {
	if scanFilter == "" {
		return true
	}
	words := strings.Fields(strings.ToLower(scanFilter))
	for _, term := range f.Terms {
		found := false
		for _, w := range words {
			if w == term {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
