// Package match joins yield records onto county polygons by state and
// county code and back-fills unmatched counties from their state's
// fallback record.
package match

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/cases"

	"github.com/sells-group/yield-atlas/internal/fips"
	"github.com/sells-group/yield-atlas/internal/model"
)

// Options configures Join.
type Options struct {
	// StateCode restricts the records considered. Zero keeps every record.
	StateCode int
	// FallbackName identifies the record whose yield fills unmatched
	// counties, compared after case folding and whitespace collapsing.
	FallbackName string
}

// Report is the inspectable outcome of a join.
type Report struct {
	Matched       []*model.County
	Filled        []*model.County
	Unresolved    []*model.County
	UnusedRecords []model.YieldRecord
	// Fallback is the fallback record of the configured state, or the
	// first one found when every state is joined.
	Fallback *model.YieldRecord
	// Fallbacks holds the fallback record of each state, keyed by state code.
	Fallbacks map[int]*model.YieldRecord
}

// OK reports whether every county resolved to a yield.
func (r *Report) OK() bool {
	return len(r.Unresolved) == 0
}

// Summary returns a one-line description of the join.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d matched, %d filled from fallback, %d unresolved, %d unused records",
		len(r.Matched), len(r.Filled), len(r.Unresolved), len(r.UnusedRecords))
}

// Join left-joins records onto counties in place. Counties with no record,
// or whose record has no yield, receive the fallback record's yield. Any
// county still without a yield makes Join return a join error alongside
// the report. Join resets previously joined fields first, so repeated
// calls with the same inputs give the same result.
func Join(counties []*model.County, records []model.YieldRecord, opts Options) (*Report, error) {
	log := zap.L().With(zap.String("component", "match.join"), zap.Int("state", opts.StateCode))

	if strings.TrimSpace(opts.FallbackName) == "" {
		return nil, model.JoinError(eris.New("match: fallback name is required"))
	}
	fallbackKey := normalizeName(opts.FallbackName)

	report := &Report{Fallbacks: make(map[int]*model.YieldRecord)}
	byGEOID := make(map[string]int, len(records))
	used := make(map[int]bool, len(records))
	var coded []int

	for i, rec := range records {
		if opts.StateCode > 0 && rec.StateCode != opts.StateCode {
			continue
		}
		if normalizeName(rec.CountyName) == fallbackKey {
			if prev, dup := report.Fallbacks[rec.StateCode]; dup {
				log.Warn("match: several fallback records for a state, using the first",
					zap.String("fallback", opts.FallbackName),
					zap.Int("record_state", rec.StateCode),
					zap.String("kept", prev.CountyName),
				)
				continue
			}
			fb := rec
			report.Fallbacks[rec.StateCode] = &fb
			if report.Fallback == nil {
				report.Fallback = &fb
			}
			continue
		}
		if !rec.HasCounty() {
			report.UnusedRecords = append(report.UnusedRecords, rec)
			continue
		}
		geoid := fips.GEOID(rec.StateCode, *rec.CountyCode)
		if prev, dup := byGEOID[geoid]; dup {
			return nil, model.JoinError(eris.Errorf(
				"match: county %s appears in records %d (%s) and %d (%s)",
				geoid, prev, records[prev].CountyName, i, rec.CountyName))
		}
		byGEOID[geoid] = i
		coded = append(coded, i)
	}

	for _, c := range counties {
		c.ResetJoin()
		if opts.StateCode > 0 && c.StateCode != opts.StateCode {
			continue
		}
		idx, ok := byGEOID[fips.GEOID(c.StateCode, c.CountyCode)]
		if !ok {
			continue
		}
		used[idx] = true
		if records[idx].Yield == nil {
			continue
		}
		v := *records[idx].Yield
		c.Yield = &v
		c.YieldSource = model.YieldSourceDirect
		report.Matched = append(report.Matched, c)
	}

	for _, c := range counties {
		if c.Yield != nil || (opts.StateCode > 0 && c.StateCode != opts.StateCode) {
			continue
		}
		fb := report.Fallbacks[c.StateCode]
		if fb == nil || fb.Yield == nil {
			report.Unresolved = append(report.Unresolved, c)
			continue
		}
		v := *fb.Yield
		c.Yield = &v
		c.YieldSource = model.YieldSourceFallback
		report.Filled = append(report.Filled, c)
	}

	for _, idx := range coded {
		if !used[idx] {
			report.UnusedRecords = append(report.UnusedRecords, records[idx])
		}
	}

	log.Info("join complete",
		zap.Int("matched", len(report.Matched)),
		zap.Int("filled", len(report.Filled)),
		zap.Int("unresolved", len(report.Unresolved)),
		zap.Int("unused_records", len(report.UnusedRecords)),
	)

	if !report.OK() {
		return report, model.JoinError(unresolvedError(report, opts.FallbackName))
	}
	return report, nil
}

func unresolvedError(r *Report, fallbackName string) error {
	names := make([]string, 0, len(r.Unresolved))
	for _, c := range r.Unresolved {
		reason := "fallback record has no yield"
		if r.Fallbacks[c.StateCode] == nil {
			reason = fmt.Sprintf("no %q record", fallbackName)
		}
		names = append(names, fmt.Sprintf("%s (%s): %s", c.Name, c.GEOID, reason))
	}
	return eris.Errorf("match: %d counties unresolved: %s",
		len(r.Unresolved), strings.Join(names, ", "))
}

// normalizeName case-folds s and collapses runs of whitespace.
func normalizeName(s string) string {
	return cases.Fold().String(strings.Join(strings.Fields(s), " "))
}
