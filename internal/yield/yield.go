// Package yield loads county crop-yield records from a tabular export.
package yield

import (
	"context"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/fetcher"
	"github.com/sells-group/yield-atlas/internal/fips"
	"github.com/sells-group/yield-atlas/internal/model"
)

// Columns holds 0-based source column indexes for each canonical field.
type Columns struct {
	GeoLevel   int
	StateCode  int
	CountyName int
	CountyCode int
	Value      int
}

// Options configures Load.
type Options struct {
	Columns          Columns
	Delimiter        rune
	HasHeader        bool
	Sheet            string
	StateLevelMarker string // rows whose geo level equals this are dropped
}

// suppressed lists NASS footnote markers that stand in for a withheld value.
var suppressed = map[string]bool{
	"(D)":  true,
	"(NA)": true,
	"(Z)":  true,
	"(X)":  true,
	"(S)":  true,
	"(L)":  true,
	"(H)":  true,
}

// Load reads the yield table at path. The value column becomes the
// canonical Yield field and state-wide total rows are excluded. Any failure
// is a load error.
func Load(ctx context.Context, path string, opts Options) ([]model.YieldRecord, error) {
	if err := opts.Columns.validate(); err != nil {
		return nil, model.LoadError(err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, model.LoadError(eris.Wrapf(err, "yield: stat %s", path))
	}

	log := zap.L().With(zap.String("component", "yield.loader"), zap.String("path", path))

	rows, err := fetcher.Collect(fetcher.StreamTable(ctx, path, fetcher.TableOptions{
		Delimiter: opts.Delimiter,
		HasHeader: opts.HasHeader,
		Sheet:     opts.Sheet,
	}))
	if err != nil {
		return nil, model.LoadError(eris.Wrapf(err, "yield: read %s", path))
	}

	need := opts.Columns.max() + 1
	records := make([]model.YieldRecord, 0, len(rows))
	var dropped int
	for _, row := range rows {
		if isBlank(row.Fields) {
			continue
		}
		if len(row.Fields) < need {
			return nil, model.LoadError(eris.Errorf(
				"yield: row %d has %d columns, column index %d is not present",
				row.Line, len(row.Fields), need-1))
		}

		level := strings.TrimSpace(row.Fields[opts.Columns.GeoLevel])
		if opts.StateLevelMarker != "" && strings.EqualFold(level, opts.StateLevelMarker) {
			dropped++
			continue
		}
		rec, err := parseRow(row.Fields, opts.Columns)
		if err != nil {
			return nil, model.LoadError(eris.Wrapf(err, "yield: row %d", row.Line))
		}
		records = append(records, rec)
	}

	log.Info("yield table loaded",
		zap.Int("records", len(records)),
		zap.Int("state_rows_dropped", dropped),
	)
	return records, nil
}

func parseRow(fields []string, cols Columns) (model.YieldRecord, error) {
	state, err := fips.ParseCode(fields[cols.StateCode])
	if err != nil {
		return model.YieldRecord{}, eris.Wrap(err, "state code")
	}
	county, err := fips.ParseOptionalCode(fields[cols.CountyCode])
	if err != nil {
		return model.YieldRecord{}, eris.Wrap(err, "county code")
	}
	value, err := ParseValue(fields[cols.Value])
	if err != nil {
		return model.YieldRecord{}, err
	}
	return model.YieldRecord{
		StateCode:  state,
		CountyCode: county,
		CountyName: strings.TrimSpace(fields[cols.CountyName]),
		GeoLevel:   strings.TrimSpace(fields[cols.GeoLevel]),
		Yield:      value,
	}, nil
}

// ParseValue parses a yield value. Thousands separators are ignored; empty
// cells and suppression markers such as "(D)" yield nil.
func ParseValue(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" || suppressed[strings.ToUpper(s)] {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, eris.Errorf("yield: invalid value %q", s)
	}
	return &v, nil
}

func (c Columns) max() int {
	m := c.GeoLevel
	for _, v := range []int{c.StateCode, c.CountyName, c.CountyCode, c.Value} {
		if v > m {
			m = v
		}
	}
	return m
}

func (c Columns) validate() error {
	for _, v := range []int{c.GeoLevel, c.StateCode, c.CountyName, c.CountyCode, c.Value} {
		if v < 0 {
			return eris.Errorf("yield: negative column index %d", v)
		}
	}
	return nil
}

func isBlank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
