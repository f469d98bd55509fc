package testfixture

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
)

// QuickStatsHeader is the column layout of a USDA NASS QuickStats export.
// Geo Level, State ANSI, County, County ANSI and Value sit at indexes 4, 6,
// 9, 10 and 19.
var QuickStatsHeader = []string{
	"Program", "Year", "Period", "Week Ending", "Geo Level", "State", "State ANSI",
	"Ag District", "Ag District Code", "County", "County ANSI", "Zip Code", "Region",
	"watershed_code", "Watershed", "Commodity", "Data Item", "Domain", "Domain Category",
	"Value", "CV (%)",
}

// YieldRow is one fixture yield record.
type YieldRow struct {
	Level      string // "COUNTY" or "STATE"
	State      string
	County     string
	CountyCode string
	Value      string
}

// Fields expands the row into the QuickStats column layout.
func (r YieldRow) Fields() []string {
	return []string{
		"SURVEY", "2022", "YEAR", "", r.Level, "ILLINOIS", r.State,
		"NORTHWEST", "10", r.County, r.CountyCode, "", "",
		"00000000", "", "CORN", "CORN, GRAIN - YIELD, MEASURED IN BU / ACRE", "TOTAL", "NOT SPECIFIED",
		r.Value, "",
	}
}

// WriteYieldCSV writes rows as a QuickStats CSV with a header line.
func WriteYieldCSV(path string, rows []YieldRow) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "testfixture: create %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(QuickStatsHeader); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "testfixture: write header")
	}
	for _, r := range rows {
		if err := w.Write(r.Fields()); err != nil {
			_ = f.Close()
			return eris.Wrap(err, "testfixture: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "testfixture: flush")
	}
	return eris.Wrapf(f.Close(), "testfixture: close %s", path)
}
