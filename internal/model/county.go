package model

import (
	"math"

	"github.com/twpayne/go-geom"
)

// YieldSource records how a county's yield was resolved by the join.
type YieldSource string

const (
	YieldSourceNone     YieldSource = ""
	YieldSourceDirect   YieldSource = "direct"
	YieldSourceFallback YieldSource = "fallback"
)

// County is a county boundary polygon plus the attributes attached by the
// join and the raster aggregation.
type County struct {
	StateCode  int                `json:"state_code"`
	CountyCode int                `json:"county_code"`
	Name       string             `json:"name"`
	GEOID      string             `json:"geoid"`
	Geometry   *geom.MultiPolygon `json:"-"`
	Attributes map[string]string  `json:"attributes,omitempty"`

	Yield          *float64    `json:"yield,omitempty"`
	YieldSource    YieldSource `json:"yield_source,omitempty"`
	PctChange      *float64    `json:"pct_change,omitempty"`
	ProjectedYield *float64    `json:"projected_yield,omitempty"`
}

// ResetJoin clears every field written by the join and aggregation stages.
func (c *County) ResetJoin() {
	c.Yield = nil
	c.YieldSource = YieldSourceNone
	c.PctChange = nil
	c.ProjectedYield = nil
}

// RoundedPct returns the percentage change rounded to the nearest integer,
// or nil when the change is unknown.
func (c *County) RoundedPct() *float64 {
	return RoundPct(c.PctChange)
}

// RoundPct rounds a nullable percentage to the nearest integer.
func RoundPct(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v)
	return &r
}

// Float returns a pointer to v. NaN maps to nil.
func Float(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Value dereferences a nullable float, mapping nil to NaN.
func Value(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
