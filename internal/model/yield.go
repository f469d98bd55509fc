package model

// YieldRecord is one row of the yield table after column selection.
// CountyCode is nil for aggregate rows such as "OTHER COUNTIES".
// Yield is nil when the source suppressed the value.
type YieldRecord struct {
	StateCode  int      `json:"state_code"`
	CountyCode *int     `json:"county_code,omitempty"`
	CountyName string   `json:"county_name"`
	GeoLevel   string   `json:"geo_level,omitempty"`
	Yield      *float64 `json:"yield,omitempty"`
}

// HasCounty reports whether the record carries a county code.
func (r YieldRecord) HasCounty() bool {
	return r.CountyCode != nil
}
