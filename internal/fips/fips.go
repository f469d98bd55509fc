// Package fips normalizes Census FIPS state and county identifiers.
package fips

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ParseCode converts a textual FIPS code to an int. Leading zeros are
// allowed and a trailing ".0" left behind by spreadsheet exports is
// stripped. Anything else that is not a plain run of digits is rejected
// instead of being silently treated as missing.
func ParseCode(code string) (int, error) {
	s := strings.TrimSpace(strings.TrimRight(code, "\x00"))
	if s == "" {
		return 0, eris.New("fips: empty code")
	}
	s = strings.TrimSuffix(s, ".0")
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, eris.Errorf("fips: non-numeric code %q", code)
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, eris.Wrapf(err, "fips: parse code %q", code)
	}
	return n, nil
}

// ParseOptionalCode is ParseCode for nullable columns: an empty value
// yields nil, a malformed one an error.
func ParseOptionalCode(code string) (*int, error) {
	if strings.TrimSpace(strings.TrimRight(code, "\x00")) == "" {
		return nil, nil
	}
	n, err := ParseCode(code)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// NormalizeState normalizes a state FIPS code to 2 digits with zero-padding.
func NormalizeState(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	if len(code) == 1 {
		return "0" + code
	}
	return code
}

// NormalizeCounty normalizes a county FIPS code to 3 digits with zero-padding.
func NormalizeCounty(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	for len(code) < 3 {
		code = "0" + code
	}
	return code
}

// GEOID combines numeric state and county codes into the 5-digit county GEOID.
func GEOID(state, county int) string {
	return Format(state, 2) + Format(county, 3)
}

// Format formats a numeric FIPS code with proper zero-padding.
func Format(code int, digits int) string {
	return fmt.Sprintf("%0*d", digits, code)
}
