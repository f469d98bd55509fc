package model

import (
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/rotisserie/eris"
)

// CRS is a coordinate reference system definition and its parsed form.
type CRS struct {
	Def string
	SR  *proj.SR
}

// ParseCRS parses a proj4 definition.
func ParseCRS(def string) (CRS, error) {
	def = strings.TrimSpace(def)
	if def == "" {
		return CRS{}, eris.New("crs: empty definition")
	}
	sr, err := proj.Parse(def)
	if err != nil {
		return CRS{}, eris.Wrapf(err, "crs: parse %q", def)
	}
	return CRS{Def: def, SR: sr}, nil
}

// Same reports whether both systems were built from the same definition,
// in which case no transform is needed between them.
func (c CRS) Same(other CRS) bool {
	return normalizeDef(c.Def) == normalizeDef(other.Def)
}

func normalizeDef(def string) string {
	return strings.Join(strings.Fields(def), " ")
}
