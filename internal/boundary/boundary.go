// Package boundary loads county boundary polygons from shapefiles and
// downloads Census TIGER/Line county layers.
package boundary

import (
	"bytes"
	"os"
	"sort"
	"strings"

	"github.com/ctessum/geom/proj"
	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/yield-atlas/internal/fips"
	"github.com/sells-group/yield-atlas/internal/model"
)

// Options configures Load. Field names are matched case-insensitively.
type Options struct {
	StateField  string
	CountyField string
	NameField   string
	StateCode   int    // 0 keeps every state
	DefaultCRS  string // proj4 definition used when no .prj sidecar exists
}

// Layer is a set of county polygons in one coordinate reference system.
type Layer struct {
	Counties []*model.County
	CRS      model.CRS
	Fields   []string
}

// ByCode returns the county with the given code, or nil.
func (l *Layer) ByCode(code int) *model.County {
	for _, c := range l.Counties {
		if c.CountyCode == code {
			return c
		}
	}
	return nil
}

// Load reads the shapefile at shpPath and returns its polygons, filtered to
// opts.StateCode when set. Every failure is a load error.
func Load(shpPath string, opts Options) (*Layer, error) {
	layer, err := load(shpPath, opts)
	if err != nil {
		return nil, model.LoadError(err)
	}
	return layer, nil
}

func load(shpPath string, opts Options) (*Layer, error) {
	log := zap.L().With(zap.String("component", "boundary.loader"), zap.String("path", shpPath))

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: open shapefile %s", shpPath)
	}
	defer func() { _ = reader.Close() }()

	crs, err := readCRS(shpPath, opts.DefaultCRS)
	if err != nil {
		return nil, err
	}

	// Build field name → index map.
	fields := reader.Fields()
	names := make([]string, len(fields))
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		names[i] = name
		fieldIdx[strings.ToLower(name)] = i
	}

	stateIdx, err := requireField(fieldIdx, opts.StateField)
	if err != nil {
		return nil, err
	}
	countyIdx, err := requireField(fieldIdx, opts.CountyField)
	if err != nil {
		return nil, err
	}
	nameIdx := -1
	if opts.NameField != "" {
		if idx, ok := fieldIdx[strings.ToLower(opts.NameField)]; ok {
			nameIdx = idx
		}
	}

	var counties []*model.County
	seen := make(map[string]bool)
	var skipped int

	for reader.Next() {
		n, shape := reader.Shape()
		attr := func(idx int) string {
			return strings.TrimSpace(strings.TrimRight(reader.Attribute(idx), "\x00"))
		}

		state, err := fips.ParseCode(attr(stateIdx))
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: record %d: %s", n, opts.StateField)
		}
		if opts.StateCode > 0 && state != opts.StateCode {
			continue
		}
		code, err := fips.ParseCode(attr(countyIdx))
		if err != nil {
			return nil, eris.Wrapf(err, "boundary: record %d: %s", n, opts.CountyField)
		}
		geoid := fips.GEOID(state, code)
		if seen[geoid] {
			return nil, eris.Errorf("boundary: duplicate county code %d in state %d", code, state)
		}

		mp := ToMultiPolygon(shape)
		if mp == nil {
			skipped++
			continue
		}
		seen[geoid] = true

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			attrs[name] = attr(i)
		}
		attrs[names[stateIdx]] = fips.NormalizeState(attr(stateIdx))
		attrs[names[countyIdx]] = fips.NormalizeCounty(attr(countyIdx))
		county := &model.County{
			StateCode:  state,
			CountyCode: code,
			GEOID:      geoid,
			Geometry:   mp,
			Attributes: attrs,
		}
		if nameIdx >= 0 {
			county.Name = attr(nameIdx)
		}
		counties = append(counties, county)
	}

	if skipped > 0 {
		zap.L().Warn("boundary: skipped records without polygon geometry",
			zap.String("path", shpPath),
			zap.Int("skipped", skipped),
		)
	}
	if len(counties) == 0 {
		return nil, eris.Errorf("boundary: no counties for state %d in %s", opts.StateCode, shpPath)
	}

	sort.Slice(counties, func(i, j int) bool {
		if counties[i].StateCode != counties[j].StateCode {
			return counties[i].StateCode < counties[j].StateCode
		}
		return counties[i].CountyCode < counties[j].CountyCode
	})

	log.Info("county boundaries loaded",
		zap.Int("counties", len(counties)),
		zap.Int("state", opts.StateCode),
		zap.String("crs", crs.Def),
	)

	return &Layer{Counties: counties, CRS: crs, Fields: names}, nil
}

func requireField(fieldIdx map[string]int, name string) (int, error) {
	idx, ok := fieldIdx[strings.ToLower(name)]
	if !ok {
		return 0, eris.Errorf("boundary: attribute %q not present", name)
	}
	return idx, nil
}

// readCRS reads the .prj sidecar next to shpPath, falling back to def when
// there is none.
func readCRS(shpPath, def string) (model.CRS, error) {
	prjPath := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	raw, err := os.ReadFile(prjPath)
	if os.IsNotExist(err) {
		if def == "" {
			return model.CRS{}, eris.Errorf("boundary: %s has no .prj and no default CRS is configured", shpPath)
		}
		return model.ParseCRS(def)
	}
	if err != nil {
		return model.CRS{}, eris.Wrapf(err, "boundary: read %s", prjPath)
	}

	sr, err := proj.ReadPrj(bytes.NewReader(raw))
	if err != nil {
		return model.CRS{}, eris.Wrapf(err, "boundary: parse %s", prjPath)
	}
	return model.CRS{Def: strings.TrimSpace(string(raw)), SR: sr}, nil
}
