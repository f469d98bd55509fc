package pipeline

import (
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gonum.org/v1/plot/vg"

	"github.com/sells-group/yield-atlas/internal/model"
	"github.com/sells-group/yield-atlas/internal/render"
)

// Figure file stems written to render.out_dir.
const (
	FigureYield      = "yield"
	FigureChange     = "change"
	FigureProjection = "projection"
)

// Render draws the observed-yield map, the percentage-change map and the
// observed/projected side-by-side figure.
func (p *Pipeline) Render(res *Result) error {
	rc := p.cfg.Render
	counties := res.Counties()

	yields := attribute(counties, func(c *model.County) *float64 { return c.Yield })
	pcts := attribute(counties, (*model.County).RoundedPct)
	projected := attribute(counties, func(c *model.County) *float64 { return c.ProjectedYield })

	yieldClasses, err := render.ClassesOf(yields, rc.Classes)
	if err != nil {
		return err
	}
	changeClasses, err := render.ClassesOf(pcts, rc.ChangeClasses)
	if err != nil {
		return err
	}
	panelClasses, err := render.SharedClasses(rc.Classes, yields, projected)
	if err != nil {
		return err
	}
	res.Classes = Classes{Yield: yieldClasses, Change: changeClasses, Panels: panelClasses}

	yieldColors, err := render.Ramp(rc.YieldPalette, rc.Classes, rc.ReverseYield)
	if err != nil {
		return err
	}
	changeColors, err := render.Ramp(rc.ChangePalette, rc.ChangeClasses, rc.ReverseChange)
	if err != nil {
		return err
	}

	w := vg.Length(rc.WidthIn) * vg.Inch
	h := vg.Length(rc.HeightIn) * vg.Inch

	yieldMap := render.Map{
		Title:     "Observed yield",
		Counties:  counties,
		Values:    yields,
		Classes:   yieldClasses,
		Colors:    yieldColors,
		Labels:    rc.Labels,
		Precision: rc.LabelPrecision,
		Legend:    true,
		Aspect:    float64(w / h),
	}
	if err := p.saveMap(res, FigureYield, yieldMap, w, h); err != nil {
		return err
	}

	changeMap := render.Map{
		Title:    "Projected yield change (%)",
		Counties: counties,
		Values:   pcts,
		Classes:  changeClasses,
		Colors:   changeColors,
		Labels:   rc.Labels,
		Legend:   true,
		Aspect:   float64(w / h),
	}
	if err := p.saveMap(res, FigureChange, changeMap, w, h); err != nil {
		return err
	}

	left := yieldMap
	left.Classes = panelClasses
	right := left
	right.Title = "Projected yield"
	right.Values = projected
	path := p.figurePath(FigureProjection)
	if err := render.SideBySide(left, right, 2*w, h, path); err != nil {
		return err
	}
	res.Outputs = append(res.Outputs, path)

	zap.L().Info("figures rendered",
		zap.String("component", "pipeline.render"),
		zap.Int("yield_classes", yieldClasses.N()),
		zap.Int("change_classes", changeClasses.N()),
		zap.Int("panel_classes", panelClasses.N()),
	)
	return nil
}

func (p *Pipeline) saveMap(res *Result, stem string, m render.Map, w, h vg.Length) error {
	pl, err := render.Choropleth(m)
	if err != nil {
		return err
	}
	path := p.figurePath(stem)
	if err := render.Save(pl, w, h, path); err != nil {
		return err
	}
	res.Outputs = append(res.Outputs, path)
	return nil
}

func (p *Pipeline) figurePath(stem string) string {
	format := strings.TrimPrefix(strings.ToLower(p.cfg.Render.Format), ".")
	if format == "" {
		format = "png"
	}
	return filepath.Join(p.cfg.Render.OutDir, stem+"."+format)
}

func attribute(counties []*model.County, field func(*model.County) *float64) []*float64 {
	out := make([]*float64, len(counties))
	for i, c := range counties {
		out[i] = field(c)
	}
	return out
}
