package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Yield    YieldConfig    `yaml:"yield" mapstructure:"yield"`
	Counties CountiesConfig `yaml:"counties" mapstructure:"counties"`
	Raster   RasterConfig   `yaml:"raster" mapstructure:"raster"`
	Zonal    ZonalConfig    `yaml:"zonal" mapstructure:"zonal"`
	Render   RenderConfig   `yaml:"render" mapstructure:"render"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// YieldConfig describes the tabular yield input. Column indexes are 0-based
// positions in the source row.
type YieldConfig struct {
	Path             string        `yaml:"path" mapstructure:"path"`
	Delimiter        string        `yaml:"delimiter" mapstructure:"delimiter"`
	HasHeader        bool          `yaml:"has_header" mapstructure:"has_header"`
	Sheet            string        `yaml:"sheet" mapstructure:"sheet"`
	Columns          ColumnsConfig `yaml:"columns" mapstructure:"columns"`
	StateLevelMarker string        `yaml:"state_level_marker" mapstructure:"state_level_marker"`
	FallbackName     string        `yaml:"fallback_name" mapstructure:"fallback_name"`
}

// ColumnsConfig maps canonical fields to source column indexes.
type ColumnsConfig struct {
	GeoLevel   int `yaml:"geo_level" mapstructure:"geo_level"`
	StateCode  int `yaml:"state_code" mapstructure:"state_code"`
	CountyName int `yaml:"county_name" mapstructure:"county_name"`
	CountyCode int `yaml:"county_code" mapstructure:"county_code"`
	Value      int `yaml:"value" mapstructure:"value"`
}

// CountiesConfig describes the county boundary layer.
type CountiesConfig struct {
	Path        string `yaml:"path" mapstructure:"path"`
	StateCode   int    `yaml:"state_code" mapstructure:"state_code"`
	StateField  string `yaml:"state_field" mapstructure:"state_field"`
	CountyField string `yaml:"county_field" mapstructure:"county_field"`
	NameField   string `yaml:"name_field" mapstructure:"name_field"`
	CRS         string `yaml:"crs" mapstructure:"crs"`
	Year        int    `yaml:"year" mapstructure:"year"`
	DownloadDir string `yaml:"download_dir" mapstructure:"download_dir"`
}

// RasterConfig describes the two climate-model rasters and the crop window.
type RasterConfig struct {
	Baseline      BandConfig   `yaml:"baseline" mapstructure:"baseline"`
	Future        BandConfig   `yaml:"future" mapstructure:"future"`
	XName         string       `yaml:"x_name" mapstructure:"x_name"`
	YName         string       `yaml:"y_name" mapstructure:"y_name"`
	CRS           string       `yaml:"crs" mapstructure:"crs"`
	Extent        ExtentConfig `yaml:"extent" mapstructure:"extent"`
	WrapLongitude bool         `yaml:"wrap_longitude" mapstructure:"wrap_longitude"`
}

// BandConfig selects one band of one raster variable. Band is 1-based.
type BandConfig struct {
	Path     string `yaml:"path" mapstructure:"path"`
	Variable string `yaml:"variable" mapstructure:"variable"`
	Band     int    `yaml:"band" mapstructure:"band"`
}

// ExtentConfig is a crop window in the raster's native units.
type ExtentConfig struct {
	XMin float64 `yaml:"xmin" mapstructure:"xmin"`
	XMax float64 `yaml:"xmax" mapstructure:"xmax"`
	YMin float64 `yaml:"ymin" mapstructure:"ymin"`
	YMax float64 `yaml:"ymax" mapstructure:"ymax"`
}

// ZonalConfig configures zonal statistics.
type ZonalConfig struct {
	Weighted bool `yaml:"weighted" mapstructure:"weighted"`
}

// RenderConfig configures the choropleth figures.
type RenderConfig struct {
	OutDir         string  `yaml:"out_dir" mapstructure:"out_dir"`
	Format         string  `yaml:"format" mapstructure:"format"`
	WidthIn        float64 `yaml:"width_in" mapstructure:"width_in"`
	HeightIn       float64 `yaml:"height_in" mapstructure:"height_in"`
	Classes        int     `yaml:"classes" mapstructure:"classes"`
	ChangeClasses  int     `yaml:"change_classes" mapstructure:"change_classes"`
	YieldPalette   string  `yaml:"yield_palette" mapstructure:"yield_palette"`
	ChangePalette  string  `yaml:"change_palette" mapstructure:"change_palette"`
	ReverseYield   bool    `yaml:"reverse_yield" mapstructure:"reverse_yield"`
	ReverseChange  bool    `yaml:"reverse_change" mapstructure:"reverse_change"`
	LabelPrecision int     `yaml:"label_precision" mapstructure:"label_precision"`
	Labels         bool    `yaml:"labels" mapstructure:"labels"`
}

// ExportConfig toggles the tabular/vector exports written next to the figures.
type ExportConfig struct {
	GeoJSON  bool `yaml:"geojson" mapstructure:"geojson"`
	XLSX     bool `yaml:"xlsx" mapstructure:"xlsx"`
	Manifest bool `yaml:"manifest" mapstructure:"manifest"`
}

// StoreConfig configures the results store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SRID        int    `yaml:"srid" mapstructure:"srid"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from the given YAML file, or from an
// optional config.yaml in the working directory when path is empty.
func LoadFile(path string) (*Config, error) {
	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("YIELDATLAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// setDefaults registers every default. Defaults match the column layout of a
// USDA NASS QuickStats county export and a Census TIGER/Line county layer.
func setDefaults(v *viper.Viper) {
	v.SetDefault("yield.path", "data/yield.csv")
	v.SetDefault("yield.delimiter", ",")
	v.SetDefault("yield.has_header", true)
	v.SetDefault("yield.columns.geo_level", 4)
	v.SetDefault("yield.columns.state_code", 6)
	v.SetDefault("yield.columns.county_name", 9)
	v.SetDefault("yield.columns.county_code", 10)
	v.SetDefault("yield.columns.value", 19)
	v.SetDefault("yield.state_level_marker", "STATE")
	v.SetDefault("yield.fallback_name", "OTHER COUNTIES")

	v.SetDefault("counties.path", "data/tl_2024_us_county/tl_2024_us_county.shp")
	v.SetDefault("counties.state_code", 17)
	v.SetDefault("counties.state_field", "STATEFP")
	v.SetDefault("counties.county_field", "COUNTYFP")
	v.SetDefault("counties.name_field", "NAME")
	v.SetDefault("counties.crs", "+proj=longlat +datum=NAD83 +no_defs")
	v.SetDefault("counties.year", 2024)
	v.SetDefault("counties.download_dir", "data")

	v.SetDefault("raster.baseline.path", "data/baseline.nc")
	v.SetDefault("raster.baseline.variable", "yield")
	v.SetDefault("raster.baseline.band", 1)
	v.SetDefault("raster.future.path", "data/future.nc")
	v.SetDefault("raster.future.variable", "yield")
	v.SetDefault("raster.future.band", 31)
	v.SetDefault("raster.x_name", "lon")
	v.SetDefault("raster.y_name", "lat")
	v.SetDefault("raster.crs", "+proj=longlat +datum=WGS84 +no_defs")
	v.SetDefault("raster.extent.xmin", -92.0)
	v.SetDefault("raster.extent.xmax", -87.0)
	v.SetDefault("raster.extent.ymin", 36.5)
	v.SetDefault("raster.extent.ymax", 43.0)
	v.SetDefault("raster.wrap_longitude", false)

	v.SetDefault("zonal.weighted", true)

	v.SetDefault("render.out_dir", "out")
	v.SetDefault("render.format", "png")
	v.SetDefault("render.width_in", 8.0)
	v.SetDefault("render.height_in", 10.0)
	v.SetDefault("render.classes", 5)
	v.SetDefault("render.change_classes", 9)
	v.SetDefault("render.yield_palette", "YlGn")
	v.SetDefault("render.change_palette", "RdYlGn")
	v.SetDefault("render.reverse_yield", false)
	v.SetDefault("render.reverse_change", false)
	v.SetDefault("render.label_precision", 0)
	v.SetDefault("render.labels", true)

	v.SetDefault("export.geojson", true)
	v.SetDefault("export.xlsx", true)
	v.SetDefault("export.manifest", true)

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "yield-atlas.db")
	v.SetDefault("store.srid", 4269)
	v.SetDefault("store.max_conns", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the settings the pipeline cannot run without.
func (c *Config) Validate() error {
	if c.Yield.Path == "" {
		return eris.New("config: yield.path is required")
	}
	if c.Counties.Path == "" {
		return eris.New("config: counties.path is required")
	}
	if c.Raster.Baseline.Path == "" || c.Raster.Future.Path == "" {
		return eris.New("config: raster.baseline.path and raster.future.path are required")
	}
	if c.Raster.Baseline.Band < 1 || c.Raster.Future.Band < 1 {
		return eris.New("config: raster bands are 1-based and must be >= 1")
	}
	e := c.Raster.Extent
	if e.XMin >= e.XMax || e.YMin >= e.YMax {
		return eris.Errorf("config: invalid raster.extent [%g, %g] x [%g, %g]", e.XMin, e.XMax, e.YMin, e.YMax)
	}
	if c.Render.Classes < 2 || c.Render.ChangeClasses < 2 {
		return eris.New("config: render class counts must be >= 2")
	}
	if strings.TrimSpace(c.Yield.FallbackName) == "" {
		return eris.New("config: yield.fallback_name is required")
	}
	if len([]rune(c.Yield.Delimiter)) > 1 {
		return eris.Errorf("config: yield.delimiter must be a single character, got %q", c.Yield.Delimiter)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "none", "":
	default:
		return eris.Errorf("config: unsupported store driver %q", c.Store.Driver)
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
