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
	Classify   ClassifyConfig   `yaml:"classify" mapstructure:"classify"`
	StreetView StreetViewConfig `yaml:"streetview" mapstructure:"streetview"`
	Offset     OffsetConfig     `yaml:"offset" mapstructure:"offset"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ClassifyConfig configures the batch aggregator.
type ClassifyConfig struct {
	Suffix   string `yaml:"suffix" mapstructure:"suffix"`
	Headings []int  `yaml:"headings" mapstructure:"headings"`
	Pitches  []int  `yaml:"pitches" mapstructure:"pitches"`
	Workers  int    `yaml:"workers" mapstructure:"workers"`
	Workbook bool   `yaml:"workbook" mapstructure:"workbook"`
}

// StreetViewConfig configures image acquisition.
type StreetViewConfig struct {
	APIKey    string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	Size      string  `yaml:"size" mapstructure:"size"`
	FOV       int     `yaml:"fov" mapstructure:"fov"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	Workers   int     `yaml:"workers" mapstructure:"workers"`
	Headings  []int   `yaml:"headings" mapstructure:"headings"`
	Pitches   []int   `yaml:"pitches" mapstructure:"pitches"`
}

// OffsetConfig configures waypoint offsetting.
type OffsetConfig struct {
	Meters  float64 `yaml:"meters" mapstructure:"meters"`
	GeoJSON bool    `yaml:"geojson" mapstructure:"geojson"`
}

// StoreConfig selects and configures the run ledger.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Store drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STREETCOVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	headings := []int{0, 60, 120, 180, 240, 300}
	pitches := []int{-45, 0, 45, 90}

	v.SetDefault("classify.suffix", ".jpg")
	v.SetDefault("classify.headings", headings)
	v.SetDefault("classify.pitches", pitches)
	v.SetDefault("classify.workers", 1)
	v.SetDefault("classify.workbook", false)
	v.SetDefault("streetview.api_key", "")
	v.SetDefault("streetview.base_url", "https://maps.googleapis.com/maps/api/streetview")
	v.SetDefault("streetview.size", "1200x800")
	v.SetDefault("streetview.fov", 60)
	v.SetDefault("streetview.rate_limit", 10.0)
	v.SetDefault("streetview.workers", 4)
	v.SetDefault("streetview.headings", headings)
	v.SetDefault("streetview.pitches", pitches)
	v.SetDefault("offset.meters", 15000.0)
	v.SetDefault("offset.geojson", false)
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "streetcover.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes are
// "classify", "fetch", "offset" and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "classify":
		if c.Classify.Workers < 1 || c.Classify.Workers > 64 {
			errs = append(errs, "classify.workers must be between 1 and 64")
		}
		errs = append(errs, c.validateStore()...)
	case "fetch":
		if c.StreetView.APIKey == "" {
			errs = append(errs, "streetview.api_key is required")
		}
		if c.StreetView.Workers < 1 || c.StreetView.Workers > 64 {
			errs = append(errs, "streetview.workers must be between 1 and 64")
		}
		if c.StreetView.FOV < 1 || c.StreetView.FOV > 120 {
			errs = append(errs, "streetview.fov must be between 1 and 120")
		}
		if len(c.StreetView.Headings) == 0 || len(c.StreetView.Pitches) == 0 {
			errs = append(errs, "streetview.headings and streetview.pitches must not be empty")
		}
	case "offset":
		if c.Offset.Meters <= 0 {
			errs = append(errs, "offset.meters must be > 0")
		}
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, "server.port must be > 0 and <= 65535")
		}
		if c.Store.Driver == DriverNone {
			errs = append(errs, "store.driver must not be none for serve")
		}
		errs = append(errs, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return []string{"store.sqlite_path is required for the sqlite driver"}
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			return []string{"store.database_url is required for the postgres driver"}
		}
	case DriverNone:
	default:
		return []string{"store.driver must be one of sqlite, postgres, none"}
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
