package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/met-downscale/internal/domain"
)

// Config holds all service settings, populated from environment variables.
// It is not modified after Load returns.
type Config struct {
	// Run mode.
	Downscale  bool
	AddNoise   bool
	WriteFiles bool

	EnsembleSize   int
	NoiseSeed      uint64
	DOYBinWidth    int
	MinBinDays     int
	OffsetPolicy   domain.OffsetPolicy
	Site           domain.Site
	Members        int
	SubdailyPerDay int
	ObsPerDay      int

	// Files.
	InputDir         string
	OutputDir        string
	CoefficientsPath string
	ObservationsPath string

	Workers        int
	SolarCacheSize int

	// Optional outer surfaces; empty disables them.
	HTTPAddr     string
	KafkaBrokers []string
	KafkaTopic   string

	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Mode is the processing path selected by the run switches.
func (c *Config) Mode() domain.Mode {
	return domain.SelectMode(c.Downscale, c.AddNoise)
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	p := &parser{}
	cfg := &Config{
		Downscale:  p.bool("DOWNSCALE", true),
		AddNoise:   p.bool("ADD_NOISE", false),
		WriteFiles: p.bool("WRITE_FILES", true),

		EnsembleSize:   p.positiveInt("ENSEMBLE_SIZE", 10),
		NoiseSeed:      p.uint64("NOISE_SEED", 1),
		DOYBinWidth:    p.positiveInt("DOY_BIN_WIDTH", 365),
		MinBinDays:     p.positiveInt("MIN_BIN_DAYS", 10),
		Members:        p.positiveInt("FORECAST_MEMBERS", 21),
		SubdailyPerDay: p.positiveInt("SUBDAILY_PER_DAY", 4),
		ObsPerDay:      p.positiveInt("OBS_PER_DAY", 24),
		Site: domain.Site{
			Latitude:  p.float("SITE_LATITUDE", 37.307),
			Longitude: p.float("SITE_LONGITUDE", -79.837),
		},

		InputDir:         sharedcfg.EnvOrDefault("INPUT_DIR", "./data/forecasts"),
		OutputDir:        sharedcfg.EnvOrDefault("OUTPUT_DIR", "./data/out"),
		CoefficientsPath: sharedcfg.EnvOrDefault("COEFFICIENTS_PATH", "./data/coefficients.json"),
		ObservationsPath: os.Getenv("OBSERVATIONS_PATH"),

		Workers:        p.positiveInt("WORKERS", 4),
		SolarCacheSize: p.positiveInt("SOLAR_CACHE_SIZE", 64),

		HTTPAddr:   os.Getenv("HTTP_ADDR"),
		KafkaTopic: sharedcfg.EnvOrDefault("KAFKA_TOPIC", "met-series-emitted"),

		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}
	if p.err != nil {
		return nil, p.err
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	cfg.OffsetPolicy, err = domain.ParseOffsetPolicy(sharedcfg.EnvOrDefault("OFFSET_POLICY", domain.OffsetMaxOfGroup.String()))
	if err != nil {
		return nil, fmt.Errorf("invalid OFFSET_POLICY: %w", err)
	}

	if cfg.DOYBinWidth > 365 {
		return nil, fmt.Errorf("invalid DOY_BIN_WIDTH: %d exceeds 365", cfg.DOYBinWidth)
	}
	if cfg.Site.Latitude < -90 || cfg.Site.Latitude > 90 {
		return nil, fmt.Errorf("invalid SITE_LATITUDE: %g", cfg.Site.Latitude)
	}
	if cfg.Site.Longitude < -180 || cfg.Site.Longitude > 180 {
		return nil, fmt.Errorf("invalid SITE_LONGITUDE: %g", cfg.Site.Longitude)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaTopic == "" {
		return nil, fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	switch cfg.LogFormat {
	case "json", "text":
	default:
		return nil, fmt.Errorf("invalid LOG_FORMAT: %q", cfg.LogFormat)
	}

	return cfg, nil
}

// parser keeps the first invalid variable so Load can report it by name.
type parser struct {
	err error
}

func (p *parser) fail(key, value string) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s: %q", key, value)
	}
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return v
}

func (p *parser) positiveInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		p.fail(key, s)
		return def
	}
	return n
}

func (p *parser) uint64(key string, def uint64) uint64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s)
		return def
	}
	return f
}
