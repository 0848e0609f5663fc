package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/dewiweb/holophonix-animator-sub000/internal/observability"
)

// FileName is the config file looked up in the config directory.
const FileName = "animator.cfg.json"

// EnvPrefix prefixes environment overrides, e.g. ANIMATOR_TICK or
// ANIMATOR_METRICS_ADDR.
const EnvPrefix = "ANIMATOR"

// Export formats.
const (
	FormatCartesian = "cartesian"
	FormatSpherical = "spherical"
)

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// TracingConfig controls OpenTelemetry export.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" mapstructure:"enabled"`
	Exporter    string  `json:"exporter" mapstructure:"exporter"`
	ServiceName string  `json:"serviceName" mapstructure:"serviceName"`
	Endpoint    string  `json:"endpoint" mapstructure:"endpoint"`
	SampleRatio float64 `json:"sampleRatio" mapstructure:"sampleRatio"`
}

// ExportConfig controls how positions are printed.
type ExportConfig struct {
	Format string `json:"format" mapstructure:"format"`
	// Every prints one frame per Every ticks.
	Every int `json:"every" mapstructure:"every"`
}

// Config is the resolved animator configuration.
type Config struct {
	LogLevel    string        `json:"logLevel" mapstructure:"logLevel"`
	LogFormat   string        `json:"logFormat" mapstructure:"logFormat"`
	Tick        time.Duration `json:"tick" mapstructure:"tick"`
	Duration    time.Duration `json:"duration" mapstructure:"duration"`
	Accelerated bool          `json:"accelerated" mapstructure:"accelerated"`
	Scenario    string        `json:"scenario" mapstructure:"scenario"`
	Parallelism int           `json:"parallelism" mapstructure:"parallelism"`

	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
	Export  ExportConfig  `json:"export" mapstructure:"export"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "text")
	v.SetDefault("tick", "10ms")
	v.SetDefault("duration", "0s")
	v.SetDefault("accelerated", false)
	v.SetDefault("scenario", "")
	v.SetDefault("parallelism", 1)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.addr", ":9090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.serviceName", "animator")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sampleRatio", 1.0)

	v.SetDefault("export.format", FormatCartesian)
	v.SetDefault("export.every", 1)
}

// New returns a viper instance carrying defaults and environment bindings
// but no file. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads FileName from configDir into v and decodes the result. A
// missing file is not an error; defaults and environment still apply. An
// empty configDir skips the file lookup.
func Load(v *viper.Viper, configDir string) (Config, error) {
	if configDir != "" {
		v.SetConfigName(FileName)
		v.SetConfigType("json")
		v.AddConfigPath(configDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error
	if c.Tick <= 0 {
		errs = append(errs, fmt.Errorf("tick must be positive, got %s", c.Tick))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative, got %s", c.Duration))
	}
	if c.Parallelism < 1 {
		errs = append(errs, fmt.Errorf("parallelism must be at least 1, got %d", c.Parallelism))
	}
	switch c.Export.Format {
	case FormatCartesian, FormatSpherical:
	default:
		errs = append(errs, fmt.Errorf("export.format must be %q or %q, got %q", FormatCartesian, FormatSpherical, c.Export.Format))
	}
	if c.Export.Every < 1 {
		errs = append(errs, fmt.Errorf("export.every must be at least 1, got %d", c.Export.Every))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("tracing.sampleRatio must be within [0,1], got %v", c.Tracing.SampleRatio))
	}
	return errors.Join(errs...)
}

// TracingConfig converts the tracing section for observability.InitTracing,
// tagging spans with the run ID.
func (c Config) TracingConfig(runID string) observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:     c.Tracing.Enabled,
		ServiceName: c.Tracing.ServiceName,
		Exporter:    strings.ToLower(c.Tracing.Exporter),
		Endpoint:    c.Tracing.Endpoint,
		SampleRatio: c.Tracing.SampleRatio,
		RunID:       runID,
		Parallelism: c.Parallelism,
	}
}
