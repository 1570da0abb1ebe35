package config

import (
	"os"
	"strconv"

	"goposthoc/adapters/stats/adjust"
	"goposthoc/domain/posthoc"
	"goposthoc/internal/errors"
	"goposthoc/internal/logging"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	Posthoc   PosthocConfig
	Outliers  OutlierConfig
	Profiling ProfilingConfig
	Logging   LoggingConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	GinMode string
}

// PosthocConfig holds the defaults applied when a request leaves an option unset
type PosthocConfig struct {
	PAdjust     string
	Alpha       float64
	EqualVar    bool
	Sort        bool
	NemenyiDist string
	QuadeDist   string
}

// OutlierConfig holds outlier filter settings
type OutlierConfig struct {
	Simulations int
	Seed        int64
}

// LoggingConfig holds log verbosity
type LoggingConfig struct {
	Level string
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:    *loadServerConfig(),
		Posthoc:   *loadPosthocConfig(),
		Outliers:  *loadOutlierConfig(),
		Profiling: *loadProfilingConfig(),
		Logging:   LoggingConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
	}
}

func loadPosthocConfig() *PosthocConfig {
	return &PosthocConfig{
		PAdjust:     getEnvOrDefault("POSTHOC_P_ADJUST", string(posthoc.AdjustNone)),
		Alpha:       getEnvFloatOrDefault("POSTHOC_ALPHA", 0.05),
		EqualVar:    getEnvBoolOrDefault("POSTHOC_EQUAL_VAR", true),
		Sort:        getEnvBoolOrDefault("POSTHOC_SORT", false),
		NemenyiDist: getEnvOrDefault("POSTHOC_NEMENYI_DIST", posthoc.DistTukey),
		QuadeDist:   getEnvOrDefault("POSTHOC_QUADE_DIST", posthoc.DistT),
	}
}

func loadOutlierConfig() *OutlierConfig {
	return &OutlierConfig{
		Simulations: getEnvIntOrDefault("OUTLIERS_TIETJEN_SIMULATIONS", 10000),
		Seed:        int64(getEnvIntOrDefault("OUTLIERS_SEED", 42)),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("PORT must not be empty")
	}
	switch config.Server.GinMode {
	case "debug", "release", "test":
	default:
		return errors.ConfigInvalid("GIN_MODE must be debug, release or test")
	}
	if _, err := adjust.Parse(config.Posthoc.PAdjust); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if config.Posthoc.Alpha <= 0 || config.Posthoc.Alpha >= 1 {
		return errors.ConfigInvalid("POSTHOC_ALPHA must be in (0, 1)")
	}
	switch config.Posthoc.NemenyiDist {
	case posthoc.DistTukey, posthoc.DistChi:
	default:
		return errors.ConfigInvalid("POSTHOC_NEMENYI_DIST must be tukey or chi")
	}
	switch config.Posthoc.QuadeDist {
	case posthoc.DistT, posthoc.DistNormal:
	default:
		return errors.ConfigInvalid("POSTHOC_QUADE_DIST must be t or normal")
	}
	if _, err := logging.ParseLevel(config.Logging.Level); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, err)
	}
	if config.Outliers.Simulations <= 0 {
		return errors.ConfigInvalid("OUTLIERS_TIETJEN_SIMULATIONS must be positive")
	}
	return nil
}

// Logger builds a logger for component at the configured level
func (c LoggingConfig) Logger(component string) *logging.Logger {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.New(level, component)
}

// Options converts the configured defaults into procedure options
func (c PosthocConfig) Options() posthoc.Options {
	opts := posthoc.DefaultOptions()
	if m, err := adjust.Parse(c.PAdjust); err == nil {
		opts.PAdjust = m
	}
	opts.Alpha = c.Alpha
	opts.EqualVar = c.EqualVar
	opts.Sort = c.Sort
	return opts
}

// DistFor returns the configured default distribution for a procedure
func (c PosthocConfig) DistFor(proc posthoc.Procedure) string {
	switch proc {
	case posthoc.ProcNemenyi:
		return c.NemenyiDist
	case posthoc.ProcQuade:
		return c.QuadeDist
	}
	return ""
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
