package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"legend-tracker/internal/constants"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const EnvPrefix = "LEGEND_"

type Config struct {
	CocAPIToken   string `koanf:"coc_api_token"`
	CocAPIBaseURL string `koanf:"coc_api_base_url"`

	StoreDriver string `koanf:"store_driver"`
	DataDir     string `koanf:"data_dir"`
	DBPath      string `koanf:"db_path"`

	ServerPort string `koanf:"server_port"`
	LogLevel   string `koanf:"log_level"`

	TimeZone    string `koanf:"time_zone"`
	ResetHour   int    `koanf:"reset_hour"`
	ResetMinute int    `koanf:"reset_minute"`

	PollInterval     time.Duration `koanf:"poll_interval"`
	RolloverInterval time.Duration `koanf:"rollover_interval"`
	SeasonInterval   time.Duration `koanf:"season_interval"`
	PollConcurrency  int           `koanf:"poll_concurrency"`

	FetchAttempts    int           `koanf:"fetch_attempts"`
	FetchBackoffBase time.Duration `koanf:"fetch_backoff_base"`
	RequestTimeout   time.Duration `koanf:"request_timeout"`

	// Comma separated list of log, nats, kafka.
	NotifySinks  string `koanf:"notify_sinks"`
	NATSURL      string `koanf:"nats_url"`
	KafkaBrokers string `koanf:"kafka_brokers"`
}

// Options are the command line inputs that steer loading.
type Options struct {
	EnvFile    string
	ConfigFile string
}

func Defaults() Config {
	return Config{
		CocAPIBaseURL:    "https://api.clashofclans.com/v1",
		StoreDriver:      "file",
		DataDir:          "data",
		DBPath:           "legend.db",
		ServerPort:       "8080",
		LogLevel:         "info",
		TimeZone:         constants.DefaultTimeZone,
		ResetHour:        constants.DefaultResetHour,
		ResetMinute:      constants.DefaultResetMinute,
		PollInterval:     constants.PollInterval,
		RolloverInterval: constants.RolloverInterval,
		SeasonInterval:   constants.SeasonInterval,
		PollConcurrency:  1,
		FetchAttempts:    constants.FetchAttempts,
		FetchBackoffBase: constants.FetchBackoffBase,
		RequestTimeout:   constants.ExternalAPITimeout,
		NotifySinks:      "log",
		NATSURL:          "nats://127.0.0.1:4222",
	}
}

// Load layers defaults, an optional YAML file and LEGEND_* environment variables, in
// that order of precedence. A .env file, if present, is loaded into the environment first.
func Load(opts Options, logger zerolog.Logger) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		logger.Debug().Str("env_file", envFile).Msg(".env file not found, using environment variables or defaults")
	}

	k := koanf.New(".")

	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("store_driver", cfg.StoreDriver).
		Str("data_dir", cfg.DataDir).
		Str("server_port", cfg.ServerPort).
		Str("log_level", cfg.LogLevel).
		Str("time_zone", cfg.TimeZone).
		Int("reset_hour", cfg.ResetHour).
		Int("reset_minute", cfg.ResetMinute).
		Dur("poll_interval", cfg.PollInterval).
		Strs("notify_sinks", cfg.Sinks()).
		Msg("configuration loaded")

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.CocAPIToken == "" {
		errs = append(errs, fmt.Errorf("%sCOC_API_TOKEN is required", EnvPrefix))
	}
	if c.StoreDriver != "file" && c.StoreDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("store_driver must be file or sqlite, got %q", c.StoreDriver))
	}
	if c.PollInterval <= 0 || c.RolloverInterval <= 0 || c.SeasonInterval <= 0 {
		errs = append(errs, errors.New("job intervals must be positive"))
	}
	if c.PollConcurrency < 1 {
		errs = append(errs, errors.New("poll_concurrency must be at least 1"))
	}
	if c.FetchAttempts < 1 {
		errs = append(errs, errors.New("fetch_attempts must be at least 1"))
	}
	for _, sink := range c.Sinks() {
		switch sink {
		case "log", "nats", "kafka":
		default:
			errs = append(errs, fmt.Errorf("unknown notify sink %q", sink))
		}
	}
	if c.hasSink("kafka") && len(c.Brokers()) == 0 {
		errs = append(errs, errors.New("kafka sink needs kafka_brokers"))
	}
	return errors.Join(errs...)
}

func (c *Config) Sinks() []string {
	return splitList(c.NotifySinks)
}

func (c *Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

func (c *Config) hasSink(name string) bool {
	for _, s := range c.Sinks() {
		if s == name {
			return true
		}
	}
	return false
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(strings.ToLower(part)); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var Module = fx.Provide(Load)
