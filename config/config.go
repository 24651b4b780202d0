// Package config loads the runtime configuration of the downloader from
// defaults, an optional YAML file, a .env file, HUABAN_* environment
// variables and command line flags bound by the caller.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	bd "github.com/isseis/go-huaban-board-downloader/board_downloader"
	hb "github.com/isseis/go-huaban-board-downloader/huaban_api"
	"github.com/isseis/go-huaban-board-downloader/logger"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "HUABAN"

// defaultConfigName is looked up in the working directory when no file is given.
const defaultConfigName = "huaban"

type Config struct {
	BaseURL      string        `mapstructure:"base_url" yaml:"base_url"`
	ImageBaseURL string        `mapstructure:"image_base_url" yaml:"image_base_url"`
	Cookie       string        `mapstructure:"cookie" yaml:"cookie"`
	BaseDir      string        `mapstructure:"base_dir" yaml:"base_dir"`
	Output       string        `mapstructure:"output" yaml:"output"`
	Workers      int           `mapstructure:"workers" yaml:"workers"`
	RateLimit    float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	PageDelayMin time.Duration `mapstructure:"page_delay_min" yaml:"page_delay_min"`
	PageDelayMax time.Duration `mapstructure:"page_delay_max" yaml:"page_delay_max"`
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"`
	UserAgents   []string      `mapstructure:"user_agents" yaml:"user_agents"`
	DryRun       bool          `mapstructure:"dry_run" yaml:"dry_run"`
	Force        bool          `mapstructure:"force" yaml:"force"`
	MetricsFile  string        `mapstructure:"metrics_file" yaml:"metrics_file"`

	Log LogConfig `mapstructure:"log" yaml:"log"`
}

type LogConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	WebhookURL  string `mapstructure:"webhook_url" yaml:"webhook_url"`
	AppName     string `mapstructure:"app_name" yaml:"app_name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// SetDefaults registers a default for every key so that environment
// variables are picked up by Unmarshal even when no file mentions them.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("base_url", hb.DefaultBaseURL)
	v.SetDefault("image_base_url", hb.DefaultImageBaseURL)
	v.SetDefault("cookie", "")
	v.SetDefault("base_dir", bd.DefaultBaseDir)
	v.SetDefault("output", "")
	v.SetDefault("workers", bd.DefaultWorkers)
	v.SetDefault("rate_limit", bd.DefaultRateLimit)
	v.SetDefault("page_delay_min", hb.DefaultPageDelayMin)
	v.SetDefault("page_delay_max", hb.DefaultPageDelayMax)
	v.SetDefault("timeout", hb.DefaultTimeout)
	v.SetDefault("user_agents", []string{})
	v.SetDefault("dry_run", false)
	v.SetDefault("force", false)
	v.SetDefault("metrics_file", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.webhook_url", "")
	v.SetDefault("log.app_name", logger.DefaultAppName)
	v.SetDefault("log.environment", logger.DefaultEnvironment)
}

// LoadDotEnv loads variables from the given .env files (".env" when none is
// given) into the process environment. Missing files are ignored; variables
// already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("error loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration into a Config.
// Parameters:
//   - v: Viper instance; flags bound to it beforehand take precedence over everything else
//   - configFile: Path of a YAML file. When empty, ./huaban.yaml is read if present
//
// Returns:
//   - *Config: The validated configuration
//   - error: If the file cannot be read or a value is out of range
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	for name, raw := range map[string]string{"base_url": c.BaseURL, "image_base_url": c.ImageBaseURL} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if c.Workers < 1 || c.Workers > bd.MaxWorkers {
		return fmt.Errorf("workers must be between 1 and %d, got %d", bd.MaxWorkers, c.Workers)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit)
	}
	if c.PageDelayMin < 0 || c.PageDelayMax < c.PageDelayMin {
		return fmt.Errorf("page delay range [%s, %s] is invalid", c.PageDelayMin, c.PageDelayMax)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.BaseDir == "" {
		c.BaseDir = bd.DefaultBaseDir
	}
	return nil
}

// LoggerConfig converts the log section for logger.NewHybridLogger.
func (c *Config) LoggerConfig() logger.Config {
	return *logger.NewConfig(c.Log.Level, c.Log.WebhookURL, c.Log.AppName, c.Log.Environment)
}

// Identity returns the User-Agent provider described by the configuration.
func (c *Config) Identity() hb.IdentityProvider {
	if len(c.UserAgents) > 0 {
		return hb.NewRotatingIdentity(c.UserAgents)
	}
	return hb.StaticIdentity(hb.DefaultUserAgent)
}
