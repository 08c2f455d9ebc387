// Package config loads chainfile settings from a YAML file, the
// environment and a .env file, in increasing order of precedence below
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/roach88/chainfile/internal/model"
)

const (
	envPrefix      = "CHAINFILE"
	configFileName = "config"
	configFileType = "yaml"
)

// Config keys.
const (
	KeyChain          = "chain"
	KeyNodeURL        = "node_url"
	KeyNodeRoot       = "node_root"
	KeyCertFile       = "cert_file"
	KeyKeyFile        = "key_file"
	KeyCAFile         = "ca_file"
	KeyStartID        = "start_id"
	KeyWorkDir        = "work_dir"
	KeyOutputDir      = "output_dir"
	KeyDatabase       = "database"
	KeyMetricsFile    = "metrics_file"
	KeyConcurrency    = "concurrency"
	KeyRequestTimeout = "request_timeout"
	KeyMaxRetries     = "max_retries"
	KeyBackoffMin     = "backoff_min"
	KeyBackoffMax     = "backoff_max"
	KeyRateLimit      = "rate_limit"
)

// Supported chains.
var Chains = []string{"chia", "aba"}

// Config is the full runtime configuration. It is passed explicitly to the
// components that need it; nothing reads it globally.
type Config struct {
	Chain    string `mapstructure:"chain"`
	NodeURL  string `mapstructure:"node_url"`
	NodeRoot string `mapstructure:"node_root"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	CAFile   string `mapstructure:"ca_file"`

	// StartID is the default root identifier for commands given none.
	StartID string `mapstructure:"start_id"`

	WorkDir     string `mapstructure:"work_dir"`
	OutputDir   string `mapstructure:"output_dir"`
	Database    string `mapstructure:"database"`
	MetricsFile string `mapstructure:"metrics_file"`

	Concurrency    int           `mapstructure:"concurrency"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffMin     time.Duration `mapstructure:"backoff_min"`
	BackoffMax     time.Duration `mapstructure:"backoff_max"`
	RateLimit      float64       `mapstructure:"rate_limit"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Chain:          "aba",
		WorkDir:        "temp",
		Concurrency:    4,
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
		BackoffMin:     500 * time.Millisecond,
		BackoffMax:     8 * time.Second,
		RateLimit:      10,
	}
}

// Load builds a Config from defaults, the config file at path (or
// config.yaml in the user config directory when path is empty), .env files
// and CHAINFILE_* environment variables. The legacy CHAIN and EVE_COIN_ID
// variables are honoured when their CHAINFILE_ forms are unset.
//
// envFiles defaults to ".env"; missing env files are not an error.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if dir, err := os.UserConfigDir(); err == nil {
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		v.AddConfigPath(filepath.Join(dir, "chainfile"))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Chain = strings.ToLower(strings.TrimSpace(cfg.Chain))
	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	d := Default()
	defaults := map[string]any{
		KeyChain:          d.Chain,
		KeyNodeURL:        "",
		KeyNodeRoot:       "",
		KeyCertFile:       "",
		KeyKeyFile:        "",
		KeyCAFile:         "",
		KeyStartID:        "",
		KeyWorkDir:        d.WorkDir,
		KeyOutputDir:      "",
		KeyDatabase:       "",
		KeyMetricsFile:    "",
		KeyConcurrency:    d.Concurrency,
		KeyRequestTimeout: d.RequestTimeout,
		KeyMaxRetries:     d.MaxRetries,
		KeyBackoffMin:     d.BackoffMin,
		KeyBackoffMax:     d.BackoffMax,
		KeyRateLimit:      d.RateLimit,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv(KeyChain, envPrefix+"_CHAIN", "CHAIN")
	_ = v.BindEnv(KeyStartID, envPrefix+"_START_ID", "EVE_COIN_ID")
	return v
}

// Validate checks the configuration for values no component can use.
func (c *Config) Validate() error {
	var errs []error
	if !isChain(c.Chain) {
		errs = append(errs, fmt.Errorf("chain %q: must be one of %s", c.Chain, strings.Join(Chains, ", ")))
	}
	if c.WorkDir == "" {
		errs = append(errs, errors.New("work_dir is required"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency %d: must be at least 1", c.Concurrency))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout %s: must be positive", c.RequestTimeout))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max_retries %d: must not be negative", c.MaxRetries))
	}
	if c.BackoffMin <= 0 || c.BackoffMax < c.BackoffMin {
		errs = append(errs, fmt.Errorf("backoff %s..%s: need 0 < min <= max", c.BackoffMin, c.BackoffMax))
	}
	if c.StartID != "" {
		if _, err := model.ParseIdentifier(c.StartID); err != nil {
			errs = append(errs, fmt.Errorf("start_id: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ResolvedNodeRoot returns NodeRoot, or ~/.<chain>/mainnet when unset.
func (c *Config) ResolvedNodeRoot() (string, error) {
	if c.NodeRoot != "" {
		return c.NodeRoot, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve node root: %w", err)
	}
	return filepath.Join(home, "."+c.Chain, "mainnet"), nil
}

// Output returns the directory reconstructed files are written to.
func (c *Config) Output() string {
	if c.OutputDir != "" {
		return c.OutputDir
	}
	return c.WorkDir
}

func isChain(s string) bool {
	for _, c := range Chains {
		if s == c {
			return true
		}
	}
	return false
}
