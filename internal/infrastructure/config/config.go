package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"

	"github.com/GriffinCanCode/AgentOS/pkgmgr/internal/shared/paths"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Paths     PathConfig
	Behavior  BehaviorConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host           string        `envconfig:"PM_HOST" default:"127.0.0.1"`
	Port           string        `envconfig:"PM_PORT" default:"8420"`
	RequestTimeout time.Duration `envconfig:"PM_REQUEST_TIMEOUT" default:"2m"`
}

// PathConfig holds the directory layout. The directory fields carry no
// default tag so an unset variable falls through to the config file.
type PathConfig struct {
	ConfigFile   string `envconfig:"PM_CONFIG_FILE" default:"/etc/package.cfg"`
	PresetDir    string `envconfig:"PM_PRESET_PATH"`
	InstalledDir string `envconfig:"PM_INSTALLED_PATH"`
	DataDir      string `envconfig:"PM_DATA_PATH"`
	PackageList  string `envconfig:"PM_PACKAGE_LIST"`
}

// BehaviorConfig holds startup and allocation policy.
type BehaviorConfig struct {
	ScanInstalledOnBoot bool  `envconfig:"PM_SCAN_INSTALLED_ON_BOOT" default:"false"`
	Reconcile           bool  `envconfig:"PM_RECONCILE" default:"true"`
	OwnerIDBase         int32 `envconfig:"PM_OWNER_ID_BASE" default:"10000"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
	File        string `envconfig:"LOG_FILE"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// deviceFile mirrors the keys of /etc/package.cfg
type deviceFile struct {
	PresetPath    string `yaml:"appPresetPath"`
	InstalledPath string `yaml:"appInstalledPath"`
	DataPath      string `yaml:"appDataPath"`
}

// Load loads configuration from the environment and the device config file.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	file, err := readDeviceFile(cfg.Paths.ConfigFile)
	if err != nil {
		return nil, err
	}

	stock := paths.Default()
	cfg.Paths.PresetDir = firstNonEmpty(cfg.Paths.PresetDir, file.PresetPath, stock.PresetDir)
	cfg.Paths.InstalledDir = firstNonEmpty(cfg.Paths.InstalledDir, file.InstalledPath, stock.InstalledDir)
	cfg.Paths.DataDir = firstNonEmpty(cfg.Paths.DataDir, file.DataPath, stock.DataDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns default configuration.
func Default() *Config {
	layout := paths.Default()
	return &Config{
		Server: ServerConfig{
			Host:           "127.0.0.1",
			Port:           "8420",
			RequestTimeout: 2 * time.Minute,
		},
		Paths: PathConfig{
			ConfigFile:   paths.DefaultConfigFile,
			PresetDir:    layout.PresetDir,
			InstalledDir: layout.InstalledDir,
			DataDir:      layout.DataDir,
		},
		Behavior: BehaviorConfig{
			ScanInstalledOnBoot: false,
			Reconcile:           true,
			OwnerIDBase:         10000,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Behavior.OwnerIDBase <= 0 {
		return fmt.Errorf("owner id base must be positive, got %d", c.Behavior.OwnerIDBase)
	}
	if c.Paths.InstalledDir == "" || c.Paths.DataDir == "" {
		return fmt.Errorf("installed and data paths are required")
	}
	return nil
}

// Layout converts the path section into a directory layout.
func (c *Config) Layout() paths.Layout {
	return paths.New(c.Paths.PresetDir, c.Paths.InstalledDir, c.Paths.DataDir, c.Paths.PackageList)
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func readDeviceFile(path string) (deviceFile, error) {
	var file deviceFile
	if path == "" {
		return file, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return file, nil
		}
		return file, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return file, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
