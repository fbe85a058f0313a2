package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-version"
	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// AppFs is the filesystem config files are read from.
var AppFs = afero.NewOsFs()

const (
	// ConfigName is the config file base name searched for.
	ConfigName = "restomatic"
	// EnvPrefix prefixes environment overrides, e.g. RESTOMATIC_DSN.
	EnvPrefix = "RESTOMATIC"
)

// SupportedVersions is the config_version range this build understands.
const SupportedVersions = ">= 1.0, < 2.0"

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config holds the application configuration
type Config struct {
	Provider      string              `mapstructure:"provider"`
	DSN           string              `mapstructure:"dsn"`
	ForeignKeys   *bool               `mapstructure:"foreign_keys"`
	IDColumn      string              `mapstructure:"id_column"`
	Debug         bool                `mapstructure:"debug"`
	Log           LogConfig           `mapstructure:"log"`
	Listen        string              `mapstructure:"listen"`
	Tables        map[string][]string `mapstructure:"tables"`
	Endpoints     map[string][]string `mapstructure:"endpoints"`
	ConfigVersion string              `mapstructure:"config_version"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// Options controls where Load looks.
type Options struct {
	// File is an explicit config file; when empty the search path is used.
	File string
	// Flags are bound over file and environment values when set.
	Flags *pflag.FlagSet
}

var flagKeys = map[string]string{
	"provider":  "provider",
	"dsn":       "dsn",
	"debug":     "debug",
	"listen":    "listen",
	"log-level": "log.level",
	"id-column": "id_column",
}

// Load loads configuration from the config file, .env files, the
// environment and flags, in increasing order of priority.
func Load(opts Options) (*Config, error) {
	loadDotEnv()

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")
	if opts.File != "" {
		v.SetConfigFile(opts.File)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", ConfigName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("provider", "sqlite")
	v.SetDefault("id_column", "id")
	v.SetDefault("listen", ":8080")
	v.SetDefault("log.level", "INFO")
	v.SetDefault("log.format", "text")
	v.SetDefault("dsn", "")
	v.SetDefault("debug", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.File != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}

	if err := CheckVersion(cfg.ConfigVersion); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads .env and then .env.local, which wins.
func loadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load()
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// CheckVersion reports whether a config_version value is supported.
// An empty version is accepted.
func CheckVersion(raw string) error {
	if raw == "" {
		return nil
	}
	v, err := version.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("invalid config_version %q: %w", raw, err)
	}
	constraints, err := version.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !constraints.Check(v) {
		return fmt.Errorf("config_version %s is not supported (want %s)", raw, SupportedVersions)
	}
	return nil
}

// Validate checks that the config can open a database.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.New("no dsn configured: set dsn in restomatic.yaml, RESTOMATIC_DSN or DATABASE_URL")
	}
	if len(c.Tables) == 0 {
		return errors.New("no tables configured")
	}
	for table := range c.Endpoints {
		if _, ok := c.Tables[table]; !ok {
			return fmt.Errorf("endpoint configured for unknown table %q", table)
		}
	}
	return nil
}

// EndpointTables returns the endpoints to serve: the configured ones, or
// every table with all methods when none are configured.
func (c *Config) EndpointTables() map[string][]string {
	if len(c.Endpoints) > 0 {
		return c.Endpoints
	}
	out := make(map[string][]string, len(c.Tables))
	for table := range c.Tables {
		out[table] = nil
	}
	return out
}

// Save writes the configuration to path.
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.SetFs(AppFs)
	v.Set("provider", cfg.Provider)
	v.Set("dsn", cfg.DSN)
	if cfg.ForeignKeys != nil {
		v.Set("foreign_keys", *cfg.ForeignKeys)
	}
	v.Set("id_column", cfg.IDColumn)
	v.Set("listen", cfg.Listen)
	v.Set("log.level", cfg.Log.Level)
	v.Set("log.format", cfg.Log.Format)
	v.Set("tables", cfg.Tables)
	if len(cfg.Endpoints) > 0 {
		v.Set("endpoints", cfg.Endpoints)
	}
	if cfg.ConfigVersion != "" {
		v.Set("config_version", cfg.ConfigVersion)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := AppFs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return v.WriteConfigAs(path)
}
