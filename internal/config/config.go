// Package config loads sevensync's runtime configuration.
//
// Settings come from, in increasing precedence: built-in defaults, an
// optional YAML config file (~/.sevensync.yaml or --config), environment
// variables with the SEVENSYNC_ prefix, and command-line flags bound by the
// commands themselves. The API token may also arrive via the legacy
// ACCESS_TOKEN_7SHIFTS variable used by earlier tooling.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration for one invocation.
type Config struct {
	// APIToken authenticates against the 7shifts API.
	APIToken string

	// DBPath is the SQLite destination database.
	DBPath string

	// Timezone is an optional IANA zone name for window math. Empty means
	// the host's local zone.
	Timezone string

	// ChunkSize bounds receipt upsert batches.
	ChunkSize int

	// BaseURL overrides the API endpoint. Used for testing against mocks.
	BaseURL string

	// LogFile, when set, mirrors log output into a rotating file.
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

// legacyTokenEnv is the variable the original tooling read the token from.
const legacyTokenEnv = "ACCESS_TOKEN_7SHIFTS"

// Load reads configuration from defaults, the config file (explicit path or
// ~/.sevensync.yaml), and the environment.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("db_path", "sevensync.db")
	v.SetDefault("chunk_size", 1000)
	v.SetDefault("log_max_size_mb", 10)
	v.SetDefault("log_max_backups", 3)

	v.SetEnvPrefix("SEVENSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".sevensync")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		APIToken:      v.GetString("api_token"),
		DBPath:        v.GetString("db_path"),
		Timezone:      v.GetString("timezone"),
		ChunkSize:     v.GetInt("chunk_size"),
		BaseURL:       v.GetString("base_url"),
		LogFile:       v.GetString("log_file"),
		LogMaxSizeMB:  v.GetInt("log_max_size_mb"),
		LogMaxBackups: v.GetInt("log_max_backups"),
	}

	if cfg.APIToken == "" {
		cfg.APIToken = os.Getenv(legacyTokenEnv)
	}

	return cfg, nil
}

// RequireToken returns an error if no API token was configured.
func (c *Config) RequireToken() error {
	if c.APIToken == "" {
		return fmt.Errorf("no API token configured: set SEVENSYNC_API_TOKEN or %s", legacyTokenEnv)
	}
	return nil
}
