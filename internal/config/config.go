package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Targets        []string       `mapstructure:"targets"`
	Timeout        time.Duration  `mapstructure:"timeout"`
	IgnoreList     []string       `mapstructure:"ignore_list"`
	DaemonPort     int            `mapstructure:"daemon_port"`
	DBPath         string         `mapstructure:"db_path"`
	MirrorDst      string         `mapstructure:"mirror_dst"`
	Checksum       bool           `mapstructure:"checksum"`
	RedisAddr      string         `mapstructure:"redis_addr"`
	RedisChannel   string         `mapstructure:"redis_channel"`
	ErrorPolicy    string         `mapstructure:"error_policy"`
	Delivery       string         `mapstructure:"delivery"`
	// CallbackParams and Source keys are lowercased by viper when read from a
	// file, so subscribers and the watch source must use lowercase keys.
	CallbackParams map[string]any `mapstructure:"callback_params"`
	// Source is handed to the watch source as-is.
	Source map[string]any `mapstructure:"source"`
}

var Default = Config{
	Timeout:      100 * time.Millisecond,
	IgnoreList:   []string{".git", ".DS_Store", "*.tmp", "*.swp"},
	DaemonPort:   9101,
	DBPath:       "batchwatch.db",
	RedisChannel: "batchwatch:batches",
	ErrorPolicy:  "fail-fast",
	Delivery:     "sequential",
}

// Dir returns ~/.batchwatch, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".batchwatch")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return configDir, nil
}

// Load reads the config file at path, or config.yaml in Dir when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		configDir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(configDir)
	}

	v.SetDefault("timeout", Default.Timeout)
	v.SetDefault("ignore_list", Default.IgnoreList)
	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("db_path", Default.DBPath)
	v.SetDefault("redis_channel", Default.RedisChannel)
	v.SetDefault("error_policy", Default.ErrorPolicy)
	v.SetDefault("delivery", Default.Delivery)

	v.SetEnvPrefix("BATCHWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if ok := errors.As(err, &notFound); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// SourceOptions merges the top-level ignore list into the pass-through
// watch source options.
func (c *Config) SourceOptions() map[string]any {
	opts := make(map[string]any, len(c.Source)+1)
	for k, v := range c.Source {
		opts[k] = v
	}
	if _, ok := opts["ignored"]; !ok && len(c.IgnoreList) > 0 {
		opts["ignored"] = c.IgnoreList
	}
	return opts
}
