/*
Package config loads the settings of the fd1094 tool from an optional YAML
file and the environment.
*/
package config

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	envVarPrefix = "FD1094"

	// DefaultPageWords is the default number of words in a decoded page
	DefaultPageWords = 0x1000
)

// Config contains all of the configuration options
type Config struct {
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`
	// SQLite database of known keys and search results, blank disables it
	Database string `mapstructure:"database"`

	Search struct {
		// Number of goroutines used by the global key search, 0 uses every CPU
		Workers int `mapstructure:"workers"`
	} `mapstructure:"search"`

	Cache struct {
		// Number of words decoded and cached at a time
		PageWords int `mapstructure:"page_words"`
	} `mapstructure:"cache"`
}

// Load reads the config file if given, otherwise fd1094.yaml from the
// current directory if it exists. Nested options can be set through the
// environment, for example search.workers with FD1094_SEARCH_WORKERS
func Load(file string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("database", "")
	v.SetDefault("search.workers", 0)
	v.SetDefault("cache.page_words", DefaultPageWords)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("fd1094")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(envVarPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if c.Cache.PageWords <= 0 {
		c.Cache.PageWords = DefaultPageWords
	}

	return c, nil
}

// NewLogger returns a logger writing to w at the configured level
func (c *Config) NewLogger(w io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("parsing log level: %w", err)
	}

	logger := logrus.New()
	logger.Out = w
	logger.Level = level
	logger.Formatter = &logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	}

	return logger, nil
}
