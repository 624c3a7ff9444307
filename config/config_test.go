package config

import (
	"bytes"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "", c.Database)
	assert.Equal(t, 0, c.Search.Workers)
	assert.Equal(t, DefaultPageWords, c.Cache.PageWords)
}

func TestLoadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "fd1094.yaml")
	require.NoError(t, ioutil.WriteFile(file, []byte(`log_level: debug
database: /tmp/fd1094.db
search:
  workers: 4
cache:
  page_words: 256
`), 0644))

	c, err := Load(file)
	require.NoError(t, err)

	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, "/tmp/fd1094.db", c.Database)
	assert.Equal(t, 4, c.Search.Workers)
	assert.Equal(t, 256, c.Cache.PageWords)
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("FD1094_SEARCH_WORKERS", "3")
	t.Setenv("FD1094_LOG_LEVEL", "warn")

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, c.Search.Workers)
	assert.Equal(t, "warn", c.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	c := &Config{LogLevel: "debug"}

	b := new(bytes.Buffer)
	logger, err := c.NewLogger(b)
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, logger.Level)

	logger.WithField("state", 0x12).Debug("State change")
	assert.Contains(t, b.String(), "msg=\"State change\"")
	assert.Contains(t, b.String(), "state=18")

	c.LogLevel = "loud"
	_, err = c.NewLogger(b)
	assert.Error(t, err)
}
