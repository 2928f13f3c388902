package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/evdnx/gobacktest/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadBacktestConfig(t *testing.T) {
	path := writeConfig(t, `
logLevel: debug
source:
  baseURL: http://localhost:9200
  indexPrefix: btcusd.bitmex
  pageSize: 5000
  retry:
    maxAttempts: 5
    delay: 30s
cache:
  dir: /tmp/partitions
  cleanOnStart: false
backtest:
  enabled: true
  initialTime: "2020-03-01T08:00:00Z"
  timestep: 5s
  initialBalance: 100000
`)

	cm, err := config.NewConfigManager(path, false)
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://localhost:9200", cfg.Source.BaseURL)
	assert.Equal(t, "btcusd.bitmex", cfg.Source.IndexPrefix)
	assert.Equal(t, 5000, cfg.Source.PageSize)
	assert.Equal(t, 5, cfg.Source.Retry.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Source.Retry.Delay)
	assert.Equal(t, "/tmp/partitions", cfg.Cache.Dir)
	assert.False(t, cfg.Cache.CleanOnStart)
	assert.True(t, cfg.Backtest.Enabled)
	assert.True(t, cfg.Backtest.InitialTime.Equal(time.Date(2020, 3, 1, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, 5*time.Second, cfg.Backtest.Timestep)
	assert.Equal(t, 100000.0, cfg.Backtest.InitialBalance)
}

func TestConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  baseURL: http://localhost:9200
  indexPrefix: btcusd.bitmex
backtest:
  initialTime: "2020-03-01T08:00:00Z"
`)

	cm, err := config.NewConfigManager(path, false)
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10000, cfg.Source.PageSize)
	assert.Equal(t, 3, cfg.Source.Retry.MaxAttempts)
	assert.Equal(t, time.Minute, cfg.Source.Retry.Delay)
	assert.Equal(t, "cached_data", cfg.Cache.Dir)
	assert.True(t, cfg.Cache.CleanOnStart)
	assert.True(t, cfg.Backtest.Enabled)
	assert.Equal(t, time.Second, cfg.Backtest.Timestep)
}

func TestConfigRejectsMissingSource(t *testing.T) {
	path := writeConfig(t, `
backtest:
  initialTime: "2020-03-01T08:00:00Z"
`)

	_, err := config.NewConfigManager(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestConfigRequiresInitialTimeForBacktest(t *testing.T) {
	path := writeConfig(t, `
source:
  baseURL: http://localhost:9200
  indexPrefix: btcusd.bitmex
backtest:
  enabled: true
`)

	_, err := config.NewConfigManager(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialTime")
}

func TestConfigRequiresLiveEndpointWhenBacktestDisabled(t *testing.T) {
	path := writeConfig(t, `
source:
  baseURL: http://localhost:9200
  indexPrefix: btcusd.bitmex
backtest:
  enabled: false
`)

	_, err := config.NewConfigManager(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live.baseURL")
}

func TestConfigLiveMode(t *testing.T) {
	path := writeConfig(t, `
source:
  baseURL: http://localhost:9200
  indexPrefix: btcusd.bitmex
backtest:
  enabled: false
live:
  baseURL: https://www.bitmex.com
  apiKey: key
  apiSecret: secret
`)

	cm, err := config.NewConfigManager(path, false)
	require.NoError(t, err)

	cfg := cm.GetConfig()
	assert.False(t, cfg.Backtest.Enabled)
	assert.Equal(t, "https://www.bitmex.com", cfg.Live.BaseURL)
	assert.Equal(t, "key", cfg.Live.APIKey)
}
