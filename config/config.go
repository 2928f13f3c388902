// Package config handles configuration loading, validation, and hot reloading
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// ConfigManager handles configuration loading, validation, and hot reloading
type ConfigManager struct {
	viper       *viper.Viper
	config      *Config
	configLock  sync.RWMutex
	validate    *validator.Validate
	watchConfig bool
	onChange    []func(config *Config)
}

// Config represents the engine configuration with validation
type Config struct {
	LogLevel string         `mapstructure:"logLevel" validate:"required,oneof=debug info warning error fatal"`
	Source   SourceConfig   `mapstructure:"source" validate:"required"`
	Cache    CacheConfig    `mapstructure:"cache" validate:"required"`
	Backtest BacktestConfig `mapstructure:"backtest"`
	Live     LiveConfig     `mapstructure:"live"`
	Metrics  struct {
		Namespace string `mapstructure:"namespace"`
	} `mapstructure:"metrics"`
}

// SourceConfig configures the remote range source
type SourceConfig struct {
	BaseURL      string      `mapstructure:"baseURL" validate:"required,url"`
	IndexPrefix  string      `mapstructure:"indexPrefix" validate:"required"`
	ScrollWindow string      `mapstructure:"scrollWindow"`
	PageSize     int         `mapstructure:"pageSize" validate:"gte=0"`
	Retry        RetryConfig `mapstructure:"retry"`
}

// RetryConfig configures per-request retry behaviour against the range source
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"maxAttempts" validate:"gte=0"`
	Delay       time.Duration `mapstructure:"delay"`
}

// CacheConfig configures the local partition store
type CacheConfig struct {
	Dir          string `mapstructure:"dir" validate:"required"`
	Prefix       string `mapstructure:"prefix"`
	CleanOnStart bool   `mapstructure:"cleanOnStart"`
	InMemory     bool   `mapstructure:"inMemory"`
}

// BacktestConfig configures the simulated run. When Enabled is false the
// engine uses the wall clock and the live trading client.
type BacktestConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	InitialTime    time.Time     `mapstructure:"initialTime"`
	Timestep       time.Duration `mapstructure:"timestep"`
	InitialBalance float64       `mapstructure:"initialBalance" validate:"gte=0"`
}

// LiveConfig configures the live trading client
type LiveConfig struct {
	BaseURL   string `mapstructure:"baseURL" validate:"omitempty,url"`
	APIKey    string `mapstructure:"apiKey"`
	APISecret string `mapstructure:"apiSecret"`
}

// NewConfigManager creates a new configuration manager
func NewConfigManager(configPath string, watchConfig bool) (*ConfigManager, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("GOBACKTEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	loadDefaultConfig(v)

	if configPath != "" {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}

		v.SetConfigFile(absPath)
		if err := v.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load configuration file: %w", err)
		}
	}

	cm := &ConfigManager{
		viper:       v,
		validate:    validator.New(),
		watchConfig: watchConfig,
		onChange:    make([]func(config *Config), 0),
	}

	if err := cm.loadConfig(); err != nil {
		return nil, err
	}

	if watchConfig {
		v.WatchConfig()
		v.OnConfigChange(func(e fsnotify.Event) {
			if err := cm.loadConfig(); err != nil {
				fmt.Printf("Error reloading configuration: %v\n", err)
				return
			}

			cm.configLock.RLock()
			defer cm.configLock.RUnlock()
			for _, callback := range cm.onChange {
				callback(cm.config)
			}
		})
	}

	return cm, nil
}

// loadDefaultConfig loads default configuration values
func loadDefaultConfig(v *viper.Viper) {
	v.SetDefault("logLevel", "info")
	v.SetDefault("source.scrollWindow", "30m")
	v.SetDefault("source.pageSize", 10000)
	v.SetDefault("source.retry.maxAttempts", 3)
	v.SetDefault("source.retry.delay", "1m")
	v.SetDefault("cache.dir", "cached_data")
	v.SetDefault("cache.cleanOnStart", true)
	v.SetDefault("backtest.enabled", true)
	v.SetDefault("backtest.timestep", "1s")
	v.SetDefault("backtest.initialBalance", 0)
}

// loadConfig loads the configuration from Viper into the config struct
func (cm *ConfigManager) loadConfig() error {
	var rawConfig Config

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		Result:      &rawConfig,
		ErrorUnused: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(cm.viper.AllSettings()); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}

	if err := cm.validate.Struct(rawConfig); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	if rawConfig.Backtest.Enabled && rawConfig.Backtest.InitialTime.IsZero() {
		return fmt.Errorf("backtest.initialTime is required when backtest is enabled")
	}
	if !rawConfig.Backtest.Enabled && rawConfig.Live.BaseURL == "" {
		return fmt.Errorf("live.baseURL is required when backtest is disabled")
	}

	cm.configLock.Lock()
	cm.config = &rawConfig
	cm.configLock.Unlock()

	return nil
}

// GetConfig returns the current configuration
func (cm *ConfigManager) GetConfig() *Config {
	cm.configLock.RLock()
	defer cm.configLock.RUnlock()
	return cm.config
}

// GetViper returns the Viper instance
func (cm *ConfigManager) GetViper() *viper.Viper {
	return cm.viper
}

// RegisterOnChangeCallback registers a callback function to be called when the configuration changes
func (cm *ConfigManager) RegisterOnChangeCallback(callback func(config *Config)) {
	cm.configLock.Lock()
	defer cm.configLock.Unlock()
	cm.onChange = append(cm.onChange, callback)
}
