/*
Package config manages TOML config for campuscomplete services.
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/bastiangx/campuscomplete/internal/utils"
	"github.com/charmbracelet/log"
)

// Config holds the entire config structure
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Cache    CacheConfig    `toml:"cache"`
	Ranking  RankingConfig  `toml:"ranking"`
	Recovery RecoveryConfig `toml:"recovery"`
	Debounce DebounceConfig `toml:"debounce"`
	Data     DataConfig     `toml:"data"`
	CLI      CliConfig      `toml:"cli"`
}

// ServerConfig has IPC server options.
type ServerConfig struct {
	MaxLimit int `toml:"max_limit"`
	MinQuery int `toml:"min_query"`
	MaxQuery int `toml:"max_query"`
}

// CacheConfig bounds the result cache.
type CacheConfig struct {
	MaxSize         int `toml:"max_size"`
	TTLMs           int `toml:"ttl_ms"`
	SweepIntervalMs int `toml:"sweep_interval_ms"`
}

// RankingConfig holds result ordering options.
type RankingConfig struct {
	MaxResults    int  `toml:"max_results"`
	CaseSensitive bool `toml:"case_sensitive"`
}

// RecoveryConfig holds retry and fallback options.
type RecoveryConfig struct {
	TimeoutMs             int `toml:"timeout_ms"`
	MaxRetries            int `toml:"max_retries"`
	BaseDelayMs           int `toml:"base_delay_ms"`
	MaxDelayMs            int `toml:"max_delay_ms"`
	FallbackTTLMs         int `toml:"fallback_ttl_ms"`
	ErrorWindowMs         int `toml:"error_window_ms"`
	ErrorThreshold        int `toml:"error_threshold"`
	NetworkErrorThreshold int `toml:"network_error_threshold"`
}

// DebounceConfig holds per-device input delays.
type DebounceConfig struct {
	KeyboardMs int `toml:"keyboard_ms"`
	TouchMs    int `toml:"touch_ms"`
	BatchCapMs int `toml:"batch_cap_ms"`
}

// DataConfig locates institution tables and session state.
type DataConfig struct {
	Tables     string `toml:"tables"`
	SessionDir string `toml:"session_dir"`
	Watch      bool   `toml:"watch"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit int  `toml:"default_limit"`
	Touch        bool `toml:"touch"`
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// TTL returns the cache entry lifetime.
func (c CacheConfig) TTL() time.Duration { return ms(c.TTLMs) }

// SweepInterval returns the expired-entry sweep period.
func (c CacheConfig) SweepInterval() time.Duration { return ms(c.SweepIntervalMs) }

func (r RecoveryConfig) Timeout() time.Duration     { return ms(r.TimeoutMs) }
func (r RecoveryConfig) BaseDelay() time.Duration   { return ms(r.BaseDelayMs) }
func (r RecoveryConfig) MaxDelay() time.Duration    { return ms(r.MaxDelayMs) }
func (r RecoveryConfig) FallbackTTL() time.Duration { return ms(r.FallbackTTLMs) }
func (r RecoveryConfig) ErrorWindow() time.Duration { return ms(r.ErrorWindowMs) }

func (d DebounceConfig) Keyboard() time.Duration { return ms(d.KeyboardMs) }
func (d DebounceConfig) Touch() time.Duration    { return ms(d.TouchMs) }
func (d DebounceConfig) BatchCap() time.Duration { return ms(d.BatchCapMs) }

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/
// 2. ~/Library/Application Support/ (macOS)
// 3. Current executable dir
// 4. builtin defaults
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return executableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", "campuscomplete")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "campuscomplete")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	return executableDir()
}

func executableDir() (string, error) {
	execPath, err := os.Executable()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return filepath.Dir(execPath), nil
}

// GetDefaultConfigPath returns the default path for config.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from -config flag
// 2. Default path: [UserConfigDir]/campuscomplete/config.toml
// 3. Builtin defaults
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err != nil {
				log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
			} else {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			MaxLimit: 50,
			MinQuery: 1,
			MaxQuery: 80,
		},
		Cache: CacheConfig{
			MaxSize:         100,
			TTLMs:           5 * 60 * 1000,
			SweepIntervalMs: 60 * 1000,
		},
		Ranking: RankingConfig{
			MaxResults:    10,
			CaseSensitive: false,
		},
		Recovery: RecoveryConfig{
			TimeoutMs:             5000,
			MaxRetries:            2,
			BaseDelayMs:           1000,
			MaxDelayMs:            10000,
			FallbackTTLMs:         60 * 60 * 1000,
			ErrorWindowMs:         60 * 1000,
			ErrorThreshold:        3,
			NetworkErrorThreshold: 2,
		},
		Debounce: DebounceConfig{
			KeyboardMs: 300,
			TouchMs:    500,
			BatchCapMs: 100,
		},
		Data: DataConfig{
			Tables:     "data/",
			SessionDir: "",
			Watch:      true,
		},
		CLI: CliConfig{
			DefaultLimit: 10,
			Touch:        false,
		},
	}
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Warnf("Failed to load config from %s: %v. Using built-in defaults...", configPath, err)
		return DefaultConfig(), nil
	}
	return config, nil
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	return config, nil
}

// tryPartialParse keeps every section that still decodes and defaults the rest.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cache"); ok {
		extractCacheConfig(section, &config.Cache)
	}
	if section, ok := utils.ExtractSection(tempConfig, "ranking"); ok {
		extractRankingConfig(section, &config.Ranking)
	}
	if section, ok := utils.ExtractSection(tempConfig, "recovery"); ok {
		extractRecoveryConfig(section, &config.Recovery)
	}
	if section, ok := utils.ExtractSection(tempConfig, "debounce"); ok {
		extractDebounceConfig(section, &config.Debounce)
	}
	if section, ok := utils.ExtractSection(tempConfig, "data"); ok {
		extractDataConfig(section, &config.Data)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	return config, nil
}

// setInts copies every int64 key present in data onto its target.
func setInts(data map[string]any, targets map[string]*int) {
	for key, dst := range targets {
		if val, ok := utils.ExtractInt(data, key); ok {
			*dst = val
		}
	}
}

func extractServerConfig(data map[string]any, server *ServerConfig) {
	setInts(data, map[string]*int{
		"max_limit": &server.MaxLimit,
		"min_query": &server.MinQuery,
		"max_query": &server.MaxQuery,
	})
}

func extractCacheConfig(data map[string]any, cache *CacheConfig) {
	setInts(data, map[string]*int{
		"max_size":          &cache.MaxSize,
		"ttl_ms":            &cache.TTLMs,
		"sweep_interval_ms": &cache.SweepIntervalMs,
	})
}

func extractRankingConfig(data map[string]any, ranking *RankingConfig) {
	setInts(data, map[string]*int{"max_results": &ranking.MaxResults})
	if val, ok := utils.Extract[bool](data, "case_sensitive"); ok {
		ranking.CaseSensitive = val
	}
}

func extractRecoveryConfig(data map[string]any, rec *RecoveryConfig) {
	setInts(data, map[string]*int{
		"timeout_ms":              &rec.TimeoutMs,
		"max_retries":             &rec.MaxRetries,
		"base_delay_ms":           &rec.BaseDelayMs,
		"max_delay_ms":            &rec.MaxDelayMs,
		"fallback_ttl_ms":         &rec.FallbackTTLMs,
		"error_window_ms":         &rec.ErrorWindowMs,
		"error_threshold":         &rec.ErrorThreshold,
		"network_error_threshold": &rec.NetworkErrorThreshold,
	})
}

func extractDebounceConfig(data map[string]any, deb *DebounceConfig) {
	setInts(data, map[string]*int{
		"keyboard_ms":  &deb.KeyboardMs,
		"touch_ms":     &deb.TouchMs,
		"batch_cap_ms": &deb.BatchCapMs,
	})
}

func extractDataConfig(data map[string]any, dc *DataConfig) {
	if val, ok := utils.Extract[string](data, "tables"); ok {
		dc.Tables = val
	}
	if val, ok := utils.Extract[string](data, "session_dir"); ok {
		dc.SessionDir = val
	}
	if val, ok := utils.Extract[bool](data, "watch"); ok {
		dc.Watch = val
	}
}

func extractCliConfig(data map[string]any, cli *CliConfig) {
	setInts(data, map[string]*int{"default_limit": &cli.DefaultLimit})
	if val, ok := utils.Extract[bool](data, "touch"); ok {
		cli.Touch = val
	}
}

// RebuildConfigFile force creates a new config.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		if defaultPath, err := GetDefaultConfigPath(); err == nil {
			return defaultPath
		}
		return "unknown"
	}
	return utils.AbsPath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the server limits and saves to file
func (c *Config) Update(configPath string, maxLimit, minQuery, maxQuery *int) error {
	server := &c.Server
	if maxLimit != nil {
		server.MaxLimit = *maxLimit
	}
	if minQuery != nil {
		server.MinQuery = *minQuery
	}
	if maxQuery != nil {
		server.MaxQuery = *maxQuery
	}
	return SaveConfig(c, configPath)
}
