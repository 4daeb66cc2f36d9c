package config

import (
	"fmt"
	"sync"
)

var (
	// globalConfig holds the singleton configuration instance.
	globalConfig *Config

	// configPath is the file Initialize loaded, reused by Reload.
	configPath string

	// configMutex protects globalConfig, configPath and reloadHooks.
	configMutex sync.RWMutex

	// initOnce ensures configuration is initialized only once.
	initOnce sync.Once

	reloadHooks []func(old, new *Config)
)

// Initialize loads configuration from path with environment overrides and
// stores it as the global instance. Subsequent calls are ignored.
func Initialize(path string) error {
	var initErr error

	initOnce.Do(func() {
		cfg, err := LoadConfigWithEnvOverrides(path)
		if err != nil {
			initErr = err
			return
		}

		configMutex.Lock()
		globalConfig = cfg
		configPath = path
		configMutex.Unlock()
	})

	return initErr
}

// GetConfig returns the global configuration instance, or nil if Initialize
// has not succeeded.
//
// For testing, prefer passing explicit Config instances.
func GetConfig() *Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// SetConfig replaces the global configuration instance. It is intended for
// tests and for commands that build configuration without a file.
func SetConfig(cfg *Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = cfg
}

// OnReload registers fn to run after every successful ReloadConfig. Hooks run
// in registration order on the reloading goroutine.
func OnReload(fn func(old, new *Config)) {
	configMutex.Lock()
	defer configMutex.Unlock()
	reloadHooks = append(reloadHooks, fn)
}

// ReloadConfig reloads configuration from path. The global instance is only
// replaced when loading and validation succeed; otherwise the current
// configuration stays in place and the error is returned.
func ReloadConfig(path string) error {
	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		return fmt.Errorf("failed to reload configuration: %w", err)
	}

	configMutex.Lock()
	old := globalConfig
	globalConfig = cfg
	configPath = path
	hooks := append([]func(old, new *Config){}, reloadHooks...)
	configMutex.Unlock()

	for _, fn := range hooks {
		fn(old, cfg)
	}
	return nil
}

// Path returns the file the global configuration was loaded from.
func Path() string {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return configPath
}

// MustGetConfig returns the global configuration instance and panics if it
// has not been initialized.
func MustGetConfig() *Config {
	cfg := GetConfig()
	if cfg == nil {
		panic("configuration not initialized: call Initialize first")
	}
	return cfg
}

// resetForTest clears the singleton state.
func resetForTest() {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = nil
	configPath = ""
	reloadHooks = nil
	initOnce = sync.Once{}
}
