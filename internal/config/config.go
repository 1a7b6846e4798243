// Package config holds the storage core's configuration tree: a plain
// exported struct marshaled with encoding/json. LoadConfig and
// LoadConfigOrDefault follow a read-file, json.Unmarshal-over-defaults,
// validate pattern.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the root configuration tree for one embedded database
// instance.
type Config struct {
	Store  StoreConfig  `json:"store"`
	Lock   LockConfig   `json:"lock"`
	Commit CommitConfig `json:"commit"`
	GC     GCConfig     `json:"gc"`
}

// StoreConfig controls the Paged Store / Badger-backed on-disk layer.
type StoreConfig struct {
	Path      string `json:"path"`
	InMemory  bool   `json:"in_memory"`
	SyncWrites bool  `json:"sync_writes"`
}

// LockConfig controls the Lock Manager.
type LockConfig struct {
	AcquireTimeout time.Duration `json:"acquire_timeout"`
}

// CommitConfig controls the Commit Pipeline.
type CommitConfig struct {
	ErrorOnDirtySelect bool `json:"error_on_dirty_select"`
}

// GCConfig controls registry pruning (tablesource.Source.Prune): how often
// it runs and how old a registry must be to be pruned.
type GCConfig struct {
	Interval       time.Duration `json:"interval"`
	RegistryMaxAge time.Duration `json:"registry_max_age"`
}

// DefaultConfig returns the configuration an embedder gets if they supply
// none: in-memory store, synchronous writes, dirty-select checking on,
// registry GC every five minutes pruning registries older than an hour.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			InMemory:   true,
			SyncWrites: true,
		},
		Lock: LockConfig{
			AcquireTimeout: 30 * time.Second,
		},
		Commit: CommitConfig{
			ErrorOnDirtySelect: true,
		},
		GC: GCConfig{
			Interval:       5 * time.Minute,
			RegistryMaxAge: time.Hour,
		},
	}
}

// LoadConfig reads and parses a JSON config file layered over
// DefaultConfig, or returns DefaultConfig unchanged if configPath is
// empty.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfigOrDefault tries the RELCORE_CONFIG environment variable, then
// falls back to DefaultConfig on any failure.
func LoadConfigOrDefault() *Config {
	if envPath := os.Getenv("RELCORE_CONFIG"); envPath != "" {
		if cfg, err := LoadConfig(envPath); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

func validate(cfg *Config) error {
	if !cfg.Store.InMemory && cfg.Store.Path == "" {
		return fmt.Errorf("store.path must be set when store.in_memory is false")
	}
	if cfg.Lock.AcquireTimeout <= 0 {
		return fmt.Errorf("lock.acquire_timeout must be positive")
	}
	return nil
}
