package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/tcpapi/internal/gateway"
)

// RuntimeConfig is everything the tcpapictl composition root needs.
type RuntimeConfig struct {
	Service      gateway.ServiceConfig
	PluginsPath  string
	DBPath       string
	WatchPlugins bool
}

// service config.toml key mapping to runtime settings.
type serviceFile struct {
	Addr               string   `toml:"addr"`
	AdminListenAddr    string   `toml:"admin_listen_addr"`
	CorsOrigins        []string `toml:"cors_origins"`
	ReadBufferSize     int      `toml:"read_buffer_size"`
	IdleTimeout        string   `toml:"idle_timeout"`
	WriteTimeout       string   `toml:"write_timeout"`
	MaxConnections     int      `toml:"max_connections"`
	ForceConfigRefresh bool     `toml:"force_config_refresh"`
	MaxValueBytes      int      `toml:"max_value_bytes"`
	PluginsPath        string   `toml:"plugins_path"`
	DBPath             string   `toml:"db_path"`
	WatchPlugins       bool     `toml:"watch_plugins"`
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		Service:      gateway.DefaultServiceConfig(),
		DBPath:       "tcpapi.db",
		WatchPlugins: true,
	}
}

// LoadServiceConfig overlays the keys present in path onto the defaults.
// Relative file paths resolve against the config file's directory.
func LoadServiceConfig(path string) (RuntimeConfig, error) {
	cfg := DefaultRuntimeConfig()

	var raw serviceFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return RuntimeConfig{}, fmt.Errorf("load service config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return RuntimeConfig{}, fmt.Errorf("load service config: unknown key %q", undecoded[0].String())
	}

	svc := &cfg.Service
	if meta.IsDefined("addr") {
		svc.ListenAddr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("admin_listen_addr") {
		svc.AdminListenAddr = strings.TrimSpace(raw.AdminListenAddr)
	}
	if meta.IsDefined("cors_origins") {
		svc.CorsOrigins = raw.CorsOrigins
	}
	if meta.IsDefined("read_buffer_size") {
		svc.ReadBufferSize = raw.ReadBufferSize
	}
	if meta.IsDefined("idle_timeout") {
		d, err := parseDuration("idle_timeout", raw.IdleTimeout)
		if err != nil {
			return RuntimeConfig{}, err
		}
		svc.IdleTimeout = d
	}
	if meta.IsDefined("write_timeout") {
		d, err := parseDuration("write_timeout", raw.WriteTimeout)
		if err != nil {
			return RuntimeConfig{}, err
		}
		svc.WriteTimeout = d
	}
	if meta.IsDefined("max_connections") {
		svc.MaxConnections = raw.MaxConnections
	}
	if meta.IsDefined("force_config_refresh") {
		svc.ForceConfigRefresh = raw.ForceConfigRefresh
	}
	if meta.IsDefined("max_value_bytes") {
		svc.Limits.MaxValueBytes = raw.MaxValueBytes
	}
	if meta.IsDefined("plugins_path") {
		cfg.PluginsPath = resolvePath(path, raw.PluginsPath)
	}
	if meta.IsDefined("db_path") {
		cfg.DBPath = resolvePath(path, raw.DBPath)
	}
	if meta.IsDefined("watch_plugins") {
		cfg.WatchPlugins = raw.WatchPlugins
	}

	if err := ValidateRuntimeConfig(cfg); err != nil {
		return RuntimeConfig{}, err
	}
	cfg.Service = cfg.Service.WithDefaults()
	return cfg, nil
}

func ValidateRuntimeConfig(cfg RuntimeConfig) error {
	svc := cfg.Service
	if strings.TrimSpace(svc.ListenAddr) == "" {
		return fmt.Errorf("load service config: addr is required")
	}
	if svc.ReadBufferSize < 0 {
		return fmt.Errorf("load service config: read_buffer_size must be >= 0")
	}
	if svc.MaxConnections < 0 {
		return fmt.Errorf("load service config: max_connections must be >= 0")
	}
	if svc.Limits.MaxValueBytes < 0 {
		return fmt.Errorf("load service config: max_value_bytes must be >= 0")
	}
	if svc.IdleTimeout < 0 || svc.WriteTimeout < 0 {
		return fmt.Errorf("load service config: timeouts must be >= 0")
	}
	return nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("load service config: %s: %w", key, err)
	}
	return d, nil
}

func resolvePath(configPath, raw string) string {
	resolved := strings.TrimSpace(raw)
	if resolved == "" || resolved == ":memory:" || filepath.IsAbs(resolved) {
		return resolved
	}
	return filepath.Join(filepath.Dir(configPath), resolved)
}
