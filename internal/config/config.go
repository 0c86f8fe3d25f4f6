package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

const DefaultRecentLimit = 100

// PluginDocument is the hot-reloadable plugin/app configuration.
type PluginDocument struct {
	API     APIConfig     `toml:"api"`
	Apps    []AppConfig   `toml:"apps"`
	Plugins PluginsConfig `toml:"plugins"`
}

type APIConfig struct {
	MaxRecent int `toml:"max_recent"`
}

type AppConfig struct {
	Key  string `toml:"key"`
	Name string `toml:"name"`
}

type PluginsConfig struct {
	// Enabled lists plugin names; nil enables every registered plugin.
	Enabled []string `toml:"enabled"`
}

func LoadPluginDocument(path string) (PluginDocument, error) {
	var doc PluginDocument
	if err := loadToml(path, &doc); err != nil {
		return PluginDocument{}, err
	}
	if doc.API.MaxRecent <= 0 {
		doc.API.MaxRecent = DefaultRecentLimit
	}
	for i := range doc.Apps {
		doc.Apps[i].Key = strings.TrimSpace(doc.Apps[i].Key)
		doc.Apps[i].Name = strings.TrimSpace(doc.Apps[i].Name)
	}
	if doc.Plugins.Enabled != nil {
		doc.Plugins.Enabled = normalizeNames(doc.Plugins.Enabled)
	}
	if err := ValidatePluginDocument(doc); err != nil {
		return PluginDocument{}, err
	}
	return doc, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidatePluginDocument(doc PluginDocument) error {
	seen := make(map[string]struct{}, len(doc.Apps))
	for i, app := range doc.Apps {
		if err := ValidateAppEntry(app); err != nil {
			return fmt.Errorf("apps[%d] invalid: %w", i, err)
		}
		if _, dup := seen[app.Key]; dup {
			return fmt.Errorf("apps[%d] invalid: duplicate key %q", i, app.Key)
		}
		seen[app.Key] = struct{}{}
	}
	return nil
}

func ValidateAppEntry(app AppConfig) error {
	if strings.TrimSpace(app.Key) == "" {
		return fmt.Errorf("key is required")
	}
	return nil
}

func normalizeNames(in []string) []string {
	out := make([]string, 0, len(in))
	for _, name := range in {
		v := strings.ToLower(strings.TrimSpace(name))
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
