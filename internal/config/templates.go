package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "service":
		return serviceTemplate, nil
	case "plugins":
		return pluginsTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

// Validate loads the file at path as the given kind.
func Validate(path, kind string) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "service":
		_, err := LoadServiceConfig(path)
		return err
	case "plugins":
		_, err := LoadPluginDocument(path)
		return err
	default:
		return fmt.Errorf("unknown config kind: %s", kind)
	}
}

const serviceTemplate = `addr = "localhost:3005"
admin_listen_addr = "127.0.0.1:3006"
cors_origins = ["http://localhost:3000"]
read_buffer_size = 32768
idle_timeout = "0"
write_timeout = "15s"
max_connections = 0
force_config_refresh = true
max_value_bytes = 8388608
plugins_path = "plugins.toml"
db_path = "tcpapi.db"
watch_plugins = true
`

const pluginsTemplate = `[api]
max_recent = 100

[[apps]]
key = "demo-app-key"
name = "Demo"

[plugins]
enabled = ["core", "ingest", "requests"]
`
