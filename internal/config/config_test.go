package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/tcpapi/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadPluginDocumentDefaults(t *testing.T) {
	testlog.Start(t)

	doc, err := LoadPluginDocument(writeFile(t, "plugins.toml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultRecentLimit, doc.API.MaxRecent)
	assert.Empty(t, doc.Apps)
	assert.Nil(t, doc.Plugins.Enabled)
}

func TestLoadPluginDocumentNormalises(t *testing.T) {
	testlog.Start(t)

	doc, err := LoadPluginDocument(writeFile(t, "plugins.toml", `
[api]
max_recent = 10

[[apps]]
key = "  K1 "
name = " One "

[[apps]]
key = "K2"

[plugins]
enabled = [" Core", "", "INGEST "]
`))
	require.NoError(t, err)
	assert.Equal(t, 10, doc.API.MaxRecent)
	require.Len(t, doc.Apps, 2)
	assert.Equal(t, AppConfig{Key: "K1", Name: "One"}, doc.Apps[0])
	assert.Equal(t, []string{"core", "ingest"}, doc.Plugins.Enabled)
}

func TestLoadPluginDocumentRejectsInvalidApps(t *testing.T) {
	testlog.Start(t)

	_, err := LoadPluginDocument(writeFile(t, "plugins.toml", "[[apps]]\nname = \"keyless\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key is required")

	_, err = LoadPluginDocument(writeFile(t, "plugins.toml", "[[apps]]\nkey = \"K\"\n[[apps]]\nkey = \" K\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestLoadPluginDocumentReportsIOAndParseErrors(t *testing.T) {
	testlog.Start(t)

	_, err := LoadPluginDocument(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadPluginDocument(writeFile(t, "plugins.toml", "[api\nmax_recent = 1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config parse failed")
}
