package configutil_test

import (
	"os"
	"path/filepath"
	"testing"

	"uniadmit-backend/lib/configutil"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Port     int    `json:"port"`
	Database string `json:"database"`
}

func write(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestReadConfigMergesLocalOverrides(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")
	write(t, base, `{port: 8080, database: "prod.db"}`)
	write(t, filepath.Join(dir, "config.local.json5"), `{database: "dev.db"}`)

	config, err := configutil.ReadConfig[testConfig](base)
	require.NoError(t, err)
	// untouched base values survive, overridden ones win
	require.Equal(t, 8080, config.Port)
	require.Equal(t, "dev.db", config.Database)
}

func TestReadConfigBaseOnly(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")
	write(t, base, `{port: 9090, database: "only.db"}`)

	config, err := configutil.ReadConfig[testConfig](base)
	require.NoError(t, err)
	require.Equal(t, 9090, config.Port)
	require.Equal(t, "only.db", config.Database)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "config.local.json5"), `{port: 7070}`)

	config, err := configutil.ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 7070, config.Port)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := configutil.ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadConfigRejectsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	base := filepath.Join(dir, "config.json5")
	write(t, base, `{port: `)

	_, err := configutil.ReadConfig[testConfig](base)
	require.Error(t, err)
	require.Contains(t, err.Error(), base)
}
