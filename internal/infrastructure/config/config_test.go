package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the device config file at a path that does not exist
func isolate(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "package.cfg")
	t.Setenv("PM_CONFIG_FILE", path)
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8420", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 2*time.Minute, cfg.Server.RequestTimeout)

	assert.Equal(t, "/system/app", cfg.Paths.PresetDir)
	assert.Equal(t, "/data/app", cfg.Paths.InstalledDir)
	assert.Equal(t, "/data/data", cfg.Paths.DataDir)

	assert.False(t, cfg.Behavior.ScanInstalledOnBoot)
	assert.True(t, cfg.Behavior.Reconcile)
	assert.Equal(t, int32(10000), cfg.Behavior.OwnerIDBase)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 20, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, 40, cfg.RateLimit.Burst)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadWithoutConfigFile(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8420", cfg.Server.Port)
	assert.Equal(t, "/data/app", cfg.Paths.InstalledDir)
	assert.Equal(t, "/data/app/packages.list", cfg.Layout().PackageList)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	isolate(t)

	envVars := map[string]string{
		"PM_HOST":                   "0.0.0.0",
		"PM_PORT":                   "9000",
		"PM_REQUEST_TIMEOUT":        "30s",
		"PM_PRESET_PATH":            "/rom/app",
		"PM_INSTALLED_PATH":         "/userdata/app",
		"PM_DATA_PATH":              "/userdata/data",
		"PM_PACKAGE_LIST":           "/userdata/pm/packages.list",
		"PM_SCAN_INSTALLED_ON_BOOT": "true",
		"PM_RECONCILE":              "false",
		"PM_OWNER_ID_BASE":          "20000",
		"LOG_LEVEL":                 "debug",
		"LOG_DEV":                   "true",
		"RATE_LIMIT_RPS":            "5",
		"RATE_LIMIT_BURST":          "10",
		"RATE_LIMIT_ENABLED":        "false",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)

	layout := cfg.Layout()
	assert.Equal(t, "/rom/app", layout.PresetDir)
	assert.Equal(t, "/userdata/app", layout.InstalledDir)
	assert.Equal(t, "/userdata/data", layout.DataDir)
	assert.Equal(t, "/userdata/pm/packages.list", layout.PackageList)

	assert.True(t, cfg.Behavior.ScanInstalledOnBoot)
	assert.False(t, cfg.Behavior.Reconcile)
	assert.Equal(t, int32(20000), cfg.Behavior.OwnerIDBase)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
	assert.False(t, cfg.RateLimit.Enabled)
}

func TestConfigFilePrecedence(t *testing.T) {
	path := isolate(t)
	content := `{
  "appPresetPath": "/vendor/app",
  "appInstalledPath": "/cfg/app",
  "appDataPath": "/cfg/data"
}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	t.Setenv("PM_DATA_PATH", "/env/data")

	cfg, err := Load()
	require.NoError(t, err)

	// file beats defaults, env beats file
	assert.Equal(t, "/vendor/app", cfg.Paths.PresetDir)
	assert.Equal(t, "/cfg/app", cfg.Paths.InstalledDir)
	assert.Equal(t, "/env/data", cfg.Paths.DataDir)
}

func TestConfigFileYAML(t *testing.T) {
	path := isolate(t)
	require.NoError(t, os.WriteFile(path, []byte("appInstalledPath: /yaml/app\n"), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/yaml/app", cfg.Paths.InstalledDir)
	assert.Equal(t, "/system/app", cfg.Paths.PresetDir)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{"non numeric owner base", map[string]string{"PM_OWNER_ID_BASE": "abc"}, ""},
		{"zero owner base", map[string]string{"PM_OWNER_ID_BASE": "0"}, ""},
		{"broken config file", nil, "appPresetPath: [unterminated"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := isolate(t)
			if tt.file != "" {
				require.NoError(t, os.WriteFile(path, []byte(tt.file), 0o644))
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
