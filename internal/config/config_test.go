package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pair-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.NavigatorMaxTurns)
	assert.Equal(t, 20, cfg.DriverMaxTurns)
	assert.Equal(t, 30.0, cfg.SessionHardLimitMin)
	assert.Equal(t, 15000, cfg.PermissionTimeoutMS)
	assert.Equal(t, 2000, cfg.ReviewDisplayTimeoutMS)
	assert.Equal(t, 10000, cfg.MaxPromptLength)
}

func TestJSONCComments(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "pair-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	jsoncConfig := `{
		// turn budget for the navigator
		"navigatorMaxTurns": 75,
		/* project override for
		   the driver's provider */
		"driver": {
			"provider": "claude-code",
			"model": "anthropic/claude-sonnet-4-20250514"
		}
	}`

	configPath := filepath.Join(tmpDir, ".pair", "pair.jsonc")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(jsoncConfig), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, 75, cfg.NavigatorMaxTurns)
	assert.Equal(t, "claude-code", cfg.Driver.Provider)
	assert.Equal(t, "anthropic/claude-sonnet-4-20250514", cfg.Driver.Model)
}

func TestConfigMergePriority(t *testing.T) {
	tmpHome, err := os.MkdirTemp("", "pair-home-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpHome)

	tmpProject, err := os.MkdirTemp("", "pair-project-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpProject)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpHome)
	defer os.Setenv("HOME", oldHome)

	globalConfig := `{
		"navigatorMaxTurns": 40,
		"driver": {"provider": "opencode", "model": "global/model"}
	}`
	globalConfigDir := filepath.Join(tmpHome, ".config", "pair")
	require.NoError(t, os.MkdirAll(globalConfigDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(globalConfigDir, "pair.json"), []byte(globalConfig), 0644))

	projectConfig := `{
		"driver": {"provider": "claude-code", "model": "project/model"}
	}`
	projectConfigDir := filepath.Join(tmpProject, ".pair")
	require.NoError(t, os.MkdirAll(projectConfigDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(projectConfigDir, "pair.json"), []byte(projectConfig), 0644))

	cfg, err := Load(tmpProject)
	require.NoError(t, err)

	// project binding replaces the global one wholesale
	assert.Equal(t, "claude-code", cfg.Driver.Provider)
	assert.Equal(t, "project/model", cfg.Driver.Model)
	// global-only tunable survives since project config didn't set it
	assert.Equal(t, 40, cfg.NavigatorMaxTurns)
}

func TestEnvVarOverride(t *testing.T) {
	os.Setenv("NAVIGATOR_MAX_TURNS", "99")
	os.Setenv("PERMISSION_TIMEOUT_MS", "5000")
	defer os.Unsetenv("NAVIGATOR_MAX_TURNS")
	defer os.Unsetenv("PERMISSION_TIMEOUT_MS")

	tmpDir, err := os.MkdirTemp("", "pair-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 99, cfg.NavigatorMaxTurns)
	assert.Equal(t, 5000, cfg.PermissionTimeoutMS)
}

func TestAPIKeyOverrideDoesNotClobberConfigFile(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	tmpDir, err := os.MkdirTemp("", "pair-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	config := `{
		"architect": {
			"provider": "claude-code",
			"options": {"apiKey": "file-key"}
		}
	}`
	configPath := filepath.Join(tmpDir, ".pair", "pair.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "file-key", cfg.Architect.Options["apiKey"])
}

func TestAPIKeyOverrideAppliesWhenUnset(t *testing.T) {
	os.Setenv("ANTHROPIC_API_KEY", "env-key")
	defer os.Unsetenv("ANTHROPIC_API_KEY")

	tmpDir, err := os.MkdirTemp("", "pair-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	config := `{"architect": {"provider": "claude-code"}}`
	configPath := filepath.Join(tmpDir, ".pair", "pair.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(configPath), 0755))
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0644))

	cfg, err := Load(tmpDir)
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.Architect.Options["apiKey"])
}

func TestSaveRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default()
	cfg.Navigator.Provider = "opencode"

	path := filepath.Join(tmpDir, "nested", "pair.json")
	require.NoError(t, Save(cfg, path))

	loaded := &Config{}
	loadConfigFile(path, loaded)
	assert.Equal(t, "opencode", loaded.Navigator.Provider)
}
