package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tidwall/jsonc"
)

// ProviderBinding configures one role's agent backend (spec.md §6):
// which provider plugin to talk to, which model to request, and any
// provider-specific options (API keys, base URLs).
type ProviderBinding struct {
	Provider string            `json:"provider"` // "claude-code" | "opencode"
	Model    string            `json:"model,omitempty"`
	BaseURL  string            `json:"baseURL,omitempty"`
	Options  map[string]string `json:"options,omitempty"`
}

// Config is the orchestrator's layered configuration: a provider
// binding per role plus the run's tunables.
type Config struct {
	Architect ProviderBinding `json:"architect"`
	Driver    ProviderBinding `json:"driver"`
	Navigator ProviderBinding `json:"navigator"`

	NavigatorMaxTurns      int     `json:"navigatorMaxTurns"`
	DriverMaxTurns         int     `json:"driverMaxTurns"`
	SessionHardLimitMin    float64 `json:"sessionHardLimitMin"`
	PermissionTimeoutMS    int     `json:"permissionTimeoutMs"`
	ReviewDisplayTimeoutMS int     `json:"reviewDisplayTimeoutMs"`
	MaxPromptLength        int     `json:"maxPromptLength"`
}

// Default returns the tunable defaults of spec.md §6, table 1.
func Default() *Config {
	return &Config{
		NavigatorMaxTurns:      50,
		DriverMaxTurns:         20,
		SessionHardLimitMin:    30,
		PermissionTimeoutMS:    15000,
		ReviewDisplayTimeoutMS: 2000,
		MaxPromptLength:        10000,
	}
}

// Load loads configuration from multiple sources (priority order):
//  1. Global config (~/.config/pair/pair.json[c])
//  2. Project config (<directory>/.pair/pair.json[c])
//  3. Environment variables
func Load(directory string) (*Config, error) {
	cfg := Default()

	globalPath := GetPaths().Config
	loadConfigFile(filepath.Join(globalPath, "pair.json"), cfg)
	loadConfigFile(filepath.Join(globalPath, "pair.jsonc"), cfg)

	if directory != "" {
		loadConfigFile(filepath.Join(directory, ".pair", "pair.json"), cfg)
		loadConfigFile(filepath.Join(directory, ".pair", "pair.jsonc"), cfg)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadConfigFile loads a single config file, merging it into cfg. A
// missing file is not an error — it is simply skipped.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	data = jsonc.ToJSON(data)

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return err
	}

	mergeConfig(cfg, &fileConfig)
	return nil
}

// mergeConfig merges source's non-zero fields into target.
func mergeConfig(target, source *Config) {
	if source.Architect.Provider != "" {
		target.Architect = source.Architect
	}
	if source.Driver.Provider != "" {
		target.Driver = source.Driver
	}
	if source.Navigator.Provider != "" {
		target.Navigator = source.Navigator
	}
	if source.NavigatorMaxTurns != 0 {
		target.NavigatorMaxTurns = source.NavigatorMaxTurns
	}
	if source.DriverMaxTurns != 0 {
		target.DriverMaxTurns = source.DriverMaxTurns
	}
	if source.SessionHardLimitMin != 0 {
		target.SessionHardLimitMin = source.SessionHardLimitMin
	}
	if source.PermissionTimeoutMS != 0 {
		target.PermissionTimeoutMS = source.PermissionTimeoutMS
	}
	if source.ReviewDisplayTimeoutMS != 0 {
		target.ReviewDisplayTimeoutMS = source.ReviewDisplayTimeoutMS
	}
	if source.MaxPromptLength != 0 {
		target.MaxPromptLength = source.MaxPromptLength
	}
}

// applyEnvOverrides applies the recognized environment variable
// overrides of spec.md §6, plus per-role provider API keys.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NAVIGATOR_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.NavigatorMaxTurns = n
		}
	}
	if v := os.Getenv("DRIVER_MAX_TURNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DriverMaxTurns = n
		}
	}
	if v := os.Getenv("SESSION_HARD_LIMIT_MIN"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SessionHardLimitMin = n
		}
	}
	if v := os.Getenv("PERMISSION_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.PermissionTimeoutMS = n
		}
	}
	if v := os.Getenv("REVIEW_DISPLAY_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReviewDisplayTimeoutMS = n
		}
	}
	if v := os.Getenv("MAX_PROMPT_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxPromptLength = n
		}
	}

	applyAPIKeyOverride(&cfg.Architect)
	applyAPIKeyOverride(&cfg.Driver)
	applyAPIKeyOverride(&cfg.Navigator)
}

func applyAPIKeyOverride(binding *ProviderBinding) {
	envVar := map[string]string{
		"claude-code": "ANTHROPIC_API_KEY",
		"opencode":    "OPENCODE_API_KEY",
	}[binding.Provider]
	if envVar == "" {
		return
	}
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return
	}
	if binding.Options == nil {
		binding.Options = make(map[string]string)
	}
	if binding.Options["apiKey"] == "" {
		binding.Options["apiKey"] = apiKey
	}
}

// Save writes cfg to path as indented JSON, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
