// Package config provides layered configuration loading for pair, the
// Driver/Navigator/Architect pairing orchestrator.
//
// # Configuration Loading
//
// Load implements a hierarchical loading strategy that searches for and
// merges configuration from multiple sources, in priority order:
//
//  1. Global config (~/.config/pair/pair.json[c])
//  2. Project config (<directory>/.pair/pair.json[c])
//  3. Environment variable overrides
//
// Later sources win. Missing files are skipped, not errors.
//
// # Supported Formats
//
// Both pair.json and pair.jsonc (JSON with // and /* */ comments
// stripped before parsing) are accepted.
//
// # Configuration Merging
//
// Merging overwrites scalar fields and provider bindings wholesale;
// there is no deep per-field merge within a ProviderBinding — a project
// config that sets "driver" replaces the global "driver" binding
// entirely, the same way a project config wins over global.
//
// # Tunables
//
// The run's tunables (spec.md §6, table 1) each have a matching
// environment variable override of the same name:
//
//   - NAVIGATOR_MAX_TURNS
//   - DRIVER_MAX_TURNS
//   - SESSION_HARD_LIMIT_MIN
//   - PERMISSION_TIMEOUT_MS
//   - REVIEW_DISPLAY_TIMEOUT_MS
//   - MAX_PROMPT_LENGTH
//
// # Provider API Keys
//
// ANTHROPIC_API_KEY and OPENCODE_API_KEY populate the matching role's
// ProviderBinding.Options["apiKey"] when the binding does not already
// carry one from a config file.
//
// # Path Management
//
// GetPaths returns pair's XDG-ish config directory (~/.config/pair,
// or APPDATA-relative on Windows), honoring XDG_CONFIG_HOME.
package config
