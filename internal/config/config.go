package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration.
type Config struct {
	// ServerURL is the base URL of the comments server, e.g. "https://comments.example.com".
	ServerURL string `json:"server_url"`

	// PageSize overrides the page size advertised by the server's client config.
	// 0 means use the server value. Negative values disable pagination entirely
	// (every comment is shown).
	PageSize int `json:"page_size,omitempty"`

	// UseDefaultStyle controls whether the preview server ships its bundled
	// stylesheet. The server's client config can also set this; the local
	// value wins when true.
	UseDefaultStyle bool `json:"use_default_style,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// All tools are enabled by default. Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		ServerURL: "http://localhost:8080",
	}
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.banter.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithSite loads configuration from both global (~/.banter) and site (.banter)
// directories. Site config is found by walking upward from startDir to find the
// nearest .banter/config.json, so each blog checkout can pin its own server.
// Site config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithSite(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	siteConfigPath := FindSiteConfig(startDir)
	site, err := loadFileRaw(siteConfigPath)
	if err != nil {
		return nil, err
	}

	// Apply defaults, then global, then site
	return Merge(Merge(DefaultConfig(), global), site), nil
}

// FindSiteConfig walks upward from startDir to find the nearest .banter/config.json.
// Returns the path if found, or empty string if not found.
func FindSiteConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".banter", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root, not found
			return ""
		}
		dir = parent
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.ServerURL = overlay.ServerURL
	if result.ServerURL == "" {
		result.ServerURL = base.ServerURL
	}

	result.PageSize = overlay.PageSize
	if result.PageSize == 0 {
		result.PageSize = base.PageSize
	}

	// Booleans: overlay wins if true, else base
	result.UseDefaultStyle = base.UseDefaultStyle || overlay.UseDefaultStyle

	// Arrays: merge and deduplicate
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range a {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}
	for _, s := range b {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
