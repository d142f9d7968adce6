// Package config loads the engine's JSON configuration: defaults, overlaid
// by an optional config file, overridden by environment variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type ProviderConfig struct {
	BaseURL   string `json:"base_url"`
	Model     string `json:"model"`
	APIKey    string `json:"api_key"`
	TimeoutMS int    `json:"timeout_ms"`
}

type RuntimeConfig struct {
	WorkspaceRoot string `json:"workspace_root"`
}

// EditConfig 编辑引擎配置
// EditConfig configures the edit engine itself.
type EditConfig struct {
	// Mode is the session edit mode: ast_path | line_numbers | complete_file.
	Mode string `json:"mode"`
	// Overwrite permits complete_file mode to replace existing files.
	Overwrite bool `json:"overwrite"`
	// HistoryDB is the SQLite path for the file-history sink.
	HistoryDB string `json:"history_db"`
	// SummaryTokenBudget caps each change's detail line in the continuation.
	SummaryTokenBudget int `json:"summary_token_budget"`
}

type LogConfig struct {
	// Path is the debug log file; empty logs to stderr.
	Path  string `json:"path"`
	Debug bool   `json:"debug"`
}

type Config struct {
	Provider ProviderConfig `json:"provider"`
	Runtime  RuntimeConfig  `json:"runtime"`
	Edit     EditConfig     `json:"edit"`
	Log      LogConfig      `json:"log"`
}

// fileEditConfig mirrors EditConfig with pointer fields so absent keys keep
// their defaults.
type fileEditConfig struct {
	Mode               *string `json:"mode"`
	Overwrite          *bool   `json:"overwrite"`
	HistoryDB          *string `json:"history_db"`
	SummaryTokenBudget *int    `json:"summary_token_budget"`
}

type fileLogConfig struct {
	Path  *string `json:"path"`
	Debug *bool   `json:"debug"`
}

type fileConfig struct {
	Provider *ProviderConfig `json:"provider"`
	Runtime  *RuntimeConfig  `json:"runtime"`
	Edit     *fileEditConfig `json:"edit"`
	Log      *fileLogConfig  `json:"log"`
}

func Default() Config {
	return Config{
		Provider: ProviderConfig{
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			TimeoutMS: 120000,
		},
		Edit: EditConfig{
			Mode:               "ast_path",
			HistoryDB:          defaultHistoryDB(),
			SummaryTokenBudget: 120,
		},
	}
}

func defaultHistoryDB() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "history.db"
	}
	return filepath.Join(home, ".codestream", "history.db")
}

// Load reads the config at path (or CODESTREAM_CONFIG_PATH, or the project
// default location) on top of the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	resolved := strings.TrimSpace(path)
	if envPath := strings.TrimSpace(os.Getenv("CODESTREAM_CONFIG_PATH")); resolved == "" && envPath != "" {
		resolved = envPath
	}
	if resolved == "" {
		resolved = findProjectConfigPath()
	}
	if err := mergeFromFile(&cfg, resolved); err != nil {
		return Config{}, err
	}

	if key := strings.TrimSpace(os.Getenv("CODESTREAM_API_KEY")); key != "" {
		cfg.Provider.APIKey = key
	}
	if cfg.Edit.SummaryTokenBudget <= 0 {
		cfg.Edit.SummaryTokenBudget = 120
	}
	return cfg, nil
}

func findProjectConfigPath() string {
	candidates := []string{
		"codestream.config.json",
		".codestream/config.json",
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return ""
}

func mergeFromFile(cfg *Config, path string) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}

	var fc fileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %q: %w", path, err)
	}

	if fc.Provider != nil {
		mergeProvider(&cfg.Provider, *fc.Provider)
	}
	if fc.Runtime != nil && strings.TrimSpace(fc.Runtime.WorkspaceRoot) != "" {
		cfg.Runtime.WorkspaceRoot = fc.Runtime.WorkspaceRoot
	}
	if fc.Edit != nil {
		if fc.Edit.Mode != nil {
			cfg.Edit.Mode = *fc.Edit.Mode
		}
		if fc.Edit.Overwrite != nil {
			cfg.Edit.Overwrite = *fc.Edit.Overwrite
		}
		if fc.Edit.HistoryDB != nil {
			cfg.Edit.HistoryDB = *fc.Edit.HistoryDB
		}
		if fc.Edit.SummaryTokenBudget != nil {
			cfg.Edit.SummaryTokenBudget = *fc.Edit.SummaryTokenBudget
		}
	}
	if fc.Log != nil {
		if fc.Log.Path != nil {
			cfg.Log.Path = *fc.Log.Path
		}
		if fc.Log.Debug != nil {
			cfg.Log.Debug = *fc.Log.Debug
		}
	}
	return nil
}

func mergeProvider(dst *ProviderConfig, src ProviderConfig) {
	if strings.TrimSpace(src.BaseURL) != "" {
		dst.BaseURL = src.BaseURL
	}
	if strings.TrimSpace(src.Model) != "" {
		dst.Model = src.Model
	}
	if strings.TrimSpace(src.APIKey) != "" {
		dst.APIKey = src.APIKey
	}
	if src.TimeoutMS > 0 {
		dst.TimeoutMS = src.TimeoutMS
	}
}
