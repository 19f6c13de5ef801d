// Package config provides configuration management for prdforge.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Config represents the service configuration.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Search    SearchConfig    `yaml:"search"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServiceConfig contains service-level settings.
type ServiceConfig struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

// APIConfig contains API settings.
type APIConfig struct {
	APIKey         string   `yaml:"api_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RequestTimeoutSeconds bounds a single HTTP request, including a full
	// generation pipeline run.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

// StorageConfig selects where saved documents live.
type StorageConfig struct {
	Backend string `yaml:"backend"` // file or sqlite
}

// SearchConfig configures the web search augmenter.
type SearchConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	TimeoutSeconds    int     `yaml:"timeout_seconds"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// ProvidersConfig holds credentials for each LLM backend.
type ProvidersConfig struct {
	OpenAI    ProviderConfig `yaml:"openai"`
	Anthropic ProviderConfig `yaml:"anthropic"`
	Gemini    ProviderConfig `yaml:"gemini"`
	Ollama    ProviderConfig `yaml:"ollama"`
}

// ProviderConfig configures a single LLM backend.
type ProviderConfig struct {
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Thinking string `yaml:"thinking,omitempty"`
	Enabled  bool   `yaml:"enabled,omitempty"`
}

// PipelineConfig holds the generation guidelines and per-stage strategies.
type PipelineConfig struct {
	Guidelines GuidelinesConfig `yaml:"guidelines"`
	Analysis   []StrategyConfig `yaml:"analysis"`
	Synthesis  []StrategyConfig `yaml:"synthesis"`
	Questions  []StrategyConfig `yaml:"questions"`
	// BackgroundTimeoutSeconds bounds survey-intake generation runs.
	BackgroundTimeoutSeconds int `yaml:"background_timeout_seconds"`
}

// GuidelinesConfig is the writing guidance folded into every prompt.
type GuidelinesConfig struct {
	Audience         string   `yaml:"audience"`
	Tone             string   `yaml:"tone"`
	Principles       []string `yaml:"principles"`
	RequiredSections []string `yaml:"required_sections"`
}

// StrategyConfig is one entry in a stage's ordered fallback list.
type StrategyConfig struct {
	Provider    string  `yaml:"provider"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	JSONMode    bool    `yaml:"json_mode"`
	Search      bool    `yaml:"search"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string   `yaml:"level"`
	Format     string   `yaml:"format"` // json or text
	Output     []string `yaml:"output"` // console, file, both
	TimeFormat string   `yaml:"time_format"`
	MaxSizeMB  int      `yaml:"max_size_mb"`
	MaxBackups int      `yaml:"max_backups"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Host:    "127.0.0.1",
			Port:    3001,
			DataDir: DefaultDataDir(),
		},
		API: APIConfig{
			APIKey:                "", // Empty = no auth for localhost
			AllowedOrigins:        []string{"http://localhost:*", "http://127.0.0.1:*"},
			RequestTimeoutSeconds: 300,
		},
		Storage: StorageConfig{
			Backend: BackendFile,
		},
		Search: SearchConfig{
			BaseURL:           "https://api.tavily.com",
			TimeoutSeconds:    15,
			RequestsPerSecond: 5,
			Burst:             3,
		},
		Providers: ProvidersConfig{
			Ollama: ProviderConfig{BaseURL: "http://localhost:11434"},
		},
		Pipeline: PipelineConfig{
			Guidelines: GuidelinesConfig{
				Audience: "product and engineering leadership",
				Tone:     "concise, specific, and actionable",
				Principles: []string{
					"Ground every claim in the customer's own description or the supplied market research.",
					"Prefer measurable goals over aspirational statements.",
					"Name concrete technologies, providers, and integration points.",
					"Order features by customer value and label each Must-have, Should-have, or Could-have.",
				},
				RequiredSections: []string{
					"overview", "problem", "goals", "competitiveAnalysis",
					"technicalApproach", "features", "metrics",
				},
			},
			Analysis: []StrategyConfig{
				{Provider: "openai", Model: "gpt-4.1", MaxTokens: 3000, Temperature: 0.7, Search: true},
				{Provider: "openai", Model: "gpt-4o", MaxTokens: 4000, Temperature: 0.3, JSONMode: true},
			},
			Synthesis: []StrategyConfig{
				{Provider: "anthropic", Model: "claude-sonnet-4-20250514", MaxTokens: 8000, Temperature: 0.3},
				{Provider: "openai", Model: "gpt-4.1", MaxTokens: 8000, Temperature: 0.3, JSONMode: true},
			},
			Questions: []StrategyConfig{
				{Provider: "gemini", Model: "gemini-2.5-flash", MaxTokens: 1000, Temperature: 0.7, JSONMode: true},
				{Provider: "openai", Model: "gpt-4.1", MaxTokens: 1000, Temperature: 0.7, JSONMode: true},
			},
			BackgroundTimeoutSeconds: 600,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"console", "file"},
			TimeFormat: "15:04:05.000",
			MaxSizeMB:  100,
			MaxBackups: 5,
		},
	}
}

// DefaultDataDir returns the default data directory based on OS.
func DefaultDataDir() string {
	if dir := os.Getenv("PRD_DATA_DIR"); dir != "" {
		return dir
	}
	switch runtime.GOOS {
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "prdforge")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "prdforge")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "prdforge")
	default: // linux and others
		xdgData := os.Getenv("XDG_DATA_HOME")
		if xdgData != "" {
			return filepath.Join(xdgData, "prdforge")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".prdforge")
	}
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load loads configuration from a file, then applies .env and
// environment overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	// .env is optional; variables already set in the environment win
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err == nil {
		// Expand environment variables in the config
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	// Expand tilde in data_dir
	if strings.HasPrefix(cfg.Service.DataDir, "~/") {
		home, _ := os.UserHomeDir()
		cfg.Service.DataDir = filepath.Join(home, cfg.Service.DataDir[2:])
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays well-known environment variables.
func (c *Config) applyEnv() {
	setString := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	setString(&c.Providers.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Providers.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setString(&c.Providers.Gemini.APIKey, "GEMINI_API_KEY", "GOOGLE_API_KEY")
	setString(&c.Providers.Ollama.BaseURL, "OLLAMA_URL")
	setString(&c.Search.APIKey, "TAVILY_API_KEY")
	setString(&c.Storage.Backend, "PRD_STORAGE_BACKEND")
	setString(&c.Logging.Level, "PRD_LOG_LEVEL")

	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Service.Port = port
		}
	}
}

// Validate checks settings that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("unknown storage backend %q (want %s or %s)", c.Storage.Backend, BackendFile, BackendSQLite)
	}
	if c.Service.Port <= 0 || c.Service.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Service.Port)
	}
	for stage, list := range map[string][]StrategyConfig{
		"analysis":  c.Pipeline.Analysis,
		"synthesis": c.Pipeline.Synthesis,
		"questions": c.Pipeline.Questions,
	} {
		if len(list) == 0 {
			return fmt.Errorf("pipeline.%s: at least one strategy is required", stage)
		}
		for i, s := range list {
			if s.Provider == "" || s.Model == "" {
				return fmt.Errorf("pipeline.%s[%d]: provider and model are required", stage, i)
			}
		}
	}
	return nil
}

// Save saves the configuration to a file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// Address returns the full address string for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Service.Host, c.Service.Port)
}

// DocumentsDir returns the directory holding saved documents.
func (c *Config) DocumentsDir() string {
	return filepath.Join(c.Service.DataDir, "saved-prds")
}

// DatabasePath returns the SQLite database path.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Service.DataDir, "prds.db")
}

// SubmissionsDir returns the directory holding survey submissions.
func (c *Config) SubmissionsDir() string {
	return filepath.Join(c.Service.DataDir, "submissions")
}

// LogsDir returns the log directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.Service.DataDir, "logs")
}

// PIDPath returns the path of the daemon PID file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Service.DataDir, "prdforge.pid")
}

// EnsureDirectories creates all necessary directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Service.DataDir,
		c.DocumentsDir(),
		c.SubmissionsDir(),
		c.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	return nil
}
