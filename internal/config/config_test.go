package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PRD_STORAGE_BACKEND", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Service.Port)
	assert.Equal(t, BackendFile, cfg.Storage.Backend)
	require.Len(t, cfg.Pipeline.Analysis, 2)
	assert.True(t, cfg.Pipeline.Analysis[0].Search)
	assert.False(t, cfg.Pipeline.Analysis[1].Search)
	assert.True(t, cfg.Pipeline.Analysis[1].JSONMode)
	assert.Equal(t, "anthropic", cfg.Pipeline.Synthesis[0].Provider)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PRD_STORAGE_BACKEND", "")
	t.Setenv("MY_TAVILY", "tv-123")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
service:
  port: 9000
  data_dir: ` + dir + `
storage:
  backend: sqlite
search:
  api_key: ${MY_TAVILY}
pipeline:
  synthesis:
    - provider: ollama
      model: llama3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, "tv-123", cfg.Search.APIKey)
	assert.Equal(t, "sk-ant", cfg.Providers.Anthropic.APIKey)
	require.Len(t, cfg.Pipeline.Synthesis, 1)
	assert.Equal(t, "ollama", cfg.Pipeline.Synthesis[0].Provider)
	assert.Equal(t, filepath.Join(dir, "saved-prds"), cfg.DocumentsDir())
	assert.Equal(t, filepath.Join(dir, "prdforge.pid"), cfg.PIDPath())
}

func TestLoad_PortOverride(t *testing.T) {
	t.Setenv("PORT", "4321")
	t.Setenv("PRD_STORAGE_BACKEND", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:4321", cfg.Address())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "postgres" }, true},
		{"bad port", func(c *Config) { c.Service.Port = 0 }, true},
		{"empty stage", func(c *Config) { c.Pipeline.Questions = nil }, true},
		{"strategy without model", func(c *Config) { c.Pipeline.Analysis[0].Model = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestEnsureDirectories(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Service.DataDir = t.TempDir()

	require.NoError(t, cfg.EnsureDirectories())

	for _, dir := range []string{cfg.DocumentsDir(), cfg.SubmissionsDir(), cfg.LogsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PRD_STORAGE_BACKEND", "")

	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Service.Port = 8088
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8088, loaded.Service.Port)
}
