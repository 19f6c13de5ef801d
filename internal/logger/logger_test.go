package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/prdforge/internal/config"
)

func TestOutputs(t *testing.T) {
	tests := []struct {
		output      []string
		wantConsole bool
		wantFile    bool
	}{
		{[]string{"console"}, true, false},
		{[]string{"stdout", "file"}, true, true},
		{[]string{"both"}, true, true},
		{[]string{"FILE"}, false, true},
		{nil, false, false},
	}

	for _, tt := range tests {
		console, file := Outputs(config.LoggingConfig{Output: tt.output})
		assert.Equal(t, tt.wantConsole, console, "output %v", tt.output)
		assert.Equal(t, tt.wantFile, file, "output %v", tt.output)
	}
}

func TestWriterConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Logging.MaxSizeMB = 2

	wc := writerConfig(cfg, models.LogWriterTypeFile, "x.log")
	assert.Equal(t, "x.log", wc.FileName)
	assert.Equal(t, int64(2*1024*1024), wc.MaxSize)
	assert.Equal(t, 5, wc.MaxBackups)

	def := writerConfig(nil, models.LogWriterTypeConsole, "")
	assert.Equal(t, "15:04:05.000", def.TimeFormat)
	assert.NotEqual(t, wc.OutputType, def.OutputType)
}

func TestSetupLogger_InstallsGlobal(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Service.DataDir = t.TempDir()
	cfg.Logging.Output = []string{"file"}

	l := SetupLogger(cfg, true)
	assert.NotNil(t, l)
	assert.NotNil(t, GetLogger())
	assert.DirExists(t, cfg.LogsDir())
}
