// Package logger provides centralized logging using arbor.
package logger

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	arborcommon "github.com/ternarybob/arbor/common"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/prdforge/internal/config"
)

const logFileName = "prdforge.log"

var (
	globalLogger arbor.ILogger
	loggerMutex  sync.RWMutex
)

// GetLogger returns the global logger instance.
// Before SetupLogger runs it returns a console logger.
func GetLogger() arbor.ILogger {
	loggerMutex.RLock()
	if globalLogger != nil {
		loggerMutex.RUnlock()
		return globalLogger
	}
	loggerMutex.RUnlock()

	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	if globalLogger == nil {
		globalLogger = arbor.NewLogger().WithConsoleWriter(writerConfig(nil, models.LogWriterTypeConsole, ""))
	}
	return globalLogger
}

// InitLogger stores the provided logger as the global singleton instance.
func InitLogger(logger arbor.ILogger) {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	globalLogger = logger
}

// Outputs reports which writers a logging config asks for.
// "both" enables console and file; "stdout" is an alias for console.
func Outputs(cfg config.LoggingConfig) (console, file bool) {
	for _, out := range cfg.Output {
		switch strings.ToLower(strings.TrimSpace(out)) {
		case "console", "stdout":
			console = true
		case "file":
			file = true
		case "both":
			console, file = true, true
		}
	}
	return console, file
}

// SetupLogger configures and initializes the global logger from cfg.
// consoleAllowed is false for the stdio MCP server, whose stdout carries
// protocol frames.
func SetupLogger(cfg *config.Config, consoleAllowed bool) arbor.ILogger {
	logger := arbor.NewLogger()
	console, file := Outputs(cfg.Logging)
	if !consoleAllowed {
		console = false
		file = true
	}

	if file {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			if consoleAllowed {
				console = true
			}
		} else {
			logger = logger.WithFileWriter(writerConfig(cfg, models.LogWriterTypeFile, filepath.Join(logsDir, logFileName)))
		}
	}

	if console {
		logger = logger.WithConsoleWriter(writerConfig(cfg, models.LogWriterTypeConsole, ""))
	}

	// In-memory ring for recent log inspection
	logger = logger.WithMemoryWriter(writerConfig(cfg, models.LogWriterTypeMemory, ""))
	logger = logger.WithLevelFromString(cfg.Logging.Level)

	InitLogger(logger)
	return logger
}

// writerConfig builds a writer configuration from the logging section.
func writerConfig(cfg *config.Config, writerType models.LogWriterType, filename string) models.WriterConfiguration {
	timeFormat := "15:04:05.000"
	outputType := models.OutputFormatLogfmt
	var maxSize int64 = 100 * 1024 * 1024
	maxBackups := 5

	if cfg != nil {
		if cfg.Logging.TimeFormat != "" {
			timeFormat = cfg.Logging.TimeFormat
		}
		if cfg.Logging.Format == "json" {
			outputType = models.OutputFormatJSON
		}
		if cfg.Logging.MaxSizeMB > 0 {
			maxSize = int64(cfg.Logging.MaxSizeMB) * 1024 * 1024
		}
		if cfg.Logging.MaxBackups > 0 {
			maxBackups = cfg.Logging.MaxBackups
		}
	}

	return models.WriterConfiguration{
		Type:       writerType,
		FileName:   filename,
		TimeFormat: timeFormat,
		OutputType: outputType,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}
}

// Stop flushes buffered log output before exit.
func Stop() {
	arborcommon.Stop()
}
