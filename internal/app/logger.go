package app

import (
	"strings"

	"github.com/charlesng35/filebridge/pkg/logger"
)

// ConfigureLogging initialises the global logger from the server section,
// defaulting the level to info.
func ConfigureLogging(cfg ServerConfig) error {
	level := strings.TrimSpace(cfg.LogLevel)
	if level == "" {
		level = "info"
	}
	return logger.InitWithOptions(logger.Options{
		Level: level,
		File: logger.FileOptions{
			Enabled:    cfg.LogFile.Enabled,
			Path:       cfg.LogFile.Path,
			MaxSizeMB:  cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAgeDays: cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		},
	})
}
