package app

import (
	"strings"

	"reorder/internal/config"
	"reorder/internal/storage"
	logx "reorder/pkg/logx"
)

// mapStorageConfig turns the storage section into a driver config. The
// section has already passed config.Validate.
func mapStorageConfig(cfg *config.Config, res config.Resolved) storage.Config {
	sc := cfg.Storage
	driver := strings.ToLower(strings.TrimSpace(sc.Driver))
	if driver == "" {
		driver = "memory"
	}
	out := storage.Config{Driver: driver}
	switch driver {
	case "file":
		out.Path = strings.TrimSpace(sc.Path)
	case "sqlite", "sqlite3":
		out.Path = strings.TrimSpace(sc.Path)
		out.BusyTimeout = res.BusyTimeout
	case "postgres", "postgresql", "pgx":
		out.DSN = strings.TrimSpace(sc.DSN)
	}
	return out
}

func mapLogConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}
