package config

// Config is the on-disk daemon configuration (JSON or YAML).
//
// Example (YAML):
//
//	logging: { level: info, console: true }
//	storage: { driver: sqlite, path: ./data/reorder.db }
//	scheduler: { enabled: true, scan_interval: 1h }
//	catalog: { path: ./catalog.yaml }
//	http: { enabled: true, addr: "127.0.0.1:8080" }
//	sessions:
//	  - client_id: bakery-42
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Catalog   CatalogConfig   `json:"catalog"`
	HTTP      HTTPConfig      `json:"http"`
	Sessions  []SessionConfig `json:"sessions,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig selects the persistence driver for recurring orders.
//
// Drivers: "memory", "file" (path is a directory), "sqlite" (path is a
// database file), "postgres" (dsn). Changing storage requires a restart.
type StorageConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path,omitempty"`
	// DSN is a postgres connection string. Never logged.
	DSN       string `json:"dsn,omitempty"`
	Namespace string `json:"namespace,omitempty"` // key prefix, default "recurring_orders"
	// BusyTimeout is a Go duration string (sqlite).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// ScanInterval is a Go duration string. Default "1h".
	ScanInterval string `json:"scan_interval,omitempty"`
}

type CatalogConfig struct {
	// Path is a YAML product list. Empty means an empty catalog.
	Path string `json:"path,omitempty"`
}

type HTTPConfig struct {
	Enabled      bool   `json:"enabled"`
	Addr         string `json:"addr,omitempty"` // default "127.0.0.1:8080"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	// Pprof mounts the runtime profiler under /debug.
	Pprof bool `json:"pprof,omitempty"`
}

// SessionConfig names a client whose session is opened at startup.
type SessionConfig struct {
	ClientID string `json:"client_id"`
}
