package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultScanInterval = time.Hour
	DefaultHTTPAddr     = "127.0.0.1:8080"
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultBusyTimeout  = 5 * time.Second
)

// Resolved holds the parsed durations of a Config with defaults applied.
type Resolved struct {
	ScanInterval     time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	BusyTimeout      time.Duration
}

// Resolve parses duration strings and applies defaults.
func Resolve(cfg *Config) (Resolved, error) {
	var r Resolved
	if cfg == nil {
		return r, errors.New("config is nil")
	}
	var err error
	if r.ScanInterval, err = ParseDurationOrDefault("scheduler.scan_interval", cfg.Scheduler.ScanInterval, DefaultScanInterval); err != nil {
		return r, err
	}
	if r.HTTPReadTimeout, err = ParseDurationOrDefault("http.read_timeout", cfg.HTTP.ReadTimeout, DefaultReadTimeout); err != nil {
		return r, err
	}
	if r.HTTPWriteTimeout, err = ParseDurationOrDefault("http.write_timeout", cfg.HTTP.WriteTimeout, DefaultWriteTimeout); err != nil {
		return r, err
	}
	if r.BusyTimeout, err = ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, DefaultBusyTimeout); err != nil {
		return r, err
	}
	return r, nil
}

// Validate checks a parsed Config for values the daemon cannot run with.
func Validate(cfg *Config) error {
	if _, err := Resolve(cfg); err != nil {
		return err
	}
	switch d := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)); d {
	case "", "memory":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(cfg.Storage.Path) == "" {
			return fmt.Errorf("storage.path is required for driver %q", d)
		}
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", d)
		}
	default:
		return fmt.Errorf("storage.driver: unknown driver %q", cfg.Storage.Driver)
	}

	seen := map[string]struct{}{}
	for i, s := range cfg.Sessions {
		id := strings.TrimSpace(s.ClientID)
		if id == "" {
			return fmt.Errorf("sessions[%d].client_id is required", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("sessions[%d]: duplicate client_id %q", i, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// ParseDurationOrDefault parses a Go duration string found at path. Empty or
// zero yields def; negative values are rejected.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
