package config

import (
	"sort"
	"strings"

	logx "reorder/pkg/logx"
)

// SummarizeConfigChange returns (1) the sorted list of changed sections,
// (2) safe structured attrs for logging (never includes the postgres DSN),
// and (3) whether a restart is needed for every change to take effect.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)
	restart := false

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Scheduler.Enabled != newCfg.Scheduler.Enabled ||
		strings.TrimSpace(oldCfg.Scheduler.ScanInterval) != strings.TrimSpace(newCfg.Scheduler.ScanInterval) {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.scan_interval", strings.TrimSpace(newCfg.Scheduler.ScanInterval)),
		)
	}

	oS, nS := oldCfg.Storage, newCfg.Storage
	if strings.TrimSpace(oS.Driver) != strings.TrimSpace(nS.Driver) ||
		strings.TrimSpace(oS.Path) != strings.TrimSpace(nS.Path) ||
		strings.TrimSpace(oS.Namespace) != strings.TrimSpace(nS.Namespace) ||
		strings.TrimSpace(oS.BusyTimeout) != strings.TrimSpace(nS.BusyTimeout) ||
		oS.DSN != nS.DSN {
		changed = append(changed, "storage")
		restart = true
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(nS.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(nS.Path) != ""),
			logx.Bool("storage.dsn_set", strings.TrimSpace(nS.DSN) != ""),
		)
	}

	if strings.TrimSpace(oldCfg.Catalog.Path) != strings.TrimSpace(newCfg.Catalog.Path) {
		changed = append(changed, "catalog")
		attrs = append(attrs, logx.String("catalog.path", strings.TrimSpace(newCfg.Catalog.Path)))
	}

	if oldCfg.HTTP != newCfg.HTTP {
		changed = append(changed, "http")
		restart = true
		attrs = append(attrs,
			logx.Bool("http.enabled", newCfg.HTTP.Enabled),
			logx.String("http.addr", strings.TrimSpace(newCfg.HTTP.Addr)),
		)
	}

	added, removed := diffSessions(oldCfg.Sessions, newCfg.Sessions)
	if len(added)+len(removed) > 0 {
		changed = append(changed, "sessions")
		attrs = append(attrs,
			logx.Int("sessions.added", len(added)),
			logx.Int("sessions.removed", len(removed)),
		)
	}

	sort.Strings(changed)
	return changed, attrs, restart
}

// DiffSessions returns the client ids present only in newCfg and only in oldCfg.
func DiffSessions(oldCfg, newCfg *Config) (added, removed []string) {
	var o, n []SessionConfig
	if oldCfg != nil {
		o = oldCfg.Sessions
	}
	if newCfg != nil {
		n = newCfg.Sessions
	}
	return diffSessions(o, n)
}

func diffSessions(oldS, newS []SessionConfig) (added, removed []string) {
	oldSet := sessionSet(oldS)
	newSet := sessionSet(newS)
	for id := range newSet {
		if _, ok := oldSet[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range oldSet {
		if _, ok := newSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func sessionSet(in []SessionConfig) map[string]struct{} {
	out := make(map[string]struct{}, len(in))
	for _, s := range in {
		if id := strings.TrimSpace(s.ClientID); id != "" {
			out[id] = struct{}{}
		}
	}
	return out
}
