package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reorder/internal/cart"
	"reorder/internal/catalog"
	"reorder/internal/config"
	"reorder/internal/eventbus"
	"reorder/internal/recurring"
	"reorder/internal/recurring/scheduler"
	"reorder/internal/runtime/supervisor"
	"reorder/internal/session"
	"reorder/internal/storage"
	"reorder/internal/transport/httpapi"
	logx "reorder/pkg/logx"
)

const httpShutdownTimeout = 5 * time.Second

type App struct {
	cfgPath string

	cfgm *config.ConfigManager
	sup  *supervisor.Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	kv       storage.Store
	orders   *recurring.Store
	catalog  *catalog.Catalog
	carts    *cart.Service
	sessions *session.Registry
	api      *httpapi.Server
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	res, err := config.Resolve(cfg)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(mapLogConfig(cfg))
	log = log.With(logx.String("comp", "app"))

	sc := mapStorageConfig(cfg, res)
	kv, err := storage.Open(context.Background(), sc, log.With(logx.String("comp", "storage")))
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("storage ready", logx.String("driver", sc.Driver))

	cat, err := loadCatalog(cfg.Catalog.Path)
	if err != nil {
		_ = kv.Close()
		_ = logSvc.Close()
		return nil, err
	}
	log.Info("catalog loaded", logx.Int("products", len(cat.List())))

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     eventbus.New(),
		kv:      kv,
		catalog: cat,
		carts:   cart.NewService(),
	}
	a.orders = recurring.NewStore(kv,
		recurring.WithNamespace(cfg.Storage.Namespace),
		recurring.WithLogger(log.With(logx.String("comp", "recurring"))),
	)
	a.sessions = session.NewRegistry(a.newDriver, a.bus, log.With(logx.String("comp", "sessions")))
	a.sessions.SetInterval(res.ScanInterval)

	if cfg.HTTP.Enabled {
		a.api = httpapi.New(httpapi.Config{
			Addr:         cfg.HTTP.Addr,
			ReadTimeout:  res.HTTPReadTimeout,
			WriteTimeout: res.HTTPWriteTimeout,
			Pprof:        cfg.HTTP.Pprof,
		}, a.sessions, a.carts, log.With(logx.String("comp", "http")))
	}
	return a, nil
}

// newDriver is the session factory: one scheduler driver per client,
// sharing the store, catalog and bus, with the client's own cart.
func (a *App) newDriver(clientID string, interval time.Duration) (*scheduler.Driver, error) {
	return scheduler.New(
		scheduler.Config{ClientID: clientID, Interval: interval},
		scheduler.Deps{
			Store:   a.orders,
			Catalog: a.catalog,
			Cart:    a.carts.For(clientID),
			Bus:     a.bus,
			Log:     a.log.With(logx.String("comp", "scheduler")),
		},
	)
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return catalog.New(), nil
	}
	return catalog.LoadFile(path)
}

func (a *App) Sessions() *session.Registry { return a.sessions }

func (a *App) Carts() *cart.Service { return a.carts }

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log), supervisor.WithCancelOnError(true))
	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))

	cfg := a.cfgm.Get()
	if cfg.Scheduler.Enabled {
		a.sessions.Run(a.sup.Context())
	} else {
		a.log.Info("scheduled scans disabled; sessions serve manual operations only")
	}
	for _, s := range cfg.Sessions {
		if _, _, err := a.sessions.Activate(a.sup.Context(), s.ClientID); err != nil {
			return fmt.Errorf("activate session %q: %w", s.ClientID, err)
		}
	}

	if a.api != nil {
		a.sup.Go("http", func(c context.Context) error {
			return a.api.Serve(c, httpShutdownTimeout)
		})
	}

	events, unsub := a.bus.Subscribe(128)
	a.sup.Go0("eventbus.log", func(c context.Context) {
		defer unsub()
		for {
			select {
			case <-c.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.String("client", e.ClientID), logx.Time("time", e.Time))
			}
		}
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		lastApplied := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case newCfg, ok := <-sub:
				if !ok {
					return
				}
				// keep only the newest of a burst
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							newCfg = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(c, lastApplied, newCfg)
				lastApplied = newCfg
			}
		}
	})

	// a failed watcher (e.g. the config dir vanished) is retried with backoff
	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)

	a.log.Info("app started", logx.Int("sessions", len(cfg.Sessions)), logx.Bool("http", a.api != nil))
	return nil
}

// applyConfig hot-applies logging, scheduler, catalog and session changes.
// Storage and HTTP changes are only logged; they take effect on restart.
func (a *App) applyConfig(ctx context.Context, oldCfg, newCfg *config.Config) {
	sections, attrs, restart := config.SummarizeConfigChange(oldCfg, newCfg)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.log.Debug("config change summary", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
	if restart {
		a.log.Warn("storage or http config changed; restart required for changes to take effect")
	}

	a.logs.Apply(mapLogConfig(newCfg))

	res, err := config.Resolve(newCfg)
	if err != nil {
		a.log.Warn("invalid config; keeping previous scheduler settings", logx.Err(err))
	} else {
		a.sessions.SetInterval(res.ScanInterval)
	}
	switch {
	case oldCfg.Scheduler.Enabled && !newCfg.Scheduler.Enabled:
		a.log.Info("scheduler disabled via config")
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		a.sessions.Pause(stopCtx)
		cancel()
	case !oldCfg.Scheduler.Enabled && newCfg.Scheduler.Enabled:
		a.log.Info("scheduler enabled via config")
		a.sessions.Run(ctx)
	}

	if strings.TrimSpace(oldCfg.Catalog.Path) != strings.TrimSpace(newCfg.Catalog.Path) {
		if cat, err := loadCatalog(newCfg.Catalog.Path); err != nil {
			a.log.Warn("catalog reload failed; keeping previous", logx.Err(err))
		} else {
			a.catalog.Replace(cat.List())
			a.log.Info("catalog reloaded", logx.Int("products", len(cat.List())))
		}
	}

	added, removed := config.DiffSessions(oldCfg, newCfg)
	for _, id := range removed {
		stopCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := a.sessions.Deactivate(stopCtx, id); err != nil {
			a.log.Debug("session already closed", logx.String("client", id), logx.Err(err))
		}
		cancel()
	}
	for _, id := range added {
		if _, _, err := a.sessions.Activate(ctx, id); err != nil {
			a.log.Warn("session activation failed", logx.String("client", id), logx.Err(err))
		}
	}

	a.log.Info("config reloaded", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))

	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		a.log.Debug("stop step begin", logx.String("name", name), logx.Duration("max", max))

		stepCtx := ctx
		if dl, ok := ctx.Deadline(); ok {
			if rem := time.Until(dl); rem < max {
				max = rem
			}
		}
		if max > 0 {
			var cancel context.CancelFunc
			stepCtx, cancel = context.WithTimeout(ctx, max)
			defer cancel()
		}

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			took := time.Since(start)
			if took >= 500*time.Millisecond {
				a.log.Info("stop step end", logx.String("name", name), logx.Duration("took", took))
			} else {
				a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", took))
			}
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name), logx.Err(stepCtx.Err()), logx.Duration("elapsed", time.Since(start)))
			go func() {
				err := <-done
				a.log.Info("stop step finished after deadline",
					logx.String("name", name), logx.Err(err), logx.Duration("took", time.Since(start)))
			}()
		}
	}

	// sessions first: an in-flight scan may still be writing to storage
	step("sessions", 4*time.Second, func(c context.Context) error { a.sessions.Close(c); return nil })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	step("storage", 1*time.Second, func(c context.Context) error { return a.kv.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
