// Package session keeps one recurring-order scheduler driver per active
// client session.
package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"reorder/internal/eventbus"
	"reorder/internal/recurring/scheduler"
	logx "reorder/pkg/logx"
)

var (
	ErrInactive      = errors.New("session: client has no active session")
	ErrClientMissing = errors.New("session: client id is required")
)

// Factory builds the driver of a newly activated session.
type Factory func(clientID string, interval time.Duration) (*scheduler.Driver, error)

// Registry owns the drivers of active sessions. When running, every driver's
// scan timer is armed; otherwise sessions only serve manual operations.
type Registry struct {
	factory Factory
	bus     eventbus.Bus
	log     logx.Logger

	mu       sync.Mutex
	drivers  map[string]*scheduler.Driver
	pending  map[string]chan struct{}
	running  bool
	runCtx   context.Context
	interval time.Duration
}

func NewRegistry(factory Factory, bus eventbus.Bus, log logx.Logger) *Registry {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Registry{
		factory:  factory,
		bus:      bus,
		log:      log,
		drivers:  map[string]*scheduler.Driver{},
		pending:  map[string]chan struct{}{},
		interval: scheduler.DefaultInterval,
		runCtx:   context.Background(),
	}
}

// Activate opens a session for clientID. Activating an open session returns
// its existing driver with created=false. The driver is built and given its
// first scan outside the registry lock; concurrent activations of the same
// client wait for the first one.
func (r *Registry) Activate(ctx context.Context, clientID string) (d *scheduler.Driver, created bool, err error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, false, ErrClientMissing
	}

	r.mu.Lock()
	for {
		if d, ok := r.drivers[clientID]; ok {
			r.mu.Unlock()
			return d, false, nil
		}
		wait, ok := r.pending[clientID]
		if !ok {
			break
		}
		r.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
		r.mu.Lock()
	}
	ready := make(chan struct{})
	r.pending[clientID] = ready
	interval, running, runCtx := r.interval, r.running, r.runCtx
	r.mu.Unlock()

	d, err = r.factory(clientID, interval)
	if err == nil && running {
		err = d.Start(runCtx)
	}

	r.mu.Lock()
	delete(r.pending, clientID)
	close(ready)
	if err != nil {
		r.mu.Unlock()
		return nil, false, err
	}
	r.drivers[clientID] = d
	interval, nowRunning, runCtx := r.interval, r.running, r.runCtx
	r.mu.Unlock()

	// Run, Pause or SetInterval may have happened while unlocked
	d.SetInterval(interval)
	switch {
	case nowRunning && !running:
		if err := d.Start(runCtx); err != nil {
			r.log.Warn("session start failed", logx.String("client", clientID), logx.Err(err))
		}
	case !nowRunning && running:
		d.Stop(ctx)
	}

	r.log.Info("session activated", logx.String("client", clientID), logx.Bool("scheduled", nowRunning))
	r.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionStarted, ClientID: clientID})
	return d, true, nil
}

// Deactivate stops the session's timer, waiting for an in-flight scan
// bounded by ctx, and forgets the driver. Persisted orders are untouched.
func (r *Registry) Deactivate(ctx context.Context, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	r.mu.Lock()
	d, ok := r.drivers[clientID]
	delete(r.drivers, clientID)
	r.mu.Unlock()
	if !ok {
		return ErrInactive
	}
	d.Stop(ctx)
	r.log.Info("session deactivated", logx.String("client", clientID))
	r.bus.Publish(eventbus.Event{Type: eventbus.TypeSessionStopped, ClientID: clientID})
	return nil
}

func (r *Registry) Driver(clientID string) (*scheduler.Driver, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drivers[strings.TrimSpace(clientID)]
	if !ok {
		return nil, ErrInactive
	}
	return d, nil
}

// List returns a snapshot of every active session ordered by client id.
func (r *Registry) List() []scheduler.Snapshot {
	r.mu.Lock()
	ds := r.snapshotLocked()
	r.mu.Unlock()

	out := make([]scheduler.Snapshot, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

func (r *Registry) ClientIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.drivers))
	for id := range r.drivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetInterval changes the scan period of every current and future session.
func (r *Registry) SetInterval(d time.Duration) {
	if d <= 0 {
		d = scheduler.DefaultInterval
	}
	r.mu.Lock()
	r.interval = d
	ds := r.snapshotLocked()
	r.mu.Unlock()
	for _, drv := range ds {
		drv.SetInterval(d)
	}
}

// Run arms the scan timer of every session; sessions activated later are
// armed on activation. ctx bounds the lifetime of the timers.
func (r *Registry) Run(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.runCtx = ctx
	ds := r.snapshotLocked()
	r.mu.Unlock()

	for _, d := range ds {
		if err := d.Start(ctx); err != nil {
			r.log.Warn("session start failed", logx.String("client", d.ClientID()), logx.Err(err))
		}
	}
	r.log.Info("scheduled scans enabled", logx.Int("sessions", len(ds)))
}

// Pause disarms every scan timer. Sessions stay active for manual use.
func (r *Registry) Pause(ctx context.Context) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	ds := r.snapshotLocked()
	r.mu.Unlock()

	r.stopAll(ctx, ds)
	r.log.Info("scheduled scans disabled", logx.Int("sessions", len(ds)))
}

// Close stops every driver and forgets all sessions.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	ds := r.snapshotLocked()
	r.drivers = map[string]*scheduler.Driver{}
	r.running = false
	r.mu.Unlock()
	r.stopAll(ctx, ds)
}

func (r *Registry) stopAll(ctx context.Context, ds []*scheduler.Driver) {
	var wg sync.WaitGroup
	for _, d := range ds {
		wg.Add(1)
		go func(d *scheduler.Driver) {
			defer wg.Done()
			d.Stop(ctx)
		}(d)
	}
	wg.Wait()
}

func (r *Registry) snapshotLocked() []*scheduler.Driver {
	ds := make([]*scheduler.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		ds = append(ds, d)
	}
	return ds
}
