// Package scheduler runs the periodic scan of one client's recurring orders
// and serializes every operation on that client's collection.
package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"reorder/internal/clock"
	"reorder/internal/eventbus"
	"reorder/internal/recurring"
	logx "reorder/pkg/logx"
)

// DefaultInterval is the scan period when none is configured.
const DefaultInterval = time.Hour

var ErrClientMissing = errors.New("scheduler: client id is required")

type Config struct {
	ClientID string
	Interval time.Duration
}

// Deps are the collaborators of a driver. Catalog and Cart belong to the
// client the driver serves.
type Deps struct {
	Store   *recurring.Store
	Catalog recurring.Catalog
	Cart    recurring.Cart
	Bus     eventbus.Bus
	Clock   clock.Clock
	Log     logx.Logger
}

// Snapshot is a point-in-time view of a driver.
type Snapshot struct {
	ClientID  string                `json:"clientId"`
	Running   bool                  `json:"running"`
	Interval  time.Duration         `json:"interval"`
	Next      time.Time             `json:"next,omitempty"`
	Prev      time.Time             `json:"prev,omitempty"`
	Scans     uint64                `json:"scans"`
	LastScan  *recurring.ScanReport `json:"lastScan,omitempty"`
	LastError string                `json:"lastError,omitempty"`
}

// Driver owns the scan timer of one client session. Every read and write of
// the client's collection goes through mu, so a scan never interleaves with
// an edit or a manual execution.
type Driver struct {
	clientID string
	store    *recurring.Store
	mat      *recurring.Materializer
	scanner  *recurring.Scanner
	clock    clock.Clock
	log      logx.Logger

	mu sync.Mutex

	// lifecycle state, guarded by lmu. ctx is detached from the caller's
	// cancellation: Stop never interrupts a scan.
	lmu      sync.Mutex
	interval time.Duration
	c        *cron.Cron
	entryID  cron.EntryID
	ctx      context.Context

	smu      sync.Mutex
	scans    uint64
	lastScan *recurring.ScanReport
	lastErr  string
}

func New(cfg Config, deps Deps) (*Driver, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, ErrClientMissing
	}
	if deps.Store == nil || deps.Catalog == nil || deps.Cart == nil {
		return nil, errors.New("scheduler: store, catalog and cart are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	log := deps.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("client", clientID))
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	mat := recurring.NewMaterializer(deps.Catalog, deps.Cart, log)
	return &Driver{
		clientID: clientID,
		store:    deps.Store,
		mat:      mat,
		scanner:  recurring.NewScanner(deps.Store, mat, deps.Bus, log),
		clock:    deps.Clock,
		log:      log,
		interval: interval,
	}, nil
}

func (d *Driver) ClientID() string { return d.clientID }

// Start scans once, then every interval until Stop. Overlapping ticks are
// skipped. Calling Start on a running driver is a no-op.
func (d *Driver) Start(ctx context.Context) error {
	d.lmu.Lock()
	if d.c != nil {
		d.lmu.Unlock()
		return nil
	}
	d.ctx = context.WithoutCancel(ctx)
	cl := logx.CronLogger(d.log)
	d.c = cron.New(
		cron.WithLocation(time.Local),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	d.entryID = d.c.Schedule(cron.Every(d.interval), cron.FuncJob(d.tick))
	d.c.Start()
	interval := d.interval
	runCtx := d.ctx
	d.lmu.Unlock()

	d.log.Info("recurring scheduler started", logx.Duration("interval", interval))
	if _, err := d.ScanNow(runCtx); err != nil {
		d.log.Warn("initial scan failed", logx.Err(err))
	}
	return nil
}

// Stop halts the timer and waits for an in-flight scan. ctx only bounds the
// wait: a scan still running when ctx ends completes in the background.
func (d *Driver) Stop(ctx context.Context) {
	d.lmu.Lock()
	c := d.c
	d.c, d.ctx = nil, nil
	d.lmu.Unlock()
	if c == nil {
		return
	}

	start := time.Now()
	select {
	case <-c.Stop().Done():
		d.log.Info("recurring scheduler stopped", logx.Duration("took", time.Since(start)))
	case <-ctx.Done():
		d.log.Warn("recurring scheduler stopped; in-flight scan left to finish",
			logx.Duration("waited", time.Since(start)), logx.Err(ctx.Err()))
	}
}

// SetInterval changes the scan period. A running driver is re-armed
// immediately; the next tick is one full interval away.
func (d *Driver) SetInterval(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	d.lmu.Lock()
	defer d.lmu.Unlock()
	if interval == d.interval {
		return
	}
	old := d.interval
	d.interval = interval
	if d.c != nil {
		d.c.Remove(d.entryID)
		d.entryID = d.c.Schedule(cron.Every(interval), cron.FuncJob(d.tick))
	}
	d.log.Info("scan interval changed", logx.Duration("from", old), logx.Duration("to", interval))
}

func (d *Driver) tick() {
	d.lmu.Lock()
	ctx := d.ctx
	d.lmu.Unlock()
	if ctx == nil {
		return
	}
	if _, err := d.ScanNow(ctx); err != nil {
		d.log.Warn("scheduled scan failed", logx.Err(err))
	}
}

// ScanNow runs one scan pass immediately.
func (d *Driver) ScanNow(ctx context.Context) (recurring.ScanReport, error) {
	d.mu.Lock()
	rep, err := d.scanner.Scan(ctx, d.clientID, d.clock.Now())
	d.mu.Unlock()

	d.smu.Lock()
	d.scans++
	d.lastScan = &rep
	d.lastErr = ""
	if err != nil {
		d.lastErr = err.Error()
	}
	d.smu.Unlock()
	return rep, err
}

// ExecuteNow materializes one order on demand and advances it as a scan
// would. An inactive order is left untouched and yields an empty outcome.
func (d *Driver) ExecuteNow(ctx context.Context, id string) (recurring.Outcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	orders, err := d.store.Load(ctx, d.clientID)
	if err != nil {
		return recurring.Outcome{}, err
	}
	i := -1
	for k := range orders {
		if orders[k].ID == id {
			i = k
			break
		}
	}
	if i < 0 {
		return recurring.Outcome{}, recurring.ErrNotFound
	}
	if !orders[i].IsActive {
		return recurring.Outcome{OrderID: id}, nil
	}

	now := d.clock.Now()
	out := d.mat.Execute(ctx, orders[i])
	recurring.Advance(&orders[i], now)
	if err := d.store.Save(ctx, d.clientID, orders); err != nil {
		return out, err
	}
	d.log.Info("recurring order executed on demand",
		logx.String("order", id), logx.Int("added", out.AddedLines), logx.Int("skipped", out.SkippedLines),
		logx.Time("next", orders[i].NextExecutionDate))
	return out, nil
}

func (d *Driver) List(ctx context.Context) ([]recurring.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.List(ctx, d.clientID)
}

func (d *Driver) Get(ctx context.Context, id string) (recurring.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Get(ctx, d.clientID, id)
}

func (d *Driver) Create(ctx context.Context, in recurring.CreateInput) (recurring.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Create(ctx, d.clientID, in)
}

func (d *Driver) Update(ctx context.Context, id string, p recurring.Patch) (recurring.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Update(ctx, d.clientID, id, p)
}

func (d *Driver) Delete(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Delete(ctx, d.clientID, id)
}

func (d *Driver) ToggleActive(ctx context.Context, id string) (recurring.Order, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.ToggleActive(ctx, d.clientID, id)
}

// CountDue reports how many active orders are due right now.
func (d *Driver) CountDue(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.CountDue(ctx, d.clientID, d.clock.Now())
}

func (d *Driver) Snapshot() Snapshot {
	d.lmu.Lock()
	snap := Snapshot{ClientID: d.clientID, Interval: d.interval, Running: d.c != nil}
	if d.c != nil {
		e := d.c.Entry(d.entryID)
		snap.Next, snap.Prev = e.Next, e.Prev
	}
	d.lmu.Unlock()

	d.smu.Lock()
	snap.Scans = d.scans
	snap.LastError = d.lastErr
	if d.lastScan != nil {
		rep := *d.lastScan
		snap.LastScan = &rep
	}
	d.smu.Unlock()
	return snap
}
