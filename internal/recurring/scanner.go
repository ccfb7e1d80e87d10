package recurring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reorder/internal/eventbus"
	logx "reorder/pkg/logx"
)

// Executor materializes a single order.
type Executor interface {
	Execute(ctx context.Context, o Order) Outcome
}

// ScanReport summarizes one pass over a client's orders.
type ScanReport struct {
	ClientID string    `json:"clientId"`
	At       time.Time `json:"at"`
	Total    int       `json:"total"`
	Due      int       `json:"due"`
	Executed int       `json:"executed"`
	Stale    int       `json:"stale"`
	Outcomes []Outcome `json:"outcomes,omitempty"`
}

// Scanner finds due orders, materializes them and re-arms them.
type Scanner struct {
	store *Store
	exec  Executor
	bus   eventbus.Bus
	log   logx.Logger
}

func NewScanner(store *Store, exec Executor, bus eventbus.Bus, log logx.Logger) *Scanner {
	if bus == nil {
		bus = eventbus.Nop{}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Scanner{store: store, exec: exec, bus: bus, log: log}
}

// Advance records an execution at now and moves the due date one cadence
// period past the calendar day of now.
func Advance(o *Order, now time.Time) {
	at := now
	o.LastExecutionDate = &at
	o.NextExecutionDate = ComputeNextExecution(o.Frequency, now)
	o.UpdatedAt = now
}

// Scan executes every active order of clientID whose due date is at or
// before now, once each, however far overdue. The due set is fixed from the
// state loaded at the start of the pass. A failure on one order never stops
// the others; persist failures are joined into the returned error.
func (s *Scanner) Scan(ctx context.Context, clientID string, now time.Time) (ScanReport, error) {
	rep := ScanReport{ClientID: clientID, At: now}
	orders, err := s.store.Load(ctx, clientID)
	if err != nil {
		return rep, err
	}
	rep.Total = len(orders)

	due := make([]int, 0, len(orders))
	for i := range orders {
		if orders[i].IsDue(now) {
			due = append(due, i)
		}
	}
	rep.Due = len(due)

	var errs []error
	for _, i := range due {
		o := orders[i]
		out := s.exec.Execute(ctx, o)
		rep.Outcomes = append(rep.Outcomes, out)

		prevDue := o.NextExecutionDate
		Advance(&orders[i], now)
		if err := s.store.Save(ctx, clientID, orders); err != nil {
			s.log.Error("persist after execution failed",
				logx.String("client", clientID), logx.String("order", o.ID), logx.Err(err))
			errs = append(errs, fmt.Errorf("order %s: %w", o.ID, err))
			continue
		}

		if out.AddedLines > 0 {
			rep.Executed++
			s.log.Info("recurring order executed",
				logx.String("client", clientID), logx.String("order", o.ID), logx.String("name", o.Name),
				logx.Int("added", out.AddedLines), logx.Int("skipped", out.SkippedLines),
				logx.Time("was_due", prevDue), logx.Time("next", orders[i].NextExecutionDate))
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeOrderExecuted, ClientID: clientID, Time: now, Data: out})
		} else {
			rep.Stale++
			s.log.Warn("recurring order had no resolvable lines; re-armed anyway",
				logx.String("client", clientID), logx.String("order", o.ID), logx.Int("items", len(o.Items)),
				logx.Time("next", orders[i].NextExecutionDate))
			s.bus.Publish(eventbus.Event{Type: eventbus.TypeOrderStale, ClientID: clientID, Time: now, Data: out})
		}
	}

	s.bus.Publish(eventbus.Event{Type: eventbus.TypeScanCompleted, ClientID: clientID, Time: now, Data: rep})
	if rep.Due > 0 {
		s.log.Debug("scan finished", logx.String("client", clientID),
			logx.Int("total", rep.Total), logx.Int("due", rep.Due), logx.Int("executed", rep.Executed))
	}
	return rep, errors.Join(errs...)
}
