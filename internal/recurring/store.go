package recurring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"reorder/internal/clock"
	"reorder/internal/storage"
	logx "reorder/pkg/logx"
)

// DefaultNamespace prefixes persistence keys: "<namespace>_<clientId>".
const DefaultNamespace = "recurring_orders"

// Store is the durable collection of recurring orders, partitioned by client.
//
// Every mutation rewrites the client's whole collection; collections hold
// tens of records, not thousands. Store does no locking of its own: callers
// serialize access per client (see scheduler.Driver).
type Store struct {
	kv        storage.Store
	namespace string
	clock     clock.Clock
	newID     func() string
	log       logx.Logger

	// decode failures can repeat on every scan tick; keep the log readable.
	decodeWarn *rate.Limiter
}

type StoreOption func(*Store)

func WithNamespace(ns string) StoreOption {
	return func(s *Store) {
		if ns = strings.TrimSpace(ns); ns != "" {
			s.namespace = ns
		}
	}
}

func WithClock(c clock.Clock) StoreOption {
	return func(s *Store) { s.clock = c }
}

func WithIDFunc(fn func() string) StoreOption {
	return func(s *Store) { s.newID = fn }
}

func WithLogger(log logx.Logger) StoreOption {
	return func(s *Store) { s.log = log }
}

func NewStore(kv storage.Store, opts ...StoreOption) *Store {
	s := &Store{
		kv:         kv,
		namespace:  DefaultNamespace,
		clock:      clock.NewSystem(),
		newID:      uuid.NewString,
		log:        logx.Nop(),
		decodeWarn: rate.NewLimiter(rate.Every(30*time.Second), 3),
	}
	for _, o := range opts {
		o(s)
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// Key returns the persistence key for a client.
func (s *Store) Key(clientID string) string {
	return s.namespace + "_" + clientID
}

// Load returns the client's orders. Absent or undecodable data yields an
// empty collection; only a failure of the persistence medium is returned.
// Records owned by another client or lacking a due date are skipped, and
// the next Save of the collection removes them from the medium.
func (s *Store) Load(ctx context.Context, clientID string) ([]Order, error) {
	if strings.TrimSpace(clientID) == "" {
		return nil, ErrClientMissing
	}
	raw, ok, err := s.kv.Get(ctx, s.Key(clientID))
	if err != nil {
		return nil, fmt.Errorf("load recurring orders: %w", err)
	}
	if !ok || len(raw) == 0 {
		return []Order{}, nil
	}

	var decoded []Order
	if err := json.Unmarshal(raw, &decoded); err != nil {
		s.reportDecodeFailure(&DecodeError{ClientID: clientID, Err: err})
		return []Order{}, nil
	}

	out := make([]Order, 0, len(decoded))
	for _, o := range decoded {
		if o.ClientID != clientID {
			s.log.Warn("skipping recurring order from foreign partition; it is discarded on next save",
				logx.String("client", clientID), logx.String("order", o.ID), logx.String("owner", o.ClientID))
			continue
		}
		if o.NextExecutionDate.IsZero() {
			s.log.Warn("skipping recurring order without due date; it is discarded on next save",
				logx.String("client", clientID), logx.String("order", o.ID))
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Store) reportDecodeFailure(err *DecodeError) {
	if !s.decodeWarn.Allow() {
		s.log.Debug("recurring orders decode failed (throttled)", logx.String("client", err.ClientID))
		return
	}
	s.log.Warn("recurring orders unreadable; starting with none",
		logx.String("client", err.ClientID), logx.Err(err))
}

// Save replaces the client's persisted collection.
func (s *Store) Save(ctx context.Context, clientID string, orders []Order) error {
	if strings.TrimSpace(clientID) == "" {
		return ErrClientMissing
	}
	if orders == nil {
		orders = []Order{}
	}
	b, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("encode recurring orders: %w", err)
	}
	if err := s.kv.Put(ctx, s.Key(clientID), b); err != nil {
		return fmt.Errorf("save recurring orders: %w", err)
	}
	return nil
}

// List returns the client's orders in creation order.
func (s *Store) List(ctx context.Context, clientID string) ([]Order, error) {
	return s.Load(ctx, clientID)
}

func (s *Store) Get(ctx context.Context, clientID, id string) (Order, error) {
	orders, err := s.Load(ctx, clientID)
	if err != nil {
		return Order{}, err
	}
	i := indexOf(orders, id)
	if i < 0 {
		return Order{}, ErrNotFound
	}
	return orders[i], nil
}

// Create validates in, assigns identity and timestamps, and persists the new order.
func (s *Store) Create(ctx context.Context, clientID string, in CreateInput) (Order, error) {
	if strings.TrimSpace(clientID) == "" {
		return Order{}, ErrClientMissing
	}
	now := s.clock.Now()
	o := Order{
		ID:                s.newID(),
		Name:              strings.TrimSpace(in.Name),
		ClientID:          clientID,
		Items:             append([]Item(nil), in.Items...),
		Frequency:         in.Frequency,
		NextExecutionDate: in.StartDate,
		IsActive:          true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if o.NextExecutionDate.IsZero() && o.Frequency.Valid() {
		o.NextExecutionDate = ComputeNextExecution(o.Frequency, now)
	}
	if err := Validate(o); err != nil {
		return Order{}, err
	}

	orders, err := s.Load(ctx, clientID)
	if err != nil {
		return Order{}, err
	}
	orders = append(orders, o)
	if err := s.Save(ctx, clientID, orders); err != nil {
		return Order{}, err
	}
	s.log.Debug("recurring order created",
		logx.String("client", clientID), logx.String("order", o.ID), logx.String("frequency", string(o.Frequency)),
		logx.Time("next", o.NextExecutionDate))
	return o, nil
}

// Update merges p into the order and persists it. Identity, owner and
// creation time never change.
func (s *Store) Update(ctx context.Context, clientID, id string, p Patch) (Order, error) {
	orders, err := s.Load(ctx, clientID)
	if err != nil {
		return Order{}, err
	}
	i := indexOf(orders, id)
	if i < 0 {
		return Order{}, ErrNotFound
	}

	o := orders[i].Clone()
	if p.Name != nil {
		o.Name = strings.TrimSpace(*p.Name)
	}
	if p.Items != nil {
		o.Items = append([]Item(nil), p.Items...)
	}
	if p.Frequency != nil {
		o.Frequency = *p.Frequency
	}
	if p.NextExecutionDate != nil {
		o.NextExecutionDate = *p.NextExecutionDate
	}
	if p.IsActive != nil {
		o.IsActive = *p.IsActive
	}
	if err := Validate(o); err != nil {
		return Order{}, err
	}
	o.UpdatedAt = s.clock.Now()

	orders[i] = o
	if err := s.Save(ctx, clientID, orders); err != nil {
		return Order{}, err
	}
	return o, nil
}

// Delete removes the order. Deleting an unknown id is a no-op.
func (s *Store) Delete(ctx context.Context, clientID, id string) error {
	orders, err := s.Load(ctx, clientID)
	if err != nil {
		return err
	}
	i := indexOf(orders, id)
	if i < 0 {
		return nil
	}
	orders = append(orders[:i], orders[i+1:]...)
	return s.Save(ctx, clientID, orders)
}

// ToggleActive flips IsActive. Reactivation keeps the stored due date.
func (s *Store) ToggleActive(ctx context.Context, clientID, id string) (Order, error) {
	orders, err := s.Load(ctx, clientID)
	if err != nil {
		return Order{}, err
	}
	i := indexOf(orders, id)
	if i < 0 {
		return Order{}, ErrNotFound
	}
	orders[i].IsActive = !orders[i].IsActive
	orders[i].UpdatedAt = s.clock.Now()
	if err := s.Save(ctx, clientID, orders); err != nil {
		return Order{}, err
	}
	return orders[i], nil
}

// CountDue returns how many active orders are due at now.
func (s *Store) CountDue(ctx context.Context, clientID string, now time.Time) (int, error) {
	orders, err := s.Load(ctx, clientID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range orders {
		if o.IsDue(now) {
			n++
		}
	}
	return n, nil
}

func indexOf(orders []Order, id string) int {
	for i := range orders {
		if orders[i].ID == id {
			return i
		}
	}
	return -1
}
