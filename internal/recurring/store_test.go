package recurring

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"reorder/internal/clock"
	"reorder/internal/storage"
	logx "reorder/pkg/logx"
)

var day0 = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

func seqIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("o-%d", n)
	}
}

func newTestStore(t *testing.T, kv storage.Store, now time.Time) *Store {
	t.Helper()
	if kv == nil {
		kv = storage.NewMemory()
	}
	return NewStore(kv, WithClock(clock.NewFixed(now)), WithIDFunc(seqIDs()))
}

func weeklyInput(name string, productIDs ...string) CreateInput {
	items := make([]Item, 0, len(productIDs))
	for _, id := range productIDs {
		items = append(items, Item{ProductID: id, ProductName: "name-" + id, Quantity: 1})
	}
	return CreateInput{Name: name, Items: items, Frequency: Weekly}
}

func TestStoreCreateDefaultsDueDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil, day0)

	o, err := s.Create(ctx, "c1", weeklyInput("  Flour  ", "p1"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if o.ID != "o-1" || o.ClientID != "c1" || o.Name != "Flour" {
		t.Fatalf("unexpected identity: %+v", o)
	}
	if !o.IsActive || o.LastExecutionDate != nil {
		t.Fatalf("new order should be active and never executed: %+v", o)
	}
	want := time.Date(2025, 1, 22, 0, 0, 0, 0, time.UTC)
	if !o.NextExecutionDate.Equal(want) {
		t.Fatalf("next = %v, want %v", o.NextExecutionDate, want)
	}
	if !o.CreatedAt.Equal(day0) || !o.UpdatedAt.Equal(day0) {
		t.Fatalf("timestamps not stamped from clock: %+v", o)
	}

	got, err := s.Get(ctx, "c1", o.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Flour" || len(got.Items) != 1 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestStoreCreateKeepsExplicitStartDate(t *testing.T) {
	t.Parallel()
	s := newTestStore(t, nil, day0)
	in := weeklyInput("Milk", "p1")
	in.StartDate = day0.Add(-48 * time.Hour)

	o, err := s.Create(context.Background(), "c1", in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !o.NextExecutionDate.Equal(in.StartDate) {
		t.Fatalf("next = %v, want %v", o.NextExecutionDate, in.StartDate)
	}
}

func TestStoreCreateRejectsInvalid(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil, day0)

	if _, err := s.Create(ctx, "c1", CreateInput{Name: "x", Frequency: Weekly}); !errors.Is(err, ErrNoItems) {
		t.Fatalf("expected ErrNoItems, got %v", err)
	}
	in := weeklyInput("x", "p1")
	in.Frequency = "hourly"
	if _, err := s.Create(ctx, "c1", in); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := s.Create(ctx, "", weeklyInput("x", "p1")); !errors.Is(err, ErrClientMissing) {
		t.Fatalf("expected ErrClientMissing, got %v", err)
	}

	list, err := s.List(ctx, "c1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("rejected creates must not persist, got %d", len(list))
	}
}

func TestStoreUpdate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil, day0)
	o, _ := s.Create(ctx, "c1", weeklyInput("Eggs", "p1"))

	name := "Eggs XL"
	freq := Monthly
	due := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	got, err := s.Update(ctx, "c1", o.ID, Patch{Name: &name, Frequency: &freq, NextExecutionDate: &due})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.ID != o.ID || got.ClientID != "c1" || !got.CreatedAt.Equal(o.CreatedAt) {
		t.Fatalf("identity changed: %+v", got)
	}
	if got.Name != name || got.Frequency != Monthly || !got.NextExecutionDate.Equal(due) {
		t.Fatalf("patch not applied: %+v", got)
	}
	if len(got.Items) != 1 {
		t.Fatalf("nil Items must leave items unchanged, got %d", len(got.Items))
	}

	bad := []Item{{ProductID: "p1", Quantity: 0}}
	if _, err := s.Update(ctx, "c1", o.ID, Patch{Items: bad}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := s.Update(ctx, "c1", "missing", Patch{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreDeleteUnknownIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil, day0)
	a, _ := s.Create(ctx, "c1", weeklyInput("A", "p1"))
	b, _ := s.Create(ctx, "c1", weeklyInput("B", "p2"))

	if err := s.Delete(ctx, "c1", "nope"); err != nil {
		t.Fatalf("Delete unknown: %v", err)
	}
	list, _ := s.List(ctx, "c1")
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}

	if err := s.Delete(ctx, "c1", a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	list, _ = s.List(ctx, "c1")
	if len(list) != 1 || list[0].ID != b.ID {
		t.Fatalf("unexpected list after delete: %+v", list)
	}
}

func TestStoreToggleActiveKeepsDueDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil, day0)
	in := weeklyInput("Rice", "p1")
	in.StartDate = day0.AddDate(0, 0, -30)
	o, _ := s.Create(ctx, "c1", in)

	off, err := s.ToggleActive(ctx, "c1", o.ID)
	if err != nil || off.IsActive {
		t.Fatalf("first toggle: %+v, %v", off, err)
	}
	on, err := s.ToggleActive(ctx, "c1", o.ID)
	if err != nil || !on.IsActive {
		t.Fatalf("second toggle: %+v, %v", on, err)
	}
	if !on.NextExecutionDate.Equal(in.StartDate) {
		t.Fatalf("reactivation moved due date to %v", on.NextExecutionDate)
	}
	if _, err := s.ToggleActive(ctx, "c1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStorePartitionsAreIsolated(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newTestStore(t, kv, day0)

	a, _ := s.Create(ctx, "alice", weeklyInput("A", "p1"))
	if _, err := s.Create(ctx, "bob", weeklyInput("B", "p2")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Get(ctx, "bob", a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("bob must not see alice's order, got %v", err)
	}
	if err := s.Delete(ctx, "bob", a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "alice", a.ID); err != nil {
		t.Fatalf("alice's order must survive bob's delete: %v", err)
	}

	if _, ok, _ := kv.Get(ctx, "recurring_orders_alice"); !ok {
		t.Fatal("expected namespaced key for alice")
	}
}

func TestStoreLoadUndecodableYieldsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newTestStore(t, kv, day0)

	if err := kv.Put(ctx, s.Key("c1"), []byte("{not json")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	for i := 0; i < 5; i++ {
		list, err := s.Load(ctx, "c1")
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(list) != 0 {
			t.Fatalf("expected empty collection, got %d", len(list))
		}
	}
}

func TestStoreLoadDropsForeignAndUndatedRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemory()
	s := newTestStore(t, kv, day0)

	raw := `[
		{"id":"a","name":"ok","clientId":"c1","items":[{"productId":"p1","quantity":1}],"frequency":"weekly","nextExecutionDate":"2025-01-10T00:00:00Z","isActive":true},
		{"id":"b","name":"foreign","clientId":"c2","items":[{"productId":"p1","quantity":1}],"frequency":"weekly","nextExecutionDate":"2025-01-10T00:00:00Z","isActive":true},
		{"id":"c","name":"undated","clientId":"c1","items":[{"productId":"p1","quantity":1}],"frequency":"weekly","isActive":true}
	]`
	if err := kv.Put(ctx, s.Key("c1"), []byte(raw)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	list, err := s.Load(ctx, "c1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(list) != 1 || list[0].ID != "a" {
		t.Fatalf("expected only record a, got %+v", list)
	}
}

func TestStoreSkippedRecordsAreAnnouncedAndDiscardedOnSave(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := storage.NewMemory()
	var logs bytes.Buffer
	s := NewStore(kv, WithClock(clock.NewFixed(day0)), WithIDFunc(seqIDs()), WithLogger(logx.NewWriter(&logs, "warn")))

	raw := `[
		{"id":"a","name":"ok","clientId":"c1","items":[{"productId":"p1","quantity":1}],"frequency":"weekly","nextExecutionDate":"2025-01-10T00:00:00Z","isActive":true},
		{"id":"b","name":"foreign","clientId":"c2","items":[{"productId":"p1","quantity":1}],"frequency":"weekly","nextExecutionDate":"2025-01-10T00:00:00Z","isActive":true},
		{"id":"c","name":"undated","clientId":"c1","items":[{"productId":"p1","quantity":1}],"frequency":"weekly","isActive":true}
	]`
	if err := kv.Put(ctx, s.Key("c1"), []byte(raw)); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Create(ctx, "c1", weeklyInput("new", "p2")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	out := logs.String()
	if n := strings.Count(out, "discarded on next save"); n != 2 {
		t.Fatalf("expected both skipped records to be announced, got %d in %s", n, out)
	}
	for _, id := range []string{`"order":"b"`, `"order":"c"`} {
		if !strings.Contains(out, id) {
			t.Fatalf("log should name %s: %s", id, out)
		}
	}

	stored, _, err := kv.Get(ctx, s.Key("c1"))
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if strings.Contains(string(stored), `"foreign"`) || strings.Contains(string(stored), `"undated"`) {
		t.Fatalf("skipped records should be gone after save: %s", stored)
	}
	list, err := s.Load(ctx, "c1")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected a and the new order, got %+v err=%v", list, err)
	}
}

func TestStoreCountDue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t, nil, day0)

	past := weeklyInput("past", "p1")
	past.StartDate = day0.Add(-time.Hour)
	exact := weeklyInput("exact", "p1")
	exact.StartDate = day0
	future := weeklyInput("future", "p1")
	future.StartDate = day0.Add(time.Hour)
	paused := weeklyInput("paused", "p1")
	paused.StartDate = day0.Add(-time.Hour)

	for _, in := range []CreateInput{past, exact, future, paused} {
		if _, err := s.Create(ctx, "c1", in); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if _, err := s.ToggleActive(ctx, "c1", "o-4"); err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}

	n, err := s.CountDue(ctx, "c1", day0)
	if err != nil {
		t.Fatalf("CountDue: %v", err)
	}
	if n != 2 {
		t.Fatalf("CountDue = %d, want 2", n)
	}
}

type brokenKV struct {
	storage.Store
	failPut bool
	failGet bool
}

var errMedium = errors.New("medium unavailable")

func (b *brokenKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if b.failGet {
		return nil, false, errMedium
	}
	return b.Store.Get(ctx, key)
}

func (b *brokenKV) Put(ctx context.Context, key string, value []byte) error {
	if b.failPut {
		return errMedium
	}
	return b.Store.Put(ctx, key, value)
}

func TestStoreSurfacesMediumErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := &brokenKV{Store: storage.NewMemory(), failGet: true}
	s := newTestStore(t, kv, day0)

	if _, err := s.Load(ctx, "c1"); !errors.Is(err, errMedium) {
		t.Fatalf("expected medium error from Load, got %v", err)
	}
	kv.failGet = false
	kv.failPut = true
	if _, err := s.Create(ctx, "c1", weeklyInput("A", "p1")); !errors.Is(err, errMedium) {
		t.Fatalf("expected medium error from Create, got %v", err)
	}
}
