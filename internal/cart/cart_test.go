package cart

import (
	"context"
	"errors"
	"testing"

	"reorder/internal/catalog"
)

func TestAddQuantityMergesLines(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	flour := catalog.Product{ID: "p-1", Name: "Flour", SupplierID: "s-1", PriceCents: 100}

	if err := c.AddQuantity(ctx, flour, 2); err != nil {
		t.Fatalf("AddQuantity: %v", err)
	}
	if err := c.AddQuantity(ctx, flour, 3); err != nil {
		t.Fatalf("AddQuantity: %v", err)
	}

	lines := c.Lines()
	if len(lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(lines))
	}
	if lines[0].Quantity != 5 {
		t.Fatalf("quantity = %d, want 5", lines[0].Quantity)
	}
}

func TestAddQuantityRejectsNonPositive(t *testing.T) {
	t.Parallel()
	c := New()
	err := c.AddQuantity(context.Background(), catalog.Product{ID: "p-1"}, 0)
	if !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
}

func TestGroupsBySupplier(t *testing.T) {
	t.Parallel()
	c := New()
	ctx := context.Background()
	_ = c.AddQuantity(ctx, catalog.Product{ID: "a", SupplierID: "s-2", PriceCents: 10}, 1)
	_ = c.AddQuantity(ctx, catalog.Product{ID: "b", SupplierID: "s-1", PriceCents: 5}, 4)
	_ = c.AddQuantity(ctx, catalog.Product{ID: "c", SupplierID: "s-2", PriceCents: 7}, 2)

	groups := c.Groups()
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].SupplierID != "s-1" || groups[0].SubtotalCents != 20 {
		t.Fatalf("unexpected first group: %+v", groups[0])
	}
	if len(groups[1].Lines) != 2 || groups[1].SubtotalCents != 24 {
		t.Fatalf("unexpected second group: %+v", groups[1])
	}
}

func TestServiceKeepsCartsPerClient(t *testing.T) {
	t.Parallel()
	s := NewService()
	_ = s.For("client-a").AddQuantity(context.Background(), catalog.Product{ID: "p"}, 1)

	if got := len(s.For("client-b").Lines()); got != 0 {
		t.Fatalf("client-b cart should be empty, got %d lines", got)
	}
	if s.For("client-a") != s.For("client-a") {
		t.Fatal("expected the same cart instance per client")
	}
}
