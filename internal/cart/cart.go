// Package cart is the in-process shopping cart that recurring orders are
// materialized into. Adding a product that is already in the cart merges the
// quantity into the existing line.
package cart

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"reorder/internal/catalog"
)

var ErrInvalidQuantity = errors.New("cart: quantity must be positive")

type Line struct {
	ProductID    string    `json:"productId"`
	ProductName  string    `json:"productName"`
	SupplierID   string    `json:"supplierId"`
	SupplierName string    `json:"supplierName"`
	Quantity     int       `json:"quantity"`
	PriceCents   int64     `json:"priceCents"`
	AddedAt      time.Time `json:"addedAt"`
}

// SupplierGroup is a per-supplier slice of the cart.
type SupplierGroup struct {
	SupplierID    string `json:"supplierId"`
	SupplierName  string `json:"supplierName"`
	Lines         []Line `json:"lines"`
	SubtotalCents int64  `json:"subtotalCents"`
}

// Cart holds one client's lines.
type Cart struct {
	mu    sync.Mutex
	now   func() time.Time
	lines map[string]*Line
	order []string
}

func New() *Cart {
	return &Cart{now: time.Now, lines: map[string]*Line{}}
}

// AddQuantity adds quantity units of p, merging into an existing line for the same product.
func (c *Cart) AddQuantity(ctx context.Context, p catalog.Product, quantity int) error {
	_ = ctx
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.lines[p.ID]; ok {
		l.Quantity += quantity
		l.PriceCents = p.PriceCents
		return nil
	}
	c.lines[p.ID] = &Line{
		ProductID:    p.ID,
		ProductName:  p.Name,
		SupplierID:   p.SupplierID,
		SupplierName: p.SupplierName,
		Quantity:     quantity,
		PriceCents:   p.PriceCents,
		AddedAt:      c.now(),
	}
	c.order = append(c.order, p.ID)
	return nil
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Line, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.lines[id])
	}
	return out
}

// Groups returns lines grouped by supplier, ordered by supplier id.
func (c *Cart) Groups() []SupplierGroup {
	idx := map[string]int{}
	var groups []SupplierGroup
	for _, l := range c.Lines() {
		i, ok := idx[l.SupplierID]
		if !ok {
			i = len(groups)
			idx[l.SupplierID] = i
			groups = append(groups, SupplierGroup{SupplierID: l.SupplierID, SupplierName: l.SupplierName})
		}
		groups[i].Lines = append(groups[i].Lines, l)
		groups[i].SubtotalCents += l.PriceCents * int64(l.Quantity)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].SupplierID < groups[j].SupplierID })
	return groups
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.lines = map[string]*Line{}
	c.order = nil
	c.mu.Unlock()
}

// Service keeps one cart per client.
type Service struct {
	mu    sync.Mutex
	carts map[string]*Cart
}

func NewService() *Service {
	return &Service{carts: map[string]*Cart{}}
}

// For returns the client's cart, creating it on first use.
func (s *Service) For(clientID string) *Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[clientID]
	if !ok {
		c = New()
		s.carts[clientID] = c
	}
	return c
}
