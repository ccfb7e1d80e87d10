package recurring

import (
	"context"

	"reorder/internal/catalog"
	logx "reorder/pkg/logx"
)

// Catalog resolves the live product behind an item. A miss means the product
// was delisted since the template was authored.
type Catalog interface {
	FindProductByID(id string) (catalog.Product, bool)
}

// Cart receives materialized lines. It merges repeated adds of one product.
type Cart interface {
	AddQuantity(ctx context.Context, p catalog.Product, quantity int) error
}

// Outcome summarizes one materialization.
type Outcome struct {
	OrderID      string   `json:"orderId"`
	AddedLines   int      `json:"addedLines"`
	SkippedLines int      `json:"skippedLines"`
	Stale        []string `json:"staleProductIds,omitempty"`
}

// Materializer pushes a recurring order's lines into a cart.
type Materializer struct {
	catalog Catalog
	cart    Cart
	log     logx.Logger
}

func NewMaterializer(cat Catalog, cart Cart, log logx.Logger) *Materializer {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Materializer{catalog: cat, cart: cart, log: log}
}

// Execute adds every resolvable line of o to the cart. Lines whose product
// is gone, or that the cart refuses, are skipped without affecting the rest.
// Inactive orders are not touched.
func (m *Materializer) Execute(ctx context.Context, o Order) Outcome {
	out := Outcome{OrderID: o.ID}
	if !o.IsActive {
		return out
	}
	for _, it := range o.Items {
		p, ok := m.catalog.FindProductByID(it.ProductID)
		if !ok {
			out.SkippedLines++
			out.Stale = append(out.Stale, it.ProductID)
			m.log.Debug("stale line skipped",
				logx.String("order", o.ID), logx.String("product", it.ProductID), logx.String("name", it.ProductName))
			continue
		}
		if err := m.cart.AddQuantity(ctx, p, it.Quantity); err != nil {
			out.SkippedLines++
			m.log.Warn("cart rejected line",
				logx.String("order", o.ID), logx.String("product", it.ProductID), logx.Err(err))
			continue
		}
		out.AddedLines++
	}
	return out
}
