// Package catalog is the in-process product catalog consulted when a
// recurring order is materialized. Lookups are by product id; a missing
// product is a normal outcome (discontinued item), not an error.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	yaml "go.yaml.in/yaml/v3"
)

// Product is the live catalog entry for a product.
type Product struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	SupplierID   string `json:"supplierId" yaml:"supplier_id"`
	SupplierName string `json:"supplierName" yaml:"supplier_name"`
	PriceCents   int64  `json:"priceCents" yaml:"price_cents"`
}

type file struct {
	Products []Product `yaml:"products"`
}

// Catalog is a concurrency-safe in-memory product index.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]Product
}

func New(products ...Product) *Catalog {
	c := &Catalog{products: map[string]Product{}}
	c.Replace(products)
	return c
}

// LoadFile reads a YAML (or JSON) document with a top-level "products" list.
func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	for i, p := range f.Products {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("catalog %s: products[%d]: id required", path, i)
		}
	}
	return New(f.Products...), nil
}

// FindProductByID returns the product and whether it is still listed.
func (c *Catalog) FindProductByID(id string) (Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	return p, ok
}

// Replace swaps the whole product set.
func (c *Catalog) Replace(products []Product) {
	m := make(map[string]Product, len(products))
	for _, p := range products {
		m[p.ID] = p
	}
	c.mu.Lock()
	c.products = m
	c.mu.Unlock()
}

// Remove delists a product.
func (c *Catalog) Remove(id string) {
	c.mu.Lock()
	delete(c.products, id)
	c.mu.Unlock()
}

// List returns all products ordered by id.
func (c *Catalog) List() []Product {
	c.mu.RLock()
	out := make([]Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
