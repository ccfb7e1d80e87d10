package catalog

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	doc := `products:
  - id: p-1
    name: Flour 25kg
    supplier_id: s-1
    supplier_name: Mill Co
    price_cents: 2599
  - id: p-2
    name: Yeast
    supplier_id: s-2
    supplier_name: Ferments
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	p, ok := c.FindProductByID("p-1")
	if !ok {
		t.Fatal("expected p-1")
	}
	if p.SupplierName != "Mill Co" || p.PriceCents != 2599 {
		t.Fatalf("unexpected product: %+v", p)
	}
	if got := len(c.List()); got != 2 {
		t.Fatalf("List len = %d, want 2", got)
	}
}

func TestLoadFileRejectsMissingID(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("products:\n  - name: nameless\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("expected error for product without id")
	}
}

func TestRemoveMakesProductStale(t *testing.T) {
	t.Parallel()
	c := New(Product{ID: "p-1"}, Product{ID: "p-2"})
	c.Remove("p-1")
	if _, ok := c.FindProductByID("p-1"); ok {
		t.Fatal("p-1 should be gone")
	}
	if _, ok := c.FindProductByID("p-2"); !ok {
		t.Fatal("p-2 should remain")
	}
}
