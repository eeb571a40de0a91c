package importer

import (
	"context"
	"strings"
	"testing"

	"garment-storefront/internal/domain"
)

type stubProductRepo struct {
	items []domain.Product
}

func (s *stubProductRepo) Upsert(_ context.Context, p domain.Product) (*domain.Product, error) {
	s.items = append(s.items, p)
	return &p, nil
}

func TestCSVImporter_Run(t *testing.T) {
	csvData := `ID,SKU,Name,Description,Price_Cents,Stock
kaos-polos,GRM-TEE-001,Plain Cotton Tee,"24s combed, regular fit",7900000,120
,,,,,
kemeja-linen,GRM-SHT-002,Linen Shirt,,18900000,
`
	repo := &stubProductRepo{}
	count, err := NewCSVImporter(strings.NewReader(csvData), repo).Run(context.Background())
	if err != nil {
		t.Fatalf("import run: %v", err)
	}
	if count != 2 || len(repo.items) != 2 {
		t.Fatalf("expected 2 products imported, got %d (%d saved)", count, len(repo.items))
	}
	first := repo.items[0]
	if first.ID != "kaos-polos" || first.PriceCents != 7900000 || first.Stock != 120 || first.Description != "24s combed, regular fit" {
		t.Fatalf("unexpected product data: %+v", first)
	}
	if repo.items[1].Stock != 0 {
		t.Fatalf("expected empty stock to default to 0, got %d", repo.items[1].Stock)
	}
}

func TestCSVImporter_RejectsInvalidRows(t *testing.T) {
	cases := map[string]string{
		"missing column": "id,sku,name\nx,y,z\n",
		"bad price":      "id,sku,name,price_cents\nkaos,SKU,Tee,free\n",
		"zero price":     "id,sku,name,price_cents\nkaos,SKU,Tee,0\n",
		"negative stock": "id,sku,name,price_cents,stock\nkaos,SKU,Tee,100,-1\n",
		"missing name":   "id,sku,name,price_cents\nkaos,SKU,,100\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			repo := &stubProductRepo{}
			if _, err := NewCSVImporter(strings.NewReader(data), repo).Run(context.Background()); err == nil {
				t.Fatalf("expected error")
			}
			if len(repo.items) != 0 {
				t.Fatalf("expected nothing saved, got %+v", repo.items)
			}
		})
	}
}

func TestCSVImporter_ReportsLine(t *testing.T) {
	data := "id,sku,name,price_cents\nkaos,SKU-1,Tee,100\nlinen,SKU-2,Shirt,abc\n"
	repo := &stubProductRepo{}
	n, err := NewCSVImporter(strings.NewReader(data), repo).Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("expected line 3 error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 imported before failure, got %d", n)
	}
}
