package seed

import (
	"context"
	"fmt"

	"garment-storefront/internal/domain"
)

type productUpserter interface {
	Upsert(ctx context.Context, p domain.Product) (*domain.Product, error)
}

// Garments is the demo catalog. Prices are in rupiah cents.
var Garments = []domain.Product{
	{ID: "kaos-polos", SKU: "GRM-TEE-001", Name: "Plain Cotton Tee", Description: "24s combed cotton, regular fit", PriceCents: 7900000, Stock: 120},
	{ID: "kemeja-linen", SKU: "GRM-SHT-002", Name: "Linen Shirt", Description: "Washed linen, long sleeve", PriceCents: 18900000, Stock: 40},
	{ID: "hoodie-fleece", SKU: "GRM-HOD-003", Name: "Fleece Hoodie", Description: "280gsm fleece with kangaroo pocket", PriceCents: 24500000, Stock: 35},
	{ID: "celana-chino", SKU: "GRM-PNT-004", Name: "Chino Trousers", Description: "Stretch twill, slim taper", PriceCents: 21000000, Stock: 50},
	{ID: "jaket-denim", SKU: "GRM-JKT-005", Name: "Denim Jacket", Description: "12oz denim, trucker cut", PriceCents: 32500000, Stock: 18},
}

// Apply upserts the demo catalog. It is idempotent and resets stock to the
// seeded values.
func Apply(ctx context.Context, products productUpserter) (int, error) {
	n := 0
	for _, p := range Garments {
		if _, err := products.Upsert(ctx, p); err != nil {
			return n, fmt.Errorf("upsert product %s: %w", p.ID, err)
		}
		n++
	}
	return n, nil
}
