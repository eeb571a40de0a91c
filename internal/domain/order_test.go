package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func TestCustomSpecBelowMinimumBatch(t *testing.T) {
	spec := CustomOrderSpec{Colors: []ColorGroup{{Name: "Red", Sizes: []SizeQuantity{{Size: "M", Quantity: 1}}}}}

	err := spec.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	de, ok := AsError(err)
	require.True(t, ok)
	assert.Equal(t, "quantity", de.Field)
}

func TestCustomSpecMinimumBatchAcrossDistributions(t *testing.T) {
	distributions := [][]int{
		{3},
		{1, 1, 1},
		{2, 1},
		{1, 2},
	}
	for _, qs := range distributions {
		sizes := make([]SizeQuantity, 0, len(qs))
		for i, q := range qs {
			sizes = append(sizes, SizeQuantity{Size: []string{"S", "M", "L"}[i], Quantity: q})
		}
		spec := CustomOrderSpec{Colors: []ColorGroup{{Name: "Olive", Sizes: sizes}}}
		assert.NoError(t, spec.Validate(), "distribution %v", qs)
	}

	split := CustomOrderSpec{Colors: []ColorGroup{
		{Name: "Red", Sizes: []SizeQuantity{{Size: "M", Quantity: 1}}},
		{Name: "Blue", Sizes: []SizeQuantity{{Size: "L", Quantity: 1}}},
	}}
	assert.ErrorIs(t, split.Validate(), ErrValidation)

	split.Colors[1].Sizes[0].Quantity = 2
	assert.NoError(t, split.Validate())
}

func TestCustomSpecNamesFirstViolation(t *testing.T) {
	cases := []struct {
		name  string
		spec  CustomOrderSpec
		field string
	}{
		{
			name: "color without sizes",
			spec: CustomOrderSpec{Colors: []ColorGroup{
				{Name: "Red", Sizes: []SizeQuantity{{Size: "M", Quantity: 3}}},
				{Name: "Blue"},
			}},
			field: "colors[1].sizes",
		},
		{
			name: "blank size",
			spec: CustomOrderSpec{Colors: []ColorGroup{
				{Name: "Red", Sizes: []SizeQuantity{{Size: " ", Quantity: 3}}},
			}},
			field: "colors[0].sizes[0].size",
		},
		{
			name: "zero quantity size",
			spec: CustomOrderSpec{Colors: []ColorGroup{
				{Name: "Red", Sizes: []SizeQuantity{{Size: "M", Quantity: 3}, {Size: "L", Quantity: 0}}},
			}},
			field: "colors[0].sizes[1].qty",
		},
		{
			name: "blank color name",
			spec: CustomOrderSpec{Colors: []ColorGroup{
				{Name: "", Sizes: []SizeQuantity{{Size: "M", Quantity: 3}}},
			}},
			field: "colors[0].name",
		},
		{
			name: "too many reference images",
			spec: CustomOrderSpec{
				Colors:          []ColorGroup{{Name: "Red", Sizes: []SizeQuantity{{Size: "M", Quantity: 3}}}},
				ReferenceImages: []string{"a", "b", "c", "d", "e", "f"},
			},
			field: "referenceImages",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			de, ok := AsError(tc.spec.Validate())
			require.True(t, ok)
			assert.Equal(t, tc.field, de.Field)
			assert.ErrorIs(t, de, ErrValidation)
		})
	}
}

func TestNewCatalogOrderCopiesCart(t *testing.T) {
	cart := Cart{}.Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 2, UnitPriceCents: 1000})
	o := NewCatalogOrder("cust-1", cart, "  leave at door ", fixedNow)

	assert.Equal(t, StateCreated, o.State)
	assert.Equal(t, KindCatalog, o.Kind)
	assert.Equal(t, int64(2000), o.TotalCents)
	assert.Equal(t, "leave at door", o.Notes)

	o.Items[0].Quantity = 99
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestDeliveryEvidenceSameIgnoresURL(t *testing.T) {
	a := DeliveryEvidence{CarrierRef: "JNE-1", PhotoSHA256: "abc", PhotoURL: "http://x/files/1.jpg"}
	b := DeliveryEvidence{CarrierRef: " JNE-1", PhotoSHA256: "abc"}
	assert.True(t, a.Same(b))
	assert.False(t, a.Same(DeliveryEvidence{CarrierRef: "JNE-2", PhotoSHA256: "abc"}))
	assert.True(t, DeliveryEvidence{CarrierRef: "  "}.Empty())
}

func TestErrorKindsAndRetryable(t *testing.T) {
	conflict := StateConflict(StatePendingPayment, StateAwaitingVerification)
	assert.ErrorIs(t, conflict, ErrStateConflict)
	assert.True(t, Retryable(conflict))

	transport := Transport("get_order", errors.New("dial tcp: refused"))
	assert.True(t, Retryable(transport))
	assert.Contains(t, transport.Error(), "refused")

	sub := Submission(transport)
	assert.ErrorIs(t, sub, ErrSubmission)
	assert.ErrorIs(t, sub, ErrTransport)

	assert.False(t, Retryable(Validation("items", "cart is empty")))
	assert.False(t, Retryable(InvalidTransition("cancel", StateCompleted)))

	de, ok := AsError(conflict)
	require.True(t, ok)
	assert.Equal(t, StatePendingPayment, de.Expected)
	assert.Equal(t, StateAwaitingVerification, de.Actual)
}

func TestParseState(t *testing.T) {
	s, err := ParseState("InDelivery")
	require.NoError(t, err)
	assert.Equal(t, StateInDelivery, s)

	_, err = ParseState("Shipped")
	assert.Error(t, err)
	assert.True(t, StateCancelled.Terminal())
	assert.False(t, StateInDelivery.Terminal())
}
