package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartAddMergesMatchingTuple(t *testing.T) {
	var c Cart
	c = c.Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 2, UnitPriceCents: 1500})
	c = c.Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 1, UnitPriceCents: 1500})

	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.Items[0].Quantity)
	assert.Equal(t, "P1-0", c.Items[0].ID)
	assert.Equal(t, int64(4500), c.Total())
}

func TestCartAddDistinctTuplesAppend(t *testing.T) {
	var c Cart
	c = c.Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 1})
	c = c.Add(LineItem{ProductID: "P1", Size: "L", Color: "Black", Quantity: 1})
	c = c.Add(LineItem{ProductID: "P1", Size: "M", Color: "White", Quantity: 1})

	require.Len(t, c.Items, 3)
	seen := map[string]bool{}
	for _, it := range c.Items {
		assert.False(t, seen[it.ID], "duplicate line id %s", it.ID)
		seen[it.ID] = true
	}
}

func TestCartAddIsOrderIndependent(t *testing.T) {
	a := LineItem{ProductID: "P1", Size: "S", Color: "Red", Quantity: 2, UnitPriceCents: 100}
	b := LineItem{ProductID: "P1", Size: "S", Color: "Red", Quantity: 5, UnitPriceCents: 100}

	ab := Cart{}.Add(a).Add(b)
	ba := Cart{}.Add(b).Add(a)

	require.Len(t, ab.Items, 1)
	require.Len(t, ba.Items, 1)
	assert.Equal(t, ab.Items[0].Quantity, ba.Items[0].Quantity)
	assert.Equal(t, 7, ab.Items[0].Quantity)
}

func TestCartMutationsLeaveReceiverUntouched(t *testing.T) {
	base := Cart{}.Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 1})
	_ = base.Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 4})
	_ = base.SetQuantity(base.Items[0].ID, 9)

	assert.Equal(t, 1, base.Items[0].Quantity)
}

func TestCartAddNormalizesQuantity(t *testing.T) {
	c := Cart{}.Add(LineItem{ProductID: "P2", Size: "XL", Color: "Navy", Quantity: 0})
	assert.Equal(t, 1, c.Items[0].Quantity)

	c = Cart{}.Add(LineItem{ProductID: "P2", Size: "XL", Color: "Navy", Quantity: -4})
	assert.Equal(t, 1, c.Items[0].Quantity)
}

func TestCartRemove(t *testing.T) {
	c := Cart{}.
		Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 1}).
		Add(LineItem{ProductID: "P2", Size: "S", Color: "Red", Quantity: 1})

	same := c.Remove("P9", "M", "Black")
	assert.Equal(t, c.Items, same.Items)

	c = c.Remove("P1", "M", "Black")
	require.Len(t, c.Items, 1)
	assert.Equal(t, "P2", c.Items[0].ProductID)
}

func TestCartRemoveTrimsLikeAdd(t *testing.T) {
	c := Cart{}.Add(LineItem{ProductID: " P1 ", Size: " M", Color: "Black ", Quantity: 2})
	require.Len(t, c.Items, 1)

	c = c.Remove(" P1 ", " M", "Black ")
	assert.Empty(t, c.Items)
}

func TestCartSetQuantityClamps(t *testing.T) {
	c := Cart{}.Add(LineItem{ProductID: "P1", Size: "M", Color: "Black", Quantity: 3})
	id := c.Items[0].ID

	assert.Equal(t, 1, c.SetQuantity(id, 0).Items[0].Quantity)
	assert.Equal(t, 1, c.SetQuantity(id, -2).Items[0].Quantity)
	assert.Equal(t, 7, c.SetQuantity(id, 7).Items[0].Quantity)
	assert.Equal(t, 3, c.SetQuantity("missing", 7).Items[0].Quantity)
}

func TestWithIDsBumpsUntilUnique(t *testing.T) {
	c := Cart{Items: []LineItem{
		{ID: "P1-1", ProductID: "P1", Size: "S", Color: "Red", Quantity: 1},
		{ProductID: "P1", Size: "M", Color: "Red", Quantity: 1},
		{ProductID: "P2", Size: "M", Color: "Red", Quantity: 1},
	}}.WithIDs()

	assert.Equal(t, "P1-1", c.Items[0].ID)
	assert.Equal(t, "P1-2", c.Items[1].ID)
	assert.Equal(t, "P2-2", c.Items[2].ID)
}

func TestParseQuantity(t *testing.T) {
	cases := map[string]int{
		"3":    3,
		" 12 ": 12,
		"0":    1,
		"-5":   1,
		"abc":  1,
		"":     1,
		"2.5":  1,
	}
	for raw, want := range cases {
		if got := ParseQuantity(raw); got != want {
			t.Fatalf("ParseQuantity(%q): expected %d, got %d", raw, want, got)
		}
	}
}

func TestMergeLines(t *testing.T) {
	merged := MergeLines([]LineItem{
		{ProductID: "P1", Size: "M", Color: "Black", Quantity: 2},
		{ProductID: "P2", Size: "M", Color: "Black", Quantity: 1},
		{ProductID: "P1", Size: "M", Color: "Black", Quantity: 1},
	})

	require.Len(t, merged, 2)
	assert.Equal(t, 3, merged[0].Quantity)
	assert.Equal(t, "P2", merged[1].ProductID)
}
