package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type LineItem struct {
	ID             string `json:"id,omitempty"`
	ProductID      string `json:"productId"`
	Name           string `json:"name,omitempty"`
	Size           string `json:"size"`
	Color          string `json:"color"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unitPriceCents"`
}

func (l LineItem) TotalCents() int64 {
	return l.UnitPriceCents * int64(l.Quantity)
}

// Matches reports whether the line has the given (product, size, color) tuple.
func (l LineItem) Matches(productID, size, color string) bool {
	return l.ProductID == productID && l.Size == size && l.Color == color
}

// Cart is an immutable value: every mutation returns a new Cart and leaves the
// receiver untouched.
type Cart struct {
	Items []LineItem `json:"items"`
}

func NewCart(items []LineItem) Cart {
	return Cart{Items: append([]LineItem(nil), items...)}.WithIDs()
}

func (c Cart) Empty() bool { return len(c.Items) == 0 }

func (c Cart) items() []LineItem {
	return append([]LineItem(nil), c.Items...)
}

// Add merges item into the cart. A line with the same tuple gets its quantity
// increased; otherwise the item is appended with a fresh line ID.
func (c Cart) Add(item LineItem) Cart {
	item.ProductID = strings.TrimSpace(item.ProductID)
	item.Size = strings.TrimSpace(item.Size)
	item.Color = strings.TrimSpace(item.Color)
	item.Quantity = NormalizeQuantity(item.Quantity)

	items := c.items()
	for i := range items {
		if items[i].Matches(item.ProductID, item.Size, item.Color) {
			items[i].Quantity += item.Quantity
			return Cart{Items: items}
		}
	}
	item.ID = ""
	items = append(items, item)
	return Cart{Items: items}.WithIDs()
}

// Remove drops the line with the given tuple. Removing an absent tuple is a no-op.
func (c Cart) Remove(productID, size, color string) Cart {
	productID = strings.TrimSpace(productID)
	size = strings.TrimSpace(size)
	color = strings.TrimSpace(color)
	items := make([]LineItem, 0, len(c.Items))
	for _, it := range c.Items {
		if it.Matches(productID, size, color) {
			continue
		}
		items = append(items, it)
	}
	return Cart{Items: items}
}

// SetQuantity replaces the quantity of one line, clamped to at least 1.
func (c Cart) SetQuantity(lineID string, quantity int) Cart {
	items := c.items()
	for i := range items {
		if items[i].ID == lineID {
			items[i].Quantity = NormalizeQuantity(quantity)
		}
	}
	return Cart{Items: items}
}

func (c Cart) Total() int64 {
	var total int64
	for _, it := range c.Items {
		total += it.TotalCents()
	}
	return total
}

func (c Cart) Quantity() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// WithIDs assigns "<productId>-<index>" to lines that have no ID, bumping the
// index until the ID is unique within the cart.
func (c Cart) WithIDs() Cart {
	items := c.items()
	used := make(map[string]bool, len(items))
	for _, it := range items {
		if it.ID != "" {
			used[it.ID] = true
		}
	}
	for i := range items {
		if items[i].ID != "" {
			continue
		}
		for n := i; ; n++ {
			id := fmt.Sprintf("%s-%d", items[i].ProductID, n)
			if !used[id] {
				items[i].ID = id
				used[id] = true
				break
			}
		}
	}
	return Cart{Items: items}
}

func NormalizeQuantity(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

// ParseQuantity reads a user-entered quantity. Anything that is not a
// positive integer becomes 1.
func ParseQuantity(raw string) int {
	q, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 1
	}
	return NormalizeQuantity(q)
}

// MergeLines consolidates lines sharing a (product, size, color) tuple,
// keeping the first occurrence's position.
func MergeLines(lines []LineItem) []LineItem {
	merged := make([]LineItem, 0, len(lines))
	for _, l := range lines {
		found := false
		for i := range merged {
			if merged[i].Matches(l.ProductID, l.Size, l.Color) {
				merged[i].Quantity += l.Quantity
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, l)
		}
	}
	return merged
}
