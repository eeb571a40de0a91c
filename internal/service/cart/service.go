package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"garment-storefront/internal/domain"
)

// StorageKey is the single key the cart is persisted under.
const StorageKey = "cart"

// Store is the client-side key-value store backing the cart.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store  Store
	logger *log.Logger
}

func New(store Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{store: store, logger: logger}
}

// Load reads the persisted cart. A missing or unreadable entry yields an
// empty cart; lines saved without an ID get one assigned.
func (s *Service) Load(ctx context.Context) domain.Cart {
	raw, err := s.store.Get(ctx, StorageKey)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.logger.Printf("cart: load error=%v", err)
		}
		return domain.Cart{}
	}
	var items []domain.LineItem
	if err := json.Unmarshal(raw, &items); err != nil {
		s.logger.Printf("cart: discard unreadable entry error=%v", err)
		return domain.Cart{}
	}
	return domain.NewCart(items)
}

func (s *Service) AddItem(ctx context.Context, c domain.Cart, item domain.LineItem) domain.Cart {
	next := c.Add(item)
	s.persist(ctx, next)
	return next
}

func (s *Service) RemoveItem(ctx context.Context, c domain.Cart, productID, size, color string) domain.Cart {
	next := c.Remove(productID, size, color)
	s.persist(ctx, next)
	return next
}

func (s *Service) SetQuantity(ctx context.Context, c domain.Cart, lineID string, quantity int) domain.Cart {
	next := c.SetQuantity(lineID, quantity)
	s.persist(ctx, next)
	return next
}

// Clear drops the persisted cart. It is called after a successful checkout.
func (s *Service) Clear(ctx context.Context) domain.Cart {
	if err := s.store.Delete(ctx, StorageKey); err != nil {
		s.logger.Printf("cart: clear error=%v", err)
	}
	return domain.Cart{}
}

type UpdateAction struct {
	Action     string `json:"action"`
	LineID     string `json:"lineId,omitempty"`
	ProductID  string `json:"productId,omitempty"`
	Name       string `json:"name,omitempty"`
	Size       string `json:"size,omitempty"`
	Color      string `json:"color,omitempty"`
	Quantity   string `json:"quantity,omitempty"`
	PriceCents int64  `json:"unitPriceCents,omitempty"`
}

// Update applies a batch of cart actions and persists the result once.
// Quantities are raw user input and go through domain.ParseQuantity.
func (s *Service) Update(ctx context.Context, c domain.Cart, actions []UpdateAction) (domain.Cart, error) {
	if len(actions) == 0 {
		return c, domain.Validation("actions", "at least one action is required")
	}
	next := c
	for i, a := range actions {
		switch strings.ToLower(strings.TrimSpace(a.Action)) {
		case "additem":
			if strings.TrimSpace(a.ProductID) == "" {
				return c, domain.Validation(fmt.Sprintf("actions[%d].productId", i), "product is required")
			}
			next = next.Add(domain.LineItem{
				ProductID:      a.ProductID,
				Name:           a.Name,
				Size:           a.Size,
				Color:          a.Color,
				Quantity:       domain.ParseQuantity(a.Quantity),
				UnitPriceCents: a.PriceCents,
			})
		case "removeitem":
			next = next.Remove(a.ProductID, a.Size, a.Color)
		case "setquantity":
			if strings.TrimSpace(a.LineID) == "" {
				return c, domain.Validation(fmt.Sprintf("actions[%d].lineId", i), "line id is required")
			}
			next = next.SetQuantity(a.LineID, domain.ParseQuantity(a.Quantity))
		default:
			return c, domain.Validation(fmt.Sprintf("actions[%d].action", i), "unsupported action %q", a.Action)
		}
	}
	s.persist(ctx, next)
	return next, nil
}

func (s *Service) persist(ctx context.Context, c domain.Cart) {
	items := c.Items
	if items == nil {
		items = []domain.LineItem{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		s.logger.Printf("cart: encode error=%v", err)
		return
	}
	if err := s.store.Put(ctx, StorageKey, raw); err != nil {
		s.logger.Printf("cart: persist lines=%d error=%v", len(items), err)
	}
}
