package order

import (
	"context"

	"garment-storefront/internal/domain"
)

type ListFilter struct {
	CustomerID string
	State      domain.State
	Limit      int
}

// StockEffect says how a transition moves product stock for catalog lines.
type StockEffect int

const (
	StockNone    StockEffect = 0
	StockReserve StockEffect = -1
	StockRelease StockEffect = 1
)

// TransitionParams describes a compare-and-set state change. Next carries
// the new state and annotations; From is the state the row must still be in.
type TransitionParams struct {
	Next  domain.Order
	From  domain.State
	Stock StockEffect
}

type Repository interface {
	Create(ctx context.Context, o domain.Order) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, error)
	// Transition applies p atomically. If the row has left p.From it
	// returns a StateConflict error carrying the actual state.
	Transition(ctx context.Context, p TransitionParams) (*domain.Order, error)
}
