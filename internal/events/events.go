// Package events publishes order lifecycle changes to a message broker.
// Publishing happens after the state change is committed and is best
// effort: callers log failures and never retry.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"garment-storefront/internal/domain"
	"github.com/google/uuid"
)

const (
	KindCreated    = "order.created"
	KindTransition = "order.transition"
)

type Event struct {
	ID         string       `json:"id"`
	Kind       string       `json:"kind"`
	OrderID    string       `json:"orderId"`
	OrderKind  string       `json:"orderKind"`
	CustomerID string       `json:"customerId"`
	Action     string       `json:"action,omitempty"`
	From       domain.State `json:"from,omitempty"`
	To         domain.State `json:"to"`
	ActorRole  domain.Role  `json:"actorRole,omitempty"`
	OccurredAt time.Time    `json:"occurredAt"`
}

func NewCreated(o domain.Order, actor domain.Actor, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       KindCreated,
		OrderID:    o.ID,
		OrderKind:  string(o.Kind),
		CustomerID: o.CustomerID,
		To:         o.State,
		ActorRole:  actor.Role,
		OccurredAt: at.UTC(),
	}
}

func NewTransition(o domain.Order, action string, from domain.State, actor domain.Actor, at time.Time) Event {
	e := NewCreated(o, actor, at)
	e.Kind = KindTransition
	e.Action = action
	e.From = from
	return e
}

// RoutingKey is "order.<state>" in lower case, e.g. "order.pendingpayment".
func (e Event) RoutingKey() string {
	return "order." + strings.ToLower(string(e.To))
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Config struct {
	Driver       string
	AMQPURL      string
	AMQPExchange string
	KafkaBrokers []string
	KafkaTopic   string
}

// New builds the publisher selected by cfg.Driver: "amqp", "kafka" or
// "none" (the default).
func New(cfg Config, logger *log.Logger) (Publisher, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none":
		return Noop{}, nil
	case "amqp", "rabbitmq":
		p, err := NewAMQP(cfg.AMQPURL, cfg.AMQPExchange, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	case "kafka":
		p, err := NewKafka(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
