package cart

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventsChannel is the pub/sub channel carrying cart-changed signals.
const EventsChannel = "kb:events:cart"

// Event is the cart-changed signal observers receive after every mutation.
type Event struct {
	UserID uuid.UUID       `json:"user_id"`
	Count  int             `json:"count"`
	Total  decimal.Decimal `json:"total"`
}

// Notifier receives cart-changed signals.
type Notifier interface {
	CartChanged(ctx context.Context, event Event) error
}

type NopNotifier struct{}

func (NopNotifier) CartChanged(context.Context, Event) error { return nil }

type publisher interface {
	Publish(ctx context.Context, channel string, message any) error
}

// PubSubNotifier publishes cart events on EventsChannel so every API
// instance's realtime hub can forward them.
type PubSubNotifier struct {
	pub publisher
}

func NewPubSubNotifier(pub publisher) *PubSubNotifier {
	return &PubSubNotifier{pub: pub}
}

func (n *PubSubNotifier) CartChanged(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.pub.Publish(ctx, EventsChannel, string(payload))
}
