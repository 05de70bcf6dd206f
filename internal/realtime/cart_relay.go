package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kittykibble/kibble-backend/internal/cart"
	"github.com/kittykibble/kibble-backend/pkg/logger"
)

type subscriber interface {
	Subscribe(ctx context.Context, channels ...string) (*goredis.PubSub, error)
}

// CartRelay forwards cart-changed signals from Redis pub/sub to the hub, so
// a mutation on any API instance reaches streams on every instance.
type CartRelay struct {
	redis subscriber
	hub   *Hub
	logg  *logger.Logger
}

func NewCartRelay(redis subscriber, hub *Hub, logg *logger.Logger) (*CartRelay, error) {
	if redis == nil || hub == nil || logg == nil {
		return nil, fmt.Errorf("redis, hub and logger required")
	}
	return &CartRelay{redis: redis, hub: hub, logg: logg}, nil
}

func (r *CartRelay) Run(ctx context.Context) error {
	ps, err := r.redis.Subscribe(ctx, cart.EventsChannel)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", cart.EventsChannel, err)
	}
	defer ps.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *CartRelay) handle(ctx context.Context, payload string) {
	var ev cart.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "payload", payload), "malformed cart event")
		return
	}
	r.hub.Publish(Event{
		Topic:  TopicCart,
		Type:   "changed",
		UserID: ev.UserID,
		Data:   json.RawMessage(payload),
	})
}
