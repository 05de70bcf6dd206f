package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kittykibble/kibble-backend/pkg/logger"
)

// OrdersChannel is the Postgres NOTIFY channel fed by the orders trigger.
const OrdersChannel = "orders_changed"

const (
	minReconnect = 2 * time.Second
	maxReconnect = time.Minute
	pingInterval = 90 * time.Second
)

type invalidator interface {
	Invalidate(ctx context.Context) error
}

// orderChange is the trigger payload.
type orderChange struct {
	ID     uuid.UUID `json:"id"`
	Op     string    `json:"op"`
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
}

// OrdersListener turns orders_changed notifications into cache invalidations
// and hub events.
type OrdersListener struct {
	dsn   string
	hub   *Hub
	cache invalidator
	logg  *logger.Logger
}

func NewOrdersListener(dsn string, hub *Hub, cache invalidator, logg *logger.Logger) (*OrdersListener, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn required")
	}
	if hub == nil {
		return nil, fmt.Errorf("hub required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OrdersListener{dsn: dsn, hub: hub, cache: cache, logg: logg}, nil
}

// Run listens until ctx is canceled.
func (l *OrdersListener) Run(ctx context.Context) error {
	ctx = l.logg.WithField(ctx, "component", "orders_listener")
	listener := pq.NewListener(l.dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			l.logg.Error(ctx, "postgres listener event", err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(OrdersChannel); err != nil {
		return fmt.Errorf("listen %s: %w", OrdersChannel, err)
	}
	l.logg.Info(ctx, "listening for order changes")

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-listener.Notify:
			if n == nil {
				// Reconnected; notifications may have been missed.
				l.resync(ctx)
				continue
			}
			l.handle(ctx, n.Extra)
		case <-ticker.C:
			if err := listener.Ping(); err != nil {
				l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "postgres listener ping failed")
			}
		}
	}
}

func (l *OrdersListener) handle(ctx context.Context, payload string) {
	var change orderChange
	if err := json.Unmarshal([]byte(payload), &change); err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "payload", payload), "malformed order notification")
		return
	}
	l.invalidate(ctx)
	l.hub.Publish(Event{
		Topic:  TopicOrders,
		Type:   change.Op,
		UserID: change.UserID,
		Data:   json.RawMessage(payload),
	})
}

func (l *OrdersListener) resync(ctx context.Context) {
	l.invalidate(ctx)
	l.hub.Publish(Event{Topic: TopicOrders, Type: "resync"})
}

func (l *OrdersListener) invalidate(ctx context.Context) {
	if l.cache == nil {
		return
	}
	if err := l.cache.Invalidate(ctx); err != nil {
		l.logg.Error(ctx, "order cache invalidation failed", err)
	}
}
