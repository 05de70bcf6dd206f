package compensation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kittykibble/kibble-backend/pkg/redis"
)

const queueName = "waybill_cancellations"

// ErrMalformed marks an entry that could not be decoded. Pop has already
// parked its raw payload on the dead-letter list.
var ErrMalformed = errors.New("malformed cancellation")

// Cancellation asks the worker to delete a waybill that has no local order.
type Cancellation struct {
	WaybillRef    string    `json:"waybill_ref"`
	WaybillNumber string    `json:"waybill_number"`
	Reason        string    `json:"reason"`
	Attempts      int       `json:"attempts"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
	LastError     string    `json:"last_error,omitempty"`
}

type listStore interface {
	PushTail(ctx context.Context, key string, values ...any) error
	PopHead(ctx context.Context, key string) (string, error)
	Len(ctx context.Context, key string) (int64, error)
	QueueKey(name string) string
}

// Queue is a FIFO of pending cancellations backed by a Redis list, with a
// sibling dead-letter list for entries that exhausted their attempts.
type Queue struct {
	store   listStore
	key     string
	deadKey string
	now     func() time.Time
}

func NewQueue(store listStore) (*Queue, error) {
	if store == nil {
		return nil, fmt.Errorf("queue store required")
	}
	key := store.QueueKey(queueName)
	return &Queue{store: store, key: key, deadKey: key + ":dead", now: time.Now}, nil
}

// Enqueue appends a fresh entry; EnqueuedAt defaults to now.
func (q *Queue) Enqueue(ctx context.Context, c Cancellation) error {
	if c.WaybillRef == "" {
		return fmt.Errorf("waybill ref required")
	}
	if c.EnqueuedAt.IsZero() {
		c.EnqueuedAt = q.now().UTC()
	}
	return q.push(ctx, q.key, c)
}

// Pop returns the oldest entry, or nil when the queue is empty.
func (q *Queue) Pop(ctx context.Context) (*Cancellation, error) {
	raw, err := q.store.PopHead(ctx, q.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("pop cancellation: %w", err)
	}
	var c Cancellation
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		if pushErr := q.store.PushTail(ctx, q.deadKey, raw); pushErr != nil {
			return nil, fmt.Errorf("park malformed cancellation %q: %w", raw, pushErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &c, nil
}

func (q *Queue) Requeue(ctx context.Context, c Cancellation) error {
	return q.push(ctx, q.key, c)
}

func (q *Queue) DeadLetter(ctx context.Context, c Cancellation) error {
	return q.push(ctx, q.deadKey, c)
}

func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.store.Len(ctx, q.key)
}

func (q *Queue) DeadDepth(ctx context.Context) (int64, error) {
	return q.store.Len(ctx, q.deadKey)
}

func (q *Queue) push(ctx context.Context, key string, c Cancellation) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cancellation: %w", err)
	}
	if err := q.store.PushTail(ctx, key, string(payload)); err != nil {
		return fmt.Errorf("push cancellation: %w", err)
	}
	return nil
}
