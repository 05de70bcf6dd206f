package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "test-scope", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first request allowed with count 1, got %v %d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expire for first increment")
	}

	if allowed, _, _ = client.FixedWindowAllow(ctx, "test-scope", 2, time.Second); !allowed {
		t.Fatalf("second request should pass")
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}

	if allowed, _, _ = client.FixedWindowAllow(ctx, "test-scope", 2, time.Second); allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestListQueueRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.QueueKey("waybill_cancellations")

	if err := client.PushTail(ctx, key, "a", "b"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if n, _ := client.Len(ctx, key); n != 2 {
		t.Fatalf("expected length 2, got %d", n)
	}
	first, err := client.PopHead(ctx, key)
	if err != nil || first != "a" {
		t.Fatalf("expected FIFO order, got %q %v", first, err)
	}
	_, _ = client.PopHead(ctx, key)
	if _, err := client.PopHead(ctx, key); !errors.Is(err, Nil) {
		t.Fatalf("expected redis.Nil on empty list, got %v", err)
	}
}

func TestUninitializedClientFails(t *testing.T) {
	var client *Client
	if err := client.Set(context.Background(), "k", "v", 0); err == nil {
		t.Fatal("expected error from nil client")
	}
	if err := client.Update(context.Background(), "k", 0, nil); err == nil {
		t.Fatal("expected error from nil raw client")
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("scope", "id"):         "kb:idempotency:scope:id",
		client.RateLimitKey("scope"):                 "kb:rate_limit:scope",
		client.RefreshSessionKey("user", "sess"):     "kb:session:refresh:user:sess",
		client.AccessSessionKey("jti"):               "kb:session:access:jti",
		client.CartKey("user"):                       "kb:cart:user",
		client.DraftKey("user"):                      "kb:checkout_draft:user",
		client.LockKey("checkout:user"):              "kb:lock:checkout:user",
		client.QueueKey("q"):                         "kb:queue:q",
		client.CacheKey("orders", "v3", "page"):      "kb:cache:orders:v3:page",
		client.CacheKey("orders", "", " version  "): "kb:cache:orders:version",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s got %s", want, got)
		}
	}
}

type mockCmdable struct {
	data        map[string]string
	lists       map[string][]string
	incr        map[string]int64
	published   map[string][]any
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:      make(map[string]string),
		lists:     make(map[string][]string),
		incr:      make(map[string]int64),
		published: make(map[string][]any),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.lists, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) RPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	for _, v := range values {
		m.lists[key] = append(m.lists[key], fmt.Sprint(v))
	}
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *mockCmdable) LPop(ctx context.Context, key string) *redis.StringCmd {
	list := m.lists[key]
	if len(list) == 0 {
		return redis.NewStringResult("", redis.Nil)
	}
	m.lists[key] = list[1:]
	return redis.NewStringResult(list[0], nil)
}

func (m *mockCmdable) LLen(ctx context.Context, key string) *redis.IntCmd {
	return redis.NewIntResult(int64(len(m.lists[key])), nil)
}

func (m *mockCmdable) Publish(ctx context.Context, channel string, message any) *redis.IntCmd {
	m.published[channel] = append(m.published[channel], message)
	return redis.NewIntResult(1, nil)
}
