package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kittykibble/kibble-backend/pkg/logger"
)

func TestHubFiltersByTopicAndUser(t *testing.T) {
	hub := NewHub(4)
	alice, bob := uuid.New(), uuid.New()

	admin := hub.Subscribe(Filter{Topic: TopicOrders})
	aliceOrders := hub.Subscribe(Filter{Topic: TopicOrders, UserID: &alice})
	aliceCart := hub.Subscribe(Filter{Topic: TopicCart, UserID: &alice})

	assert.Equal(t, 2, hub.Publish(Event{Topic: TopicOrders, Type: "insert", UserID: alice}))
	assert.Equal(t, 1, hub.Publish(Event{Topic: TopicOrders, Type: "insert", UserID: bob}))
	assert.Equal(t, 2, hub.Publish(Event{Topic: TopicOrders, Type: "resync"}))

	assert.Len(t, admin.C, 3)
	assert.Len(t, aliceOrders.C, 2)
	assert.Len(t, aliceCart.C, 0)
}

func TestHubDropsWhenSubscriberIsFull(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(Filter{})

	assert.Equal(t, 1, hub.Publish(Event{Topic: TopicCart}))
	assert.Equal(t, 0, hub.Publish(Event{Topic: TopicCart}))
	assert.EqualValues(t, 1, hub.Dropped())
	<-sub.C
	assert.Equal(t, 1, hub.Publish(Event{Topic: TopicCart}))
}

func TestHubUnsubscribeAndClose(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(Filter{})
	other := hub.Subscribe(Filter{})

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)
	_, open := <-sub.C
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())

	hub.Close()
	_, open = <-other.C
	assert.False(t, open)
	assert.Nil(t, hub.Subscribe(Filter{}))
	assert.Equal(t, 0, hub.Publish(Event{}))
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

func TestOrdersListenerHandleInvalidatesAndPublishes(t *testing.T) {
	hub := NewHub(4)
	cache := &countingInvalidator{}
	listener, err := NewOrdersListener("postgres://localhost/kibble", hub, cache, logger.Nop())
	require.NoError(t, err)

	userID := uuid.New()
	sub := hub.Subscribe(Filter{Topic: TopicOrders, UserID: &userID})
	payload := `{"id":"` + uuid.NewString() + `","op":"update","user_id":"` + userID.String() + `","status":"shipped"}`

	listener.handle(context.Background(), payload)
	listener.handle(context.Background(), "not json")

	assert.Equal(t, 1, cache.calls)
	require.Len(t, sub.C, 1)
	ev := <-sub.C
	assert.Equal(t, "update", ev.Type)
	assert.Equal(t, userID, ev.UserID)
	assert.JSONEq(t, payload, string(ev.Data))

	listener.resync(context.Background())
	assert.Equal(t, 2, cache.calls)
	assert.Equal(t, "resync", (<-sub.C).Type)
}

func TestCartRelayForwardsEvents(t *testing.T) {
	hub := NewHub(4)
	relay := &CartRelay{hub: hub, logg: logger.Nop()}
	userID := uuid.New()
	sub := hub.Subscribe(Filter{Topic: TopicCart, UserID: &userID})

	relay.handle(context.Background(), `{"user_id":"`+userID.String()+`","count":3,"total":"120.5"}`)
	relay.handle(context.Background(), `{`)

	require.Len(t, sub.C, 1)
	ev := <-sub.C
	assert.Equal(t, TopicCart, ev.Topic)
	assert.Equal(t, userID, ev.UserID)
}

func TestStreamerWritesEvents(t *testing.T) {
	hub := NewHub(4)
	streamer := NewStreamer(hub, logger.Nop(), time.Hour)
	userID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = streamer.Serve(w, r, Filter{Topic: TopicOrders, UserID: &userID})
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	hub.Publish(Event{Topic: TopicOrders, Type: "insert", UserID: userID})

	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		}
	}
	assert.Equal(t, TopicOrders, eventLine)
	var ev Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &ev))
	assert.Equal(t, "insert", ev.Type)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}
