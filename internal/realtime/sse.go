package realtime

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kittykibble/kibble-backend/pkg/logger"
)

const defaultHeartbeat = 25 * time.Second

// Streamer serves hub events as text/event-stream.
type Streamer struct {
	hub       *Hub
	logg      *logger.Logger
	heartbeat time.Duration
}

func NewStreamer(hub *Hub, logg *logger.Logger, heartbeat time.Duration) *Streamer {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &Streamer{hub: hub, logg: logg, heartbeat: heartbeat}
}

// Serve blocks until the client disconnects or the hub closes.
func (s *Streamer) Serve(w http.ResponseWriter, r *http.Request, filter Filter) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}
	sub := s.hub.Subscribe(filter)
	if sub == nil {
		return fmt.Errorf("hub closed")
	}
	defer s.hub.Unsubscribe(sub)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ctx := r.Context()
	s.logg.Debug(s.logg.WithField(ctx, "topic", filter.Topic), "stream opened")
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := writeEvent(w, ev); err != nil {
				return nil
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Topic, data)
	return err
}
