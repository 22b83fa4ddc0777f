package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	redisx "github.com/yungbote/mindjourney-backend/internal/clients/redis"
	"github.com/yungbote/mindjourney-backend/internal/platform/logger"
)

// AllChannel receives every event regardless of entry.
const AllChannel = "*"

type Client struct {
	ID       uuid.UUID
	Channels map[string]bool
	Outbound chan redisx.Event
	done     chan struct{}
}

// Hub fans pipeline events out to SSE clients subscribed by entry id.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
	heartbeat     time.Duration
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:           log.With("component", "EventHub"),
		subscriptions: make(map[string]map[*Client]bool),
		heartbeat:     15 * time.Second,
	}
}

func (h *Hub) NewClient() *Client {
	return &Client{
		ID:       uuid.New(),
		Channels: make(map[string]bool),
		Outbound: make(chan redisx.Event, 16),
		done:     make(chan struct{}),
	}
}

func (h *Hub) Subscribe(c *Client, channel string) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Channels[channel] = true
	subs, ok := h.subscriptions[channel]
	if !ok {
		subs = make(map[*Client]bool)
		h.subscriptions[channel] = subs
	}
	subs[c] = true
	h.log.Debug("Event client subscribed", "client_id", c.ID, "channel", channel)
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range c.Channels {
		if subs, ok := h.subscriptions[ch]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.subscriptions, ch)
			}
		}
	}
	c.Channels = make(map[string]bool)
}

// Subscribers counts clients on a channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[channel])
}

// Publish delivers ev to subscribers of its entry and of AllChannel. A
// client whose buffer is full misses the event.
func (h *Hub) Publish(_ context.Context, ev redisx.Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := map[*Client]bool{}
	for _, ch := range []string{ev.EntryID, AllChannel} {
		if ch == "" {
			continue
		}
		for c := range h.subscriptions[ch] {
			if seen[c] {
				continue
			}
			seen[c] = true
			select {
			case c.Outbound <- ev:
			default:
				h.log.Warn("Dropping event; client buffer full", "client_id", c.ID, "type", ev.Type)
			}
		}
	}
	return nil
}

// Forward adapts Publish to the redis forwarder callback.
func (h *Hub) Forward(ev redisx.Event) { _ = h.Publish(context.Background(), ev) }

// ServeHTTP streams the client's events until the request ends or the
// client is closed.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request, c *Client) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()
	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-c.Outbound:
			if !ok {
				return
			}
			raw, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("Failed to marshal event", "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, raw)
			flusher.Flush()
		}
	}
}

func (h *Hub) CloseClient(c *Client) {
	h.removeClient(c)
	close(c.done)
}
