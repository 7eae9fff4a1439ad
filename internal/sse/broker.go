// Package sse implements a Server-Sent Events broker for real-time updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/projectsync/internal/events"
)

// Event types sent to clients.
const (
	TypeProjectsChanged = "projects.changed"
	TypeProjectsResized = "projects.resized"
	TypeAnalytics       = "analytics"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Subscriber is the notification source a Broker relays from.
type Subscriber interface {
	Subscribe(typ string, h events.Handler) func()
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, the latest project list frame and the resize throttle timestamp).
// Public methods communicate with this loop through channels, so no mutexes
// are required.
type Broker struct {
	resizeMin time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	resizeCh      chan struct{}
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker with the given resize throttle interval.
func NewBroker(resizeThrottle time.Duration) *Broker {
	if resizeThrottle <= 0 {
		resizeThrottle = 2 * time.Second
	}

	b := &Broker{
		resizeMin:     resizeThrottle,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		resizeCh:      make(chan struct{}, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func encode(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload)), nil
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastResize time.Time
	// latest projects.changed frame, replayed to new clients
	var latest []byte

	broadcast := func(event Event) {
		raw, err := encode(event)
		if err != nil {
			return
		}
		if event.Type == TypeProjectsChanged {
			latest = raw
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			if latest != nil {
				ch <- latest
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case <-b.resizeCh:
			now := time.Now()
			if now.Sub(lastResize) >= b.resizeMin {
				lastResize = now
				broadcast(Event{Type: TypeProjectsResized, Data: map[string]string{}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. The channel first
// receives the latest project list, if one was published.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// NotifyResize publishes a throttled projects.resized event.
func (b *Broker) NotifyResize() {
	if b.closed.Load() {
		return
	}
	select {
	case b.resizeCh <- struct{}{}:
	case <-b.stopped:
	}
}

// Relay forwards projects-changed and send-analytics notifications from bus
// to clients. The returned function stops relaying.
func (b *Broker) Relay(bus Subscriber) func() {
	offChanged := bus.Subscribe(events.ProjectsChanged, func(e events.Event) {
		var list any
		switch d := e.Detail.(type) {
		case events.ProjectsChangedDetail:
			list = d.Value
		case *events.ProjectsChangedDetail:
			if d != nil {
				list = d.Value
			}
		}
		b.Publish(Event{Type: TypeProjectsChanged, Data: map[string]any{"value": list}})
	})
	offAnalytics := bus.Subscribe(events.SendAnalytics, func(e events.Event) {
		b.Publish(Event{Type: TypeAnalytics, Data: e.Detail})
	})
	return func() {
		offChanged()
		offAnalytics()
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
