// Package sse implements a Server-Sent Events broker for live collection updates.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ChangedEvent is the event type emitted for a changed collection key.
func ChangedEvent(key string) string {
	return key + ".changed"
}

// StatsEvent is emitted, throttled, after a collection that feeds statistics changed.
const StatsEvent = "stats.updated"

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients, dirty keys, stats throttle timestamp). Public methods communicate
// with this loop through channels, so no mutexes are required.
//
// Notify marks a key dirty. Dirty keys are flushed every flushEvery as one
// ChangedEvent each, so the same write reported by several sources (the store
// hook and the file watcher) reaches clients once.
type Broker struct {
	flushEvery time.Duration
	statsMin   time.Duration
	statsKeys  map[string]struct{}

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	notifyCh      chan string
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that flushes dirty keys every flushEvery and emits
// StatsEvent at most once per statsEvery when one of statsKeys changed.
func NewBroker(flushEvery, statsEvery time.Duration, statsKeys ...string) *Broker {
	if flushEvery <= 0 {
		flushEvery = 250 * time.Millisecond
	}
	if statsEvery <= 0 {
		statsEvery = 2 * time.Second
	}

	b := &Broker{
		flushEvery:    flushEvery,
		statsMin:      statsEvery,
		statsKeys:     make(map[string]struct{}, len(statsKeys)),
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		notifyCh:      make(chan string, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, k := range statsKeys {
		b.statsKeys[k] = struct{}{}
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	dirty := make(map[string]struct{})
	var lastStats time.Time
	statsPending := false

	ticker := time.NewTicker(b.flushEvery)
	defer ticker.Stop()

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := fmt.Appendf(nil, "event: %s\ndata: %s\n\n", event.Type, payload)

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
	}

	flush := func(now time.Time) {
		keys := make([]string, 0, len(dirty))
		for k := range dirty {
			keys = append(keys, k)
			if _, ok := b.statsKeys[k]; ok {
				statsPending = true
			}
		}
		clear(dirty)
		slices.Sort(keys)
		for _, k := range keys {
			broadcast(Event{Type: ChangedEvent(k), Data: map[string]string{"key": k}})
		}

		if statsPending && now.Sub(lastStats) >= b.statsMin {
			statsPending = false
			lastStats = now
			broadcast(Event{Type: StatsEvent, Data: map[string]string{}})
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

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case key := <-b.notifyCh:
			dirty[key] = struct{}{}

		case now := <-ticker.C:
			if len(dirty) > 0 || statsPending {
				flush(now)
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

// Subscribe adds a new client and returns its channel.
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

// Publish sends an event to all connected clients immediately.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Notify marks a collection key as changed. It has the shape of
// store.ChangeFunc and index.ChangeCallback.
func (b *Broker) Notify(key string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.notifyCh <- key:
	case <-b.stopped:
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
