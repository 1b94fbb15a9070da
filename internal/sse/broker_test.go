package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// drain collects messages from ch until it stays quiet for idle.
func drain(ch chan []byte, idle time.Duration) []string {
	var out []string
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-time.After(idle):
			return out
		}
	}
}

func countPrefix(msgs []string, prefix string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, prefix) {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(20*time.Millisecond, 100*time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(20*time.Millisecond, 100*time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: "reminder.due", Data: map[string]string{"id": "r1"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: reminder.due") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"id":"r1"`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestNotifyCoalescesDuplicates(t *testing.T) {
	b := NewBroker(50*time.Millisecond, time.Hour, "tasks")
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// The store hook and the watcher both report the same write.
	b.Notify("tasks")
	b.Notify("tasks")
	b.Notify("notes")

	msgs := drain(ch, 200*time.Millisecond)
	if got := countPrefix(msgs, "event: tasks.changed"); got != 1 {
		t.Errorf("tasks.changed = %d, want 1", got)
	}
	if got := countPrefix(msgs, "event: notes.changed"); got != 1 {
		t.Errorf("notes.changed = %d, want 1", got)
	}
	if got := countPrefix(msgs, "event: "+StatsEvent); got != 1 {
		t.Errorf("stats events = %d, want 1", got)
	}
}

func TestStatsThrottled(t *testing.T) {
	b := NewBroker(20*time.Millisecond, 400*time.Millisecond, "tasks", "checkins")
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify("tasks")
	time.Sleep(60 * time.Millisecond)
	b.Notify("checkins")
	time.Sleep(60 * time.Millisecond)
	b.Notify("settings")

	msgs := drain(ch, 100*time.Millisecond)
	if got := countPrefix(msgs, "event: "+StatsEvent); got != 1 {
		t.Errorf("stats events within throttle window = %d, want 1", got)
	}

	// The pending stats update is delivered once the window passes.
	msgs = drain(ch, 500*time.Millisecond)
	if got := countPrefix(msgs, "event: "+StatsEvent); got != 1 {
		t.Errorf("deferred stats events = %d, want 1", got)
	}
}

func TestNonStatsKeyDoesNotEmitStats(t *testing.T) {
	b := NewBroker(20*time.Millisecond, 10*time.Millisecond, "tasks")
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Notify("settings")
	msgs := drain(ch, 150*time.Millisecond)
	if len(msgs) != 1 || !strings.HasPrefix(msgs[0], "event: settings.changed") {
		t.Errorf("msgs = %q", msgs)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(20*time.Millisecond, 100*time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := &lockedRecorder{ResponseRecorder: httptest.NewRecorder()}

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Notify("reminders")
	time.Sleep(100 * time.Millisecond)

	cancel()
	<-done

	body := w.body()
	if !strings.Contains(body, "event: reminders.changed") {
		t.Errorf("handler output missing event: %q", body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q, want %q", ct, "text/event-stream")
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second, time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for range 70 {
		b.Publish(Event{Type: "test", Data: map[string]string{"i": "x"}})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(20*time.Millisecond, 100*time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.Publish(Event{Type: "tasks.changed"})
	b.Notify("tasks")
}

// lockedRecorder guards the body so the test can read it while the handler writes.
type lockedRecorder struct {
	*httptest.ResponseRecorder
	mu sync.Mutex
}

func (r *lockedRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ResponseRecorder.Write(p)
}

func (r *lockedRecorder) body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Body.String()
}
