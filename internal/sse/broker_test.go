package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/projectsync/internal/events"
	"github.com/starford/projectsync/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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

func receive(t *testing.T, ch chan []byte) string {
	t.Helper()
	select {
	case msg := <-ch:
		return string(msg)
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return ""
	}
}

func TestPublishDelivery(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{Type: TypeAnalytics, Data: map[string]string{"type": "exception"}})

	s := receive(t, ch)
	if !strings.Contains(s, "event: analytics") {
		t.Errorf("missing event type in %q", s)
	}
	if !strings.Contains(s, `"type":"exception"`) {
		t.Errorf("missing data in %q", s)
	}
}

func TestLatestListReplayedToNewClients(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	b.Publish(Event{Type: TypeAnalytics, Data: "ignored"})
	b.Publish(Event{Type: TypeProjectsChanged, Data: map[string]any{"value": []string{"old"}}})
	b.Publish(Event{Type: TypeProjectsChanged, Data: map[string]any{"value": []string{"new"}}})

	// Publishing is asynchronous; wait until the loop has drained it.
	time.Sleep(50 * time.Millisecond)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	s := receive(t, ch)
	if !strings.Contains(s, "event: projects.changed") || !strings.Contains(s, `"new"`) {
		t.Errorf("replayed frame = %q", s)
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected extra frame %q", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNotifyResize_Throttle(t *testing.T) {
	b := NewBroker(500 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.NotifyResize()
	b.NotifyResize()
	b.NotifyResize()

	time.Sleep(50 * time.Millisecond)
	count := 0
loop:
	for {
		select {
		case msg := <-ch:
			if strings.Contains(string(msg), "projects.resized") {
				count++
			}
		default:
			break loop
		}
	}

	if count != 1 {
		t.Errorf("resize events = %d, want 1 (throttled)", count)
	}
}

func TestRelay(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	bus := events.NewBus()
	stop := b.Relay(bus)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	bus.Dispatch(events.Event{
		Type:   events.ProjectsChanged,
		Detail: events.ProjectsChangedDetail{Value: []models.Project{{ID: "a", Name: "alpha"}}},
	})
	s := receive(t, ch)
	if !strings.Contains(s, "event: projects.changed") || !strings.Contains(s, `"_id":"a"`) {
		t.Errorf("projects frame = %q", s)
	}

	bus.Dispatch(events.Event{
		Type:   events.SendAnalytics,
		Detail: events.Analytics{Type: "exception", Description: "boom"},
	})
	s = receive(t, ch)
	if !strings.Contains(s, "event: analytics") || !strings.Contains(s, `"description":"boom"`) {
		t.Errorf("analytics frame = %q", s)
	}

	stop()
	if n := bus.Count(events.ProjectsChanged) + bus.Count(events.SendAnalytics); n != 0 {
		t.Errorf("subscriptions left after stop = %d", n)
	}
}

func TestRelay_ClearedList(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	bus := events.NewBus()
	defer b.Relay(bus)()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	bus.Dispatch(events.Event{Type: events.ProjectsChanged, Detail: events.ProjectsChangedDetail{}})

	s := receive(t, ch)
	if !strings.Contains(s, `{"value":null}`) {
		t.Errorf("cleared frame = %q", s)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	// Start handler in background.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

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

	b.Publish(Event{Type: TypeProjectsChanged, Data: map[string]any{"value": []string{}}})
	time.Sleep(50 * time.Millisecond)

	// Cancel context to disconnect.
	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: projects.changed") {
		t.Errorf("handler output missing event: %q", body)
	}

	// Client should be cleaned up.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for i := 0; i < 70; i++ {
		b.Publish(Event{Type: TypeAnalytics, Data: map[string]string{"i": "x"}})
	}
	// If we reach here without deadlock, the test passes.
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
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
	b.Publish(Event{Type: TypeAnalytics, Data: map[string]string{"x": "y"}})
	b.NotifyResize()
}
