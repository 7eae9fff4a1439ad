package events

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDispatchInSubscriptionOrder(t *testing.T) {
	b := NewBus()
	var got []string
	b.Subscribe(DataImported, func(Event) { got = append(got, "first") })
	b.Subscribe(DataImported, func(Event) { got = append(got, "second") })
	b.Subscribe(ProjectsChanged, func(Event) { got = append(got, "other") })

	b.Dispatch(Event{Type: DataImported})

	assert.Equal(t, []string{"first", "second"}, got)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBus()
	calls := 0
	unsub := b.Subscribe(ProjectObjectDeleted, func(Event) { calls++ })
	require.Equal(t, 1, b.Count(ProjectObjectDeleted))

	unsub()
	unsub()
	b.Dispatch(Event{Type: ProjectObjectDeleted})

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, b.Count(ProjectObjectDeleted))
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	b := NewBus()
	var calls []string
	var unsubSecond func()
	b.Subscribe(DataImported, func(Event) {
		calls = append(calls, "first")
		unsubSecond()
	})
	unsubSecond = b.Subscribe(DataImported, func(Event) { calls = append(calls, "second") })

	// The in-flight dispatch still sees the snapshot taken before it started.
	b.Dispatch(Event{Type: DataImported})
	b.Dispatch(Event{Type: DataImported})

	assert.Equal(t, []string{"first", "second", "first"}, calls)
}

func TestHandlerMayDispatch(t *testing.T) {
	b := NewBus()
	var seen []string
	b.Subscribe(DataImported, func(e Event) {
		seen = append(seen, e.Type)
		b.Dispatch(Event{Type: ProjectsChanged})
	})
	b.Subscribe(ProjectsChanged, func(e Event) { seen = append(seen, e.Type) })

	b.Dispatch(Event{Type: DataImported})

	assert.Equal(t, []string{DataImported, ProjectsChanged}, seen)
}

func TestConcurrentSubscribeAndDispatch(t *testing.T) {
	b := NewBus()
	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			unsub := b.Subscribe(SendAnalytics, func(Event) {
				mu.Lock()
				count++
				mu.Unlock()
			})
			defer unsub()
		}()
		go func() {
			defer wg.Done()
			b.Dispatch(Event{Type: SendAnalytics})
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, b.Count(SendAnalytics))
}
