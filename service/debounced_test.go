package service

import (
	"sync"
	"testing"
	"time"

	"github.com/dirwatch/corewatch/event"
)

func TestDebouncedDeliversAfterQuietPeriod(t *testing.T) {
	sub := NewSubscription("/watched", nil, false)

	var mu sync.Mutex
	var delivered []event.Event
	deliveredCh := make(chan struct{}, 1)

	deb := NewDebounced(sub, 10*time.Millisecond, 30*time.Millisecond, func(batch []event.Event) {
		mu.Lock()
		delivered = append(delivered, batch...)
		mu.Unlock()
		select {
		case deliveredCh <- struct{}{}:
		default:
		}
	})
	defer deb.Close()

	sub.Events().Create("/watched/a", false, 1, "")
	sub.Notify()

	select {
	case <-deliveredCh:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 || delivered[0].Path != "/watched/a" {
		t.Fatalf("delivered = %+v, want one event at /watched/a", delivered)
	}
}

func TestDebouncedRemovesSupersededChildren(t *testing.T) {
	sub := NewSubscription("/watched", nil, false)

	deb := NewDebounced(sub, time.Hour, time.Hour, func(batch []event.Event) {})
	defer deb.Close()

	sub.Events().Create("/watched/dir/child", false, 1, "")
	sub.Notify()

	sub.Events().Remove("/watched/dir", true, 2, "")
	sub.Notify()

	deb.mu.Lock()
	_, childStillPending := deb.pending["/watched/dir/child"]
	_, dirStillPending := deb.pending["/watched/dir"]
	deb.mu.Unlock()

	if childStillPending {
		t.Fatal("child event should have been superseded by its parent directory's delete")
	}
	if !dirStillPending {
		t.Fatal("the directory delete itself should still be pending")
	}
}

func TestDebouncedCloseStopsFlushLoop(t *testing.T) {
	sub := NewSubscription("/watched", nil, false)
	deb := NewDebounced(sub, 5*time.Millisecond, 5*time.Millisecond, func(batch []event.Event) {})
	deb.Close()
	deb.Close() // idempotent
}
