package service

import (
	"testing"

	"github.com/dirwatch/corewatch/event"
)

func TestSubscriptionIgnoreSet(t *testing.T) {
	sub := NewSubscription("/watched", []string{"/watched/tmp", "/watched/cache"}, true)

	if sub.Dir() != "/watched" {
		t.Fatalf("Dir() = %q, want /watched", sub.Dir())
	}
	if !sub.RecursiveRemove() {
		t.Fatal("RecursiveRemove() should reflect the constructor argument")
	}

	ignore := sub.Ignore()
	if _, ok := ignore["/watched/tmp"]; !ok {
		t.Fatal("expected /watched/tmp in the ignore set")
	}
	if _, ok := ignore["/watched/other"]; ok {
		t.Fatal("did not expect /watched/other in the ignore set")
	}
}

func TestSubscriptionNotifyDrainsAndDispatches(t *testing.T) {
	sub := NewSubscription("/watched", nil, false)

	got := -1
	sub.OnNotify(func(batch []event.Event) {
		got = len(batch)
	})

	sub.Events().Create("/watched/a", false, 1, "")
	sub.Notify()

	if got != 1 {
		t.Fatalf("callback saw %d events, want 1", got)
	}
	if sub.Events().Size() != 0 {
		t.Fatal("Notify should clear the pending event list after dispatch")
	}

	// A second Notify with nothing pending should not invoke the callback
	// again.
	got = -1
	sub.Notify()
	if got != -1 {
		t.Fatal("Notify should be a no-op when nothing is pending")
	}
}
