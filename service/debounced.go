package service

import (
	"strings"
	"sync"
	"time"

	"github.com/dirwatch/corewatch/event"
)

// debouncedTick and debouncedQuiet match the teacher's DebouncedWatcher
// cadence (modules/watcher/debounced.go): check every 4 seconds, deliver
// an event once it has gone 10 seconds without being touched again.
const (
	debouncedTick  = 4 * time.Second
	debouncedQuiet = 10 * time.Second
)

// Debounced wraps a Subscription with the teacher's coalesce-then-flush
// delivery model (modules/watcher/debounced.go): rather than dispatching
// every notified batch immediately, events are held until they've been
// quiet for quietFor, and a directory delete discards any pending event
// for a path underneath it. This sits entirely on top of the core
// EventList coalescing — it is a delivery-cadence choice, not a
// correctness requirement.
type Debounced struct {
	sub      *Subscription
	quietFor time.Duration
	tick     time.Duration

	mu      sync.Mutex
	pending map[string]pendingEvent
	done    chan struct{}
	closed  bool

	deliver func([]event.Event)
}

type pendingEvent struct {
	evt  event.Event
	seen time.Time
}

// NewDebounced wraps sub. deliver is invoked with a batch of settled
// events once per tick where at least one event has gone quiet.
func NewDebounced(sub *Subscription, tick, quietFor time.Duration, deliver func([]event.Event)) *Debounced {
	d := &Debounced{
		sub:      sub,
		quietFor: quietFor,
		tick:     tick,
		pending:  make(map[string]pendingEvent),
		done:     make(chan struct{}),
		deliver:  deliver,
	}

	sub.OnNotify(d.receive)
	go d.flushLoop()

	return d
}

func (d *Debounced) receive(batch []event.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	for _, e := range batch {
		if e.Type() == event.TypeDelete && e.IsDir {
			d.removeSuperseded(e.Path)
		}
		d.pending[e.Path] = pendingEvent{evt: e, seen: now}
	}
}

// removeSuperseded drops any pending event whose path is underneath a
// directory that was just deleted, since the more important underlying
// directory-delete event already covers it. Must be called with mu held.
func (d *Debounced) removeSuperseded(dir string) {
	prefix := dir + "/"
	for path := range d.pending {
		if path != dir && strings.HasPrefix(path, prefix) {
			delete(d.pending, path)
		}
	}
}

func (d *Debounced) flushLoop() {
	t := time.NewTicker(d.tick)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			d.flush()
		case <-d.done:
			return
		}
	}
}

func (d *Debounced) flush() {
	d.mu.Lock()

	var ready []event.Event
	now := time.Now()
	for path, pe := range d.pending {
		if now.Sub(pe.seen) >= d.quietFor {
			ready = append(ready, pe.evt)
			delete(d.pending, path)
		}
	}

	deliver := d.deliver
	d.mu.Unlock()

	if len(ready) > 0 && deliver != nil {
		deliver(ready)
	}
}

// Close stops the flush loop. Pending events that never settled are
// discarded.
func (d *Debounced) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.done)
}
