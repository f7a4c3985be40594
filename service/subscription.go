// Package service wires the backend.Engine to a concrete Watcher
// implementation and a demo delivery model, in the shape of the
// teacher's agent package: config in, core engine underneath, a
// callback-driven event stream out.
package service

import (
	"sync"

	"github.com/dirwatch/corewatch/backend"
	"github.com/dirwatch/corewatch/event"
)

// Subscription is the concrete Watcher the backend talks to: one root
// directory, its ignore set, its pending EventList, and a callback
// invoked once per notified batch.
type Subscription struct {
	dir             string
	ignore          map[string]struct{}
	recursiveRemove bool
	events          *event.List

	mu       sync.Mutex
	callback func([]event.Event)
}

// NewSubscription builds a Subscription for dir. ignore is a list of
// absolute paths skipped verbatim by the backend before any tree/event
// mutation.
func NewSubscription(dir string, ignore []string, recursiveRemove bool) *Subscription {
	ignoreSet := make(map[string]struct{}, len(ignore))
	for _, p := range ignore {
		ignoreSet[p] = struct{}{}
	}

	return &Subscription{
		dir:             dir,
		ignore:          ignoreSet,
		recursiveRemove: recursiveRemove,
		events:          event.NewList(),
	}
}

// Dir implements backend.Watcher.
func (s *Subscription) Dir() string { return s.dir }

// Ignore implements backend.Watcher.
func (s *Subscription) Ignore() map[string]struct{} { return s.ignore }

// Events implements backend.Watcher.
func (s *Subscription) Events() *event.List { return s.events }

// RecursiveRemove implements backend.Watcher.
func (s *Subscription) RecursiveRemove() bool { return s.recursiveRemove }

// OnNotify registers the callback invoked each time Notify fires. Only
// one callback is kept; registering again replaces it.
func (s *Subscription) OnNotify(fn func([]event.Event)) {
	s.mu.Lock()
	s.callback = fn
	s.mu.Unlock()
}

// Notify implements backend.Watcher: it drains the pending event list
// and dispatches the batch to the registered callback, if any. Matches
// the spec's "periodic notify into the collaborator's callback" data
// flow directly — one dispatch per drain pass, synchronously, since
// there is no per-operation timeout in this design.
func (s *Subscription) Notify() {
	batch := s.events.Events()
	if len(batch) == 0 {
		return
	}
	s.events.Clear()

	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()

	if cb != nil {
		cb(batch)
	}
}

var _ backend.Watcher = (*Subscription)(nil)
