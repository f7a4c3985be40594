//go:build darwin

package backend

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsevents"
	"github.com/rs/zerolog/log"

	"github.com/dirwatch/corewatch/tree"
)

// darwinEngine is the external-collaborator FSEvents backend. Only the
// inotify family is specified in depth (§1); this is a thin translation
// from FSEvents' own coalesced, recursive notifications into the same
// tree/event API, grounded on the teacher's fsevents-based watcher.
type darwinEngine struct {
	mu      sync.Mutex
	streams map[Watcher]*fsevents.EventStream
	handles map[Watcher]*tree.Handle
}

func newPlatformEngine() (platformEngine, error) {
	return &darwinEngine{
		streams: make(map[Watcher]*fsevents.EventStream),
		handles: make(map[Watcher]*tree.Handle),
	}, nil
}

func (e *darwinEngine) subscribe(w Watcher, h *tree.Handle) error {
	dev, err := fsevents.DeviceForPath(w.Dir())
	if err != nil {
		return &WatcherError{Path: w.Dir(), W: w, Err: err}
	}

	stream := &fsevents.EventStream{
		Paths:   []string{w.Dir()},
		Latency: 100 * time.Millisecond,
		Device:  dev,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot,
	}
	stream.Start()

	e.mu.Lock()
	e.streams[w] = stream
	e.handles[w] = h
	e.mu.Unlock()

	go e.translate(w, h, stream)

	return nil
}

func (e *darwinEngine) translate(w Watcher, h *tree.Handle, stream *fsevents.EventStream) {
	for msg := range stream.Events {
		for _, ev := range msg {
			path := filepath.Clean("/" + ev.Path)
			if _, ignored := w.Ignore()[path]; ignored {
				continue
			}

			switch {
			case ev.Flags&fsevents.ItemRemoved != 0:
				entry := h.Find(path)
				ino := tree.FakeIno
				isDir := ev.Flags&fsevents.ItemIsDir != 0
				if entry != nil {
					ino = entry.Ino
				}
				w.Events().Remove(path, isDir, ino, tree.FakeFileID)
				h.Remove(path)
			case ev.Flags&fsevents.ItemCreated != 0:
				isDir := ev.Flags&fsevents.ItemIsDir != 0
				kind := tree.File
				if isDir {
					kind = tree.Dir
				}
				h.Add(path, tree.FakeIno, 0, kind, tree.FakeFileID)
				w.Events().Create(path, isDir, tree.FakeIno, tree.FakeFileID)
			case ev.Flags&fsevents.ItemModified != 0:
				w.Events().Update(path, tree.FakeIno, tree.FakeFileID)
			}
		}

		w.Notify()
	}
}

func (e *darwinEngine) unsubscribe(w Watcher) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if stream, ok := e.streams[w]; ok {
		stream.Stop()
		delete(e.streams, w)
	}
	if h, ok := e.handles[w]; ok {
		h.Release()
		delete(e.handles, w)
	}

	return nil
}

func (e *darwinEngine) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for w, stream := range e.streams {
		stream.Stop()
		delete(e.streams, w)
	}
	for w, h := range e.handles {
		h.Release()
		delete(e.handles, w)
	}

	log.Debug().Msg("darwin fsevents backend closed")
	return nil
}
