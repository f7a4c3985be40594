//go:build windows

package backend

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/dirwatch/corewatch/tree"
)

// windowsEngine is the external-collaborator ReadDirectoryChangesW
// backend. Only the inotify family is specified in depth (§1); this is a
// thin translation from fsnotify's per-directory watches into the same
// tree/event API, grounded on the teacher's fsnotify-based watcher.
type windowsEngine struct {
	mu       sync.Mutex
	watchers map[Watcher]*fsnotify.Watcher
	handles  map[Watcher]*tree.Handle
}

func newPlatformEngine() (platformEngine, error) {
	return &windowsEngine{
		watchers: make(map[Watcher]*fsnotify.Watcher),
		handles:  make(map[Watcher]*tree.Handle),
	}, nil
}

func (e *windowsEngine) subscribe(w Watcher, h *tree.Handle) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return &SystemCallError{Syscall: "CreateIoCompletionPort", Err: err}
	}

	err = filepath.WalkDir(w.Dir(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		_ = fw.Close()
		return &WatcherError{Path: w.Dir(), W: w, Err: err}
	}

	e.mu.Lock()
	e.watchers[w] = fw
	e.handles[w] = h
	e.mu.Unlock()

	go e.translate(w, h, fw)

	return nil
}

func (e *windowsEngine) translate(w Watcher, h *tree.Handle, fw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			e.apply(w, h, fw, ev)
			w.Notify()
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Error().Caller().Err(err).Msg("fsnotify backend error")
		}
	}
}

func (e *windowsEngine) apply(w Watcher, h *tree.Handle, fw *fsnotify.Watcher, ev fsnotify.Event) {
	path := ev.Name
	if _, ignored := w.Ignore()[path]; ignored {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Lstat(path)
		isDir := err == nil && info.IsDir()
		kind := tree.File
		if isDir {
			kind = tree.Dir
		}
		h.Add(path, tree.FakeIno, 0, kind, tree.FakeFileID)
		w.Events().Create(path, isDir, tree.FakeIno, tree.FakeFileID)
		if isDir {
			_ = fw.Add(path)
		}
	case ev.Op&fsnotify.Remove != 0 || ev.Op&fsnotify.Rename != 0:
		entry := h.Find(path)
		isDir := entry != nil && entry.Kind == tree.Dir
		w.Events().Remove(path, isDir, tree.FakeIno, tree.FakeFileID)
		h.Remove(path)
	case ev.Op&fsnotify.Write != 0:
		w.Events().Update(path, tree.FakeIno, tree.FakeFileID)
	}
}

func (e *windowsEngine) unsubscribe(w Watcher) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if fw, ok := e.watchers[w]; ok {
		_ = fw.Close()
		delete(e.watchers, w)
	}
	if h, ok := e.handles[w]; ok {
		h.Release()
		delete(e.handles, w)
	}

	return nil
}

func (e *windowsEngine) close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for w, fw := range e.watchers {
		_ = fw.Close()
		delete(e.watchers, w)
	}
	for w, h := range e.handles {
		h.Release()
		delete(e.handles, w)
	}

	return nil
}
