//go:build linux

package backend

import (
	"path/filepath"
	"sync"
	"time"
	"unsafe"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/dirwatch/corewatch/tree"
)

const inotifyMask = unix.IN_ATTRIB | unix.IN_CREATE | unix.IN_DELETE |
	unix.IN_DELETE_SELF | unix.IN_MODIFY | unix.IN_MOVE_SELF | unix.IN_MOVED_FROM |
	unix.IN_MOVED_TO | unix.IN_DONT_FOLLOW | unix.IN_ONLYDIR | unix.IN_EXCL_UNLINK

const readBufferSize = 8192

// inotifySubscription binds one kernel watch descriptor to one directory
// inside one watcher's tree. The same descriptor may appear in more than
// one subscription if two watchers overlap, hence the wd -> []subscription
// multimap in linuxEngine.
type inotifySubscription struct {
	handle  *tree.Handle
	path    string
	watcher Watcher
}

// pendingMove pairs a MOVED_FROM with its eventual MOVED_TO via the
// kernel's rename cookie, with a 5 second TTL matching the Watchman
// precedent for unpaired moves.
type pendingMove struct {
	path      string
	createdAt time.Time
}

// linuxEngine is the inotify-family state machine: one dedicated
// goroutine owns the inotify fd and a self-pipe used to signal shutdown,
// polling both with a 500ms timeout.
type linuxEngine struct {
	pipeR, pipeW int
	inotifyFd    int

	mu            sync.Mutex
	subscriptions map[int][]*inotifySubscription
	pendingMoves  map[uint32]pendingMove
	watcherHandle map[Watcher]*tree.Handle

	started   chan struct{}
	ended     chan struct{}
	closeOnce sync.Once
}

func newPlatformEngine() (platformEngine, error) {
	fds := make([]int, 2)
	if err := unix.Pipe2(fds, unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, &SystemCallError{Syscall: "pipe2", Err: err}
	}

	fd, err := unix.InotifyInit1(unix.IN_NONBLOCK | unix.IN_CLOEXEC)
	if err != nil {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
		return nil, &SystemCallError{Syscall: "inotify_init1", Err: err}
	}

	e := &linuxEngine{
		pipeR:         fds[0],
		pipeW:         fds[1],
		inotifyFd:     fd,
		subscriptions: make(map[int][]*inotifySubscription),
		pendingMoves:  make(map[uint32]pendingMove),
		watcherHandle: make(map[Watcher]*tree.Handle),
		started:       make(chan struct{}),
		ended:         make(chan struct{}),
	}

	go e.run()
	<-e.started

	return e, nil
}

func (e *linuxEngine) run() {
	close(e.started)

	pollfds := []unix.PollFd{
		{Fd: int32(e.pipeR), Events: unix.POLLIN},
		{Fd: int32(e.inotifyFd), Events: unix.POLLIN},
	}

	for {
		n, err := unix.Poll(pollfds, 500)
		if err != nil && err != unix.EINTR {
			log.Error().Caller().Err(err).Msg("poll failed in inotify backend loop")
			break
		}
		if n <= 0 {
			continue
		}

		if pollfds[0].Revents != 0 {
			break
		}
		if pollfds[1].Revents != 0 {
			e.handleEvents()
		}
	}

	_ = unix.Close(e.pipeR)
	_ = unix.Close(e.pipeW)
	_ = unix.Close(e.inotifyFd)
	close(e.ended)
}

func (e *linuxEngine) close() error {
	e.closeOnce.Do(func() {
		_, _ = unix.Write(e.pipeW, []byte{'X'})
	})
	<-e.ended
	return nil
}

func (e *linuxEngine) subscribe(w Watcher, h *tree.Handle) error {
	for _, entry := range h.Snapshot() {
		if entry.Kind != tree.Dir {
			continue
		}
		if err := e.watchDir(w, entry.Path, h); err != nil {
			return err
		}
	}

	e.mu.Lock()
	e.watcherHandle[w] = h
	e.mu.Unlock()

	return nil
}

func (e *linuxEngine) watchDir(w Watcher, path string, h *tree.Handle) error {
	wd, err := unix.InotifyAddWatch(e.inotifyFd, path, inotifyMask)
	if err != nil {
		return &WatcherError{Path: path, W: w, Err: err}
	}

	e.mu.Lock()
	e.subscriptions[wd] = append(e.subscriptions[wd], &inotifySubscription{
		handle:  h,
		path:    path,
		watcher: w,
	})
	e.mu.Unlock()

	return nil
}

func (e *linuxEngine) unsubscribe(w Watcher) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for wd, subs := range e.subscriptions {
		kept := subs[:0]
		for _, s := range subs {
			if s.watcher != w {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			delete(e.subscriptions, wd)
			if _, err := unix.InotifyRmWatch(e.inotifyFd, uint32(wd)); err != nil {
				return &WatcherError{Path: "", W: w, Err: err}
			}
		} else {
			e.subscriptions[wd] = kept
		}
	}

	if h, ok := e.watcherHandle[w]; ok {
		h.Release()
		delete(e.watcherHandle, w)
	}

	return nil
}

func (e *linuxEngine) handleEvents() {
	touched := make(map[Watcher]struct{})
	var buf [readBufferSize]byte

	for {
		n, err := unix.Read(e.inotifyFd, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			log.Error().Caller().Err(err).Msg("error reading from inotify")
			break
		}
		if n <= 0 {
			break
		}

		now := time.Now()
		var offset uint32
		for offset+unix.SizeofInotifyEvent <= uint32(n) {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := raw.Len

			if raw.Mask&unix.IN_Q_OVERFLOW != 0 {
				offset += unix.SizeofInotifyEvent + nameLen
				continue
			}

			var name string
			if nameLen > 0 {
				nameBytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				name = cString(nameBytes)
			}

			e.handleEvent(raw, name, now, touched)

			offset += unix.SizeofInotifyEvent + nameLen
		}
	}

	now := time.Now()
	e.mu.Lock()
	for cookie, pm := range e.pendingMoves {
		if now.Sub(pm.createdAt) > 5*time.Second {
			delete(e.pendingMoves, cookie)
		}
	}
	e.mu.Unlock()

	for w := range touched {
		w.Notify()
	}
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (e *linuxEngine) handleEvent(raw *unix.InotifyEvent, name string, now time.Time, touched map[Watcher]struct{}) {
	e.mu.Lock()
	subs := append([]*inotifySubscription(nil), e.subscriptions[int(raw.Wd)]...)
	e.mu.Unlock()

	seen := make(map[*inotifySubscription]struct{}, len(subs))
	for _, sub := range subs {
		if _, dup := seen[sub]; dup {
			continue
		}
		seen[sub] = struct{}{}

		if e.handleSubscription(raw, name, now, sub) {
			touched[sub.watcher] = struct{}{}
		}
	}
}

func (e *linuxEngine) handleSubscription(raw *unix.InotifyEvent, name string, now time.Time, sub *inotifySubscription) bool {
	watcher := sub.watcher
	path := sub.path
	if name != "" {
		path = filepath.Join(sub.path, name)
	}
	kind := tree.File
	if raw.Mask&unix.IN_ISDIR != 0 {
		kind = tree.Dir
	}

	if _, ignored := watcher.Ignore()[path]; ignored {
		return false
	}

	mask := raw.Mask

	switch {
	case mask&(unix.IN_CREATE|unix.IN_MOVED_TO) != 0:
		return e.handleCreateOrMoveTo(raw, path, kind, sub)

	case mask&(unix.IN_MODIFY|unix.IN_ATTRIB) != 0:
		ino, mtime := statPath(path)
		watcher.Events().Update(path, ino, tree.FakeFileID)
		sub.handle.Update(path, ino, mtime, tree.FakeFileID)
		return true

	case mask&(unix.IN_DELETE|unix.IN_DELETE_SELF|unix.IN_MOVED_FROM|unix.IN_MOVE_SELF) != 0:
		return e.handleRemove(raw, path, kind, now, sub)
	}

	return false
}

func (e *linuxEngine) handleCreateOrMoveTo(raw *unix.InotifyEvent, path string, kind tree.Kind, sub *inotifySubscription) bool {
	watcher := sub.watcher
	ino, mtime := lstatPath(path)
	// lstat's own notion of directory-ness wins when available, since it
	// distinguishes a real directory from a symlink the kernel flagged
	// IN_ISDIR for.
	if actualKind, ok := lstatKind(path); ok {
		kind = actualKind
	}

	entry := sub.handle.Add(path, ino, mtime, kind, tree.FakeFileID)

	e.mu.Lock()
	pm, hadPending := e.pendingMoves[raw.Cookie]
	if hadPending {
		delete(e.pendingMoves, raw.Cookie)
	}
	if hadPending && entry.Kind == tree.Dir {
		oldPrefix := pm.path + "/"
		for _, subs := range e.subscriptions {
			for _, s := range subs {
				if s.path == pm.path || len(s.path) > len(oldPrefix) && hasPrefix(s.path, oldPrefix) {
					s.path = path + s.path[len(pm.path):]
				}
			}
		}
	}
	e.mu.Unlock()

	// Per the spec, a matched MOVED_FROM/MOVED_TO pair here still only
	// emits a create, not a rename: the offline-diff path is what
	// recovers true renames.
	watcher.Events().Create(path, kind == tree.Dir, ino, tree.FakeFileID)

	if entry.Kind == tree.Dir {
		if err := e.watchDir(watcher, path, sub.handle); err != nil {
			sub.handle.Remove(path)
			return false
		}
	}

	return true
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func (e *linuxEngine) handleRemove(raw *unix.InotifyEvent, path string, kind tree.Kind, now time.Time, sub *inotifySubscription) bool {
	watcher := sub.watcher
	mask := raw.Mask
	isSelf := mask&(unix.IN_DELETE_SELF|unix.IN_MOVE_SELF) != 0

	if isSelf && path != watcher.Dir() {
		return false
	}

	if mask&unix.IN_MOVED_FROM != 0 {
		e.mu.Lock()
		e.pendingMoves[raw.Cookie] = pendingMove{path: path, createdAt: now}
		e.mu.Unlock()
	}

	if isSelf || kind == tree.Dir {
		e.mu.Lock()
		for wd, subs := range e.subscriptions {
			kept := subs[:0]
			for _, s := range subs {
				if s.path != path {
					kept = append(kept, s)
				}
			}
			if len(kept) == 0 {
				delete(e.subscriptions, wd)
			} else {
				e.subscriptions[wd] = kept
			}
		}
		e.mu.Unlock()
	}

	entry := sub.handle.Find(path)
	ino := tree.FakeIno
	if entry != nil {
		ino = entry.Ino
	}

	removeKind := kind
	if isSelf {
		removeKind = tree.Dir
	}

	watcher.Events().Remove(path, removeKind == tree.Dir, ino, tree.FakeFileID)
	sub.handle.Remove(path)

	return true
}

func lstatPath(path string) (ino uint64, mtime int64) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return tree.FakeIno, 0
	}
	return uint64(st.Ino), st.Mtim.Nano()
}

func statPath(path string) (ino uint64, mtime int64) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return tree.FakeIno, 0
	}
	return uint64(st.Ino), st.Mtim.Nano()
}

func lstatKind(path string) (tree.Kind, bool) {
	var st unix.Stat_t
	if err := unix.Lstat(path, &st); err != nil {
		return tree.File, false
	}
	if st.Mode&unix.S_IFMT == unix.S_IFDIR {
		return tree.Dir, true
	}
	return tree.File, true
}
