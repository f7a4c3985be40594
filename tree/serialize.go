package tree

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Write serializes the tree to w in the snapshot text format:
//
//	<count>\n
//	<pathLen><path><mtime> <isDir> <ino> <fileId> \n
//	...
//
// pathLen, mtime and ino are decimal integers; isDir is "0" or "1"; path
// follows pathLen immediately with no delimiter; fileId is whitespace-free
// and, even when unknown, is still followed by a trailing space before
// the newline.
func (t *DirTree) Write(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%d\n", len(t.entries)); err != nil {
		return err
	}

	for _, e := range t.entries {
		isDir := 0
		if e.Kind == Dir {
			isDir = 1
		}
		if _, err := fmt.Fprintf(bw, "%d%s%d %d %d %s \n", len(e.Path), e.Path, e.Mtime, isDir, e.Ino, e.FileID); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// ReadTree parses a previously written snapshot into a new, complete tree
// rooted at root. A truncated entry (fewer than all trailing fields
// present) leaves the corresponding field at its sentinel default, per
// the tolerant-reader requirement of the format.
func ReadTree(root string, r io.Reader, recursiveRemove bool) (*DirTree, error) {
	t := NewDirTree(root, recursiveRemove)
	t.isComplete = true

	sc := newTokenScanner(r)

	count, ok := sc.nextInt()
	if !ok {
		return t, nil
	}

	for i := int64(0); i < count; i++ {
		entry, ok := readEntry(sc)
		if !ok {
			break
		}
		t.entries[entry.Path] = entry
	}

	return t, nil
}

func readEntry(sc *tokenScanner) (*DirEntry, bool) {
	// pathLen is immediately followed by path with no delimiter, so it
	// cannot be read with the whitespace-delimited token reader used for
	// every other field.
	pathLen, ok := sc.nextDigitRun()
	if !ok {
		return nil, false
	}

	path, ok := sc.nextBytes(int(pathLen))
	if !ok {
		return nil, false
	}

	entry := newDirEntry(path, FakeIno, 0, File, FakeFileID)

	if mtime, ok := sc.nextInt(); ok {
		entry.Mtime = mtime
	} else {
		return entry, true
	}

	if isDir, ok := sc.nextInt(); ok {
		if isDir != 0 {
			entry.Kind = Dir
		}
	} else {
		return entry, true
	}

	if ino, ok := sc.nextInt(); ok {
		entry.Ino = uint64(ino)
	} else {
		return entry, true
	}

	if fileID, ok := sc.nextToken(); ok {
		entry.FileID = fileID
	}

	return entry, true
}

// tokenScanner reads whitespace-delimited decimal integers and tokens
// from a snapshot stream, plus raw byte runs for the length-prefixed path
// field. It mirrors the "peek next non-space is not newline" tolerance
// the original stream-based reader relied on: a token is considered
// absent once a newline is reached.
type tokenScanner struct {
	r   *bufio.Reader
	eof bool
}

func newTokenScanner(r io.Reader) *tokenScanner {
	return &tokenScanner{r: bufio.NewReader(r)}
}

func (s *tokenScanner) skipSpaces() {
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			s.eof = true
			return
		}
		if b != ' ' {
			_ = s.r.UnreadByte()
			return
		}
	}
}

// atLineEnd reports whether the next non-space byte is a newline (or
// EOF), meaning no further field is present on this entry.
func (s *tokenScanner) atLineEnd() bool {
	s.skipSpaces()
	if s.eof {
		return true
	}
	b, err := s.r.Peek(1)
	return err != nil || b[0] == '\n'
}

func (s *tokenScanner) nextToken() (string, bool) {
	if s.atLineEnd() {
		return "", false
	}

	var out []byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			s.eof = true
			break
		}
		if b == ' ' || b == '\n' {
			if b == '\n' {
				_ = s.r.UnreadByte()
			}
			break
		}
		out = append(out, b)
	}
	return string(out), true
}

// nextDigitRun skips any leading spaces and newlines, then reads a
// contiguous run of ASCII digits with no trailing delimiter, stopping at
// (and not consuming) the first non-digit byte.
func (s *tokenScanner) nextDigitRun() (int64, bool) {
	// Skip the newline/space separating this field from whatever
	// preceded it (the count's trailing "\n", or the previous entry's
	// trailing " \n"); pathLen itself has no delimiter before the path
	// that follows it.
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			s.eof = true
			return 0, false
		}
		if b != ' ' && b != '\n' {
			_ = s.r.UnreadByte()
			break
		}
	}

	var out []byte
	for {
		b, err := s.r.ReadByte()
		if err != nil {
			s.eof = true
			break
		}
		if b < '0' || b > '9' {
			_ = s.r.UnreadByte()
			break
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return 0, false
	}
	n, err := strconv.ParseInt(string(out), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *tokenScanner) nextInt() (int64, bool) {
	tok, ok := s.nextToken()
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *tokenScanner) nextBytes(n int) (string, bool) {
	buf := make([]byte, n)
	read, err := io.ReadFull(s.r, buf)
	if read != n || err != nil {
		s.eof = true
		return "", false
	}
	return string(buf), true
}
