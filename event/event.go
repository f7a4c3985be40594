// Package event implements the coalesced, order-preserving event list
// that sits between the backend state machine (or the offline differ)
// and a watcher's consumer.
package event

import "github.com/dirwatch/corewatch/tree"

// Type is the semantic event type derived from an Event's flags.
type Type int

const (
	TypeCreate Type = iota
	TypeUpdate
	TypeDelete
	TypeRename
)

func (t Type) String() string {
	switch t {
	case TypeCreate:
		return "create"
	case TypeDelete:
		return "delete"
	case TypeRename:
		return "rename"
	default:
		return "update"
	}
}

// Event is one coalesced filesystem change. OldPath is non-empty only
// for renames.
type Event struct {
	Path      string
	OldPath   string
	Ino       uint64
	FileID    string
	IsDir     bool
	isCreated bool
	isDeleted bool
}

// IsRenamed reports whether this event represents a rename: it has an
// old path and is neither a fresh create nor a pending delete.
func (e *Event) IsRenamed() bool {
	return !e.isCreated && !e.isDeleted && e.OldPath != ""
}

// Type derives the event's semantic type from its flags.
func (e *Event) Type() Type {
	switch {
	case e.IsRenamed():
		return TypeRename
	case e.isCreated:
		return TypeCreate
	case e.isDeleted:
		return TypeDelete
	default:
		return TypeUpdate
	}
}

// Kind reports whether the event concerns a directory or a file.
func (e *Event) Kind() tree.Kind {
	if e.IsDir {
		return tree.Dir
	}
	return tree.File
}
