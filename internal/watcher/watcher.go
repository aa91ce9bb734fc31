// Package watcher keeps the index in step with a live vault: filesystem
// events are debounced, coalesced per note, and translated into index
// manager calls.
package watcher

import (
	"time"
)

// Operation is the kind of change observed on a note.
type Operation int

const (
	// OpCreate indicates a new note appeared.
	OpCreate Operation = iota
	// OpModify indicates an existing note changed.
	OpModify
	// OpDelete indicates a note was removed.
	OpDelete
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Event is one observed note change.
type Event struct {
	// Path is the vault-relative note path.
	Path string

	// Operation is the kind of change.
	Operation Operation

	// Timestamp is when the change was detected.
	Timestamp time.Time
}

// Options configures watching behavior.
type Options struct {
	// DebounceWindow is how long to wait before emitting coalesced
	// events. Editors save in bursts; the window turns a burst into a
	// single re-index. Default: 500ms.
	DebounceWindow time.Duration

	// EventBufferSize is the event channel buffer. Default: 256.
	EventBufferSize int
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	if o.DebounceWindow == 0 {
		o.DebounceWindow = 500 * time.Millisecond
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = 256
	}
	return o
}
