package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid events for the same note so an editor save
// burst triggers one re-index, not five. Pairs within the window merge:
//
//	CREATE + MODIFY = CREATE (the note is still new)
//	CREATE + DELETE = nothing (the note never really existed)
//	MODIFY + DELETE = DELETE (the note is gone)
//	DELETE + CREATE = MODIFY (the note was replaced)
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	pending map[string]Event
	firstOp map[string]Operation
	output  chan []Event
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]Event),
		firstOp: make(map[string]Operation),
		output:  make(chan []Event, 8),
	}
}

// Add records an event, coalescing with any pending event for the path.
func (d *Debouncer) Add(event Event) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	path := event.Path
	first, seen := d.firstOp[path]
	if !seen {
		d.pending[path] = event
		d.firstOp[path] = event.Operation
		d.scheduleFlush()
		return
	}

	merged, keep := coalesce(first, event)
	if !keep {
		delete(d.pending, path)
		delete(d.firstOp, path)
	} else {
		d.pending[path] = merged
	}
	d.scheduleFlush()
}

// coalesce merges a pending operation with a newly observed event.
// keep=false means the pair cancelled out.
func coalesce(first Operation, event Event) (Event, bool) {
	switch first {
	case OpCreate:
		switch event.Operation {
		case OpDelete:
			return Event{}, false
		default:
			event.Operation = OpCreate
			return event, true
		}
	case OpDelete:
		if event.Operation == OpCreate {
			event.Operation = OpModify
			return event, true
		}
		return event, true
	default:
		return event, true
	}
}

func (d *Debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *Debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped || len(d.pending) == 0 {
		return
	}

	events := make([]Event, 0, len(d.pending))
	for _, e := range d.pending {
		events = append(events, e)
	}
	d.pending = make(map[string]Event)
	d.firstOp = make(map[string]Operation)

	select {
	case d.output <- events:
	default:
		slog.Warn("debouncer output full, dropping batch",
			slog.Int("batch_size", len(events)))
	}
}

// Output returns the channel of debounced event batches.
func (d *Debouncer) Output() <-chan []Event {
	return d.output
}

// Stop stops the debouncer and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
