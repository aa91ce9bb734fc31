package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *Debouncer, timeout time.Duration) []Event {
	t.Helper()
	select {
	case events := <-d.Output():
		return events
	case <-time.After(timeout):
		return nil
	}
}

func TestDebouncerCoalescesSamePath(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	now := time.Now()
	d.Add(Event{Path: "a.md", Operation: OpModify, Timestamp: now})
	d.Add(Event{Path: "a.md", Operation: OpModify, Timestamp: now})
	d.Add(Event{Path: "a.md", Operation: OpModify, Timestamp: now})

	events := collectBatch(t, d, time.Second)
	require.Len(t, events, 1)
	assert.Equal(t, "a.md", events[0].Path)
	assert.Equal(t, OpModify, events[0].Operation)
}

func TestDebouncerCoalescingRules(t *testing.T) {
	tests := []struct {
		name   string
		first  Operation
		second Operation
		want   Operation
		gone   bool
	}{
		{name: "create then modify stays create", first: OpCreate, second: OpModify, want: OpCreate},
		{name: "create then delete cancels out", first: OpCreate, second: OpDelete, gone: true},
		{name: "modify then delete is delete", first: OpModify, second: OpDelete, want: OpDelete},
		{name: "delete then create is modify", first: OpDelete, second: OpCreate, want: OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(30 * time.Millisecond)
			defer d.Stop()

			now := time.Now()
			d.Add(Event{Path: "note.md", Operation: tt.first, Timestamp: now})
			d.Add(Event{Path: "note.md", Operation: tt.second, Timestamp: now})

			events := collectBatch(t, d, 300*time.Millisecond)
			if tt.gone {
				assert.Empty(t, events)
				return
			}
			require.Len(t, events, 1)
			assert.Equal(t, tt.want, events[0].Operation)
		})
	}
}

func TestDebouncerSeparatePathsBatchTogether(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	defer d.Stop()

	now := time.Now()
	d.Add(Event{Path: "a.md", Operation: OpModify, Timestamp: now})
	d.Add(Event{Path: "b.md", Operation: OpCreate, Timestamp: now})

	events := collectBatch(t, d, time.Second)
	require.Len(t, events, 2)
}

func TestDebouncerStopIsIdempotent(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()
	d.Stop()

	// Adds after stop are dropped, not panics.
	d.Add(Event{Path: "a.md", Operation: OpModify, Timestamp: time.Now()})
}
