package pipeline

import (
	"sync"

	"github.com/google/uuid"
)

const (
	// DefaultSubscriberBuffer is the per-subscriber channel capacity.
	DefaultSubscriberBuffer = 256

	// DefaultRetainedRuns is how many finished run logs are kept for replay.
	DefaultRetainedRuns = 50
)

// LogHub fans out each run's log lines to live subscribers and keeps the
// lines for late joiners. Publish never blocks: a subscriber that falls a
// full buffer behind is dropped.
type LogHub struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*runLog
	finished []uuid.UUID // closed runs, oldest first
	buffer   int
	retain   int
}

type runLog struct {
	lines  []string
	subs   map[*Subscription]struct{}
	closed bool
}

// Subscription is a live view of one run's log.
type Subscription struct {
	RunID   uuid.UUID
	ch      chan string
	dropped bool
}

// Lines delivers live lines. It is closed when the run ends, when the
// subscriber is dropped, or on Unsubscribe.
func (s *Subscription) Lines() <-chan string {
	return s.ch
}

// NewLogHub creates a hub. Non-positive arguments use the defaults.
func NewLogHub(buffer, retain int) *LogHub {
	if buffer <= 0 {
		buffer = DefaultSubscriberBuffer
	}
	if retain <= 0 {
		retain = DefaultRetainedRuns
	}
	return &LogHub{
		runs:   make(map[uuid.UUID]*runLog),
		buffer: buffer,
		retain: retain,
	}
}

func (h *LogHub) get(runID uuid.UUID) *runLog {
	rl, ok := h.runs[runID]
	if !ok {
		rl = &runLog{subs: make(map[*Subscription]struct{})}
		h.runs[runID] = rl
	}
	return rl
}

// Publish appends a line to runID's log and forwards it to subscribers.
// Lines published after Close are ignored.
func (h *LogHub) Publish(runID uuid.UUID, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rl := h.get(runID)
	if rl.closed {
		return
	}
	rl.lines = append(rl.lines, line)

	for sub := range rl.subs {
		select {
		case sub.ch <- line:
		default:
			sub.dropped = true
			delete(rl.subs, sub)
			close(sub.ch)
		}
	}
}

// Subscribe returns the lines published so far and a subscription for the
// rest. For a finished run the subscription's channel is already closed.
func (h *LogHub) Subscribe(runID uuid.UUID) ([]string, *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rl := h.get(runID)
	backlog := append([]string(nil), rl.lines...)

	sub := &Subscription{RunID: runID, ch: make(chan string, h.buffer)}
	if rl.closed {
		close(sub.ch)
		return backlog, sub
	}
	rl.subs[sub] = struct{}{}
	return backlog, sub
}

// Unsubscribe removes sub. Unknown or already removed subscriptions are ignored.
func (h *LogHub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	rl, ok := h.runs[sub.RunID]
	if !ok {
		return
	}
	if _, ok := rl.subs[sub]; ok {
		delete(rl.subs, sub)
		close(sub.ch)
	}
}

// Dropped reports whether the hub cut sub off for falling behind.
func (h *LogHub) Dropped(sub *Subscription) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return sub.dropped
}

// Close ends runID's stream. Subscribers see their channel close; the
// lines stay available to Subscribe until the run ages out.
func (h *LogHub) Close(runID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rl := h.get(runID)
	if rl.closed {
		return
	}
	rl.closed = true
	for sub := range rl.subs {
		delete(rl.subs, sub)
		close(sub.ch)
	}

	h.finished = append(h.finished, runID)
	for len(h.finished) > h.retain {
		delete(h.runs, h.finished[0])
		h.finished = h.finished[1:]
	}
}

// Lines returns a copy of everything published for runID.
func (h *LogHub) Lines(runID uuid.UUID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	rl, ok := h.runs[runID]
	if !ok {
		return nil
	}
	return append([]string(nil), rl.lines...)
}

// Reset forgets every run. Open subscriptions are closed.
func (h *LogHub) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, rl := range h.runs {
		for sub := range rl.subs {
			close(sub.ch)
		}
	}
	h.runs = make(map[uuid.UUID]*runLog)
	h.finished = nil
}
