package build

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is a snapshot of a [Tracker]'s state.
//
// Status is optimised for JSON serialisation (used by the status API and the
// build event stream).
type Status struct {
	// BuildID identifies the most recent build cycle. Empty before the first build.
	BuildID string `json:"build_id,omitempty"`

	// Pending is true while a build is in progress.
	Pending bool `json:"pending"`

	// Errored is true if the most recent completed build failed.
	Errored bool `json:"errored"`

	// Error is the failure message of the most recent build, if any.
	Error string `json:"error,omitempty"`

	// MainAsset is the entry bundle of the most recent successful build.
	MainAsset *Asset `json:"main_asset,omitempty"`

	// StartedAt is when the most recent build began.
	StartedAt time.Time `json:"started_at,omitzero"`

	// FinishedAt is when the most recent build completed.
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Result is the outcome of a build, reported via [Tracker.Complete].
type Result struct {
	// Err is non-nil if the build failed.
	Err error

	// MainAsset replaces the tracked main asset when non-nil.
	MainAsset *Asset
}

// EventType identifies the kind of build [Event].
type EventType string

const (
	// EventStarted is published when a build cycle begins.
	EventStarted EventType = "started"

	// EventSucceeded is published when a build completes without error.
	EventSucceeded EventType = "succeeded"

	// EventFailed is published when a build completes with an error.
	EventFailed EventType = "failed"
)

// Event is published to subscribers on every build transition.
type Event struct {
	Type      EventType `json:"type"`
	BuildID   string    `json:"build_id"`
	Error     string    `json:"error,omitempty"`
	MainAsset *Asset    `json:"main_asset,omitempty"`
	At        time.Time `json:"at"`
}

// Tracker holds the state of the current build and signals its completion.
//
// Tracker is safe for concurrent use. Reads take a shared lock, so a request
// goroutine never observes a half-applied build result.
//
// Each build cycle owns a channel that is closed exactly once when the cycle
// completes; [Tracker.Done] hands that channel to any number of waiters.
// Subscribers receive [Event] values via buffered channels (buffer size 16)
// with non-blocking sends; slow subscribers miss events rather than block
// the bundler.
type Tracker struct {
	mu     sync.RWMutex
	status Status
	done   chan struct{}

	subscribers map[chan Event]struct{}
	subMu       sync.RWMutex
}

// NewTracker creates a [Tracker] with no build in progress.
func NewTracker() *Tracker {
	done := make(chan struct{})
	close(done)
	return &Tracker{
		done:        done,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Begin marks a build as pending and returns its build id.
//
// Only one build runs at a time: calling Begin while a build is already
// pending returns the id of that build and changes nothing.
func (t *Tracker) Begin() string {
	t.mu.Lock()
	if t.status.Pending {
		id := t.status.BuildID
		t.mu.Unlock()
		return id
	}
	id := uuid.NewString()
	t.status = Status{
		BuildID:   id,
		Pending:   true,
		MainAsset: t.status.MainAsset,
		StartedAt: time.Now(),
	}
	t.done = make(chan struct{})
	t.mu.Unlock()

	t.notifySubscribers(Event{Type: EventStarted, BuildID: id, At: time.Now()})
	return id
}

// Complete records the outcome of the pending build and releases every
// goroutine waiting on [Tracker.Done].
//
// Calling Complete with no build pending applies the result as an
// instantaneous build.
func (t *Tracker) Complete(res Result) {
	t.mu.Lock()
	wasPending := t.status.Pending
	if !wasPending {
		t.status.BuildID = uuid.NewString()
		t.status.StartedAt = time.Now()
	}
	t.status.Pending = false
	t.status.Errored = res.Err != nil
	t.status.Error = ""
	if res.Err != nil {
		t.status.Error = res.Err.Error()
	}
	if res.MainAsset != nil {
		asset := *res.MainAsset
		t.status.MainAsset = &asset
	}
	t.status.FinishedAt = time.Now()
	if wasPending {
		close(t.done)
	}
	ev := Event{
		Type:      EventSucceeded,
		BuildID:   t.status.BuildID,
		Error:     t.status.Error,
		MainAsset: copyAsset(t.status.MainAsset),
		At:        t.status.FinishedAt,
	}
	t.mu.Unlock()

	if res.Err != nil {
		ev.Type = EventFailed
	}
	t.notifySubscribers(ev)
}

// Status returns a snapshot of the current build state.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	st := t.status
	st.MainAsset = copyAsset(t.status.MainAsset)
	return st
}

// Done returns a channel that is closed when the pending build completes.
//
// If no build is pending the returned channel is already closed. A channel
// obtained during a cycle stays valid after the cycle ends; the next
// [Tracker.Begin] allocates a fresh one.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.done
}

// Wait blocks until no build is pending or ctx is done.
func (t *Tracker) Wait(ctx context.Context) error {
	for {
		select {
		case <-t.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		if !t.Status().Pending {
			return nil
		}
	}
}

// Subscribe returns a channel that receives build events.
//
// Caller must call [Tracker.Unsubscribe] when done to prevent resource leaks.
func (t *Tracker) Subscribe() <-chan Event {
	ch := make(chan Event, 16)

	t.subMu.Lock()
	t.subscribers[ch] = struct{}{}
	t.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (t *Tracker) Unsubscribe(ch <-chan Event) {
	t.subMu.Lock()
	defer t.subMu.Unlock()

	for subCh := range t.subscribers {
		if subCh == ch {
			delete(t.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends ev to all subscribers without blocking.
func (t *Tracker) notifySubscribers(ev Event) {
	t.subMu.RLock()
	defer t.subMu.RUnlock()

	for ch := range t.subscribers {
		select {
		case ch <- ev:
		default:
			// subscriber is slow, drop the event
		}
	}
}

func copyAsset(a *Asset) *Asset {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
