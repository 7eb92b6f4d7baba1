// Package autosave debounces edits to the active document and commits them
// to the document store.
package autosave

import (
	"sync"
	"time"

	"github.com/odvcencio/inkwell/pkg/config"
	"github.com/odvcencio/inkwell/pkg/document"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

// SaveStatus is the save state of the working copy.
type SaveStatus string

const (
	StatusSaved   SaveStatus = "saved"
	StatusSaving  SaveStatus = "saving"
	StatusUnsaved SaveStatus = "unsaved"
)

// Snapshot is the mutable state of the active document.
type Snapshot struct {
	ID    string
	Title string
	Body  string
}

func (s Snapshot) document() document.Document {
	return document.Document{ID: s.ID, Title: s.Title, Body: s.Body}
}

// Saver persists a document. *document.Store satisfies it.
type Saver interface {
	Save(doc document.Document) (document.Metadata, error)
}

// Scheduler commits observed snapshots after a quiet period.
type Scheduler struct {
	saver  Saver
	clock  Clock
	delay  time.Duration
	logger *logging.Logger
	hub    *telemetry.Hub

	mu        sync.Mutex
	status    SaveStatus
	baseline  Snapshot
	inflight  *Snapshot // being written; becomes the baseline when Save returns
	pending   *Snapshot
	timer     Timer
	gen       uint64
	closed    bool
	listeners []func(SaveStatus)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithDelay sets the debounce period.
func WithDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.delay = d
		}
	}
}

// WithClock replaces the real clock.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithHub publishes status changes on hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(s *Scheduler) { s.hub = hub }
}

// WithStatusListener registers fn for every status transition. fn runs
// without the scheduler lock held.
func WithStatusListener(fn func(SaveStatus)) Option {
	return func(s *Scheduler) { s.listeners = append(s.listeners, fn) }
}

// New creates a scheduler in the saved state.
func New(saver Saver, opts ...Option) *Scheduler {
	s := &Scheduler{
		saver:  saver,
		clock:  RealClock(),
		delay:  config.DefaultAutosaveDelay,
		status: StatusSaved,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	return s
}

// Status returns the current save status.
func (s *Scheduler) Status() SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Reset makes snap the saved baseline without writing it, cancelling any
// pending save.
func (s *Scheduler) Reset(snap Snapshot) {
	s.mu.Lock()
	s.stopTimerLocked()
	s.gen++
	s.baseline = snap
	s.inflight = nil
	s.pending = nil
	changed := s.setStatusLocked(StatusSaved)
	s.mu.Unlock()
	s.notify(changed, StatusSaved, snap.ID)
}

// Observe records the latest working copy. A difference from the saved
// baseline, or from the snapshot currently being written, marks it unsaved
// and (re)arms the debounce timer.
func (s *Scheduler) Observe(snap Snapshot) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.stopTimerLocked()
	s.gen++

	if snap == s.committedLocked() {
		s.pending = nil
		status := StatusSaved
		if s.inflight != nil {
			status = StatusSaving
		}
		changed := s.setStatusLocked(status)
		s.mu.Unlock()
		s.notify(changed, status, snap.ID)
		return
	}

	copied := snap
	s.pending = &copied
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.delay, func() { s.fire(gen) })
	changed := s.setStatusLocked(StatusUnsaved)
	s.mu.Unlock()
	s.notify(changed, StatusUnsaved, snap.ID)
}

// Flush saves a pending snapshot immediately. It reports whether a save was
// attempted.
func (s *Scheduler) Flush() (bool, error) {
	s.mu.Lock()
	if s.pending == nil {
		s.mu.Unlock()
		return false, nil
	}
	s.stopTimerLocked()
	s.gen++
	return true, s.saveLocked()
}

// Close cancels the pending timer without saving. Call Flush first to keep
// pending edits.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
	s.closed = true
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	_ = s.saveLocked()
}

// committedLocked is the state the store will hold once any in-flight
// save lands.
func (s *Scheduler) committedLocked() Snapshot {
	if s.inflight != nil {
		return *s.inflight
	}
	return s.baseline
}

// saveLocked is entered with s.mu held and returns with it released.
func (s *Scheduler) saveLocked() error {
	snap := *s.pending
	s.pending = nil
	inflight := &snap
	s.inflight = inflight
	changed := s.setStatusLocked(StatusSaving)
	s.mu.Unlock()
	s.notify(changed, StatusSaving, snap.ID)

	_, err := s.saver.Save(snap.document())
	if err != nil {
		s.logger.Warn(logging.CategoryAutosave, "save.failed", "autosave could not persist the document", map[string]any{
			"doc_id": snap.ID,
			"error":  err.Error(),
		})
	}

	s.mu.Lock()
	changed = false
	// Reset or a later save replaced the in-flight marker; neither the
	// baseline nor the status belongs to this save any more.
	if s.inflight == inflight {
		s.baseline = snap
		s.inflight = nil
		// A pending edit re-armed the timer and owns the status.
		if s.pending == nil {
			changed = s.setStatusLocked(StatusSaved)
		}
	}
	s.mu.Unlock()
	s.notify(changed, StatusSaved, snap.ID)
	return err
}

func (s *Scheduler) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) setStatusLocked(status SaveStatus) bool {
	if s.status == status {
		return false
	}
	s.status = status
	return true
}

func (s *Scheduler) notify(changed bool, status SaveStatus, docID string) {
	if !changed {
		return
	}
	s.logger.Debug(logging.CategoryAutosave, "status", string(status), map[string]any{"doc_id": docID})
	s.hub.Publish(telemetry.Event{
		Type:  telemetry.EventSaveStatusChanged,
		DocID: docID,
		Data:  map[string]any{"status": string(status)},
	})
	for _, fn := range s.listeners {
		fn(status)
	}
}
