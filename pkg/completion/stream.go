package completion

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/odvcencio/inkwell/pkg/errors"
)

// Stream is a lazy, append-only sequence of text fragments. It has a single
// consumer; Err may be called from any goroutine.
type Stream struct {
	provider  string
	fragments <-chan string
	errs      <-chan error
	cancel    context.CancelFunc
	onDone    func(count int, err *apperrors.Error)

	mu    sync.Mutex
	count int
	err   *apperrors.Error
	done  bool
}

func newStream(provider string, fragments <-chan string, errs <-chan error, cancel context.CancelFunc, onDone func(int, *apperrors.Error)) *Stream {
	return &Stream{
		provider:  provider,
		fragments: fragments,
		errs:      errs,
		cancel:    cancel,
		onDone:    onDone,
	}
}

func emptyStream(provider string) *Stream {
	fragments := make(chan string)
	close(fragments)
	errs := make(chan error)
	close(errs)
	return newStream(provider, fragments, errs, func() {}, nil)
}

// Provider returns the id of the provider serving the stream.
func (s *Stream) Provider() string { return s.provider }

// Next blocks for the next fragment. It returns false once the stream has
// ended; Err then reports how.
func (s *Stream) Next() (string, bool) {
	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return "", false
	}
	s.mu.Unlock()

	fragment, ok := <-s.fragments
	if ok {
		s.mu.Lock()
		s.count++
		s.mu.Unlock()
		return fragment, true
	}
	s.finish()
	return "", false
}

func (s *Stream) finish() {
	err := <-s.errs

	s.mu.Lock()
	if s.done {
		s.mu.Unlock()
		return
	}
	s.done = true
	if err != nil {
		s.err = apperrors.Classify(err)
	}
	count, classified := s.count, s.err
	s.mu.Unlock()

	s.cancel()
	if s.onDone != nil {
		s.onDone(count, classified)
	}
}

// Err returns the classified failure after the stream has ended, or nil.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return nil
	}
	return s.err
}

// Count reports how many fragments have been delivered.
func (s *Stream) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Close abandons the stream. Remaining fragments are discarded.
func (s *Stream) Close() {
	s.cancel()
	for {
		if _, ok := s.Next(); !ok {
			return
		}
	}
}

// Collect drains the stream and returns the concatenated text along with
// the stream error. Partial text is returned even on failure.
func (s *Stream) Collect() (string, error) {
	var b strings.Builder
	for {
		fragment, ok := s.Next()
		if !ok {
			return b.String(), s.Err()
		}
		b.WriteString(fragment)
	}
}
