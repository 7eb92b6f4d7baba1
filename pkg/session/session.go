// Package session ties the document store, autosave scheduler, completion
// client and rewrite controller into one editing session over a single
// active document.
package session

import (
	"context"
	"strings"
	"sync"

	"github.com/odvcencio/inkwell/pkg/autosave"
	"github.com/odvcencio/inkwell/pkg/completion"
	"github.com/odvcencio/inkwell/pkg/content"
	"github.com/odvcencio/inkwell/pkg/document"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/rewrite"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

const tempTitleWords = 5

// ErrGenerationInProgress is returned when a draft or translation is
// already streaming into the active document.
var ErrGenerationInProgress = apperrors.New(apperrors.ErrCodeGenerationBusy, "generation already in progress").
	WithUserMessage("Wait for the current generation to finish.")

// ErrRewriteConflict is returned when the text a rewrite replaced was
// edited away, or the document switched, before the rewrite committed.
var ErrRewriteConflict = apperrors.New(apperrors.ErrCodeRewriteConflict, "rewrite target changed").
	WithUserMessage("The selected text changed while it was being rewritten. Select it again.")

// Completer opens completion streams. *completion.Client satisfies it.
type Completer interface {
	rewrite.Streamer
	StartGenerate(ctx context.Context, req completion.GenerateRequest) (*completion.Stream, error)
	StartTranslate(ctx context.Context, req completion.TranslateRequest) (*completion.Stream, error)
}

// Session is an editing session. The active document is the working copy;
// edits go through SetTitle and SetBody so autosave sees every change.
type Session struct {
	id        string
	store     *document.Store
	completer Completer
	rewriter  *rewrite.Controller
	autosave  *autosave.Scheduler
	logger    *logging.Logger
	hub       *telemetry.Hub

	autosaveOpts []autosave.Option

	mu         sync.Mutex
	active     document.Document
	generating bool
	rewriting  bool
}

// Option configures a Session.
type Option func(*Session)

// WithID sets the session id used in logs.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// WithLogger sets the logger shared by the session's components.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithHub publishes session events on hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(s *Session) { s.hub = hub }
}

// WithAutosave passes options to the autosave scheduler.
func WithAutosave(opts ...autosave.Option) Option {
	return func(s *Session) { s.autosaveOpts = append(s.autosaveOpts, opts...) }
}

// Open starts a session. The legacy single-document record is migrated
// first; otherwise the most recent loadable document is opened, falling
// back to a new blank document.
func Open(store *document.Store, completer Completer, opts ...Option) (*Session, error) {
	if store == nil || completer == nil {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "session needs a document store and a completer")
	}
	s := &Session{store: store, completer: completer}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logging.Nop()
	}
	if s.id == "" {
		s.id = GenerateSessionID("session")
	}

	asOpts := append([]autosave.Option{autosave.WithLogger(s.logger), autosave.WithHub(s.hub)}, s.autosaveOpts...)
	s.autosave = autosave.New(store, asOpts...)
	s.rewriter = rewrite.NewController(completer, rewrite.WithLogger(s.logger), rewrite.WithHub(s.hub))

	doc, source := s.startupDocument()
	s.mu.Lock()
	s.active = doc
	s.mu.Unlock()
	s.autosave.Reset(snapshotOf(doc))

	s.logger.Info(logging.CategorySession, "session.opened", "session opened", map[string]any{
		"session_id": s.id,
		"doc_id":     doc.ID,
		"source":     source,
	})
	return s, nil
}

func (s *Session) startupDocument() (document.Document, string) {
	migrated, err := s.store.MigrateLegacy()
	if err != nil {
		s.logger.Warn(logging.CategorySession, "startup.migration_failed", err.Error(), nil)
	}
	if migrated != nil {
		return *migrated, "migrated"
	}
	for _, meta := range s.store.ListRecents() {
		doc, err := s.store.Load(meta.ID)
		if err == nil {
			return doc, "recent"
		}
	}
	return s.store.Create(), "new"
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Store returns the underlying document store.
func (s *Session) Store() *document.Store { return s.store }

// Active returns a copy of the working document.
func (s *Session) Active() document.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Status returns the working copy's save status.
func (s *Session) Status() autosave.SaveStatus {
	return s.autosave.Status()
}

// Generating reports whether a draft or translation is streaming.
func (s *Session) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}

// Rewriting reports whether a selection rewrite is in flight.
func (s *Session) Rewriting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rewriting
}

// SetTitle edits the working title.
func (s *Session) SetTitle(title string) {
	s.edit(func(d *document.Document) { d.Title = title })
}

// SetBody replaces the working body markup.
func (s *Session) SetBody(body string) {
	s.edit(func(d *document.Document) { d.Body = body })
}

func (s *Session) edit(fn func(*document.Document)) {
	s.mu.Lock()
	fn(&s.active)
	snap := snapshotOf(s.active)
	s.mu.Unlock()
	s.autosave.Observe(snap)
}

// Flush saves pending edits immediately.
func (s *Session) Flush() error {
	_, err := s.autosave.Flush()
	return err
}

// New flushes the working copy and starts a blank document. The new
// document is not indexed until it is first saved.
func (s *Session) New() document.Document {
	s.flushForSwitch()
	doc := s.store.Create()
	s.activate(doc)
	return doc
}

// Switch flushes the working copy and opens id. Switching to the active
// document is a no-op.
func (s *Session) Switch(id string) (document.Document, error) {
	current := s.Active()
	if id == current.ID {
		return current, nil
	}
	s.flushForSwitch()
	doc, err := s.store.Load(id)
	if err != nil {
		return current, err
	}
	s.activate(doc)
	return doc, nil
}

// Delete removes id. Deleting the active document discards its pending
// edits and opens the next recent document, or a new one, even when the
// storage delete failed.
func (s *Session) Delete(id string) error {
	activeID := s.Active().ID
	if id == activeID {
		s.autosave.Reset(autosave.Snapshot{ID: id})
	}
	err := s.store.Delete(id)
	if err != nil {
		s.logger.Warn(logging.CategorySession, "delete.failed", err.Error(), map[string]any{"doc_id": id})
	}
	if id != activeID {
		return err
	}

	for _, meta := range s.store.ListRecents() {
		if meta.ID == id {
			continue
		}
		if doc, loadErr := s.store.Load(meta.ID); loadErr == nil {
			s.activate(doc)
			return err
		}
	}
	s.activate(s.store.Create())
	return err
}

// Close flushes pending edits and stops the autosave timer.
func (s *Session) Close() error {
	_, err := s.autosave.Flush()
	s.autosave.Close()
	s.logger.Info(logging.CategorySession, "session.closed", "session closed", map[string]any{"session_id": s.id})
	return err
}

func (s *Session) flushForSwitch() {
	if _, err := s.autosave.Flush(); err != nil {
		s.logger.Warn(logging.CategorySession, "switch.flush_failed", err.Error(), nil)
	}
}

func (s *Session) activate(doc document.Document) {
	s.mu.Lock()
	s.active = doc
	s.mu.Unlock()
	s.autosave.Reset(snapshotOf(doc))
}

// begin claims the session for one streaming operation. Drafts,
// translations and rewrites exclude each other.
func (s *Session) begin(flag *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.generating:
		return ErrGenerationInProgress
	case s.rewriting:
		return rewrite.ErrRewriteInProgress
	}
	*flag = true
	return nil
}

func (s *Session) end(flag *bool) {
	s.mu.Lock()
	*flag = false
	s.mu.Unlock()
}

// Generate streams a new draft. A non-empty working document is flushed
// and replaced by a new one first. The title becomes the prompt's first
// words followed by an ellipsis. On failure the partial body is kept and
// the classified error returned.
func (s *Session) Generate(ctx context.Context, req completion.GenerateRequest, onFragment func(string)) (document.Document, error) {
	if err := s.begin(&s.generating); err != nil {
		return s.Active(), err
	}
	defer s.end(&s.generating)

	stream, err := s.completer.StartGenerate(ctx, req)
	if err != nil {
		return s.Active(), err
	}
	defer stream.Close()

	if !s.Active().IsEmpty() {
		s.New()
	}
	s.SetTitle(TempTitle(req.Prompt))
	s.publish(telemetry.EventGenerateStarted, nil)

	for {
		fragment, ok := stream.Next()
		if !ok {
			break
		}
		s.edit(func(d *document.Document) { d.Body += fragment })
		if onFragment != nil {
			onFragment(fragment)
		}
	}

	doc := s.Active()
	if err := stream.Err(); err != nil {
		s.logger.Warn(logging.CategorySession, "generate.failed", apperrors.Classify(err).Friendly(), map[string]any{
			"doc_id":    doc.ID,
			"fragments": stream.Count(),
		})
		s.publish(telemetry.EventGenerateFailed, map[string]any{"fragments": stream.Count()})
		return doc, err
	}
	s.publish(telemetry.EventGenerateCompleted, map[string]any{"fragments": stream.Count()})
	return doc, nil
}

// Translate replaces the body with its translation into language. The
// body is only replaced once the whole translation has arrived.
func (s *Session) Translate(ctx context.Context, language string, onFragment func(string)) (document.Document, error) {
	if err := s.begin(&s.generating); err != nil {
		return s.Active(), err
	}
	defer s.end(&s.generating)

	before := s.Active()
	stream, err := s.completer.StartTranslate(ctx, completion.TranslateRequest{Content: before.Body, Language: language})
	if err != nil {
		return before, err
	}

	var b strings.Builder
	for {
		fragment, ok := stream.Next()
		if !ok {
			break
		}
		b.WriteString(fragment)
		if onFragment != nil {
			onFragment(fragment)
		}
	}
	if err := stream.Err(); err != nil {
		s.publish(telemetry.EventTranslateFailed, map[string]any{"language": language})
		return s.Active(), err
	}
	if before.Body == "" {
		return before, nil
	}

	s.SetBody(b.String())
	s.publish(telemetry.EventTranslateApplied, map[string]any{"language": language})
	return s.Active(), nil
}

// RewriteRequest selects text in the active body to rewrite.
type RewriteRequest struct {
	Selection  content.Selection
	Mode       rewrite.Mode
	Custom     string
	OnProgress func(accumulated string)
}

// Rewrite streams a replacement for the selection into the active body.
// The body is updated only when the rewrite commits. Edits made while the
// rewrite streamed are kept: the replacement is applied to the current
// body, and ErrRewriteConflict is returned when the selection is no longer
// there.
func (s *Session) Rewrite(ctx context.Context, req RewriteRequest) (rewrite.Result, error) {
	if err := s.begin(&s.rewriting); err != nil {
		return rewrite.Result{State: rewrite.StateIdle}, err
	}
	defer s.end(&s.rewriting)

	doc := s.Active()
	tree, err := content.Parse(doc.Body)
	if err != nil {
		return rewrite.Result{State: rewrite.StateIdle}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "parse body")
	}
	res, err := s.rewriter.Rewrite(ctx, doc.ID, tree, rewrite.Request{
		Selection:  req.Selection,
		Mode:       req.Mode,
		Custom:     req.Custom,
		OnProgress: req.OnProgress,
	})
	if err != nil {
		return res, err
	}

	s.mu.Lock()
	current := s.active
	if current.ID != doc.ID {
		s.mu.Unlock()
		return res, ErrRewriteConflict
	}
	if current.Body != doc.Body {
		merged, err := content.Replace(current.Body, req.Selection, res.Replacement)
		if err != nil {
			s.mu.Unlock()
			s.logger.Warn(logging.CategoryRewrite, "rewrite.conflict", err.Error(), map[string]any{"doc_id": doc.ID})
			return res, ErrRewriteConflict
		}
		res.Body = merged
	}
	s.active.Body = res.Body
	snap := snapshotOf(s.active)
	s.mu.Unlock()
	s.autosave.Observe(snap)
	return res, nil
}

func (s *Session) publish(t telemetry.EventType, data map[string]any) {
	s.hub.Publish(telemetry.Event{Type: t, SessionID: s.id, DocID: s.Active().ID, Data: data})
}

// TempTitle is the placeholder title shown while a draft generates.
func TempTitle(prompt string) string {
	words := strings.Fields(prompt)
	if len(words) > tempTitleWords {
		words = words[:tempTitleWords]
	}
	return strings.Join(words, " ") + "..."
}

func snapshotOf(doc document.Document) autosave.Snapshot {
	return autosave.Snapshot{ID: doc.ID, Title: doc.Title, Body: doc.Body}
}
