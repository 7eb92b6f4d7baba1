package document

import (
	"encoding/json"
	stderrors "errors"
	"strings"
	"sync"
	"time"

	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/storage"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

// Store is the durable document store. Storage failures are logged and
// returned but never leave the in-memory index inconsistent: the cached
// index stays authoritative for the life of the process.
type Store struct {
	mu         sync.Mutex
	kv         storage.KV
	logger     *logging.Logger
	hub        *telemetry.Hub
	now        func() time.Time
	previewLen int

	recents       []Metadata
	recentsLoaded bool
	migrated      bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithHub publishes document events on hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(s *Store) { s.hub = hub }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPreviewLength sets the preview length in runes.
func WithPreviewLength(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.previewLen = n
		}
	}
}

// NewStore returns a Store over kv.
func NewStore(kv storage.KV, opts ...Option) *Store {
	s := &Store{
		kv:         kv,
		logger:     logging.Nop(),
		now:        time.Now,
		previewLen: defaultPreviewLength,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create returns a blank document with a fresh id. The index is not touched
// until the document is saved.
func (s *Store) Create() Document {
	doc := Document{ID: NewID()}
	s.publish(telemetry.EventDocumentCreated, doc.ID, nil)
	return doc
}

// Save writes doc and moves it to the front of the recency index. The
// returned metadata is valid even when err is a storage failure.
func (s *Store) Save(doc Document) (Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(doc)
}

func (s *Store) saveLocked(doc Document) (Metadata, error) {
	if strings.TrimSpace(doc.ID) == "" {
		return Metadata{}, apperrors.New(apperrors.ErrCodeInvalidInput, "document id is required")
	}
	doc.Title = normalizeTitle(doc.Title)
	doc.LastModified = s.timestamp()

	meta := Metadata{
		ID:           doc.ID,
		Title:        doc.Title,
		LastModified: doc.LastModified,
		Preview:      Preview(doc.Body, s.previewLen),
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return meta, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode document")
	}
	if err := s.kv.Put(DocKey(doc.ID), string(data)); err != nil {
		werr := apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "write document").
			WithContext("id", doc.ID).
			WithUserMessage("Could not save the document to local storage.")
		s.logger.Error(logging.CategoryStorage, "document.save_failed", werr.Error(), map[string]any{"doc_id": doc.ID})
		s.publish(telemetry.EventDocumentSaveFailed, doc.ID, map[string]any{"error": err.Error()})
		return meta, werr
	}

	s.loadRecentsLocked()
	updated := make([]Metadata, 0, len(s.recents)+1)
	updated = append(updated, meta)
	for _, m := range s.recents {
		if m.ID != doc.ID {
			updated = append(updated, m)
		}
	}
	s.recents = updated

	if err := s.persistRecentsLocked(); err != nil {
		s.publish(telemetry.EventDocumentSaveFailed, doc.ID, map[string]any{"error": err.Error()})
		return meta, err
	}

	s.logger.Debug(logging.CategoryStorage, "document.saved", "document saved", map[string]any{"doc_id": doc.ID, "bytes": len(doc.Body)})
	s.publish(telemetry.EventDocumentSaved, doc.ID, map[string]any{"title": doc.Title})
	return meta, nil
}

// Load returns the document with id. A missing record prunes its index
// entry and returns a DOCUMENT_NOT_FOUND error.
func (s *Store) Load(id string) (Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(DocKey(id))
	if stderrors.Is(err, storage.ErrRecordNotFound) {
		s.pruneLocked(id)
		return Document{}, apperrors.New(apperrors.ErrCodeNotFound, "document not found").
			WithContext("id", id).
			WithUserMessage("That document no longer exists.")
	}
	if err != nil {
		werr := apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "read document").WithContext("id", id)
		s.logger.Error(logging.CategoryStorage, "document.load_failed", werr.Error(), map[string]any{"doc_id": id})
		return Document{}, werr
	}

	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		werr := apperrors.Wrap(err, apperrors.ErrCodeStorageCorrupt, "decode document").WithContext("id", id)
		s.logger.Error(logging.CategoryStorage, "document.corrupt", werr.Error(), map[string]any{"doc_id": id})
		return Document{}, werr
	}
	if doc.ID == "" {
		doc.ID = id
	}
	s.publish(telemetry.EventDocumentLoaded, doc.ID, nil)
	return doc, nil
}

// Delete removes the document record and its index entry. Deleting an
// unknown id is a no-op.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if err := s.kv.Delete(DocKey(id)); err != nil {
		werr := apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "delete document").WithContext("id", id)
		s.logger.Error(logging.CategoryStorage, "document.delete_failed", werr.Error(), map[string]any{"doc_id": id})
		errs = append(errs, werr)
	}

	s.loadRecentsLocked()
	if s.removeLocked(id) {
		if err := s.persistRecentsLocked(); err != nil {
			errs = append(errs, err)
		}
	}
	s.publish(telemetry.EventDocumentDeleted, id, nil)
	return stderrors.Join(errs...)
}

// ListRecents returns the index, most recently saved first.
func (s *Store) ListRecents() []Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadRecentsLocked()
	return append([]Metadata(nil), s.recents...)
}

type legacyRecord struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// MigrateLegacy converts the single-document legacy record into a regular
// document. It runs at most once per Store; later calls return nil.
func (s *Store) MigrateLegacy() (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.migrated {
		return nil, nil
	}
	s.migrated = true

	raw, err := s.kv.Get(LegacyKey)
	if stderrors.Is(err, storage.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		werr := apperrors.Wrap(err, apperrors.ErrCodeStorageRead, "read legacy document")
		s.logger.Error(logging.CategoryStorage, "migration.failed", werr.Error(), nil)
		return nil, werr
	}

	var legacy legacyRecord
	if err := json.Unmarshal([]byte(raw), &legacy); err != nil {
		werr := apperrors.Wrap(err, apperrors.ErrCodeStorageCorrupt, "decode legacy document")
		s.logger.Error(logging.CategoryStorage, "migration.failed", werr.Error(), nil)
		return nil, werr
	}
	if legacy.Title == "" && legacy.Content == "" {
		return nil, nil
	}

	title := legacy.Title
	if title == "" {
		title = defaultMigrationTitle
	}
	doc := Document{ID: NewID(), Title: title, Body: legacy.Content}
	meta, err := s.saveLocked(doc)
	if err != nil {
		return nil, err
	}
	doc.Title = meta.Title
	doc.LastModified = meta.LastModified

	if err := s.kv.Delete(LegacyKey); err != nil {
		s.logger.Warn(logging.CategoryStorage, "migration.cleanup_failed", "legacy record could not be removed", map[string]any{"error": err.Error()})
	}
	s.logger.Info(logging.CategoryStorage, "document.migrated", "legacy document migrated", map[string]any{"doc_id": doc.ID})
	s.publish(telemetry.EventDocumentMigrated, doc.ID, nil)
	return &doc, nil
}

func (s *Store) loadRecentsLocked() {
	if s.recentsLoaded {
		return
	}
	s.recentsLoaded = true
	s.recents = nil

	raw, err := s.kv.Get(RecentsKey)
	if err != nil {
		if !stderrors.Is(err, storage.ErrRecordNotFound) {
			s.logger.Error(logging.CategoryStorage, "recents.load_failed", err.Error(), nil)
		}
		return
	}
	var list []Metadata
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.logger.Warn(logging.CategoryStorage, "recents.corrupt", "recents index unreadable, starting empty", map[string]any{"error": err.Error()})
		return
	}

	seen := make(map[string]bool, len(list))
	for _, m := range list {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		s.recents = append(s.recents, m)
	}
}

func (s *Store) persistRecentsLocked() error {
	list := s.recents
	if list == nil {
		list = []Metadata{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode recents")
	}
	if err := s.kv.Put(RecentsKey, string(data)); err != nil {
		werr := apperrors.Wrap(err, apperrors.ErrCodeStorageWrite, "write recents index")
		s.logger.Error(logging.CategoryStorage, "recents.save_failed", werr.Error(), nil)
		return werr
	}
	return nil
}

func (s *Store) removeLocked(id string) bool {
	for i, m := range s.recents {
		if m.ID == id {
			s.recents = append(s.recents[:i:i], s.recents[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) pruneLocked(id string) {
	s.loadRecentsLocked()
	if !s.removeLocked(id) {
		return
	}
	s.logger.Warn(logging.CategoryStorage, "recents.ghost_pruned", "pruned index entry with no document record", map[string]any{"doc_id": id})
	s.publish(telemetry.EventGhostPruned, id, nil)
	_ = s.persistRecentsLocked()
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *Store) publish(t telemetry.EventType, id string, data map[string]any) {
	s.hub.Publish(telemetry.Event{Type: t, DocID: id, Data: data})
}
