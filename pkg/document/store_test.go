package document

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/storage"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time {
	c.t = c.t.Add(time.Second)
	return c.t
}

func newTestStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	clock := &fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(mem, WithClock(clock.now)), mem
}

func ids(list []Metadata) []string {
	out := make([]string, len(list))
	for i, m := range list {
		out[i] = m.ID
	}
	return out
}

func TestCreate(t *testing.T) {
	store, mem := newTestStore(t)
	a := store.Create()
	b := store.Create()

	assert.Len(t, a.ID, 26)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Empty(t, a.Title)
	assert.Empty(t, a.Body)
	assert.Empty(t, store.ListRecents(), "create must not touch the index")

	_, err := mem.Get(RecentsKey)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
}

func TestSaveMoveToFront(t *testing.T) {
	store, _ := newTestStore(t)
	a := store.Create()
	b := store.Create()

	for i := 0; i < 3; i++ {
		_, err := store.Save(a)
		require.NoError(t, err)
		assert.Equal(t, []string{a.ID}, ids(store.ListRecents()))
	}

	_, err := store.Save(b)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID, a.ID}, ids(store.ListRecents()))

	_, err = store.Save(a)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, b.ID}, ids(store.ListRecents()))
}

func TestSaveMetadata(t *testing.T) {
	store, mem := newTestStore(t)
	doc := store.Create()
	doc.Title = "   "
	doc.Body = "<p>" + strings.Repeat("a", 70) + "</p>"

	meta, err := store.Save(doc)
	require.NoError(t, err)
	assert.Equal(t, "Untitled Document", meta.Title)
	assert.Equal(t, strings.Repeat("a", 60)+"...", meta.Preview)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 1, 0, time.UTC), meta.LastModified)

	raw, err := mem.Get(DocKey(doc.ID))
	require.NoError(t, err)
	var stored map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	assert.Equal(t, doc.ID, stored["id"])
	assert.Equal(t, "Untitled Document", stored["title"])
	assert.Equal(t, doc.Body, stored["content"])
	assert.Equal(t, "2024-05-01T12:00:01Z", stored["lastModified"])

	rawIndex, err := mem.Get(RecentsKey)
	require.NoError(t, err)
	var index []map[string]any
	require.NoError(t, json.Unmarshal([]byte(rawIndex), &index))
	require.Len(t, index, 1)
	assert.Equal(t, []string{"id", "lastModified", "preview", "title"}, sortedKeys(index[0]))
}

func sortedKeys(m map[string]any) []string {
	var keys []string
	for k := range m {
		keys = append(keys, k)
	}
	for i := range keys {
		for j := i + 1; j < len(keys); j++ {
			if keys[j] < keys[i] {
				keys[i], keys[j] = keys[j], keys[i]
			}
		}
	}
	return keys
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("<p>short</p>", 60))
	assert.Equal(t, strings.Repeat("é", 60), Preview(strings.Repeat("é", 60), 60))
	assert.Equal(t, strings.Repeat("é", 60)+"...", Preview(strings.Repeat("é", 61), 60))
	assert.Equal(t, "ab...", Preview("abc", 2))
}

func TestLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	doc := store.Create()
	doc.Title = "Draft"
	doc.Body = "<p>Hello</p>"
	_, err := store.Save(doc)
	require.NoError(t, err)

	loaded, err := store.Load(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Draft", loaded.Title)
	assert.Equal(t, "<p>Hello</p>", loaded.Body)
	assert.False(t, loaded.LastModified.IsZero())
}

func TestLoadPrunesGhost(t *testing.T) {
	store, mem := newTestStore(t)
	hub := telemetry.NewHub()
	defer hub.Close()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	store.hub = hub

	a := store.Create()
	b := store.Create()
	_, err := store.Save(a)
	require.NoError(t, err)
	_, err = store.Save(b)
	require.NoError(t, err)

	require.NoError(t, mem.Delete(DocKey(a.ID)))

	_, err = store.Load(a.ID)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.Equal(t, []string{b.ID}, ids(store.ListRecents()))

	// Persisted, not just cached.
	reopened := NewStore(mem)
	assert.Equal(t, []string{b.ID}, ids(reopened.ListRecents()))

	var sawPrune bool
	for len(events) > 0 {
		if e := <-events; e.Type == telemetry.EventGhostPruned && e.DocID == a.ID {
			sawPrune = true
		}
	}
	assert.True(t, sawPrune)
}

func TestLoadMissingWithoutIndexEntry(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Load("nope")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.Empty(t, store.ListRecents())
}

func TestLoadCorruptRecord(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, mem.Put(DocKey("bad"), "{not json"))

	_, err := store.Load("bad")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageCorrupt))
}

func TestDeleteIsIdempotent(t *testing.T) {
	store, mem := newTestStore(t)
	a := store.Create()
	b := store.Create()
	_, _ = store.Save(a)
	_, _ = store.Save(b)

	require.NoError(t, store.Delete(a.ID))
	_, err := mem.Get(DocKey(a.ID))
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)
	assert.Equal(t, []string{b.ID}, ids(store.ListRecents()))

	require.NoError(t, store.Delete(a.ID))
	assert.Equal(t, []string{b.ID}, ids(store.ListRecents()))
}

func TestCorruptIndexLoadsEmpty(t *testing.T) {
	mem := storage.NewMemory()
	require.NoError(t, mem.Put(RecentsKey, "[{broken"))
	store := NewStore(mem)
	assert.Empty(t, store.ListRecents())

	doc := store.Create()
	_, err := store.Save(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, ids(store.ListRecents()))
}

func TestIndexDeduplicatedOnLoad(t *testing.T) {
	mem := storage.NewMemory()
	require.NoError(t, mem.Put(RecentsKey, `[{"id":"a","title":"A"},{"id":"b","title":"B"},{"id":"a","title":"A2"}]`))
	store := NewStore(mem)
	assert.Equal(t, []string{"a", "b"}, ids(store.ListRecents()))
}

func TestSaveStorageFailure(t *testing.T) {
	store, mem := newTestStore(t)
	doc := store.Create()
	doc.Title = "Kept"
	mem.FailWith(errors.New("quota exceeded"))

	meta, err := store.Save(doc)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageWrite))
	assert.Equal(t, "Kept", meta.Title)
	assert.Equal(t, doc.ID, meta.ID)

	mem.FailWith(nil)
	_, err = store.Save(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{doc.ID}, ids(store.ListRecents()))
}

func TestSaveRequiresID(t *testing.T) {
	store, _ := newTestStore(t)
	_, err := store.Save(Document{Title: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestMigrateLegacy(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, mem.Put(LegacyKey, `{"content":"<p>old words</p>"}`))

	doc, err := store.MigrateLegacy()
	require.NoError(t, err)
	require.NotNil(t, doc)
	assert.Equal(t, "Untitled Migration", doc.Title)
	assert.Equal(t, "<p>old words</p>", doc.Body)

	_, err = mem.Get(LegacyKey)
	assert.ErrorIs(t, err, storage.ErrRecordNotFound)

	recents := store.ListRecents()
	require.Len(t, recents, 1)
	assert.Equal(t, doc.ID, recents[0].ID)
	assert.Equal(t, "old words", recents[0].Preview)

	loaded, err := store.Load(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "<p>old words</p>", loaded.Body)

	// Second run is a no-op even if a legacy record reappears.
	require.NoError(t, mem.Put(LegacyKey, `{"title":"again"}`))
	again, err := store.MigrateLegacy()
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.Len(t, store.ListRecents(), 1)
}

func TestMigrateLegacyEmptyRecordLeftInPlace(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, mem.Put(LegacyKey, `{"title":"","content":""}`))

	doc, err := store.MigrateLegacy()
	require.NoError(t, err)
	assert.Nil(t, doc)

	_, err = mem.Get(LegacyKey)
	assert.NoError(t, err)
	assert.Empty(t, store.ListRecents())
}

func TestMigrateLegacyNoRecord(t *testing.T) {
	store, _ := newTestStore(t)
	doc, err := store.MigrateLegacy()
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestMigrateLegacyCorrupt(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, mem.Put(LegacyKey, `nope`))

	doc, err := store.MigrateLegacy()
	assert.Nil(t, doc)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStorageCorrupt))
}

func TestStoreOnSQLite(t *testing.T) {
	db, err := storage.New(filepath.Join(t.TempDir(), "inkwell.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db)
	doc := store.Create()
	doc.Title = "Draft"
	doc.Body = "Hello"
	_, err = store.Save(doc)
	require.NoError(t, err)

	reopened := NewStore(db)
	recents := reopened.ListRecents()
	require.Len(t, recents, 1)
	assert.Equal(t, doc.ID, recents[0].ID)

	loaded, err := reopened.Load(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", loaded.Body)
}
