package storage

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseKV runs the contract shared by every KV implementation.
func exerciseKV(t *testing.T, kv KV) {
	t.Helper()

	_, err := kv.Get("inkwell_doc_missing")
	assert.ErrorIs(t, err, ErrRecordNotFound)

	require.NoError(t, kv.Put("inkwell_doc_b", "second"))
	require.NoError(t, kv.Put("inkwell_doc_a", "first"))
	require.NoError(t, kv.Put("inkwell_recents_v1", "[]"))

	got, err := kv.Get("inkwell_doc_a")
	require.NoError(t, err)
	assert.Equal(t, "first", got)

	require.NoError(t, kv.Put("inkwell_doc_a", "updated"))
	got, err = kv.Get("inkwell_doc_a")
	require.NoError(t, err)
	assert.Equal(t, "updated", got)

	got, err = kv.Get("inkwell_doc_b")
	require.NoError(t, err)
	assert.Equal(t, "second", got)

	require.NoError(t, kv.Delete("inkwell_doc_a"))
	require.NoError(t, kv.Delete("inkwell_doc_a"))
	_, err = kv.Get("inkwell_doc_a")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestStoreKV(t *testing.T) {
	exerciseKV(t, newTestStore(t))
}

func TestMemoryKV(t *testing.T) {
	exerciseKV(t, NewMemory())
}

func TestInMemoryDSN(t *testing.T) {
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	exerciseKV(t, store)
}

func TestStoreObserverEvents(t *testing.T) {
	store := newTestStore(t)

	var (
		mu     sync.Mutex
		events []Event
	)
	store.AddObserver(ObserverFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	}))

	require.NoError(t, store.Put("inkwell_doc_x", "body"))
	require.NoError(t, store.Delete("inkwell_doc_x"))
	require.NoError(t, store.Delete("inkwell_doc_x"))
	require.NoError(t, store.SetSetting("model", "gpt-4o"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) == 3
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	byOp := map[Op]Event{}
	for _, e := range events {
		byOp[e.Op] = e
	}
	assert.Equal(t, "inkwell_doc_x", byOp[OpWrite].Key)
	assert.Equal(t, 4, byOp[OpWrite].Size)
	assert.Equal(t, "inkwell_doc_x", byOp[OpDelete].Key)
	assert.Equal(t, "model", byOp[OpSetting].Key)
	assert.False(t, byOp[OpSetting].At.IsZero())
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Close())

	err := store.Put("k", "v")
	assert.Error(t, err)
}

func TestMemoryQuota(t *testing.T) {
	mem := NewMemory()
	mem.SetQuota(10)

	require.NoError(t, mem.Put("a", "12345"))
	require.NoError(t, mem.Put("a", "1234567890"))
	assert.ErrorIs(t, mem.Put("b", "1"), ErrQuotaExceeded)

	mem.SetQuota(0)
	assert.NoError(t, mem.Put("b", "1"))
}

func TestMemoryFailWith(t *testing.T) {
	mem := NewMemory()
	boom := errors.New("disk on fire")
	mem.FailWith(boom)

	assert.ErrorIs(t, mem.Put("a", "b"), boom)
	_, err := mem.Get("a")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, mem.Delete("a"), boom)

	mem.FailWith(nil)
	assert.NoError(t, mem.Put("a", "b"))
}
