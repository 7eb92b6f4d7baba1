package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsLifecycle(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetSetting("provider", "openai"))
	got, err := store.GetSettings([]string{"provider"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"provider": "openai"}, got)

	require.NoError(t, store.SetSetting("provider", "kimi"))
	got, err = store.GetSettings([]string{"provider"})
	require.NoError(t, err)
	assert.Equal(t, "kimi", got["provider"])

	require.NoError(t, store.SetSetting("provider", "  "))
	got, err = store.GetSettings([]string{"provider"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetSettings_OnlyRequestedKeys(t *testing.T) {
	store := newTestStore(t)
	for k, v := range map[string]string{"provider": "deepseek", "model": "deepseek-reasoner", "temperature": "0.4"} {
		require.NoError(t, store.SetSetting(k, v))
	}

	got, err := store.GetSettings([]string{"model", "temperature", "nonexistent"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"model": "deepseek-reasoner", "temperature": "0.4"}, got)

	got, err = store.GetSettings(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetSetting_Trims(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.SetSetting("", "value"))
	require.NoError(t, store.SetSetting("   ", "value"))
	require.NoError(t, store.SetSetting(" model ", "  gpt-4o  "))

	got, err := store.GetSettings([]string{"model", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"model": "gpt-4o"}, got)
}

func TestSettings_NilStore(t *testing.T) {
	var store *Store
	_, err := store.GetSettings([]string{"model"})
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.ErrorIs(t, store.SetSetting("model", "x"), ErrStoreClosed)
}
