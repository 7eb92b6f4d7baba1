package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunEdit_FeedsFileChangesToSession(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("new", "--title", "Notes", "--body", "<p>before</p>")
	id := env.recents()[0].ID

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	a, err := openApp(cmd, &rootOptions{dbPath: env.db}, "edit")
	require.NoError(t, err)
	defer a.Close()

	s, err := a.openSession(a.completionClient())
	require.NoError(t, err)
	_, err = focus(s, id)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "work.html")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runEdit(ctx, a, s, &editOptions{file: path})
	}()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		return err == nil && string(data) == "<p>before</p>"
	}, 2*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("<p>after</p>"), 0o600)
		return s.Active().Body == "<p>after</p>"
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("edit did not stop on cancel")
	}
	require.NoError(t, s.Close())

	doc, err := a.docs.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "<p>after</p>", doc.Body)

	_, err = os.Stat(path)
	assert.NoError(t, err, "an explicit --file is kept")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "vim", firstNonEmpty("", "  ", " vim "))
	assert.Equal(t, "", firstNonEmpty("", " "))
}

func TestEditorCommand(t *testing.T) {
	c, err := editorCommand(context.Background(), "code --wait", "/tmp/doc.html")
	require.NoError(t, err)
	assert.Equal(t, []string{"code", "--wait", "/tmp/doc.html"}, c.Args)

	_, err = editorCommand(context.Background(), "   ", "/tmp/doc.html")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCodeForError(err))
}
