package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/inkwell/pkg/document"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
)

type cliEnv struct {
	t    *testing.T
	home string
	db   string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	home := t.TempDir()
	t.Setenv("INKWELL_HOME", home)
	for _, key := range []string{
		"INKWELL_PROVIDER", "INKWELL_MODEL", "INKWELL_API_KEY", "INKWELL_BASE_URL",
		"INKWELL_DB_PATH", "INKWELL_LOG_LEVEL", "INKWELL_PROMPT_GENERATE",
		"INKWELL_PROMPT_REWRITE", "INKWELL_PROMPT_TRANSLATE",
		"OPENAI_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY", "API_KEY",
	} {
		t.Setenv(key, "")
	}
	return &cliEnv{t: t, home: home, db: filepath.Join(home, "data", "inkwell.db")}
}

// run executes the CLI in-process against the env's database.
func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return e.runWithInput("", args...)
}

func (e *cliEnv) runWithInput(stdin string, args ...string) (string, error) {
	e.t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", e.db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "inkwell %s\n%s", strings.Join(args, " "), out)
	return out
}

func (e *cliEnv) recents() []document.Metadata {
	e.t.Helper()
	var recents []document.Metadata
	require.NoError(e.t, json.Unmarshal([]byte(e.mustRun("list", "--json")), &recents))
	return recents
}

// sseServer answers every chat completion with the given fragments.
func (e *cliEnv) sseServer(fragments ...string) *httptest.Server {
	e.t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, f := range fragments {
			chunk, _ := json.Marshal(map[string]any{
				"choices": []any{map[string]any{"delta": map[string]any{"content": f}}},
			})
			fmt.Fprintf(w, "data: %s\n\n", chunk)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
	e.t.Cleanup(srv.Close)
	e.useProvider(srv.URL)
	return srv
}

func (e *cliEnv) useProvider(baseURL string) {
	e.t.Setenv("INKWELL_PROVIDER", "openai")
	e.t.Setenv("OPENAI_API_KEY", "sk-test-key")
	e.t.Setenv("INKWELL_BASE_URL", baseURL)
}

func TestDocumentLifecycle(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun("list")
	assert.Contains(t, out, "No documents yet")

	out = env.mustRun("new", "--title", "Tides", "--body", "<p>The moon pulls the water.</p>")
	assert.Contains(t, out, "Created ")

	recents := env.recents()
	require.Len(t, recents, 1)
	id := recents[0].ID
	assert.Equal(t, "Tides", recents[0].Title)
	assert.Equal(t, "The moon pulls the water.", recents[0].Preview)

	out = env.mustRun("show", id, "--text")
	assert.Contains(t, out, "Tides")
	assert.Contains(t, out, "The moon pulls the water.")
	assert.NotContains(t, out, "<p>")

	out = env.mustRun("list")
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, id)

	out = env.mustRun("delete", id)
	assert.Contains(t, out, "Deleted "+id)
	assert.Empty(t, env.recents())

	_, err := env.run("show", id)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
	assert.Equal(t, exitNotFound, exitCodeForError(err))
}

func TestNew_FromStdin(t *testing.T) {
	env := newCLIEnv(t)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetIn(strings.NewReader("<h1>Piped</h1><p>From stdin.</p>"))
	cmd.SetArgs([]string{"--db", env.db, "new", "--file", "-"})
	require.NoError(t, cmd.Execute())

	recents := env.recents()
	require.Len(t, recents, 1)
	doc := env.mustRun("show", recents[0].ID, "--json")
	assert.Contains(t, doc, `"content": "<h1>Piped</h1><p>From stdin.</p>"`)
}

func TestNew_EmptyDocumentIsListed(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun("new")
	recents := env.recents()
	require.Len(t, recents, 1)
	assert.Equal(t, "Untitled Document", recents[0].Title)
}

func TestList_MostRecentFirst(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun("new", "--title", "First", "--body", "<p>one</p>")
	env.mustRun("new", "--title", "Second", "--body", "<p>two</p>")

	recents := env.recents()
	require.Len(t, recents, 2)
	assert.Equal(t, "Second", recents[0].Title)
	assert.Equal(t, "First", recents[1].Title)
}

func TestGenerate_StreamsIntoNewDocument(t *testing.T) {
	env := newCLIEnv(t)
	env.sseServer("<h1>Tide Pools</h1>", "<p>Small worlds.</p>")

	out := env.mustRun("generate", "an essay on tide pools")
	assert.Contains(t, out, "<h1>Tide Pools</h1><p>Small worlds.</p>")
	assert.Contains(t, out, "Saved")

	recents := env.recents()
	require.Len(t, recents, 1)
	assert.Equal(t, "an essay on tide pools...", recents[0].Title)
	assert.Contains(t, recents[0].Preview, "Small worlds.")
}

func TestGenerate_AuthFailure(t *testing.T) {
	env := newCLIEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()
	env.useProvider(srv.URL)

	_, err := env.run("generate", "-q", "anything")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeStreamAuth), "got %v", err)
	assert.Equal(t, exitStream, exitCodeForError(err))
	assert.Equal(t, "Authentication failed. Please check your API key.", friendlyError(err))
}

func TestGenerate_UnknownTemplate(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("generate", "--template", "limerick", "cats")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCodeForError(err))
	assert.Contains(t, friendlyError(err), "limerick")
}

func TestGenerate_TemplateFillsTopic(t *testing.T) {
	var (
		mu   sync.Mutex
		body string
	)
	env := newCLIEnv(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		body = string(data)
		mu.Unlock()
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"<p>Leaves.</p>\"}}]}\n\ndata: [DONE]\n\n")
	}))
	defer srv.Close()
	env.useProvider(srv.URL)

	env.mustRun("generate", "-q", "--template", "poem", "autumn in Lisbon")

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, body, "Write a poem about autumn in Lisbon.")
}

func TestRewrite_ReplacesSelection(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("new", "--title", "Draft", "--body", "<p>foo bar</p>")
	id := env.recents()[0].ID
	env.sseServer("baz")

	out := env.mustRun("rewrite", id, "--select", "bar", "--mode", "shorten")
	assert.Contains(t, out, "- bar")
	assert.Contains(t, out, "+ baz")

	out = env.mustRun("show", id, "--text")
	assert.Contains(t, out, "foo baz")
}

func TestRewrite_SelectionNotFound(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("new", "--title", "Draft", "--body", "<p>foo bar</p>")
	id := env.recents()[0].ID
	env.sseServer("unused")

	_, err := env.run("rewrite", id, "--select", "qux")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNoSelection))
	assert.Equal(t, exitUsage, exitCodeForError(err))
}

func TestRewrite_UnknownMode(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("rewrite", "--select", "x", "--mode", "louder")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCodeForError(err))
}

func TestTranslate_ReplacesBody(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("new", "--title", "Hello", "--body", "<p>Good morning</p>")
	id := env.recents()[0].ID
	env.sseServer("<p>Buenos ", "días</p>")

	env.mustRun("translate", id, "--to", "Spanish", "-q")

	out := env.mustRun("show", id)
	assert.Contains(t, out, "<p>Buenos días</p>")
}

func TestSettings(t *testing.T) {
	env := newCLIEnv(t)

	env.mustRun("settings", "set", "provider", "DeepSeek")
	env.mustRun("settings", "set", "temperature", "0.25")
	env.mustRun("settings", "set", "api_key", "sk-1234567890")

	out := env.mustRun("settings")
	assert.Contains(t, out, "deepseek (DeepSeek)")
	assert.Contains(t, out, "deepseek-chat")
	assert.Contains(t, out, "0.25")
	assert.Contains(t, out, "sk-1*****7890")
	assert.NotContains(t, out, "sk-1234567890")
	assert.Contains(t, out, "https://api.deepseek.com")

	env.mustRun("settings", "unset", "temperature")
	out = env.mustRun("settings", "show")
	assert.Contains(t, out, "0.7")
}

func TestSettings_Invalid(t *testing.T) {
	env := newCLIEnv(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"settings", "set", "colour", "blue"}},
		{"unknown provider", []string{"settings", "set", "provider", "acme"}},
		{"temperature range", []string{"settings", "set", "temperature", "1.5"}},
		{"temperature text", []string{"settings", "set", "temperature", "warm"}},
		{"empty model", []string{"settings", "set", "model", " "}},
		{"unset unknown", []string{"settings", "unset", "colour"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run(tt.args...)
			require.Error(t, err)
			assert.Equal(t, exitUsage, exitCodeForError(err))
		})
	}
}

func TestModels_MarksActive(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("settings", "set", "provider", "openai")

	out := env.mustRun("models")
	assert.Contains(t, out, "gemini-2.5-flash")
	assert.Contains(t, out, "Active: openai / gpt-4o")
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "*") {
			assert.Contains(t, line, "gpt-4o")
		}
	}
}

func TestTemplates(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun("templates")
	assert.Contains(t, out, "nyt")
	assert.Contains(t, out, "screenplay")

	out = env.mustRun("templates", "show", "poem")
	assert.Contains(t, out, "Write a poem about [TOPIC].")
	assert.Contains(t, out, "Placeholders: TOPIC")

	_, err := env.run("templates", "show", "limerick")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCodeForError(err))
}

func TestPrompts_OverrideAndReset(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun("prompts", "show", "rewrite")
	require.NotEmpty(t, strings.TrimSpace(out))

	env.mustRun("prompts", "set", "rewrite", "Be terse. {{DEFAULT_PROMPT}}")
	_, err := os.Stat(filepath.Join(env.home, "prompts", "rewrite.md"))
	require.NoError(t, err)

	out = env.mustRun("prompts", "show", "rewrite")
	assert.True(t, strings.HasPrefix(out, "Be terse. "))
	assert.NotContains(t, out, "{{DEFAULT_PROMPT}}")

	var infos []map[string]any
	require.NoError(t, json.Unmarshal([]byte(env.mustRun("prompts", "list", "--json")), &infos))
	require.Len(t, infos, 3)
	for _, info := range infos {
		assert.Equal(t, info["kind"] == "rewrite", info["overridden"], "kind %v", info["kind"])
	}

	env.mustRun("prompts", "reset", "rewrite")
	out = env.mustRun("prompts", "show", "rewrite")
	assert.False(t, strings.HasPrefix(out, "Be terse. "))

	_, err = env.run("prompts", "show", "summarize")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCodeForError(err))
}

func TestPrompts_SetFromStdin(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.runWithInput("Only translate.", "prompts", "set", "translate")
	require.NoError(t, err)
	out := env.mustRun("prompts", "show", "translate")
	assert.Contains(t, out, "Only translate.")

	_, err = env.runWithInput("   ", "prompts", "set", "translate")
	require.Error(t, err)
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := newCLIEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-abcdefghijkl")

	out := env.mustRun("config", "show")
	assert.Contains(t, out, "provider:")
	assert.Contains(t, out, "sk-a*******ijkl")
	assert.NotContains(t, out, "sk-abcdefghijkl")

	out = env.mustRun("config", "path")
	assert.Contains(t, out, env.home)
	assert.Contains(t, out, env.db)

	out = env.mustRun("config", "validate")
	assert.Contains(t, out, "Configuration is valid")
}

func TestConfigFromFile(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  id: kimi\n"), 0o600))

	out := env.mustRun("--config", path, "settings")
	assert.Contains(t, out, "moonshot-v1-8k")

	require.NoError(t, os.WriteFile(path, []byte("provider:\n  id: nope\n"), 0o600))
	_, err := env.run("--config", path, "settings")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCodeForError(err))
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	out := env.mustRun("version")
	assert.Contains(t, out, "inkwell "+version)
}

func TestUnknownFlagIsUsageError(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("list", "--bogus")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCodeForError(err))
}

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain", errors.New("boom"), exitFailure},
		{"not found", apperrors.New(apperrors.ErrCodeNotFound, "missing"), exitNotFound},
		{"config", apperrors.New(apperrors.ErrCodeConfigInvalid, "bad"), exitUsage},
		{"no selection", apperrors.New(apperrors.ErrCodeNoSelection, "none"), exitUsage},
		{"stream", fmt.Errorf("wrapped: %w", apperrors.New(apperrors.ErrCodeStreamRateLimit, "slow")), exitStream},
		{"storage", apperrors.New(apperrors.ErrCodeStorageWrite, "disk"), exitFailure},
		{"explicit", withExitCode(errors.New("usage"), exitUsage), exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeForError(tt.err))
		})
	}
}

func TestFriendlyError(t *testing.T) {
	assert.Equal(t, "Select some text.", friendlyError(apperrors.New(apperrors.ErrCodeNoSelection, "raw").WithUserMessage("Select some text.")))
	assert.Equal(t, "plain", friendlyError(errors.New("plain")))
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "****", maskSecret("abcd"))
	assert.Equal(t, "sk-1*****7890", maskSecret("sk-1234567890"))
}

func TestBuildPrompt(t *testing.T) {
	got, err := buildPrompt([]string{"  tide", "pools "}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "tide pools", got)

	got, err = buildPrompt(nil, "poem", map[string]string{"topic": "rain"})
	require.NoError(t, err)
	assert.Equal(t, "Write a poem about rain. Focus on vivid imagery, rhythm, and emotional resonance. Structure it in stanzas.", got)
}
