package terminal

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriterLines(t *testing.T) {
	tests := []struct {
		name  string
		write func(*Writer)
		want  string
	}{
		{"error", func(w *Writer) { w.Error("no key for %s", "openai") }, "error: no key for openai"},
		{"warn", func(w *Writer) { w.Warn("be careful") }, "warning: be careful"},
		{"success", func(w *Writer) { w.Success("saved %d", 2) }, "✓ saved 2"},
		{"info", func(w *Writer) { w.Info("hello") }, "hello"},
		{"dim", func(w *Writer) { w.Dim("quiet") }, "quiet"},
		{"println", func(w *Writer) { w.Println("%s-%s", "a", "b") }, "a-b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.write(NewWithOutput(&buf))
			if got := buf.String(); !strings.Contains(got, tt.want) {
				t.Errorf("output = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestWriterStream(t *testing.T) {
	var buf bytes.Buffer
	w := NewWithOutput(&buf)
	w.Stream("<p>Hel")
	w.Stream("lo</p>")
	w.StreamEnd()
	if got := buf.String(); got != "<p>Hello</p>\n" {
		t.Errorf("stream output = %q", got)
	}
}

func TestWriterKeyValues(t *testing.T) {
	var buf bytes.Buffer
	NewWithOutput(&buf).KeyValues([][2]string{{"provider", "google"}, {"model", "gemini-2.5-flash"}})
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	if !strings.Contains(lines[1], "model:") || !strings.HasSuffix(lines[1], "gemini-2.5-flash") {
		t.Errorf("unexpected line %q", lines[1])
	}
	if strings.Index(lines[0], "google") != strings.Index(lines[1], "gemini") {
		t.Errorf("values not aligned:\n%s", buf.String())
	}
}

func TestWriterSaveStatus(t *testing.T) {
	for status, want := range map[string]string{"saved": "Saved", "saving": "Saving...", "unsaved": "Unsaved"} {
		var buf bytes.Buffer
		NewWithOutput(&buf).SaveStatus(status)
		if !strings.Contains(buf.String(), want) {
			t.Errorf("SaveStatus(%q) = %q", status, buf.String())
		}
	}
}

func TestWidthDefaultsWithoutTerminal(t *testing.T) {
	if w := Width(); w <= 0 {
		t.Errorf("Width() = %d", w)
	}
}
