package model

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odvcencio/inkwell/pkg/logging"
)

// ErrMalformedChunk marks a payload that could not be decoded. The decoder
// skips such lines instead of failing the stream.
var ErrMalformedChunk = errors.New("malformed stream chunk")

const doneSentinel = "[DONE]"

// ChunkExtractor turns one `data:` payload into a text fragment. Returning
// an error wrapping ErrMalformedChunk skips the line; any other error ends
// the stream.
type ChunkExtractor func(payload []byte) (string, error)

// SSEDecoder splits an event stream into lines across arbitrary read
// boundaries and extracts fragments from `data:` lines.
type SSEDecoder struct {
	buf     []byte
	extract ChunkExtractor
	logger  *logging.Logger
	done    bool
}

// NewSSEDecoder returns a decoder using extract for payloads.
func NewSSEDecoder(extract ChunkExtractor, logger *logging.Logger) *SSEDecoder {
	return &SSEDecoder{extract: extract, logger: logger}
}

// Done reports whether the [DONE] sentinel has been seen.
func (d *SSEDecoder) Done() bool { return d.done }

// Feed consumes p and returns the fragments completed by it. Bytes after
// the last newline are carried over to the next call.
func (d *SSEDecoder) Feed(p []byte) ([]string, error) {
	if d.done {
		return nil, nil
	}
	d.buf = append(d.buf, p...)

	var (
		fragments []string
		start     int
	)
	for {
		idx := bytes.IndexByte(d.buf[start:], '\n')
		if idx < 0 {
			break
		}
		line := bytes.TrimSpace(d.buf[start : start+idx])
		start += idx + 1

		text, err := d.handleLine(line)
		if err != nil {
			d.buf = d.buf[:0]
			return fragments, err
		}
		if d.done {
			d.buf = d.buf[:0]
			return fragments, nil
		}
		if text != "" {
			fragments = append(fragments, text)
		}
	}
	d.buf = append(d.buf[:0], d.buf[start:]...)
	return fragments, nil
}

// Pending returns the bytes of the incomplete trailing line.
func (d *SSEDecoder) Pending() int { return len(d.buf) }

func (d *SSEDecoder) handleLine(line []byte) (string, error) {
	if !bytes.HasPrefix(line, []byte("data:")) {
		return "", nil
	}
	payload := bytes.TrimSpace(line[len("data:"):])
	if string(payload) == doneSentinel {
		d.done = true
		return "", nil
	}
	if len(payload) == 0 {
		return "", nil
	}
	text, err := d.extract(payload)
	if err != nil {
		if errors.Is(err, ErrMalformedChunk) {
			d.logger.Debug(logging.CategoryStream, "chunk.skipped", "skipping unparseable stream line", map[string]any{"error": err.Error()})
			return "", nil
		}
		return "", err
	}
	return text, nil
}

const readBufferSize = 4096

// Decode reads r until EOF or [DONE], calling emit for every fragment in
// order. A trailing line without a newline at EOF is discarded.
func (d *SSEDecoder) Decode(ctx context.Context, r io.Reader, emit func(string) error) error {
	buf := make([]byte, readBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			fragments, err := d.Feed(buf[:n])
			for _, fragment := range fragments {
				if emitErr := emit(fragment); emitErr != nil {
					return emitErr
				}
			}
			if err != nil {
				return err
			}
			if d.done {
				return nil
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if pending := d.Pending(); pending > 0 {
					d.logger.Debug(logging.CategoryStream, "chunk.dropped", "dropping incomplete trailing line", map[string]any{"bytes": pending})
				}
				d.buf = d.buf[:0]
				return nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("reading stream: %w", readErr)
		}
	}
}

// OpenAIDelta extracts choices[0].delta.content from an OpenAI-compatible
// chunk.
func OpenAIDelta(payload []byte) (string, error) {
	var chunk StreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if chunk.Error != nil && chunk.Error.Message != "" {
		return "", fmt.Errorf("provider stream error: %s", chunk.Error.Message)
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}

// GeminiText extracts candidate text from a streamGenerateContent chunk.
// Block reasons end the stream with an error.
func GeminiText(payload []byte) (string, error) {
	var chunk googleChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedChunk, err)
	}
	if chunk.Error != nil && chunk.Error.Message != "" {
		return "", fmt.Errorf("provider stream error: %s", chunk.Error.Message)
	}
	if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("prompt blocked: %s", strings.ToLower(chunk.PromptFeedback.BlockReason))
	}
	if len(chunk.Candidates) == 0 {
		return "", nil
	}
	candidate := chunk.Candidates[0]
	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		b.WriteString(part.Text)
	}
	if b.Len() == 0 {
		switch candidate.FinishReason {
		case "SAFETY", "BLOCKLIST", "PROHIBITED_CONTENT", "SPII":
			return "", fmt.Errorf("response blocked: %s", strings.ToLower(candidate.FinishReason))
		}
	}
	return b.String(), nil
}

// stripFences removes a leading ```html fence and a trailing ``` fence.
func stripFences(s string) string {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	if len(trimmed) >= 7 && strings.EqualFold(trimmed[:7], "```html") {
		s = strings.TrimLeft(trimmed[7:], " \t\r\n")
	}
	return strings.TrimSuffix(s, "```")
}
