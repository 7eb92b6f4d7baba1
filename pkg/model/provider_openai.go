package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/odvcencio/inkwell/pkg/config"
)

// OpenAICompatibleProvider talks to any /chat/completions endpoint that
// streams OpenAI-style SSE chunks (OpenAI, DeepSeek, Moonshot, OpenRouter).
type OpenAICompatibleProvider struct {
	id      string
	apiKey  string
	baseURL string
	client  *streamClient
}

// NewOpenAICompatibleProvider creates a provider for id at baseURL.
func NewOpenAICompatibleProvider(id, apiKey, baseURL string, client *streamClient) *OpenAICompatibleProvider {
	return &OpenAICompatibleProvider{id: id, apiKey: apiKey, baseURL: baseURL, client: client}
}

func (p *OpenAICompatibleProvider) ID() string     { return p.id }
func (p *OpenAICompatibleProvider) Family() Family { return FamilySSE }

// Close closes the network log.
func (p *OpenAICompatibleProvider) Close() error { return p.client.Close() }

// Stream implements Provider.
func (p *OpenAICompatibleProvider) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return failedStream(fmt.Errorf("marshaling request: %w", err))
	}

	url := p.baseURL + "/chat/completions"
	build := func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
		if p.id == config.ProviderOpenRouter {
			httpReq.Header.Set("HTTP-Referer", "https://github.com/odvcencio/inkwell")
			httpReq.Header.Set("X-Title", "Inkwell")
		}
		return httpReq, nil
	}
	return p.client.stream(ctx, build, OpenAIDelta, req.StripFences)
}

func (p *OpenAICompatibleProvider) buildRequest(req Request) chatRequest {
	messages := make([]Message, 0, 2)
	if req.System != "" {
		messages = append(messages, Message{Role: "system", Content: req.System})
	}
	user := req.Prompt
	if n := len(req.Attachments); n > 0 {
		// Only the native provider understands inline data.
		user += fmt.Sprintf("\n\n[Attached %d files - Visual content analysis skipped for non-Gemini provider]", n)
	}
	messages = append(messages, Message{Role: "user", Content: user})

	return chatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
		Stream:      true,
	}
}

// failedStream returns closed channels carrying err.
func failedStream(err error) (<-chan string, <-chan error) {
	fragments := make(chan string)
	errs := make(chan error, 1)
	close(fragments)
	errs <- err
	close(errs)
	return fragments, errs
}
