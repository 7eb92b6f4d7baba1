package model

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GoogleProvider streams from the Gemini streamGenerateContent endpoint.
type GoogleProvider struct {
	apiKey  string
	baseURL string
	client  *streamClient
}

// NewGoogleProvider creates a Gemini provider.
func NewGoogleProvider(apiKey, baseURL string, client *streamClient) *GoogleProvider {
	return &GoogleProvider{apiKey: apiKey, baseURL: baseURL, client: client}
}

func (p *GoogleProvider) ID() string     { return "google" }
func (p *GoogleProvider) Family() Family { return FamilyNative }

// Close closes the network log.
func (p *GoogleProvider) Close() error { return p.client.Close() }

// Stream implements Provider.
func (p *GoogleProvider) Stream(ctx context.Context, req Request) (<-chan string, <-chan error) {
	body, err := json.Marshal(buildGoogleRequest(req))
	if err != nil {
		return failedStream(fmt.Errorf("marshaling request: %w", err))
	}

	endpoint := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", p.baseURL, url.PathEscape(req.Model))
	build := func(ctx context.Context) (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("x-goog-api-key", p.apiKey)
		return httpReq, nil
	}
	return p.client.stream(ctx, build, GeminiText, req.StripFences)
}

func buildGoogleRequest(req Request) googleRequest {
	parts := make([]googlePart, 0, len(req.Attachments)+1)
	for _, att := range req.Attachments {
		parts = append(parts, googlePart{InlineData: &googleInlineData{
			MimeType: att.MIMEType,
			Data:     base64.StdEncoding.EncodeToString(att.Data),
		}})
	}
	parts = append(parts, googlePart{Text: req.Prompt})

	temperature := req.Temperature
	out := googleRequest{
		Contents:         []googleContent{{Role: "user", Parts: parts}},
		GenerationConfig: &googleGenerationConfig{Temperature: &temperature},
	}
	if req.System != "" {
		out.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.System}}}
	}
	return out
}
