// Package completion is the provider-agnostic façade used by the editor to
// draft, rewrite and translate documents over a streaming model provider.
package completion

import (
	"context"
	"strings"
	"sync"

	"github.com/odvcencio/inkwell/pkg/config"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/model"
	"github.com/odvcencio/inkwell/pkg/prompts"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

//go:generate mockgen -package=completion -destination=mock_provider_test.go github.com/odvcencio/inkwell/pkg/model Provider

// Stream kinds, reported in telemetry.
const (
	KindGenerate  = "generate"
	KindRewrite   = "rewrite"
	KindTranslate = "translate"
)

// GenerateRequest asks for a new draft.
type GenerateRequest struct {
	Prompt      string
	Attachments []model.Attachment
}

// RewriteRequest asks for a replacement of Selection. Context is the plain
// text of the whole document.
type RewriteRequest struct {
	Selection   string
	Context     string
	Instruction string
}

// TranslateRequest asks for Content (HTML) rendered in Language.
type TranslateRequest struct {
	Content  string
	Language string
}

// Client opens completion streams against the configured provider.
type Client struct {
	cfg          config.Resolved
	providerOpts model.Options
	logger       *logging.Logger
	hub          *telemetry.Hub
	translateT   float64
	contextLimit int

	mu       sync.Mutex
	provider model.Provider
}

// Option configures a Client.
type Option func(*Client)

// WithProvider uses p instead of building one from the configuration.
func WithProvider(p model.Provider) Option {
	return func(c *Client) { c.provider = p }
}

// WithProviderOptions passes HTTP options to the provider constructor.
func WithProviderOptions(opts model.Options) Option {
	return func(c *Client) { c.providerOpts = opts }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHub publishes stream lifecycle events on hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(c *Client) { c.hub = hub }
}

// WithTranslateTemperature overrides the temperature the native provider
// uses for translations.
func WithTranslateTemperature(t float64) Option {
	return func(c *Client) { c.translateT = t }
}

// WithRewriteContextLimit caps the document context sent with rewrites.
// Zero keeps the per-family default.
func WithRewriteContextLimit(n int) Option {
	return func(c *Client) { c.contextLimit = n }
}

// NewClient creates a client for cfg. The provider is built on first use so
// that a missing API key surfaces from the Start call.
func NewClient(cfg config.Resolved, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		translateT: config.DefaultTranslateTemp,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	if c.providerOpts.Logger == nil {
		c.providerOpts.Logger = c.logger
	}
	return c
}

// Config returns the resolved provider configuration.
func (c *Client) Config() config.Resolved { return c.cfg }

// Close releases the provider.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider == nil {
		return nil
	}
	return model.Close(c.provider)
}

func (c *Client) getProvider() (model.Provider, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.provider != nil {
		return c.provider, nil
	}
	p, err := model.NewProvider(c.cfg, c.providerOpts)
	if err != nil {
		return nil, err
	}
	c.provider = p
	return p, nil
}

// StartGenerate opens a draft stream.
func (c *Client) StartGenerate(ctx context.Context, req GenerateRequest) (*Stream, error) {
	if strings.TrimSpace(req.Prompt) == "" && len(req.Attachments) == 0 {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "empty prompt").
			WithUserMessage("Please describe what you want to write.")
	}
	p, err := c.getProvider()
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	prompt := prompts.Generate(p.Family(), req.Prompt)
	return c.open(ctx, p, KindGenerate, model.Request{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		System:      prompt.System,
		Prompt:      prompt.User,
		Attachments: req.Attachments,
	}), nil
}

// StartRewrite opens a selection rewrite stream.
func (c *Client) StartRewrite(ctx context.Context, req RewriteRequest) (*Stream, error) {
	if strings.TrimSpace(req.Selection) == "" {
		return nil, apperrors.New(apperrors.ErrCodeNoSelection, "empty selection").
			WithUserMessage("Select some text to rewrite.")
	}
	p, err := c.getProvider()
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	prompt := prompts.RewriteWithLimit(p.Family(), req.Selection, req.Context, req.Instruction, c.contextLimit)
	return c.open(ctx, p, KindRewrite, model.Request{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		System:      prompt.System,
		Prompt:      prompt.User,
	}), nil
}

// StartTranslate opens a translation stream. Empty content yields a stream
// that ends immediately without contacting the provider.
func (c *Client) StartTranslate(ctx context.Context, req TranslateRequest) (*Stream, error) {
	language := strings.TrimSpace(req.Language)
	if language == "" {
		return nil, apperrors.New(apperrors.ErrCodeInvalidInput, "missing target language").
			WithUserMessage("Choose a language to translate into.")
	}
	if req.Content == "" {
		return emptyStream(c.cfg.Provider), nil
	}
	p, err := c.getProvider()
	if err != nil {
		return nil, apperrors.Classify(err)
	}
	prompt := prompts.Translate(p.Family(), req.Content, language)
	r := model.Request{
		Model:       c.cfg.Model,
		Temperature: c.cfg.Temperature,
		System:      prompt.System,
		Prompt:      prompt.User,
	}
	if p.Family() == model.FamilyNative {
		r.Temperature = c.translateT
		r.StripFences = true
	}
	return c.open(ctx, p, KindTranslate, r), nil
}

func (c *Client) open(ctx context.Context, p model.Provider, kind string, req model.Request) *Stream {
	ctx, cancel := context.WithCancel(ctx)
	fragments, errs := p.Stream(ctx, req)

	details := map[string]any{"provider": p.ID(), "model": req.Model, "kind": kind}
	c.logger.Info(logging.CategoryStream, "stream.started", "completion stream opened", details)
	c.hub.Publish(telemetry.Event{Type: telemetry.EventModelStreamStarted, Data: details})

	return newStream(p.ID(), fragments, errs, cancel, func(count int, err *apperrors.Error) {
		data := map[string]any{"provider": p.ID(), "model": req.Model, "kind": kind, "fragments": count}
		if err != nil {
			data["code"] = string(err.Code)
			data["error"] = err.Error()
			c.logger.Warn(logging.CategoryStream, "stream.failed", err.Friendly(), data)
			c.hub.Publish(telemetry.Event{Type: telemetry.EventModelStreamFailed, Data: data})
			return
		}
		c.logger.Info(logging.CategoryStream, "stream.completed", "completion stream finished", data)
		c.hub.Publish(telemetry.Event{Type: telemetry.EventModelStreamEnded, Data: data})
	})
}
