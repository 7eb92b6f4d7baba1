package model

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/odvcencio/inkwell/pkg/config"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/paths"
)

// Provider streams completion fragments from one backend.
type Provider interface {
	ID() string
	Family() Family
	// Stream sends req and yields text fragments in arrival order. The
	// fragment channel is closed when the stream ends; at most one error is
	// delivered on the error channel, which is closed afterwards.
	Stream(ctx context.Context, req Request) (<-chan string, <-chan error)
}

// Options tunes the HTTP side of a provider.
type Options struct {
	// HTTPClient replaces the default client (and its logging transport).
	HTTPClient         *http.Client
	Logger             *logging.Logger
	NetworkLogsEnabled bool
	// LogDir receives network.jsonl; defaults to paths.LogsBaseDir().
	LogDir    string
	Retry     *RetryConfig
	RateLimit rate.Limit
	Burst     int
}

// NewProvider builds the provider selected by cfg. A missing API key fails
// fast with a STREAM_AUTH error.
func NewProvider(cfg config.Resolved, opts Options) (Provider, error) {
	info, ok := LookupProvider(cfg.Provider)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, fmt.Sprintf("unknown provider %q", cfg.Provider)).
			WithUserMessage(fmt.Sprintf("Unknown provider %q. Check Settings.", cfg.Provider))
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		msg := fmt.Sprintf("Please provide an API Key for %s in Settings.", cfg.Provider)
		return nil, apperrors.New(apperrors.ErrCodeStreamAuth, "missing api key").
			WithContext("provider", cfg.Provider).
			WithUserMessage(msg)
	}
	baseURL := ResolveBaseURL(cfg.Provider, cfg.BaseURL)

	if opts.NetworkLogsEnabled && opts.LogDir == "" {
		opts.LogDir = paths.LogsBaseDir()
	}
	client := newStreamClient(info.ID, opts)

	switch info.Family {
	case FamilyNative:
		return NewGoogleProvider(apiKey, baseURL, client), nil
	default:
		return NewOpenAICompatibleProvider(info.ID, apiKey, baseURL, client), nil
	}
}

// Close releases resources held by p, such as the network log file.
func Close(p Provider) error {
	if c, ok := p.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
