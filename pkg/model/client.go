package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/odvcencio/inkwell/pkg/logging"
)

const (
	fragmentBuffer = 16

	// Generous enough for interactive use; the limiter mostly guards against
	// runaway retry loops.
	defaultRateLimit = rate.Limit(1)
	defaultBurstSize = 10
)

// RetryConfig configures reconnect attempts before the first byte of a
// stream. Streams are never retried once fragments have been delivered.
type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
		Multiplier:      2.0,
	}
}

// DefaultTransport returns an http.Transport tuned for long-lived streams.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
}

// streamClient holds the HTTP plumbing shared by every provider.
type streamClient struct {
	providerID  string
	httpClient  *http.Client
	transport   *LoggingTransport
	rateLimiter *rate.Limiter
	retryConfig RetryConfig
	logger      *logging.Logger
}

func newStreamClient(providerID string, opts Options) *streamClient {
	retryConfig := DefaultRetryConfig()
	if opts.Retry != nil {
		retryConfig = *opts.Retry
	}
	limit, burst := opts.RateLimit, opts.Burst
	if limit == 0 {
		limit = defaultRateLimit
	}
	if burst <= 0 {
		burst = defaultBurstSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	c := &streamClient{
		providerID:  providerID,
		rateLimiter: rate.NewLimiter(limit, burst),
		retryConfig: retryConfig,
		logger:      logger,
	}
	if opts.HTTPClient != nil {
		c.httpClient = opts.HTTPClient
		return c
	}

	var logDir string
	if opts.NetworkLogsEnabled {
		logDir = opts.LogDir
	}
	c.transport = NewLoggingTransport(DefaultTransport(), logDir)
	// No overall timeout: streams last as long as the provider keeps talking.
	c.httpClient = &http.Client{Transport: c.transport}
	return c
}

// Close closes the network log, if any.
func (c *streamClient) Close() error {
	if c.transport != nil {
		return c.transport.Close()
	}
	return nil
}

// stream opens the request built by build and decodes it on a goroutine.
func (c *streamClient) stream(ctx context.Context, build func(context.Context) (*http.Request, error), extract ChunkExtractor, stripFenced bool) (<-chan string, <-chan error) {
	fragments := make(chan string, fragmentBuffer)
	errs := make(chan error, 1)

	go func() {
		defer close(errs)
		defer close(fragments)

		start := time.Now()
		count, err := c.run(ctx, build, extract, stripFenced, fragments)
		details := map[string]any{
			"provider":    c.providerID,
			"fragments":   count,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			details["error"] = err.Error()
			c.logger.Warn(logging.CategoryStream, "stream.failed", "stream ended with error", details)
			errs <- err
			return
		}
		c.logger.Debug(logging.CategoryStream, "stream.completed", "stream finished", details)
	}()

	return fragments, errs
}

func (c *streamClient) run(ctx context.Context, build func(context.Context) (*http.Request, error), extract ChunkExtractor, stripFenced bool, out chan<- string) (int, error) {
	resp, err := c.open(ctx, build)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	count := 0
	decoder := NewSSEDecoder(extract, c.logger)
	err = decoder.Decode(ctx, resp.Body, func(fragment string) error {
		if stripFenced {
			fragment = stripFences(fragment)
		}
		if fragment == "" {
			return nil
		}
		select {
		case out <- fragment:
			count++
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	return count, err
}

// open sends the request, retrying connection failures and retryable
// status codes until a 200 arrives.
func (c *streamClient) open(ctx context.Context, build func(context.Context) (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.calculateRetryDelay(attempt, lastErr)
			c.logger.Debug(logging.CategoryStream, "stream.retry", "retrying stream request", map[string]any{
				"provider": c.providerID,
				"attempt":  attempt,
				"delay_ms": delay.Milliseconds(),
				"error":    lastErr.Error(),
			})
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := parseError(resp)
		resp.Body.Close()
		lastErr = apiErr
		if !apiErr.Retryable {
			return nil, apiErr
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateRetryDelay honors Retry-After, else backs off exponentially with
// jitter.
func (c *streamClient) calculateRetryDelay(attempt int, lastErr error) time.Duration {
	if apiErr, ok := lastErr.(*APIError); ok && apiErr.RetryAfter > 0 {
		if apiErr.RetryAfter > c.retryConfig.MaxInterval {
			return c.retryConfig.MaxInterval
		}
		return apiErr.RetryAfter
	}

	delay := float64(c.retryConfig.InitialInterval)
	for i := 1; i < attempt; i++ {
		delay *= c.retryConfig.Multiplier
	}
	if ceiling := float64(c.retryConfig.MaxInterval); ceiling > 0 && delay > ceiling {
		delay = ceiling
	}
	jitter := rand.Float64() * delay * 0.5
	return time.Duration(delay*0.75 + jitter)
}

// parseError turns a non-200 response into an APIError. The message is the
// provider's error.message, or "API Error: <status text>".
func parseError(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    "API Error: " + http.StatusText(resp.StatusCode),
		Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil || len(body) == 0 {
		return apiErr
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err != nil {
		// Gemini sometimes wraps the envelope in an array.
		var list []ErrorResponse
		if json.Unmarshal(body, &list) != nil || len(list) == 0 {
			return apiErr
		}
		errResp = list[0]
	}
	if errResp.Error.Message != "" {
		apiErr.Message = errResp.Error.Message
	}
	apiErr.Type = errResp.Error.Type
	if apiErr.Type == "" {
		apiErr.Type = errResp.Error.Status
	}
	if errResp.Error.Code != nil {
		apiErr.Code = fmt.Sprint(errResp.Error.Code)
	}
	return apiErr
}

// parseRetryAfter parses the Retry-After header
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(header); err == nil {
		return time.Duration(seconds) * time.Second
	}
	if t, err := time.Parse(time.RFC1123, header); err == nil {
		return time.Until(t)
	}
	return 0
}
