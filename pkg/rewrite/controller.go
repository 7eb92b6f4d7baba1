// Package rewrite drives streamed rewrites of a selected span into the live
// content tree, restoring the original text when the stream fails.
package rewrite

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/odvcencio/inkwell/pkg/completion"
	"github.com/odvcencio/inkwell/pkg/content"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/logging"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

// State is the controller's position in the rewrite flow.
type State string

const (
	StateIdle       State = "idle"
	StateCapturing  State = "capturing"
	StateStreaming  State = "streaming"
	StateCommitting State = "committing"
	StateDone       State = "done"
	StateFallback   State = "fallback"
)

var (
	// ErrNoSelection is returned when there is nothing to rewrite.
	ErrNoSelection = apperrors.New(apperrors.ErrCodeNoSelection, "no selection").
			WithUserMessage("Select some text to rewrite.")
	// ErrRewriteInProgress is returned while another rewrite is active.
	ErrRewriteInProgress = apperrors.New(apperrors.ErrCodeRewriteBusy, "rewrite already in progress").
				WithUserMessage("A rewrite is already running.")
)

// Streamer opens rewrite streams. *completion.Client satisfies it.
type Streamer interface {
	StartRewrite(ctx context.Context, req completion.RewriteRequest) (*completion.Stream, error)
}

// Request describes one rewrite.
type Request struct {
	Selection content.Selection
	Mode      Mode
	Custom    string
	// OnProgress receives the accumulated markup after every fragment.
	OnProgress func(accumulated string)
}

// Result is the outcome of a rewrite. Body is the re-serialized tree, valid
// for both committed and restored rewrites.
type Result struct {
	State       State
	Original    string
	Replacement string
	Body        string
	Fragments   int
}

// Controller runs at most one rewrite at a time.
type Controller struct {
	streamer Streamer
	gate     *semaphore.Weighted
	logger   *logging.Logger
	hub      *telemetry.Hub

	mu    sync.Mutex
	state State
	docID string
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithHub publishes state changes on hub.
func WithHub(hub *telemetry.Hub) Option {
	return func(c *Controller) { c.hub = hub }
}

// NewController creates an idle controller.
func NewController(streamer Streamer, opts ...Option) *Controller {
	c := &Controller{
		streamer: streamer,
		gate:     semaphore.NewWeighted(1),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.Nop()
	}
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Active reports whether a rewrite is in flight.
func (c *Controller) Active() bool {
	if c.gate.TryAcquire(1) {
		c.gate.Release(1)
		return false
	}
	return true
}

// Rewrite replaces req.Selection in tree with the streamed rewrite. docID
// only labels logs and events. On stream failure the tree is restored and
// the classified error is returned alongside a Fallback result.
func (c *Controller) Rewrite(ctx context.Context, docID string, tree *content.Tree, req Request) (Result, error) {
	if strings.TrimSpace(req.Selection.Text) == "" {
		return Result{State: StateIdle}, ErrNoSelection
	}
	if !c.gate.TryAcquire(1) {
		return Result{State: c.State()}, ErrRewriteInProgress
	}
	defer func() {
		c.setState(StateIdle, nil)
		c.gate.Release(1)
	}()

	c.mu.Lock()
	c.docID = docID
	c.mu.Unlock()

	c.setState(StateCapturing, nil)
	fullContext := tree.PlainText()
	placeholder, err := tree.InsertPlaceholder(req.Selection)
	if err != nil {
		if errors.Is(err, content.ErrSelectionNotFound) || errors.Is(err, content.ErrEmptySelection) {
			return Result{State: StateIdle}, ErrNoSelection
		}
		return Result{State: StateIdle}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "capture selection")
	}
	result := Result{Original: placeholder.Original()}

	instruction := Instruction(req.Mode, req.Custom)
	c.setState(StateStreaming, map[string]any{"mode": string(req.Mode)})
	stream, err := c.streamer.StartRewrite(ctx, completion.RewriteRequest{
		Selection:   req.Selection.Text,
		Context:     fullContext,
		Instruction: instruction,
	})
	if err != nil {
		return c.fallback(tree, placeholder, result, err)
	}

	var acc strings.Builder
	for {
		fragment, ok := stream.Next()
		if !ok {
			break
		}
		acc.WriteString(fragment)
		result.Fragments++
		if err := placeholder.SetHTML(acc.String()); err != nil {
			stream.Close()
			return c.fallback(tree, placeholder, result, err)
		}
		if req.OnProgress != nil {
			req.OnProgress(acc.String())
		}
	}
	if err := stream.Err(); err != nil {
		return c.fallback(tree, placeholder, result, err)
	}

	c.setState(StateCommitting, nil)
	result.Replacement = acc.String()
	if err := placeholder.Commit(result.Replacement); err != nil {
		return c.fallback(tree, placeholder, result, err)
	}
	body, err := tree.HTML()
	if err != nil {
		return result, apperrors.Wrap(err, apperrors.ErrCodeInternal, "serialize body")
	}
	result.Body = body
	result.State = StateDone
	c.setState(StateDone, nil)

	c.logger.Info(logging.CategoryRewrite, "rewrite.committed", "rewrite committed", map[string]any{
		"doc_id":    docID,
		"fragments": result.Fragments,
	})
	c.hub.Publish(telemetry.Event{
		Type:  telemetry.EventRewriteCommitted,
		DocID: docID,
		Data:  map[string]any{"fragments": result.Fragments, "mode": string(req.Mode)},
	})
	return result, nil
}

func (c *Controller) fallback(tree *content.Tree, placeholder *content.Placeholder, result Result, cause error) (Result, error) {
	classified := apperrors.Classify(cause)
	if restoreErr := placeholder.Restore(); restoreErr != nil {
		c.logger.Error(logging.CategoryRewrite, "rewrite.restore_failed", restoreErr.Error(), nil)
	}
	if body, err := tree.HTML(); err == nil {
		result.Body = body
	}
	result.State = StateFallback
	result.Replacement = ""
	c.setState(StateFallback, map[string]any{"code": string(classified.Code)})

	c.mu.Lock()
	docID := c.docID
	c.mu.Unlock()
	c.logger.Warn(logging.CategoryRewrite, "rewrite.fallback", classified.Friendly(), map[string]any{
		"doc_id":    docID,
		"fragments": result.Fragments,
		"error":     cause.Error(),
	})
	c.hub.Publish(telemetry.Event{
		Type:  telemetry.EventRewriteFallback,
		DocID: docID,
		Data:  map[string]any{"code": string(classified.Code), "message": classified.Friendly()},
	})
	return result, classified
}

func (c *Controller) setState(state State, data map[string]any) {
	c.mu.Lock()
	c.state = state
	docID := c.docID
	c.mu.Unlock()

	payload := map[string]any{"state": string(state)}
	for k, v := range data {
		payload[k] = v
	}
	c.hub.Publish(telemetry.Event{Type: telemetry.EventRewriteState, DocID: docID, Data: payload})
}
