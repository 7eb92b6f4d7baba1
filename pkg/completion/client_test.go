package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/odvcencio/inkwell/pkg/config"
	apperrors "github.com/odvcencio/inkwell/pkg/errors"
	"github.com/odvcencio/inkwell/pkg/model"
	"github.com/odvcencio/inkwell/pkg/telemetry"
)

func fakeStream(fragments []string, err error) (<-chan string, <-chan error) {
	out := make(chan string, len(fragments))
	for _, f := range fragments {
		out <- f
	}
	close(out)
	errs := make(chan error, 1)
	if err != nil {
		errs <- err
	}
	close(errs)
	return out, errs
}

func newMock(t *testing.T, family model.Family) *MockProvider {
	t.Helper()
	t.Setenv("INKWELL_HOME", t.TempDir())
	for _, kind := range []string{"GENERATE", "REWRITE", "TRANSLATE"} {
		t.Setenv("INKWELL_PROMPT_"+kind, "")
		t.Setenv("INKWELL_PROMPT_"+kind+"_FILE", "")
	}
	ctrl := gomock.NewController(t)
	p := NewMockProvider(ctrl)
	p.EXPECT().ID().Return("mock").AnyTimes()
	p.EXPECT().Family().Return(family).AnyTimes()
	return p
}

var testConfig = config.Resolved{Provider: config.ProviderOpenAI, Model: "gpt-4o", Temperature: 0.7, APIKey: "k"}

func TestStartGenerate_SSE(t *testing.T) {
	p := newMock(t, model.FamilySSE)
	var got model.Request
	p.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req model.Request) (<-chan string, <-chan error) {
		got = req
		return fakeStream([]string{"<h1>Hi", "</h1>"}, nil)
	})

	client := NewClient(testConfig, WithProvider(p))
	stream, err := client.StartGenerate(context.Background(), GenerateRequest{
		Prompt:      "Write about tides",
		Attachments: []model.Attachment{{Name: "a.png", MIMEType: "image/png", Data: []byte{1}}},
	})
	require.NoError(t, err)

	text, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "<h1>Hi</h1>", text)
	assert.Equal(t, 2, stream.Count())

	assert.Equal(t, "gpt-4o", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 1e-9)
	assert.Contains(t, got.System, "expert ghostwriter")
	assert.Equal(t, "Write about tides", got.Prompt)
	assert.Len(t, got.Attachments, 1)
	assert.False(t, got.StripFences)
}

func TestStartGenerate_EmptyPrompt(t *testing.T) {
	client := NewClient(testConfig, WithProvider(newMock(t, model.FamilySSE)))
	_, err := client.StartGenerate(context.Background(), GenerateRequest{Prompt: "  "})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
}

func TestStartGenerate_MissingKey(t *testing.T) {
	cfg := testConfig
	cfg.APIKey = ""
	client := NewClient(cfg)
	_, err := client.StartGenerate(context.Background(), GenerateRequest{Prompt: "x"})
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStreamAuth, appErr.Code)
	assert.Equal(t, "Please provide an API Key for openai in Settings.", appErr.Friendly())
}

func TestStartRewrite_Native(t *testing.T) {
	p := newMock(t, model.FamilyNative)
	var got model.Request
	p.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req model.Request) (<-chan string, <-chan error) {
		got = req
		return fakeStream([]string{"fo"}, nil)
	})

	client := NewClient(config.Resolved{Provider: config.ProviderGoogle, Model: "gemini-2.5-flash", Temperature: 0.5, APIKey: "k"}, WithProvider(p))
	stream, err := client.StartRewrite(context.Background(), RewriteRequest{Selection: "foo", Context: "foo bar", Instruction: "Shorten"})
	require.NoError(t, err)
	text, err := stream.Collect()
	require.NoError(t, err)
	assert.Equal(t, "fo", text)

	assert.Empty(t, got.System)
	assert.Contains(t, got.Prompt, "foo bar... (truncated for brevity)")
	assert.Contains(t, got.Prompt, `Instruction for rewrite: "Shorten"`)
	assert.InDelta(t, 0.5, got.Temperature, 1e-9)
}

func TestStartRewrite_NoSelection(t *testing.T) {
	client := NewClient(testConfig, WithProvider(newMock(t, model.FamilySSE)))
	_, err := client.StartRewrite(context.Background(), RewriteRequest{Selection: " \n"})
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNoSelection))
}

func TestStartTranslate(t *testing.T) {
	t.Run("native lowers temperature and strips fences", func(t *testing.T) {
		p := newMock(t, model.FamilyNative)
		var got model.Request
		p.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req model.Request) (<-chan string, <-chan error) {
			got = req
			return fakeStream([]string{"<p>Hola</p>"}, nil)
		})
		client := NewClient(config.Resolved{Provider: config.ProviderGoogle, Model: "gemini-2.5-flash", Temperature: 0.9, APIKey: "k"}, WithProvider(p))
		stream, err := client.StartTranslate(context.Background(), TranslateRequest{Content: "<p>Hello</p>", Language: "Spanish"})
		require.NoError(t, err)
		_, err = stream.Collect()
		require.NoError(t, err)
		assert.InDelta(t, 0.3, got.Temperature, 1e-9)
		assert.True(t, got.StripFences)
		assert.Contains(t, got.Prompt, "high-quality Spanish")
	})

	t.Run("sse keeps configured temperature", func(t *testing.T) {
		p := newMock(t, model.FamilySSE)
		var got model.Request
		p.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req model.Request) (<-chan string, <-chan error) {
			got = req
			return fakeStream(nil, nil)
		})
		client := NewClient(testConfig, WithProvider(p))
		stream, err := client.StartTranslate(context.Background(), TranslateRequest{Content: "<p>Hello</p>", Language: "French"})
		require.NoError(t, err)
		_, err = stream.Collect()
		require.NoError(t, err)
		assert.InDelta(t, 0.7, got.Temperature, 1e-9)
		assert.False(t, got.StripFences)
		assert.Equal(t, "You are a professional translator. Translate to French. Maintain HTML structure.", got.System)
	})

	t.Run("empty content never reaches the provider", func(t *testing.T) {
		client := NewClient(testConfig, WithProvider(newMock(t, model.FamilySSE)))
		stream, err := client.StartTranslate(context.Background(), TranslateRequest{Language: "French"})
		require.NoError(t, err)
		text, err := stream.Collect()
		assert.NoError(t, err)
		assert.Empty(t, text)
	})

	t.Run("language required", func(t *testing.T) {
		client := NewClient(testConfig, WithProvider(newMock(t, model.FamilySSE)))
		_, err := client.StartTranslate(context.Background(), TranslateRequest{Content: "<p>x</p>"})
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidInput))
	})
}

func TestStream_ErrorIsClassifiedAndPartialTextKept(t *testing.T) {
	p := newMock(t, model.FamilySSE)
	p.EXPECT().Stream(gomock.Any(), gomock.Any()).Return(fakeStream([]string{"<p>par"}, errors.New("HTTP 429: slow down")))

	hub := telemetry.NewHub()
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	client := NewClient(testConfig, WithProvider(p), WithHub(hub))
	stream, err := client.StartGenerate(context.Background(), GenerateRequest{Prompt: "x"})
	require.NoError(t, err)

	text, err := stream.Collect()
	assert.Equal(t, "<p>par", text)
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrCodeStreamRateLimit, appErr.Code)
	assert.Equal(t, "Rate limit exceeded. Try again later.", appErr.Friendly())

	// Calling Next after the end stays terminal.
	_, more := stream.Next()
	assert.False(t, more)

	var types []telemetry.EventType
	timeout := time.After(time.Second)
	for len(types) < 2 {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
			if ev.Type == telemetry.EventModelStreamFailed {
				assert.Equal(t, 1, ev.Data["fragments"])
				assert.Equal(t, "mock", ev.Data["provider"])
			}
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", types)
		}
	}
	assert.Equal(t, []telemetry.EventType{telemetry.EventModelStreamStarted, telemetry.EventModelStreamFailed}, types)
}

func TestStream_CloseCancelsProvider(t *testing.T) {
	p := newMock(t, model.FamilySSE)
	p.EXPECT().Stream(gomock.Any(), gomock.Any()).DoAndReturn(func(ctx context.Context, _ model.Request) (<-chan string, <-chan error) {
		out := make(chan string)
		errs := make(chan error, 1)
		go func() {
			defer close(errs)
			defer close(out)
			for {
				select {
				case out <- "x":
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}()
		return out, errs
	})

	client := NewClient(testConfig, WithProvider(p))
	stream, err := client.StartRewrite(context.Background(), RewriteRequest{Selection: "a"})
	require.NoError(t, err)

	fragment, ok := stream.Next()
	require.True(t, ok)
	assert.Equal(t, "x", fragment)

	stream.Close()
	assert.True(t, apperrors.IsCode(stream.Err(), apperrors.ErrCodeStreamTransport))
}
