package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poem-tavern/backend/internal/model/poem"
)

func geminiServer(t *testing.T, status int, body string) (*httptest.Server, *geminiRequest) {
	t.Helper()
	captured := &geminiRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.Query().Get("key"))
		_ = json.NewDecoder(r.Body).Decode(captured)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, captured
}

func TestGeminiGenerateExtractsFirstText(t *testing.T) {
	srv, captured := geminiServer(t, http.StatusOK, `{
		"candidates": [
			{"content": {"parts": [{"text": "Line1\nLine2"}, {"text": "ignored"}]}},
			{"content": {"parts": [{"text": "second candidate"}]}}
		]
	}`)

	g := NewGemini(srv.URL, "test-key", "gemini-2.5-flash")
	text, err := g.Generate(context.Background(), "write about sunset")

	require.NoError(t, err)
	assert.Equal(t, "Line1\nLine2", text)
	require.Len(t, captured.Contents, 1)
	assert.Equal(t, "write about sunset", captured.Contents[0].Parts[0].Text)
}

func TestGeminiGenerateToleratesMissingLevels(t *testing.T) {
	bodies := []string{
		`{}`,
		`{"candidates": []}`,
		`{"candidates": [{}]}`,
		`{"candidates": [{"content": {}}]}`,
		`{"candidates": [{"content": {"parts": []}}]}`,
	}

	for _, body := range bodies {
		srv, _ := geminiServer(t, http.StatusOK, body)
		text, err := NewGemini(srv.URL, "test-key", "gemini-2.5-flash").Generate(context.Background(), "p")
		require.NoError(t, err, body)
		assert.Empty(t, text, body)
	}
}

func TestGeminiGenerateStatusError(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusTooManyRequests,
		`{"error": {"code": 429, "message": "Resource has been exhausted", "status": "RESOURCE_EXHAUSTED"}}`)

	_, err := NewGemini(srv.URL, "test-key", "gemini-2.5-flash").Generate(context.Background(), "p")

	var upstreamErr *poem.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusTooManyRequests, upstreamErr.StatusCode)
	assert.Equal(t, "Resource has been exhausted", upstreamErr.Message)
	assert.False(t, upstreamErr.Timeout)
}

func TestGeminiGenerateStatusErrorWithPlainBody(t *testing.T) {
	srv, _ := geminiServer(t, http.StatusForbidden, `forbidden`)

	_, err := NewGemini(srv.URL, "test-key", "gemini-2.5-flash").Generate(context.Background(), "p")

	var upstreamErr *poem.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusForbidden, upstreamErr.StatusCode)
	assert.Equal(t, "forbidden", upstreamErr.Message)
}

func TestGeminiListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models": [{"name": "models/gemini-2.5-flash"}, {"name": "models/gemini-2.5-pro"}]}`))
	}))
	defer srv.Close()

	models, err := NewGemini(srv.URL, "test-key", "gemini-2.5-flash").ListModels(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"models/gemini-2.5-flash", "models/gemini-2.5-pro"}, models)
}
