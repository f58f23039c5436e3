package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/poem-tavern/backend/internal/config"
	"github.com/zhouzirui/poem-tavern/backend/internal/model/persona"
	poemsvc "github.com/zhouzirui/poem-tavern/backend/internal/service/poem"
)

type proberFunc func(ctx context.Context) ([]string, error)

func (f proberFunc) ProbeUpstream(ctx context.Context) ([]string, error) { return f(ctx) }

func get(t *testing.T, opts Options, path string) map[string]any {
	t.Helper()
	r := chi.NewRouter()
	New(opts, nil).RegisterRoutes(r)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func arkOptions(p Prober) Options {
	return Options{
		Environment: "production",
		Poem:        config.PoemConfig{Provider: config.ProviderArk, APIKey: "ark-secret-key", Model: "doubao-pro"},
		Prober:      p,
		Poet:        persona.Default(),
	}
}

func TestTestUpstreamListingUnsupported(t *testing.T) {
	body := get(t, arkOptions(proberFunc(func(context.Context) ([]string, error) {
		return nil, poemsvc.ErrListingUnsupported
	})), "/test-upstream")

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "doubao-pro", body["model"])
}

func TestTestUpstreamUnclassifiedError(t *testing.T) {
	body := get(t, arkOptions(proberFunc(func(context.Context) ([]string, error) {
		return nil, errors.New("connection reset")
	})), "/test-upstream")

	assert.Equal(t, false, body["success"])
	assert.Equal(t, "connection reset", body["details"])
}

func TestTestUpstreamNotConfigured(t *testing.T) {
	body := get(t, Options{Poem: config.PoemConfig{Provider: config.ProviderGemini}}, "/test-upstream")

	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No API key configured", body["error"])
}

func TestHealthHidesKey(t *testing.T) {
	body := get(t, arkOptions(nil), "/health")

	assert.Equal(t, "ark-se...", body["apiKeyPrefix"])
	assert.Equal(t, "ark", body["provider"])
	assert.Equal(t, true, body["apiConfigured"])
}
