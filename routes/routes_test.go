package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/app"
	"github.com/upb/llm-router/config"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) (*app.Dependencies, *httptest.Server) {
	t.Helper()

	cfg := &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{AllowedOrigins: []string{"*"}},
		Catalog:     config.CatalogConfig{Source: config.CatalogSourceBuiltin, BaselineModel: "claude-opus"},
		Classifier: config.ClassifierConfig{
			PrefixLength:      200,
			PrivacyPriority:   100,
			HeuristicPriority: 10,
		},
		Auth:      config.AuthConfig{JWTSecret: "0123456789abcdef0123456789abcdef", JWTIssuer: "llm-router"},
		RateLimit: config.RateLimitConfig{Enabled: true, RequestsPerSecond: 100, Burst: 100},
	}
	if mutate != nil {
		mutate(cfg)
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	server := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(func() {
		server.Close()
		_ = deps.Close(context.Background())
	})
	return deps, server
}

func do(t *testing.T, method, url, body, token string) (*http.Response, map[string]interface{}) {
	t.Helper()

	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func TestSetupRoutes(t *testing.T) {
	deps, server := newTestServer(t, nil)

	t.Run("liveness", func(t *testing.T) {
		resp, _ := do(t, http.MethodGet, server.URL+"/healthz", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	})

	t.Run("readiness without database or fast model", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, server.URL+"/readyz", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["data"].(map[string]interface{})["status"])
	})

	t.Run("auto route", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, server.URL+"/api/v1/route", `{"prompt":"HEARTBEAT_OK"}`, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := body["data"].(map[string]interface{})
		assert.Equal(t, "heuristic", data["engine"])
		assert.Equal(t, "llama3.2:3b", data["model"].(map[string]interface{})["name"])
		assert.NotEmpty(t, data["id"])
		assert.NotEmpty(t, resp.Header.Get("X-RateLimit-Limit"))
	})

	t.Run("explicit engine", func(t *testing.T) {
		resp, body := do(t, http.MethodPost, server.URL+"/api/v1/route/privacy", `{"prompt":"my ssn is 123-45-6789"}`, "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "privacy", body["data"].(map[string]interface{})["engine"])
	})

	t.Run("unknown engine", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, server.URL+"/api/v1/route/semantic", `{"prompt":"hello"}`, "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid body", func(t *testing.T) {
		resp, _ := do(t, http.MethodPost, server.URL+"/api/v1/route", `{}`, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list engines", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, server.URL+"/api/v1/engines", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["data"], 2)
	})

	t.Run("engine admin requires a token", func(t *testing.T) {
		resp, _ := do(t, http.MethodPatch, server.URL+"/api/v1/engines/heuristic", `{"enabled":false}`, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("engine admin requires the admin role", func(t *testing.T) {
		token, err := deps.JWTValidator.IssueToken("viewer", []string{"viewer"}, time.Minute)
		require.NoError(t, err)

		resp, _ := do(t, http.MethodPatch, server.URL+"/api/v1/engines/heuristic", `{"enabled":false}`, token)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("admin disables and re-enables an engine", func(t *testing.T) {
		token, err := deps.JWTValidator.IssueToken("ops", []string{"admin"}, time.Minute)
		require.NoError(t, err)

		resp, body := do(t, http.MethodPatch, server.URL+"/api/v1/engines/privacy", `{"enabled":false}`, token)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, false, body["data"].(map[string]interface{})["enabled"])

		resp, _ = do(t, http.MethodPost, server.URL+"/api/v1/route/privacy", `{"prompt":"my ssn is 123-45-6789"}`, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)

		resp, _ = do(t, http.MethodPatch, server.URL+"/api/v1/engines/privacy", `{"enabled":true}`, token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("models", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, server.URL+"/api/v1/models", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Len(t, body["data"], deps.Catalog.Len())

		resp, _ = do(t, http.MethodGet, server.URL+"/api/v1/models/claude-opus", "", "")
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = do(t, http.MethodGet, server.URL+"/api/v1/models/unknown", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("stats", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, server.URL+"/api/v1/stats", "", "")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		data := body["data"].(map[string]interface{})
		assert.Contains(t, data, "decisions")
		assert.Contains(t, data, "recorder")
		assert.NotContains(t, data, "cache")
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		resp, body := do(t, http.MethodGet, server.URL+"/api/v2/route", "", "")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "not_found", body["error"])
	})
}

func TestSetupRoutes_RateLimit(t *testing.T) {
	_, server := newTestServer(t, func(cfg *config.Config) {
		cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0.001, Burst: 1}
	})

	resp, _ := do(t, http.MethodPost, server.URL+"/api/v1/route", `{"prompt":"hello"}`, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, server.URL+"/api/v1/route", `{"prompt":"hello"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// Read-only endpoints are not limited
	resp, _ = do(t, http.MethodGet, server.URL+"/api/v1/models", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
