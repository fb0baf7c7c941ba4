package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlecost/bundlecost/internal/config"
	"github.com/bundlecost/bundlecost/internal/measure"
	"github.com/bundlecost/bundlecost/internal/sizecache"
)

type stubMeasurer struct {
	sizes       *measure.Sizes
	err         error
	unavailable bool
}

func (s *stubMeasurer) Measure(ctx context.Context, entryContent, root string) (*measure.Sizes, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.sizes, nil
}

func (s *stubMeasurer) Available(root string) bool { return !s.unavailable }
func (s *stubMeasurer) Reset()                     {}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:      "127.0.0.1:0",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
			BodyLimit:    1024 * 1024,
		},
	}
}

func newTestServer(m sizecache.Measurer) *Server {
	engine := sizecache.NewEngine(m, sizecache.WithVersionLookup(func(root, pkg string) (string, error) {
		return "1.2.3", nil
	}))
	return NewServer(testConfig(), engine, nil, nil, nil)
}

func postJSON(t *testing.T, s *Server, path string, body any) (int, map[string]json.RawMessage) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest("POST", path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	return resp.StatusCode, decoded
}

func measureBody(pkg string) map[string]any {
	return map[string]any{
		"import": map[string]any{
			"package_name":  pkg,
			"named_imports": []string{"useState"},
		},
		"workspace_root": "/ws",
	}
}

func TestHandleMeasure(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{MinifiedBytes: 24 * 1024, GzipBytes: 8 * 1024}})

		status, body := postJSON(t, s, "/api/v1/measure", measureBody("react"))
		require.Equal(t, 200, status)

		assert.JSONEq(t, `"cached"`, string(body["state"]))
		assert.JSONEq(t, `"24KB"`, string(body["minified"]))
		assert.JSONEq(t, `"8KB"`, string(body["gzip"]))

		var result sizecache.MeasurementResult
		require.NoError(t, json.Unmarshal(body["result"], &result))
		assert.Equal(t, "react {useState}", result.Name)
		assert.Equal(t, "1.2.3", result.Version)
	})

	t.Run("failed measurement returns null result", func(t *testing.T) {
		s := newTestServer(&stubMeasurer{err: errors.New("unbundleable")})

		status, body := postJSON(t, s, "/api/v1/measure", measureBody("bad"))
		require.Equal(t, 200, status)
		assert.JSONEq(t, `"failed"`, string(body["state"]))
		assert.JSONEq(t, `null`, string(body["result"]))
	})

	t.Run("missing workspace root", func(t *testing.T) {
		s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{}})
		status, body := postJSON(t, s, "/api/v1/measure", map[string]any{
			"import": map[string]any{"package_name": "react"},
		})
		assert.Equal(t, 400, status)
		assert.Contains(t, string(body["error"]), "workspace_root")
	})

	t.Run("invalid body", func(t *testing.T) {
		s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{}})
		req := httptest.NewRequest("POST", "/api/v1/measure", bytes.NewReader([]byte("{not json")))
		req.Header.Set("Content-Type", "application/json")
		resp, err := s.App().Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("unmeasurable signature", func(t *testing.T) {
		s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{}})
		status, _ := postJSON(t, s, "/api/v1/measure", map[string]any{
			"import":         map[string]any{"package_name": "./local", "is_local": true},
			"workspace_root": "/ws",
		})
		assert.Equal(t, 422, status)
	})
}

func TestHandleState(t *testing.T) {
	s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{MinifiedBytes: 100, GzipBytes: 40}})

	// State queries never trigger a measurement.
	status, body := postJSON(t, s, "/api/v1/state", measureBody("react"))
	require.Equal(t, 200, status)
	assert.JSONEq(t, `"missing"`, string(body["state"]))
	assert.JSONEq(t, `null`, string(body["result"]))

	// After a measurement the same query reports the cached entry.
	status, _ = postJSON(t, s, "/api/v1/measure", measureBody("react"))
	require.Equal(t, 200, status)

	status, body = postJSON(t, s, "/api/v1/state", measureBody("react"))
	require.Equal(t, 200, status)
	assert.JSONEq(t, `"cached"`, string(body["state"]))

	var result sizecache.MeasurementResult
	require.NoError(t, json.Unmarshal(body["result"], &result))
	assert.Equal(t, int64(100), result.MinifiedBytes)
}

func TestHandleClearCache(t *testing.T) {
	s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{MinifiedBytes: 100, GzipBytes: 40}})

	status, _ := postJSON(t, s, "/api/v1/measure", measureBody("react"))
	require.Equal(t, 200, status)

	status, body := postJSON(t, s, "/api/v1/cache/clear", map[string]any{})
	require.Equal(t, 200, status)
	assert.JSONEq(t, `"cleared"`, string(body["status"]))

	status, body = postJSON(t, s, "/api/v1/state", measureBody("react"))
	require.Equal(t, 200, status)
	assert.JSONEq(t, `"missing"`, string(body["state"]))
}

func TestHandleAvailable(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{}})
		req := httptest.NewRequest("GET", "/api/v1/available?root=/ws", nil)
		resp, err := s.App().Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"available":true}`, string(raw))
	})

	t.Run("unavailable", func(t *testing.T) {
		s := newTestServer(&stubMeasurer{unavailable: true})
		req := httptest.NewRequest("GET", "/api/v1/available", nil)
		resp, err := s.App().Test(req, -1)
		require.NoError(t, err)
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"available":false}`, string(raw))
	})
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(&stubMeasurer{sizes: &measure.Sizes{}})
	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
}
