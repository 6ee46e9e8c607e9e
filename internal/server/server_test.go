package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oas-testgen/internal/config"
	"oas-testgen/internal/parser"
	"oas-testgen/internal/pipeline"
	"oas-testgen/internal/storage"
)

const spec = `{
  "openapi": "3.0.3",
  "info": {"title": "Demo", "version": "1.0.0"},
  "servers": [{"url": %q}],
  "paths": {
    "/ok": {"get": {"responses": {"200": {"description": "ok"}}}}
  }
}`

type fixture struct {
	api     *httptest.Server
	target  *httptest.Server
	specs   *httptest.Server
	store   *storage.Store
	specURL string
}

func setup(t *testing.T) *fixture {
	t.Helper()

	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(target.Close)

	document := fmt.Sprintf(spec, target.URL)
	specs := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/openapi.json" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(document))
	}))
	t.Cleanup(specs.Close)

	root := t.TempDir()

	cfg := config.Default()
	cfg.Reporting.Format = []string{"json", "csv"}
	cfg.Server.AllowedOrigin = []string{"http://localhost:3000"}

	store, err := storage.NewStore(filepath.Join(root, "in"), filepath.Join(root, "out"), nil)
	require.NoError(t, err)

	srv := New(cfg, pipeline.New(cfg, nil, nil), store, nil)
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)

	return &fixture{api: api, target: target, specs: specs, store: store, specURL: specs.URL + "/openapi.json"}
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestGenerate(t *testing.T) {
	f := setup(t)

	resp := postJSON(t, f.api.URL+"/generate", map[string]interface{}{
		"spec_url": f.specURL, "positive": 2, "negative": 1, "edge": 0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	assert.NotEmpty(t, body["run_id"])
	assert.Len(t, body["rule_based_descriptions"], 3)
	assert.Empty(t, body["llm_descriptions"])
	assert.Len(t, body["test_cases"], 3)

	file, ok := body["file"].(string)
	require.True(t, ok)
	data, err := f.store.Read(file)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "endpoint,method,scenario,description,expected_status,request_body\n"))
}

func TestGenerateErrors(t *testing.T) {
	f := setup(t)

	resp := postJSON(t, f.api.URL+"/generate", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", decode(t, resp)["kind"])

	resp = postJSON(t, f.api.URL+"/generate", map[string]interface{}{"spec_url": f.specs.URL + "/none.json"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "spec_fetch", decode(t, resp)["kind"])

	resp = postJSON(t, f.api.URL+"/generate", map[string]interface{}{"spec_url": f.specURL, "strategy": "llm"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "configuration", decode(t, resp)["kind"])
}

func TestLocalSpecPathsRejected(t *testing.T) {
	f := setup(t)

	local := filepath.Join(t.TempDir(), "openapi.json")
	require.NoError(t, os.WriteFile(local, []byte(fmt.Sprintf(spec, f.target.URL)), 0644))

	for _, route := range []string{"/generate", "/run"} {
		for _, source := range []string{local, "file://" + local} {
			resp := postJSON(t, f.api.URL+route, map[string]interface{}{"spec_url": source})
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "%s %s", route, source)
			assert.Equal(t, "invalid_request", decode(t, resp)["kind"], "%s %s", route, source)
		}
	}
}

func TestRun(t *testing.T) {
	f := setup(t)

	resp := postJSON(t, f.api.URL+"/run", map[string]interface{}{
		"spec_url": f.specURL, "positive": 1, "negative": 1, "edge": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decode(t, resp)
	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(3), summary["total"])
	assert.Equal(t, float64(2), summary["passed"])
	assert.Equal(t, float64(1), summary["failed"])

	results := body["results"].([]interface{})
	require.Len(t, results, 3)
	assert.Equal(t, "PASS", results[0].(map[string]interface{})["result"])
	assert.Len(t, body["files"], 2)
}

func upload(t *testing.T, url, name, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(url+"/upload", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestUploadDownloadDelete(t *testing.T) {
	f := setup(t)

	resp := upload(t, f.api.URL, "cases.json", `[{"scenario":"a"}]`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err := http.Get(f.api.URL + "/download/cases.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "cases.json")

	req, err := http.NewRequest(http.MethodDelete, f.api.URL+"/delete/cases.json", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, decode(t, resp)["success"])

	resp, err = http.Get(f.api.URL + "/download/cases.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode(t, resp)["kind"])
}

func TestUploadWithoutFile(t *testing.T) {
	f := setup(t)
	resp, err := http.Post(f.api.URL+"/upload", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsStream(t *testing.T) {
	f := setup(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.api.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.NoError(t, f.store.Write("spec.json", strings.NewReader("{}")))

	reader := bufio.NewReader(resp.Body)
	event, err := reader.ReadString('\n')
	require.NoError(t, err)
	data, err := reader.ReadString('\n')
	require.NoError(t, err)

	assert.Equal(t, "event: file_uploaded\n", event)
	assert.Equal(t, "data: {\"filename\":\"spec.json\"}\n", data)
}

func TestCORS(t *testing.T) {
	f := setup(t)

	req, err := http.NewRequest(http.MethodOptions, f.api.URL+"/generate", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))

	req.Header.Set("Origin", "http://evil.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Empty(t, resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{&parser.SpecFetchError{Source: "x", Err: errors.New("boom")}, http.StatusBadRequest, "spec_fetch"},
		{fmt.Errorf("wrapped: %w", &parser.SpecValidationError{Err: errors.New("bad")}), http.StatusBadRequest, "spec_validation"},
		{pipeline.ErrNoBaseURL, http.StatusBadRequest, "configuration"},
		{fmt.Errorf("%w: x", pipeline.ErrUnknownStrategy), http.StatusBadRequest, "configuration"},
		{errors.New("disk full"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		status, kind := ErrorKind(tt.err)
		assert.Equal(t, tt.status, status, tt.err.Error())
		assert.Equal(t, tt.kind, kind, tt.err.Error())
	}
}
