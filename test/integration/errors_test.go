package integration

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/rhuss/watchtracker/pkg/api"
)

func TestInvalidJSON(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		resp, err := http.Post(env.BaseURL()+"/add_entry", "application/json", bytes.NewReader([]byte(`{invalid json`)))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d: %s", resp.StatusCode, readBody(t, resp))
		}
		var errResp api.ErrorResponse
		decodeErrorJSON(t, resp, &errResp)
		if errResp.Error == nil {
			t.Fatal("error object is nil")
		}
		if errResp.Error.Type != api.ErrorTypeInvalidRequest {
			t.Errorf("error.type = %q, want %q", errResp.Error.Type, api.ErrorTypeInvalidRequest)
		}
	})
}

func TestUnsupportedContentType(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		resp, err := http.Post(env.BaseURL()+"/add_entry", "text/csv", bytes.NewReader([]byte("a,b")))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusUnsupportedMediaType {
			t.Errorf("expected 415, got %d: %s", resp.StatusCode, body)
		}
	})
}

func TestErrorResponseFormat(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		resp := postJSON(t, env.BaseURL()+"/add_entry", map[string]any{"service": "tv"})

		var raw map[string]any
		decodeErrorJSON(t, resp, &raw)

		errObj, ok := raw["error"].(map[string]any)
		if !ok {
			t.Fatalf("response has no 'error' object: %v", raw)
		}
		for _, key := range []string{"type", "message"} {
			if _, ok := errObj[key]; !ok {
				t.Errorf("error object missing %q", key)
			}
		}
		if errObj["param"] != api.FieldEntryID {
			t.Errorf("error.param = %v, want %q", errObj["param"], api.FieldEntryID)
		}
	})
}

func TestUnknownRoutes(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		resp := getURL(t, env.BaseURL()+"/does-not-exist")
		readBody(t, resp)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("unknown path: expected 404, got %d", resp.StatusCode)
		}

		resp = getURL(t, env.BaseURL()+"/add_entry")
		readBody(t, resp)
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("GET /add_entry: expected 405, got %d", resp.StatusCode)
		}
	})
}
