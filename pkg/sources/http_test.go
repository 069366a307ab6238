package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPLogSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["action"] != "get_build_logs" {
			t.Errorf("action = %q", req["action"])
		}
		if req["deploymentId"] != "dpl_1" {
			t.Errorf("deploymentId = %q", req["deploymentId"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"events": []map[string]any{
					{"payload": map[string]string{"text": "installing dependencies"}},
					{"payload": map[string]string{"text": ""}},
					{"payload": map[string]string{"text": "npm ERR! missing module"}},
				},
			},
		})
	}))
	defer srv.Close()

	lines, err := NewHTTPLogSource(srv.URL).BuildLogs(context.Background(), "dpl_1")
	if err != nil {
		t.Fatalf("build logs: %v", err)
	}
	want := []string{"installing dependencies", "npm ERR! missing module"}
	if len(lines) != len(want) {
		t.Fatalf("lines = %v", lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestHTTPLogSourceErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "deployment not found", http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := NewHTTPLogSource(srv.URL).BuildLogs(context.Background(), "dpl_missing"); err == nil {
		t.Fatalf("expected error on non-2xx response")
	}
}

func TestHTTPFileSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["action"] != "get_file" {
			t.Errorf("action = %q", req["action"])
		}
		if req["owner"] != "octo" || req["repo"] != "shop" || req["path"] != "package.json" || req["branch"] != "main" {
			t.Errorf("unexpected request: %v", req)
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]string{"decodedContent": "{\"name\":\"shop\"}"},
		})
	}))
	defer srv.Close()

	content, err := NewHTTPFileSource(srv.URL).FileContent(context.Background(), FileRef{
		Owner:  "octo",
		Repo:   "shop",
		Path:   "package.json",
		Branch: "main",
	})
	if err != nil {
		t.Fatalf("file content: %v", err)
	}
	if content != "{\"name\":\"shop\"}" {
		t.Fatalf("content = %q", content)
	}
}

func TestHTTPFileSourceConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	if _, err := NewHTTPFileSource(srv.URL).FileContent(context.Background(), FileRef{Path: "a"}); err == nil {
		t.Fatalf("expected error on closed server")
	}
}
