package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestGeminiComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("missing api key, query: %s", r.URL.RawQuery)
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 1 {
			t.Errorf("unexpected request shape: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "{\"authorization\": \"YES\"}"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "test-key", time.Second)
	text, err := c.Complete(context.Background(), "decide")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if text != `{"authorization": "YES"}` {
		t.Fatalf("text = %q", text)
	}
}

func TestGeminiCompleteHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "", time.Second)
	if _, err := c.Complete(context.Background(), "decide"); err == nil {
		t.Fatalf("expected error on http 429")
	}
}

func TestGeminiCompleteEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates": []}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "", time.Second)
	if _, err := c.Complete(context.Background(), "decide"); err == nil {
		t.Fatalf("expected error on empty candidates")
	}
}
