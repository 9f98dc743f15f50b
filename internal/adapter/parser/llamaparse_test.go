package parser

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"paperqa/internal/domain"
)

func newTestClient(t *testing.T, baseURL string) *LlamaParseClient {
	t.Helper()
	t.Setenv("TEST_LLAMA_KEY", "test-key")
	c, err := NewLlamaParseClient("TEST_LLAMA_KEY", baseURL)
	if err != nil {
		t.Fatal(err)
	}
	c.pollInterval = 10 * time.Millisecond
	return c
}

func TestLlamaParseMissingAPIKey(t *testing.T) {
	t.Setenv("TEST_LLAMA_MISSING", "")
	if _, err := NewLlamaParseClient("TEST_LLAMA_MISSING", "http://localhost"); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestLlamaParseSuccess(t *testing.T) {
	polls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing auth header on %s", r.URL.Path)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/parsing/upload":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				t.Errorf("bad multipart upload: %v", err)
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "PENDING"})
		case r.URL.Path == "/api/v1/parsing/job/job-1":
			polls++
			status := "PENDING"
			if polls >= 2 {
				status = "SUCCESS"
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": status})
		case r.URL.Path == "/api/v1/parsing/job/job-1/result/markdown":
			json.NewEncoder(w).Encode(map[string]string{"markdown": "# Extracted\n\nbody text"})
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	text, err := c.Parse(context.Background(), "paper.pdf", []byte("%PDF-1.4 fake"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text, "Extracted") {
		t.Errorf("unexpected parse result: %q", text)
	}
	if polls < 2 {
		t.Errorf("expected the client to poll until success, polled %d times", polls)
	}
}

func TestLlamaParseJobFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/parsing/upload":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-2", "status": "PENDING"})
		case r.URL.Path == "/api/v1/parsing/job/job-2":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-2", "status": "ERROR", "error": "corrupt file"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Parse(context.Background(), "broken.pdf", []byte("junk"))
	if !errors.Is(err, domain.ErrParse) {
		t.Fatalf("expected ErrParse, got %v", err)
	}
	if !strings.Contains(err.Error(), "corrupt file") {
		t.Errorf("error should carry the job failure reason: %v", err)
	}
}

func TestLlamaParseUploadRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Parse(context.Background(), "paper.pdf", []byte("data"))
	if !errors.Is(err, domain.ErrParse) {
		t.Errorf("expected ErrParse, got %v", err)
	}
}

func TestLlamaParseContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/parsing/upload":
			json.NewEncoder(w).Encode(map[string]string{"id": "job-3", "status": "PENDING"})
		default:
			json.NewEncoder(w).Encode(map[string]string{"id": "job-3", "status": "PENDING"})
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	c := newTestClient(t, srv.URL)
	_, err := c.Parse(ctx, "paper.pdf", []byte("data"))
	if !errors.Is(err, domain.ErrParse) {
		t.Errorf("expected ErrParse on cancellation, got %v", err)
	}
}
