package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"paperqa/config"
	"paperqa/internal/adapter/embedding"
	"paperqa/internal/adapter/llm"
	"paperqa/internal/adapter/parser"
	"paperqa/internal/domain"
	"paperqa/internal/usecase"
)

const uploadText = `Attention mechanisms compute weighted sums over all positions. Each
query attends to every key. The weights come from scaled dot products.

Positional encodings inject order information. Without them the model
would treat its input as a bag of tokens. Sinusoids of varying
frequency serve the purpose.`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Storage.Dir = t.TempDir()
	cfg.Split.TierSizes = []int{40, 20, 10}
	cfg.Embedding.Dimension = 64

	registry := usecase.NewRegistry(cfg, parser.NewPlainParser(), embedding.NewMockEmbedder(64), llm.NewMockGenerator())
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(NewServer(registry, cfg, logger).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func uploadFile(t *testing.T, srv *httptest.Server, filename, content string) *http.Response {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := writer.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(srv.URL+"/upload", writer.FormDataContentType(), &body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestUploadAndChat(t *testing.T) {
	srv := newTestServer(t)

	resp := uploadFile(t, srv, "Attention Paper.txt", uploadText)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upload failed with %d", resp.StatusCode)
	}
	var up struct {
		Status  string `json:"status"`
		PaperID string `json:"paper_id"`
	}
	decodeJSON(t, resp, &up)
	if up.Status != "success" {
		t.Errorf("unexpected upload status: %s", up.Status)
	}
	if up.PaperID != "attention_paper" {
		t.Errorf("unexpected paper id: %s", up.PaperID)
	}

	chatBody, _ := json.Marshal(map[string]string{
		"paper_id": up.PaperID,
		"question": "How is attention computed?",
	})
	resp, err := http.Post(srv.URL+"/chat", "application/json", bytes.NewReader(chatBody))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("chat failed with %d", resp.StatusCode)
	}

	var chat struct {
		Answer  string          `json:"answer"`
		Sources []domain.Source `json:"sources"`
	}
	decodeJSON(t, resp, &chat)
	if chat.Answer == "" {
		t.Error("empty answer")
	}
	if len(chat.Sources) == 0 {
		t.Error("no sources returned")
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t)

	resp := uploadFile(t, srv, "malware.exe", "content")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for .exe upload, got %d", resp.StatusCode)
	}
}

func TestUploadMissingFileField(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/upload", "multipart/form-data; boundary=x", strings.NewReader("--x--\r\n"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing file field, got %d", resp.StatusCode)
	}
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`{"paper_id":""}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/chat", "application/json", strings.NewReader(`not json`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid JSON, got %d", resp.StatusCode)
	}
}

func TestChatUnknownPaper(t *testing.T) {
	srv := newTestServer(t)

	body := `{"paper_id":"nope","question":"anything?"}`
	resp, err := http.Post(srv.URL+"/chat", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for unknown paper, got %d", resp.StatusCode)
	}
}

func TestListAndDelete(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/papers")
	if err != nil {
		t.Fatal(err)
	}
	var papers []domain.Paper
	decodeJSON(t, resp, &papers)
	if len(papers) != 0 {
		t.Errorf("expected empty paper list, got %d", len(papers))
	}

	up := uploadFile(t, srv, "notes.txt", uploadText)
	up.Body.Close()
	if up.StatusCode != http.StatusOK {
		t.Fatalf("upload failed with %d", up.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/papers")
	if err != nil {
		t.Fatal(err)
	}
	decodeJSON(t, resp, &papers)
	if len(papers) != 1 || papers[0].ID != "notes" {
		t.Fatalf("unexpected paper list: %v", papers)
	}

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/papers/notes", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete failed with %d", resp.StatusCode)
	}

	req, err = http.NewRequest(http.MethodDelete, srv.URL+"/papers/notes", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for double delete, got %d", resp.StatusCode)
	}
}
