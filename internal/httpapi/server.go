package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"paperqa/config"
	"paperqa/internal/domain"
	"paperqa/internal/usecase"
)

// Server is the thin REST layer over the registry: upload a paper, chat
// with it, list and delete indexes.
type Server struct {
	registry *usecase.Registry
	cfg      *config.Config
	log      *slog.Logger
}

// NewServer creates the HTTP API server.
func NewServer(registry *usecase.Registry, cfg *config.Config, log *slog.Logger) *Server {
	return &Server{
		registry: registry,
		cfg:      cfg,
		log:      log,
	}
}

// Handler builds the route mux.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleHealth)
	mux.HandleFunc("GET /papers", s.handleList)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /chat", s.handleChat)
	mux.HandleFunc("DELETE /papers/{id}", s.handleDelete)
	return mux
}

// ListenAndServe runs the server on the configured address.
func (s *Server) ListenAndServe() error {
	s.log.Info("http api listening", "addr", s.cfg.Server.Addr)
	return http.ListenAndServe(s.cfg.Server.Addr, s.Handler())
}

type chatRequest struct {
	PaperID  string `json:"paper_id"`
	Question string `json:"question"`
}

type chatResponse struct {
	Answer  string          `json:"answer"`
	Sources []domain.Source `json:"sources"`
}

type uploadResponse struct {
	Status  string `json:"status"`
	PaperID string `json:"paper_id"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "paperqa API is running",
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	papers, err := s.registry.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if papers == nil {
		papers = []domain.Paper{}
	}
	writeJSON(w, http.StatusOK, papers)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Server.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, fmt.Sprintf("missing file field: %v", err))
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") &&
		!strings.HasSuffix(strings.ToLower(header.Filename), ".txt") &&
		!strings.HasSuffix(strings.ToLower(header.Filename), ".md") {
		s.writeStatus(w, http.StatusBadRequest, "only .pdf, .txt and .md files are allowed")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeStatus(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
		return
	}

	paperID := usecase.PaperIDFromFilename(header.Filename)
	s.log.Info("ingesting upload", "paper", paperID, "bytes", len(data))

	paper, err := s.registry.IngestFile(r.Context(), paperID, header.Filename, data, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Status:  "success",
		PaperID: paper.ID,
		Message: fmt.Sprintf("paper processed: %d leaf chunks indexed", paper.Leaves),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeStatus(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.PaperID == "" || req.Question == "" {
		s.writeStatus(w, http.StatusBadRequest, "paper_id and question are required")
		return
	}

	answer, err := s.registry.Answer(r.Context(), req.PaperID, req.Question)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Answer:  answer.Text,
		Sources: answer.Sources,
	})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	paperID := r.PathValue("id")
	if err := s.registry.Delete(paperID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("paper %q deleted", paperID),
	})
}

// writeError maps domain errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrIndexNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrParse), errors.Is(err, domain.ErrConfiguration):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		status = http.StatusBadGateway
	}
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "error", err)
	}
	s.writeStatus(w, status, err.Error())
}

func (s *Server) writeStatus(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
