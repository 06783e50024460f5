// Package http provides the HTTP server infrastructure.
// Framework layer: translates requests into usecase calls and results back
// into JSON.
package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tablerag/tablerag-go/internal/domain/usecases"
)

// Server is the HTTP server for the table question-answering API.
type Server struct {
	parser      *usecases.IntentParser
	retriever   *usecases.RetrieverUseCase
	answer      *usecases.AnswerUseCase
	rebuild     func(ctx context.Context) error
	addr        string
	defaultTopK int
}

// NewServer creates a new HTTP server. rebuild triggers a full index rebuild
// from the summary source; defaultTopK applies when a request carries no
// top_k of its own.
func NewServer(
	parser *usecases.IntentParser,
	retriever *usecases.RetrieverUseCase,
	answer *usecases.AnswerUseCase,
	rebuild func(ctx context.Context) error,
	addr string,
	defaultTopK int,
) *Server {
	return &Server{
		parser:      parser,
		retriever:   retriever,
		answer:      answer,
		rebuild:     rebuild,
		addr:        addr,
		defaultTopK: defaultTopK,
	}
}

// Start runs the HTTP server until the context is canceled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/ask", s.handleAsk)
	mux.HandleFunc("/api/search", s.handleSearch)
	mux.HandleFunc("/api/parse", s.handleParse)
	mux.HandleFunc("/api/rebuild", s.handleRebuild)
	mux.HandleFunc("/api/health", s.handleHealth)

	server := &http.Server{
		Addr:         s.addr,
		Handler:      corsMiddleware(loggingMiddleware(mux)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 300 * time.Second, // code generation and execution are slow
	}

	log.Printf("[INFO] tablerag server starting on %s", s.addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleAsk runs the full pipeline: parse, retrieve, plan, generate, run.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req usecases.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question required")
		return
	}
	if req.TopK <= 0 {
		req.TopK = s.defaultTopK
	}

	result, err := s.answer.Answer(r.Context(), req)
	if err != nil {
		log.Printf("[ERROR] answer failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleSearch returns ranked candidates without compiling a plan.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Question      string   `json:"question"`
		TopK          int      `json:"top_k,omitempty"`
		AllowFiles    []string `json:"allow_files,omitempty"`
		DisallowFiles []string `json:"disallow_files,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question required")
		return
	}

	if req.TopK <= 0 {
		req.TopK = s.defaultTopK
	}

	intent := s.parser.Parse(req.Question)
	candidates, err := s.retriever.SearchWithIntent(r.Context(), intent, usecases.RetrieveOptions{
		TopK:          req.TopK,
		AllowFiles:    req.AllowFiles,
		DisallowFiles: req.DisallowFiles,
	})
	if err != nil {
		log.Printf("[ERROR] search failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"intent":     intent,
		"candidates": candidates,
	})
}

// handleParse exposes the intent parser on its own, useful for debugging
// keyword coverage.
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question required")
		return
	}

	writeJSON(w, http.StatusOK, s.parser.Parse(req.Question))
}

// handleRebuild triggers a full index rebuild from the summary source.
func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.rebuild(r.Context()); err != nil {
		log.Printf("[ERROR] rebuild failed: %v", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "rebuilt"})
}

// handleHealth returns server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s %v", requestID, r.Method, r.URL.Path, time.Since(start))
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			return
		}
		next.ServeHTTP(w, r)
	})
}
