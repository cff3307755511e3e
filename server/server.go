package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/research"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/stream"
)

// Options configures a Server.
type Options struct {
	// Runner executes research runs.
	Runner *research.Runner

	// Runs serves completed runs. Optional; without it the run endpoints
	// return 404.
	Runs store.RunStore

	// Logger defaults to the package-level logger.
	Logger log.Logger
}

// Server exposes the research engine over HTTP: runs stream as server-sent
// events, completed runs are served as JSON with a rendered answer.
type Server struct {
	runner *research.Runner
	runs   store.RunStore
	logger log.Logger
}

// New creates a server.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &Server{
		runner: opts.Runner,
		runs:   opts.Runs,
		logger: logger,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /research", s.handleResearch)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	return mux
}

type researchRequest struct {
	Question    string `json:"question"`
	ChatHistory string `json:"chat_history,omitempty"`
}

// handleResearch starts a run and streams its packets as server-sent
// events. The stream always ends with a terminal event, overall_stop or
// exception.
func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	h := s.runner.Start(r.Context(), req.Question, req.ChatHistory)
	s.logger.Info("run %s started over SSE", h.ID)

	err := h.Drain(func(p stream.Packet) error {
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", p.Kind, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// The exception packet has already been forwarded to the client.
		s.logger.Warn("run %s failed: %v", h.ID, err)
	}
}

type runResponse struct {
	*research.RunResult
	FinalAnswerHTML string `json:"final_answer_html"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.NotFound(w, r)
		return
	}

	run, err := s.runs.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.logger.Error("load run: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, runResponse{
		RunResult:       run,
		FinalAnswerHTML: RenderMarkdown(run.FinalAnswer),
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		http.NotFound(w, r)
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		s.logger.Error("list runs: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
