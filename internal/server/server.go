// Package server exposes planning, execution and the file area over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"slices"
	"time"

	"oas-testgen/internal/config"
	"oas-testgen/internal/export"
	"oas-testgen/internal/logger"
	"oas-testgen/internal/parser"
	"oas-testgen/internal/pipeline"
	"oas-testgen/internal/reporter"
	"oas-testgen/internal/storage"
	"oas-testgen/internal/types"
)

const maxUploadSize = 32 << 20

// Server serves the HTTP API.
type Server struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
	store    *storage.Store
	logger   *logger.Logger
}

// New creates a server over an existing pipeline and store.
func New(cfg *config.Config, p *pipeline.Pipeline, store *storage.Store, log *logger.Logger) *Server {
	return &Server{
		cfg:      cfg,
		pipeline: p,
		store:    store,
		logger:   logger.OrNop(log),
	}
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("POST /run", s.handleRun)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /download/{name}", s.handleDownload)
	mux.HandleFunc("DELETE /delete/{name}", s.handleDelete)
	mux.HandleFunc("GET /files", s.handleList)
	mux.HandleFunc("GET /events", s.handleEvents)
	return s.cors(mux)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Server", "Listening on %s", s.cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("Server", "Shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(s.cfg.Server.AllowedOrigin, origin) || slices.Contains(s.cfg.Server.AllowedOrigin, "*")) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// planRequest is the body of /generate and /run. Unset fields fall back to
// the configuration.
type planRequest struct {
	SpecURL           string `json:"spec_url"`
	BaseURL           string `json:"base_url"`
	Strategy          string `json:"strategy"`
	Positive          *int   `json:"positive"`
	Negative          *int   `json:"negative"`
	Edge              *int   `json:"edge"`
	UseDeclaredStatus *bool  `json:"use_declared_status"`
}

func (req planRequest) options(cfg *config.Config) pipeline.Options {
	opts := pipeline.OptionsFrom(cfg)
	if req.Strategy != "" {
		opts.Strategy = req.Strategy
	}
	if req.Positive != nil {
		opts.Counts.Positive = *req.Positive
	}
	if req.Negative != nil {
		opts.Counts.Negative = *req.Negative
	}
	if req.Edge != nil {
		opts.Counts.Edge = *req.Edge
	}
	if req.UseDeclaredStatus != nil {
		opts.UseDeclaredStatus = *req.UseDeclaredStatus
	}
	return opts
}

func (s *Server) decodePlanRequest(w http.ResponseWriter, r *http.Request) (planRequest, bool) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", fmt.Errorf("invalid request body: %w", err))
		return req, false
	}
	if req.SpecURL == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", errors.New("no spec_url provided"))
		return req, false
	}
	if !parser.IsRemote(req.SpecURL) {
		s.writeError(w, http.StatusBadRequest, "invalid_request", errors.New("spec_url must be an http or https URL"))
		return req, false
	}
	for _, n := range []*int{req.Positive, req.Negative, req.Edge} {
		if n != nil && *n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid_request", errors.New("counts must not be negative"))
			return req, false
		}
	}
	return req, true
}

type generateResponse struct {
	RunID                 string           `json:"run_id"`
	RuleBasedDescriptions []string         `json:"rule_based_descriptions"`
	LLMDescriptions       []string         `json:"llm_descriptions"`
	TestCases             []types.TestCase `json:"test_cases"`
	File                  string           `json:"file,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePlanRequest(w, r)
	if !ok {
		return
	}

	plan, err := s.pipeline.Plan(r.Context(), req.SpecURL, req.options(s.cfg))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	resp := generateResponse{
		RunID:                 plan.RunID,
		RuleBasedDescriptions: descriptions(plan.RuleCases),
		LLMDescriptions:       descriptions(plan.LLMCases),
		TestCases:             plan.Cases(),
	}

	if s.store != nil && len(resp.TestCases) > 0 {
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, resp.TestCases); err != nil {
			s.writeError(w, http.StatusInternalServerError, "internal", err)
			return
		}
		name := fmt.Sprintf("testcases_%s.csv", plan.RunID)
		if err := s.store.WriteDownload(name, buf.Bytes()); err != nil {
			s.writeError(w, http.StatusInternalServerError, "internal", err)
			return
		}
		resp.File = name
	}

	s.writeJSON(w, http.StatusOK, resp)
}

type runResponse struct {
	*reporter.Report
	Files []string `json:"files,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodePlanRequest(w, r)
	if !ok {
		return
	}

	plan, err := s.pipeline.Plan(r.Context(), req.SpecURL, req.options(s.cfg))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	report, err := s.pipeline.Execute(r.Context(), plan, req.BaseURL, nil)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	resp := runResponse{Report: report}
	if s.store != nil {
		rep := reporter.NewReporter(reporter.ReportingConfig{
			Format:    s.cfg.Reporting.Format,
			OutputDir: s.store.DownloadDir(),
		})
		paths, err := rep.GenerateReport(report)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "internal", err)
			return
		}
		for _, p := range paths {
			name := filepath.Base(p)
			resp.Files = append(resp.Files, name)
			s.store.Publish(storage.Event{Name: name, Kind: storage.EventUploaded, Time: time.Now()})
		}
	}

	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", errors.New("no file provided"))
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if err := s.store.Write(name, file); err != nil {
		s.writeStorageError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	data, err := s.store.Read(name)
	if err != nil {
		s.writeStorageError(w, err)
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.Header().Set("Content-Type", "application/octet-stream")
	_, _ = w.Write(data)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.PathValue("name")); err != nil {
		s.writeStorageError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"files": names})
}

// handleEvents streams storage events as server-sent events named
// file_uploaded and file_deleted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "internal", errors.New("streaming unsupported"))
		return
	}

	events, cancel := s.store.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(map[string]string{"filename": ev.Name})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: file_%s\ndata: %s\n\n", ev.Kind, data)
			flusher.Flush()
		}
	}
}

func descriptions(cases []types.TestCase) []string {
	out := make([]string, len(cases))
	for i, tc := range cases {
		out[i] = tc.Description
	}
	return out
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Server", err, "failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, kind string, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("Server", err, "request failed")
	} else {
		s.logger.Debug("Server", "rejected request: %v", err)
	}
	s.writeJSON(w, status, map[string]string{"error": err.Error(), "kind": kind})
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	status, kind := ErrorKind(err)
	s.writeError(w, status, kind, err)
}

func (s *Server) writeStorageError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "not_found", errors.New("file not found"))
	case errors.Is(err, storage.ErrInvalidName):
		s.writeError(w, http.StatusBadRequest, "invalid_request", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

// ErrorKind classifies a pipeline error for the HTTP API and the CLI.
func ErrorKind(err error) (int, string) {
	var (
		fetchErr      *parser.SpecFetchError
		parseErr      *parser.SpecParseError
		validationErr *parser.SpecValidationError
	)
	switch {
	case errors.As(err, &fetchErr):
		return http.StatusBadRequest, "spec_fetch"
	case errors.As(err, &parseErr):
		return http.StatusBadRequest, "spec_parse"
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, "spec_validation"
	case errors.Is(err, pipeline.ErrNoBaseURL), errors.Is(err, pipeline.ErrNoGenerationClient), errors.Is(err, pipeline.ErrUnknownStrategy):
		return http.StatusBadRequest, "configuration"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
