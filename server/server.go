// Package server exposes the assistant and the agent catalog over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hupe1980/agentcatalog/agent"
	"github.com/hupe1980/agentcatalog/assistant"
	"github.com/hupe1980/agentcatalog/core"
	"github.com/hupe1980/agentcatalog/engine"
	"github.com/hupe1980/agentcatalog/logging"
)

// Responder answers chat turns.
type Responder interface {
	Respond(ctx context.Context, turn assistant.Turn) (assistant.Reply, error)
}

// AgentHost lists and performs catalog agents.
type AgentHost interface {
	Definitions() []core.Metadata
	Perform(ctx context.Context, req engine.Request) (engine.Response, error)
}

var (
	_ Responder = (*assistant.Assistant)(nil)
	_ AgentHost = (*engine.Engine)(nil)
)

// Options configure a Server.
type Options struct {
	// MaxBodyBytes bounds request bodies. Defaults to 1 MiB.
	MaxBodyBytes int64
	// ShutdownTimeout bounds graceful shutdown in ListenAndServe.
	ShutdownTimeout time.Duration
	Logger          logging.Logger
}

// Server routes HTTP requests to the assistant and the engine.
type Server struct {
	host      AgentHost
	responder Responder
	logger    logging.Logger
	opts      Options
	mux       *http.ServeMux
}

// New creates a Server. responder may be nil, in which case /api/chat
// answers 503.
func New(host AgentHost, responder Responder, optFns ...func(o *Options)) *Server {
	opts := Options{
		MaxBodyBytes:    1 << 20,
		ShutdownTimeout: 10 * time.Second,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	s := &Server{host: host, responder: responder, logger: opts.Logger, opts: opts, mux: http.NewServeMux()}
	s.mux.HandleFunc("POST /api/chat", s.handle(s.handleChat))
	s.mux.HandleFunc("GET /api/agents", s.handle(s.handleAgents))
	s.mux.HandleFunc("POST /api/agents/{name}", s.handle(s.handlePerform))
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

type apiError struct {
	Status  int
	Message string
	Code    string
}

type apiHandler func(http.ResponseWriter, *http.Request) *apiError

func (s *Server) handle(next apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Cache-Control", "no-store")
		start := time.Now()
		if err := next(w, r); err != nil {
			code := err.Code
			if code == "" {
				code = errorCodeForStatus(err.Status)
			}
			s.logger.Warn("server.request.failed", "method", r.Method, "path", r.URL.Path, "status", err.Status, "code", code, "error", err.Message)
			writeJSON(w, err.Status, errorResponse{Error: err.Message, Code: code})
			return
		}
		s.logger.Debug("server.request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	}
}

func errorCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	case http.StatusServiceUnavailable:
		return "service_unavailable"
	default:
		if status >= http.StatusInternalServerError {
			return "internal_error"
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) *apiError {
	body := http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &apiError{Status: http.StatusRequestEntityTooLarge, Message: "request body too large"}
		}
		if errors.Is(err, io.EOF) {
			return &apiError{Status: http.StatusBadRequest, Message: "request body is empty"}
		}
		return &apiError{Status: http.StatusBadRequest, Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) *apiError {
	if s.responder == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "no model configured"}
	}

	var req chatRequest
	if apiErr := s.decode(w, r, &req); apiErr != nil {
		return apiErr
	}
	if strings.TrimSpace(req.UserInput) == "" {
		return &apiError{Status: http.StatusBadRequest, Message: "user_input is required"}
	}

	reply, err := s.responder.Respond(r.Context(), assistant.Turn{
		UserGUID:  req.UserGUID,
		SessionID: req.SessionID,
		Input:     req.UserInput,
		History:   req.history(),
	})
	if err != nil {
		s.logger.Error("server.chat.failed", "error", err.Error())
		return &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
	}

	logs := reply.AgentLogs
	if logs == nil {
		logs = []string{}
	}
	writeJSON(w, http.StatusOK, chatResponse{
		AssistantResponse: reply.Text,
		VoiceResponse:     reply.Voice,
		AgentLogs:         logs,
		UserGUID:          reply.UserGUID,
		SessionID:         reply.SessionID,
	})
	return nil
}

func (s *Server) handleAgents(w http.ResponseWriter, _ *http.Request) *apiError {
	defs := s.host.Definitions()
	if defs == nil {
		defs = []core.Metadata{}
	}
	writeJSON(w, http.StatusOK, defs)
	return nil
}

func (s *Server) handlePerform(w http.ResponseWriter, r *http.Request) *apiError {
	name := r.PathValue("name")

	var req performRequest
	if apiErr := s.decode(w, r, &req); apiErr != nil {
		return apiErr
	}

	resp, err := s.host.Perform(r.Context(), engine.Request{
		SessionID: req.SessionID,
		UserGUID:  req.UserGUID,
		Agent:     name,
		Args:      req.Args,
	})
	if err != nil {
		return performError(err)
	}

	writeJSON(w, http.StatusOK, performResponse{
		InvocationID: resp.InvocationID,
		Agent:        resp.Agent,
		Output:       resp.Output,
		DurationMS:   resp.Duration.Milliseconds(),
	})
	return nil
}

func performError(err error) *apiError {
	if errors.Is(err, core.ErrAgentNotFound) {
		return &apiError{Status: http.StatusNotFound, Message: err.Error()}
	}
	if aerr, ok := agent.AsError(err); ok {
		status := http.StatusInternalServerError
		if aerr.Code == agent.CodeValidation {
			status = http.StatusBadRequest
		}
		return &apiError{Status: status, Message: aerr.Error(), Code: aerr.Code}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &apiError{Status: http.StatusGatewayTimeout, Message: err.Error(), Code: "timeout"}
	}
	return &apiError{Status: http.StatusInternalServerError, Message: err.Error()}
}
