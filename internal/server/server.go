// Package server exposes the broker over HTTP. Handlers sit on the
// untrusted side of the boundary: they see requests and sanitized
// results, never secret values.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rr3khan/secure-tools/internal/auth"
	"github.com/rr3khan/secure-tools/internal/executor"
	"github.com/rr3khan/secure-tools/internal/gate"
	"github.com/rr3khan/secure-tools/internal/registry"
	"github.com/rr3khan/secure-tools/internal/secrets"
	"github.com/rr3khan/secure-tools/internal/storage"
	"go.uber.org/zap"
)

// Runner executes validated calls. Implemented by broker.Broker.
type Runner interface {
	Run(ctx context.Context, call *gate.ValidatedCall, rctx *secrets.RuntimeContext) *executor.Result
}

// Server wires the validation gate, the broker, and the audit writer
// behind the HTTP API.
type Server struct {
	registry *registry.Registry
	gate     *gate.Gate
	broker   Runner
	auth     auth.Authenticator
	writer   storage.EventWriter
	logger   *zap.Logger
}

// New creates a Server.
func New(reg *registry.Registry, g *gate.Gate, broker Runner, authenticator auth.Authenticator, writer storage.EventWriter, logger *zap.Logger) *Server {
	return &Server{
		registry: reg,
		gate:     g,
		broker:   broker,
		auth:     authenticator,
		writer:   writer,
		logger:   logger,
	}
}

// Handler builds the HTTP mux with all routes wired up.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/tools", s.authMiddleware(s.handleListTools))
	mux.HandleFunc("POST /v1/tools/call", s.authMiddleware(s.handleCall))

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return requestLogging(mux, s.logger)
}

// handleListTools implements GET /v1/tools: capability advertisement for
// the reasoning component. Secret requirements are deliberately absent
// from the rendered definitions.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	defs := s.registry.List()
	tools := make([]ToolAdvert, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, ToolAdvert{
			Type: "function",
			Function: ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.Parameters,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": tools})
}

// handleCall implements POST /v1/tools/call: gate, then broker, then a
// sanitized response. Rejections never reach the broker.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req CallRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "invalid JSON body"})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResp{Detail: "name is required"})
		return
	}

	client := clientFromContext(r.Context())
	if client == nil {
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "missing client context"})
		return
	}

	requestID := uuid.New().String()

	call, err := s.gate.Validate(&gate.ToolCallRequest{ID: req.ID, Name: req.Name, Arguments: req.Arguments})
	if err != nil {
		s.writeRejection(w, r, client, &req, requestID, start, err)
		return
	}

	vault := req.Vault
	if vault == "" {
		vault = client.DefaultVault
	}
	rctx := &secrets.RuntimeContext{
		Vault:     vault,
		SessionID: req.SessionID,
		Model:     req.Model,
	}

	result := s.broker.Run(r.Context(), call, rctx)

	outcome := "ok"
	if !result.Success {
		outcome = "failed"
	}
	s.writeEvent(&req, client, requestID, outcome, "", start)

	writeJSON(w, http.StatusOK, CallResponse{
		RequestID: requestID,
		Success:   result.Success,
		Content:   result.Content,
		Error:     result.Error,
	})
}

// writeRejection maps gate rejections onto structured HTTP responses.
// Rejection detail carries names and schema mismatches only, so it is
// safe to surface directly.
func (s *Server) writeRejection(w http.ResponseWriter, _ *http.Request, client *auth.ClientContext, req *CallRequest, requestID string, start time.Time, err error) {
	var unknown *gate.UnknownToolError
	var invalid *gate.InvalidArgumentsError

	switch {
	case errors.As(err, &unknown):
		s.writeEvent(req, client, requestID, "rejected", "unknown_tool", start)
		writeJSON(w, http.StatusNotFound, RejectionResp{
			Kind:   "unknown_tool",
			Detail: unknown.Error(),
		})
	case errors.As(err, &invalid):
		s.writeEvent(req, client, requestID, "rejected", "invalid_arguments", start)
		writeJSON(w, http.StatusBadRequest, RejectionResp{
			Kind:   "invalid_arguments",
			Field:  invalid.Field,
			Detail: invalid.Error(),
		})
	default:
		s.writeEvent(req, client, requestID, "rejected", "internal", start)
		writeJSON(w, http.StatusInternalServerError, ErrorResp{Detail: "validation failed"})
	}
}

// writeEvent records the audit event. Arguments are never included.
func (s *Server) writeEvent(req *CallRequest, client *auth.ClientContext, requestID, outcome, rejection string, start time.Time) {
	s.writer.Write(&storage.ToolCallEvent{
		RequestID: requestID,
		ClientID:  client.ClientID,
		SessionID: req.SessionID,
		Timestamp: time.Now().UTC(),
		ToolName:  req.Name,
		Outcome:   outcome,
		Rejection: rejection,
		LatencyMs: float32(time.Since(start)) / float32(time.Millisecond),
		Source:    "http",
	})
}

// --- Auth middleware ---

type contextKey int

const clientCtxKey contextKey = iota

func clientFromContext(ctx context.Context) *auth.ClientContext {
	v, _ := ctx.Value(clientCtxKey).(*auth.ClientContext)
	return v
}

func (s *Server) authMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		client, err := s.auth.Authenticate(r)
		if err != nil {
			s.logger.Warn("auth failed", zap.Error(err))
			writeJSON(w, http.StatusUnauthorized, ErrorResp{Detail: "invalid API key"})
			return
		}
		ctx := context.WithValue(r.Context(), clientCtxKey, client)
		next(w, r.WithContext(ctx))
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func readJSON(r *http.Request, v any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}

// --- Request logging ---

func requestLogging(next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", sw.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
