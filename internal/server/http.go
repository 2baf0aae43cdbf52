package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	regdomain "github.com/entra-mcp/entra-mcp/internal/server-plugins/registration/domain"
	"github.com/entra-mcp/entra-mcp/internal/server/auth"
	"github.com/entra-mcp/entra-mcp/internal/shared"
	"github.com/entra-mcp/entra-mcp/pkg/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	maxCommandBodyBytes = 64 << 10

	msgNoCommand      = "No command provided. Please describe the application registration to create."
	msgNotInitialized = "Agent not initialized. Check the server configuration and logs."
)

// CommandProcessor runs a natural-language command end to end.
type CommandProcessor interface {
	ProcessCommand(ctx context.Context, rawText string) *regdomain.CommandResult
}

type processCommandRequest struct {
	Command string `json:"command"`
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// HTTPHandler is the REST front door next to the MCP transport.
type HTTPHandler struct {
	processor CommandProcessor
	authn     auth.Authenticator
	checker   auth.AuthorizationChecker
	logger    *slog.Logger
}

// NewHTTPHandler builds the handler. A nil processor makes every command answer 500.
func NewHTTPHandler(processor CommandProcessor, authn auth.Authenticator, checker auth.AuthorizationChecker, logger *slog.Logger) *HTTPHandler {
	return &HTTPHandler{
		processor: processor,
		authn:     authn,
		checker:   checker,
		logger:    logger.With("component", "http"),
	}
}

// Router mounts the routes on a chi mux.
func (h *HTTPHandler) Router(cors config.CORSConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(CORSMiddleware(&cors))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Post("/api/process-command", h.processCommand)
	})
	return r
}

func (h *HTTPHandler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.BearerToken(r.Header.Get("Authorization"))
		tenant, err := h.authn.Authenticate(r.Context(), token)
		if err != nil {
			h.logger.Warn("Rejected request", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Unauthorized: " + err.Error()})
			return
		}
		if tenant.IsExpired() {
			writeJSON(w, http.StatusUnauthorized, errorBody{Message: "Unauthorized: credentials have expired"})
			return
		}
		if err := h.checker.CheckPermission(r.Context(), tenant, "app_registrations", "create"); err != nil {
			writeJSON(w, http.StatusForbidden, errorBody{Message: "Permission denied: " + err.Error()})
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.WithTenantContext(r.Context(), tenant)))
	})
}

func (h *HTTPHandler) processCommand(w http.ResponseWriter, r *http.Request) {
	if h.processor == nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: msgNotInitialized})
		return
	}

	var req processCommandRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxCommandBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorBody{Message: "Request body is too large."})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Message: msgNoCommand})
		return
	}
	if strings.TrimSpace(req.Command) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: msgNoCommand})
		return
	}

	result := h.processor.ProcessCommand(r.Context(), req.Command)
	h.logger.Info("Command processed",
		"request_id", middleware.GetReqID(r.Context()),
		"run_id", result.RunID(),
		"success", result.Success())

	status := http.StatusOK
	if !result.Success() {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
