package server

import (
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"mcp-tool-server/internal/protocol"
	"mcp-tool-server/pkg/errors"
)

// HTTPConfig holds settings for the HTTP front end
type HTTPConfig struct {
	// Token enables bearer-token auth on /mcp when non-empty
	Token string
}

// maxHTTPBodySize bounds one request body (10MB)
const maxHTTPBodySize = 10 * 1024 * 1024

// NewHTTPHandler wraps a server session in an HTTP handler. Each POST to
// /mcp carries one JSON-RPC envelope and gets its response synchronously;
// notifications return 204.
func NewHTTPHandler(s *MCPServer, cfg HTTPConfig) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(2 * s.config.RequestTimeout))

	router.Get("/health", s.handleHealth)

	router.Route("/mcp", func(r chi.Router) {
		r.Use(bearerAuth(cfg.Token))
		r.Post("/", s.handleHTTPMessage)
	})

	return router
}

// bearerAuth rejects requests without the expected bearer token. An
// empty token disables auth.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			expected := "Bearer " + token
			got := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(got), []byte(expected)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *MCPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":        "ok",
		"session_state": s.State().String(),
		"timestamp":     time.Now().Format(time.RFC3339),
	})
}

// handleHTTPMessage processes one JSON-RPC envelope per request body
func (s *MCPServer) handleHTTPMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	body, err := io.ReadAll(io.LimitReader(r.Body, maxHTTPBodySize))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(
			s.createErrorResponse(nil, errors.MCPCodeInvalidRequest, "failed to read request body"))
		return
	}

	message, parseErr := protocol.Parse(body)
	if parseErr != nil {
		response := s.parseFailureResponse(parseErr)
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(response)
		return
	}

	response := s.HandleMessage(message)
	if response == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_ = json.NewEncoder(w).Encode(response)
}
