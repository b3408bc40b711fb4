package receipt

import (
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
)

// Server handles HTTP requests for photo review and the purchase ledger
type Server struct {
	service   *Service
	basicAuth BasicAuth
	mux       *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, basicAuth BasicAuth) *Server {
	return NewServerWithMux(service, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(service *Service, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		service:   service,
		basicAuth: basicAuth,
		mux:       mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Basic ") {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
	if err != nil {
		return false
	}

	credentials := strings.SplitN(string(decoded), ":", 2)
	if len(credentials) != 2 {
		return false
	}

	return credentials[0] == s.basicAuth.Username && credentials[1] == s.basicAuth.Password
}

// corsMiddleware adds CORS headers to responses
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			setCORSHeaders(w)
			w.Header().Set("WWW-Authenticate", `Basic realm="Receipt OCR"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	// Review sessions
	s.mux.HandleFunc("POST /api/photos", s.requireAuth(s.handleUploadPhoto))
	s.mux.HandleFunc("GET /api/sessions/{id}/regions/{index}/image", s.requireAuth(s.handleRegionImage))
	s.mux.HandleFunc("PUT /api/sessions/{id}/regions/{index}/labels", s.requireAuth(s.handleSetLabel))
	s.mux.HandleFunc("PUT /api/sessions/{id}/regions/{index}/items/{item}", s.requireAuth(s.handleSetItemHidden))
	s.mux.HandleFunc("POST /api/sessions/{id}/regions/{index}/retry", s.requireAuth(s.handleRetry))
	s.mux.HandleFunc("POST /api/sessions/{id}/regions/{index}/edits", s.requireAuth(s.handleEdit))
	s.mux.HandleFunc("POST /api/sessions/{id}/regions/{index}/commit", s.requireAuth(s.handleCommit))
	s.mux.HandleFunc("GET /api/sessions/{id}/photo", s.requireAuth(s.handlePhoto))
	s.mux.HandleFunc("POST /api/sessions/{id}/focus", s.requireAuth(s.handleMoveFocus))
	s.mux.HandleFunc("PUT /api/sessions/{id}/editing", s.requireAuth(s.handleBeginEdit))
	s.mux.HandleFunc("POST /api/sessions/{id}/editing", s.requireAuth(s.handleConfirmEdit))
	s.mux.HandleFunc("DELETE /api/sessions/{id}/editing", s.requireAuth(s.handleCancelEdit))
	s.mux.HandleFunc("GET /api/sessions/{id}", s.requireAuth(s.handleGetSession))
	s.mux.HandleFunc("DELETE /api/sessions/{id}", s.requireAuth(s.handleDeleteSession))

	// Purchase ledger
	s.mux.HandleFunc("GET /api/purchases/export", s.requireAuth(s.handleExport))
	s.mux.HandleFunc("GET /api/purchases", s.requireAuth(s.handleListRegistrations))
	s.mux.HandleFunc("DELETE /api/purchases", s.requireAuth(s.handleDeleteRegistration))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting server", "address", addr)
	// Wrap the mux with CORS middleware to handle all requests including OPTIONS
	return http.ListenAndServe(addr, http.HandlerFunc(s.corsMiddleware(s.mux.ServeHTTP)))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
