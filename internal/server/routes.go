package server

import (
	"net/http"

	"github.com/bobmcallan/dodgy-dave/internal/handlers"
)

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	report := s.app.ReportHandler

	// UI page and form actions
	mux.HandleFunc("/", report.ServePage)
	mux.HandleFunc("/tickers", report.HandleTickers)
	mux.HandleFunc("/generate", report.HandleGenerate)
	mux.HandleFunc("/reset", report.HandleReset)

	// Static files (CSS)
	mux.HandleFunc("/static/", s.app.PageHandler.StaticFileHandler)

	// API routes
	mux.HandleFunc("/api/health", s.app.HealthHandler.ServeHTTP)
	mux.HandleFunc("/api/version", s.app.VersionHandler.ServeHTTP)
	mux.HandleFunc("/api/session", report.HandleSessionAPI)

	if s.app.Config.IsDevMode() {
		mux.HandleFunc("/api/shutdown", func(w http.ResponseWriter, r *http.Request) {
			RouteByMethod(w, r, MethodRouter{http.MethodPost: s.handleShutdown})
		})
	}

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

// handleShutdown signals the main goroutine to stop the server.
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if s.shutdownChan == nil {
		handlers.WriteError(w, http.StatusServiceUnavailable, "shutdown not available")
		return
	}

	s.logger.Warn().Str("remote", r.RemoteAddr).Msg("shutdown requested")
	s.shutdownOnce.Do(func() { close(s.shutdownChan) })

	handlers.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "shutting down"})
}

// handleNotFound returns a JSON 404 for unmatched API routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	handlers.WriteJSON(w, http.StatusNotFound, map[string]string{
		"error":   "Not Found",
		"message": "The requested endpoint does not exist",
	})
}
