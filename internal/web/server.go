// Package web provides an HTTP status server for the rotary-sensor daemon.
package web

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/rotary-sensor/internal/status"
)

// Server serves the encoder status page over HTTP. Both views are rendered
// from a fresh tracker snapshot on every request and marked no-store.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{tracker: tracker}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(status.FormatJSON(snap))
}
