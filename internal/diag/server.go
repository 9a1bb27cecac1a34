// Package diag exposes a small, read-only HTTP surface for inspecting a
// running capture backend: its capabilities, a liveness probe, and a
// websocket feed of consent state transitions. It never initiates a
// capture or consent flow itself.
package diag

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/bryanchriswhite/wincap/internal/logger"
	"github.com/bryanchriswhite/wincap/internal/wincap"
)

// ConsentEvent is broadcast over the websocket feed for each call to
// Publish; serve-diag publishes one whenever a source's stored restore
// token is added or changes.
type ConsentEvent struct {
	SourceID string    `json:"source_id"`
	State    string    `json:"state"`
	Time     time.Time `json:"time"`
}

// Facade is the subset of capture.Facade diag depends on; kept narrow to
// avoid an import cycle back into the capture package.
type Facade interface {
	Capabilities() wincap.Capabilities
	BackendName() string
}

// Server is a read-only diagnostics HTTP server.
type Server struct {
	router   *mux.Router
	facade   Facade
	upgrader websocket.Upgrader

	mu        sync.Mutex
	listeners []chan ConsentEvent
}

// NewServer builds the diagnostics router over facade.
func NewServer(facade Facade) *Server {
	s := &Server{
		router: mux.NewRouter(),
		facade: facade,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.HandleFunc("/capabilities", s.handleCapabilities).Methods(http.MethodGet)
	s.router.HandleFunc("/consent/stream", s.handleConsentStream)
}

// Handler returns the server's http.Handler for embedding in an
// http.Server or test server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.facade.BackendName()})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.facade.Capabilities())
}

func (s *Server) handleConsentStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("diag").Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch := s.subscribe()
	defer s.unsubscribe(ch)

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			logger.WithComponent("diag").Debug().Err(err).Msg("consent stream write failed, closing")
			return
		}
	}
}

// Publish broadcasts a consent state transition to every connected
// websocket client. A client whose buffer is full misses the event
// rather than blocking the publisher; the client stays subscribed.
func (s *Server) Publish(event ConsentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- event:
		default:
		}
	}
}

func (s *Server) subscribe() chan ConsentEvent {
	ch := make(chan ConsentEvent, 8)
	s.mu.Lock()
	s.listeners = append(s.listeners, ch)
	s.mu.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan ConsentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, l := range s.listeners {
		if l == ch {
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
