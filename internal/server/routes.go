package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/beamdrop/beamdrop/internal/config"
	"github.com/beamdrop/beamdrop/internal/observe"
	"github.com/beamdrop/beamdrop/internal/signaling"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// Cross-origin browsers are the normal case for share links; the
	// CORS allowlist governs the HTTP surface instead.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server carries the HTTP collaborators around the signaling core.
type Server struct {
	cfg *config.Config
	hub *signaling.Hub
	log *slog.Logger
}

// New builds the HTTP layer around a running hub.
func New(cfg *config.Config, hub *signaling.Hub, log *slog.Logger) *Server {
	return &Server{cfg: cfg, hub: hub, log: log}
}

// Routes wires up all HTTP routes and middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", observe.Handler())
	mux.HandleFunc("/ws", s.serveWs)
	mux.HandleFunc("POST /create-room", s.handleCreateRoom)
	mux.HandleFunc("GET /receive/{room_id}", s.handleReceive)
	mux.HandleFunc("GET /{$}", s.handleIndex)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.CORSAllow,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// handleCreateRoom mints a new room and returns its share link.
func (s *Server) handleCreateRoom(w http.ResponseWriter, _ *http.Request) {
	roomID := s.hub.Rooms.Create()
	s.log.Info("room created", "room", roomID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"room_id":   roomID,
		"share_url": s.cfg.PublicURL + "/receive/" + roomID,
	})
}

// handleReceive serves the receiver page, or 404 when the share link
// points at a room that is gone or expired.
func (s *Server) handleReceive(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	if _, err := s.hub.Rooms.Lookup(roomID); err != nil {
		if errors.Is(err, signaling.ErrRoomNotFound) {
			http.Error(w, "This sharing link has expired or doesn't exist", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.renderReceive(w, roomID)
}

// handleIndex serves the sender landing page.
func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	s.renderIndex(w)
}

// serveWs upgrades the connection, issues it an ID, and hands it to
// the hub.
func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}

	client := signaling.NewClient(uuid.NewString(), s.hub, conn)
	client.Hub.Register <- client

	// Start the client's read and write pumps in separate goroutines.
	// These methods handle the client's lifecycle.
	go client.WritePump()
	go client.ReadPump()
}
