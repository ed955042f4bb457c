package server

import (
	"embed"
	"html/template"
	"net/http"
)

//go:embed templates
var embeddedPages embed.FS

var pages = template.Must(template.ParseFS(embeddedPages, "templates/*.html"))

// renderIndex serves the sender landing page.
func (s *Server) renderIndex(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "index.html", nil); err != nil {
		s.log.Warn("render index", "err", err)
	}
}

// renderReceive serves the receiver page with the room token injected
// so the page's script can join the right room.
func (s *Server) renderReceive(w http.ResponseWriter, roomID string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, "receive.html", map[string]string{"RoomID": roomID}); err != nil {
		s.log.Warn("render receive", "err", err)
	}
}
