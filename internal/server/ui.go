package server

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed web
var webFS embed.FS

// staticFS holds the page assets under their bare names.
var staticFS, _ = fs.Sub(webFS, "web")

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.ServeFileFS(w, r, staticFS, "index.html")
}

func staticHandler() http.Handler {
	return http.StripPrefix("/static/", http.FileServerFS(staticFS))
}
