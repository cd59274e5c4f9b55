package web

import (
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
)

// setupRoutes wires every page, fragment, and asset endpoint.
func (s *Server) setupRoutes(r chi.Router) {
	r.Handle("/static/*", staticHandler())

	// Audio straight from the workspace. os.DirFS keeps requests
	// inside the scripts directory.
	r.Handle("/audio/*", http.StripPrefix("/audio/",
		http.FileServer(http.FS(os.DirFS(s.ws.ScriptsDir())))))

	r.Get("/", s.handleHome)
	r.Get("/updates", s.handleLibraryUpdates)
	r.Get("/lang", s.handleLang)

	r.Post("/scripts", s.handleCreate)
	r.Get("/scripts/{id}", s.handleScript)
	r.Post("/scripts/{id}/practiced", s.handlePracticed)
	r.Post("/scripts/{id}/delete", s.handleDelete)

	r.Get("/runs/{id}", s.handleRunPage)
	r.Get("/runs/{id}/progress", s.handleRunProgress)
}
