package server

import (
	"net/http"

	"modelfolio/pkg/domain"
)

// handleProjects serves the public portfolio grid, optionally filtered by
// category via ?category=.
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	projects, err := s.app.ListProjects(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": projects,
		"count": len(projects),
	})
}

// handleContent serves editable text blocks, optionally for one page via
// ?page=.
func (s *Server) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	blocks, err := s.app.ListContent(r.URL.Query().Get("page"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if blocks == nil {
		blocks = []domain.ContentBlock{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": blocks,
		"count": len(blocks),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	stats, err := s.app.Stats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
