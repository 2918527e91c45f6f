package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"modelfolio/internal/app"
	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

var allowedImageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".webp": {},
}

// admin project handlers
func (s *Server) handleAdminProjects(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		projects, err := s.app.ListProjects(r.Context(), "")
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": projects,
			"count": len(projects),
		})
	case http.MethodPost:
		var req app.ProjectInput
		if !decodeJSON(w, r, &req) {
			return
		}
		project, err := s.app.CreateProject(req)
		if !s.writeAppError(w, r, identity, "admin.project.create", err) {
			return
		}
		s.audit(r, "admin.project.create", "success", "identity", identity.ID, "project", project.ID)
		writeJSON(w, http.StatusCreated, project)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminProjectByID(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/admin/projects/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		http.NotFound(w, r)
		return
	}

	switch {
	case action == "image" && r.Method == http.MethodPost:
		s.uploadProjectImage(w, r, identity, id)
	case action == "" && r.Method == http.MethodPatch:
		var req app.ProjectInput
		if !decodeJSON(w, r, &req) {
			return
		}
		project, err := s.app.UpdateProject(id, req)
		if !s.writeAppError(w, r, identity, "admin.project.update", err) {
			return
		}
		s.audit(r, "admin.project.update", "success", "identity", identity.ID, "project", id)
		writeJSON(w, http.StatusOK, project)
	case action == "" && r.Method == http.MethodDelete:
		if !s.writeAppError(w, r, identity, "admin.project.delete", s.app.DeleteProject(r.Context(), id)) {
			return
		}
		s.audit(r, "admin.project.delete", "success", "identity", identity.ID, "project", id)
		w.WriteHeader(http.StatusNoContent)
	case action == "":
		methodNotAllowed(w)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) uploadProjectImage(w http.ResponseWriter, r *http.Request, identity domain.Identity, id string) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if _, ok := allowedImageExtensions[ext]; !ok {
		writeError(w, http.StatusBadRequest, "unsupported image type")
		return
	}
	contentType := header.Header.Get("Content-Type")
	project, err := s.app.UploadProjectImage(r.Context(), id, header.Filename, file, header.Size, contentType)
	if !s.writeAppError(w, r, identity, "admin.project.image", err) {
		return
	}
	s.audit(r, "admin.project.image", "success", "identity", identity.ID, "project", id)
	writeJSON(w, http.StatusOK, project)
}

// admin content handlers
func (s *Server) handleAdminContent(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	switch r.Method {
	case http.MethodGet:
		blocks, err := s.app.ListContent(r.URL.Query().Get("page"))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"items": blocks,
			"count": len(blocks),
		})
	case http.MethodPost:
		var req contentUpsertRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		block, err := s.app.UpsertContent(req.Page, req.Section, req.Content)
		if !s.writeAppError(w, r, identity, "admin.content.upsert", err) {
			return
		}
		s.audit(r, "admin.content.upsert", "success", "identity", identity.ID, "block", block.ID)
		writeJSON(w, http.StatusOK, block)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminContentByID(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/content/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req contentUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	block, err := s.app.UpdateContent(id, req.Content)
	if !s.writeAppError(w, r, identity, "admin.content.update", err) {
		return
	}
	s.audit(r, "admin.content.update", "success", "identity", identity.ID, "block", id)
	writeJSON(w, http.StatusOK, block)
}

// writeAppError maps application errors onto HTTP responses. Returns true
// when err was nil and the caller should write its success response.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, identity domain.Identity, event string, err error) bool {
	if err == nil {
		return true
	}
	if verrs, ok := app.AsValidationErrors(err); ok {
		writeValidationError(w, verrs)
		return false
	}
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return false
	}
	s.audit(r, event, "fail", "identity", identity.ID, "reason", err.Error())
	writeError(w, http.StatusInternalServerError, "internal error")
	return false
}

type contentUpsertRequest struct {
	Page    string `json:"page"`
	Section string `json:"section"`
	Content string `json:"content"`
}

type contentUpdateRequest struct {
	Content string `json:"content"`
}
