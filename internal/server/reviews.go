package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"modelfolio/internal/app"
	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

// handleReviews serves the review list to everyone and accepts new
// submissions from signed-in visitors.
func (s *Server) handleReviews(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listReviews(w, r)
	case http.MethodPost:
		identity, ok := s.authorize(r)
		if !ok {
			s.audit(r, "reviews.submit", "fail", "reason", "unauthenticated")
			writeError(w, http.StatusUnauthorized, "sign in to leave a review")
			return
		}
		s.submitReview(w, r, identity)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) listReviews(w http.ResponseWriter, r *http.Request) {
	viewer := s.viewer(r)
	reviews, loadErr := s.app.LoadReviews(viewer)
	if loadErr != nil && len(reviews) == 0 {
		writeError(w, http.StatusServiceUnavailable, "reviews are temporarily unavailable")
		return
	}

	state, own, err := s.app.StateFor(viewer)
	if err != nil {
		slog.Warn("derive session state", "error", err)
		state = domain.StateLoggedOut
	}

	resp := reviewListResponse{
		Items:        reviews,
		Count:        len(reviews),
		SessionState: state,
		OwnReview:    own,
		Stale:        loadErr != nil,
	}
	if stats, err := s.app.Stats(); err == nil {
		resp.Stats = &stats
	} else {
		slog.Warn("compute stats", "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) submitReview(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	if !s.allowRate(w, r, s.submitLimiter, "too many submissions") {
		s.audit(r, "reviews.submit", "rate_limited", "identity", identity.ID)
		return
	}
	var req submitReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	review, err := s.app.Submit(&identity, req.Rating, req.Body)
	if verrs, ok := app.AsValidationErrors(err); ok {
		writeValidationError(w, verrs)
		return
	}
	if errors.Is(err, app.ErrAlreadySubmitted) {
		// One review per identity; losing a concurrent double submit lands
		// here too and is not an error for the user.
		s.audit(r, "reviews.submit", "duplicate", "identity", identity.ID)
		writeJSON(w, http.StatusOK, reviewResponse{
			Review: review,
			Notice: "you have already submitted a review",
		})
		return
	}
	if err != nil {
		s.audit(r, "reviews.submit", "fail", "identity", identity.ID, "reason", err.Error())
		writeError(w, http.StatusInternalServerError, "could not save review")
		return
	}
	s.audit(r, "reviews.submit", "success", "identity", identity.ID, "review", review.ID)
	writeJSON(w, http.StatusCreated, reviewResponse{Review: review})
}

// handleReviewByID routes the edit lifecycle:
//
//	POST  /api/reviews/{id}/edit    open an edit, returns the current body
//	PATCH /api/reviews/{id}         save the new body
//	POST  /api/reviews/{id}/cancel  discard the pending edit
func (s *Server) handleReviewByID(w http.ResponseWriter, r *http.Request, identity domain.Identity) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/reviews/")
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		http.NotFound(w, r)
		return
	}

	switch {
	case action == "edit" && r.Method == http.MethodPost:
		s.beginEdit(w, r, identity, id)
	case action == "cancel" && r.Method == http.MethodPost:
		s.app.CancelEdit(&identity)
		w.WriteHeader(http.StatusNoContent)
	case action == "" && r.Method == http.MethodPatch:
		s.saveEdit(w, r, identity, id)
	case action == "":
		methodNotAllowed(w)
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) beginEdit(w http.ResponseWriter, r *http.Request, identity domain.Identity, id string) {
	body, err := s.app.BeginEdit(&identity, id)
	if errors.Is(err, store.ErrNotOwner) {
		// Not distinguishing "not yours" from "not found" keeps review
		// ownership unguessable.
		s.audit(r, "reviews.edit", "fail", "identity", identity.ID, "reason", "not_owner")
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"body": body})
}

func (s *Server) saveEdit(w http.ResponseWriter, r *http.Request, identity domain.Identity, id string) {
	var req editReviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	review, err := s.app.SaveEdit(&identity, id, req.Body)
	if verrs, ok := app.AsValidationErrors(err); ok {
		writeValidationError(w, verrs)
		return
	}
	if errors.Is(err, store.ErrNotOwner) {
		s.audit(r, "reviews.edit", "fail", "identity", identity.ID, "reason", "not_owner")
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not save changes")
		return
	}
	s.audit(r, "reviews.edit", "success", "identity", identity.ID, "review", review.ID)
	writeJSON(w, http.StatusOK, reviewResponse{Review: review})
}

type submitReviewRequest struct {
	Rating int    `json:"rating"`
	Body   string `json:"body"`
}

type editReviewRequest struct {
	Body string `json:"body"`
}

type reviewResponse struct {
	Review domain.Review `json:"review"`
	Notice string        `json:"notice,omitempty"`
}

type reviewListResponse struct {
	Items        []domain.Review     `json:"items"`
	Count        int                 `json:"count"`
	SessionState domain.SessionState `json:"sessionState"`
	OwnReview    *domain.Review      `json:"ownReview,omitempty"`
	Stats        *domain.Stats       `json:"stats,omitempty"`
	Stale        bool                `json:"stale,omitempty"`
}

type redirectRequest struct {
	URL string `json:"url"`
}

type redirectResponse struct {
	RedirectTo string           `json:"redirectTo"`
	Replace    bool             `json:"replace"`
	Token      string           `json:"token,omitempty"`
	Identity   *domain.Identity `json:"identity,omitempty"`
}

type meResponse struct {
	Identity domain.Identity `json:"identity"`
	IsAdmin  bool            `json:"isAdmin"`
}
