package app

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

const minBodyRunes = 10

func validateRating(rating int) *ValidationError {
	if rating < 1 || rating > 5 {
		return &ValidationError{Field: "rating", Message: "rating must be between 1 and 5"}
	}
	return nil
}

func validateBody(body string) *ValidationError {
	if utf8.RuneCountInString(strings.TrimSpace(body)) < minBodyRunes {
		return &ValidationError{Field: "body", Message: fmt.Sprintf("review must be at least %d characters", minBodyRunes)}
	}
	return nil
}

// LoadReviews returns the review list, newest first, with each entry tagged
// as owned by the viewer or not. On a store failure it returns the last
// successfully loaded list together with the error so callers can render
// stale data and offer a retry.
func (a *App) LoadReviews(viewer *domain.Identity) ([]domain.Review, error) {
	reviews, err := a.store.ListReviews()

	a.mu.Lock()
	if err == nil {
		a.cache = reviews
		a.loaded = true
	}
	// Tag a copy; the cache stays viewer-neutral.
	reviews = slices.Clone(a.cache)
	a.mu.Unlock()

	tagOwned(reviews, viewer)
	if err != nil {
		return reviews, fmt.Errorf("load reviews: %w", err)
	}
	return reviews, nil
}

// StateFor derives the viewer's position in the submission workflow and, when
// the identity already has a review, returns that record.
func (a *App) StateFor(identity *domain.Identity) (domain.SessionState, *domain.Review, error) {
	if identity == nil {
		return domain.StateLoggedOut, nil, nil
	}

	review, ok, err := a.store.ReviewByIdentity(identity.ID)
	if err != nil {
		return domain.StateLoggedOut, nil, fmt.Errorf("derive session state: %w", err)
	}
	if !ok {
		return domain.StateCanSubmit, nil, nil
	}
	review.Owned = true

	a.mu.Lock()
	_, editing := a.edits[identity.ID]
	a.mu.Unlock()
	if editing {
		return domain.StateEditing, &review, nil
	}
	return domain.StateHasSubmitted, &review, nil
}

// Submit creates the identity's single review. Input is validated before any
// store contact. A duplicate, whether caught by the fast pre-check or by the
// store's uniqueness constraint losing a two-tab race, resolves benignly:
// the existing record is returned alongside ErrAlreadySubmitted.
func (a *App) Submit(identity *domain.Identity, rating int, body string) (domain.Review, error) {
	if identity == nil {
		return domain.Review{}, ErrUnauthenticated
	}

	var verrs ValidationErrors
	if v := validateRating(rating); v != nil {
		verrs = append(verrs, *v)
	}
	if v := validateBody(body); v != nil {
		verrs = append(verrs, *v)
	}
	if len(verrs) > 0 {
		return domain.Review{}, verrs
	}

	if existing, ok, err := a.store.ReviewByIdentity(identity.ID); err != nil {
		return domain.Review{}, fmt.Errorf("check existing review: %w", err)
	} else if ok {
		existing.Owned = true
		return existing, ErrAlreadySubmitted
	}

	created, err := a.store.InsertReview(domain.Review{
		IdentityID:  identity.ID,
		DisplayName: identity.DisplayName,
		Rating:      rating,
		Body:        strings.TrimSpace(body),
	})
	if errors.Is(err, store.ErrDuplicateReview) {
		existing, ok, ferr := a.store.ReviewByIdentity(identity.ID)
		if ferr != nil || !ok {
			return domain.Review{}, ErrAlreadySubmitted
		}
		existing.Owned = true
		return existing, ErrAlreadySubmitted
	}
	if err != nil {
		return domain.Review{}, fmt.Errorf("save review: %w", err)
	}

	// The list shows the store's canonical record, not the submitted input.
	a.mu.Lock()
	if a.loaded {
		a.cache = append([]domain.Review{created}, a.cache...)
	}
	a.mu.Unlock()
	created.Owned = true
	return created, nil
}

// BeginEdit opens an edit on the identity's own review and returns the
// current body to seed the editor. Only the owner of reviewID, in the
// has-submitted state, may start an edit.
func (a *App) BeginEdit(identity *domain.Identity, reviewID string) (string, error) {
	if identity == nil {
		return "", ErrUnauthenticated
	}

	review, ok, err := a.store.ReviewByIdentity(identity.ID)
	if err != nil {
		return "", fmt.Errorf("begin edit: %w", err)
	}
	if !ok || review.ID != reviewID {
		return "", store.ErrNotOwner
	}

	a.mu.Lock()
	a.edits[identity.ID] = editBuffer{reviewID: reviewID, body: review.Body}
	a.mu.Unlock()
	return review.Body, nil
}

// SaveEdit persists a new body for the identity's review. The update is
// scoped to the owning identity; zero rows means the record is not theirs
// anymore and the edit is abandoned. On a transient store failure the edit
// buffer survives so the user can retry.
func (a *App) SaveEdit(identity *domain.Identity, reviewID, body string) (domain.Review, error) {
	if identity == nil {
		return domain.Review{}, ErrUnauthenticated
	}
	if v := validateBody(body); v != nil {
		return domain.Review{}, ValidationErrors{*v}
	}

	updated, err := a.store.UpdateReviewBody(reviewID, identity.ID, strings.TrimSpace(body))
	if errors.Is(err, store.ErrNotOwner) {
		a.mu.Lock()
		delete(a.edits, identity.ID)
		a.mu.Unlock()
		return domain.Review{}, store.ErrNotOwner
	}
	if err != nil {
		return domain.Review{}, fmt.Errorf("save edit: %w", err)
	}

	a.mu.Lock()
	delete(a.edits, identity.ID)
	for i := range a.cache {
		if a.cache[i].ID == updated.ID {
			a.cache[i] = updated
			break
		}
	}
	a.mu.Unlock()
	updated.Owned = true
	return updated, nil
}

// CancelEdit discards the identity's pending edit without any store call.
// The stored review is untouched.
func (a *App) CancelEdit(identity *domain.Identity) {
	if identity == nil {
		return
	}
	a.mu.Lock()
	delete(a.edits, identity.ID)
	a.mu.Unlock()
}

// Stats aggregates review and project figures for the public landing page.
// An empty review set reports the 5.0 showcase default, and project rates
// default to 100 until a first delivery exists.
func (a *App) Stats() (domain.Stats, error) {
	reviews, err := a.store.ListReviews()
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}
	projects, err := a.store.ListProjects("")
	if err != nil {
		return domain.Stats{}, fmt.Errorf("stats: %w", err)
	}

	s := domain.Stats{
		ReviewCount:   len(reviews),
		AverageRating: 5.0,
		TotalProjects: len(projects),
	}
	if len(reviews) > 0 {
		var sum int
		for _, r := range reviews {
			sum += r.Rating
		}
		s.AverageRating = round1(float64(sum) / float64(len(reviews)))
	}

	var delivered, onTime, satisfied int
	for _, p := range projects {
		if p.Status != domain.ProjectDelivered {
			continue
		}
		delivered++
		if p.DeliveredOnTime {
			onTime++
		}
		if p.ClientSatisfaction {
			satisfied++
		}
	}
	s.OnTimePercent = 100.0
	s.SatisfactionPercent = 100.0
	if delivered > 0 {
		s.OnTimePercent = round1(float64(onTime) / float64(delivered) * 100)
		s.SatisfactionPercent = round1(float64(satisfied) / float64(delivered) * 100)
	}
	return s, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func tagOwned(reviews []domain.Review, viewer *domain.Identity) {
	for i := range reviews {
		reviews[i].Owned = viewer != nil && reviews[i].IdentityID == viewer.ID
	}
}
