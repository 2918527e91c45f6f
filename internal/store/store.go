package store

import (
	"errors"

	"modelfolio/pkg/domain"
)

// ErrDuplicateReview reports a violation of the one-review-per-identity constraint.
var ErrDuplicateReview = errors.New("identity already has a review")

// ErrNotOwner reports an update that matched no row for the given id/identity pair.
var ErrNotOwner = errors.New("review not owned by identity")

// ErrNotFound reports a missing record.
var ErrNotFound = errors.New("record not found")

// Store defines persistence operations for reviews, projects, and site content.
type Store interface {
	// reviews
	InsertReview(r domain.Review) (domain.Review, error)
	ReviewByIdentity(identityID string) (domain.Review, bool, error)
	ListReviews() ([]domain.Review, error)
	UpdateReviewBody(id, identityID, body string) (domain.Review, error)

	// projects
	SaveProject(p domain.Project) error
	GetProject(id string) (domain.Project, bool, error)
	ListProjects(category string) ([]domain.Project, error)
	DeleteProject(id string) error
	SetProjectImage(id, imageKey string) error

	// site content
	SaveContent(c domain.ContentBlock) error
	ListContent(page string) ([]domain.ContentBlock, error)
	UpdateContent(id, content string) (domain.ContentBlock, error)

	// admins
	IsAdmin(identityID string) (bool, error)
	AddAdmin(identityID string) error
}

// SessionStore persists session tokens and the identity snapshot behind them.
type SessionStore interface {
	NewSession(identity domain.Identity) (string, error)
	IdentityByToken(token string) (domain.Identity, bool, error)
	DeleteSession(token string) error
}
