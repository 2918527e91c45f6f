package domain

import "time"

// SessionState classifies the current visitor's review-submission eligibility.
// It is derived from the identity and the review list, never persisted.
type SessionState string

const (
	StateLoggedOut    SessionState = "logged_out"
	StateCanSubmit    SessionState = "can_submit"
	StateHasSubmitted SessionState = "has_submitted"
	StateEditing      SessionState = "editing"
)

type ProjectStatus string

const (
	ProjectInProgress ProjectStatus = "in_progress"
	ProjectDelivered  ProjectStatus = "delivered"
)

// Identity is the authenticated visitor as reported by the identity provider.
// It is held in memory for the duration of a session only.
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}

// Review is a persisted client testimonial tied to exactly one identity.
type Review struct {
	ID          string    `json:"id"`
	IdentityID  string    `json:"-"`
	DisplayName string    `json:"displayName"`
	Rating      int       `json:"rating"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"createdAt"`

	// Owned is set per viewer when listing; not stored.
	Owned bool `json:"owned"`
}

type Project struct {
	ID                 string        `json:"id"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Category           string        `json:"category"`
	Tools              []string      `json:"tools"`
	ImageKey           string        `json:"-"`
	ImageURL           string        `json:"imageUrl,omitempty"`
	Status             ProjectStatus `json:"status"`
	StartDate          time.Time     `json:"startDate"`
	DeliveryDate       *time.Time    `json:"deliveryDate,omitempty"`
	DeliveredOnTime    bool          `json:"deliveredOnTime"`
	ClientSatisfaction bool          `json:"clientSatisfaction"`
	CreatedAt          time.Time     `json:"createdAt"`
	UpdatedAt          time.Time     `json:"updatedAt"`
}

// ContentBlock is one admin-editable text block, addressed by page and section.
type ContentBlock struct {
	ID        string    `json:"id"`
	Page      string    `json:"page"`
	Section   string    `json:"section"`
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Stats aggregates the numbers shown on the reviews page.
// AverageRating defaults to 5.0 when no reviews exist.
type Stats struct {
	ReviewCount         int     `json:"reviewCount"`
	AverageRating       float64 `json:"averageRating"`
	TotalProjects       int     `json:"totalProjects"`
	OnTimePercent       float64 `json:"onTimePercent"`
	SatisfactionPercent float64 `json:"satisfactionPercent"`
}
