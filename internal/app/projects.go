package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"modelfolio/internal/store"
	"modelfolio/pkg/domain"
)

// ProjectInput is the admin-facing shape for creating or updating a project.
type ProjectInput struct {
	Title              string               `json:"title"`
	Description        string               `json:"description"`
	Category           string               `json:"category"`
	Tools              []string             `json:"tools"`
	Status             domain.ProjectStatus `json:"status"`
	StartDate          time.Time            `json:"startDate"`
	DeliveryDate       *time.Time           `json:"deliveryDate"`
	DeliveredOnTime    bool                 `json:"deliveredOnTime"`
	ClientSatisfaction bool                 `json:"clientSatisfaction"`
}

func (in ProjectInput) validate() error {
	var verrs ValidationErrors
	if strings.TrimSpace(in.Title) == "" {
		verrs = append(verrs, ValidationError{Field: "title", Message: "title is required"})
	}
	if strings.TrimSpace(in.Category) == "" {
		verrs = append(verrs, ValidationError{Field: "category", Message: "category is required"})
	}
	switch in.Status {
	case "", domain.ProjectInProgress, domain.ProjectDelivered:
	default:
		verrs = append(verrs, ValidationError{Field: "status", Message: "status must be in_progress or delivered"})
	}
	if len(verrs) > 0 {
		return verrs
	}
	return nil
}

// ListProjects returns projects for the portfolio grid, optionally filtered
// by category. "All" and the empty string both mean unfiltered. Image URLs
// are presigned per call; a presign failure drops the URL for that project
// but never fails the listing.
func (a *App) ListProjects(ctx context.Context, category string) ([]domain.Project, error) {
	if strings.EqualFold(category, "All") {
		category = ""
	}
	projects, err := a.store.ListProjects(category)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	a.attachImageURLs(ctx, projects)
	return projects, nil
}

// CreateProject adds a portfolio project. Admin gating happens at the
// transport layer.
func (a *App) CreateProject(in ProjectInput) (domain.Project, error) {
	if err := in.validate(); err != nil {
		return domain.Project{}, err
	}

	now := time.Now().UTC()
	p := domain.Project{
		ID:                 uuid.NewString(),
		Title:              strings.TrimSpace(in.Title),
		Description:        in.Description,
		Category:           strings.TrimSpace(in.Category),
		Tools:              in.Tools,
		Status:             in.Status,
		StartDate:          in.StartDate,
		DeliveryDate:       in.DeliveryDate,
		DeliveredOnTime:    in.DeliveredOnTime,
		ClientSatisfaction: in.ClientSatisfaction,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if p.Status == "" {
		p.Status = domain.ProjectInProgress
	}
	if p.StartDate.IsZero() {
		p.StartDate = now
	}
	if err := a.store.SaveProject(p); err != nil {
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}
	return p, nil
}

// UpdateProject replaces the editable fields of an existing project.
func (a *App) UpdateProject(id string, in ProjectInput) (domain.Project, error) {
	if err := in.validate(); err != nil {
		return domain.Project{}, err
	}

	p, ok, err := a.store.GetProject(id)
	if err != nil {
		return domain.Project{}, fmt.Errorf("update project: %w", err)
	}
	if !ok {
		return domain.Project{}, store.ErrNotFound
	}

	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.Category = strings.TrimSpace(in.Category)
	p.Tools = in.Tools
	if in.Status != "" {
		p.Status = in.Status
	}
	if !in.StartDate.IsZero() {
		p.StartDate = in.StartDate
	}
	p.DeliveryDate = in.DeliveryDate
	p.DeliveredOnTime = in.DeliveredOnTime
	p.ClientSatisfaction = in.ClientSatisfaction
	p.UpdatedAt = time.Now().UTC()

	if err := a.store.SaveProject(p); err != nil {
		return domain.Project{}, fmt.Errorf("update project: %w", err)
	}
	return p, nil
}

// DeleteProject removes a project and, best effort, its stored image.
func (a *App) DeleteProject(ctx context.Context, id string) error {
	p, ok, err := a.store.GetProject(id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if !ok {
		return store.ErrNotFound
	}
	if err := a.store.DeleteProject(id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if p.ImageKey != "" && a.objects != nil {
		if err := a.objects.Delete(ctx, p.ImageKey); err != nil {
			slog.Warn("delete project image", "project", id, "key", p.ImageKey, "error", err)
		}
	}
	return nil
}

// UploadProjectImage stores an image for the project and records its key.
// Returns the project with a fresh presigned URL.
func (a *App) UploadProjectImage(ctx context.Context, id, filename string, r io.Reader, size int64, contentType string) (domain.Project, error) {
	if a.objects == nil {
		return domain.Project{}, fmt.Errorf("image storage is not configured")
	}

	p, ok, err := a.store.GetProject(id)
	if err != nil {
		return domain.Project{}, fmt.Errorf("upload image: %w", err)
	}
	if !ok {
		return domain.Project{}, store.ErrNotFound
	}

	key := "projects/" + id + strings.ToLower(path.Ext(filename))
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Project{}, fmt.Errorf("upload image: %w", err)
	}
	if err := a.store.SetProjectImage(id, key); err != nil {
		return domain.Project{}, fmt.Errorf("record image key: %w", err)
	}

	p.ImageKey = key
	url, err := a.objects.PresignGet(ctx, key, a.presignTTL)
	if err != nil {
		slog.Warn("presign project image", "project", id, "error", err)
	} else {
		p.ImageURL = url
	}
	return p, nil
}

func (a *App) attachImageURLs(ctx context.Context, projects []domain.Project) {
	if a.objects == nil {
		return
	}
	for i := range projects {
		if projects[i].ImageKey == "" {
			continue
		}
		url, err := a.objects.PresignGet(ctx, projects[i].ImageKey, a.presignTTL)
		if err != nil {
			slog.Warn("presign project image", "project", projects[i].ID, "error", err)
			continue
		}
		projects[i].ImageURL = url
	}
}
