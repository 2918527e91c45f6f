package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"modelfolio/pkg/domain"
)

func (ReviewModel) TableName() string  { return "reviews" }
func (ProjectModel) TableName() string { return "projects" }
func (ContentModel) TableName() string { return "site_content" }
func (AdminModel) TableName() string   { return "admins" }

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
// TranslateError is enabled so unique violations surface as gorm.ErrDuplicatedKey.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&ReviewModel{}, &ProjectModel{}, &ContentModel{}, &AdminModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// InsertReview creates a review and returns the canonical stored record.
// The identity uniqueness constraint is mapped to ErrDuplicateReview.
func (s *GormStore) InsertReview(r domain.Review) (domain.Review, error) {
	model := reviewToModel(r)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	if model.CreatedAt.IsZero() {
		model.CreatedAt = time.Now().UTC()
	}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Review{}, ErrDuplicateReview
		}
		return domain.Review{}, err
	}
	return reviewFromModel(model), nil
}

// ReviewByIdentity returns the review owned by the identity, if any.
func (s *GormStore) ReviewByIdentity(identityID string) (domain.Review, bool, error) {
	var model ReviewModel
	if err := s.db.First(&model, "identity_id = ?", identityID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Review{}, false, nil
		}
		return domain.Review{}, false, err
	}
	return reviewFromModel(model), true, nil
}

// ListReviews returns all reviews ordered newest first.
func (s *GormStore) ListReviews() ([]domain.Review, error) {
	var models []ReviewModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Review, 0, len(models))
	for _, m := range models {
		res = append(res, reviewFromModel(m))
	}
	return res, nil
}

// UpdateReviewBody updates body text scoped by both record id and owning identity id.
// Zero matched rows means the id/identity pairing no longer holds and is an error.
func (s *GormStore) UpdateReviewBody(id, identityID, body string) (domain.Review, error) {
	tx := s.db.Model(&ReviewModel{}).
		Where("id = ? AND identity_id = ?", id, identityID).
		Update("body", body)
	if tx.Error != nil {
		return domain.Review{}, tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.Review{}, ErrNotOwner
	}
	var model ReviewModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return domain.Review{}, err
	}
	return reviewFromModel(model), nil
}

// SaveProject stores or updates a project.
func (s *GormStore) SaveProject(p domain.Project) error {
	model, err := projectToModel(p)
	if err != nil {
		return err
	}
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "description", "category", "tools", "status",
			"start_date", "delivery_date", "delivered_on_time", "client_satisfaction", "updated_at",
		}),
	}).Create(&model).Error
}

// GetProject retrieves a project.
func (s *GormStore) GetProject(id string) (domain.Project, bool, error) {
	var model ProjectModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, err
	}
	p, err := projectFromModel(model)
	if err != nil {
		return domain.Project{}, false, err
	}
	return p, true, nil
}

// ListProjects returns projects newest first, optionally filtered by category.
func (s *GormStore) ListProjects(category string) ([]domain.Project, error) {
	var models []ProjectModel
	tx := s.db.Order("created_at DESC")
	if category != "" {
		tx = tx.Where("category = ?", category)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Project, 0, len(models))
	for _, m := range models {
		p, err := projectFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, nil
}

// DeleteProject removes a project.
func (s *GormStore) DeleteProject(id string) error {
	return s.db.Delete(&ProjectModel{}, "id = ?", id).Error
}

// SetProjectImage records the object-storage key of the project image.
func (s *GormStore) SetProjectImage(id, imageKey string) error {
	tx := s.db.Model(&ProjectModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"image_key":  imageKey,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveContent stores or updates a content block keyed by page+section.
func (s *GormStore) SaveContent(c domain.ContentBlock) error {
	model := contentToModel(c)
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	model.UpdatedAt = time.Now().UTC()
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "page"}, {Name: "section"}},
		DoUpdates: clause.AssignmentColumns([]string{"content", "updated_at"}),
	}).Create(&model).Error
}

// ListContent returns content blocks, optionally scoped to one page.
func (s *GormStore) ListContent(page string) ([]domain.ContentBlock, error) {
	var models []ContentModel
	tx := s.db.Order("page ASC, section ASC")
	if page != "" {
		tx = tx.Where("page = ?", page)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ContentBlock, 0, len(models))
	for _, m := range models {
		res = append(res, contentFromModel(m))
	}
	return res, nil
}

// UpdateContent replaces the text of one block by id.
func (s *GormStore) UpdateContent(id, content string) (domain.ContentBlock, error) {
	tx := s.db.Model(&ContentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"content":    content,
			"updated_at": time.Now().UTC(),
		})
	if tx.Error != nil {
		return domain.ContentBlock{}, tx.Error
	}
	if tx.RowsAffected == 0 {
		return domain.ContentBlock{}, ErrNotFound
	}
	var model ContentModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		return domain.ContentBlock{}, err
	}
	return contentFromModel(model), nil
}

// IsAdmin checks whether the identity is on the admin list.
func (s *GormStore) IsAdmin(identityID string) (bool, error) {
	var count int64
	if err := s.db.Model(&AdminModel{}).Where("identity_id = ?", identityID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AddAdmin grants admin access to an identity; idempotent.
func (s *GormStore) AddAdmin(identityID string) error {
	model := AdminModel{IdentityID: identityID, CreatedAt: time.Now().UTC()}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error
}

func reviewToModel(r domain.Review) ReviewModel {
	return ReviewModel{
		ID:          r.ID,
		IdentityID:  r.IdentityID,
		DisplayName: r.DisplayName,
		Rating:      r.Rating,
		Body:        r.Body,
		CreatedAt:   r.CreatedAt,
	}
}

func reviewFromModel(m ReviewModel) domain.Review {
	return domain.Review{
		ID:          m.ID,
		IdentityID:  m.IdentityID,
		DisplayName: m.DisplayName,
		Rating:      m.Rating,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt,
	}
}

func projectToModel(p domain.Project) (ProjectModel, error) {
	tools, err := json.Marshal(p.Tools)
	if err != nil {
		return ProjectModel{}, fmt.Errorf("encode tools: %w", err)
	}
	return ProjectModel{
		ID:                 p.ID,
		Title:              p.Title,
		Description:        p.Description,
		Category:           p.Category,
		Tools:              tools,
		ImageKey:           p.ImageKey,
		Status:             string(p.Status),
		StartDate:          p.StartDate,
		DeliveryDate:       p.DeliveryDate,
		DeliveredOnTime:    p.DeliveredOnTime,
		ClientSatisfaction: p.ClientSatisfaction,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}, nil
}

func projectFromModel(m ProjectModel) (domain.Project, error) {
	var tools []string
	if len(m.Tools) > 0 {
		if err := json.Unmarshal(m.Tools, &tools); err != nil {
			return domain.Project{}, fmt.Errorf("decode tools: %w", err)
		}
	}
	return domain.Project{
		ID:                 m.ID,
		Title:              m.Title,
		Description:        m.Description,
		Category:           m.Category,
		Tools:              tools,
		ImageKey:           m.ImageKey,
		Status:             domain.ProjectStatus(m.Status),
		StartDate:          m.StartDate,
		DeliveryDate:       m.DeliveryDate,
		DeliveredOnTime:    m.DeliveredOnTime,
		ClientSatisfaction: m.ClientSatisfaction,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}, nil
}

func contentToModel(c domain.ContentBlock) ContentModel {
	return ContentModel{
		ID:        c.ID,
		Page:      c.Page,
		Section:   c.Section,
		Content:   c.Content,
		UpdatedAt: c.UpdatedAt,
	}
}

func contentFromModel(m ContentModel) domain.ContentBlock {
	return domain.ContentBlock{
		ID:        m.ID,
		Page:      m.Page,
		Section:   m.Section,
		Content:   m.Content,
		UpdatedAt: m.UpdatedAt,
	}
}
