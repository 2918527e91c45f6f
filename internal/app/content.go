package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"modelfolio/pkg/domain"
)

// ListContent returns editable text blocks, optionally restricted to a page.
func (a *App) ListContent(page string) ([]domain.ContentBlock, error) {
	blocks, err := a.store.ListContent(page)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}
	return blocks, nil
}

// UpsertContent creates or replaces the block addressed by page and section.
func (a *App) UpsertContent(page, section, content string) (domain.ContentBlock, error) {
	var verrs ValidationErrors
	if strings.TrimSpace(page) == "" {
		verrs = append(verrs, ValidationError{Field: "page", Message: "page is required"})
	}
	if strings.TrimSpace(section) == "" {
		verrs = append(verrs, ValidationError{Field: "section", Message: "section is required"})
	}
	if len(verrs) > 0 {
		return domain.ContentBlock{}, verrs
	}

	b := domain.ContentBlock{
		ID:        uuid.NewString(),
		Page:      strings.TrimSpace(page),
		Section:   strings.TrimSpace(section),
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	}
	if err := a.store.SaveContent(b); err != nil {
		return domain.ContentBlock{}, fmt.Errorf("save content: %w", err)
	}

	// An upsert on an existing page/section keeps the original id, so read
	// the canonical block back.
	blocks, err := a.store.ListContent(b.Page)
	if err != nil {
		return b, nil
	}
	for _, stored := range blocks {
		if stored.Section == b.Section {
			return stored, nil
		}
	}
	return b, nil
}

// UpdateContent rewrites the text of an existing block by id.
func (a *App) UpdateContent(id, content string) (domain.ContentBlock, error) {
	b, err := a.store.UpdateContent(id, content)
	if err != nil {
		return domain.ContentBlock{}, fmt.Errorf("update content: %w", err)
	}
	return b, nil
}
