package store

import (
	"sort"
	"sync"
	"time"

	"modelfolio/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors the semantics of the
// Postgres store (uniqueness, ownership-scoped updates) and backs the tests.
type MemoryStore struct {
	mu       sync.RWMutex
	reviews  map[string]domain.Review // key: review ID
	byOwner  map[string]string        // identity ID -> review ID
	projects map[string]domain.Project
	content  map[string]domain.ContentBlock
	admins   map[string]struct{}
	sess     map[string]domain.Identity // token -> identity snapshot
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		reviews:  make(map[string]domain.Review),
		byOwner:  make(map[string]string),
		projects: make(map[string]domain.Project),
		content:  make(map[string]domain.ContentBlock),
		admins:   make(map[string]struct{}),
		sess:     make(map[string]domain.Identity),
	}
}

// InsertReview stores a review, enforcing the one-review-per-identity constraint.
func (m *MemoryStore) InsertReview(r domain.Review) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byOwner[r.IdentityID]; exists {
		return domain.Review{}, ErrDuplicateReview
	}
	if r.ID == "" {
		r.ID = NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	m.reviews[r.ID] = r
	m.byOwner[r.IdentityID] = r.ID
	return r, nil
}

// ReviewByIdentity returns the review owned by the identity, if any.
func (m *MemoryStore) ReviewByIdentity(identityID string) (domain.Review, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byOwner[identityID]
	if !ok {
		return domain.Review{}, false, nil
	}
	r, ok := m.reviews[id]
	return r, ok, nil
}

// ListReviews returns all reviews ordered newest first.
func (m *MemoryStore) ListReviews() ([]domain.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Review, 0, len(m.reviews))
	for _, r := range m.reviews {
		res = append(res, r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// UpdateReviewBody updates body text scoped by record id and owning identity id.
func (m *MemoryStore) UpdateReviewBody(id, identityID, body string) (domain.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reviews[id]
	if !ok || r.IdentityID != identityID {
		return domain.Review{}, ErrNotOwner
	}
	r.Body = body
	m.reviews[id] = r
	return r, nil
}

// SaveProject stores or replaces a project.
func (m *MemoryStore) SaveProject(p domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = p
	return nil
}

// GetProject retrieves a project by ID.
func (m *MemoryStore) GetProject(id string) (domain.Project, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	return p, ok, nil
}

// ListProjects returns projects newest first, optionally filtered by category.
func (m *MemoryStore) ListProjects(category string) ([]domain.Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Project, 0, len(m.projects))
	for _, p := range m.projects {
		if category != "" && p.Category != category {
			continue
		}
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.After(res[j].CreatedAt) })
	return res, nil
}

// DeleteProject removes a project.
func (m *MemoryStore) DeleteProject(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.projects, id)
	return nil
}

// SetProjectImage records the image key for a project.
func (m *MemoryStore) SetProjectImage(id, imageKey string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.projects[id]
	if !ok {
		return ErrNotFound
	}
	p.ImageKey = imageKey
	p.UpdatedAt = time.Now().UTC()
	m.projects[id] = p
	return nil
}

// SaveContent stores or updates a content block keyed by page+section.
func (m *MemoryStore) SaveContent(c domain.ContentBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, existing := range m.content {
		if existing.Page == c.Page && existing.Section == c.Section {
			existing.Content = c.Content
			existing.UpdatedAt = time.Now().UTC()
			m.content[id] = existing
			return nil
		}
	}
	if c.ID == "" {
		c.ID = NewID()
	}
	c.UpdatedAt = time.Now().UTC()
	m.content[c.ID] = c
	return nil
}

// ListContent returns content blocks, optionally scoped to one page.
func (m *MemoryStore) ListContent(page string) ([]domain.ContentBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.ContentBlock, 0, len(m.content))
	for _, c := range m.content {
		if page != "" && c.Page != page {
			continue
		}
		res = append(res, c)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Page != res[j].Page {
			return res[i].Page < res[j].Page
		}
		return res[i].Section < res[j].Section
	})
	return res, nil
}

// UpdateContent replaces the text of one block by id.
func (m *MemoryStore) UpdateContent(id, content string) (domain.ContentBlock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.content[id]
	if !ok {
		return domain.ContentBlock{}, ErrNotFound
	}
	c.Content = content
	c.UpdatedAt = time.Now().UTC()
	m.content[id] = c
	return c, nil
}

// IsAdmin checks whether the identity is on the admin list.
func (m *MemoryStore) IsAdmin(identityID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.admins[identityID]
	return ok, nil
}

// AddAdmin grants admin access to an identity.
func (m *MemoryStore) AddAdmin(identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[identityID] = struct{}{}
	return nil
}

// NewSession creates a session token bound to an identity snapshot.
func (m *MemoryStore) NewSession(identity domain.Identity) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token := NewID()
	m.sess[token] = identity
	return token, nil
}

// IdentityByToken resolves a session token to its identity snapshot.
func (m *MemoryStore) IdentityByToken(token string) (domain.Identity, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	identity, ok := m.sess[token]
	return identity, ok, nil
}

// DeleteSession removes a session token.
func (m *MemoryStore) DeleteSession(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sess, token)
	return nil
}
