package store

import (
	"errors"
	"testing"
	"time"

	"modelfolio/pkg/domain"
)

func TestInsertReviewEnforcesOnePerIdentity(t *testing.T) {
	m := NewMemoryStore()
	first, err := m.InsertReview(domain.Review{IdentityID: "id-1", DisplayName: "Ada", Rating: 5, Body: "excellent work"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("insert did not fill id/createdAt: %+v", first)
	}

	_, err = m.InsertReview(domain.Review{IdentityID: "id-1", Rating: 4, Body: "second attempt"})
	if !errors.Is(err, ErrDuplicateReview) {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicateReview", err)
	}

	got, ok, err := m.ReviewByIdentity("id-1")
	if err != nil || !ok {
		t.Fatalf("ReviewByIdentity = %v, %v", ok, err)
	}
	if got.ID != first.ID {
		t.Fatalf("stored review id = %q, want %q", got.ID, first.ID)
	}
}

func TestListReviewsNewestFirst(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		_, err := m.InsertReview(domain.Review{
			IdentityID: id,
			Rating:     5,
			Body:       "review body text",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	reviews, err := m.ListReviews()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reviews) != 3 {
		t.Fatalf("len = %d, want 3", len(reviews))
	}
	if reviews[0].IdentityID != "c" || reviews[2].IdentityID != "a" {
		t.Fatalf("unexpected order: %s, %s, %s", reviews[0].IdentityID, reviews[1].IdentityID, reviews[2].IdentityID)
	}
}

func TestUpdateReviewBodyScopedToOwner(t *testing.T) {
	m := NewMemoryStore()
	r, err := m.InsertReview(domain.Review{IdentityID: "owner", Rating: 4, Body: "original body text"})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := m.UpdateReviewBody(r.ID, "someone-else", "hijacked"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("foreign update err = %v, want ErrNotOwner", err)
	}
	if _, err := m.UpdateReviewBody("missing", "owner", "nothing there"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("missing record err = %v, want ErrNotOwner", err)
	}

	updated, err := m.UpdateReviewBody(r.ID, "owner", "revised body text")
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Body != "revised body text" {
		t.Fatalf("body = %q", updated.Body)
	}
	if updated.Rating != 4 {
		t.Fatalf("rating changed to %d", updated.Rating)
	}
}

func TestProjectCategoryFilter(t *testing.T) {
	m := NewMemoryStore()
	for _, p := range []domain.Project{
		{ID: "p1", Title: "One", Category: "Branding", CreatedAt: time.Now().UTC()},
		{ID: "p2", Title: "Two", Category: "Web", CreatedAt: time.Now().UTC().Add(time.Second)},
		{ID: "p3", Title: "Three", Category: "Branding", CreatedAt: time.Now().UTC().Add(2 * time.Second)},
	} {
		if err := m.SaveProject(p); err != nil {
			t.Fatalf("save %s: %v", p.ID, err)
		}
	}

	all, err := m.ListProjects("")
	if err != nil || len(all) != 3 {
		t.Fatalf("unfiltered = %d, %v; want 3", len(all), err)
	}
	branding, err := m.ListProjects("Branding")
	if err != nil || len(branding) != 2 {
		t.Fatalf("filtered = %d, %v; want 2", len(branding), err)
	}
	for _, p := range branding {
		if p.Category != "Branding" {
			t.Fatalf("stray category %q", p.Category)
		}
	}
}

func TestSetProjectImage(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SetProjectImage("missing", "key"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing project err = %v, want ErrNotFound", err)
	}
	if err := m.SaveProject(domain.Project{ID: "p1", Title: "One"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.SetProjectImage("p1", "projects/p1.png"); err != nil {
		t.Fatalf("set image: %v", err)
	}
	p, ok, _ := m.GetProject("p1")
	if !ok || p.ImageKey != "projects/p1.png" {
		t.Fatalf("image key = %q", p.ImageKey)
	}
}

func TestSaveContentUpsertsByPageSection(t *testing.T) {
	m := NewMemoryStore()
	if err := m.SaveContent(domain.ContentBlock{Page: "home", Section: "hero", Content: "welcome"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := m.SaveContent(domain.ContentBlock{Page: "home", Section: "hero", Content: "welcome back"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	blocks, err := m.ListContent("home")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(blocks) != 1 {
		t.Fatalf("len = %d, want 1 after upsert", len(blocks))
	}
	if blocks[0].Content != "welcome back" {
		t.Fatalf("content = %q", blocks[0].Content)
	}

	updated, err := m.UpdateContent(blocks[0].ID, "final text")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != "final text" {
		t.Fatalf("content = %q", updated.Content)
	}
	if _, err := m.UpdateContent("missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing block err = %v, want ErrNotFound", err)
	}
}

func TestAdminList(t *testing.T) {
	m := NewMemoryStore()
	ok, err := m.IsAdmin("id-1")
	if err != nil || ok {
		t.Fatalf("IsAdmin before grant = %v, %v", ok, err)
	}
	if err := m.AddAdmin("id-1"); err != nil {
		t.Fatalf("add: %v", err)
	}
	ok, err = m.IsAdmin("id-1")
	if err != nil || !ok {
		t.Fatalf("IsAdmin after grant = %v, %v", ok, err)
	}
}
