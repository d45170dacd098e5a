package lostfound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"refind/cmd/identity/ids"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Service implements the board operations on top of a Store.
//
// Ownership is enforced here, not in the store: every mutation first loads
// the post and compares its owner against the acting user.
type Service struct {
	store Store
}

// NewService constructs a Service.
func NewService(store Store) (*Service, error) {
	if store == nil {
		return nil, errors.New("lostfound: nil store")
	}
	return &Service{store: store}, nil
}

// CreateInput is the caller-supplied part of a new post.
type CreateInput struct {
	Title    string
	Item     string
	Status   string
	Text     string
	Location string
}

// Create validates and persists a new post owned by userID.
func (s *Service) Create(ctx context.Context, now time.Time, userID string, in CreateInput) (Post, error) {
	if strings.TrimSpace(userID) == "" {
		return Post{}, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	id, err := ids.NewULID(now)
	if err != nil {
		return Post{}, err
	}

	p := Post{
		ID:        id,
		UserID:    userID,
		Title:     strings.TrimSpace(in.Title),
		Item:      strings.TrimSpace(in.Item),
		Status:    strings.ToLower(strings.TrimSpace(in.Status)),
		Text:      in.Text,
		Location:  strings.TrimSpace(in.Location),
		CreatedAt: now.UTC(),
	}
	if err := validatePost(p); err != nil {
		return Post{}, err
	}

	if err := s.store.Create(ctx, p); err != nil {
		return Post{}, err
	}
	return p, nil
}

// Get returns one post by id.
func (s *Service) Get(ctx context.Context, id string) (Post, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Post{}, ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// List returns the newest posts, capped at maxListLimit.
func (s *Service) List(ctx context.Context, limit int) ([]Post, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.List(ctx, limit)
}

// Update applies patch to the post, owner only. The merge itself is pure;
// this method adds the load, the ownership check, and re-validation.
func (s *Service) Update(ctx context.Context, userID, postID string, patch Patch) (Post, error) {
	existing, err := s.store.Get(ctx, strings.TrimSpace(postID))
	if err != nil {
		return Post{}, err
	}
	if existing.UserID != userID {
		return Post{}, ErrForbidden
	}

	if patch.IsZero() {
		return existing, nil
	}

	merged := Merge(existing, patch)
	if merged.Status != existing.Status {
		merged.Status = strings.ToLower(strings.TrimSpace(merged.Status))
	}
	if err := validatePost(merged); err != nil {
		return Post{}, err
	}

	if err := s.store.Update(ctx, merged); err != nil {
		return Post{}, err
	}
	return merged, nil
}

// Delete removes the post, owner only.
func (s *Service) Delete(ctx context.Context, userID, postID string) error {
	existing, err := s.store.Get(ctx, strings.TrimSpace(postID))
	if err != nil {
		return err
	}
	if existing.UserID != userID {
		return ErrForbidden
	}
	return s.store.Delete(ctx, existing.ID)
}
