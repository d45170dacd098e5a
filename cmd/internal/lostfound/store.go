package lostfound

import "context"

// Store is the persistence boundary for posts.
//
// Implementations must report ErrNotFound for unknown ids; all other failures
// propagate as infrastructure errors.
type Store interface {
	// Create inserts a new post row.
	Create(ctx context.Context, p Post) error

	// Get returns the post with the given id.
	Get(ctx context.Context, id string) (Post, error)

	// List returns up to limit posts, newest first.
	List(ctx context.Context, limit int) ([]Post, error)

	// Update overwrites the mutable columns of the post identified by p.ID.
	Update(ctx context.Context, p Post) error

	// Delete removes the post with the given id.
	Delete(ctx context.Context, id string) error
}
