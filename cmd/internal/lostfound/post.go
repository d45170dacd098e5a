package lostfound

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status values a post can carry.
const (
	StatusLost  = "lost"
	StatusFound = "found"
)

const (
	maxTitleChars    = 200
	maxItemChars     = 200
	maxTextChars     = 5000
	maxLocationChars = 300
)

var (
	// ErrNotFound reports a post id that does not exist.
	ErrNotFound = errors.New("lostfound: post not found")

	// ErrForbidden reports a mutation attempted by a non-owner.
	ErrForbidden = errors.New("lostfound: not the post owner")

	// ErrInvalidInput reports a post that fails validation.
	ErrInvalidInput = errors.New("lostfound: invalid input")
)

// Post is one lost-and-found board entry.
type Post struct {
	ID        string
	UserID    string
	Title     string
	Item      string
	Status    string
	Text      string
	Location  string
	CreatedAt time.Time
}

// Patch carries a partial update. Nil fields are left untouched; non-nil
// fields replace the existing value, including replacement with "".
type Patch struct {
	Title    *string
	Item     *string
	Status   *string
	Text     *string
	Location *string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool {
	return p.Title == nil && p.Item == nil && p.Status == nil && p.Text == nil && p.Location == nil
}

// Merge applies patch on top of existing and returns the result. It is a pure
// function: identity, ownership, and timestamps never change, and the inputs
// are not mutated. Callers validate the merged post before persisting it.
func Merge(existing Post, patch Patch) Post {
	out := existing
	if patch.Title != nil {
		out.Title = *patch.Title
	}
	if patch.Item != nil {
		out.Item = *patch.Item
	}
	if patch.Status != nil {
		out.Status = *patch.Status
	}
	if patch.Text != nil {
		out.Text = *patch.Text
	}
	if patch.Location != nil {
		out.Location = *patch.Location
	}
	return out
}

// ValidStatus reports whether s is a recognized post status.
func ValidStatus(s string) bool {
	return s == StatusLost || s == StatusFound
}

func validatePost(p Post) error {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return fmt.Errorf("%w: empty title", ErrInvalidInput)
	}
	if len([]rune(title)) > maxTitleChars {
		return fmt.Errorf("%w: title too long", ErrInvalidInput)
	}
	if strings.TrimSpace(p.Item) == "" {
		return fmt.Errorf("%w: empty item", ErrInvalidInput)
	}
	if len([]rune(p.Item)) > maxItemChars {
		return fmt.Errorf("%w: item too long", ErrInvalidInput)
	}
	if !ValidStatus(p.Status) {
		return fmt.Errorf("%w: status must be %q or %q", ErrInvalidInput, StatusLost, StatusFound)
	}
	if len([]rune(p.Text)) > maxTextChars {
		return fmt.Errorf("%w: text too long", ErrInvalidInput)
	}
	if len([]rune(p.Location)) > maxLocationChars {
		return fmt.Errorf("%w: location too long", ErrInvalidInput)
	}
	return nil
}
