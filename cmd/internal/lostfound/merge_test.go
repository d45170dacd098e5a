package lostfound

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func basePost() Post {
	return Post{
		ID:        "01HZX0000000000000000000",
		UserID:    "user-1",
		Title:     "Lost: blue water bottle",
		Item:      "water bottle",
		Status:    StatusLost,
		Text:      "Left it in the library, third floor.",
		Location:  "Olin Library",
		CreatedAt: time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestMergeEmptyPatchIsIdentity(t *testing.T) {
	p := basePost()
	got := Merge(p, Patch{})
	if got != p {
		t.Fatalf("empty patch changed the post: %+v", got)
	}
}

func TestMergeReplacesOnlyProvidedFields(t *testing.T) {
	p := basePost()
	got := Merge(p, Patch{
		Status:   strPtr(StatusFound),
		Location: strPtr("Lost & Found desk"),
	})

	if got.Status != StatusFound {
		t.Fatalf("status not replaced: %q", got.Status)
	}
	if got.Location != "Lost & Found desk" {
		t.Fatalf("location not replaced: %q", got.Location)
	}
	if got.Title != p.Title || got.Item != p.Item || got.Text != p.Text {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if got.ID != p.ID || got.UserID != p.UserID || !got.CreatedAt.Equal(p.CreatedAt) {
		t.Fatalf("identity fields must never change: %+v", got)
	}
}

func TestMergeExplicitEmptyClearsField(t *testing.T) {
	p := basePost()
	got := Merge(p, Patch{Text: strPtr("")})
	if got.Text != "" {
		t.Fatalf("explicit empty string must clear the field, got %q", got.Text)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	p := basePost()
	before := p
	_ = Merge(p, Patch{Title: strPtr("changed")})
	if p != before {
		t.Fatalf("Merge mutated its input: %+v", p)
	}
}

func TestPatchIsZero(t *testing.T) {
	if !(Patch{}).IsZero() {
		t.Fatalf("empty patch must be zero")
	}
	if (Patch{Text: strPtr("")}).IsZero() {
		t.Fatalf("patch with explicit empty string is not zero")
	}
}
