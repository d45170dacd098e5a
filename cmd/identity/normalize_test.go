package identity

import "testing"

func TestNormalizeUsername(t *testing.T) {
	if got := NormalizeUsername("  BigRedBear "); got != "bigredbear" {
		t.Fatalf("NormalizeUsername: got %q", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail(" Bear@Cornell.EDU "); got != "bear@cornell.edu" {
		t.Fatalf("NormalizeEmail: got %q", got)
	}
}
