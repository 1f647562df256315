package hook

import (
	"regexp"
	"testing"
)

var aliasRe = regexp.MustCompile(`^[a-z]+_[a-z]+$`)

func TestGenerateFormat(t *testing.T) {
	for i := 0; i < 100; i++ {
		alias := Generate()
		if !aliasRe.MatchString(alias) {
			t.Fatalf("alias %q does not match adjective_animal", alias)
		}
	}
}

func TestGenerateVaries(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		seen[Generate()] = struct{}{}
	}
	// Not a uniqueness guarantee, just a sanity check that the alias space
	// is actually being sampled.
	if len(seen) < 2 {
		t.Errorf("expected varied aliases, got %d distinct out of 50", len(seen))
	}
}

func TestEmail(t *testing.T) {
	if got := Email("brave_otter", "pfg.app"); got != "brave_otter@pfg.app" {
		t.Errorf("Email() = %q", got)
	}
}
