package mail

import (
	"testing"
)

func TestParseHeaders(t *testing.T) {
	raw := "X-GitLab-Project: relay\n" +
		"X-GitLab-Pipeline-Id: 42\n" +
		"X-GitLab-Pipeline-Status: success\n"

	h := ParseHeaders(raw)

	if got := h.Get("x-gitlab-project"); got != "relay" {
		t.Errorf("expected project relay, got %q", got)
	}
	if got := h.Get("x-gitlab-pipeline-id"); got != "42" {
		t.Errorf("expected pipeline id 42, got %q", got)
	}
	if len(h) != 3 {
		t.Errorf("expected 3 headers, got %d", len(h))
	}
}

func TestParseHeaders_NeverFails(t *testing.T) {
	inputs := []string{
		"",
		"\n\n\n",
		"   \r\n\t\n",
		"no separator here",
		"::::::",
		"key: value: extra: parts",
	}
	for _, raw := range inputs {
		// Must not panic, must return a usable map.
		h := ParseHeaders(raw)
		if h == nil {
			t.Errorf("ParseHeaders(%q) returned nil", raw)
		}
	}
}

func TestParseHeaders_DropsMultiSeparatorLines(t *testing.T) {
	h := ParseHeaders("received: by mail.example.com: with SMTP: id abc\nx-gitlab-project: relay")

	if h.Has("received") {
		t.Error("line with multiple separators must be dropped, not joined")
	}
	if got := h.Get("x-gitlab-project"); got != "relay" {
		t.Errorf("well-formed line lost, got %q", got)
	}
}

func TestParseHeaders_LastValueWins(t *testing.T) {
	h := ParseHeaders("x-priority: 1\nx-priority: 5")

	if got := h.Get("x-priority"); got != "5" {
		t.Errorf("expected last value 5, got %q", got)
	}
}

func TestParseHeaders_ValuelessHeader(t *testing.T) {
	h := ParseHeaders("x-gitlab-notificationreason:\nx-empty: ")

	// No ": " separator, so the whole line (colon included) is the key.
	if !h.Has("x-gitlab-notificationreason:") {
		t.Error("valueless header must be present under its raw key")
	}
	if got := h.Get("x-gitlab-notificationreason:"); got != "" {
		t.Errorf("valueless header must read as empty, got %q", got)
	}

	// ": " separator with nothing after it is an empty value, not valueless.
	if !h.Has("x-empty") {
		t.Error("empty-valued header must be present")
	}
}

func TestParseHeaders_StripsQuotesAndCase(t *testing.T) {
	h := ParseHeaders("'X-GitLab-Project': 'relay'\n  Mixed-Case  : value")

	if got := h.Get("x-gitlab-project"); got != "relay" {
		t.Errorf("expected quotes stripped, got %q", got)
	}
	if !h.Has("mixed-case") {
		t.Error("keys must be lower-cased and trimmed")
	}
}

func TestHeaders_GetAbsent(t *testing.T) {
	h := ParseHeaders("")
	if h.Has("anything") {
		t.Error("empty blob must parse to empty headers")
	}
	if got := h.Get("anything"); got != "" {
		t.Errorf("absent header must read as empty, got %q", got)
	}
}
