package mail

import (
	"regexp"
	"strings"
)

// Placeholders returned when the provider omits a body part entirely.
const (
	TextPlaceholder = "No content"
	HTMLPlaceholder = "<p>No content</p>"
)

// footerRe matches the first marketing/footer block GitLab appends to every
// HTML email. Non-greedy, so nested markup inside the div stays matched.
var footerRe = regexp.MustCompile(`(?s)<div\b[^>]*class="footer"[^>]*>.*?</div>`)

// SanitizeText keeps only the portion of a plaintext body before the first
// "--" delimiter, which the upstream mail provider uses to mark the
// quoted-reply/signature boundary. Leading whitespace is trimmed first.
func SanitizeText(text string) string {
	if text == "" {
		return TextPlaceholder
	}

	trimmed := strings.TrimLeft(text, " \t\r\n")
	before, _, _ := strings.Cut(trimmed, "--")
	return before
}

// SanitizeHTML removes the first footer <div> block from an HTML body.
// Absence of such a block is a no-op.
func SanitizeHTML(html string) string {
	if html == "" {
		return HTMLPlaceholder
	}

	loc := footerRe.FindStringIndex(html)
	if loc == nil {
		return html
	}
	return html[:loc[0]] + html[loc[1]:]
}

// SanitizeSubject strips the project-name prefix the provider puts in front
// of subject lines, up to and including the first '|'. Subjects without a
// pipe pass through unchanged apart from leading-whitespace trimming.
func SanitizeSubject(subject string) string {
	if i := strings.IndexByte(subject, '|'); i >= 0 {
		subject = subject[i+1:]
	}
	return strings.TrimLeft(subject, " \t")
}
