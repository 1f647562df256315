// Package mail normalizes inbound email-derived webhook payloads: raw header
// blobs, reply-quoted plaintext, provider-generated HTML and subject lines.
package mail

import "strings"

// Headers is the normalized key→value mapping parsed from a raw header blob.
// Keys are lower-cased and trimmed. A nil value marks a header line that had
// a name but no value, which is distinct from an empty-string value.
type Headers map[string]*string

// Has reports whether the header name is present, with or without a value.
func (h Headers) Has(key string) bool {
	_, ok := h[key]
	return ok
}

// Get returns the header value, or "" when the header is absent or valueless.
func (h Headers) Get(key string) string {
	v, ok := h[key]
	if !ok || v == nil {
		return ""
	}
	return *v
}

// ParseHeaders turns a newline-delimited `Key: Value` blob into Headers.
//
// Parsing is total: malformed input never yields an error. Blank lines are
// skipped and stray quote characters are removed before splitting. A line is
// split on the ": " separator; lines producing more than two parts are
// discarded outright — downstream consumers rely on such malformed keys being
// absent, so do not "fix" this into a best-effort join. When the same key
// occurs twice the last occurrence wins.
func ParseHeaders(raw string) Headers {
	headers := make(Headers)

	sanitized := strings.ReplaceAll(strings.TrimRight(raw, " \t\r\n"), "'", "")

	for _, line := range strings.Split(sanitized, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		parts := strings.Split(line, ": ")
		if len(parts) > 2 {
			continue
		}

		key := strings.ToLower(strings.TrimSpace(parts[0]))
		if key == "" {
			continue
		}

		if len(parts) == 1 {
			headers[key] = nil
			continue
		}

		value := parts[1]
		headers[key] = &value
	}

	return headers
}
