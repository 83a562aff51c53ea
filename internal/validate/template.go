package validate

import (
	"strings"

	"copydesk/internal/rules"
)

// normalizeHTML collapses all whitespace runs to single spaces so template
// comparison is insensitive to formatting differences.
func normalizeHTML(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// templateMatch describes how a reference template matched inside body HTML.
type templateMatch int

const (
	templateAbsent templateMatch = iota
	templateExact
	templateDeviates
)

// matchTemplate looks for the reference template inside the body. Occurrences
// of the heading slot in the template match any run of text in the body. The
// static segments must appear contiguously and in order.
func matchTemplate(body, template string) templateMatch {
	normBody := normalizeHTML(body)
	normTemplate := normalizeHTML(template)
	segments := strings.Split(normTemplate, rules.HeadingSlot)

	// Anchor on the first static segment to decide present vs absent. When
	// even the opening of the block is missing, the template is absent; when
	// the opening is there but later segments break, it deviates.
	anchor := firstAnchor(segments)
	if anchor == "" || !strings.Contains(normBody, anchor) {
		return templateAbsent
	}

	// Try every occurrence of the anchor; one exact match wins.
	search := normBody
	for {
		pos := strings.Index(search, anchor)
		if pos < 0 {
			return templateDeviates
		}
		if matchAt(search[pos:], segments) {
			return templateExact
		}
		search = search[pos+len(anchor):]
	}
}

// matchAt checks whether the template segments match starting exactly at the
// beginning of rest. Between segments only the slot may intervene.
func matchAt(rest string, segments []string) bool {
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		idx := strings.Index(rest, segment)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		rest = rest[idx+len(segment):]
	}
	return true
}

// firstAnchor returns a prefix of the first non-empty segment long enough to
// identify the block (up to its first closing bracket).
func firstAnchor(segments []string) string {
	for _, segment := range segments {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" {
			continue
		}
		if end := strings.Index(trimmed, ">"); end > 0 {
			return trimmed[:end+1]
		}
		return trimmed
	}
	return ""
}
