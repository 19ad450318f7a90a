package workflow

import (
	"fmt"
	"strings"

	"github.com/aretw0/tripwise/pkg/domain"
)

// CleanDocument strips enclosing code fences from s and checks that the
// remainder starts with an <!DOCTYPE html> or <html> tag.
func CleanDocument(s string) (string, error) {
	doc := stripFences(s)

	lower := strings.ToLower(doc)
	if !strings.HasPrefix(lower, "<!doctype html") && !hasTag(lower, "html") {
		preview := doc
		if len([]rune(preview)) > 40 {
			preview = string([]rune(preview)[:40]) + "..."
		}
		return "", fmt.Errorf("%w: expected <!DOCTYPE html> or <html>, got %q", domain.ErrMalformedDocument, preview)
	}
	return doc, nil
}

// hasTag reports whether s opens with <name followed by '>' or whitespace.
func hasTag(s, name string) bool {
	open := "<" + name
	if !strings.HasPrefix(s, open) || len(s) == len(open) {
		return false
	}
	switch s[len(open)] {
	case '>', ' ', '\t', '\n', '\r':
		return true
	}
	return false
}
