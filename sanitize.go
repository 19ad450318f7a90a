package tripwise

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aretw0/tripwise/pkg/domain"
)

// DefaultMaxQuerySize is 4KB (conservative default).
const DefaultMaxQuerySize = 4096

var (
	ErrQueryTooLarge = fmt.Errorf("%w: query exceeds maximum allowed size", domain.ErrInvalidQuery)
	ErrInvalidUTF8   = fmt.Errorf("%w: query contains invalid UTF-8 sequences", domain.ErrInvalidQuery)
	ErrEmptyQuery    = fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
)

// SanitizeQuery cleans a user query by enforcing a size limit,
// validating UTF-8, and stripping control characters.
// Queries that are empty after cleaning are rejected.
func SanitizeQuery(input string, limit int) (string, error) {
	if limit <= 0 {
		limit = DefaultMaxQuerySize
	}
	if len(input) > limit {
		// Reject rather than truncate so the model never sees a partial request.
		return "", fmt.Errorf("%w: size=%d limit=%d", ErrQueryTooLarge, len(input), limit)
	}
	if !utf8.ValidString(input) {
		return "", ErrInvalidUTF8
	}

	// Keep \n, \t and \r. Drop ANSI escapes, NUL, BEL and the rest: they end up
	// in logs and terminals.
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if !unicode.IsControl(r) || isSafeControl(r) {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyQuery
	}
	return out, nil
}

func isSafeControl(r rune) bool {
	return r == '\n' || r == '\t' || r == '\r'
}

// IsInvalidQuery reports whether err is a query rejection.
func IsInvalidQuery(err error) bool {
	return errors.Is(err, domain.ErrInvalidQuery)
}
