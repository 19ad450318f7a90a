package workflow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/aretw0/tripwise/pkg/domain"
)

// placeholder matches {key} and {key?}. Braces not followed by an identifier
// (for example JSON examples inside an instruction) are left untouched.
var placeholder = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\?)?\}`)

// Template is a parsed stage instruction.
type Template struct {
	raw      string
	required []string
	optional []string
}

// ParseTemplate scans an instruction for context references.
func ParseTemplate(s string) *Template {
	t := &Template{raw: s}
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		key, opt := m[1], m[2] == "?"
		if opt {
			if !slices.Contains(t.optional, key) {
				t.optional = append(t.optional, key)
			}
			continue
		}
		if !slices.Contains(t.required, key) {
			t.required = append(t.required, key)
		}
	}
	return t
}

// Keys returns the keys the template cannot render without, in order of first use.
func (t *Template) Keys() []string {
	return slices.Clone(t.required)
}

// OptionalKeys returns keys referenced as {key?}. They render empty when absent.
func (t *Template) OptionalKeys() []string {
	return slices.Clone(t.optional)
}

// Render substitutes every reference with its value from snap.
func (t *Template) Render(snap domain.Snapshot) (string, error) {
	var missing []string
	out := placeholder.ReplaceAllStringFunc(t.raw, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		key, opt := sub[1], sub[2] == "?"
		v, ok := snap.Get(key)
		if !ok {
			if !opt {
				missing = append(missing, key)
			}
			return ""
		}
		return formatValue(v)
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingKey, strings.Join(missing, ", "))
	}
	return out, nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
