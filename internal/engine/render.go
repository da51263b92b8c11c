package engine

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders look like {{name}} or {{name|fallback text}}. A placeholder
// without a fallback is required: rendering fails rather than substituting
// empty text.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_]+)\s*(?:\|([^{}]*))?\}\}`)

// RenderError reports placeholders that had no value and no fallback.
type RenderError struct {
	Missing []string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("template render: missing required fields: %s", strings.Join(e.Missing, ", "))
}

// Render substitutes the named placeholders in body with values from fields.
// Output is deterministic for a given (body, fields) pair.
func Render(body string, fields map[string]string) (string, error) {
	var missing []string

	out := placeholderRe.ReplaceAllStringFunc(body, func(match string) string {
		groups := placeholderRe.FindStringSubmatch(match)
		name := groups[1]
		if v, ok := fields[name]; ok && v != "" {
			return v
		}
		if strings.Contains(match, "|") {
			return strings.TrimSpace(groups[2])
		}
		missing = append(missing, name)
		return match
	})

	if len(missing) > 0 {
		return "", &RenderError{Missing: missing}
	}
	return out, nil
}
