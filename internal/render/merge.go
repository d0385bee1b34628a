// Package render assembles printable documents: it merges dotted-path
// placeholders into stored text templates and enriches the raw payload
// with the localized aliases those templates use.
package render

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{\{\s*([\w.]+)\s*\}\}`)

// Merge substitutes every {{ dotted.path }} placeholder in the template
// with the value resolved against data. Merge is total: unresolvable or
// nil values render as the empty string, malformed paths never fail.
func Merge(template string, data map[string]any) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]
		value := resolve(data, path)
		if value == nil {
			return ""
		}
		return fmt.Sprint(value)
	})
}

// resolve walks the dotted path segment by segment: numeric segments index
// into sequences, everything else looks up a map key. Any miss resolves to
// nil.
func resolve(data map[string]any, path string) any {
	var current any = data
	for _, segment := range strings.Split(path, ".") {
		if current == nil {
			return nil
		}
		if index, err := strconv.Atoi(segment); err == nil {
			sequence, ok := current.([]any)
			if !ok || index < 0 || index >= len(sequence) {
				return nil
			}
			current = sequence[index]
			continue
		}
		mapping, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = mapping[segment]
	}
	return current
}
