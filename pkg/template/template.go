// Package template resolves {{path.to.value}} placeholders against an
// execution context. Resolution is deliberately permissive: a placeholder
// that cannot be resolved becomes the empty string and is reported as a
// warning, never as a failure of the step.
package template

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Jeffail/gabs/v2"

	"github.com/relaycrm/relay/pkg/models"
)

// placeholderPattern matches {{identifier(.identifier)*}} with optional
// inner whitespace. The first segment selects a node id (or the literal
// "trigger"); the rest walk into that node's output object.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][\w-]*(?:\.[\w-]+)*)\s*\}\}`)

// Resolve substitutes every placeholder in input with its value from the
// execution context. The returned slice lists the paths that could not be
// resolved; those placeholders become the empty string. Resolving an input
// with no placeholders returns it unchanged, so Resolve is idempotent once
// all placeholders are gone.
func Resolve(input string, executionCtx *models.ExecutionContext) (string, []string) {
	if !strings.Contains(input, "{{") {
		return input, nil
	}

	container := gabs.Wrap(anyMap(executionCtx.Snapshot()))

	var unresolved []string

	resolved := placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		path := placeholderPattern.FindStringSubmatch(match)[1]

		value := container.Path(path)
		if value == nil {
			unresolved = append(unresolved, path)

			return ""
		}

		return Stringify(value.Data())
	})

	return resolved, unresolved
}

// HasPlaceholders reports whether the input still contains placeholders.
func HasPlaceholders(input string) bool {
	return placeholderPattern.MatchString(input)
}

// Stringify renders a context value in its canonical string form: numbers
// in decimal, booleans as true/false, nil as the empty string. Composite
// values fall back to their compact JSON encoding.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return gabs.Wrap(v).String()
	}
}

func anyMap(outputs map[string]map[string]any) map[string]any {
	wrapped := make(map[string]any, len(outputs))
	for id, output := range outputs {
		wrapped[id] = output
	}

	return wrapped
}
