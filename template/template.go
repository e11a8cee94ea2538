// Package template renders the Jinja-compatible intent and condition
// templates used throughout the strategy model (spec.md §4.4), and
// extracts the set of top-level identifiers a template references for the
// fast-path intent-generation decision (spec.md §4.5.1).
package template

import (
	"encoding/json"
	"fmt"

	"github.com/nikolalohinski/gonja/v2"
	"github.com/nikolalohinski/gonja/v2/exec"
)

// UnresolvedPlaceholderError reports a template referencing an identifier
// absent from the root context mapping. Missing identifiers fail the
// render rather than silently becoming empty (spec.md §4.4).
type UnresolvedPlaceholderError struct {
	Placeholder string
}

func (e *UnresolvedPlaceholderError) Error() string {
	return fmt.Sprintf("template: unresolved placeholder %q", e.Placeholder)
}

// Render renders tmplStr against root, the full context store contents
// (spec.md §4.4: "The engine receives the full context store as a single
// root mapping"). Every top-level identifier referenced by tmplStr must
// be present in root or Render fails with *UnresolvedPlaceholderError
// before gonja is even invoked.
func Render(tmplStr string, root map[string]json.RawMessage) (string, error) {
	for _, ph := range Placeholders(tmplStr) {
		if _, ok := root[ph]; !ok {
			return "", &UnresolvedPlaceholderError{Placeholder: ph}
		}
	}

	native, err := toNative(root)
	if err != nil {
		return "", fmt.Errorf("template: decoding context: %w", err)
	}

	tpl, err := gonja.FromString(tmplStr)
	if err != nil {
		return "", fmt.Errorf("template: parsing: %w", err)
	}
	out, err := tpl.Execute(exec.NewContext(native))
	if err != nil {
		return "", fmt.Errorf("template: executing: %w", err)
	}
	return out, nil
}

// toNative decodes a context store snapshot's JSON values into plain Go
// values (maps, slices, strings, numbers, bools, nil) so gonja can walk
// dot/index access paths over it.
func toNative(root map[string]json.RawMessage) (map[string]any, error) {
	out := make(map[string]any, len(root))
	for k, raw := range root {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
