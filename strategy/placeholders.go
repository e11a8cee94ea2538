package strategy

import "strings"

// placeholders extracts the set of top-level identifiers referenced by
// {{ ... }} spans in tmpl, e.g. "{{ step_1_output.concept }}" yields
// "step_1_output". This is a narrow, validation-time-only scanner: it
// exists so the validator can check invariant 3 in spec.md §3 without
// importing the template package (which sits later in the dependency
// order and performs the actual Jinja render at execution time). The
// runtime template package implements the equivalent extraction on its
// own for placeholder-analysis fast-pathing.
func placeholders(tmpl string) []string {
	var out []string
	seen := map[string]bool{}
	rest := tmpl
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			break
		}
		rest = rest[start+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			break
		}
		expr := rest[:end]
		rest = rest[end+2:]

		id := topLevelIdentifier(expr)
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// topLevelIdentifier extracts the root identifier of a Jinja expression
// body, stopping at the first filter pipe, dot, index bracket, or
// whitespace-delimited operator.
func topLevelIdentifier(expr string) string {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return ""
	}
	for i, r := range expr {
		switch r {
		case '.', '[', '|', ' ', '\t', '\n', '(', ')', ',':
			if i == 0 {
				return ""
			}
			return expr[:i]
		}
		if !isIdentRune(r) {
			return ""
		}
	}
	return expr
}

func isIdentRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
