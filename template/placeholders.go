package template

import "strings"

// Placeholders returns the set of top-level identifiers referenced by
// {{ ... }} expressions in tmplStr, in first-seen order, e.g.
// "{{ step_1_output.concept }} {{ task }}" yields ["step_1_output", "task"]
// (spec.md §4.4's placeholder analysis, used by the fast-path decision in
// §4.5.1). Identifiers inside {% ... %} control tags are intentionally
// ignored: the fast path only ever needs the variables an expression
// reads, never loop/conditional targets.
func Placeholders(tmplStr string) []string {
	var out []string
	seen := map[string]bool{}
	rest := tmplStr
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

		for _, id := range rootIdentifiers(expr) {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

// rootIdentifiers extracts the root identifiers referenced by a single
// expression body, handling simple binary/filter chains like
// "a.b | default(c)" by scanning token boundaries rather than parsing a
// full expression grammar.
func rootIdentifiers(expr string) []string {
	var out []string
	var cur strings.Builder
	skipNext := false
	flush := func() {
		if cur.Len() == 0 {
			return
		}
		tok := cur.String()
		cur.Reset()
		skip := skipNext
		skipNext = false
		if skip || isKeyword(tok) || isLiteral(tok) {
			return
		}
		out = append(out, tok)
	}

	afterDotOrBracket := false
	for _, r := range expr {
		switch {
		case isIdentRune(r):
			if !afterDotOrBracket {
				cur.WriteRune(r)
			}
		case r == '.' || r == '[':
			flush()
			afterDotOrBracket = true
		case r == '|':
			flush()
			afterDotOrBracket = false
			skipNext = true
		default:
			flush()
			afterDotOrBracket = false
		}
	}
	flush()
	return out
}

func isKeyword(tok string) bool {
	switch tok {
	case "and", "or", "not", "in", "is", "true", "false", "none", "None", "True", "False":
		return true
	}
	return false
}

func isLiteral(tok string) bool {
	if tok == "" {
		return true
	}
	r := tok[0]
	return r >= '0' && r <= '9'
}

func isIdentRune(r rune) bool {
	return r == '_' ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
