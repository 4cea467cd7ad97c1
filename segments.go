// segments.go — inline segment parsing (spec.md §4.5).
//
// Ported from original_source/mmt_render/inline_expr.py's
// `parse_inline_segments`, generalized to the two disjoint modes spec.md
// §3.4/§4.5 describes: Plain mode treats any `[...]` as a candidate
// expression; Typst mode only treats `[:...]` (leading colon) as one, so
// ordinary Typst markup like `[raw brackets]` passes through untouched.
package momoscript

import "strings"

// segmentMode selects which bracket forms are recognized as expressions.
type segmentMode int

const (
	segmentPlain segmentMode = iota
	segmentTypst
)

// rawSegment is an intermediate result before target-char_id resolution:
// text segments are final; expr segments still carry the raw target
// selector string for the compiler to resolve via resolveSelector.
type rawSegment struct {
	Type   string // "text" | "expr"
	Text   string
	Query  string
	Target string // raw selector text, empty if none given
}

// parseInlineSegments tokenizes content into an ordered list of rawSegments
// (spec.md §4.5). Recognized forms, left to right:
//
//	[asset:NAME] / [asset:NS.NAME]   -> expr, query="asset:..."
//	[#ALIAS.N] / [#N]                -> expr, query="#..."
//	[://URL] / [URL] (http(s)/data:)  -> expr, query=URL
//	(TARGET)[QUERY] / [QUERY](TARGET) -> expr, query=QUERY, target=TARGET
//	[QUERY]                           -> expr placeholder
//	everything else                   -> text
//
// In Typst mode only the colon-prefixed spelling `[:QUERY]` (and its
// (TARGET) pairings) is an expression; the leading ':' is stripped from the
// stored query. Escapes `\[` `\]` (and, transitively, `\(` `\)` since the
// scanner treats any `\x` as a literal x) work identically in both modes.
func parseInlineSegments(content string, mode segmentMode) []rawSegment {
	r := []rune(content)
	n := len(r)
	var out []rawSegment
	var buf []rune

	flush := func() {
		if len(buf) > 0 {
			out = append(out, rawSegment{Type: "text", Text: string(buf)})
			buf = buf[:0]
		}
	}

	requireColon := mode == segmentTypst

	readEscaped := func(start int) (chars []rune, closeIdx int, closed bool) {
		i := start
		for i < n {
			c := r[i]
			if c == '\\' && i+1 < n {
				chars = append(chars, r[i+1])
				i += 2
				continue
			}
			if c == ']' {
				return chars, i, true
			}
			chars = append(chars, c)
			i++
		}
		return chars, i, false
	}

	readParen := func(start int) (chars []rune, closeIdx int, closed bool) {
		i := start
		for i < n {
			c := r[i]
			if c == '\\' && i+1 < n {
				chars = append(chars, r[i+1])
				i += 2
				continue
			}
			if c == ')' {
				return chars, i, true
			}
			chars = append(chars, c)
			i++
		}
		return chars, i, false
	}

	emit := func(query, target string, end int) int {
		q := strings.TrimSpace(query)
		if requireColon && !strings.HasPrefix(q, ":") {
			return -1
		}
		if requireColon {
			q = strings.TrimLeft(q[1:], " ")
		}
		flush()
		out = append(out, rawSegment{Type: "expr", Query: q, Target: strings.TrimSpace(target)})
		return end
	}

	i := 0
	for i < n {
		c := r[i]
		if c == '\\' && i+1 < n {
			buf = append(buf, r[i+1])
			i += 2
			continue
		}

		if c == '(' {
			targetChars, j, ok := readParen(i + 1)
			if ok && j+1 < n && r[j+1] == '[' {
				queryChars, k, ok2 := readEscaped(j + 2)
				if ok2 {
					end := k + 1
					if next := emit(string(queryChars), string(targetChars), end); next >= 0 {
						i = next
						continue
					}
					// requireColon rejected: keep original slice verbatim.
					buf = append(buf, r[i:end]...)
					i = end
					continue
				}
			}
			buf = append(buf, c)
			i++
			continue
		}

		if c != '[' {
			buf = append(buf, c)
			i++
			continue
		}

		queryChars, j, ok := readEscaped(i + 1)
		if !ok {
			buf = append(buf, c)
			i++
			continue
		}
		query := string(queryChars)
		k := j + 1
		target := ""
		end := k
		if k < n && r[k] == '(' {
			targetChars, k2, ok2 := readParen(k + 1)
			if !ok2 {
				buf = append(buf, c)
				i++
				continue
			}
			target = string(targetChars)
			end = k2 + 1
		}

		if requireColon && !strings.HasPrefix(strings.TrimSpace(query), ":") {
			buf = append(buf, r[i:end]...)
			i = end
			continue
		}
		q := strings.TrimSpace(query)
		if requireColon {
			q = strings.TrimLeft(q[1:], " ")
		}
		if q == "" {
			// An empty bracket is literal text, joined to the surrounding run.
			buf = append(buf, r[i:end]...)
			i = end
			continue
		}
		flush()
		out = append(out, rawSegment{Type: "expr", Query: q, Target: strings.TrimSpace(target)})
		i = end
	}
	flush()
	return out
}

// isURLLike reports whether s looks like an external image reference
// (spec.md §4.5 "[://URL] or [URL]"), ported from original_source's
// `_is_url_like`.
func isURLLike(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if strings.HasPrefix(s, "data:image/") {
		return true
	}
	if strings.HasPrefix(s, "://") || strings.HasPrefix(s, "//") {
		return true
	}
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// parseAssetQuery extracts NAME from an "asset:NAME" query, or ("", false)
// if query isn't an asset reference (spec.md §4.5).
func parseAssetQuery(query string) (name string, ok bool) {
	q := strings.TrimSpace(query)
	lower := strings.ToLower(q)
	if !strings.HasPrefix(lower, "asset:") {
		return "", false
	}
	name = strings.TrimSpace(q[len("asset:"):])
	return name, name != ""
}

// isDirectIndexQuery reports whether query is a `#ALIAS.N` / `#N` direct
// index placeholder (spec.md §4.5).
func isDirectIndexQuery(query string) bool {
	return strings.HasPrefix(strings.TrimSpace(query), "#")
}
