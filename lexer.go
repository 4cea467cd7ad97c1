// lexer.go — the line classifier (spec.md §4.1).
//
// MomoScript is line-oriented, not token-oriented: the lexer's job is to
// normalize source text and classify each physical line into one of a
// small set of shapes (directive, statement, block opener/closer, blank,
// comment, continuation) so the parser's state machine can decide what to
// do with it. Columns are counted in Unicode code points, never bytes or
// UTF-16 units (spec.md §3.1) — MomoScript source is routinely CJK text.
package momoscript

import (
	"strings"
	"unicode"
)

// normalizeSource strips a UTF-8 BOM and normalizes CRLF/CR line endings to
// LF, per spec.md §6.1.
func normalizeSource(src string) string {
	src = strings.TrimPrefix(src, "\ufeff")
	src = strings.ReplaceAll(src, "\r\n", "\n")
	src = strings.ReplaceAll(src, "\r", "\n")
	return src
}

// sourceLine is one physical line of source, pre-split into runes for
// code-point-accurate column math, alongside its 1-based line number.
type sourceLine struct {
	No      int
	Raw     string
	Runes   []rune
	Trimmed string // Raw with leading/trailing ASCII/Unicode whitespace stripped
	LeadWS  int    // count of leading whitespace runes trimmed from Raw
}

// splitSourceLines normalizes src and splits it into 1-based sourceLines.
// ported from original_source/mmt_render/mmt_text_to_json.py's
// `_strip_bom(text).splitlines()` entry point.
func splitSourceLines(src string) []sourceLine {
	src = normalizeSource(src)
	raw := strings.Split(src, "\n")
	out := make([]sourceLine, len(raw))
	for i, line := range raw {
		trimmed := strings.TrimSpace(line)
		lead := 0
		for _, r := range line {
			if unicode.IsSpace(r) {
				lead++
				continue
			}
			break
		}
		out[i] = sourceLine{
			No:      i + 1,
			Raw:     line,
			Runes:   []rune(line),
			Trimmed: trimmed,
			LeadWS:  lead,
		}
	}
	return out
}

// runeLen returns the code-point length of s.
func runeLen(s string) int { return len([]rune(s)) }

// quoteRunLen returns the length of a leading run of '"' characters in s,
// after leading ASCII space/tab trimming, along with the remainder after
// the run. It is used both to detect block openers (spec.md §4.1 step 3)
// and to recognize block closers (a trimmed line that is exactly the same
// quote run, spec.md §3.7 invariant 7).
func quoteRunLen(s string) (n int, rest string) {
	trimmed := strings.TrimLeft(s, " \t")
	i := 0
	r := []rune(trimmed)
	for i < len(r) && r[i] == '"' {
		i++
	}
	return i, string(r[i:])
}

// isBlockCloser reports whether line's trimmed content is exactly a run of
// quoteLen '"' characters and nothing else (spec.md §3.7 invariant 7).
func isBlockCloser(trimmed string, quoteLen int) bool {
	if runeLen(trimmed) != quoteLen {
		return false
	}
	return strings.Count(trimmed, "\"") == quoteLen
}

// lineShape is the coarse classification of a non-blank, non-block line.
type lineShape int

const (
	shapeComment lineShape = iota
	shapeDirective
	shapeStatement
	shapeContinuation
)

// classifyShape classifies trimmed (already leading/trailing-whitespace
// stripped) content per spec.md §4.1 step 3.
func classifyShape(trimmed string) (shape lineShape, statementMark byte) {
	if trimmed == "" {
		return shapeContinuation, 0
	}
	if strings.HasPrefix(trimmed, "#") {
		return shapeComment, 0
	}
	if strings.HasPrefix(trimmed, "@") {
		return shapeDirective, 0
	}
	r := []rune(trimmed)
	if len(r) >= 2 && (r[0] == '-' || r[0] == '>' || r[0] == '<') && r[1] == ' ' {
		return shapeStatement, byte(r[0])
	}
	return shapeContinuation, 0
}

// splitDirectiveKeyword splits a directive line "@keyword rest..." into the
// lowercase keyword and the untouched remainder (including its leading
// space, if any). It does not validate the keyword — that's the parser's
// job, since unknown keywords are a diagnostic with a span.
func splitDirectiveKeyword(trimmed string) (keyword string, rest string) {
	body := strings.TrimPrefix(trimmed, "@")
	i := 0
	r := []rune(body)
	for i < len(r) {
		c := r[i]
		if c == ' ' || c == ':' {
			break
		}
		i++
	}
	return strings.ToLower(string(r[:i])), string(r[i:])
}

// splitHeaderDirective recognizes "@key: value" (spec.md §3.2 MetaKV /
// §6.5). key may contain dots (e.g. "asset.hero"). Returns ok=false if the
// line does not match the "@key:" shape at all.
func splitHeaderDirective(trimmed string) (key, value string, ok bool) {
	if !strings.HasPrefix(trimmed, "@") {
		return "", "", false
	}
	body := trimmed[1:]
	idx := strings.IndexByte(body, ':')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(body[:idx])
	if key == "" || !isDirectiveKeyRune(rune(key[0])) {
		return "", "", false
	}
	value = strings.TrimSpace(body[idx+1:])
	return key, value, true
}

func isDirectiveKeyRune(r rune) bool {
	return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isPermissibleSelectorRune reports whether r may appear in a marker
// selector token, per spec.md §4.1 "Marker pre-parse": letters, digits,
// underscore, dot, parens, tilde (for "~n"), and anything at or above
// U+0080 (CJK display names).
func isPermissibleSelectorRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '(' || r == ')' || r == '~':
		return true
	case r >= 0x0080:
		return true
	default:
		return false
	}
}

// splitMarkerColon finds the first unescaped top-level ':' in payload that
// is preceded only by permissible-selector runes (spec.md §4.1 "Marker
// pre-parse"), honoring bracket/paren nesting the way
// original_source/mmt_render/mmt_text_to_json.py's `split_top_level_colon`
// does (so `[a:b]` inside content doesn't get mistaken for a marker). If no
// such colon exists, ok is false and the whole payload is content.
func splitMarkerColon(payload string) (head, tail string, ok bool) {
	r := []rune(payload)
	depthSquare, depthParen := 0, 0
	escaped := false
	for i, c := range r {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '[':
			depthSquare++
		case ']':
			if depthSquare > 0 {
				depthSquare--
			}
		case '(':
			depthParen++
		case ')':
			if depthParen > 0 {
				depthParen--
			}
		case ':':
			if depthSquare == 0 && depthParen == 0 {
				h := string(r[:i])
				if !selectorHeadValid(h) {
					return "", "", false
				}
				return h, string(r[i+1:]), true
			}
		}
	}
	return "", "", false
}

// selectorHeadValid reports whether h (the text before a candidate marker
// colon) is entirely permissible-selector runes or spaces, possibly empty
// (an empty head, as in a bare ":", is valid: the parser classifies it as
// MarkerNone, inheriting the side's current speaker).
func selectorHeadValid(h string) bool {
	for _, r := range h {
		if !isPermissibleSelectorRune(r) && r != ' ' {
			return false
		}
	}
	return true
}
