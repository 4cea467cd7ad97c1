// selector.go — selector resolution (spec.md §4.4).
//
// A selector is any user-typed identifier that must resolve to a char_id:
// the explicit half of a statement Marker, the target of @alias/@tmpalias/
// @avatar, or the TARGET half of a `(TARGET)[query]` segment. Namespace
// resolution order is fixed and documented (spec.md §4.2 "Tie-breaks"): the
// built-in default pack(s) in declared order, then "custom", then
// registered @usepack aliases in declaration order. First hit wins.
package momoscript

import "strings"

// isBackrefSelector reports whether s has the "_n" shape (spec.md §3.3).
// An empty n defaults to 1 ("_" ≡ "_1"); "_0" is invalid (n must be >= 1).
func isBackrefSelector(s string) (n int, ok bool) {
	if !strings.HasPrefix(s, "_") {
		return 0, false
	}
	rest := s[1:]
	if rest == "" {
		return 1, true
	}
	if !isAllDigits(rest) {
		return 0, false
	}
	n = atoiSafe(rest)
	return n, true
}

// isIndexSelector reports whether s has the "~n" shape (spec.md §3.3).
// Unlike backref, "~" alone (no digits) is not a valid index selector —
// spec.md requires n >= 1 with digits present ("~n:" means...").
func isIndexSelector(s string) (n int, ok bool) {
	if !strings.HasPrefix(s, "~") {
		return 0, false
	}
	rest := s[1:]
	if rest == "" || !isAllDigits(rest) {
		return 0, false
	}
	return atoiSafe(rest), true
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}

// splitNamespace splits "ns.rest" at the first '.', returning ok=false if
// there is no dot or either side is empty.
func splitNamespace(s string) (ns, rest string, ok bool) {
	i := strings.IndexByte(s, '.')
	if i < 0 {
		return "", s, false
	}
	ns = strings.TrimSpace(s[:i])
	rest = strings.TrimSpace(s[i+1:])
	if ns == "" || rest == "" {
		return "", s, false
	}
	return ns, rest, true
}

// displayFromSelector derives a display-name guess from a bare or
// namespaced selector, ported from original_source's `_display_from_selector`.
func displayFromSelector(selector string) string {
	if _, rest, ok := splitNamespace(selector); ok {
		return rest
	}
	return selector
}

// resolveSelector resolves a bare or namespaced selector string to a
// char_id, per spec.md §4.4 steps 3-5 (backref/index, step 1-2, are
// classified by the parser directly onto Marker and never reach here — see
// DESIGN.md for why: the original only ever applies backref/index parsing
// to statement markers, never to @alias/@avatar targets).
//
// allowCustomFallback mirrors spec.md §4.2's per-directive behavior: a
// statement speaker may fall back to a deterministic custom-<hash> id, but
// @avatar/@avatarid targets must not (an unresolvable @avatar target is a
// hard UnknownCharacter error, since silently minting a new character on a
// cosmetic directive would be surprising).
func resolveSelector(st *compileState, reg PackRegistry, mode ModeFlags, selector string, span Span, allowCustomFallback bool) (charID, display string, diag *Diagnostic) {
	s := strings.TrimSpace(selector)
	if s == "" {
		d := newDiag(ErrUnknownCharacter, span, "empty selector")
		return "", "", &d
	}

	if s == "__Sensei" {
		return "__Sensei", "Sensei", nil
	}

	// Namespaced selector: use that namespace exclusively (spec.md §4.4 step 3).
	if ns, rest, ok := splitNamespace(s); ok {
		nsLower := strings.ToLower(ns)
		if nsLower == "custom" {
			// @charid declares char_ids verbatim (spec.md's own S5 scenario:
			// "@charid yz 柚子" produces char_id "yz", not "custom-yz") — so a
			// "custom.X" selector looks up X verbatim first, and only falls
			// back to the hashed custom-<hash> form used by anonymous
			// fallback resolution (see below) if nothing was declared.
			if rec, exists := st.customChars[rest]; exists {
				return rest, rec.DisplayName, nil
			}
			cid := stableCustomID(rest)
			if rec, exists := st.customChars[cid]; exists {
				return cid, rec.DisplayName, nil
			}
			if allowCustomFallback {
				st.ensureCustomChar(cid, rest, "")
				return cid, rest, nil
			}
			d := newDiag(ErrUnknownCharacter, span, "unknown custom character: %s", rest)
			return "", "", &d
		}
		packID, isAlias := st.usepackAlias[ns]
		if !isAlias {
			if reg != nil && reg.KnownPacks()[ns] {
				packID = ns
				isAlias = true
			}
		}
		if !isAlias {
			d := newDiag(ErrUnknownPack, span, "unknown pack namespace: %s", ns)
			return "", "", &d
		}
		if reg == nil {
			d := newDiag(ErrUnknownCharacter, span, "no pack registry available to resolve %s.%s", ns, rest)
			return "", "", &d
		}
		canonical, ok := reg.LookupByName(packID, rest)
		if !ok {
			d := newDiag(ErrUnknownCharacter, span, "unknown character in pack %q: %s", packID, rest)
			return "", "", &d
		}
		return ns + "." + canonical, baseName(canonical), nil
	}

	// Bare name: try the short_id_map once (spec.md §4.4 step 4a, "single
	// level; no recursion").
	if target, ok := st.shortIDMap[s]; ok {
		s = target
	}

	for _, ns := range defaultPackOrder(mode) {
		if reg == nil {
			break
		}
		if canonical, ok := reg.LookupByName(ns, s); ok {
			return ns + "." + canonical, baseName(canonical), nil
		}
	}
	if rec, exists := st.customChars[s]; exists {
		return s, rec.DisplayName, nil
	}
	if cid := stableCustomID(s); true {
		if rec, exists := st.customChars[cid]; exists {
			return cid, rec.DisplayName, nil
		}
	}
	for _, alias := range st.usepackOrder {
		packID := st.usepackAlias[alias]
		if reg == nil {
			continue
		}
		if canonical, ok := reg.LookupByName(packID, s); ok {
			return alias + "." + canonical, baseName(canonical), nil
		}
	}

	if allowCustomFallback {
		cid := stableCustomID(s)
		st.ensureCustomChar(cid, s, "")
		return cid, s, nil
	}
	d := newDiag(ErrUnknownCharacter, span, "unknown character: %s", s)
	return "", "", &d
}

// defaultPackOrder returns the fixed built-in namespace order, honoring a
// ModeFlags override if one was supplied.
func defaultPackOrder(mode ModeFlags) []string {
	if len(mode.DefaultPacks) > 0 {
		return mode.DefaultPacks
	}
	return builtinDefaultNamespaceOrder
}

// baseName strips a parenthetical skin suffix from a display/canonical
// name: "星野(一年级)" -> "星野". Ported from original_source's `_base_name`,
// which also special-cases the full-width "（" parenthesis.
func baseName(name string) string {
	name = strings.TrimSpace(name)
	for _, sep := range []string{"(", "（"} {
		if idx := strings.Index(name, sep); idx >= 0 {
			return strings.TrimSpace(name[:idx])
		}
	}
	return name
}
