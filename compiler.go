// compiler.go — the semantic compiler (spec.md §4.2).
//
// Compile walks the flat AST linearly exactly once, folding each node into
// a freshly allocated compileState and, for the four entry-producing node
// kinds (which emit the five chat entry types), into the IR's chat[] list. The first fatal Diagnostic halts the
// walk and the partial IR is discarded (spec.md §7 "Fatal compile error") —
// everything up to that point was already observably correct, but spec.md
// is explicit that there is no repair mode, so we don't hand back a
// half-built IR that could be mistaken for a complete one.
package momoscript

import (
	"fmt"
	"strings"
)

// JoinMode selects how continuation lines are joined onto the statement
// they extend (spec.md §6.1).
type JoinMode int

const (
	JoinNewline JoinMode = iota
	JoinSpace
)

// ModeFlags is the plain configuration record passed into Parse/Compile
// (spec.md §6.1, §9 "Mutable global state" — there is no module-level
// config singleton; every call site threads its own ModeFlags value).
type ModeFlags struct {
	TypstMode            bool
	JoinContinuationWith  JoinMode
	// DefaultPacks overrides the built-in namespace resolution order
	// (spec.md §4.2 "Tie-breaks"). A nil/empty slice falls back to the
	// package default ("ba" alone); this is purely a caller convenience,
	// never read from source.
	DefaultPacks []string
}

// Compile folds ast into an IR, using reg for pack lookups (spec.md §4.2).
// Compile never mutates ast or reg. On the first fatal Diagnostic, it
// returns (nil, diags) — diags always has the fatal one last when non-nil.
func Compile(ast []Node, mode ModeFlags, reg PackRegistry) (*IR, []Diagnostic) {
	st := newCompileState(mode)
	var diags []Diagnostic

	for _, node := range ast {
		var diag *Diagnostic
		switch node.Kind {
		case NodeMetaKV:
			st.ir.Meta.Set(node.Key, node.Value)
		case NodeTypstGlobal:
			if st.ir.TypstGlobal != "" && node.Value != "" {
				st.ir.TypstGlobal += "\n"
			}
			st.ir.TypstGlobal += node.Value
		case NodeUsePack:
			diag = compileUsePack(st, reg, node)
		case NodeAlias:
			compileAlias(st, reg, mode, node, &diags)
		case NodeTmpAlias:
			compileTmpAlias(st, reg, mode, node, &diags)
		case NodeAliasID:
			st.shortIDMap[node.ShortID] = node.Name
		case NodeUnaliasID:
			if _, ok := st.shortIDMap[node.ShortID]; !ok {
				d := newDiag(ErrUnknownShortId, node.Span, "unknown short id: %s", node.ShortID)
				diag = &d
				break
			}
			delete(st.shortIDMap, node.ShortID)
		case NodeCharID:
			st.ensureCustomChar(node.ShortID, node.Display, "")
		case NodeUncharID:
			delete(st.customChars, node.ShortID)
			delete(st.avatarOverrides, node.ShortID)
			st.removeCustomOrder(node.ShortID)
		case NodeAvatarID:
			diag = compileAvatarID(st, reg, mode, node)
		case NodeUnavatarID:
			delete(st.avatarOverrides, node.ShortID)
		case NodeAvatarOverride:
			diag = compileAvatarOverride(st, reg, mode, node)
		case NodePageBreak:
			st.ir.Chat = append(st.ir.Chat, PageBreakEntry{
				Yuzutalk: YuzutalkInfo{Type: "PAGEBREAK", AvatarState: "AUTO"},
				LineNo:   node.Span.StartLine,
			})
			st.lastKey = ""
		case NodeReply:
			diag = compileReply(st, reg, mode, node)
		case NodeBond:
			diag = compileBond(st, reg, mode, node)
		case NodeStatement:
			diag = compileStatement(st, reg, mode, node)
		}
		if diag != nil {
			diags = append(diags, *diag)
			return nil, diags
		}
	}

	// finalize derived fields now that usepack order is complete.
	st.ir.Packs.Order = append([]string(nil), st.usepackOrder...)
	for alias, packID := range st.usepackAlias {
		st.ir.Packs.Aliases[alias] = packID
	}
	for _, charID := range st.customOrder {
		rec := st.customChars[charID]
		st.ir.CustomChars = append(st.ir.CustomChars, CustomCharEntry{
			CharID: charID, AvatarRef: rec.AvatarRef, DisplayName: rec.DisplayName,
		})
	}
	st.ir.TypstAssetsGlobal = buildTypstAssetsGlobal(st)

	return st.ir, diags
}

func (st *compileState) removeCustomOrder(charID string) {
	for i, c := range st.customOrder {
		if c == charID {
			st.customOrder = append(st.customOrder[:i], st.customOrder[i+1:]...)
			return
		}
	}
}

func compileUsePack(st *compileState, reg PackRegistry, node Node) *Diagnostic {
	if reg == nil || !reg.KnownPacks()[node.PackID] {
		d := newDiag(ErrUnknownPack, node.Span, "unknown pack: %s", node.PackID)
		return &d
	}
	if _, exists := st.usepackAlias[node.Alias]; exists {
		d := newDiag(ErrDuplicateAlias, node.Span, "duplicate pack alias: %s", node.Alias)
		return &d
	}
	st.usepackAlias[node.Alias] = node.PackID
	st.usepackOrder = append(st.usepackOrder, node.Alias)
	return nil
}

// compileAlias resolves @alias's target; an unresolved target is a
// non-fatal warning and the directive is dropped (spec.md §4.2 "Alias",
// §9 open question #1).
func compileAlias(st *compileState, reg PackRegistry, mode ModeFlags, node Node, diags *[]Diagnostic) {
	charID, _, diag := resolveSelector(st, reg, mode, node.Name, node.Span, false)
	if diag != nil {
		*diags = append(*diags, newWarning(diag.Kind, node.Span, "dropped @alias: %s", diag.Message))
		return
	}
	if node.Display == "" {
		delete(st.aliases, charID)
		return
	}
	st.aliases[charID] = node.Display
}

func compileTmpAlias(st *compileState, reg PackRegistry, mode ModeFlags, node Node, diags *[]Diagnostic) {
	charID, _, diag := resolveSelector(st, reg, mode, node.Name, node.Span, false)
	if diag != nil {
		*diags = append(*diags, newWarning(diag.Kind, node.Span, "dropped @tmpalias: %s", diag.Message))
		return
	}
	if node.Display == "" {
		delete(st.tmpAlias[sideLeft].pending, charID)
		delete(st.tmpAlias[sideRight].pending, charID)
		return
	}
	st.tmpAlias[sideLeft].pending[charID] = node.Display
	st.tmpAlias[sideRight].pending[charID] = node.Display
}

func compileAvatarID(st *compileState, reg PackRegistry, mode ModeFlags, node Node) *Diagnostic {
	ref, diag := resolveAssetRef(st, reg, mode, node.AssetRef, node.Span)
	if diag != nil {
		return diag
	}
	st.avatarOverrides[node.ShortID] = ref
	if rec, ok := st.customChars[node.ShortID]; ok {
		rec.AvatarRef = ref
		st.customChars[node.ShortID] = rec
	}
	return nil
}

func compileAvatarOverride(st *compileState, reg PackRegistry, mode ModeFlags, node Node) *Diagnostic {
	charID, _, diag := resolveSelector(st, reg, mode, node.Name, node.Span, false)
	if diag != nil {
		return diag
	}
	if charID == "__Sensei" {
		d := newDiag(ErrUnknownCharacter, node.Span, "@avatar cannot target Sensei")
		return &d
	}
	if node.AssetRef == "" {
		delete(st.avatarOverrides, charID)
		return nil
	}
	ref, diag2 := resolveAssetRef(st, reg, mode, node.AssetRef, node.Span)
	if diag2 != nil {
		return diag2
	}
	st.avatarOverrides[charID] = ref
	return nil
}

// resolveAssetRef interprets an avatar/asset token per spec.md §4.2
// "AvatarId(...) / AvatarOverride(...)": an "@asset.<name>" (or bare
// "asset:<name>"/"asset.<name>") reference dereferenced through meta, a
// "kivo-<sid>" pack shortcut, a pack character name (borrows its default
// avatar), or an external URL/data-URL left for the resolver collaborator.
func resolveAssetRef(st *compileState, reg PackRegistry, mode ModeFlags, token string, span Span) (string, *Diagnostic) {
	t := strings.TrimSpace(token)
	if t == "" {
		return "", nil
	}
	if name, ok := stripAssetPrefix(t); ok {
		if v, ok2 := st.ir.Meta.Get("asset." + name); ok2 {
			return v, nil
		}
		d := newDiag(ErrUnknownAsset, span, "unknown asset: %s", name)
		return "", &d
	}
	if isURLLike(t) {
		return t, nil
	}
	if strings.HasPrefix(t, "kivo-") {
		if reg != nil {
			if p, ok := reg.DefaultAvatarPath("ba", t); ok {
				return p, nil
			}
		}
		return t, nil
	}
	if charID, _, diag := resolveSelector(st, reg, mode, t, span, false); diag == nil {
		if ns, rest, ok := splitNamespace(charID); ok && reg != nil {
			if p, ok2 := reg.DefaultAvatarPath(ns, rest); ok2 {
				return p, nil
			}
		}
		return charID, nil
	}
	if v, ok := st.ir.Meta.Get("asset." + t); ok {
		return v, nil
	}
	d := newDiag(ErrUnknownAsset, span, "unknown asset: %s", t)
	return "", &d
}

func stripAssetPrefix(t string) (name string, ok bool) {
	t = strings.TrimPrefix(t, "@")
	lower := strings.ToLower(t)
	if strings.HasPrefix(lower, "asset:") {
		return strings.TrimSpace(t[len("asset:"):]), true
	}
	if strings.HasPrefix(lower, "asset.") {
		return strings.TrimSpace(t[len("asset."):]), true
	}
	return "", false
}

// compileStatement resolves a statement's speaker (if any), updates the
// side/global history, applies temp-alias scoping, and emits the TEXT or
// NARRATION chat entry (spec.md §4.2 "Statement").
func compileStatement(st *compileState, reg PackRegistry, mode ModeFlags, node Node) *Diagnostic {
	if node.StmtKind == StmtNarration {
		segs, diag := parseContentSegments(st, reg, mode, node.Content, node.Span)
		if diag != nil {
			return diag
		}
		st.ir.Chat = append(st.ir.Chat, NarrationEntry{
			Yuzutalk: YuzutalkInfo{Type: "NARRATION", AvatarState: "AUTO"},
			Content:  node.Content,
			Segments: segs,
			LineNo:   node.Span.StartLine,
		})
		return nil
	}

	s := sideLeft
	if node.StmtKind == StmtRight {
		s = sideRight
	}

	charID, display, diag := resolveStatementSpeaker(st, reg, mode, s, node.Marker, node.Span)
	if diag != nil {
		return diag
	}

	nameOverride := ""
	if charID != "__Sensei" {
		nameOverride = st.tmpAlias[s].apply(charID)
		if nameOverride == "" {
			if a, ok := st.aliases[charID]; ok {
				nameOverride = a
			}
		}
	}

	st.history[s].touch(charID)
	st.noteGlobalFirstAppearance(charID)
	st.lastSpeakerCharID = charID
	if display == "" {
		if rec, ok := st.customChars[charID]; ok {
			display = rec.DisplayName
		} else if charID == "__Sensei" {
			display = "Sensei"
		} else {
			display = displayFromSelector(charID)
		}
	}
	if display != "" {
		st.lastSpeakerDisplay = baseName(display)
	}
	st.haveLastSpeaker = true
	st.globalFlatHistory = append(st.globalFlatHistory, charID)

	segs, segDiag := parseContentSegments(st, reg, mode, node.Content, node.Span)
	if segDiag != nil {
		return segDiag
	}

	st.ir.Chat = append(st.ir.Chat, TextEntry{
		Yuzutalk:       YuzutalkInfo{Type: "TEXT", AvatarState: "AUTO", NameOverride: nameOverridePtr(nameOverride)},
		CharID:         charID,
		Side:           s.String(),
		Content:        node.Content,
		Segments:       segs,
		AvatarOverride: st.avatarOverrides[charID],
		LineNo:         node.Span.StartLine,
	})
	return nil
}

// resolveStatementSpeaker implements spec.md §3.3/§4.2's marker resolution:
// None (inherit), Explicit (selector resolution), Backref (_n, side-scoped),
// Index (~n, global, evaluated against PRIOR state per §9 open question #4).
func resolveStatementSpeaker(st *compileState, reg PackRegistry, mode ModeFlags, s side, m Marker, span Span) (charID, display string, diag *Diagnostic) {
	switch m.Kind {
	case MarkerNone:
		if cur, ok := st.history[s].nth(1); ok {
			return cur, "", nil
		}
		if s == sideRight {
			return "__Sensei", "", nil
		}
		d := newDiag(ErrNoCurrentSpeaker, span, "no current speaker on the left side")
		return "", "", &d
	case MarkerExplicit:
		cid, disp, d := resolveSelector(st, reg, mode, m.Selector, span, true)
		if d != nil {
			return "", "", d
		}
		return cid, disp, nil
	case MarkerBackref:
		if m.N < 1 {
			d := newDiag(ErrBackrefOutOfRange, span, "backref index must be >= 1")
			return "", "", &d
		}
		// "_1" means the previous speaker, not the current one: it skips the
		// side's own most-recent entry (whoever is already "current") and
		// counts back from there (original_source's SpeakerState.set_backref,
		// spec.md's own S1 scenario: 星野,白子,_ -> 星野, not 白子).
		cur, ok := st.history[s].nth(m.N + 1)
		if !ok {
			d := newDiag(ErrBackrefOutOfRange, span, "not enough speaker history for _%d", m.N)
			return "", "", &d
		}
		return cur, "", nil
	case MarkerIndex:
		if m.N < 1 {
			d := newDiag(ErrIndexOutOfRange, span, "global index must be >= 1")
			return "", "", &d
		}
		if m.N > len(st.globalOrder) {
			d := newDiag(ErrIndexOutOfRange, span, "not enough distinct speakers for ~%d", m.N)
			return "", "", &d
		}
		return st.globalOrder[m.N-1], "", nil
	}
	d := newDiag(ErrInvariant, span, "unreachable marker kind")
	return "", "", &d
}

// compileReply emits a REPLY entry (spec.md §4.2 "Reply").
func compileReply(st *compileState, reg PackRegistry, mode ModeFlags, node Node) *Diagnostic {
	if len(node.ReplyItems) == 0 {
		d := newDiag(ErrEmptyReplyBlock, node.Span, "reply has no items")
		return &d
	}
	items := make([]ReplyItemOut, 0, len(node.ReplyItems))
	for _, it := range node.ReplyItems {
		segs, diag := parseContentSegments(st, reg, mode, it.Content, it.Span)
		if diag != nil {
			return diag
		}
		items = append(items, ReplyItemOut{Text: it.Content, Segments: segs})
	}
	st.ir.Chat = append(st.ir.Chat, ReplyEntry{
		Yuzutalk: YuzutalkInfo{Type: "REPLY", AvatarState: "AUTO"},
		Items:    items,
		Label:    "回复",
		LineNo:   node.Span.StartLine,
	})
	return nil
}

// compileBond emits a BOND entry, synthesizing default content when none
// was authored (spec.md §4.2 "Bond").
func compileBond(st *compileState, reg PackRegistry, mode ModeFlags, node Node) *Diagnostic {
	content := node.Content
	if node.ContentEmpty {
		if st.haveLastSpeaker && st.lastSpeakerDisplay != "" {
			content = fmt.Sprintf("进入%s的羁绊剧情", st.lastSpeakerDisplay)
		} else {
			content = "进入羁绊剧情"
		}
	}
	segs, diag := parseContentSegments(st, reg, mode, content, node.Span)
	if diag != nil {
		return diag
	}
	st.ir.Chat = append(st.ir.Chat, BondEntry{
		Yuzutalk: YuzutalkInfo{Type: "BOND", AvatarState: "AUTO"},
		Content:  content,
		Segments: segs,
		LineNo:   node.Span.StartLine,
	})
	return nil
}

// parseContentSegments tokenizes content (spec.md §4.5) and resolves every
// expr segment's target to a char_id, using the last TEXT speaker as the
// implicit target when none is given.
func parseContentSegments(st *compileState, reg PackRegistry, mode ModeFlags, content string, span Span) ([]Segment, *Diagnostic) {
	segMode := segmentPlain
	if mode.TypstMode {
		segMode = segmentTypst
	}
	raw := parseInlineSegments(content, segMode)
	out := make([]Segment, 0, len(raw))
	for _, r := range raw {
		if r.Type == "text" {
			if r.Text != "" {
				out = append(out, Segment{Type: "text", Text: r.Text})
			}
			continue
		}

		query := r.Query
		if assetName, ok := parseAssetQuery(query); ok {
			out = append(out, Segment{Type: "expr", Query: "asset:" + assetName, LineNo: span.StartLine})
			continue
		}
		if isDirectIndexQuery(query) {
			out = append(out, Segment{Type: "expr", Query: query, LineNo: span.StartLine})
			continue
		}
		if isURLLike(query) && r.Target == "" {
			out = append(out, Segment{Type: "image", Ref: query, Alt: query})
			continue
		}

		targetCharID, diag := resolveSegmentTarget(st, reg, mode, r.Target, span)
		if diag != nil {
			return nil, diag
		}
		out = append(out, Segment{
			Type: "expr", Query: query, TargetCharID: targetCharID, LineNo: span.StartLine,
		})
	}
	return out, nil
}

// resolveSegmentTarget resolves the TARGET half of an expr segment: empty
// means "the current speaker", "_n" counts n entries back from the most
// recent one in the full chronological speaker list, repeats included (so
// "_1" is the entry just before the most recent; ported from
// original_source's `global_history`, as opposed to the duplicate-free
// global_speaker_order), otherwise it's a plain selector.
func resolveSegmentTarget(st *compileState, reg PackRegistry, mode ModeFlags, target string, span Span) (string, *Diagnostic) {
	t := strings.TrimSpace(target)
	if t == "" {
		if !st.haveLastSpeaker || st.lastSpeakerCharID == "__Sensei" {
			d := newDiag(ErrNoCurrentSpeaker, span, "implicit expression requires a non-sensei current character")
			return "", &d
		}
		return st.lastSpeakerCharID, nil
	}
	if n, ok := isBackrefSelector(t); ok {
		idx := len(st.globalFlatHistory) - n - 1
		if n < 1 || idx < 0 {
			d := newDiag(ErrBackrefOutOfRange, span, "not enough global speaker history for _%d", n)
			return "", &d
		}
		return st.globalFlatHistory[idx], nil
	}
	charID, _, diag := resolveSelector(st, reg, mode, t, span, false)
	if diag != nil {
		return "", diag
	}
	if charID == "__Sensei" {
		d := newDiag(ErrUnknownCharacter, span, "expression target cannot be Sensei")
		return "", &d
	}
	return charID, nil
}

// buildTypstAssetsGlobal concatenates every referenced "@asset.<name>"
// binding into Typst #let bindings (SPEC_FULL.md §3.6). Only assets
// actually exercised by an avatar override or an asset: expr segment are
// included, determined here by re-scanning the final chat[]/overrides
// rather than tracking usage during the walk, since avatar overrides and
// expr segments are both resolved well before this point.
func buildTypstAssetsGlobal(st *compileState) string {
	used := map[string]bool{}
	for _, ref := range st.avatarOverrides {
		if name, ok := assetMetaKeyFromRef(st, ref); ok {
			used[name] = true
		}
	}
	for _, entry := range st.ir.Chat {
		segs := chatEntrySegments(entry)
		for _, s := range segs {
			if s.Type == "expr" && strings.HasPrefix(s.Query, "asset:") {
				used[strings.TrimPrefix(s.Query, "asset:")] = true
			}
		}
	}
	if len(used) == 0 {
		return ""
	}
	var names []string
	for _, k := range st.ir.Meta.Keys() {
		if !strings.HasPrefix(k, "asset.") {
			continue
		}
		name := strings.TrimPrefix(k, "asset.")
		if used[name] {
			names = append(names, name)
		}
	}
	var b strings.Builder
	for i, name := range names {
		v, _ := st.ir.Meta.Get("asset." + name)
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "#let asset_%s = %q", name, v)
	}
	return b.String()
}

func assetMetaKeyFromRef(st *compileState, ref string) (string, bool) {
	for _, k := range st.ir.Meta.Keys() {
		if !strings.HasPrefix(k, "asset.") {
			continue
		}
		if v, _ := st.ir.Meta.Get(k); v == ref {
			return strings.TrimPrefix(k, "asset."), true
		}
	}
	return "", false
}

func chatEntrySegments(entry ChatEntry) []Segment {
	switch e := entry.(type) {
	case TextEntry:
		return e.Segments
	case NarrationEntry:
		return e.Segments
	case BondEntry:
		return e.Segments
	case ReplyEntry:
		var all []Segment
		for _, it := range e.Items {
			all = append(all, it.Segments...)
		}
		return all
	default:
		return nil
	}
}
