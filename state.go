// state.go — the compiler's mutable state bundle (spec.md §3.5, §5).
//
// A compileState is allocated fresh per Compile call, mutated in a single
// forward pass, and discarded on return — there is no package-level mutable
// state anywhere in this module (spec.md §5, §9 "Mutable global state").
// History tables store char_ids by value, never references into the AST,
// per spec.md §9 "Cyclic or deep state".
package momoscript

// side identifies one of the two independent speaker histories.
type side int

const (
	sideLeft side = iota
	sideRight
)

func (s side) String() string {
	if s == sideRight {
		return "right"
	}
	return "left"
}

// speakerHistory is an ordered, duplicate-free, most-recent-first list of
// distinct char_ids, per spec.md §3.7 invariant 4.
type speakerHistory struct {
	order []string // order[0] is most recent
}

// touch moves charID to the front, inserting it if new.
func (h *speakerHistory) touch(charID string) {
	for i, c := range h.order {
		if c == charID {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	h.order = append([]string{charID}, h.order...)
}

// nth returns the n-th most recent entry (1-based: n=1 is order[0]) as it
// stood BEFORE the current statement's touch() call — callers must snapshot
// or call nth before touch, per spec.md §4.2 "Backref round-trip".
func (h *speakerHistory) nth(n int) (string, bool) {
	if n < 1 || n > len(h.order) {
		return "", false
	}
	return h.order[n-1], true
}

// tmpAliasSlot is one side's pending/active temp alias bookkeeping
// (spec.md §3.5 "tmp_aliases").
type tmpAliasSlot struct {
	pending map[string]string // char_id -> display, waiting for next use on this side
	active  string            // char_id currently holding an applied temp alias ("" if none)
	display string            // the active temp alias's display text
}

func newTmpAliasSlot() *tmpAliasSlot {
	return &tmpAliasSlot{pending: map[string]string{}}
}

// apply activates any pending temp alias for charID on this side, clearing
// the slot's previous active entry if the speaker changed (spec.md §3.5,
// §3.7 invariant 5, §9 open question: "persists until the same side emits a
// statement for a different char_id"). Returns the effective nameOverride
// contribution from temp aliasing, or "" if none is active for charID.
func (t *tmpAliasSlot) apply(charID string) string {
	if t.active != "" && t.active != charID {
		t.active = ""
		t.display = ""
	}
	if d, ok := t.pending[charID]; ok {
		t.active = charID
		t.display = d
		delete(t.pending, charID)
	}
	if t.active == charID {
		return t.display
	}
	return ""
}

// customCharRecord is one entry of the ordered custom_chars table (spec.md
// §3.5 "custom_chars").
type customCharRecord struct {
	DisplayName string
	AvatarRef   string
}

// compileState is the single mutable bundle the compiler threads through
// the whole AST walk. It owns no references back into the AST.
type compileState struct {
	ir   *IR
	mode ModeFlags

	// per-side speaker histories and temp-alias slots.
	history   [2]speakerHistory // indexed by side
	tmpAlias  [2]*tmpAliasSlot

	// global_speaker_order (spec.md §3.5)
	globalOrder []string

	// full chronological speaker history across both sides, WITH repeats —
	// distinct from history[side] (per-side, duplicate-free). Backs expr-
	// segment "_n" backref resolution (resolveSegmentTarget), ported from
	// original_source's global_history (spec.md §4.5).
	globalFlatHistory []string

	// persistent display-name aliases (spec.md §3.5 "aliases")
	aliases map[string]string

	// short_id -> character name (spec.md §3.5 "short_id_map")
	shortIDMap map[string]string

	// custom_chars, in declaration order (spec.md §3.5 "custom_chars")
	customOrder []string
	customChars map[string]customCharRecord

	// avatar_overrides: char_id -> asset_ref (spec.md §3.5)
	avatarOverrides map[string]string

	// usepack: alias -> pack_id, in declaration order
	usepackAlias map[string]string
	usepackOrder []string

	// last TEXT speaker across all sides, used to synthesize @bond's
	// default text (SPEC_FULL.md §3.5 "last_speaker_any_side").
	lastSpeakerCharID  string
	lastSpeakerDisplay string
	haveLastSpeaker    bool

	// same-key continuation rendering hint (spec.md §3.7 invariant 6). Not
	// semantic state: the compiler only resets it to "" on PAGEBREAK, never
	// sets it otherwise, and does not write it to the IR.
	lastKey string
}

func newCompileState(mode ModeFlags) *compileState {
	return &compileState{
		ir:              newIR(),
		mode:            mode,
		tmpAlias:        [2]*tmpAliasSlot{newTmpAliasSlot(), newTmpAliasSlot()},
		aliases:         map[string]string{},
		shortIDMap:      map[string]string{},
		customChars:     map[string]customCharRecord{},
		avatarOverrides: map[string]string{},
		usepackAlias:    map[string]string{},
	}
}

// noteGlobalFirstAppearance appends charID to global_speaker_order the
// first time it is seen (spec.md §3.5, §4.2 "Index").
func (st *compileState) noteGlobalFirstAppearance(charID string) {
	for _, c := range st.globalOrder {
		if c == charID {
			return
		}
	}
	st.globalOrder = append(st.globalOrder, charID)
}

// ensureCustomChar records or updates a custom_chars row, preserving first
// insertion order (spec.md §3.5 "custom_chars").
func (st *compileState) ensureCustomChar(charID, display, avatarRef string) {
	if _, exists := st.customChars[charID]; !exists {
		st.customOrder = append(st.customOrder, charID)
	}
	rec := st.customChars[charID]
	if display != "" {
		rec.DisplayName = display
	}
	if avatarRef != "" {
		rec.AvatarRef = avatarRef
	}
	st.customChars[charID] = rec
}
